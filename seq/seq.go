// Package seq defines the base-pair and quality sequence types shared by the
// aligner, mapper, and variant packages.
package seq

import (
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/pkg/errors"
)

// BasePairSequence is an immutable string of bases drawn from the alphabet
// ACGTN. Value semantics: copying a BasePairSequence copies a (pointer,
// length) pair, same as a plain Go string.
type BasePairSequence string

// Len returns the number of bases.
func (s BasePairSequence) Len() int { return len(s) }

// At returns the base at position i.
func (s BasePairSequence) At(i int) byte { return s[i] }

// Sub returns the half-open range [start,end) of s.
//
// REQUIRES: 0 <= start <= end <= s.Len().
func (s BasePairSequence) Sub(start, end int) BasePairSequence {
	if start < 0 || end > s.Len() || start > end {
		panic(errors.Errorf("seq.Sub: invalid range [%d,%d) for sequence of length %d", start, end, s.Len()))
	}
	return s[start:end]
}

// Concat returns s followed by other.
func (s BasePairSequence) Concat(other BasePairSequence) BasePairSequence {
	return s + other
}

// Equal reports whether s and other contain the same bases.
func (s BasePairSequence) Equal(other BasePairSequence) bool { return s == other }

// Less orders sequences lexicographically by base.
func (s BasePairSequence) Less(other BasePairSequence) bool { return s < other }

// String returns the sequence as a plain string.
func (s BasePairSequence) String() string { return string(s) }

// Iter calls fn(i, base) for each base in s, left to right. Index-based
// rather than channel-based, matching how encoding/fasta walks sequences.
func (s BasePairSequence) Iter(fn func(i int, base byte)) {
	for i := 0; i < len(s); i++ {
		fn(i, s[i])
	}
}

// ReverseIter calls fn(i, base) for each base in s, right to left.
func (s BasePairSequence) ReverseIter(fn func(i int, base byte)) {
	for i := len(s) - 1; i >= 0; i-- {
		fn(i, s[i])
	}
}

// TrimN removes leading and trailing 'N' bases.
func (s BasePairSequence) TrimN() BasePairSequence {
	return BasePairSequence(strings.Trim(string(s), "N"))
}

// Hash returns a whole-sequence hash of s, for use as a map key alongside
// the rolling k-mer hash (which is position-dependent and not suitable for
// whole-sequence identity checks).
func (s BasePairSequence) Hash() uint64 {
	return seahash.Sum64([]byte(s))
}

// QualitySequence holds per-base Phred quality scores.
type QualitySequence []byte

// Len returns the number of quality values.
func (q QualitySequence) Len() int { return len(q) }

// Clamp returns a copy of q with every value below min raised to min.
func (q QualitySequence) Clamp(min byte) QualitySequence {
	out := make(QualitySequence, len(q))
	for i, v := range q {
		if v < min {
			v = min
		}
		out[i] = v
	}
	return out
}

// Sub returns the half-open range [start,end) of q.
func (q QualitySequence) Sub(start, end int) QualitySequence {
	if start < 0 || end > q.Len() || start > end {
		panic(errors.Errorf("seq.QualitySequence.Sub: invalid range [%d,%d) for length %d", start, end, q.Len()))
	}
	return q[start:end]
}
