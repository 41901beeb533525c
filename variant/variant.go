// Package variant defines the canonical representation of a called variant
// as a reference region together with its replacement bases, and the
// operations the caller needs to compare, split, join, and realign variants
// against a reference window.
package variant

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/seq"
)

// Class labels the kind of edit a Variant represents.
type Class int

const (
	ClassRef Class = iota
	ClassSNP
	ClassInsertion
	ClassDeletion
	ClassMNP
	ClassComplex
)

func (c Class) String() string {
	switch c {
	case ClassRef:
		return "ref"
	case ClassSNP:
		return "snp"
	case ClassInsertion:
		return "insertion"
	case ClassDeletion:
		return "deletion"
	case ClassMNP:
		return "mnp"
	case ClassComplex:
		return "complex"
	default:
		return "unknown"
	}
}

// Variant is a half-open reference region [Start,End) on Contig replaced by
// Alt. An empty Alt with a non-empty region is a pure deletion; an empty
// region with a non-empty Alt is a pure insertion.
type Variant struct {
	Contig     string
	Start, End int64
	Alt        seq.BasePairSequence
}

// New returns the variant replacing [start,end) on contig with alt.
//
// REQUIRES: start <= end.
func New(contig string, start, end int64, alt seq.BasePairSequence) Variant {
	if start > end {
		panic(errors.Errorf("variant.New: start %d > end %d", start, end))
	}
	return Variant{contig, start, end, alt}
}

// Region returns the reference region this variant replaces.
func (v Variant) Region() interval.Region {
	return interval.NewRegion(v.Contig, v.Start, v.End)
}

// SequenceLengthInRef returns the number of reference bases replaced.
func (v Variant) SequenceLengthInRef() int64 { return v.End - v.Start }

// SequenceLength returns the number of alt bases.
func (v Variant) SequenceLength() int64 { return int64(v.Alt.Len()) }

// SequenceLengthChange returns SequenceLength - SequenceLengthInRef: positive
// for a net insertion, negative for a net deletion, zero for a
// length-preserving substitution.
func (v Variant) SequenceLengthChange() int64 {
	return v.SequenceLength() - v.SequenceLengthInRef()
}

// Empty reports whether v replaces nothing with nothing (a no-op).
func (v Variant) Empty() bool {
	return v.SequenceLengthInRef() == 0 && v.SequenceLength() == 0
}

// IsInsertion reports whether v adds bases without consuming any reference.
func (v Variant) IsInsertion() bool {
	return v.SequenceLengthInRef() == 0 && v.SequenceLength() > 0
}

// IsDeletion reports whether v consumes reference bases without adding any.
func (v Variant) IsDeletion() bool {
	return v.SequenceLengthInRef() > 0 && v.SequenceLength() == 0
}

// IsPureIndel reports whether v is a pure insertion or pure deletion, as
// opposed to a substitution or a mixed indel+substitution.
func (v Variant) IsPureIndel() bool {
	return v.IsInsertion() || v.IsDeletion()
}

// IsSNP reports whether v replaces exactly one reference base with exactly
// one different alt base.
func (v Variant) IsSNP() bool {
	return v.SequenceLengthInRef() == 1 && v.SequenceLength() == 1
}

// Classify returns the Class of v. window must cover v.Region() so
// substitutions can be distinguished from no-ops.
func (v Variant) Classify(window refwindow.Window) Class {
	switch {
	case v.Empty():
		return ClassRef
	case v.IsInsertion():
		return ClassInsertion
	case v.IsDeletion():
		return ClassDeletion
	case v.IsSNP():
		return ClassSNP
	case v.SequenceLength() == v.SequenceLengthInRef():
		ref, err := window.Sub(v.Region())
		if err == nil && string(ref.Seq) == v.Alt.String() {
			return ClassRef
		}
		return ClassMNP
	default:
		return ClassComplex
	}
}

// String implements fmt.Stringer.
func (v Variant) String() string {
	return fmt.Sprintf("%s:%d-%d(%s)", v.Contig, v.Start, v.End, v.Alt)
}

// Equal reports whether v and other describe the same edit against window:
// contig and position enter only into ordering, so two variants are equal
// iff they replace the same reference bases with the same alt, even if
// their regions differ.
func (v Variant) Equal(window refwindow.Window, other Variant) bool {
	if v.Alt != other.Alt {
		return false
	}
	vRef, err := window.Sub(v.Region())
	if err != nil {
		return false
	}
	otherRef, err := window.Sub(other.Region())
	if err != nil {
		return false
	}
	return vRef.Seq == otherRef.Seq
}

// Less imposes a total order on variants: by contig, then start, then end,
// then alt length, then alt sequence, matching the ordering the caller uses
// to dedupe and emit variants in VCF coordinate order.
func (v Variant) Less(other Variant) bool {
	if v.Contig != other.Contig {
		return v.Contig < other.Contig
	}
	if v.Start != other.Start {
		return v.Start < other.Start
	}
	if v.End != other.End {
		return v.End < other.End
	}
	if v.SequenceLength() != other.SequenceLength() {
		return v.SequenceLength() < other.SequenceLength()
	}
	return v.Alt.Less(other.Alt)
}

// DefaultPrior returns a default prior probability for v when no
// population/model-based prior is available, matching the per-class priors
// the original caller falls back to.
func (v Variant) DefaultPrior(window refwindow.Window) float64 {
	switch {
	case v.IsDeletion():
		return 1e-4 * math.Pow(0.8, float64(v.SequenceLengthInRef()))
	case v.IsInsertion():
		return 1e-4 * math.Pow(0.33, float64(v.SequenceLength()))
	case v.IsSNP():
		return 1.0e-3 / 3.0
	}
	if v.SequenceLength() == v.SequenceLengthInRef() {
		ref, err := window.Sub(v.Region())
		if err != nil {
			return 5e-5
		}
		nDiffs := 0
		for i := 0; i < v.Alt.Len(); i++ {
			if v.Alt.At(i) != ref.Seq.At(i) {
				nDiffs++
			}
		}
		if nDiffs == 0 {
			return 0
		}
		return 5e-5 * math.Pow(0.1, float64(nDiffs-1)) * 0.9
	}
	return 0
}

// Trim removes any common prefix and suffix shared by the reference bases in
// v.Region() and v.Alt, tightening the region to the minimal edit.
func (v Variant) Trim(window refwindow.Window) (Variant, error) {
	ref, err := window.Sub(v.Region())
	if err != nil {
		return Variant{}, err
	}
	refBytes := []byte(ref.Seq)
	altBytes := []byte(v.Alt)

	tail := 0
	for tail < len(refBytes) && tail < len(altBytes) && refBytes[len(refBytes)-1-tail] == altBytes[len(altBytes)-1-tail] {
		tail++
	}
	head := 0
	for head < len(refBytes)-tail && head < len(altBytes)-tail && refBytes[head] == altBytes[head] {
		head++
	}

	totalTrim := head + tail
	removedOverlap := totalTrim - len(refBytes)
	addedOverlap := totalTrim - len(altBytes)
	adjustedHead := head
	if removedOverlap > 0 || addedOverlap > 0 {
		overlap := removedOverlap
		if addedOverlap > overlap {
			overlap = addedOverlap
		}
		adjustedHead = head - overlap
	}

	return Variant{
		Contig: v.Contig,
		Start:  v.Start + int64(adjustedHead),
		End:    v.End - int64(tail),
		Alt:    seq.BasePairSequence(altBytes[adjustedHead : len(altBytes)-tail]),
	}, nil
}

// LeftAlign shifts a pure indel as far left as possible without crossing
// minPos, rotating the inserted/deleted bases through matching reference
// bases -- the standard left-alignment used to give indels a canonical VCF
// position. Non-indel variants (SNPs, MNPs, complex replacements) are
// returned unchanged, matching the original caller's refusal to realign
// substitutions. window must cover at least [minPos, v.End).
func (v Variant) LeftAlign(window refwindow.Window, minPos int64) (Variant, error) {
	if !v.IsPureIndel() {
		return v, nil
	}
	start, end, alt := v.Start, v.End, []byte(v.Alt)
	for start > minPos {
		priorBase := window.At(start - 1)
		var lastEditBase byte
		if v.IsDeletion() {
			lastEditBase = window.At(end - 1)
		} else {
			lastEditBase = alt[len(alt)-1]
		}
		if priorBase != lastEditBase {
			break
		}
		start--
		end--
		if v.IsInsertion() {
			copy(alt[1:], alt[:len(alt)-1])
			alt[0] = priorBase
		}
	}
	return Variant{v.Contig, start, end, seq.BasePairSequence(alt)}, nil
}

// RightAlign shifts a pure indel as far right as possible without crossing
// maxPos. window must cover at least [v.Start, maxPos).
func (v Variant) RightAlign(window refwindow.Window, maxPos int64) (Variant, error) {
	if !v.IsPureIndel() {
		return v, nil
	}
	start, end, alt := v.Start, v.End, []byte(v.Alt)
	for end < maxPos {
		nextBase := window.At(end)
		var firstEditBase byte
		if v.IsDeletion() {
			firstEditBase = window.At(start)
		} else {
			firstEditBase = alt[0]
		}
		if nextBase != firstEditBase {
			break
		}
		start++
		end++
		if v.IsInsertion() {
			copy(alt, alt[1:])
			alt[len(alt)-1] = nextBase
		}
	}
	return Variant{v.Contig, start, end, seq.BasePairSequence(alt)}, nil
}

// StartRegion and EndRegion bracket the span over which v's position is
// ambiguous: the interval between its leftmost and rightmost equivalent
// start (respectively end) positions. window must cover [minPos,maxPos).
func (v Variant) StartRegion(window refwindow.Window, minPos, maxPos int64) (interval.Region, error) {
	left, err := v.LeftAlign(window, minPos)
	if err != nil {
		return interval.Region{}, err
	}
	right, err := v.RightAlign(window, maxPos)
	if err != nil {
		return interval.Region{}, err
	}
	return interval.NewRegion(v.Contig, left.Start, right.Start), nil
}

// EndRegion is the equivalent bracket for v's end position.
func (v Variant) EndRegion(window refwindow.Window, minPos, maxPos int64) (interval.Region, error) {
	left, err := v.LeftAlign(window, minPos)
	if err != nil {
		return interval.Region{}, err
	}
	right, err := v.RightAlign(window, maxPos)
	if err != nil {
		return interval.Region{}, err
	}
	return interval.NewRegion(v.Contig, left.End, right.End), nil
}

// Joinable reports whether other starts exactly where v ends, so the two can
// be combined with Join.
func (v Variant) Joinable(other Variant) bool {
	return v.Contig == other.Contig && v.End == other.Start
}

// Join concatenates v and an adjacent variant other into a single variant
// spanning both regions.
//
// REQUIRES: v.Joinable(other).
func (v Variant) Join(other Variant) Variant {
	if !v.Joinable(other) {
		panic(errors.Errorf("variant.Join: %v and %v are not adjacent", v, other))
	}
	return Variant{v.Contig, v.Start, other.End, v.Alt.Concat(other.Alt)}
}

// Removable reports whether other can be subtracted from v with Remove: other
// must be contained in v's region, no longer than v's alt, and aligned with
// one end of v.
func (v Variant) Removable(other Variant) bool {
	if !v.Region().ContainsInterval(other.Region().Interval) {
		return false
	}
	if v.SequenceLength() < other.SequenceLength() {
		return false
	}
	switch {
	case v.End == other.End:
		return v.Alt.Sub(v.Alt.Len()-other.Alt.Len(), v.Alt.Len()) == other.Alt
	case v.Start == other.Start:
		return v.Alt.Sub(0, other.Alt.Len()) == other.Alt
	default:
		return false
	}
}

// Remove subtracts other from v, returning the remaining edit trimmed of any
// now-common prefix/suffix.
//
// REQUIRES: v.Removable(other).
func (v Variant) Remove(other Variant, window refwindow.Window) (Variant, error) {
	if !v.Removable(other) {
		return Variant{}, errors.Errorf("variant.Remove: %v is not removable from %v", other, v)
	}
	var diff Variant
	switch {
	case other.End == v.End:
		diff = Variant{v.Contig, v.Start, other.Start, v.Alt.Sub(0, v.Alt.Len()-other.Alt.Len())}
	case other.Start == v.Start:
		diff = Variant{v.Contig, other.End, v.End, v.Alt.Sub(other.Alt.Len(), v.Alt.Len())}
	}
	return diff.Trim(window)
}

// Split decomposes v into its constituent single-base edits: a pure indel or
// a SNP is returned unchanged; a length-preserving replacement (MNP) is
// split into one Variant per differing base; a deletion or insertion mixed
// with a substitution is split into a pure indel followed by the recursively
// split remaining MNP.
func (v Variant) Split(window refwindow.Window) ([]Variant, error) {
	switch {
	case v.Empty():
		return nil, nil
	case v.IsSNP(), v.IsPureIndel():
		return []Variant{v}, nil
	case v.SequenceLength() == v.SequenceLengthInRef():
		ref, err := window.Sub(v.Region())
		if err != nil {
			return nil, err
		}
		var out []Variant
		for i := 0; i < v.Alt.Len(); i++ {
			if v.Alt.At(i) != ref.Seq.At(i) {
				out = append(out, Variant{v.Contig, v.Start + int64(i), v.Start + int64(i) + 1, v.Alt.Sub(i, i+1)})
			}
		}
		return out, nil
	case v.SequenceLengthChange() < 0:
		pureDeletionEnd := v.End - v.SequenceLength()
		out := []Variant{{v.Contig, v.Start, pureDeletionEnd, ""}}
		rest := Variant{v.Contig, pureDeletionEnd, v.End, v.Alt}
		restSplit, err := rest.Split(window)
		if err != nil {
			return nil, err
		}
		return append(out, restSplit...), nil
	case v.SequenceLengthChange() > 0:
		ins := v.Alt.Sub(0, int(v.SequenceLengthChange()))
		mnpAdded := v.Alt.Sub(int(v.SequenceLengthChange()), v.Alt.Len())
		out := []Variant{{v.Contig, v.Start, v.Start, ins}}
		rest := Variant{v.Contig, v.Start, v.End, mnpAdded}
		restSplit, err := rest.Split(window)
		if err != nil {
			return nil, err
		}
		return append(out, restSplit...), nil
	default:
		return []Variant{v}, nil
	}
}
