// Package normalize re-derives a minimal, canonical set of variants
// explaining the difference between a reference window and a replacement
// sequence, using a classical affine-gap global alignment. It is the Go
// counterpart of the original caller's NeedlemanWunsch-based variant
// normalizer: rather than trusting whatever indel placement an upstream
// aligner produced, it recomputes the alignment directly and reads variants
// off the traceback.
package normalize

import (
	"github.com/pkg/errors"

	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/seq"
	"github.com/biocore/svcall/variant"
)

// Penalties parameterizes the alignment scoring. Scores are costs: lower is
// better, matching the rest of this module's convention (the original
// caller's NWPenalties uses the opposite sign convention, rewards rather
// than costs; the magnitudes here are the same, just negated).
type Penalties struct {
	Mismatch  int32
	GapOpen   int32
	GapExtend int32
}

// DefaultPenalties returns the penalty set the original caller defaults to
// for its own variant normalizer.
func DefaultPenalties() Penalties {
	return Penalties{Mismatch: 1000, GapOpen: 2000, GapExtend: 300}
}

// MaxMatrixSize bounds how large a normalization DP table may get before
// normalization is skipped and the input returned unchanged; very wide
// candidate regions occasionally arise from misassembled haplotypes and
// normalizing them is not worth the memory.
const MaxMatrixSize = 50_000

type opKind int

const (
	opMatch opKind = iota
	opMismatch
	opInsert
	opDelete
)

// Normalize aligns alt against the reference bases in window and returns the
// minimal list of variants explaining the difference, each anchored at its
// absolute reference position. If the alignment matrix would exceed
// MaxMatrixSize, it returns a single variant spanning the whole window
// unchanged.
func Normalize(window refwindow.Window, alt seq.BasePairSequence, penalties Penalties) ([]variant.Variant, error) {
	ref := window.Seq
	n, m := ref.Len(), alt.Len()
	if int64(n+1)*int64(m+1) > MaxMatrixSize {
		return []variant.Variant{variant.New(window.Region.Contig, window.Region.Start, window.Region.End, alt)}, nil
	}

	ops, err := align(ref, alt, penalties)
	if err != nil {
		return nil, err
	}
	return mergeOps(window, alt, ops), nil
}

type step struct {
	kind   opKind
	refIdx int // index into ref consumed by this step, if any
	altIdx int // index into alt consumed by this step, if any
}

// align runs a standard Gotoh affine-gap global alignment of ref against alt
// and returns the edit script in forward (left-to-right) order.
func align(ref, alt seq.BasePairSequence, p Penalties) ([]step, error) {
	n, m := ref.Len(), alt.Len()
	const infinity = int32(1) << 30

	stride := m + 1
	M := make([]int32, (n+1)*stride)
	D := make([]int32, (n+1)*stride) // gap in alt (ref base consumed, deletion)
	I := make([]int32, (n+1)*stride) // gap in ref (alt base consumed, insertion)

	for j := 0; j <= m; j++ {
		M[j] = int32(j) * p.GapExtend
		if j > 0 {
			M[j] = p.GapOpen + int32(j-1)*p.GapExtend
		}
		D[j] = infinity
		I[j] = M[j]
	}
	for i := 0; i <= n; i++ {
		row := i * stride
		if i == 0 {
			continue
		}
		M[row] = p.GapOpen + int32(i-1)*p.GapExtend
		I[row] = infinity
		D[row] = M[row]
	}
	M[0] = 0
	D[0] = infinity
	I[0] = infinity

	for i := 1; i <= n; i++ {
		row := i * stride
		prevRow := (i - 1) * stride
		for j := 1; j <= m; j++ {
			cost := int32(0)
			if ref.At(i-1) != alt.At(j-1) {
				cost = p.Mismatch
			}
			best := min3(M[prevRow+j-1], D[prevRow+j-1], I[prevRow+j-1])
			M[row+j] = best + cost

			// D: deletion, consumes ref[i-1] and no alt base -- predecessor
			// is one ref row back, same alt column.
			dOpen := min(M[prevRow+j], I[prevRow+j]) + p.GapOpen
			dExt := D[prevRow+j] + p.GapExtend
			D[row+j] = min(dOpen, dExt)

			// I: insertion, consumes alt[j-1] and no ref base -- predecessor
			// is one alt column back, same ref row. An insertion may not
			// open immediately out of a deletion (no D predecessor here).
			iOpen := M[row+j-1] + p.GapOpen
			iExt := I[row+j-1] + p.GapExtend
			I[row+j] = min(iOpen, iExt)
		}
	}

	// pick the best final state and trace back
	final := []int32{M[n*stride+m], D[n*stride+m], I[n*stride+m]}
	state := 0
	for k := 1; k < 3; k++ {
		if final[k] < final[state] {
			state = k
		}
	}

	var reversed []step
	i, j := n, m
	for i > 0 || j > 0 {
		row := i * stride
		// Row 0 and column 0 of M hold pure gap costs; trace them as the gap
		// state they stand for.
		if state == 0 && i == 0 {
			state = 2
		} else if state == 0 && j == 0 {
			state = 1
		}
		switch state {
		case 0: // M
			if i == 0 || j == 0 {
				return nil, errors.Errorf("normalize.align: traceback ran out of bounds at match state")
			}
			kind := opMatch
			if ref.At(i-1) != alt.At(j-1) {
				kind = opMismatch
			}
			reversed = append(reversed, step{kind, i - 1, j - 1})
			prevRow := (i - 1) * stride
			cands := []int32{M[prevRow+j-1], D[prevRow+j-1], I[prevRow+j-1]}
			state = argmin(cands)
			i--
			j--
		case 1: // D: gap in alt, ref base i-1 deleted
			if i == 0 {
				return nil, errors.Errorf("normalize.align: traceback ran out of bounds at delete state")
			}
			reversed = append(reversed, step{opDelete, i - 1, -1})
			candM := M[row-stride+j]
			candI := I[row-stride+j]
			candD := D[row-stride+j]
			cands := []int32{candM + p.GapOpen, candI + p.GapOpen, candD + p.GapExtend}
			switch argmin(cands) {
			case 0:
				state = 0
			case 1:
				state = 2
			default:
				state = 1
			}
			i--
		case 2: // I: gap in ref, alt base j-1 inserted
			if j == 0 {
				return nil, errors.Errorf("normalize.align: traceback ran out of bounds at insert state")
			}
			reversed = append(reversed, step{opInsert, -1, j - 1})
			candM := M[row+j-1]
			cands := []int32{candM + p.GapOpen, I[row+j-1] + p.GapExtend}
			switch argmin(cands) {
			case 0:
				state = 0
			default:
				state = 2
			}
			j--
		}
	}

	ops := make([]step, len(reversed))
	for k, s := range reversed {
		ops[len(reversed)-1-k] = s
	}
	return ops, nil
}

// mergeOps folds a run of consecutive non-match edit-script steps into a
// single Variant, the same grouping the original caller's NWVariant
// accumulation performs so that e.g. a run of three deletions followed by a
// mismatch becomes one replacement variant rather than four single-base
// ones. Every variant is then trimmed and left-aligned against window, the
// same canonicalization the original caller's traceBack left-alignment DFS
// achieves by exploring alternative indel starts directly.
func mergeOps(window refwindow.Window, alt seq.BasePairSequence, ops []step) []variant.Variant {
	contig := window.Region.Contig
	refBase := window.Region.Start

	var out []variant.Variant
	i := 0
	for i < len(ops) {
		if ops[i].kind == opMatch {
			i++
			continue
		}
		start := i
		refStart, refEnd := -1, -1
		var altBytes []byte
		for i < len(ops) && ops[i].kind != opMatch {
			if ops[i].refIdx >= 0 {
				if refStart == -1 {
					refStart = ops[i].refIdx
				}
				refEnd = ops[i].refIdx + 1
			}
			if ops[i].altIdx >= 0 {
				altBytes = append(altBytes, alt.At(ops[i].altIdx))
			}
			i++
		}
		if i == start {
			i++
			continue
		}
		var regionStart, regionEnd int64
		if refStart == -1 {
			// pure insertion: anchor at the reference position of the
			// following (or preceding) retained base, or at the window
			// start when there is none.
			regionStart = refBase
			if start > 0 {
				regionStart = refBase + int64(ops[start-1].refIdx) + 1
			} else if i < len(ops) {
				regionStart = refBase + int64(ops[i].refIdx)
			}
			regionEnd = regionStart
		} else {
			regionStart = refBase + int64(refStart)
			regionEnd = refBase + int64(refEnd)
		}
		v := variant.New(contig, regionStart, regionEnd, seq.BasePairSequence(altBytes))
		trimmed, err := v.Trim(window)
		if err == nil {
			v = trimmed
		}
		aligned, err := v.LeftAlign(window, window.Region.Start)
		if err == nil {
			v = aligned
		}
		out = append(out, v)
	}
	return out
}

func min(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func min3(a, b, c int32) int32 {
	return min(min(a, b), c)
}

func argmin(vals []int32) int {
	best := 0
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[best] {
			best = i
		}
	}
	return best
}
