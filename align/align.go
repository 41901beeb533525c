// Package align computes the banded, affine-gap alignment of a read against a
// haplotype window. It implements the same recursion as the original
// caller's banded pair-HMM/Needleman-Wunsch aligner: a match/mismatch state M
// and two gap states D (deletion, haplotype base consumed) and I (insertion,
// read base consumed), with D able to follow I but not the reverse, and free
// leading/trailing deletions so the read need not span the whole haplotype
// window.
//
// The original packs eight lanes of anti-diagonal score state into a single
// SSE2 register and advances the whole band with one shift-and-add per
// cycle. This port keeps the same state machine but lays the M/D/I tables
// out directly in (hapPos, readPos) space rather than the transformed
// anti-diagonal coordinates, and fills every cell of those tables: no band
// restricts x-y beyond what the window lengths themselves allow.
// align/simd8.Vec8 is used only for the per-8-column gap-open lookup that
// feeds the recursion. See DESIGN.md for the rationale.
package align

import (
	"math"

	"github.com/pkg/errors"

	"github.com/biocore/svcall/align/simd8"
	"github.com/biocore/svcall/seq"
)

// MaxIndel sizes the haplotype window: the window must be exactly
// MaxIndel+1 bases longer than the read.
const MaxIndel = 14

// infinity is a cost no real alignment can reach; used to seal off states
// that must not be chosen.
const infinity = int32(1) << 30

// stateNone/Match/Delete/Insert tag which predecessor state a cell's best
// score came from, for traceback.
type state uint8

const (
	stateNone state = iota
	stateMatch
	stateDelete
	stateInsert
)

// Result is the outcome of an alignment.
type Result struct {
	// Score is the alignment cost: 0 for a perfect match, increasing with
	// mismatches and indels. Lower is better.
	Score int

	// FirstHapPos is the 0-based offset into the haplotype window at which
	// the first read base aligns. Only meaningful when traceback was
	// requested.
	FirstHapPos int

	// HapAligned and ReadAligned are the gapped alignment strings, with '-'
	// standing in for a gap. Only populated when traceback was requested.
	HapAligned, ReadAligned string
}

// Align aligns read (with per-base quality qual) against the haplotype
// window hap, using gapOpen[i] as the gap-open penalty for an indel starting
// at haplotype offset i, a uniform gapExtend penalty for continuing a gap,
// and nucPrior as the per-base cost of an insertion. A read or haplotype base
// of 'N' costs 4*nucPrior in place of the mismatch cost; any other mismatch
// costs the read base's quality, with no upper cap.
//
// REQUIRES: len(hap) == len(read) + MaxIndel + 1, len(qual) == len(read),
// len(gapOpen) == len(hap).
func Align(hap seq.BasePairSequence, read seq.BasePairSequence, qual seq.QualitySequence, gapOpen []int16, gapExtend, nucPrior int16, traceback bool) Result {
	hapLen := hap.Len()
	readLen := read.Len()
	if hapLen != readLen+MaxIndel+1 {
		panic(errors.Errorf("align.Align: haplotype length %d must equal read length %d + %d", hapLen, readLen, MaxIndel+1))
	}
	if qual.Len() != readLen {
		panic(errors.Errorf("align.Align: quality length %d does not match read length %d", qual.Len(), readLen))
	}
	if len(gapOpen) != hapLen {
		panic(errors.Errorf("align.Align: gapOpen length %d does not match haplotype length %d", len(gapOpen), hapLen))
	}

	// M[y][x], D[y][x], I[y][x] for y in [0,readLen], x in [0,hapLen].
	// Row-major, (readLen+1) rows of (hapLen+1) columns.
	stride := hapLen + 1
	m := make([]int32, (readLen+1)*stride)
	d := make([]int32, (readLen+1)*stride)
	ins := make([]int32, (readLen+1)*stride)

	var mTrace, dTrace, iTrace []state
	if traceback {
		mTrace = make([]state, (readLen+1)*stride)
		dTrace = make([]state, (readLen+1)*stride)
		iTrace = make([]state, (readLen+1)*stride)
	}

	// y==0: free leading deletion -- starting the alignment at any
	// haplotype offset costs nothing.
	for x := 0; x <= hapLen; x++ {
		d[x] = infinity
		ins[x] = infinity
	}
	// x==0: no haplotype consumed yet; only reachable via a run of
	// insertions before the first haplotype base.
	for y := 1; y <= readLen; y++ {
		row := y * stride
		prevRow := (y - 1) * stride
		m[row] = infinity
		d[row] = infinity
		openCost := int32(gapOpen[0])
		insCost := ins[prevRow] + int32(gapExtend)
		matCost := m[prevRow] + openCost
		if insCost <= matCost {
			ins[row] = insCost + int32(nucPrior)
			if traceback {
				iTrace[row] = stateInsert
			}
		} else {
			ins[row] = matCost + int32(nucPrior)
			if traceback {
				iTrace[row] = stateMatch
			}
		}
	}

	mismatchCost := func(x, y int) int32 {
		hapBase := hap.At(x - 1)
		readBase := read.At(y - 1)
		if hapBase == 'N' || readBase == 'N' {
			return int32(nucPrior) * 4
		}
		if hapBase == readBase {
			return 0
		}
		return int32(qual[y-1])
	}

	// The M/D/I score lanes are int32 (they accumulate over a whole read's
	// worth of mismatch/gap penalties and would overflow a SIMD8 int16
	// lane), so the per-8-column gap-open lookup below is the only piece of
	// this recursion narrow enough to vectorize without a wider Vec8 type;
	// it's loaded through simd8.Vec8 a block at a time and combined with
	// simd8.Min against a same-width cap so a block straddling the end of
	// the haplotype clamps to math.MaxInt16 (the int16 stand-in for
	// infinity) in one shot rather than a per-column bounds check.
	infinityLane := simd8.Splat(math.MaxInt16)
	gapOpenLane := func(xBase int) simd8.Vec8 {
		var v simd8.Vec8
		for i := 0; i < simd8.Width; i++ {
			x := xBase + i
			if x < len(gapOpen) {
				v[i] = gapOpen[x]
			} else {
				v[i] = math.MaxInt16
			}
		}
		return simd8.Min(v, infinityLane)
	}

	for y := 1; y <= readLen; y++ {
		row := y * stride
		prevRow := (y - 1) * stride
		for xBase := 0; xBase <= hapLen; xBase += simd8.Width {
			lane := gapOpenLane(xBase)
			end := xBase + simd8.Width
			if end > hapLen+1 {
				end = hapLen + 1
			}
			for x := xBase; x < end; x++ {
				if x == 0 {
					continue
				}
				open := int32(lane[x-xBase])

				// M(x,y)
				best := m[prevRow+x-1]
				bestState := stateMatch
				if v := d[prevRow+x-1]; v < best {
					best = v
					bestState = stateDelete
				}
				if v := ins[prevRow+x-1]; v < best {
					best = v
					bestState = stateInsert
				}
				m[row+x] = best + mismatchCost(x, y)
				if traceback {
					mTrace[row+x] = bestState
				}

				// D(x,y): haplotype base x-1 deleted; predecessors at
				// column x-1, same row. I->D allowed.
				dBest := d[row+x-1] + int32(gapExtend)
				dState := stateDelete
				if v := m[row+x-1] + open; v < dBest {
					dBest = v
					dState = stateMatch
				}
				if v := ins[row+x-1] + open; v < dBest {
					dBest = v
					dState = stateInsert
				}
				d[row+x] = dBest
				if traceback {
					dTrace[row+x] = dState
				}

				// I(x,y): read base y-1 inserted; predecessors at row
				// y-1, same column. D->I forbidden.
				iBest := ins[prevRow+x] + int32(gapExtend)
				iState := stateInsert
				if v := m[prevRow+x] + open; v < iBest {
					iBest = v
					iState = stateMatch
				}
				ins[row+x] = iBest + int32(nucPrior)
				if traceback {
					iTrace[row+x] = iState
				}
			}
		}
	}

	// Free trailing deletion: the alignment may end at any haplotype
	// offset, but must end in a match state.
	lastRow := readLen * stride
	minScore := infinity
	xEnd := 0
	for x := 0; x <= hapLen; x++ {
		if v := m[lastRow+x]; v < minScore {
			minScore = v
			xEnd = x
		}
	}

	result := Result{Score: int(minScore)}
	if !traceback {
		return result
	}

	hapAligned := make([]byte, 0, hapLen+readLen)
	readAligned := make([]byte, 0, hapLen+readLen)
	x, y := xEnd, readLen
	cur := stateMatch
	for y > 0 {
		row := y * stride
		switch cur {
		case stateMatch:
			hapAligned = append(hapAligned, hap.At(x-1))
			readAligned = append(readAligned, read.At(y-1))
			cur = mTrace[row+x]
			x--
			y--
		case stateDelete:
			hapAligned = append(hapAligned, hap.At(x-1))
			readAligned = append(readAligned, '-')
			cur = dTrace[row+x]
			x--
		case stateInsert:
			hapAligned = append(hapAligned, '-')
			readAligned = append(readAligned, read.At(y-1))
			cur = iTrace[row+x]
			y--
		default:
			panic(errors.Errorf("align.Align: unreachable traceback state at x=%d y=%d", x, y))
		}
	}
	for i, j := 0, len(hapAligned)-1; i < j; i, j = i+1, j-1 {
		hapAligned[i], hapAligned[j] = hapAligned[j], hapAligned[i]
		readAligned[i], readAligned[j] = readAligned[j], readAligned[i]
	}
	result.FirstHapPos = x
	result.HapAligned = string(hapAligned)
	result.ReadAligned = string(readAligned)
	return result
}
