// Package gapmodel computes per-position gap-open penalties for a haplotype,
// lowering the penalty within homopolymer runs where indels are far more
// likely (sequencing slippage) than elsewhere in the genome.
package gapmodel

import (
	"github.com/biocore/svcall/seq"
)

// DefaultErrorModel is indexed by the number of identical bases that follow a
// position in its homopolymer run (capped at the last entry) and gives the
// gap-open penalty for that context: a base followed by 10 or more copies of
// itself is barely penalized for an indel, while a base that differs from its
// right neighbour costs the full penalty. Values are in the same Phred-like cost
// units as align.Align's gapOpen/gapExtend/nucPrior.
var DefaultErrorModel = []int16{
	40, 40, 38, 36, 34, 30, 25, 20, 14, 8, 4,
}

// Compute returns a slice of len(hap) gap-open penalties, one per haplotype
// offset, using errorModel to look up the penalty for the homopolymer run
// that starts at that offset and extends to the right. The penalty for offset i covers both a deletion
// starting at i and an insertion starting just after base i, matching how
// align.Align indexes gapOpen.
func Compute(hap seq.BasePairSequence, errorModel []int16) []int16 {
	out := make([]int16, hap.Len())
	maxIndex := len(errorModel) - 1
	runLength := 0
	var prevBase byte
	havePrev := false

	for i := hap.Len() - 1; i >= 0; i-- {
		base := hap.At(i)
		if havePrev && base == prevBase {
			runLength++
		} else {
			runLength = 0
		}
		idx := runLength
		if idx > maxIndex {
			idx = maxIndex
		}
		out[i] = errorModel[idx]
		prevBase = base
		havePrev = true
	}
	return out
}
