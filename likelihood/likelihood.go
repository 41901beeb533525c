// Package likelihood glues the k-mer mapper and the aligner together to
// score how well a single read supports a single haplotype.
package likelihood

import (
	"math"

	"github.com/biocore/svcall/align"
	"github.com/biocore/svcall/kmer"
	"github.com/biocore/svcall/seq"
)

// WrongMappingFloor is the likelihood assigned to a read under the
// hypothesis that its mapping quality is simply wrong -- the same small
// floor probability the original caller mixes in so a single badly-mapped
// read can never veto a haplotype outright.
const WrongMappingFloor = 1e-19

// ReadHaplotype scores read against the haplotype window indexed by idx,
// using mapper hits seeded from hintPos (the read's existing alignment
// position, if known) to find candidate start offsets, then align.Align
// to score each candidate and keep the best.
//
// Returns 0 if the mapper finds no plausible candidate start position.
//
// REQUIRES: idx was built with a padding of at least align.MaxIndel+1, so
// every candidate start offset leaves enough haplotype bases after it to
// carve out a full align.MaxIndel+1-wider alignment window.
func ReadHaplotype(
	idx *kmer.Index,
	read seq.BasePairSequence,
	qual seq.QualitySequence,
	hintPos *int,
	hapWindowSeq seq.BasePairSequence,
	gapOpen []int16,
	gapExtend, nucPrior int16,
	mapq int,
) float64 {
	candidates := idx.Map(read, hintPos)
	if len(candidates) == 0 {
		return 0
	}

	bestScore := -1
	for _, start := range candidates {
		segment := hapWindowSeq.Sub(start, start+read.Len()+align.MaxIndel+1)
		segGapOpen := gapOpen[start : start+segment.Len()]
		result := align.Align(segment, read, qual, segGapOpen, gapExtend, nucPrior, false)
		if bestScore < 0 || result.Score < bestScore {
			bestScore = result.Score
		}
	}

	pAlign := phredToProbability(bestScore)
	m := math.Pow(10, -float64(mapq)/10)
	return pAlign*(1-m) + m*WrongMappingFloor
}

// phredToProbability converts a Phred-like alignment cost into a probability
// in (0,1], the same conversion used for mapping quality.
func phredToProbability(phred int) float64 {
	return math.Pow(10, -float64(phred)/10)
}
