// Package kmer maps a read against a haplotype window using a rolling k-mer
// hash index, the same coarse-positioning step the original caller runs
// before the expensive alignment: build a hash table of every k-mer
// in the haplotype, then for a read, count how many of its k-mers land at
// each haplotype offset and report the offsets with the most hits.
package kmer

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/seq"
)

// EndOfChain marks a hash bucket or collision-chain slot with no entry.
const EndOfChain = -1

// RepeatChain marks a hash bucket whose chain grew past MaxRepeatCount and
// was discarded entirely -- a k-mer this common carries no positional
// information worth keeping.
const RepeatChain = -2

// MaxRepeatCount is the longest collision chain kept before a bucket is
// abandoned as a repeat.
const MaxRepeatCount = 10

// FractionOfKmersToConsider bounds how much of the total k-mer hit mass
// Index.Map will accumulate into its returned positions.
const FractionOfKmersToConsider = 1.0 - 1.0/float64(MaxRepeatCount)

// maxHighestLowestRatio discards candidate positions whose hit count is
// this many times smaller than the best candidate's.
const maxHighestLowestRatio = 5.0

const bitMask = 6 // a,A->000 c,C->010 t,T->100 g,G->110
const nBits = 2

// HashFunc computes a rolling 2-bit-per-base hash over a sliding window of
// kmerSize bases.
type HashFunc struct {
	bitShift     int
	currentHash  int
	initialBases int
}

// NewHashFunc primes a HashFunc with the first kmerSize-1 bases of seed.
// Call Next with the kmerSize'th base onward to get each window's hash.
//
// REQUIRES: kmerSize > 1, seed.Len() >= kmerSize, seed.Len() < 4^kmerSize.
func NewHashFunc(seed seq.BasePairSequence, kmerSize int) *HashFunc {
	if kmerSize <= 1 {
		panic(errors.Errorf("kmer.NewHashFunc: kmerSize %d must be > 1", kmerSize))
	}
	if seed.Len() < kmerSize {
		panic(errors.Errorf("kmer.NewHashFunc: sequence of length %d too short for kmerSize %d", seed.Len(), kmerSize))
	}
	h := &HashFunc{bitShift: kmerSize*2 - 3}
	hash := 0
	shift := 1
	for i := 0; i < kmerSize-1; i++ {
		hash |= (int(seed.At(i)) & bitMask) << uint(shift)
		shift += nBits
	}
	h.currentHash = hash
	return h
}

// Next rolls newBase into the window and returns the updated hash.
func (h *HashFunc) Next(newBase byte) int {
	add := int(newBase) & bitMask
	h.currentHash = (h.currentHash >> nBits) | (add << uint(h.bitShift))
	return h.currentHash
}

// AllowableStartPositions returns the haplotype offsets at which a read of
// readLen could plausibly start, given haplotype length hapLen and a
// padding margin excluded at each end of the haplotype.
func AllowableStartPositions(hapLen, readLen, padding int) interval.Interval {
	return interval.NewInterval(0, int64(hapLen-readLen+1)).Pad(-int64(padding), 0)
}

// Index is a k-mer hash table built over a haplotype window, used to find
// candidate start offsets for reads before running the aligner.
type Index struct {
	hapLen   int
	kmerSize int
	padding  int

	table      []int32 // hash value -> haplotype offset of first occurrence, or EndOfChain/RepeatChain
	collisions []int32 // haplotype offset -> next offset with the same hash, or EndOfChain
}

// NewIndex builds a k-mer index over hap, excluding padding bases at each
// end from the allowable start offsets (see AllowableStartPositions).
//
// REQUIRES: kmerSize > 1, hap.Len() >= kmerSize, hap.Len() < 4^kmerSize.
func NewIndex(hap seq.BasePairSequence, kmerSize, padding int) *Index {
	hashSize := 1 << uint(2*kmerSize)
	idx := &Index{
		hapLen:     hap.Len(),
		kmerSize:   kmerSize,
		padding:    padding,
		table:      make([]int32, hashSize),
		collisions: make([]int32, hap.Len()),
	}
	for i := range idx.table {
		idx.table[i] = EndOfChain
	}
	for i := range idx.collisions {
		idx.collisions[i] = EndOfChain
	}
	idx.index(hap)
	return idx
}

func (idx *Index) index(hap seq.BasePairSequence) {
	hf := NewHashFunc(hap, idx.kmerSize)
	last := hap.Len() - (idx.kmerSize - 1)
	for offset := 0; offset < last; offset++ {
		hashVal := hf.Next(hap.At(offset + idx.kmerSize - 1))
		if idx.table[hashVal] == EndOfChain {
			idx.table[hashVal] = int32(offset)
			continue
		}
		j := idx.table[hashVal]
		count := 2
		for j != RepeatChain && idx.collisions[j] != EndOfChain {
			j = idx.collisions[j]
			count++
		}
		if count > MaxRepeatCount {
			idx.table[hashVal] = RepeatChain
		} else if j != RepeatChain {
			idx.collisions[j] = int32(offset)
		}
	}
}

// AllowableStartPositions returns the haplotype offsets a read of readLen
// could plausibly start at, given this index's padding.
func (idx *Index) AllowableStartPositions(readLen int) interval.Interval {
	return AllowableStartPositions(idx.hapLen, readLen, idx.padding)
}

// CountKmerMatches returns, for every allowable start offset, the number of
// read k-mers whose hash landed at a haplotype position consistent with that
// offset.
//
// REQUIRES: read.Len() <= hap.Len() (the haplotype this index was built
// from).
func (idx *Index) CountKmerMatches(read seq.BasePairSequence) []int {
	if read.Len() > idx.hapLen {
		panic(errors.Errorf("kmer.CountKmerMatches: read length %d exceeds haplotype length %d", read.Len(), idx.hapLen))
	}
	allowable := idx.AllowableStartPositions(read.Len())
	counts := make([]int, allowable.End)

	hf := NewHashFunc(read, idx.kmerSize)
	last := read.Len() - (idx.kmerSize - 1)
	for readOffset := 0; readOffset < last; readOffset++ {
		hashVal := hf.Next(read.At(readOffset + idx.kmerSize - 1))
		hapIdx := idx.table[hashVal]
		for hapIdx >= 0 {
			pos := int64(hapIdx) - int64(readOffset)
			if allowable.Contains(pos) {
				counts[pos]++
			}
			hapIdx = idx.collisions[hapIdx]
		}
	}
	return counts
}

// Map returns the most plausible haplotype start offsets for read, ranked by
// k-mer hit density. If no offset accumulates enough hits and hint is
// non-nil, the position closest to *hint (clamped to the allowable range) is
// returned instead.
func (idx *Index) Map(read seq.BasePairSequence, hint *int) []int {
	counts := idx.CountKmerMatches(read)
	matches := indicesWithHighestValues(counts, len(counts), FractionOfKmersToConsider, maxHighestLowestRatio)

	if len(matches) == 0 && hint != nil {
		allowable := idx.AllowableStartPositions(read.Len())
		switch {
		case allowable.Contains(int64(*hint)):
			matches = append(matches, *hint)
		case int64(*hint) < allowable.Start:
			matches = append(matches, int(allowable.Start))
		default:
			matches = append(matches, int(allowable.End-1))
		}
	}
	return matches
}

type countIndex struct {
	count int
	index int
}

// indicesWithHighestValues returns up to totalAllowed indices, in descending
// order of value, covering at most fractionOfTotalSumToConsider of the total
// mass and excluding any value more than maxHighestLowestRatio smaller than
// the maximum.
func indicesWithHighestValues(values []int, totalAllowed int, fractionOfTotalSumToConsider, maxHighestLowestRatio float64) []int {
	if len(values) == 0 {
		return nil
	}
	maxValue := values[0]
	total := 0
	for _, v := range values {
		if v > maxValue {
			maxValue = v
		}
		total += v
	}
	minValue := float64(maxValue) / maxHighestLowestRatio

	var candidates []countIndex
	for i, v := range values {
		if float64(v) > minValue {
			candidates = append(candidates, countIndex{v, i})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		return candidates[i].index > candidates[j].index
	})

	countLimit := float64(total) * fractionOfTotalSumToConsider
	var best []int
	cumulative := 0.0
	for i := 0; i < totalAllowed && i < len(candidates); i++ {
		if cumulative > countLimit {
			break
		}
		cumulative += float64(candidates[i].count)
		best = append(best, candidates[i].index)
	}
	return best
}
