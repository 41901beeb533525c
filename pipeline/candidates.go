package pipeline

import (
	"github.com/grailbio/hts/sam"

	"github.com/biocore/svcall/readsource"
	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/seq"
	"github.com/biocore/svcall/variant"
)

// GenerateCandidates scans reads aligned within window for single-base
// mismatches supported by at least minFraction of the reads overlapping
// that position, and returns one SNP per (position, alt) that clears the
// threshold. Mismatching bases below minBaseQuality are not counted. CIGAR
// insertions and deletions add to depth only and never become candidates.
// This is a minimal frequency-based generator: it does not attempt local
// realignment or haplotype-aware candidate discovery the way a full
// assembler would.
func GenerateCandidates(window refwindow.Window, reads []readsource.Read, minBaseQuality byte, minFraction float64) []variant.Variant {
	type key struct {
		pos int64
		alt string
	}
	counts := make(map[key]int)
	depth := make(map[int64]int)

	for _, r := range reads {
		if r.Unmapped() {
			continue
		}
		walkCigar(r, func(refPos int64, readIdx int, op sam.CigarOpType) {
			if refPos < window.Region.Start || refPos >= window.Region.End {
				return
			}
			switch op {
			case sam.CigarMatch:
				depth[refPos]++
				if readIdx >= r.Qualities.Len() || r.Qualities[readIdx] < minBaseQuality {
					return
				}
				if window.At(refPos) == r.Sequence.At(readIdx) {
					return
				}
				counts[key{refPos, string([]byte{r.Sequence.At(readIdx)})}]++
			case sam.CigarDeletion:
				depth[refPos]++
			case sam.CigarInsertion:
				depth[refPos]++
			}
		})
	}

	var out []variant.Variant
	for k, n := range counts {
		d := depth[k.pos]
		if d == 0 || float64(n)/float64(d) < minFraction {
			continue
		}
		out = append(out, variant.New(window.Region.Contig, k.pos, k.pos+1, seq.BasePairSequence(k.alt)))
	}
	return out
}

// walkCigar calls fn for every reference and/or query position a read's
// CIGAR touches, reporting the operation's type so the caller can
// distinguish matches, insertions, and deletions.
func walkCigar(r readsource.Read, fn func(refPos int64, readIdx int, op sam.CigarOpType)) {
	refPos := r.Start
	readIdx := 0
	for _, op := range r.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch:
			for i := 0; i < n; i++ {
				fn(refPos+int64(i), readIdx+i, sam.CigarMatch)
			}
			refPos += int64(n)
			readIdx += n
		case sam.CigarInsertion:
			fn(refPos, readIdx, sam.CigarInsertion)
			readIdx += n
		case sam.CigarDeletion:
			for i := 0; i < n; i++ {
				fn(refPos+int64(i), readIdx, sam.CigarDeletion)
			}
			refPos += int64(n)
		case sam.CigarSoftClipped:
			readIdx += n
		}
	}
}
