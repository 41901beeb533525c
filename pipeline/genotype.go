package pipeline

import (
	"math"
	"sort"

	"github.com/biocore/svcall/align"
	"github.com/biocore/svcall/gapmodel"
	"github.com/biocore/svcall/haplotype"
	"github.com/biocore/svcall/kmer"
	"github.com/biocore/svcall/likelihood"
	"github.com/biocore/svcall/normalize"
	"github.com/biocore/svcall/readsource"
	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/variant"
)

// kmerSize matches the original caller's default k-mer mapper window.
const kmerSize = 8

// candidateCall is the result of genotyping one candidate variant against
// the reads overlapping its block.
type candidateCall struct {
	variant                        variant.Variant
	genotype                       string // "0/0", "0/1", or "1/1" (ploidy 2); "0" or "1" for ploidy 1.
	qual                           float64
	depth                          int
	altDepth                       int
	rmsMapQ                        float64
	meanBR                         float64
	fwdRef, revRef, fwdAlt, revAlt int
}

// Genotype returns the called genotype string ("0/0", "0/1", "1/1", or,
// for ploidy 1, "0"/"1").
func (c candidateCall) Genotype() string { return c.genotype }

// Qual returns the phred-scaled call quality.
func (c candidateCall) Qual() float64 { return c.qual }

// Depth returns the number of reads that contributed to this call.
func (c candidateCall) Depth() int { return c.depth }

// GenotypeVariant scores reads against the reference haplotype and the
// haplotype carrying v, then picks the most likely genotype under a simple
// diploid (or haploid, for ploidy 1) model -- matching the three-genotype
// (hom-ref, het, hom-alt) simplification the core's own data-flow
// description stops short of specifying in full.
func GenotypeVariant(window refwindow.Window, v variant.Variant, reads []readsource.Read, ploidy int) (candidateCall, error) {
	refHap, err := haplotype.New(window, nil)
	if err != nil {
		return candidateCall{}, err
	}
	altHap, err := haplotype.New(window, []variant.Variant{v})
	if err != nil {
		return candidateCall{}, err
	}

	padding := align.MaxIndel + 1
	refIdx := kmer.NewIndex(refHap.Sequence, kmerSize, padding)
	altIdx := kmer.NewIndex(altHap.Sequence, kmerSize, padding)
	refGapOpen := gapmodel.Compute(refHap.Sequence, gapmodel.DefaultErrorModel)
	altGapOpen := gapmodel.Compute(altHap.Sequence, gapmodel.DefaultErrorModel)

	const gapExtend, nucPrior int16 = 3, 2

	var logHomRef, logHet, logHomAlt float64
	call := candidateCall{variant: v}

	for _, r := range reads {
		if r.Unmapped() {
			continue
		}
		hint := int(r.Start - window.Region.Start)

		pRef := likelihood.ReadHaplotype(refIdx, r.Sequence, r.Qualities, &hint, refHap.Sequence, refGapOpen, gapExtend, nucPrior, r.MapQ)
		pAlt := likelihood.ReadHaplotype(altIdx, r.Sequence, r.Qualities, &hint, altHap.Sequence, altGapOpen, gapExtend, nucPrior, r.MapQ)

		logHomRef += logOrFloor(pRef)
		logHomAlt += logOrFloor(pAlt)
		logHet += logOrFloor(0.5*pRef + 0.5*pAlt)

		call.depth++
		call.rmsMapQ += float64(r.MapQ) * float64(r.MapQ)
		if pAlt > pRef {
			call.altDepth++
			if r.ReverseStrand() {
				call.revAlt++
			} else {
				call.fwdAlt++
			}
		} else {
			if r.ReverseStrand() {
				call.revRef++
			} else {
				call.fwdRef++
			}
		}
	}

	if call.depth > 0 {
		call.rmsMapQ = math.Sqrt(call.rmsMapQ / float64(call.depth))
	}

	genotypes := []struct {
		name string
		log  float64
	}{
		{"0/0", logHomRef},
		{"1/1", logHomAlt},
	}
	if ploidy >= 2 {
		genotypes = append(genotypes, struct {
			name string
			log  float64
		}{"0/1", logHet})
	}
	sort.Slice(genotypes, func(i, j int) bool { return genotypes[i].log > genotypes[j].log })

	call.genotype = genotypes[0].name
	if ploidy == 1 {
		if call.genotype == "0/0" {
			call.genotype = "0"
		} else {
			call.genotype = "1"
		}
	}

	// QUAL is the phred-scaled probability that the winning genotype is
	// wrong, approximated from the log-likelihood gap to the runner-up.
	if len(genotypes) > 1 {
		gap := genotypes[0].log - genotypes[1].log
		call.qual = gap * 10 / math.Ln10
		if call.qual > 10000 {
			call.qual = 10000
		}
	} else {
		call.qual = 10000
	}

	return call, nil
}

// normalizeVariant re-derives v through the NW normalizer by building a
// single-variant haplotype over window and normalizing it. If normalization
// doesn't resolve to exactly one replacement variant -- the normalizer
// split v, or collapsed it to nothing -- v is returned unchanged rather than
// risk turning one genotyped call into zero or several VCF records.
func normalizeVariant(window refwindow.Window, v variant.Variant) (variant.Variant, error) {
	hap, err := haplotype.New(window, []variant.Variant{v})
	if err != nil {
		return v, err
	}
	normalized, err := hap.Normalize(normalize.DefaultPenalties())
	if err != nil {
		return v, err
	}
	if len(normalized.Variants) != 1 {
		return v, nil
	}
	return normalized.Variants[0], nil
}

func logOrFloor(p float64) float64 {
	if p <= 0 {
		p = likelihood.WrongMappingFloor
	}
	return math.Log(p)
}
