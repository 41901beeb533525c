package varfilter

import (
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// StrandBiasPValue scores how unlikely the observed forward/reverse split of
// reads supporting the reference and alternate alleles is, under the null
// hypothesis that strand has no effect on which allele a read supports. A
// small value indicates strand bias.
func StrandBiasPValue(forwardRef, reverseRef, forwardAlt, reverseAlt int) float64 {
	totalRef := float64(forwardRef + reverseRef)
	totalAlt := float64(forwardAlt + reverseAlt)
	totalFwd := float64(forwardRef + forwardAlt)
	totalRev := float64(reverseRef + reverseAlt)
	grand := totalRef + totalAlt
	if grand == 0 || totalFwd == 0 || totalRev == 0 {
		return 1
	}

	observed := []float64{float64(forwardRef), float64(reverseRef), float64(forwardAlt), float64(reverseAlt)}
	expected := []float64{
		totalRef * totalFwd / grand,
		totalRef * totalRev / grand,
		totalAlt * totalFwd / grand,
		totalAlt * totalRev / grand,
	}
	chiSq := stat.ChiSquare(observed, expected)
	dist := distuv.ChiSquared{K: 1}
	return 1 - dist.CDF(chiSq)
}

// AlleleBiasPValue scores how unlikely it is to see altCount variant reads
// out of totalCount total reads, under a binomial null where altCount is
// expected to occur at expectedFraction of total depth. A small value
// indicates fewer variant-supporting reads than expected.
func AlleleBiasPValue(altCount, totalCount int, expectedFraction float64) float64 {
	if totalCount == 0 {
		return 1
	}
	dist := distuv.Binomial{N: float64(totalCount), P: expectedFraction}
	return dist.CDF(float64(altCount))
}
