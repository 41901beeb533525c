package varfilter

import (
	"fmt"
	"math"
)

// catches reports whether value is caught by a "below threshold" filter, the
// same comparison every original threshold-style filter applies: NaN (an
// annotation that was never computed for this call) never catches.
func catches(value, threshold float64) bool {
	if math.IsNaN(value) {
		return false
	}
	return value < threshold
}

type alleleBiasFilter struct{ threshold float64 }

func (f alleleBiasFilter) ID() string { return AlleleBiasID }
func (f alleleBiasFilter) Description() string {
	return fmt.Sprintf("Allele Bias: fewer reads supporting the variant than expected (ABPV < %g).", f.threshold)
}
func (f alleleBiasFilter) Catches(s RecordStats) bool { return catches(s.ABPV, f.threshold) }

type strandBiasFilter struct{ threshold float64 }

func (f strandBiasFilter) ID() string { return StrandBiasID }
func (f strandBiasFilter) Description() string {
	return fmt.Sprintf("Strand Bias: imbalance between forward and reverse reads supporting the variant (SBPV < %g).", f.threshold)
}
func (f strandBiasFilter) Catches(s RecordStats) bool { return catches(s.SBPV, f.threshold) }

type alleleBiasPlusStrandBiasFilter struct{ threshold float64 }

func (f alleleBiasPlusStrandBiasFilter) ID() string { return AlleleBiasPlusSBID }
func (f alleleBiasPlusStrandBiasFilter) Description() string {
	return fmt.Sprintf("Allele + Strand Bias: both AB and SB are close to triggering (ABPV+SBPV < %g).", f.threshold)
}
func (f alleleBiasPlusStrandBiasFilter) Catches(s RecordStats) bool {
	return catches(s.ABPV+s.SBPV, f.threshold)
}

type mappingQualityFilter struct{ threshold float64 }

func (f mappingQualityFilter) ID() string { return MappingQualityID }
func (f mappingQualityFilter) Description() string {
	return fmt.Sprintf("Low Mapping Quality: root-mean-square mapping quality below %g.", f.threshold)
}
func (f mappingQualityFilter) Catches(s RecordStats) bool { return catches(s.MQ, f.threshold) }

type qualityOverDepthFilter struct {
	snpThreshold, indelThreshold float64
}

func (f qualityOverDepthFilter) ID() string { return QualityOverDepthID }
func (f qualityOverDepthFilter) Description() string {
	return fmt.Sprintf("Quality over Depth: low quality relative to supporting depth (QD < %g for indels, < %g otherwise).", f.indelThreshold, f.snpThreshold)
}
func (f qualityOverDepthFilter) Catches(s RecordStats) bool {
	if s.IsIndel {
		return catches(s.QD, f.indelThreshold)
	}
	return catches(s.QD, f.snpThreshold)
}

type badReadsFilter struct{ threshold float64 }

func (f badReadsFilter) ID() string { return BadReadsID }
func (f badReadsFilter) Description() string {
	return fmt.Sprintf("Bad Reads: low-quality bases on reads near the variant locus (BR < %g).", f.threshold)
}
func (f badReadsFilter) Catches(s RecordStats) bool { return catches(s.BR, f.threshold) }

type lowQualityFilter struct{ threshold float64 }

func (f lowQualityFilter) ID() string { return LowQualityID }
func (f lowQualityFilter) Description() string {
	return fmt.Sprintf("Low Quality: overall call quality below %g.", f.threshold)
}
func (f lowQualityFilter) Catches(s RecordStats) bool { return catches(s.PP, f.threshold) }
