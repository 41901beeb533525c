// Package varfilter applies soft output filters to called variants: each
// filter inspects a variant's annotations and, if it catches the call,
// contributes its ID to the call's FILTER column rather than discarding it.
package varfilter

import (
	"sort"

	"github.com/pkg/errors"
)

// Soft filter IDs, matching the keys the VCF header's ##FILTER lines use.
const (
	AlleleBiasID       = "AB"
	StrandBiasID       = "SB"
	AlleleBiasPlusSBID = "AB+SB"
	MappingQualityID   = "MQ"
	QualityOverDepthID = "QD"
	BadReadsID         = "BR"
	LowQualityID       = "LQ"
)

// RecordStats carries the per-call annotations a Filter inspects. Any value
// that was never computed for a call should be left as NaN; filters treat
// NaN as "does not catch".
type RecordStats struct {
	// ABPV is the allele-bias p-value: how unlikely the observed split
	// between reference- and variant-supporting reads is under the
	// expected allele fraction.
	ABPV float64
	// SBPV is the strand-bias p-value: how unlikely the observed split
	// between forward- and reverse-strand variant support is under an
	// unbiased null.
	SBPV float64
	// MQ is the root-mean-square mapping quality of reads supporting the
	// call.
	MQ float64
	// QD is the call's quality divided by its supporting read depth.
	QD float64
	// BR is the minimum base-quality phred score observed on reads near
	// the call locus.
	BR float64
	// PP is the call's overall phred-scaled quality.
	PP float64
	// IsIndel selects which of the quality-over-depth filter's two
	// thresholds (SNP or indel) applies.
	IsIndel bool
}

// Filter is a single soft output filter: it names itself and decides whether
// a call's annotations are caught by (fail) it.
type Filter interface {
	ID() string
	Description() string
	Catches(stats RecordStats) bool
}

// Thresholds configures every built-in filter's trigger point, mirroring the
// original caller's per-filter threshold parameters.
type Thresholds struct {
	AlleleBiasP           float64
	StrandBiasP           float64
	AlleleBiasPlusSBP     float64
	MinRMSMappingQuality  float64
	MinSNPQualOverDepth   float64
	MinIndelQualOverDepth float64
	MinBadReadsScore      float64
	MinCallQuality        float64
}

// DefaultThresholds matches the original caller's default filter thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AlleleBiasP:           0.009,
		StrandBiasP:           0.0001,
		AlleleBiasPlusSBP:     0.016,
		MinRMSMappingQuality:  20,
		MinSNPQualOverDepth:   6,
		MinIndelQualOverDepth: 6,
		MinBadReadsScore:      15,
		MinCallQuality:        20,
	}
}

// Bank holds a fixed set of soft filters, applying every one of them to each
// call and recording which ones catch it.
type Bank struct {
	filters []Filter
}

// NewBank builds a Bank from a list of filter IDs (AlleleBiasID,
// StrandBiasID, ...), configured from t. Filters are kept sorted by ID so
// FilterDescs and the resulting FILTER column render deterministically.
func NewBank(filterIDs []string, t Thresholds) (Bank, error) {
	filters := make([]Filter, 0, len(filterIDs))
	for _, id := range filterIDs {
		f, err := newFilter(id, t)
		if err != nil {
			return Bank{}, err
		}
		filters = append(filters, f)
	}
	sort.Slice(filters, func(i, j int) bool { return filters[i].ID() < filters[j].ID() })
	return Bank{filters: filters}, nil
}

func newFilter(id string, t Thresholds) (Filter, error) {
	switch id {
	case AlleleBiasID:
		return alleleBiasFilter{threshold: t.AlleleBiasP}, nil
	case StrandBiasID:
		return strandBiasFilter{threshold: t.StrandBiasP}, nil
	case AlleleBiasPlusSBID:
		return alleleBiasPlusStrandBiasFilter{threshold: t.AlleleBiasPlusSBP}, nil
	case MappingQualityID:
		return mappingQualityFilter{threshold: t.MinRMSMappingQuality}, nil
	case QualityOverDepthID:
		return qualityOverDepthFilter{snpThreshold: t.MinSNPQualOverDepth, indelThreshold: t.MinIndelQualOverDepth}, nil
	case BadReadsID:
		return badReadsFilter{threshold: t.MinBadReadsScore}, nil
	case LowQualityID:
		return lowQualityFilter{threshold: t.MinCallQuality}, nil
	default:
		return nil, errors.Errorf("varfilter: unknown filter ID %q", id)
	}
}

// FilterDescs returns one description per filter in the bank, in ID order,
// suitable for rendering as a VCF header's ##FILTER lines.
func (b Bank) FilterDescs() []FilterDesc {
	descs := make([]FilterDesc, len(b.filters))
	for i, f := range b.filters {
		descs[i] = FilterDesc{ID: f.ID(), Description: f.Description()}
	}
	return descs
}

// FilterDesc names one soft filter for header rendering.
type FilterDesc struct {
	ID          string
	Description string
}

// Apply returns the IDs of every filter in the bank that catches stats, in
// ID order. A nil/empty result means the call passes every filter (PASS).
func (b Bank) Apply(stats RecordStats) []string {
	var caught []string
	for _, f := range b.filters {
		if f.Catches(stats) {
			caught = append(caught, f.ID())
		}
	}
	return caught
}
