// Package pipeline is the map/reduce layer that turns a BAM and a reference
// into a VCF: it splits the genome into blocks, runs each block's variant
// calling independently (optionally across a worker pool), and reduces the
// resulting shards into a single output.
package pipeline

import (
	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/varfilter"
)

// Config collects every tunable the caller's CLI surface exposes.
type Config struct {
	// Ploidy is the number of haplotype copies to genotype per sample.
	Ploidy int

	// NumberOfJobs bounds how many blocks are processed concurrently. A
	// value <= 0 means "use one job per available core".
	NumberOfJobs int

	// MaxBlockSize caps how many reference bases a single block covers.
	MaxBlockSize int64

	// MemLimit is the per-block read byte budget. Call does not read it;
	// the budget is enforced by the read source's readsource.Filters.MemLimit,
	// which cmd/svcall sets from the same flag.
	MemLimit int64

	// Regions restricts calling to these reference regions; empty means
	// the whole genome (every contig named by Contigs).
	Regions []interval.Region

	// OutputRefCalls, if set, also emits VCF records for candidates
	// genotyped homozygous reference. Positions with no candidate get no
	// record.
	OutputRefCalls bool

	// MinBaseQuality is the lowest base quality at which a mismatching base
	// counts toward a candidate. Lower-quality bases still count toward
	// depth, and the aligner gets base qualities unchanged.
	MinBaseQuality byte

	// MinCandidateFraction is the minimum fraction of overlapping reads
	// that must support a mismatch for it to become a candidate variant;
	// indels never become candidates.
	MinCandidateFraction float64

	// FilterIDs names which varfilter.Bank filters to apply to each call,
	// e.g. varfilter.LowQualityID.
	FilterIDs []string

	// FilterThresholds configures the filters named by FilterIDs.
	FilterThresholds varfilter.Thresholds

	// Source, ReferencePath and Options are recorded for the VCF header's
	// ##source/##reference/##options lines.
	Source    string
	Reference string
	Options   string
}

// DefaultConfig mirrors the original caller's CLI defaults.
func DefaultConfig() Config {
	return Config{
		Ploidy:               2,
		NumberOfJobs:         1,
		MaxBlockSize:         1000,
		MemLimit:             1 << 30,
		MinBaseQuality:       20,
		MinCandidateFraction: 0.05,
		FilterIDs: []string{
			varfilter.LowQualityID,
			varfilter.MappingQualityID,
			varfilter.QualityOverDepthID,
		},
		FilterThresholds: varfilter.DefaultThresholds(),
		Source:           "svcall",
	}
}
