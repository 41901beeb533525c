// Package readsource adapts aligned-read providers (BAM, via
// encoding/bamprovider) into the plain Read values the calling engine
// consumes, applying the overlap-trim and short-read quality-damping filters
// the original caller runs before a read ever reaches the aligner.
package readsource

import (
	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"

	"github.com/biocore/svcall/circular"
	"github.com/biocore/svcall/encoding/bamprovider"
	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/seq"
)

// Read is a single aligned read, reduced to the fields the calling engine
// needs: its sample of origin, sequence and quality, CIGAR, placement, and
// enough of its mate's placement to drive overlap-trim and proper-pair
// filtering.
type Read struct {
	Name       string
	Sample     string
	Sequence   seq.BasePairSequence
	Qualities  seq.QualitySequence
	Cigar      sam.Cigar
	Start      int64
	Flags      sam.Flags
	MapQ       int
	InsertSize int
	MateStart  int64
	MateContig string
}

// Unmapped reports whether the read itself did not align.
func (r Read) Unmapped() bool { return r.Flags&sam.Unmapped != 0 }

// ReverseStrand reports whether the read aligned to the reverse strand.
func (r Read) ReverseStrand() bool { return r.Flags&sam.Reverse != 0 }

// ProperPair reports whether the read's alignment was flagged as part of a
// properly-oriented pair.
func (r Read) ProperPair() bool { return r.Flags&sam.ProperPair != 0 }

// ReferenceSpan returns the number of reference bases this read's CIGAR
// consumes, i.e. [Start, Start+ReferenceSpan()) is the region it covers.
func (r Read) ReferenceSpan() int64 {
	ref, _ := r.Cigar.Lengths()
	return int64(ref)
}

// Source iterates over reads overlapping a region, already filtered and
// trimmed for consumption by the caller.
type Source interface {
	// Fetch returns every read overlapping iv on contig, sample-labeled and
	// with overlap-trim and short-read quality-damping applied.
	Fetch(contig string, iv interval.Interval) ([]Read, error)
}

// Filters configures the read-level adjustments Source implementations
// apply before handing reads to the caller.
type Filters struct {
	// TrimOverlap, if set, soft-masks (by clamping quality to 0) the portion
	// of a read that overlaps its mate, avoiding double-counting evidence
	// from the same physical DNA fragment sequenced from both ends.
	TrimOverlap bool

	// DampenShortFragmentQuality, if set, clamps the quality of bases beyond
	// the insert size of a fragment shorter than the read length -- those
	// bases are sequencing adapter, not genome, and otherwise masquerade as
	// high-confidence mismatches.
	DampenShortFragmentQuality bool

	// MinBaseQuality is the value short-fragment damping lowers damped bases
	// to (bases already at or below it are left alone). Undamped bases are
	// not changed by it, and overlap trimming clamps to 0 regardless.
	MinBaseQuality byte

	// MemLimit caps the total estimated byte size (sequence plus quality
	// bytes) of the reads a single Fetch call returns. Zero means no cap.
	// Fetch stops scanning at the first read that would take the running
	// total past the limit (the first read is always kept), giving every
	// block a fixed memory ceiling independent of how deep the pileup at
	// that position happens to be.
	MemLimit int64
}

// DefaultFilters matches the original caller's default read-preprocessing
// behavior: both overlap trimming and short-fragment damping enabled, no
// memory cap.
func DefaultFilters() Filters {
	return Filters{TrimOverlap: true, DampenShortFragmentQuality: true, MinBaseQuality: 0}
}

// readCost estimates the in-memory footprint of a single read, for MemLimit
// accounting. It doesn't need to be exact, only proportional to the actual
// allocation: sequence and quality bytes dominate everything else a Read
// holds.
func readCost(r Read) int64 {
	return int64(len(r.Sequence)) + int64(len(r.Qualities))
}

// BAM is a Source backed by a BAM/CRAM file via encoding/bamprovider.
type BAM struct {
	Sample   string
	Provider bamprovider.Provider
	Filters  Filters
}

// NewBAM opens path as a BAM/CRAM Source labeled with sample.
func NewBAM(sample, path string, filters Filters) BAM {
	return BAM{
		Sample:   sample,
		Provider: bamprovider.NewProvider(path),
		Filters:  filters,
	}
}

// Fetch implements Source.
func (b BAM) Fetch(contig string, iv interval.Interval) ([]Read, error) {
	header, err := b.Provider.GetHeader()
	if err != nil {
		return nil, errors.Wrap(err, "readsource.BAM.Fetch: reading header")
	}
	ref := bamprovider.RefByName(header, contig)
	if ref == nil {
		return nil, errors.Errorf("readsource.BAM.Fetch: unknown contig %q", contig)
	}

	shard := bamShard(ref, iv)
	it := b.Provider.NewIterator(shard)
	defer it.Close()

	// The eventual read count isn't known up front, but the region size is a
	// reasonable proxy for expected coverage depth; round it up to the next
	// power of 2 so repeated appends don't thrash the slice as coverage
	// varies block to block.
	reads := make([]Read, 0, circular.NextExp2(int(iv.Size())+1))
	var budget int64
	for it.Scan() {
		rec := it.Record()
		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		r := fromRecord(b.Sample, rec)
		if b.Filters.MemLimit > 0 && len(reads) > 0 && budget+readCost(r) > b.Filters.MemLimit {
			break
		}
		reads = append(reads, r)
		budget += readCost(r)
	}
	if err := it.Err(); err != nil {
		return nil, errors.Wrap(err, "readsource.BAM.Fetch: iterating")
	}

	applyFilters(reads, b.Filters)
	return reads, nil
}

// Close releases the underlying BAM provider.
func (b BAM) Close() error { return b.Provider.Close() }

func fromRecord(sample string, rec *sam.Record) Read {
	r := Read{
		Name:       rec.Name,
		Sample:     sample,
		Sequence:   seq.BasePairSequence(rec.Seq.Expand()),
		Qualities:  append(seq.QualitySequence(nil), rec.Qual...),
		Cigar:      rec.Cigar,
		Start:      int64(rec.Pos),
		Flags:      rec.Flags,
		MapQ:       int(rec.MapQ),
		InsertSize: rec.TempLen,
	}
	if rec.MateRef != nil {
		r.MateContig = rec.MateRef.Name()
		r.MateStart = int64(rec.MatePos)
	}
	return r
}
