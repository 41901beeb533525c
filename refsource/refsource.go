// Package refsource adapts reference sequence providers (local FASTA, or
// FASTA fetched from S3) into the refwindow.Window shape the calling engine
// operates on.
package refsource

import (
	"github.com/pkg/errors"

	"github.com/biocore/svcall/encoding/fasta"
	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/seq"
)

// Source fetches the reference bases for a region.
//
// REQUIRES: iv is a valid, non-empty interval on contig.
type Source interface {
	Fetch(contig string, iv interval.Interval) (refwindow.Window, error)
}

// FASTA adapts an in-memory or indexed encoding/fasta.Fasta into a Source.
type FASTA struct {
	f fasta.Fasta
}

// NewFASTA wraps f as a Source.
func NewFASTA(f fasta.Fasta) FASTA {
	return FASTA{f: f}
}

// Fetch implements Source.
func (s FASTA) Fetch(contig string, iv interval.Interval) (refwindow.Window, error) {
	if iv.Start < 0 || iv.End < iv.Start {
		return refwindow.Window{}, errors.Errorf("refsource.FASTA.Fetch: invalid interval %v", iv)
	}
	bases, err := s.f.Get(contig, uint64(iv.Start), uint64(iv.End))
	if err != nil {
		return refwindow.Window{}, errors.Wrapf(err, "refsource.FASTA.Fetch: %s:%v", contig, iv)
	}
	return refwindow.New(interval.NewRegion(contig, iv.Start, iv.End), seq.BasePairSequence(bases))
}
