// Package refwindow ties a region of a reference contig to the bases that
// occupy it. It is the Go counterpart of ReferenceSequence in the original
// caller: a Region paired with exactly Region.Size() bases.
package refwindow

import (
	"github.com/pkg/errors"

	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/seq"
)

// Window is a reference region together with its bases.
type Window struct {
	Region interval.Region
	Seq    seq.BasePairSequence
}

// New returns a Window, checking that the sequence length matches the
// region's size.
func New(region interval.Region, sequence seq.BasePairSequence) (Window, error) {
	if int64(sequence.Len()) != region.Size() {
		return Window{}, errors.Errorf(
			"refwindow.New: sequence length %d does not match region %v (size %d)",
			sequence.Len(), region, region.Size())
	}
	return Window{region, sequence}, nil
}

// At returns the base at the given reference coordinate.
//
// REQUIRES: region.Contains(refPos).
func (w Window) At(refPos int64) byte {
	return w.Seq.At(int(refPos - w.Region.Start))
}

// Sub returns the portion of w covering region, which must be contained
// within w.Region and share its contig.
func (w Window) Sub(region interval.Region) (Window, error) {
	if region.Contig != w.Region.Contig {
		return Window{}, errors.Errorf("refwindow.Sub: contig mismatch %q vs %q", region.Contig, w.Region.Contig)
	}
	if !w.Region.ContainsInterval(region.Interval) {
		return Window{}, errors.Errorf("refwindow.Sub: %v is not contained in %v", region, w.Region)
	}
	start := region.Start - w.Region.Start
	end := region.End - w.Region.Start
	return Window{region, w.Seq.Sub(int(start), int(end))}, nil
}

// Padded returns a Window covering widerRegion, which need not be contained
// in w.Region. Bases outside w.Region are filled with 'N'.
func (w Window) Padded(widerRegion interval.Region) (Window, error) {
	if widerRegion.Contig != w.Region.Contig {
		return Window{}, errors.Errorf("refwindow.Padded: contig mismatch %q vs %q", widerRegion.Contig, w.Region.Contig)
	}
	if !widerRegion.ContainsInterval(w.Region.Interval) {
		return Window{}, errors.Errorf("refwindow.Padded: %v does not contain %v", widerRegion, w.Region)
	}
	leftPad := w.Region.Start - widerRegion.Start
	rightPad := widerRegion.End - w.Region.End
	bases := make([]byte, 0, widerRegion.Size())
	for i := int64(0); i < leftPad; i++ {
		bases = append(bases, 'N')
	}
	bases = append(bases, []byte(w.Seq)...)
	for i := int64(0); i < rightPad; i++ {
		bases = append(bases, 'N')
	}
	return Window{widerRegion, seq.BasePairSequence(bases)}, nil
}

// ForwardIter calls fn(refPos, base) for every position in iv, in ascending
// order.
//
// REQUIRES: w.Region.Interval.ContainsInterval(iv).
func (w Window) ForwardIter(iv interval.Interval, fn func(refPos int64, base byte)) {
	if !w.Region.Interval.ContainsInterval(iv) {
		panic(errors.Errorf("refwindow.ForwardIter: %v is not contained in %v", iv, w.Region.Interval))
	}
	for pos := iv.Start; pos < iv.End; pos++ {
		fn(pos, w.At(pos))
	}
}

// ReverseIter calls fn(refPos, base) for every position in iv, in descending
// order.
//
// REQUIRES: w.Region.Interval.ContainsInterval(iv).
func (w Window) ReverseIter(iv interval.Interval, fn func(refPos int64, base byte)) {
	if !w.Region.Interval.ContainsInterval(iv) {
		panic(errors.Errorf("refwindow.ReverseIter: %v is not contained in %v", iv, w.Region.Interval))
	}
	for pos := iv.End - 1; pos >= iv.Start; pos-- {
		fn(pos, w.At(pos))
	}
}
