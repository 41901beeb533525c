package interval

import "github.com/pkg/errors"

// Interval is a half-open range [Start, End) of genomic coordinates within a
// single contig. Unlike PosType-based endpoint unions elsewhere in this
// package, Interval is a plain value type for the variant/alignment code,
// which needs signed 64-bit arithmetic around padding and reference-window
// shifts.
type Interval struct {
	Start, End int64
}

// NewInterval returns the half-open interval [start, end).
//
// REQUIRES: start <= end.
func NewInterval(start, end int64) Interval {
	if start > end {
		panic(errors.Errorf("interval.NewInterval: start %d > end %d", start, end))
	}
	return Interval{start, end}
}

// Size returns End - Start.
func (iv Interval) Size() int64 { return iv.End - iv.Start }

// Empty reports whether the interval contains no positions.
func (iv Interval) Empty() bool { return iv.Start >= iv.End }

// Contains reports whether pos is in [Start, End).
func (iv Interval) Contains(pos int64) bool {
	return pos >= iv.Start && pos < iv.End
}

// ContainsInterval reports whether other is entirely within iv.
func (iv Interval) ContainsInterval(other Interval) bool {
	return iv.Start <= other.Start && other.End <= iv.End
}

// Overlaps reports whether iv and other share at least one position.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// OverlapsOrTouches reports whether iv and other share a position or abut
// exactly (iv.End == other.Start or other.End == iv.Start).
func (iv Interval) OverlapsOrTouches(other Interval) bool {
	return iv.Start <= other.End && other.Start <= iv.End
}

// Intersect returns the overlap of iv and other. It errors if they don't
// overlap.
func (iv Interval) Intersect(other Interval) (Interval, error) {
	if !iv.Overlaps(other) {
		return Interval{}, errors.Errorf("interval.Intersect: %v and %v do not overlap", iv, other)
	}
	start := iv.Start
	if other.Start > start {
		start = other.Start
	}
	end := iv.End
	if other.End < end {
		end = other.End
	}
	return Interval{start, end}, nil
}

// Combine returns the smallest interval containing both iv and other. The two
// intervals need not overlap; positions strictly between them are included.
func (iv Interval) Combine(other Interval) Interval {
	start := iv.Start
	if other.Start < start {
		start = other.Start
	}
	end := iv.End
	if other.End > end {
		end = other.End
	}
	return Interval{start, end}
}

// Pad returns iv widened by n positions on each side, clamped to floor on the
// left (floor is typically 0).
func (iv Interval) Pad(n int64, floor int64) Interval {
	start := iv.Start - n
	if start < floor {
		start = floor
	}
	return Interval{start, iv.End + n}
}

// Shift returns iv translated by delta.
func (iv Interval) Shift(delta int64) Interval {
	return Interval{iv.Start + delta, iv.End + delta}
}

// Equal reports structural equality.
func (iv Interval) Equal(other Interval) bool {
	return iv.Start == other.Start && iv.End == other.End
}

// Less orders intervals by Start, then by End.
func (iv Interval) Less(other Interval) bool {
	if iv.Start != other.Start {
		return iv.Start < other.Start
	}
	return iv.End < other.End
}

// Region is an Interval qualified by contig name.
type Region struct {
	Contig string
	Interval
}

// NewRegion returns the region [start,end) on contig.
func NewRegion(contig string, start, end int64) Region {
	return Region{contig, NewInterval(start, end)}
}

// sameContig errors out if a and b name different contigs; operations mixing
// contigs are not meaningful for genomic regions.
func sameContig(op string, a, b Region) error {
	if a.Contig != b.Contig {
		return errors.Errorf("interval.Region.%s: contig mismatch %q vs %q", op, a.Contig, b.Contig)
	}
	return nil
}

// Overlaps reports whether a and b share at least one position on the same
// contig.
func (a Region) Overlaps(b Region) (bool, error) {
	if err := sameContig("Overlaps", a, b); err != nil {
		return false, err
	}
	return a.Interval.Overlaps(b.Interval), nil
}

// Intersect returns the overlap of a and b. Errors on contig mismatch or
// non-overlap.
func (a Region) Intersect(b Region) (Region, error) {
	if err := sameContig("Intersect", a, b); err != nil {
		return Region{}, err
	}
	iv, err := a.Interval.Intersect(b.Interval)
	if err != nil {
		return Region{}, err
	}
	return Region{a.Contig, iv}, nil
}

// Combine returns the smallest region spanning a and b. Errors on contig
// mismatch.
func (a Region) Combine(b Region) (Region, error) {
	if err := sameContig("Combine", a, b); err != nil {
		return Region{}, err
	}
	return Region{a.Contig, a.Interval.Combine(b.Interval)}, nil
}

// Equal reports structural equality, including contig.
func (a Region) Equal(b Region) bool {
	return a.Contig == b.Contig && a.Interval.Equal(b.Interval)
}

// Less orders regions by contig name, then by Interval.
func (a Region) Less(b Region) bool {
	if a.Contig != b.Contig {
		return a.Contig < b.Contig
	}
	return a.Interval.Less(b.Interval)
}
