package interval

import "github.com/biogo/store/llrb"

// ReadTree indexes intervals (typically read alignment spans) by start
// position and answers overlap queries without a full rescan of every read in
// a shard. It tracks the widest interval inserted so far and uses that as a
// lookback bound when scanning the underlying ordered tree; this is the
// approach used for bounded-length intervals (sequencing reads) rather than a
// fully augmented interval tree.
type ReadTree struct {
	tree    llrb.Tree
	maxSpan int64
	n       int
}

// NewReadTree returns an empty ReadTree.
func NewReadTree() *ReadTree {
	return &ReadTree{}
}

// Len returns the number of intervals inserted.
func (t *ReadTree) Len() int { return t.n }

type readTreeEntry struct {
	iv    Interval
	value interface{}
	seq   int // insertion order; keeps entries with equal spans distinct
}

// Compare implements llrb.Comparable, ordering entries by Start, then End,
// then insertion order.
func (e readTreeEntry) Compare(other llrb.Comparable) int {
	o := other.(readTreeEntry)
	switch {
	case e.iv.Start != o.iv.Start:
		return int(e.iv.Start - o.iv.Start)
	case e.iv.End != o.iv.End:
		return int(e.iv.End - o.iv.End)
	default:
		return e.seq - o.seq
	}
}

// Insert adds iv to the tree, associated with value. Duplicate intervals
// (same Start and End) coexist; value distinguishes them on lookup.
func (t *ReadTree) Insert(iv Interval, value interface{}) {
	t.tree.Insert(readTreeEntry{iv, value, t.n})
	if span := iv.Size(); span > t.maxSpan {
		t.maxSpan = span
	}
	t.n++
}

// VisitOverlapping calls fn for every interval in the tree that overlaps
// query, in ascending Start order. fn returning false stops the scan early.
func (t *ReadTree) VisitOverlapping(query Interval, fn func(iv Interval, value interface{}) bool) {
	from := readTreeEntry{iv: Interval{Start: query.Start - t.maxSpan}}
	to := readTreeEntry{iv: Interval{Start: query.End}}
	keepGoing := true
	t.tree.DoRange(func(c llrb.Comparable) bool {
		e := c.(readTreeEntry)
		if e.iv.Overlaps(query) {
			keepGoing = fn(e.iv, e.value)
		}
		return !keepGoing
	}, from, to)
}
