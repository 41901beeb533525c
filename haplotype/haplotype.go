// Package haplotype assembles a set of variants, applied to a reference
// window, into the single sequence a read can be aligned against, and ranks
// competing haplotypes by how well-supported their variants are.
package haplotype

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/biocore/svcall/interval"
	"github.com/biocore/svcall/normalize"
	"github.com/biocore/svcall/refwindow"
	"github.com/biocore/svcall/seq"
	"github.com/biocore/svcall/variant"
)

// BuildSequence applies variants (which must be sorted by Start and
// non-overlapping) to window, substituting each variant's Alt for the
// reference bases it replaces.
//
// REQUIRES: window.Region contains every variant's Region, and variants are
// sorted by Start and non-overlapping.
func BuildSequence(window refwindow.Window, variants []variant.Variant) (seq.BasePairSequence, error) {
	var b strings.Builder
	pos := window.Region.Start
	contig := window.Region.Contig
	for _, v := range variants {
		if v.Start < pos {
			return "", errors.Errorf("haplotype.BuildSequence: variant %v overlaps a previous one (current position %d)", v, pos)
		}
		before, err := window.Sub(interval.NewRegion(contig, pos, v.Start))
		if err != nil {
			return "", err
		}
		b.WriteString(before.Seq.String())
		b.WriteString(v.Alt.String())
		pos = v.End
	}
	tail, err := window.Sub(interval.NewRegion(contig, pos, window.Region.End))
	if err != nil {
		return "", err
	}
	b.WriteString(tail.Seq.String())
	return seq.BasePairSequence(b.String()), nil
}

// Haplotype is a reference window with a sorted, non-overlapping set of
// variants applied to it, together with the resulting sequence.
type Haplotype struct {
	Window   refwindow.Window
	Variants []variant.Variant
	Sequence seq.BasePairSequence
}

// New builds a Haplotype from window and variants, which need not already be
// sorted. Returns an error if any two variants overlap.
func New(window refwindow.Window, variants []variant.Variant) (Haplotype, error) {
	sorted := append([]variant.Variant(nil), variants...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Start < sorted[i-1].End {
			return Haplotype{}, errors.Errorf("haplotype.New: variants %v and %v overlap", sorted[i-1], sorted[i])
		}
	}
	seqBases, err := BuildSequence(window, sorted)
	if err != nil {
		return Haplotype{}, err
	}
	return Haplotype{window, sorted, seqBases}, nil
}

// ContainsVariant reports whether v is one of this haplotype's variants.
func (h Haplotype) ContainsVariant(v variant.Variant) bool {
	for _, hv := range h.Variants {
		if hv.Equal(h.Window, v) {
			return true
		}
	}
	return false
}

// IsReference reports whether none of this haplotype's variants change the
// reference sequence within region: a variant that merely restates the
// reference bases (possible after normalization) does not count.
func (h Haplotype) IsReference(region interval.Region) bool {
	for _, v := range h.Variants {
		overlaps, err := v.Region().Overlaps(region)
		if err != nil || !overlaps {
			continue
		}
		if v.IsPureIndel() || v.SequenceLengthInRef() == 1 {
			return false
		}
		start := v.Start
		if region.Start > start {
			start = region.Start
		}
		end := v.End
		if region.End < end {
			end = region.End
		}
		size := end - start
		ref, err := h.Window.Sub(interval.NewRegion(region.Contig, start, end))
		if err != nil {
			return false
		}
		alt := v.Alt.Sub(int(start-v.Start), int(start-v.Start)+int(size))
		if ref.Seq != alt {
			return false
		}
	}
	return true
}

// MergeIntoMNPs collapses every run of consecutive substitution-class
// variants -- any stretch with no indel between them -- into a single MNP
// spanning the run, by rebuilding that span's bases from the reference plus
// each run member's own replacement. Indels, and substitutions already
// isolated between indels, pass through unchanged. Mirrors the original
// caller's Haplotype::withMNPs, which partitions a haplotype's variants by
// isIndel() and coalesces every multi-element non-indel partition.
func (h Haplotype) MergeIntoMNPs() (Haplotype, error) {
	if len(h.Variants) == 0 {
		return h, nil
	}
	merged := make([]variant.Variant, 0, len(h.Variants))
	i := 0
	for i < len(h.Variants) {
		if h.Variants[i].IsPureIndel() {
			merged = append(merged, h.Variants[i])
			i++
			continue
		}
		j := i + 1
		for j < len(h.Variants) && !h.Variants[j].IsPureIndel() {
			j++
		}
		run := h.Variants[i:j]
		if len(run) == 1 {
			merged = append(merged, run[0])
		} else {
			mnp, err := mnpFromRun(h.Window, run)
			if err != nil {
				return Haplotype{}, err
			}
			merged = append(merged, mnp)
		}
		i = j
	}
	return New(h.Window, merged)
}

// mnpFromRun builds the single MNP variant replacing the reference span
// [run[0].Start, run[len(run)-1].End) with the bases that result from
// applying every variant in run to that span, matching the original
// caller's mnpFromSNPs helper.
func mnpFromRun(window refwindow.Window, run []variant.Variant) (variant.Variant, error) {
	contig := window.Region.Contig
	start, end := run[0].Start, run[len(run)-1].End
	sub, err := window.Sub(interval.NewRegion(contig, start, end))
	if err != nil {
		return variant.Variant{}, err
	}
	alt, err := BuildSequence(sub, run)
	if err != nil {
		return variant.Variant{}, err
	}
	return variant.New(contig, start, end, alt), nil
}

// Normalize re-derives each of h's variants through the NW normalizer,
// independently re-running it over every variant's own reference span and
// replacing h's variant set with whatever canonical, left-aligned variants
// come back. Mirrors Haplotype::withNormalizedVariants in the original
// caller, simplified to one variant's mini-region at a time rather than one
// normalizer call per padded multi-variant region.
func (h Haplotype) Normalize(penalties normalize.Penalties) (Haplotype, error) {
	renormalized := make([]variant.Variant, 0, len(h.Variants))
	for _, v := range h.Variants {
		if v.Empty() {
			continue
		}
		sub, err := h.Window.Sub(v.Region())
		if err != nil {
			return Haplotype{}, err
		}
		vs, err := normalize.Normalize(sub, v.Alt, penalties)
		if err != nil {
			return Haplotype{}, err
		}
		renormalized = append(renormalized, vs...)
	}
	return New(h.Window, renormalized)
}

// Prior returns the product of every variant's prior probability, the
// likelihood weight assigned to a haplotype combining independent variants.
func (h Haplotype) Prior(priorOf func(variant.Variant) float64) float64 {
	product := 1.0
	for _, v := range h.Variants {
		product *= priorOf(v)
	}
	return product
}

// MoreLikelyThan orders haplotypes by descending prior, then fewer variants,
// then shorter assembled sequence, then lexicographically smaller assembled
// sequence -- the same tie-break
// chain the original caller's Haplotype::isMoreLikelyThan applies once
// breakpoint-derived haplotypes are excluded from consideration.
func (h Haplotype) MoreLikelyThan(other Haplotype, priorOf func(variant.Variant) float64) bool {
	diff := h.Prior(priorOf) - other.Prior(priorOf)
	const epsilon = 1e-12
	if diff > epsilon || diff < -epsilon {
		return diff > 0
	}
	if len(h.Variants) != len(other.Variants) {
		return len(h.Variants) < len(other.Variants)
	}
	if h.Sequence.Len() != other.Sequence.Len() {
		return h.Sequence.Len() < other.Sequence.Len()
	}
	return h.Sequence.Less(other.Sequence)
}

// Set is an ordered collection of haplotypes covering the same reference
// span, typically the candidates considered for a single calling window.
type Set struct {
	Haplotypes []Haplotype
}

// Sort orders the set's haplotypes by number of variants (fewer first), then
// by their variant lists compared element by element with variant.Less, giving a stable, deterministic order for downstream
// likelihood computation.
func (s *Set) Sort() {
	sort.Slice(s.Haplotypes, func(i, j int) bool {
		window := s.Haplotypes[i].Window
		a, b := s.Haplotypes[i].Variants, s.Haplotypes[j].Variants
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		for k := range a {
			if !a[k].Equal(window, b[k]) {
				return a[k].Less(b[k])
			}
		}
		return false
	})
}

// Merge collapses consecutive haplotypes (after Sort) with identical
// assembled sequences, keeping whichever one priorOf judges more likely.
func (s *Set) Merge(priorOf func(variant.Variant) float64) {
	if len(s.Haplotypes) == 0 {
		return
	}
	merged := make([]Haplotype, 0, len(s.Haplotypes))
	merged = append(merged, s.Haplotypes[0])
	for _, h := range s.Haplotypes[1:] {
		last := merged[len(merged)-1]
		if last.Sequence == h.Sequence {
			if h.MoreLikelyThan(last, priorOf) {
				merged[len(merged)-1] = h
			}
			continue
		}
		merged = append(merged, h)
	}
	s.Haplotypes = merged
}

// IndicesForVariant returns the indices of haplotypes in the set containing v.
func (s *Set) IndicesForVariant(v variant.Variant) []int {
	var out []int
	for i, h := range s.Haplotypes {
		if h.ContainsVariant(v) {
			out = append(out, i)
		}
	}
	return out
}

// IndicesForReference returns the indices of haplotypes that are reference
// (no variant-induced change) over region.
func (s *Set) IndicesForReference(region interval.Region) []int {
	var out []int
	for i, h := range s.Haplotypes {
		if h.IsReference(region) {
			out = append(out, i)
		}
	}
	return out
}

// Keep retains only the haplotypes at the given indices, in the order given.
func (s *Set) Keep(indices []int) {
	retained := make([]Haplotype, 0, len(indices))
	for _, i := range indices {
		retained = append(retained, s.Haplotypes[i])
	}
	s.Haplotypes = retained
}
