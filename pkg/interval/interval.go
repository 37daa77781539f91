// Package interval implements arithmetic on half-open time intervals
// [start, end). Availability math (subtracting breaks and blocked windows
// from working hours, then cutting the remainder into bookable pieces)
// lives here so the off-by-one-prone parts are tested in isolation.
package interval

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalid is returned for intervals whose start is not before their end.
var ErrInvalid = errors.New("invalid interval")

// Span is a half-open interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// Validate checks that the span is well-formed (start strictly before end).
func (s Span) Validate() error {
	if !s.Start.Before(s.End) {
		return fmt.Errorf("%w: start %s >= end %s", ErrInvalid, s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339))
	}
	return nil
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two half-open spans intersect:
// a.start < b.end && b.start < a.end.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Contains reports whether t falls inside the span.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Set is a normalized interval set: sorted by start, pairwise disjoint.
type Set []Span

// Normalize sorts the spans and merges any that touch or overlap,
// returning a canonical Set. Zero-length and inverted spans are dropped.
func Normalize(spans []Span) Set {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Start.Before(s.End) {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	out := Set{valid[0]}
	for _, s := range valid[1:] {
		last := &out[len(out)-1]
		if !s.Start.After(last.End) {
			// Touching or overlapping: extend the previous span.
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Subtract removes every cut interval from the set. A cut may truncate a
// span at either end or split it in two.
func (set Set) Subtract(cuts []Span) Set {
	result := set
	for _, cut := range cuts {
		if !cut.Start.Before(cut.End) {
			continue
		}
		var next Set
		for _, s := range result {
			if !s.Overlaps(cut) {
				next = append(next, s)
				continue
			}
			if cut.Start.After(s.Start) {
				next = append(next, Span{Start: s.Start, End: cut.Start})
			}
			if cut.End.Before(s.End) {
				next = append(next, Span{Start: cut.End, End: s.End})
			}
		}
		result = next
	}
	return result
}

// Partition cuts every span in the set into consecutive pieces of exactly
// size d. A residual shorter than d is discarded.
func (set Set) Partition(d time.Duration) []Span {
	if d <= 0 {
		return nil
	}
	var out []Span
	for _, s := range set {
		for t := s.Start; !t.Add(d).After(s.End); t = t.Add(d) {
			out = append(out, Span{Start: t, End: t.Add(d)})
		}
	}
	return out
}

// Covers reports whether any span in the set fully contains [start, end).
func (set Set) Covers(start, end time.Time) bool {
	for _, s := range set {
		if !start.Before(s.Start) && !s.End.Before(end) {
			return true
		}
	}
	return false
}
