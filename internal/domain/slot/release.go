package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/clinq/clinq/internal/domain/availability"
)

// ruleSource is the slice of the availability store the resolver needs.
type ruleSource interface {
	ListActiveReleaseRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*availability.ReleaseRule, error)
}

// Resolver decides when a candidate slot becomes visible to patients. Active
// rules per doctor-branch are cached in an LRU; rule mutations evict via
// Invalidate (wired through availability.Service).
type Resolver struct {
	rules ruleSource
	cache *lru.Cache[uuid.UUID, []*availability.ReleaseRule]
}

func NewResolver(rules ruleSource, cacheSize int) (*Resolver, error) {
	cache, err := lru.New[uuid.UUID, []*availability.ReleaseRule](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{rules: rules, cache: cache}, nil
}

// Invalidate drops the cached rules for a doctor-branch.
func (r *Resolver) Invalidate(doctorBranchID uuid.UUID) {
	r.cache.Remove(doctorBranchID)
}

func (r *Resolver) activeRules(ctx context.Context, doctorBranchID uuid.UUID) ([]*availability.ReleaseRule, error) {
	if cached, ok := r.cache.Get(doctorBranchID); ok {
		return cached, nil
	}
	rules, err := r.rules.ListActiveReleaseRules(ctx, doctorBranchID)
	if err != nil {
		return nil, err
	}
	r.cache.Add(doctorBranchID, rules)
	return rules, nil
}

// ResolveReleaseAt returns the earliest instant the candidate slot may be
// shown for booking. Priority is TIME_RANGE over WEEKDAY over DEFAULT, most
// specific wins; the uniqueness invariant guarantees at most one match per
// tier. With no matching rule the zero time is returned: the slot is
// released the moment it is generated (fail-open). A resolved instant that
// already lies in the past is equivalent to immediate release.
func (r *Resolver) ResolveReleaseAt(ctx context.Context, doctorBranchID uuid.UUID, slotStart time.Time, weekday int, timeRange string) (time.Time, error) {
	rules, err := r.activeRules(ctx, doctorBranchID)
	if err != nil {
		return time.Time{}, err
	}

	var weekdayRule, defaultRule *availability.ReleaseRule
	for _, rule := range rules {
		switch rule.Scope {
		case availability.ScopeTimeRange:
			if rule.TimeRange != nil && *rule.TimeRange == timeRange {
				return applyOffset(slotStart, rule.ReleaseOffsetMinutes), nil
			}
		case availability.ScopeWeekday:
			if rule.Weekday != nil && *rule.Weekday == weekday {
				weekdayRule = rule
			}
		case availability.ScopeDefault:
			defaultRule = rule
		}
	}
	if weekdayRule != nil {
		return applyOffset(slotStart, weekdayRule.ReleaseOffsetMinutes), nil
	}
	if defaultRule != nil {
		return applyOffset(slotStart, defaultRule.ReleaseOffsetMinutes), nil
	}
	return time.Time{}, nil
}

// applyOffset moves the release instant the configured number of minutes
// ahead of the slot's own start.
func applyOffset(slotStart time.Time, offsetMinutes int) time.Time {
	return slotStart.Add(-time.Duration(offsetMinutes) * time.Minute)
}
