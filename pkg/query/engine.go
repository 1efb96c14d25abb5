package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"floorpulse/pkg/cache"
	"floorpulse/pkg/labor"
)

// Engine answers date-range queries over the partition cache, resolving the
// overlap between undifferentiated ("all") partitions and shift-specific ones
// so the same employees are never counted twice.
type Engine struct {
	store cache.Store
	now   func() time.Time
}

// NewEngine creates a range query engine over the given store.
func NewEngine(store cache.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock overrides the engine's clock. Tests only.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RangeResult is the deduplicated union of records matching a range query.
// DatesMatched lists, sorted and unique, the dates that contributed at least
// one record.
type RangeResult struct {
	Records      []labor.Record `json:"records"`
	DatesMatched []string       `json:"datesMatched"`
	ShiftFilter  labor.ShiftTag `json:"shiftFilter"`
}

// QueryRange returns every record from every non-superseded partition whose
// date falls in [startDate, endDate] inclusive.
//
// Dedup rule, per date: if a day or night partition exists, the "all"
// partition for that date is excluded (shift-specific data supersedes the
// aggregate). Day and night partitions are disjoint populations and are both
// included when both exist.
//
// Shift filter: records from a matching day/night partition are included
// directly. Records from an "all" partition pass a day/night filter only when
// their date is today and the filter matches the currently active shift --
// a live snapshot of today reflects whoever is on the floor right now, while
// the shift composition of a past "all" partition is unknowable.
func (e *Engine) QueryRange(ctx context.Context, warehouse, startDate, endDate string, shiftFilter labor.ShiftTag) (*RangeResult, error) {
	start, err := cache.NormalizeDate(startDate)
	if err != nil {
		return nil, err
	}
	end, err := cache.NormalizeDate(endDate)
	if err != nil {
		return nil, err
	}
	if shiftFilter == "" {
		shiftFilter = labor.ShiftAll
	}
	if !shiftFilter.Valid() {
		return nil, fmt.Errorf("unknown shift filter %q", shiftFilter)
	}

	parts, err := e.store.Scan(ctx, warehouse)
	if err != nil {
		return nil, err
	}

	// Pre-scan: which shift tags exist per date. The inclusion decision for
	// an "all" partition depends on partitions we may not have seen yet, so
	// a single linear pass cannot make it.
	shiftsByDate := make(map[string]map[labor.ShiftTag]bool)
	for _, p := range parts {
		if shiftsByDate[p.Key.Date] == nil {
			shiftsByDate[p.Key.Date] = make(map[labor.ShiftTag]bool)
		}
		shiftsByDate[p.Key.Date][p.Key.Shift] = true
	}

	now := e.now()
	today := now.Format(cache.DateLayout)
	activeShift := labor.CurrentShift(now)

	result := &RangeResult{ShiftFilter: shiftFilter}
	matched := make(map[string]bool)

	for _, p := range parts {
		date := p.Key.Date
		if date < start || date > end {
			continue
		}

		if p.Key.Shift == labor.ShiftAll {
			shifts := shiftsByDate[date]
			if shifts[labor.ShiftDay] || shifts[labor.ShiftNight] {
				continue // superseded by shift-specific partitions
			}
			if shiftFilter != labor.ShiftAll {
				if date != today || shiftFilter != activeShift {
					continue
				}
			}
		} else if shiftFilter != labor.ShiftAll && p.Key.Shift != shiftFilter {
			continue
		}

		for _, r := range p.Records {
			// The partition key is authoritative for date and shift.
			r.Date = date
			r.Shift = p.Key.Shift
			result.Records = append(result.Records, r)
		}
		if len(p.Records) > 0 {
			matched[date] = true
		}
	}

	result.DatesMatched = make([]string, 0, len(matched))
	for d := range matched {
		result.DatesMatched = append(result.DatesMatched, d)
	}
	sort.Strings(result.DatesMatched)

	return result, nil
}
