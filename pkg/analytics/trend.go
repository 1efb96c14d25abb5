package analytics

import (
	"fmt"
	"sort"
	"strings"

	"floorpulse/pkg/labor"
)

// TrendPoint is one bucket of an employee's rate series for a path.
type TrendPoint struct {
	Label string  `json:"label"` // date, or clock hour for intraday series
	JPH   float64 `json:"jph"`
	Hours float64 `json:"hours"`
	Jobs  float64 `json:"jobs"`
}

// trendSeries builds per-path rate series for the employee's own records.
// Multi-day windows get one point per day. When the window is a single day
// and intraday snapshots are available, the series drops to hourly
// resolution instead. Zero-hour buckets are excluded either way.
func trendSeries(records []labor.Record, snapshots map[int][]labor.Record) map[string][]TrendPoint {
	if len(snapshots) > 0 && distinctDates(records) <= 1 {
		if hourly := hourlyTrend(records, snapshots); len(hourly) > 0 {
			return hourly
		}
	}
	return dailyTrend(records)
}

func dailyTrend(records []labor.Record) map[string][]TrendPoint {
	byPath := make(map[string]map[string]*tally)
	for _, r := range records {
		pathID := pathOrOther(r.PathID)
		if byPath[pathID] == nil {
			byPath[pathID] = make(map[string]*tally)
		}
		t := byPath[pathID][r.Date]
		if t == nil {
			t = &tally{}
			byPath[pathID][r.Date] = t
		}
		t.hours += r.Hours
		t.jobs += r.Jobs
	}

	result := make(map[string][]TrendPoint)
	for pathID, byDate := range byPath {
		points := make([]TrendPoint, 0, len(byDate))
		for date, t := range byDate {
			if t.hours <= 0 {
				continue
			}
			points = append(points, TrendPoint{Label: date, JPH: t.jph(), Hours: t.hours, Jobs: t.jobs})
		}
		if len(points) == 0 {
			continue
		}
		sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
		result[pathID] = points
	}
	return result
}

// hourlyTrend rebuilds the employee's day from intraday snapshots. Each
// snapshot holds cumulative per-employee records as of that hour.
func hourlyTrend(records []labor.Record, snapshots map[int][]labor.Record) map[string][]TrendPoint {
	if len(records) == 0 {
		return nil
	}
	employeeID := records[0].EmployeeID

	hours := make([]int, 0, len(snapshots))
	for h := range snapshots {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	result := make(map[string][]TrendPoint)
	for _, hour := range hours {
		for _, r := range snapshots[hour] {
			if r.EmployeeID != employeeID || r.Hours <= 0 {
				continue
			}
			pathID := pathOrOther(r.PathID)
			result[pathID] = append(result[pathID], TrendPoint{
				Label: hourLabel(hour),
				JPH:   r.JPH(),
				Hours: r.Hours,
				Jobs:  r.Jobs,
			})
		}
	}
	return result
}

// hourLabel formats an hour of day like "7 AM" or "1 PM".
func hourLabel(hour int) string {
	ampm := "AM"
	if hour >= 12 {
		ampm = "PM"
	}
	h12 := hour % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d %s", h12, ampm)
}

func distinctDates(records []labor.Record) int {
	dates := make(map[string]bool)
	for _, r := range records {
		dates[r.Date] = true
	}
	return len(dates)
}

func pathOrOther(pathID string) string {
	if pathID == "" {
		return "other"
	}
	return strings.ToLower(pathID)
}
