package analytics

import (
	"math"
	"sort"
	"strings"

	"floorpulse/pkg/labor"
)

// Rating is the four-tier label derived from an employee's percentile rank
// among peers.
type Rating string

const (
	RatingNatural      Rating = "natural"      // percentile 75-100
	RatingAccomplished Rating = "accomplished" // 50-74
	RatingCompetent    Rating = "competent"    // 25-49
	RatingUnconvincing Rating = "unconvincing" // 0-24
)

// RatingFor maps a percentile rank to its tier.
func RatingFor(percentile int) Rating {
	switch {
	case percentile >= 75:
		return RatingNatural
	case percentile >= 50:
		return RatingAccomplished
	case percentile >= 25:
		return RatingCompetent
	default:
		return RatingUnconvincing
	}
}

// Options adjusts how Compute interprets its inputs.
type Options struct {
	// History is the full cached record set, independent of the currently
	// selected query window. Consistency and versatility are long-run
	// measures; scoring them on a two-day slice would be noise. Falls back
	// to the cohort records when empty.
	History []labor.Record

	// Snapshots holds intraday captures keyed by hour of day. When present
	// and the query window covers a single day, the trend series switches
	// from daily to hourly resolution.
	Snapshots map[int][]labor.Record

	// PathFilter restricts the analysis to one process path ("" = all).
	PathFilter string
}

// Result is the full peer-relative profile for one employee.
type Result struct {
	EmployeeID   string         `json:"employeeId"`
	EmployeeName string         `json:"employeeName,omitempty"`
	TotalHours   float64        `json:"totalHours"`
	TotalJobs    float64        `json:"totalJobs"`
	JPH          float64        `json:"jph"`
	Percentile   int            `json:"percentile"`
	Rating       Rating         `json:"rating"`
	Consistency  float64        `json:"consistency"`
	Versatility  float64        `json:"versatility"`
	Peers        PeerBaseline   `json:"peers"`
	Positions    []PathPosition `json:"positions"`

	// Trend maps pathId to a chronological series of rate points.
	Trend map[string][]TrendPoint `json:"trend"`
}

// PeerBaseline aggregates the same-path peer cohort for comparison displays.
type PeerBaseline struct {
	Count          int     `json:"count"`
	AvgJPH         float64 `json:"avgJph"`
	AvgJobs        float64 `json:"avgJobs"`
	AvgHours       float64 `json:"avgHours"`
	AvgConsistency float64 `json:"avgConsistency"`
	AvgVersatility float64 `json:"avgVersatility"`
	MaxJPH         float64 `json:"maxJph"`
	MaxJobs        float64 `json:"maxJobs"`
	MaxHours       float64 `json:"maxHours"`
}

// PathPosition rates the employee on one process path they have worked,
// relative to peers on that same path.
type PathPosition struct {
	PathID     string  `json:"pathId"`
	PathName   string  `json:"pathName"`
	JPH        float64 `json:"jph"`
	Percentile int     `json:"percentile"`
	Rating     Rating  `json:"rating"`
	Hours      float64 `json:"hours"`
	Jobs       float64 `json:"jobs"`
}

// PercentileRank returns the 0-100 standing of value among peers, strict
// less-than: ties get no credit. An empty peer list is neutral, 50.
func PercentileRank(value float64, peers []float64) int {
	if len(peers) == 0 {
		return 50
	}
	below := 0
	for _, v := range peers {
		if v < value {
			below++
		}
	}
	return int(math.Round(100 * float64(below) / float64(len(peers))))
}

// ConsistencyScore is 100 minus the coefficient of variation of an
// employee's daily rates, expressed as a percentage and floored at 0. Fewer
// than two days of data is not enough to say anything, so the score defaults
// to the neutral 50.
func ConsistencyScore(dailyRates []float64) float64 {
	if len(dailyRates) < 2 {
		return 50
	}

	var sum float64
	for _, v := range dailyRates {
		sum += v
	}
	mean := sum / float64(len(dailyRates))

	var variance float64
	for _, v := range dailyRates {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(dailyRates))

	cv := 1.0
	if mean > 0 {
		cv = math.Sqrt(variance) / mean
	}
	return math.Max(0, 100-cv*100)
}

// tally is a running hours/jobs accumulator.
type tally struct {
	hours float64
	jobs  float64
}

func (t tally) jph() float64 {
	if t.hours <= 0 {
		return 0
	}
	return t.jobs / t.hours
}

// Compute builds the full peer-relative profile for one employee.
//
// records is the employee's own slice of the selected query window; cohort is
// every record for the same warehouse and window (it may include the
// employee's own records, which are excluded from peer pools). All inputs are
// read-only; Compute holds no locks and is safe to call from any goroutine.
func Compute(employeeID string, records, cohort []labor.Record, opts Options) *Result {
	records = filterPath(records, opts.PathFilter)
	cohort = filterPath(cohort, opts.PathFilter)

	history := opts.History
	if len(history) == 0 {
		history = cohort
	}

	res := &Result{EmployeeID: employeeID}
	for _, r := range records {
		if res.EmployeeName == "" && r.EmployeeName != "" {
			res.EmployeeName = r.EmployeeName
		}
		res.TotalHours += r.Hours
		res.TotalJobs += r.Jobs
	}
	if res.TotalHours > 0 {
		res.JPH = res.TotalJobs / res.TotalHours
	}

	// Paths the employee worked in the window; comparisons only make sense
	// against people doing the same work.
	ownPaths := make(map[string]bool)
	for _, r := range records {
		ownPaths[strings.ToLower(r.PathID)] = true
	}

	// Per-peer aggregates over the same paths, sum-then-divide.
	peerTotals := make(map[string]*tally)
	for _, r := range cohort {
		if r.EmployeeID == employeeID || !ownPaths[strings.ToLower(r.PathID)] {
			continue
		}
		t := peerTotals[r.EmployeeID]
		if t == nil {
			t = &tally{}
			peerTotals[r.EmployeeID] = t
		}
		t.hours += r.Hours
		t.jobs += r.Jobs
	}

	var peerJPHs, peerJobs, peerHours []float64
	for _, t := range peerTotals {
		if t.hours <= 0 {
			continue
		}
		peerJPHs = append(peerJPHs, t.jph())
		peerJobs = append(peerJobs, t.jobs)
		peerHours = append(peerHours, t.hours)
	}

	res.Percentile = PercentileRank(res.JPH, peerJPHs)
	res.Rating = RatingFor(res.Percentile)

	// Daily rates per employee over the full history, same paths only.
	daily := make(map[string]map[string]*tally) // employeeId -> date -> tally
	for _, r := range history {
		if !ownPaths[strings.ToLower(r.PathID)] {
			continue
		}
		byDate := daily[r.EmployeeID]
		if byDate == nil {
			byDate = make(map[string]*tally)
			daily[r.EmployeeID] = byDate
		}
		t := byDate[r.Date]
		if t == nil {
			t = &tally{}
			byDate[r.Date] = t
		}
		t.hours += r.Hours
		t.jobs += r.Jobs
	}

	res.Consistency = ConsistencyScore(dailyRates(daily[employeeID]))

	var peerConsistencies []float64
	for id, byDate := range daily {
		if id == employeeID {
			continue
		}
		if rates := dailyRates(byDate); len(rates) >= 2 {
			peerConsistencies = append(peerConsistencies, ConsistencyScore(rates))
		}
	}

	// Distinct paths per employee over the full history, no path
	// restriction: versatility is about breadth.
	pathsSeen := make(map[string]map[string]bool)
	for _, r := range history {
		if pathsSeen[r.EmployeeID] == nil {
			pathsSeen[r.EmployeeID] = make(map[string]bool)
		}
		pathsSeen[r.EmployeeID][strings.ToLower(r.PathID)] = true
	}

	ownPathCount := len(pathsSeen[employeeID])
	if ownPathCount == 0 {
		ownPathCount = len(ownPaths)
	}
	maxPathCount := 0
	for _, paths := range pathsSeen {
		if len(paths) > maxPathCount {
			maxPathCount = len(paths)
		}
	}
	if maxPathCount < 1 {
		maxPathCount = 1
	}
	res.Versatility = 100 * float64(ownPathCount) / float64(maxPathCount)

	res.Peers = peerBaseline(peerJPHs, peerJobs, peerHours, peerConsistencies, pathsSeen, maxPathCount)
	res.Positions = pathPositions(employeeID, records, cohort)
	res.Trend = trendSeries(records, opts.Snapshots)

	return res
}

func peerBaseline(jphs, jobs, hours, consistencies []float64, pathsSeen map[string]map[string]bool, maxPathCount int) PeerBaseline {
	b := PeerBaseline{
		Count:          len(jphs),
		AvgJPH:         mean(jphs),
		AvgJobs:        mean(jobs),
		AvgHours:       mean(hours),
		AvgConsistency: 50,
		MaxJPH:         maxOf(jphs),
		MaxJobs:        maxOf(jobs),
		MaxHours:       maxOf(hours),
	}
	if len(consistencies) > 0 {
		b.AvgConsistency = mean(consistencies)
	}
	if len(pathsSeen) > 0 {
		sum := 0
		for _, paths := range pathsSeen {
			sum += len(paths)
		}
		avg := float64(sum) / float64(len(pathsSeen))
		b.AvgVersatility = 100 * avg / float64(maxPathCount)
	}
	return b
}

// pathPositions rates the employee on each path they worked, against peers
// restricted to that single path, best percentile first.
func pathPositions(employeeID string, records, cohort []labor.Record) []PathPosition {
	type pathAgg struct {
		name string
		tally
	}
	own := make(map[string]*pathAgg)
	for _, r := range records {
		id := strings.ToLower(r.PathID)
		if id == "" {
			id = "other"
		}
		agg := own[id]
		if agg == nil {
			name := r.PathName
			if name == "" {
				name = r.PathID
			}
			agg = &pathAgg{name: name}
			own[id] = agg
		}
		agg.hours += r.Hours
		agg.jobs += r.Jobs
	}

	var positions []PathPosition
	for pathID, agg := range own {
		if agg.hours <= 0 {
			continue
		}

		perPeer := make(map[string]*tally)
		for _, r := range cohort {
			if r.EmployeeID == employeeID || !strings.EqualFold(r.PathID, pathID) {
				continue
			}
			t := perPeer[r.EmployeeID]
			if t == nil {
				t = &tally{}
				perPeer[r.EmployeeID] = t
			}
			t.hours += r.Hours
			t.jobs += r.Jobs
		}

		var peerJPHs []float64
		for _, t := range perPeer {
			if t.hours > 0 {
				peerJPHs = append(peerJPHs, t.jph())
			}
		}

		pct := PercentileRank(agg.jph(), peerJPHs)
		positions = append(positions, PathPosition{
			PathID:     pathID,
			PathName:   agg.name,
			JPH:        agg.jph(),
			Percentile: pct,
			Rating:     RatingFor(pct),
			Hours:      agg.hours,
			Jobs:       agg.jobs,
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		if positions[i].Percentile != positions[j].Percentile {
			return positions[i].Percentile > positions[j].Percentile
		}
		return positions[i].PathID < positions[j].PathID
	})
	return positions
}

func filterPath(records []labor.Record, pathFilter string) []labor.Record {
	if pathFilter == "" {
		return records
	}
	filtered := make([]labor.Record, 0, len(records))
	for _, r := range records {
		if strings.EqualFold(r.PathID, pathFilter) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func dailyRates(byDate map[string]*tally) []float64 {
	var rates []float64
	for _, t := range byDate {
		if t.hours > 0 {
			rates = append(rates, t.jph())
		}
	}
	return rates
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	var max float64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	return max
}
