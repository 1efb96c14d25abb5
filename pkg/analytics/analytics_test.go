package analytics

import (
	"math"
	"testing"

	"floorpulse/pkg/labor"
)

func TestPercentileRank(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		peers []float64
		want  int
	}{
		{"no peers is neutral", 30, nil, 50},
		{"above all peers", 30, []float64{10, 20, 25}, 100},
		{"below all peers", 5, []float64{10, 20, 25}, 0},
		{"two of three below", 30, []float64{20, 25, 35}, 67},
		{"ties get no credit", 20, []float64{20, 20, 20}, 0},
		{"half below", 15, []float64{10, 20}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PercentileRank(tt.value, tt.peers); got != tt.want {
				t.Errorf("PercentileRank(%v, %v) = %d, want %d", tt.value, tt.peers, got, tt.want)
			}
		})
	}
}

func TestRatingFor(t *testing.T) {
	tests := []struct {
		percentile int
		want       Rating
	}{
		{100, RatingNatural},
		{75, RatingNatural},
		{74, RatingAccomplished},
		{67, RatingAccomplished},
		{50, RatingAccomplished},
		{49, RatingCompetent},
		{25, RatingCompetent},
		{24, RatingUnconvincing},
		{0, RatingUnconvincing},
	}
	for _, tt := range tests {
		if got := RatingFor(tt.percentile); got != tt.want {
			t.Errorf("RatingFor(%d) = %s, want %s", tt.percentile, got, tt.want)
		}
	}
}

func TestConsistencyScore(t *testing.T) {
	if got := ConsistencyScore([]float64{30}); got != 50 {
		t.Errorf("single day must be neutral 50, got %v", got)
	}
	if got := ConsistencyScore(nil); got != 50 {
		t.Errorf("no days must be neutral 50, got %v", got)
	}
	if got := ConsistencyScore([]float64{30, 30, 30}); got != 100 {
		t.Errorf("identical daily rates must score 100, got %v", got)
	}
	if got := ConsistencyScore([]float64{0, 0}); got != 0 {
		t.Errorf("zero mean must floor at 0, got %v", got)
	}

	// cv of {20, 40} = 10/30, score = 100 - 100/3.
	got := ConsistencyScore([]float64{20, 40})
	want := 100 - 100.0/3.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("ConsistencyScore({20,40}) = %v, want %v", got, want)
	}

	// Wild swings can push cv past 1; the floor holds.
	if got := ConsistencyScore([]float64{1, 100, 1, 100}); got < 0 {
		t.Errorf("score must never go negative, got %v", got)
	}
}

func TestSumThenDivideNotMeanOfRatios(t *testing.T) {
	// A 10-minute burst at 60 JPH must not outweigh 8 steady hours at 30.
	records := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Hours: 8, Jobs: 240},        // 30 JPH
		{EmployeeID: "x", PathID: "pick", Hours: 1.0 / 6.0, Jobs: 10}, // 60 JPH for 10 min
	}
	res := Compute("x", records, records, Options{})

	want := (240.0 + 10.0) / (8.0 + 1.0/6.0)
	if math.Abs(res.JPH-want) > 1e-9 {
		t.Errorf("JPH = %v, want aggregate %v", res.JPH, want)
	}
	// The mean of ratios would be 45; the aggregate is ~30.6.
	if res.JPH > 35 {
		t.Errorf("JPH %v looks like a mean of per-record ratios", res.JPH)
	}
}

func TestComputePercentileAndRating(t *testing.T) {
	// Scenario: X works 8h/240 jobs in pick (rate 30); peers rate 20, 25, 35.
	cohort := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "p1", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 160},
		{EmployeeID: "p2", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 200},
		{EmployeeID: "p3", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 280},
	}
	own := cohort[:1]

	res := Compute("x", own, cohort, Options{})
	if res.JPH != 30 {
		t.Fatalf("JPH = %v, want 30", res.JPH)
	}
	if res.Percentile != 67 {
		t.Errorf("Percentile = %d, want 67", res.Percentile)
	}
	if res.Rating != RatingAccomplished {
		t.Errorf("Rating = %s, want accomplished", res.Rating)
	}
	if res.Peers.Count != 3 {
		t.Errorf("peer count = %d, want 3 (target excluded)", res.Peers.Count)
	}
}

func TestComputePeerPoolRestrictedToOwnPaths(t *testing.T) {
	cohort := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "p1", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 160},
		// p2 only stows; they are not a comparable peer.
		{EmployeeID: "p2", PathID: "stow", Date: "2026-02-01", Hours: 8, Jobs: 800},
	}
	res := Compute("x", cohort[:1], cohort, Options{})
	if res.Peers.Count != 1 {
		t.Errorf("peer count = %d, want 1 (different-path workers excluded)", res.Peers.Count)
	}
	if res.Percentile != 100 {
		t.Errorf("Percentile = %d, want 100", res.Percentile)
	}
}

func TestComputeNoRecordsIsNeutral(t *testing.T) {
	res := Compute("ghost", nil, nil, Options{})
	if res.JPH != 0 || res.TotalHours != 0 {
		t.Errorf("empty input must produce zero totals: %+v", res)
	}
	if res.Percentile != 50 {
		t.Errorf("Percentile = %d, want neutral 50", res.Percentile)
	}
	if res.Consistency != 50 {
		t.Errorf("Consistency = %v, want neutral 50", res.Consistency)
	}
}

func TestComputeConsistencyUsesFullHistory(t *testing.T) {
	// Window holds one day; history holds three days of steady work.
	window := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-03", Hours: 8, Jobs: 240},
	}
	history := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-02", Hours: 8, Jobs: 240},
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-03", Hours: 8, Jobs: 240},
	}
	res := Compute("x", window, window, Options{History: history})
	if res.Consistency != 100 {
		t.Errorf("Consistency = %v, want 100 over three identical days", res.Consistency)
	}
}

func TestComputeVersatility(t *testing.T) {
	history := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 4, Jobs: 120},
		{EmployeeID: "x", PathID: "stow", Date: "2026-02-01", Hours: 4, Jobs: 100},
		{EmployeeID: "p1", PathID: "pick", Date: "2026-02-01", Hours: 2, Jobs: 40},
		{EmployeeID: "p1", PathID: "stow", Date: "2026-02-01", Hours: 2, Jobs: 40},
		{EmployeeID: "p1", PathID: "pack", Date: "2026-02-01", Hours: 2, Jobs: 40},
		{EmployeeID: "p1", PathID: "sort", Date: "2026-02-01", Hours: 2, Jobs: 40},
	}
	own := history[:2]

	res := Compute("x", own, history, Options{History: history})
	// x works 2 of the 4 paths the widest peer works.
	if res.Versatility != 50 {
		t.Errorf("Versatility = %v, want 50", res.Versatility)
	}
}

func TestComputePathFilter(t *testing.T) {
	cohort := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "x", PathID: "stow", Date: "2026-02-01", Hours: 8, Jobs: 80},
		{EmployeeID: "p1", PathID: "stow", Date: "2026-02-01", Hours: 8, Jobs: 160},
	}
	res := Compute("x", cohort[:2], cohort, Options{PathFilter: "PICK"})
	if res.TotalJobs != 240 {
		t.Errorf("path filter must be case-insensitive and exclusive: jobs = %v", res.TotalJobs)
	}
	if res.Peers.Count != 0 {
		t.Errorf("stow-only peer must be filtered out, count = %d", res.Peers.Count)
	}
}

func TestComputePathPositions(t *testing.T) {
	cohort := []labor.Record{
		{EmployeeID: "x", PathID: "pick", PathName: "Pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "x", PathID: "stow", PathName: "Stow", Date: "2026-02-01", Hours: 8, Jobs: 80},
		{EmployeeID: "p1", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 160},
		{EmployeeID: "p1", PathID: "stow", Date: "2026-02-01", Hours: 8, Jobs: 160},
	}
	res := Compute("x", cohort[:2], cohort, Options{})

	if len(res.Positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(res.Positions))
	}
	// pick (above p1) must sort before stow (below p1).
	if res.Positions[0].PathID != "pick" || res.Positions[0].Percentile != 100 {
		t.Errorf("first position wrong: %+v", res.Positions[0])
	}
	if res.Positions[1].PathID != "stow" || res.Positions[1].Percentile != 0 {
		t.Errorf("second position wrong: %+v", res.Positions[1])
	}
}

func TestTrendDailySeries(t *testing.T) {
	records := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-02", Hours: 8, Jobs: 160},
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-03", Hours: 0, Jobs: 0}, // dropped
	}
	res := Compute("x", records, records, Options{})

	series := res.Trend["pick"]
	if len(series) != 2 {
		t.Fatalf("got %d trend points, want 2 (zero-hour bucket dropped)", len(series))
	}
	if series[0].Label != "2026-02-01" || series[1].Label != "2026-02-02" {
		t.Errorf("series not chronological: %+v", series)
	}
	if series[0].JPH != 30 || series[1].JPH != 20 {
		t.Errorf("per-day rates wrong: %+v", series)
	}
}

func TestTrendHourlyFromSnapshots(t *testing.T) {
	records := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 6, Jobs: 180},
	}
	snapshots := map[int][]labor.Record{
		7:  {{EmployeeID: "x", PathID: "pick", Hours: 1, Jobs: 25}},
		13: {{EmployeeID: "x", PathID: "pick", Hours: 6, Jobs: 180}},
		9:  {{EmployeeID: "other", PathID: "pick", Hours: 2, Jobs: 70}},
	}
	res := Compute("x", records, records, Options{Snapshots: snapshots})

	series := res.Trend["pick"]
	if len(series) != 2 {
		t.Fatalf("got %d hourly points, want 2 (other employees excluded)", len(series))
	}
	if series[0].Label != "7 AM" || series[1].Label != "1 PM" {
		t.Errorf("hour labels wrong: %+v", series)
	}
}

func TestTrendStaysDailyAcrossMultipleDays(t *testing.T) {
	records := []labor.Record{
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-01", Hours: 8, Jobs: 240},
		{EmployeeID: "x", PathID: "pick", Date: "2026-02-02", Hours: 8, Jobs: 160},
	}
	snapshots := map[int][]labor.Record{
		7: {{EmployeeID: "x", PathID: "pick", Hours: 1, Jobs: 25}},
	}
	res := Compute("x", records, records, Options{Snapshots: snapshots})

	series := res.Trend["pick"]
	if len(series) != 2 || series[0].Label != "2026-02-01" {
		t.Errorf("multi-day windows must stay daily even with snapshots: %+v", series)
	}
}
