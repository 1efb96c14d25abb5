package labor

import "time"

// ShiftTag identifies which shift a cached batch of records belongs to.
// ShiftAll marks batches that were captured without shift discrimination.
type ShiftTag string

const (
	ShiftDay   ShiftTag = "day"
	ShiftNight ShiftTag = "night"
	ShiftAll   ShiftTag = "all"
)

// Valid reports whether the tag is one of day, night, all.
func (s ShiftTag) Valid() bool {
	switch s {
	case ShiftDay, ShiftNight, ShiftAll:
		return true
	}
	return false
}

// Day shift runs 06:00-17:59, night shift covers the rest.
const (
	DayShiftStartHour = 6
	DayShiftEndHour   = 18
)

// CurrentShift returns the shift that is active at t.
func CurrentShift(t time.Time) ShiftTag {
	h := t.Hour()
	if h >= DayShiftStartHour && h < DayShiftEndHour {
		return ShiftDay
	}
	return ShiftNight
}

// Record is one observed work session or aggregate for one employee on one
// process path on one day. Records are immutable once stored; updates replace
// the owning partition wholesale.
type Record struct {
	EmployeeID   string   `json:"employeeId"`
	EmployeeName string   `json:"employeeName,omitempty"`
	PathID       string   `json:"pathId"`
	PathName     string   `json:"pathName,omitempty"`
	Date         string   `json:"date"` // YYYY-MM-DD
	Shift        ShiftTag `json:"shift"`
	Hours        float64  `json:"hours"`
	Jobs         float64  `json:"jobs"`
}

// JPH returns the record's jobs-per-hour rate, 0 when no hours were worked.
func (r Record) JPH() float64 {
	if r.Hours <= 0 {
		return 0
	}
	return r.Jobs / r.Hours
}

// TotalJPH computes an aggregate jobs-per-hour rate over a set of records.
// Always sum-then-divide: averaging per-record rates would let a 10-minute
// session count the same as a 10-hour one.
func TotalJPH(records []Record) float64 {
	var hours, jobs float64
	for _, r := range records {
		hours += r.Hours
		jobs += r.Jobs
	}
	if hours <= 0 {
		return 0
	}
	return jobs / hours
}
