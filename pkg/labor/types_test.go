package labor

import (
	"math"
	"testing"
	"time"
)

func TestShiftTagValid(t *testing.T) {
	for _, s := range []ShiftTag{ShiftDay, ShiftNight, ShiftAll} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []ShiftTag{"", "swing", "DAY"} {
		if s.Valid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestCurrentShiftBoundaries(t *testing.T) {
	at := func(hour int) time.Time {
		return time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
	}
	tests := []struct {
		hour int
		want ShiftTag
	}{
		{0, ShiftNight},
		{5, ShiftNight},
		{6, ShiftDay},
		{12, ShiftDay},
		{17, ShiftDay},
		{18, ShiftNight},
		{23, ShiftNight},
	}
	for _, tt := range tests {
		if got := CurrentShift(at(tt.hour)); got != tt.want {
			t.Errorf("CurrentShift(%02d:00) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestJPH(t *testing.T) {
	r := Record{Hours: 2, Jobs: 50}
	if got := r.JPH(); got != 25 {
		t.Errorf("JPH = %v, want 25", got)
	}
	if got := (Record{Hours: 0, Jobs: 50}).JPH(); got != 0 {
		t.Errorf("zero hours JPH = %v, want 0", got)
	}
}

func TestTotalJPHSumsBeforeDividing(t *testing.T) {
	records := []Record{
		{Hours: 10, Jobs: 100}, // 10 jph over a long session
		{Hours: 0.5, Jobs: 50}, // 100 jph over a short burst
	}
	got := TotalJPH(records)
	want := 150.0 / 10.5
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalJPH = %v, want %v", got, want)
	}

	if got := TotalJPH(nil); got != 0 {
		t.Errorf("TotalJPH(nil) = %v, want 0", got)
	}
}
