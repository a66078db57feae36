package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Skipf("tzdata not available for %s: %v", name, err)
	}
	return loc
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{name: "canonical", in: "08:00", want: TimeOfDay{Hour: 8}},
		{name: "single digit hour", in: "8:05", want: TimeOfDay{Hour: 8, Minute: 5}},
		{name: "with seconds", in: "20:30:00", want: TimeOfDay{Hour: 20, Minute: 30}},
		{name: "trimmed", in: " 23:59 ", want: TimeOfDay{Hour: 23, Minute: 59}},
		{name: "hour out of range", in: "24:00", wantErr: true},
		{name: "minute out of range", in: "10:60", wantErr: true},
		{name: "single digit minute", in: "10:5", wantErr: true},
		{name: "no separator", in: "0800", wantErr: true},
		{name: "letters", in: "ab:cd", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTimeFormat) {
					t.Fatalf("expected ErrInvalidTimeFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTimes_SortsAndDedupes(t *testing.T) {
	got, err := NormalizeTimes([]string{"20:00", "8:00", "08:00", "12:30:00"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"08:00", "12:30", "20:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := NormalizeTimes([]string{"08:00", "nope"}); !errors.Is(err, ErrInvalidTimeFormat) {
		t.Errorf("expected ErrInvalidTimeFormat, got %v", err)
	}
}

func TestSlotTimestamp_UsesPetTimezone(t *testing.T) {
	oslo := mustLoc(t, "Europe/Oslo")
	day := Date{Year: 2025, Month: time.January, Day: 15}

	got, err := SlotTimestamp(day, "08:00", oslo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, time.January, 15, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got.UTC(), want)
	}

	if _, err := SlotTimestamp(day, "8h", oslo); !errors.Is(err, ErrInvalidTimeFormat) {
		t.Errorf("expected ErrInvalidTimeFormat, got %v", err)
	}
}

func TestClassifyDay_ComparesCalendarDatesOnly(t *testing.T) {
	oslo := mustLoc(t, "Europe/Oslo")
	// 23:30 UTC el 14 ya es día 15 en Oslo.
	now := time.Date(2025, time.January, 14, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		day  Date
		want DayClass
	}{
		{Date{2025, time.January, 14}, DayPast},
		{Date{2025, time.January, 15}, DayToday},
		{Date{2025, time.January, 16}, DayFuture},
	}
	for _, tt := range tests {
		if got := ClassifyDay(tt.day, now, oslo); got != tt.want {
			t.Errorf("ClassifyDay(%s) = %s, want %s", tt.day, got, tt.want)
		}
	}
}

func TestDate_BoundsAndArithmetic(t *testing.T) {
	d := Date{Year: 2024, Month: time.February, Day: 28}
	if got := d.AddDays(1).String(); got != "2024-02-29" {
		t.Errorf("AddDays leap year: got %s", got)
	}
	if got := d.AddDays(2).String(); got != "2024-03-01" {
		t.Errorf("AddDays month rollover: got %s", got)
	}

	start, end := d.Bounds(time.UTC)
	if !start.Equal(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", start)
	}
	if !end.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)) {
		t.Errorf("unexpected end %v", end)
	}

	parsed, err := ParseDate("2024-02-28")
	if err != nil || !parsed.Equal(d) {
		t.Errorf("ParseDate: got %v err=%v", parsed, err)
	}
	if _, err := ParseDate("28/02/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMinutesOfDay(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 15, 0, 0, time.UTC)
	if got := MinutesOfDay(now, time.UTC); got != 615 {
		t.Errorf("got %d, want 615", got)
	}
	m, err := MinutesSinceMidnight("20:00")
	if err != nil || m != 1200 {
		t.Errorf("got %d err=%v", m, err)
	}
}

func TestLoadLocation_FallsBack(t *testing.T) {
	if got := LoadLocation("", time.UTC); got != time.UTC {
		t.Errorf("expected fallback for empty name")
	}
	if got := LoadLocation("Not/AZone", time.UTC); got != time.UTC {
		t.Errorf("expected fallback for invalid name")
	}
}

func TestSortTimes(t *testing.T) {
	got := SortTimes([]string{"20:00", "08:00", "12:00"})
	want := []string{"08:00", "12:00", "20:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
