package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

// TimeOfDay es una hora de reloj "HH:MM" sin fecha.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay acepta "HH:MM" o "HH:MM:SS" (los segundos se descartan,
// Postgres devuelve columnas time con segundos).
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := strings.TrimSpace(s)
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}

	h, err := parseBounded(parts[0], 23)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	m, err := parseBounded(parts[1], 59)
	if err != nil || len(parts[1]) != 2 {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	if len(parts) == 3 {
		if _, err := parseBounded(parts[2], 59); err != nil || len(parts[2]) != 2 {
			return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
	}

	return TimeOfDay{Hour: h, Minute: m}, nil
}

func parseBounded(s string, max int) (int, error) {
	if s == "" || len(s) > 2 {
		return 0, ErrInvalidTimeFormat
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > max {
		return 0, ErrInvalidTimeFormat
	}
	return n, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// MinutesSinceMidnight se usa para ordenar slots y para el retraso de alertas.
func (t TimeOfDay) MinutesSinceMidnight() int {
	return t.Hour*60 + t.Minute
}

// MinutesSinceMidnight parsea y devuelve minutos desde medianoche.
func MinutesSinceMidnight(s string) (int, error) {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		return 0, err
	}
	return t.MinutesSinceMidnight(), nil
}

// MinutesOfDay devuelve los minutos transcurridos del día de t en loc.
func MinutesOfDay(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return lt.Hour()*60 + lt.Minute()
}

// NormalizeTimes valida, canoniza a HH:MM, deduplica y ordena ascendente.
func NormalizeTimes(in []string) ([]string, error) {
	seen := make(map[int]struct{}, len(in))
	parsed := make([]TimeOfDay, 0, len(in))

	for _, raw := range in {
		t, err := ParseTimeOfDay(raw)
		if err != nil {
			return nil, err
		}
		key := t.MinutesSinceMidnight()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		parsed = append(parsed, t)
	}

	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].MinutesSinceMidnight() < parsed[j].MinutesSinceMidnight()
	})

	out := make([]string, 0, len(parsed))
	for _, t := range parsed {
		out = append(out, t.String())
	}
	return out, nil
}

// SortTimes ordena por minutos desde medianoche; entradas inválidas van al final.
func SortTimes(in []string) []string {
	out := append([]string(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		mi, errI := MinutesSinceMidnight(out[i])
		mj, errJ := MinutesSinceMidnight(out[j])
		if errI != nil || errJ != nil {
			return errI == nil && errJ != nil
		}
		return mi < mj
	})
	return out
}

// SlotTimestamp combina un día calendario con una hora de reloj en loc.
// En huecos de horario de verano time.Date normaliza hacia adelante.
func SlotTimestamp(day Date, timeOfDay string, loc *time.Location) (time.Time, error) {
	t, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(day.Year, day.Month, day.Day, t.Hour, t.Minute, 0, 0, loc), nil
}

type DayClass string

const (
	DayPast   DayClass = "past"
	DayToday  DayClass = "today"
	DayFuture DayClass = "future"
)

// ClassifyDay compara solo fechas calendario en loc, nunca timestamps.
func ClassifyDay(day Date, now time.Time, loc *time.Location) DayClass {
	today := DateOf(now, loc)
	switch {
	case day.Before(today):
		return DayPast
	case day.After(today):
		return DayFuture
	default:
		return DayToday
	}
}

// LoadLocation resuelve la zona de la mascota; vacío o inválido => fallback.
func LoadLocation(name string, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}
