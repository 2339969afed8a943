package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock resolves the current instant. Jobs take a Clock so tests can pin time.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to the Clock interface.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time { return f() }

// System returns a Clock backed by time.Now, normalised to UTC.
func System() Clock {
	return Func(func() time.Time { return time.Now().UTC() })
}

// Fixed returns a Clock that always reports the provided instant.
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// TimeOfDay is a local wall-clock time with minute precision, as stored on a
// user's reminder settings.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a "HH:MM" string. Seconds and sub-minute precision are
// not supported; reminder times are quantised to minutes by the UI.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("clock: malformed time of day %q", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("clock: malformed hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("clock: malformed minute in %q", value)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("clock: time of day %q out of range", value)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// LoadLocation resolves an IANA timezone name. Blank names fall back to UTC so
// users who never completed onboarding still get sensible scheduling.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// DayWindow is the half-open UTC interval [Start, End) covering one local
// calendar day. Window length varies on DST transition days.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the instant falls inside the window.
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// LocalDayWindow computes the UTC window of the local calendar day containing
// the provided instant.
func LocalDayWindow(now time.Time, loc *time.Location) DayWindow {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return DayWindow{Start: start.UTC(), End: end.UTC()}
}

// At anchors a time of day on the local calendar day containing now and
// returns the resulting absolute instant in UTC.
func At(now time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	local := now.In(loc)
	scheduled := time.Date(local.Year(), local.Month(), local.Day(), tod.Hour, tod.Minute, 0, 0, loc)
	return scheduled.UTC()
}

// StartOfUTCDay truncates an instant to midnight UTC.
func StartOfUTCDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
