package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day in minutes since midnight.
type Clock int

const (
	MinutesPerDay = 24 * 60
	EndOfDay      = Clock(MinutesPerDay - 1)
)

func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ClockOf truncates t to minute precision in t's location.
func ClockOf(t time.Time) Clock { return NewClock(t.Hour(), t.Minute()) }

// ParseClock accepts "HH:MM" (and "HH:MM:SS", seconds ignored).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return NewClock(h, m), nil
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Display renders the clock the way the ride list shows it, e.g. "2:30 PM".
func (c Clock) Display() string {
	ampm := "AM"
	if c.Hour() >= 12 {
		ampm = "PM"
	}
	h := c.Hour() % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute(), ampm)
}

// Add returns c shifted by d, capped at the end of the day.
func (c Clock) Add(d time.Duration) Clock {
	v := int(c) + int(d/time.Minute)
	if v > int(EndOfDay) {
		return EndOfDay
	}
	if v < 0 {
		return 0
	}
	return Clock(v)
}

func (c Clock) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// UnmarshalJSON accepts "HH:MM" as well as an RFC 3339 timestamp. A timestamp
// is read in time.Local before its hour and minute are kept.
func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	return c.set(s)
}

func (c Clock) MarshalYAML() (interface{}, error) { return c.String(), nil }

func (c *Clock) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return c.set(s)
}

func (c *Clock) set(s string) error {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*c = ClockOf(t.In(time.Local))
		return nil
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
