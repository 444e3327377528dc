package carpool

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/share-commute/internal/models"
)

// Eligibility decides whether a ride's schedule makes it bookable at now.
// Seat and ownership checks are applied separately by the store.
type Eligibility func(r models.Ride, now time.Time) bool

const (
	PolicyAny      = "any"
	PolicyUpcoming = "upcoming"
	PolicyWindow   = "window"
)

// AnyTime places no restriction on the ride's time.
func AnyTime() Eligibility { return nil }

// Upcoming accepts rides later today, including the current minute.
func Upcoming() Eligibility {
	return func(r models.Ride, now time.Time) bool {
		return r.Time >= models.ClockOf(now)
	}
}

// Within accepts rides starting between now and now+window. The window never
// extends past the end of the day.
func Within(window time.Duration) Eligibility {
	return func(r models.Ride, now time.Time) bool {
		from := models.ClockOf(now)
		return r.Time >= from && r.Time <= from.Add(window)
	}
}

// PolicyFor maps a configured policy name to its predicate.
func PolicyFor(name string, window time.Duration) (Eligibility, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyAny, "":
		return AnyTime(), nil
	case PolicyUpcoming:
		return Upcoming(), nil
	case PolicyWindow:
		if window <= 0 {
			return nil, fmt.Errorf("window policy needs a positive window, got %s", window)
		}
		return Within(window), nil
	default:
		return nil, fmt.Errorf("unknown eligibility policy %q", name)
	}
}

// Bookable reports whether employeeID may book r at now under eligible.
func Bookable(r models.Ride, employeeID string, now time.Time, eligible Eligibility) bool {
	if r.EmployeeID == employeeID || r.VacantSeats <= 0 {
		return false
	}
	return eligible == nil || eligible(r, now)
}

// FilterByVehicle keeps rides of the given type; an empty type keeps all.
func FilterByVehicle(rides []models.Ride, vt models.VehicleType) []models.Ride {
	if vt == "" {
		return rides
	}
	out := make([]models.Ride, 0, len(rides))
	for _, r := range rides {
		if strings.EqualFold(string(r.VehicleType), string(vt)) {
			out = append(out, r)
		}
	}
	return out
}
