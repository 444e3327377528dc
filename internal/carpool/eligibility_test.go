package carpool

import (
	"testing"
	"time"

	"github.com/example/share-commute/internal/models"
)

func rideAt(h, m int) models.Ride {
	return models.Ride{EmployeeID: "E001", VacantSeats: 1, Time: models.NewClock(h, m), VehicleType: models.VehicleCar}
}

func TestUpcoming(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 30, 45, 0, time.UTC)
	p := Upcoming()
	if !p(rideAt(14, 30), now) {
		t.Fatal("current minute should be bookable")
	}
	if p(rideAt(14, 29), now) {
		t.Fatal("past ride should not be bookable")
	}
	if !p(rideAt(23, 0), now) {
		t.Fatal("later today should be bookable")
	}
}

func TestWithin(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	p := Within(time.Hour)
	cases := []struct {
		ride models.Ride
		want bool
	}{
		{rideAt(9, 0), false},
		{rideAt(9, 15), true},
		{rideAt(10, 0), true},
		{rideAt(10, 15), true},
		{rideAt(10, 16), false},
	}
	for _, c := range cases {
		if got := p(c.ride, now); got != c.want {
			t.Fatalf("ride at %s: got %v, want %v", c.ride.Time, got, c.want)
		}
	}

	late := time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC)
	if !p(rideAt(23, 59), late) {
		t.Fatal("window near midnight should reach end of day")
	}
}

func TestPolicyFor(t *testing.T) {
	if p, err := PolicyFor("any", 0); err != nil || p != nil {
		t.Fatalf("any: %v", err)
	}
	if _, err := PolicyFor("upcoming", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := PolicyFor("window", 0); err == nil {
		t.Fatal("window without duration should fail")
	}
	if _, err := PolicyFor("Window", time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, err := PolicyFor("tomorrow", time.Hour); err == nil {
		t.Fatal("unknown policy should fail")
	}
}

func TestAvailableRidesAppliesPolicy(t *testing.T) {
	s := Seed(seedRides())
	now := time.Date(2025, 6, 2, 13, 45, 0, 0, time.UTC)
	got := s.AvailableRides("E999", now, Within(time.Hour))
	if len(got) != 1 || got[0].EmployeeID != "E002" {
		t.Fatalf("expected only the 14:30 ride, got %+v", got)
	}
}

func TestFilterByVehicle(t *testing.T) {
	rides := seedRides()
	if got := FilterByVehicle(rides, models.VehicleCar); len(got) != 2 {
		t.Fatalf("expected 2 cars, got %d", len(got))
	}
	if got := FilterByVehicle(rides, "bike"); len(got) != 1 {
		t.Fatalf("expected 1 bike, got %d", len(got))
	}
	if got := FilterByVehicle(rides, ""); len(got) != 3 {
		t.Fatalf("empty filter should keep all, got %d", len(got))
	}
}
