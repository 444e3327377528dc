// Package carpool holds the ride store of a single session: the posted rides
// and the sets of employees who have posted or booked.
//
// State is a value. Mutators leave the receiver untouched and return the
// resulting state, so a caller can compute, persist and only then commit.
package carpool

import (
	"sort"
	"time"

	"github.com/example/share-commute/internal/models"
)

type State struct {
	rides  []models.Ride
	posted map[string]struct{}
	booked map[string]struct{}
	nextID models.RideID
}

func NewState() State {
	return State{
		posted: map[string]struct{}{},
		booked: map[string]struct{}{},
		nextID: 1,
	}
}

// Seed builds a state holding the fixture rides under fresh ids. The posted
// and booked sets start empty.
func Seed(rides []models.Ride) State {
	s := NewState()
	for _, r := range rides {
		r.ID = s.nextID
		s.nextID++
		s.rides = append(s.rides, r)
	}
	return s
}

// AddRide appends r under a freshly assigned id and marks its employee as
// having posted. It performs no validation.
func (s State) AddRide(r models.Ride) (State, models.Ride) {
	next := s.clone()
	if next.nextID <= 0 {
		next.nextID = 1
	}
	r.ID = next.nextID
	next.nextID++
	next.rides = append(next.rides, r)
	next.posted[r.EmployeeID] = struct{}{}
	return next, r
}

func (s State) HasPosted(employeeID string) bool {
	_, ok := s.posted[employeeID]
	return ok
}

func (s State) HasBooked(employeeID string) bool {
	_, ok := s.booked[employeeID]
	return ok
}

// AvailableRides lists, in posting order, the rides employeeID did not post
// that still have a vacant seat and pass the eligibility predicate.
func (s State) AvailableRides(employeeID string, now time.Time, eligible Eligibility) []models.Ride {
	out := make([]models.Ride, 0, len(s.rides))
	for _, r := range s.rides {
		if Bookable(r, employeeID, now, eligible) {
			out = append(out, r)
		}
	}
	return out
}

// BookRide takes one seat on rideID for employeeID. Unknown or full rides are
// a no-op and report false.
func (s State) BookRide(employeeID string, rideID models.RideID) (State, bool) {
	idx := s.indexOf(rideID)
	if idx < 0 || s.rides[idx].VacantSeats <= 0 {
		return s, false
	}
	next := s.clone()
	next.rides[idx].VacantSeats--
	next.booked[employeeID] = struct{}{}
	return next, true
}

func (s State) Ride(id models.RideID) (models.Ride, bool) {
	idx := s.indexOf(id)
	if idx < 0 {
		return models.Ride{}, false
	}
	return s.rides[idx], true
}

func (s State) Rides() []models.Ride {
	out := make([]models.Ride, len(s.rides))
	copy(out, s.rides)
	return out
}

func (s State) Snapshot() models.Snapshot {
	return models.Snapshot{
		Rides:  s.Rides(),
		Posted: keys(s.posted),
		Booked: keys(s.booked),
		NextID: s.nextID,
	}
}

// FromSnapshot restores a state. The next id is never allowed to collide
// with a ride already present.
func FromSnapshot(snap models.Snapshot) State {
	s := NewState()
	s.rides = make([]models.Ride, len(snap.Rides))
	copy(s.rides, snap.Rides)
	for _, id := range snap.Posted {
		s.posted[id] = struct{}{}
	}
	for _, id := range snap.Booked {
		s.booked[id] = struct{}{}
	}
	s.nextID = snap.NextID
	for _, r := range s.rides {
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	if s.nextID <= 0 {
		s.nextID = 1
	}
	return s
}

func (s State) indexOf(id models.RideID) int {
	for i := range s.rides {
		if s.rides[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) clone() State {
	next := State{
		rides:  make([]models.Ride, len(s.rides), len(s.rides)+1),
		posted: make(map[string]struct{}, len(s.posted)+1),
		booked: make(map[string]struct{}, len(s.booked)+1),
		nextID: s.nextID,
	}
	copy(next.rides, s.rides)
	for k := range s.posted {
		next.posted[k] = struct{}{}
	}
	for k := range s.booked {
		next.booked[k] = struct{}{}
	}
	return next
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
