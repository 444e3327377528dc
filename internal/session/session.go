package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/share-commute/internal/carpool"
	"github.com/example/share-commute/internal/models"
	"github.com/example/share-commute/internal/observability"
	"github.com/example/share-commute/internal/validation"
)

// Session is one employee-facing view of the carpool: its own rides and
// membership sets, independent of every other session.
type Session struct {
	ID  string
	reg *Registry

	mu     sync.Mutex
	state  carpool.State
	closed bool // set once swept; guarded by mu
	seen   atomic.Int64
}

type EmployeeStatus struct {
	EmployeeID string `json:"employee_id"`
	Posted     bool   `json:"posted"`
	Booked     bool   `json:"booked"`
}

func (s *Session) Status(employeeID string) EmployeeStatus {
	st := s.State()
	return EmployeeStatus{EmployeeID: employeeID, Posted: st.HasPosted(employeeID), Booked: st.HasBooked(employeeID)}
}

// State returns the current state value; later changes do not affect it.
func (s *Session) State() carpool.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AvailableRides lists what employeeID may book right now, optionally
// restricted to one vehicle type.
func (s *Session) AvailableRides(employeeID string, vt models.VehicleType) []models.Ride {
	rides := s.State().AvailableRides(employeeID, s.reg.now(), s.reg.policy)
	rides = carpool.FilterByVehicle(rides, vt)
	observability.AvailableListSize.Observe(float64(len(rides)))
	return rides
}

// PostRide validates form and adds it as employeeID's ride. An employee posts
// at most once per session.
func (s *Session) PostRide(ctx context.Context, employeeID string, form validation.RideForm) (models.Ride, error) {
	ride, err := s.postRide(ctx, employeeID, form)
	if err != nil {
		return models.Ride{}, err
	}
	observability.RidesPostedTotal.Inc()
	s.reg.logger.Info("ride posted", "session_id", s.ID, "employee_id", employeeID, "ride_id", ride.ID)
	s.publish(ctx, models.EventRidePosted, employeeID, ride)
	return ride, nil
}

func (s *Session) postRide(ctx context.Context, employeeID string, form validation.RideForm) (models.Ride, error) {
	now := s.reg.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.HasPosted(employeeID) {
		return models.Ride{}, ErrAlreadyPosted
	}
	f, err := validation.ValidateRide(form, now)
	if err != nil {
		return models.Ride{}, err
	}
	ride, err := f.Ride(employeeID)
	if err != nil {
		return models.Ride{}, err
	}
	next, stored := s.state.AddRide(ride)
	if err := s.commit(ctx, next); err != nil {
		return models.Ride{}, err
	}
	return stored, nil
}

// BookRide takes a seat on rideID for employeeID. An employee books at most
// once per session and never their own ride.
func (s *Session) BookRide(ctx context.Context, employeeID string, rideID models.RideID) (models.Ride, error) {
	ride, reason, err := s.bookRide(ctx, employeeID, rideID)
	if err != nil {
		if reason != "" {
			observability.BookingsRejectedTotal.WithLabelValues(reason).Inc()
			s.reg.logger.Debug("booking refused", "session_id", s.ID, "employee_id", employeeID, "ride_id", rideID, "reason", reason)
		}
		return models.Ride{}, err
	}
	observability.BookingsTotal.Inc()
	s.reg.logger.Info("ride booked", "session_id", s.ID, "employee_id", employeeID, "ride_id", ride.ID, "vacant_seats", ride.VacantSeats)
	s.publish(ctx, models.EventRideBooked, employeeID, ride)
	return ride, nil
}

func (s *Session) bookRide(ctx context.Context, employeeID string, rideID models.RideID) (models.Ride, string, error) {
	now := s.reg.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.HasBooked(employeeID) {
		return models.Ride{}, "already_booked", ErrAlreadyBooked
	}
	ride, ok := s.state.Ride(rideID)
	if !ok {
		return models.Ride{}, "not_found", fmt.Errorf("ride %d: %w", rideID, ErrRideUnavailable)
	}
	if ride.EmployeeID == employeeID {
		return models.Ride{}, "own_ride", ErrOwnRide
	}
	if !carpool.Bookable(ride, employeeID, now, s.reg.policy) {
		return models.Ride{}, "not_eligible", fmt.Errorf("ride %d: %w", rideID, ErrRideUnavailable)
	}
	next, ok := s.state.BookRide(employeeID, rideID)
	if !ok {
		return models.Ride{}, "full", fmt.Errorf("ride %d: %w", rideID, ErrRideUnavailable)
	}
	if err := s.commit(ctx, next); err != nil {
		return models.Ride{}, "", err
	}
	booked, _ := next.Ride(rideID)
	return booked, "", nil
}

// commit persists next and only then makes it current. Callers hold s.mu.
// A swept session accepts no further changes.
func (s *Session) commit(ctx context.Context, next carpool.State) error {
	if s.closed {
		return fmt.Errorf("%w: %s expired", ErrSessionNotFound, s.ID)
	}
	if err := s.reg.store.Save(ctx, s.ID, next.Snapshot()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	s.state = next
	return nil
}

func (s *Session) publish(ctx context.Context, typ models.EventType, employeeID string, ride models.Ride) {
	ev := models.RideEvent{Type: typ, SessionID: s.ID, EmployeeID: employeeID, Ride: ride, At: s.reg.now()}
	if err := s.reg.events.Publish(ctx, ev); err != nil {
		s.reg.logger.Warn("publish ride event failed", "session_id", s.ID, "type", typ, "error", err)
	}
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) touch(t time.Time) { s.seen.Store(t.UnixNano()) }

func (s *Session) lastSeen() time.Time { return time.Unix(0, s.seen.Load()) }
