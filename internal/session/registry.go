// Package session owns the per-session carpool state. It applies the rules
// the store leaves to its caller (one post and one booking per employee),
// mirrors every change to the configured persister and announces it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/share-commute/internal/carpool"
	"github.com/example/share-commute/internal/events"
	"github.com/example/share-commute/internal/models"
	"github.com/example/share-commute/internal/observability"
	"github.com/example/share-commute/internal/storage"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrAlreadyPosted   = errors.New("employee already posted a ride in this session")
	ErrAlreadyBooked   = errors.New("employee already booked a ride in this session")
	ErrOwnRide         = errors.New("employee cannot book their own ride")
	ErrRideUnavailable = errors.New("ride is not available")
)

// Deleter is implemented by persisters that can drop an expired session.
type Deleter interface {
	Delete(ctx context.Context, sessionID string) error
}

type Options struct {
	Seed   []models.Ride
	Store  storage.Persister
	Events events.Publisher
	Policy carpool.Eligibility
	Now    func() time.Time
	NewID  func() string
	Logger *slog.Logger
}

type Registry struct {
	seed   []models.Ride
	store  storage.Persister
	events events.Publisher
	policy carpool.Eligibility
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		seed:     append([]models.Ride(nil), opts.Seed...),
		store:    opts.Store,
		events:   opts.Events,
		policy:   opts.Policy,
		now:      opts.Now,
		newID:    opts.NewID,
		logger:   opts.Logger,
		sessions: make(map[string]*Session),
	}
	if r.store == nil {
		r.store = storage.NewMemoryPersister()
	}
	if r.events == nil {
		r.events = events.Discard{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Create opens a session seeded from the fixture.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	s := r.newSession(r.newID(), carpool.Seed(r.seed))
	if err := r.store.Save(ctx, s.ID, s.state.Snapshot()); err != nil {
		return nil, fmt.Errorf("save new session: %w", err)
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()
	observability.SessionsActive.Set(float64(n))
	r.logger.Info("session created", "session_id", s.ID, "rides", len(r.seed))
	return s, nil
}

// Get returns the session held in memory or, failing that, restores it from
// the persister.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
		return s, nil
	}

	snap, found, err := r.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		s = existing
	} else {
		s = r.newSession(id, carpool.FromSnapshot(snap))
		r.sessions[id] = s
	}
	n := len(r.sessions)
	r.mu.Unlock()
	observability.SessionsActive.Set(float64(n))
	r.logger.Info("session restored", "session_id", id)
	s.touch(r.now())
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than idle and returns how many went.
func (r *Registry) Sweep(ctx context.Context, idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	var expired []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.lastSeen().Before(cutoff) {
			delete(r.sessions, id)
			expired = append(expired, s)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	observability.SessionsActive.Set(float64(n))

	// closing waits out any commit in flight, so nothing is saved after Delete
	for _, s := range expired {
		s.close()
	}
	if d, ok := r.store.(Deleter); ok {
		for _, s := range expired {
			if err := d.Delete(ctx, s.ID); err != nil {
				r.logger.Warn("delete expired session failed", "session_id", s.ID, "error", err)
			}
		}
	}
	return len(expired)
}

// Run sweeps idle sessions every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(ctx, idle); n > 0 {
				r.logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}

func (r *Registry) newSession(id string, st carpool.State) *Session {
	s := &Session{ID: id, reg: r, state: st}
	s.touch(r.now())
	return s
}
