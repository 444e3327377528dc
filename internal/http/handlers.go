package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/share-commute/internal/dispatch"
	"github.com/example/share-commute/internal/models"
	"github.com/example/share-commute/internal/session"
	"github.com/example/share-commute/internal/validation"
)

type Server struct {
	Sessions *session.Registry
	Hub      *dispatch.WSHub
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(reg *session.Registry, hub *dispatch.WSHub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{Sessions: reg, Hub: hub, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{session_id}", s.handleWS).Methods("GET")

	s.mux.HandleFunc("/api/v1/sessions", s.handleCreateSession).Methods("POST")
	s.mux.HandleFunc("/api/v1/sessions/{session_id}/employees/{employee_id}", s.handleEmployeeStatus).Methods("GET")

	// ride routes act on behalf of the employee named in X-Employee-ID
	s.mux.Handle("/api/v1/sessions/{session_id}/rides", s.requireEmployee(s.handlePostRide)).Methods("POST")
	s.mux.Handle("/api/v1/sessions/{session_id}/rides/available", s.requireEmployee(s.handleAvailableRides)).Methods("GET")
	s.mux.Handle("/api/v1/sessions/{session_id}/rides/{ride_id:[0-9]+}/book", s.requireEmployee(s.handleBookRide)).Methods("POST")
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// rideView is a ride as the listing shows it.
type rideView struct {
	models.Ride
	TimeDisplay string `json:"time_display"`
}

func viewOf(r models.Ride) rideView { return rideView{Ride: r, TimeDisplay: r.Time.Display()} }

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (s *Server) handleEmployeeStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	emp, err := validation.EmployeeID(mux.Vars(r)["employee_id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Status(emp))
}

func (s *Server) handlePostRide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var form validation.RideForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	ride, err := sess.PostRide(r.Context(), employeeFromContext(r.Context()), form)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(ride))
}

func (s *Server) handleAvailableRides(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	vt := models.VehicleType(r.URL.Query().Get("vehicle_type"))
	rides := sess.AvailableRides(employeeFromContext(r.Context()), vt)
	out := make([]rideView, len(rides))
	for i, ride := range rides {
		out[i] = viewOf(ride)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBookRide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(mux.Vars(r)["ride_id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ride id"})
		return
	}
	ride, err := sess.BookRide(r.Context(), employeeFromContext(r.Context()), models.RideID(id))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ride))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		s.logger.Debug("ws upgrade failed", "session_id", sess.ID, "error", err)
		return
	}
	s.Hub.Serve(sess.ID, conn)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.Sessions.Get(r.Context(), mux.Vars(r)["session_id"])
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

// writeError maps domain errors to responses; anything unrecognised is a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		status := http.StatusUnprocessableEntity
		if len(verrs) == 1 && verrs[0].Field == "employee_id" {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]any{"errors": verrs})
	case errors.Is(err, session.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, session.ErrAlreadyPosted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "You have already added a ride today."})
	case errors.Is(err, session.ErrAlreadyBooked):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "You have already booked a ride today."})
	case errors.Is(err, session.ErrOwnRide):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "You cannot book your own ride."})
	case errors.Is(err, session.ErrRideUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "This ride is no longer available."})
	default:
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func employeeFromContext(ctx context.Context) string {
	v, _ := ctx.Value(employeeIDKey).(string)
	return v
}
