package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/share-commute/internal/dispatch"
	"github.com/example/share-commute/internal/models"
	"github.com/example/share-commute/internal/session"
	"github.com/example/share-commute/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	seed, err := storage.LoadSeed("")
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := dispatch.NewWSHub(logger)
	reg := session.NewRegistry(session.Options{
		Seed:   seed,
		Events: hub,
		Now:    func() time.Time { return time.Date(2025, 6, 2, 8, 0, 0, 0, time.Local) },
		Logger: logger,
	})
	return NewServer(reg, hub, logger)
}

func do(t *testing.T, h http.Handler, method, path, employee string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if employee != "" {
		req.Header.Set("X-Employee-ID", employee)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, "POST", "/api/v1/sessions", "", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d", rec.Code)
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil || out.SessionID == "" {
		t.Fatalf("bad create response: %v %q", err, rec.Body.String())
	}
	return out.SessionID
}

type listedRide struct {
	models.Ride
	TimeDisplay string `json:"time_display"`
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out.Error
}

func TestHealthz(t *testing.T) {
	rec := do(t, newTestServer(t), "GET", "/healthz", "", nil)
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAvailableRidesListing(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)

	rec := do(t, s, "GET", "/api/v1/sessions/"+id+"/rides/available", "E001", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var rides []listedRide
	if err := json.NewDecoder(rec.Body).Decode(&rides); err != nil {
		t.Fatal(err)
	}
	if len(rides) != 2 {
		t.Fatalf("expected 2 rides for E001, got %d", len(rides))
	}
	for _, r := range rides {
		if r.EmployeeID == "E001" {
			t.Fatal("own ride listed")
		}
	}
	if rides[0].TimeDisplay != "2:30 PM" {
		t.Fatalf("unexpected display time %q", rides[0].TimeDisplay)
	}

	rec = do(t, s, "GET", "/api/v1/sessions/"+id+"/rides/available?vehicle_type=bike", "E999", nil)
	rides = nil
	_ = json.NewDecoder(rec.Body).Decode(&rides)
	if len(rides) != 1 || rides[0].VehicleType != models.VehicleBike {
		t.Fatalf("unexpected filtered rides %+v", rides)
	}
}

func TestEmployeeGuard(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	for _, emp := range []string{"", "  ", "E1"} {
		rec := do(t, s, "GET", "/api/v1/sessions/"+id+"/rides/available", emp, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("employee %q: expected 401, got %d", emp, rec.Code)
		}
	}
}

func TestUnknownSession(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, "POST", "/api/v1/sessions/missing/rides/1/book", "E999", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestBookRideFlow(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)

	rec := do(t, s, "POST", "/api/v1/sessions/"+id+"/rides/1/book", "E999", nil)
	if rec.Code != 200 {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var ride listedRide
	if err := json.NewDecoder(rec.Body).Decode(&ride); err != nil {
		t.Fatal(err)
	}
	if ride.ID != 1 || ride.VacantSeats != 2 || ride.TimeDisplay != "10:00 AM" {
		t.Fatalf("unexpected booked ride %+v", ride)
	}

	rec = do(t, s, "POST", "/api/v1/sessions/"+id+"/rides/3/book", "E999", nil)
	if rec.Code != http.StatusConflict || errorOf(t, rec) != "You have already booked a ride today." {
		t.Fatalf("expected already booked conflict, got %d", rec.Code)
	}

	rec = do(t, s, "POST", "/api/v1/sessions/"+id+"/rides/3/book", "E003", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected own ride conflict, got %d", rec.Code)
	}

	rec = do(t, s, "GET", "/api/v1/sessions/"+id+"/employees/E999", "", nil)
	var st session.EmployeeStatus
	_ = json.NewDecoder(rec.Body).Decode(&st)
	if !st.Booked || st.Posted {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestPostRideFlow(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	form := map[string]any{
		"vehicle_type": "car",
		"vehicle_no":   "ka05 mn43",
		"vacant_seats": 2,
		"time":         "09:30",
		"pickup_point": "north  gate",
		"destination":  "tech park",
	}

	rec := do(t, s, "POST", "/api/v1/sessions/"+id+"/rides", "E010", form)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var ride listedRide
	_ = json.NewDecoder(rec.Body).Decode(&ride)
	if ride.ID != 4 || ride.VehicleNo != "KA05 MN43" || ride.PickupPoint != "North Gate" || ride.VehicleType != models.VehicleCar {
		t.Fatalf("unexpected ride %+v", ride)
	}

	rec = do(t, s, "POST", "/api/v1/sessions/"+id+"/rides", "E010", form)
	if rec.Code != http.StatusConflict || errorOf(t, rec) != "You have already added a ride today." {
		t.Fatalf("expected already posted conflict, got %d", rec.Code)
	}
}

func TestPostRideValidation(t *testing.T) {
	s := newTestServer(t)
	id := createSession(t, s)
	rec := do(t, s, "POST", "/api/v1/sessions/"+id+"/rides", "E010", map[string]any{
		"vehicle_type": "Bus",
		"vehicle_no":   "KA05MN4321",
		"vacant_seats": 9,
		"time":         "09:30",
		"pickup_point": "North Gate",
		"destination":  "Tech Park",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "vehicle_type") || !strings.Contains(body, "vacant_seats") {
		t.Fatalf("expected field errors, got %s", body)
	}

	rec = do(t, s, "GET", "/api/v1/sessions/"+id+"/employees/E010", "", nil)
	if !strings.Contains(rec.Body.String(), `"posted":false`) {
		t.Fatalf("rejected post must not count: %s", rec.Body.String())
	}
}

func TestWebsocketFeed(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s)
	defer ts.Close()
	id := createSession(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/"+id, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub.Count(id) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if rec := do(t, s, "POST", "/api/v1/sessions/"+id+"/rides/2/book", "E999", nil); rec.Code != 200 {
		t.Fatalf("book: status %d", rec.Code)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.RideEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != models.EventRideBooked || ev.Ride.ID != 2 || ev.Ride.VacantSeats != 0 {
		t.Fatalf("unexpected event %+v", ev)
	}
}
