package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/share-commute/internal/models"
)

// fakeKV implements RedisKV over a map
type fakeKV struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failSet bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failSet {
		return redis.NewStatusResult("", errors.New("connection refused"))
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func sampleSnapshot() models.Snapshot {
	return models.Snapshot{
		Rides:  []models.Ride{{ID: 1, EmployeeID: "E001", VehicleType: models.VehicleCar, VacantSeats: 2, Time: models.NewClock(10, 0)}},
		Posted: []string{"E001"},
		Booked: []string{"E999"},
		NextID: 2,
	}
}

func TestMemoryPersister(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPersister()
	if _, ok, err := p.Load(ctx, "s1"); ok || err != nil {
		t.Fatalf("expected empty, got ok=%v err=%v", ok, err)
	}
	if err := p.Save(ctx, "s1", sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	snap, ok, err := p.Load(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if snap.NextID != 2 || len(snap.Rides) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := p.Delete(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Load(ctx, "s1"); ok {
		t.Fatal("expected snapshot deleted")
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := p.Save(cctx, "s1", sampleSnapshot()); err == nil {
		t.Fatal("expected canceled context error")
	}
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	p := NewRedisPersister(kv, 2*time.Hour)

	if _, ok, err := p.Load(ctx, "abc"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	if err := p.Save(ctx, "abc", sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if kv.ttls["carpool:session:abc"] != 2*time.Hour {
		t.Fatalf("ttl not applied: %v", kv.ttls)
	}
	snap, ok, err := p.Load(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if snap.Rides[0].Time != models.NewClock(10, 0) || snap.Booked[0] != "E999" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if err := p.Delete(ctx, "abc"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Load(ctx, "abc"); ok {
		t.Fatal("expected snapshot deleted")
	}
}

func TestRedisPersisterErrors(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	kv.failSet = true
	p := NewRedisPersister(kv, time.Hour)
	if err := p.Save(ctx, "abc", sampleSnapshot()); err == nil {
		t.Fatal("expected save error")
	}
	kv.data["carpool:session:bad"] = "{not json"
	if _, _, err := p.Load(ctx, "bad"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLoadSeedDefault(t *testing.T) {
	rides, err := LoadSeed("")
	if err != nil {
		t.Fatal(err)
	}
	if len(rides) != 3 {
		t.Fatalf("expected 3 fixture rides, got %d", len(rides))
	}
	if rides[1].EmployeeID != "E002" || rides[1].Time != models.NewClock(14, 30) || rides[1].VehicleType != models.VehicleBike {
		t.Fatalf("unexpected fixture ride %+v", rides[1])
	}
}

func TestLoadSeedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rides.yaml")
	body := strings.Join([]string{
		"- employee_id: E100",
		"  vehicle_type: Car",
		"  vehicle_no: KA09ZZ0001",
		"  vacant_seats: 4",
		`  time: "08:45"`,
		"  pickup_point: North Gate",
		"  destination: Tech Park",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	rides, err := LoadSeed(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rides) != 1 || rides[0].Time != models.NewClock(8, 45) || rides[0].VacantSeats != 4 {
		t.Fatalf("unexpected rides %+v", rides)
	}
}

func TestLoadSeedRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "rides.json")
	if err := os.WriteFile(bad, []byte(`[{"employee_id":"E1","vehicle_type":"Bus","vacant_seats":1,"time":"10:00"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSeed(bad); err == nil {
		t.Fatal("expected vehicle type error")
	}
	txt := filepath.Join(dir, "rides.txt")
	if err := os.WriteFile(txt, []byte(`[]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSeed(txt); err == nil {
		t.Fatal("expected format error")
	}
}
