package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/lock"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database/memory"
)

type mockTrackerLookup struct {
	findFn func(ctx context.Context, deviceName string) (*domain.Tracker, error)
}

func (m *mockTrackerLookup) FindByDevice(ctx context.Context, deviceName string) (*domain.Tracker, error) {
	return m.findFn(ctx, deviceName)
}

type mockLocationWriter struct {
	insertFn func(ctx context.Context, fix *domain.LocationFix) error
	calls    []domain.LocationFix
}

func (m *mockLocationWriter) Insert(ctx context.Context, fix *domain.LocationFix) error {
	m.calls = append(m.calls, *fix)
	if m.insertFn != nil {
		return m.insertFn(ctx, fix)
	}
	return nil
}

type mockEvaluator struct {
	evaluateFn func(ctx context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error)
	calls      int
}

func (m *mockEvaluator) Evaluate(ctx context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error) {
	m.calls++
	if m.evaluateFn != nil {
		return m.evaluateFn(ctx, fix)
	}
	return nil, nil
}

type mockAlertRaiser struct {
	mu      sync.Mutex
	raiseFn func(ctx context.Context, req domain.RaiseRequest) (*domain.Alert, error)
	calls   []domain.RaiseRequest
}

func (m *mockAlertRaiser) Raise(ctx context.Context, req domain.RaiseRequest) (*domain.Alert, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.raiseFn != nil {
		return m.raiseFn(ctx, req)
	}
	return &domain.Alert{AlertID: "a1"}, nil
}

type mockRealtime struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, ownerID string, evt domain.RealtimeEvent) error
	owners    []string
	events    []domain.RealtimeEvent
}

func (m *mockRealtime) Publish(ctx context.Context, ownerID string, evt domain.RealtimeEvent) error {
	m.mu.Lock()
	m.owners = append(m.owners, ownerID)
	m.events = append(m.events, evt)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx, ownerID, evt)
	}
	return nil
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis unavailable")
}

func knownTracker() *mockTrackerLookup {
	return &mockTrackerLookup{
		findFn: func(_ context.Context, deviceName string) (*domain.Tracker, error) {
			if deviceName != "PULSERA-01" {
				return nil, domain.ErrNotFound
			}
			return &domain.Tracker{TrackerID: "t1", DeviceName: deviceName, EntityID: "child-1", OwnerID: "user-1"}, nil
		},
	}
}

func ptr(v float64) *float64 { return &v }

func rawFix(lat, lon float64) domain.RawFix {
	return domain.RawFix{Source: "http", TrackerID: "PULSERA-01", Lat: ptr(lat), Lon: ptr(lon)}
}

func TestIngest_Success(t *testing.T) {
	locations := &mockLocationWriter{}
	eval := &mockEvaluator{
		evaluateFn: func(_ context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error) {
			return []domain.TransitionEvent{{
				EntityID: fix.EntityID, ZoneID: "z1", ZoneName: "Casa",
				Kind: domain.AlertZoneExit, Message: "left", FlagPersisted: true,
			}}, nil
		},
	}
	alerts := &mockAlertRaiser{}
	rt := &mockRealtime{}
	svc := NewIngestService(knownTracker(), locations, eval, alerts, rt, lock.NewLocal())

	ts := time.Date(2024, 5, 6, 13, 50, 56, 0, time.UTC)
	raw := rawFix(homeLat, homeLon)
	raw.CapturedAt = &ts

	result, err := svc.Ingest(context.Background(), raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accepted.EntityID != "child-1" || !result.Accepted.CapturedAt.Equal(ts) {
		t.Errorf("unexpected accepted fix: %+v", result.Accepted)
	}
	if len(locations.calls) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(locations.calls))
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(result.Events))
	}
	if len(alerts.calls) != 1 {
		t.Fatalf("expected 1 raised alert, got %d", len(alerts.calls))
	}
	req := alerts.calls[0]
	if req.ZoneID == nil || *req.ZoneID != "z1" || req.Kind != domain.AlertZoneExit {
		t.Errorf("unexpected raise request: %+v", req)
	}
	if len(rt.events) != 1 || rt.events[0].Type != domain.RealtimeLocation || rt.owners[0] != "user-1" {
		t.Errorf("expected one location event for user-1, got %+v", rt.events)
	}
}

func TestIngest_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		raw   domain.RawFix
		field string
	}{
		{"blank tracker", domain.RawFix{TrackerID: "  ", Lat: ptr(1), Lon: ptr(1)}, "device_id"},
		{"missing latitude", domain.RawFix{TrackerID: "PULSERA-01", Lon: ptr(1)}, "latitude"},
		{"missing longitude", domain.RawFix{TrackerID: "PULSERA-01", Lat: ptr(1)}, "longitude"},
		{"nan latitude", domain.RawFix{TrackerID: "PULSERA-01", Lat: ptr(math.NaN()), Lon: ptr(1)}, "latitude"},
		{"infinite longitude", domain.RawFix{TrackerID: "PULSERA-01", Lat: ptr(1), Lon: ptr(math.Inf(1))}, "longitude"},
		{"latitude out of range", domain.RawFix{TrackerID: "PULSERA-01", Lat: ptr(90.5), Lon: ptr(1)}, "latitude"},
		{"longitude out of range", domain.RawFix{TrackerID: "PULSERA-01", Lat: ptr(1), Lon: ptr(-180.1)}, "longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locations := &mockLocationWriter{}
			eval := &mockEvaluator{}
			svc := NewIngestService(knownTracker(), locations, eval, &mockAlertRaiser{}, nil, lock.NewLocal())

			_, err := svc.Ingest(context.Background(), tt.raw)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, vErr.Field)
			}
			if len(locations.calls) != 0 || eval.calls != 0 {
				t.Error("expected nothing persisted or evaluated")
			}
		})
	}
}

func TestIngest_UnknownTracker(t *testing.T) {
	locations := &mockLocationWriter{}
	eval := &mockEvaluator{}
	svc := NewIngestService(knownTracker(), locations, eval, &mockAlertRaiser{}, nil, lock.NewLocal())

	raw := rawFix(homeLat, homeLon)
	raw.TrackerID = "UNKNOWN"
	result, err := svc.Ingest(context.Background(), raw)

	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if result != nil {
		t.Error("expected nil result")
	}
	if len(locations.calls) != 0 {
		t.Errorf("expected no insert, got %d", len(locations.calls))
	}
	if eval.calls != 0 {
		t.Errorf("expected evaluator not invoked, got %d calls", eval.calls)
	}
}

func TestIngest_TrackerLookupError(t *testing.T) {
	trackers := &mockTrackerLookup{
		findFn: func(_ context.Context, _ string) (*domain.Tracker, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewIngestService(trackers, &mockLocationWriter{}, &mockEvaluator{}, &mockAlertRaiser{}, nil, lock.NewLocal())

	_, err := svc.Ingest(context.Background(), rawFix(homeLat, homeLon))
	var repoErr *domain.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepositoryError, got %v", err)
	}
}

func TestIngest_DefaultsCapturedAtToReceiptTime(t *testing.T) {
	locations := &mockLocationWriter{}
	svc := NewIngestService(knownTracker(), locations, &mockEvaluator{}, &mockAlertRaiser{}, nil, lock.NewLocal())
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return now }

	result, err := svc.Ingest(context.Background(), rawFix(homeLat, homeLon))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Accepted.CapturedAt.Equal(now) {
		t.Errorf("expected captured_at %v, got %v", now, result.Accepted.CapturedAt)
	}
	if result.Events == nil {
		t.Error("expected empty, non-nil events")
	}
}

func TestIngest_InsertError(t *testing.T) {
	locations := &mockLocationWriter{
		insertFn: func(_ context.Context, _ *domain.LocationFix) error {
			return errors.New("disk full")
		},
	}
	eval := &mockEvaluator{}
	svc := NewIngestService(knownTracker(), locations, eval, &mockAlertRaiser{}, nil, lock.NewLocal())

	result, err := svc.Ingest(context.Background(), rawFix(homeLat, homeLon))
	var repoErr *domain.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepositoryError, got %v", err)
	}
	if result != nil {
		t.Error("expected nil result")
	}
	if eval.calls != 0 {
		t.Error("expected evaluator not invoked")
	}
}

func TestIngest_LockError(t *testing.T) {
	locations := &mockLocationWriter{}
	svc := NewIngestService(knownTracker(), locations, &mockEvaluator{}, &mockAlertRaiser{}, nil, failingLocker{})

	_, err := svc.Ingest(context.Background(), rawFix(homeLat, homeLon))
	var repoErr *domain.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepositoryError, got %v", err)
	}
	if len(locations.calls) != 0 {
		t.Error("expected nothing persisted")
	}
}

func TestIngest_EvaluateErrorKeepsFixAndEmitsEvents(t *testing.T) {
	eval := &mockEvaluator{
		evaluateFn: func(_ context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error) {
			evt := domain.TransitionEvent{EntityID: fix.EntityID, ZoneID: "z1", Kind: domain.AlertZoneExit, Message: "left"}
			return []domain.TransitionEvent{evt}, &domain.RepositoryError{Op: "set alert_sent", Err: errors.New("timeout")}
		},
	}
	alerts := &mockAlertRaiser{}
	svc := NewIngestService(knownTracker(), &mockLocationWriter{}, eval, alerts, nil, lock.NewLocal())

	result, err := svc.Ingest(context.Background(), rawFix(homeLat, homeLon))
	var repoErr *domain.RepositoryError
	if !errors.As(err, &repoErr) {
		t.Fatalf("expected RepositoryError, got %v", err)
	}
	if result == nil || len(result.Events) != 1 {
		t.Fatalf("expected result with 1 event, got %+v", result)
	}
	if len(alerts.calls) != 1 {
		t.Errorf("expected the event to be raised, got %d calls", len(alerts.calls))
	}
}

func TestIngest_EmissionFailureIsIsolated(t *testing.T) {
	eval := &mockEvaluator{
		evaluateFn: func(_ context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error) {
			return []domain.TransitionEvent{
				{EntityID: fix.EntityID, ZoneID: "z1", Kind: domain.AlertZoneExit, Message: "left z1"},
				{EntityID: fix.EntityID, ZoneID: "z2", Kind: domain.AlertZoneExit, Message: "left z2"},
			}, nil
		},
	}
	alerts := &mockAlertRaiser{
		raiseFn: func(_ context.Context, req domain.RaiseRequest) (*domain.Alert, error) {
			if *req.ZoneID == "z1" {
				return nil, &domain.EmissionError{Channel: "store", Err: errors.New("boom")}
			}
			return &domain.Alert{AlertID: "a2"}, nil
		},
	}
	rt := &mockRealtime{
		publishFn: func(_ context.Context, _ string, _ domain.RealtimeEvent) error {
			return errors.New("redis down")
		},
	}
	svc := NewIngestService(knownTracker(), &mockLocationWriter{}, eval, alerts, rt, lock.NewLocal())

	result, err := svc.Ingest(context.Background(), rawFix(homeLat, homeLon))
	if err != nil {
		t.Fatalf("expected emission failures to stay internal, got %v", err)
	}
	if len(result.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(result.Events))
	}
	if len(alerts.calls) != 2 {
		t.Errorf("expected both alerts attempted, got %d", len(alerts.calls))
	}
}

// recordingZones wraps a zone repository and appends to a shared log on
// every flag write.
type recordingZones struct {
	*memory.ZoneRepo
	mu  *sync.Mutex
	log *[]string
}

func (r recordingZones) CompareAndSetAlertSent(ctx context.Context, zoneID string, expected, next bool) (bool, error) {
	ok, err := r.ZoneRepo.CompareAndSetAlertSent(ctx, zoneID, expected, next)
	r.mu.Lock()
	*r.log = append(*r.log, "flag")
	r.mu.Unlock()
	return ok, err
}

func TestIngest_FlagPersistedBeforeAlertRaised(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	zones := memory.NewZoneRepo()
	newHomeZone(t, zones, 50)

	alerts := &mockAlertRaiser{
		raiseFn: func(_ context.Context, _ domain.RaiseRequest) (*domain.Alert, error) {
			mu.Lock()
			order = append(order, "raise")
			mu.Unlock()
			return &domain.Alert{}, nil
		},
	}
	geofence := NewGeofenceService(recordingZones{ZoneRepo: zones, mu: &mu, log: &order})
	svc := NewIngestService(knownTracker(), memory.NewLocationRepo(), geofence, alerts, nil, lock.NewLocal())

	if _, err := svc.Ingest(context.Background(), rawFix(northOf(homeLat, 80), homeLon)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "flag" || order[1] != "raise" {
		t.Fatalf("expected [flag raise], got %v", order)
	}
}

func TestIngest_ScenarioEndToEnd(t *testing.T) {
	trackers := memory.NewTrackerRepo()
	trackers.Put(domain.Tracker{TrackerID: "t1", DeviceName: "PULSERA-01", EntityID: "child-1", OwnerID: "user-1"})
	locations := memory.NewLocationRepo()
	zones := memory.NewZoneRepo()
	newHomeZone(t, zones, 50)
	alertRepo := memory.NewAlertRepo()

	alerts := NewAlertService(alertRepo, trackers, AlertChannels{})
	svc := NewIngestService(trackers, locations, NewGeofenceService(zones), alerts, nil, lock.NewLocal())
	ctx := context.Background()

	for _, m := range []float64{0, 80, 80, 10} {
		if _, err := svc.Ingest(ctx, rawFix(northOf(homeLat, m), homeLon)); err != nil {
			t.Fatalf("ingest at %vm: %v", m, err)
		}
	}

	if got := locations.Count("child-1"); got != 4 {
		t.Errorf("expected 4 stored fixes, got %d", got)
	}
	stored, err := alertRepo.ListByEntity(ctx, "child-1")
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored alert, got %d", len(stored))
	}
	if stored[0].ZoneID == nil || *stored[0].ZoneID != "zone-home" || stored[0].ZoneName != "Casa" {
		t.Errorf("unexpected alert: %+v", stored[0])
	}
	if alertSent(t, zones) {
		t.Error("expected alert_sent=false after re-entry")
	}
}

func TestIngest_ConcurrentFixesForOneEntity(t *testing.T) {
	zones := memory.NewZoneRepo()
	newHomeZone(t, zones, 50)
	alerts := &mockAlertRaiser{}
	svc := NewIngestService(knownTracker(), memory.NewLocationRepo(), NewGeofenceService(zones), alerts, nil, lock.NewLocal())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Ingest(context.Background(), rawFix(northOf(homeLat, 75), homeLon)); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(alerts.calls) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d", len(alerts.calls))
	}
}
