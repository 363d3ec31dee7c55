package service

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/lock"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/metrics"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher"
)

type trackerLookup interface {
	FindByDevice(ctx context.Context, deviceName string) (*domain.Tracker, error)
}

type locationWriter interface {
	Insert(ctx context.Context, fix *domain.LocationFix) error
}

type evaluator interface {
	Evaluate(ctx context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error)
}

type alertRaiser interface {
	Raise(ctx context.Context, req domain.RaiseRequest) (*domain.Alert, error)
}

// IngestService turns raw tracker fixes into stored locations and zone
// exit alerts.
type IngestService struct {
	trackers  trackerLookup
	locations locationWriter
	geofence  evaluator
	alerts    alertRaiser
	realtime  publisher.RealtimePublisher
	locker    lock.Locker
	now       func() time.Time
}

func NewIngestService(
	trackers trackerLookup,
	locations locationWriter,
	geofence evaluator,
	alerts alertRaiser,
	realtime publisher.RealtimePublisher,
	locker lock.Locker,
) *IngestService {
	return &IngestService{
		trackers:  trackers,
		locations: locations,
		geofence:  geofence,
		alerts:    alerts,
		realtime:  realtime,
		locker:    locker,
		now:       time.Now,
	}
}

// Ingest validates and stores one fix, evaluates it against the entity's
// safe zones and raises an alert per exit.
//
// When evaluation fails part way, the fix is already stored: the result is
// returned together with the *domain.RepositoryError and any events that
// were produced are still delivered.
func (s *IngestService) Ingest(ctx context.Context, raw domain.RawFix) (*domain.IngestResult, error) {
	source := raw.Source
	if source == "" {
		source = "unknown"
	}

	if err := validateRawFix(&raw); err != nil {
		metrics.FixesTotal.WithLabelValues(source, "invalid").Inc()
		return nil, err
	}

	tracker, err := s.trackers.FindByDevice(ctx, raw.TrackerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.FixesTotal.WithLabelValues(source, "unknown_tracker").Inc()
			return nil, &domain.NotFoundError{Resource: "tracker", ID: raw.TrackerID}
		}
		metrics.FixesTotal.WithLabelValues(source, "error").Inc()
		return nil, &domain.RepositoryError{Op: "find tracker", Err: err}
	}

	capturedAt := s.now().UTC()
	if raw.CapturedAt != nil {
		capturedAt = raw.CapturedAt.UTC()
	}
	fix := domain.LocationFix{
		EntityID:   tracker.EntityID,
		Lat:        *raw.Lat,
		Lon:        *raw.Lon,
		CapturedAt: capturedAt,
	}

	stored, events, evalErr := s.storeAndEvaluate(ctx, &fix)
	if !stored {
		metrics.FixesTotal.WithLabelValues(source, "error").Inc()
		return nil, evalErr
	}

	if s.realtime != nil && tracker.OwnerID != "" {
		err := s.realtime.Publish(ctx, tracker.OwnerID, domain.RealtimeEvent{Type: domain.RealtimeLocation, Data: fix})
		if err != nil {
			log.Printf("realtime location publish error for %s: %v", fix.EntityID, err)
		}
	}

	for _, evt := range events {
		zoneID := evt.ZoneID
		_, err := s.alerts.Raise(ctx, domain.RaiseRequest{
			EntityID: evt.EntityID,
			ZoneID:   &zoneID,
			ZoneName: evt.ZoneName,
			Kind:     evt.Kind,
			Message:  evt.Message,
		})
		if err != nil {
			log.Printf("raise alert error for zone %s: %v", evt.ZoneID, err)
		}
	}

	result := &domain.IngestResult{Accepted: fix, Events: events}
	if result.Events == nil {
		result.Events = []domain.TransitionEvent{}
	}
	if evalErr != nil {
		metrics.FixesTotal.WithLabelValues(source, "partial").Inc()
		return result, evalErr
	}
	metrics.FixesTotal.WithLabelValues(source, "accepted").Inc()
	return result, nil
}

// storeAndEvaluate holds the entity lock while the fix is stored and
// evaluated, so fixes of one entity never race on a zone's alert_sent flag.
// stored reports whether the fix reached the location repository.
func (s *IngestService) storeAndEvaluate(ctx context.Context, fix *domain.LocationFix) (stored bool, events []domain.TransitionEvent, err error) {
	unlock, err := s.locker.Lock(ctx, fix.EntityID)
	if err != nil {
		return false, nil, &domain.RepositoryError{Op: "lock entity", Err: err}
	}
	defer unlock()

	if err := s.locations.Insert(ctx, fix); err != nil {
		return false, nil, &domain.RepositoryError{Op: "insert location", Err: err}
	}

	events, err = s.geofence.Evaluate(ctx, fix)
	return true, events, err
}

func validateRawFix(raw *domain.RawFix) error {
	raw.TrackerID = strings.TrimSpace(raw.TrackerID)
	if raw.TrackerID == "" {
		return &domain.ValidationError{Field: "device_id", Reason: "is required"}
	}
	if err := validateCoordinate("latitude", raw.Lat, 90); err != nil {
		return err
	}
	return validateCoordinate("longitude", raw.Lon, 180)
}

func validateCoordinate(field string, v *float64, limit float64) error {
	if v == nil {
		return &domain.ValidationError{Field: field, Reason: "is required"}
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return &domain.ValidationError{Field: field, Reason: "must be a finite number"}
	}
	if *v < -limit || *v > limit {
		return &domain.ValidationError{Field: field, Reason: "is out of range"}
	}
	return nil
}
