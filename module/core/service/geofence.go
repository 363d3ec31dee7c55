package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/metrics"
)

const earthRadiusMeters = 6371000

type zoneStateStore interface {
	ListActiveZones(ctx context.Context, entityID string) ([]domain.SafeZone, error)
	CompareAndSetAlertSent(ctx context.Context, zoneID string, expected, next bool) (bool, error)
}

// GeofenceService decides, for one fix, which safe zones were exited.
// Callers must not evaluate two fixes of the same entity concurrently.
type GeofenceService struct {
	zones zoneStateStore
}

func NewGeofenceService(zones zoneStateStore) *GeofenceService {
	return &GeofenceService{zones: zones}
}

// Evaluate checks the fix against every active zone of its entity. A zone
// raises one zone_exit event per excursion: the alert_sent flag is written
// before the event is returned, and cleared silently on re-entry.
//
// If a flag write fails, the events gathered so far (including the one for
// the failing zone, if it was an exit) are returned together with a
// *domain.RepositoryError and the remaining zones are not evaluated.
func (s *GeofenceService) Evaluate(ctx context.Context, fix *domain.LocationFix) ([]domain.TransitionEvent, error) {
	start := time.Now()
	defer func() { metrics.EvaluationDuration.Observe(time.Since(start).Seconds()) }()

	zones, err := s.zones.ListActiveZones(ctx, fix.EntityID)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "list active zones", Err: err}
	}

	var events []domain.TransitionEvent
	for _, z := range zones {
		if z.Status != domain.ZoneActive {
			continue
		}

		dist := haversine(fix.Lat, fix.Lon, z.CenterLat, z.CenterLon)
		inside := dist <= z.RadiusMeters

		switch {
		case !inside && !z.AlertSent:
			swapped, err := s.zones.CompareAndSetAlertSent(ctx, z.ZoneID, false, true)
			if err != nil {
				events = append(events, exitEvent(fix, &z, dist, false))
				return events, &domain.RepositoryError{Op: "set alert_sent for zone " + z.ZoneID, Err: err}
			}
			if !swapped {
				metrics.TransitionsTotal.WithLabelValues("exit_superseded").Inc()
				continue
			}
			metrics.TransitionsTotal.WithLabelValues("exit").Inc()
			events = append(events, exitEvent(fix, &z, dist, true))

		case inside && z.AlertSent:
			if _, err := s.zones.CompareAndSetAlertSent(ctx, z.ZoneID, true, false); err != nil {
				return events, &domain.RepositoryError{Op: "clear alert_sent for zone " + z.ZoneID, Err: err}
			}
			metrics.TransitionsTotal.WithLabelValues("reset").Inc()
		}
	}
	return events, nil
}

func exitEvent(fix *domain.LocationFix, z *domain.SafeZone, dist float64, persisted bool) domain.TransitionEvent {
	return domain.TransitionEvent{
		EntityID:       fix.EntityID,
		ZoneID:         z.ZoneID,
		ZoneName:       z.Name,
		Kind:           domain.AlertZoneExit,
		Message:        fmt.Sprintf("The child left the safe zone (%s).", z.Name),
		DistanceMeters: dist,
		RadiusMeters:   z.RadiusMeters,
		Lat:            fix.Lat,
		Lon:            fix.Lon,
		CapturedAt:     fix.CapturedAt,
		FlagPersisted:  persisted,
	}
}

// haversine returns the great-circle distance in meters on a spherical earth.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
