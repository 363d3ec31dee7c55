package domain

import "time"

type ZoneStatus string

const (
	ZoneActive   ZoneStatus = "active"
	ZoneInactive ZoneStatus = "inactive"
)

func (s ZoneStatus) Valid() bool {
	return s == ZoneActive || s == ZoneInactive
}

type SafeZone struct {
	ZoneID       string     `json:"zone_id"`
	EntityID     string     `json:"entity_id"`
	OwnerID      string     `json:"owner_id"`
	Name         string     `json:"name"`
	CenterLat    float64    `json:"center_latitude"`
	CenterLon    float64    `json:"center_longitude"`
	RadiusMeters float64    `json:"radius_meters"`
	Status       ZoneStatus `json:"status"`
	// AlertSent is true while an exit alert is open for the current
	// excursion outside the zone.
	AlertSent bool      `json:"alert_sent"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransitionEvent is a zone exit detected by the geofence evaluator.
// Re-entries reset the zone silently and never produce an event.
type TransitionEvent struct {
	EntityID       string    `json:"entity_id"`
	ZoneID         string    `json:"zone_id"`
	ZoneName       string    `json:"zone_name"`
	Kind           AlertKind `json:"kind"`
	Message        string    `json:"message"`
	DistanceMeters float64   `json:"distance_meters"`
	RadiusMeters   float64   `json:"radius_meters"`
	Lat            float64   `json:"latitude"`
	Lon            float64   `json:"longitude"`
	CapturedAt     time.Time `json:"captured_at"`
	// FlagPersisted is false when the alert_sent write failed; the event is
	// still delivered but a later fix may raise it again.
	FlagPersisted bool `json:"flag_persisted"`
}
