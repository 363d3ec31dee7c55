package domain

import "time"

type LocationFix struct {
	EntityID   string    `json:"entity_id"`
	Lat        float64   `json:"latitude"`
	Lon        float64   `json:"longitude"`
	CapturedAt time.Time `json:"captured_at"`
}

// RawFix is a fix as decoded from the wire, before validation. Nil
// coordinates mean the field was absent.
type RawFix struct {
	// Source names the ingress path (http, mqtt, tcp) for metrics.
	Source     string
	TrackerID  string
	Lat        *float64
	Lon        *float64
	CapturedAt *time.Time
}

type HistoryQuery struct {
	EntityID string
	Start    time.Time
	End      time.Time
}

type Tracker struct {
	TrackerID  string `json:"tracker_id"`
	DeviceName string `json:"device_name"`
	EntityID   string `json:"entity_id"`
	OwnerID    string `json:"owner_id"`
}

// Guardian is the contact that receives alerts raised for an entity.
type Guardian struct {
	OwnerID     string
	Email       string
	ChildName   string
	TrackerName string
}

type IngestResult struct {
	Accepted LocationFix       `json:"accepted"`
	Events   []TransitionEvent `json:"events"`
}
