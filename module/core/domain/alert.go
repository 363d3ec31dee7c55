package domain

import "time"

type AlertKind string

const (
	AlertZoneExit   AlertKind = "zone_exit"
	AlertLowBattery AlertKind = "low_battery"
	AlertOther      AlertKind = "other"
)

func (k AlertKind) Valid() bool {
	switch k {
	case AlertZoneExit, AlertLowBattery, AlertOther:
		return true
	}
	return false
}

type Alert struct {
	AlertID   string    `json:"alert_id"`
	EntityID  string    `json:"entity_id"`
	ZoneID    *string   `json:"zone_id"`
	ZoneName  string    `json:"zone_name,omitempty"`
	Kind      AlertKind `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type RaiseRequest struct {
	EntityID string
	ZoneID   *string
	ZoneName string
	Kind     AlertKind
	Message  string
}

// AlertNotification is the payload fanned out to the broker and to realtime
// subscribers once an alert has been stored.
type AlertNotification struct {
	Alert   Alert  `json:"alert"`
	OwnerID string `json:"owner_id"`
}

// RealtimeEvent is pushed to a guardian's open sockets.
type RealtimeEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	RealtimeLocation = "location"
	RealtimeAlert    = "alert"
)
