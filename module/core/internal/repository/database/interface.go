package database

import (
	"context"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type LocationRepository interface {
	Insert(ctx context.Context, fix *domain.LocationFix) error
	GetLatest(ctx context.Context, entityID string) (*domain.LocationFix, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.LocationFix, error)
}

type TrackerRepository interface {
	FindByDevice(ctx context.Context, deviceName string) (*domain.Tracker, error)
	GetGuardian(ctx context.Context, entityID string) (*domain.Guardian, error)
}

type ZoneRepository interface {
	ListActiveZones(ctx context.Context, entityID string) ([]domain.SafeZone, error)
	// CompareAndSetAlertSent writes next only when the stored flag equals
	// expected. swapped reports whether the write happened.
	CompareAndSetAlertSent(ctx context.Context, zoneID string, expected, next bool) (swapped bool, err error)

	ListByEntity(ctx context.Context, entityID string) ([]domain.SafeZone, error)
	Get(ctx context.Context, zoneID string) (*domain.SafeZone, error)
	Create(ctx context.Context, zone *domain.SafeZone) error
	Update(ctx context.Context, zone *domain.SafeZone) error
	Delete(ctx context.Context, zoneID string) error
}

type AlertRepository interface {
	Insert(ctx context.Context, alert *domain.Alert) error
	ListByEntity(ctx context.Context, entityID string) ([]domain.Alert, error)
	Delete(ctx context.Context, alertID string) error
}
