package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

type ZoneService struct {
	repo database.ZoneRepository
	now  func() time.Time
}

func NewZoneService(repo database.ZoneRepository) *ZoneService {
	return &ZoneService{repo: repo, now: time.Now}
}

func (s *ZoneService) List(ctx context.Context, entityID string) ([]domain.SafeZone, error) {
	zones, err := s.repo.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "list zones", Err: err}
	}
	return zones, nil
}

// Create stores a new zone with a fresh id. Status defaults to active.
func (s *ZoneService) Create(ctx context.Context, zone *domain.SafeZone) error {
	if zone.Status == "" {
		zone.Status = domain.ZoneActive
	}
	if err := validateZone(zone); err != nil {
		return err
	}

	zone.ZoneID = uuid.NewString()
	zone.AlertSent = false
	zone.UpdatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, zone); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.NotFoundError{Resource: "child", ID: zone.EntityID}
		}
		return zoneRepoError("create zone", zone.ZoneID, err)
	}
	return nil
}

// Update replaces a zone's geometry, name and status. The alert flag is
// cleared so the next fix is judged against the new shape.
func (s *ZoneService) Update(ctx context.Context, zone *domain.SafeZone) error {
	current, err := s.repo.Get(ctx, zone.ZoneID)
	if err != nil {
		return zoneRepoError("get zone", zone.ZoneID, err)
	}

	zone.EntityID = current.EntityID
	zone.OwnerID = current.OwnerID
	if zone.Status == "" {
		zone.Status = current.Status
	}
	if err := validateZone(zone); err != nil {
		return err
	}

	zone.AlertSent = false
	zone.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, zone); err != nil {
		return zoneRepoError("update zone", zone.ZoneID, err)
	}
	return nil
}

func (s *ZoneService) Delete(ctx context.Context, zoneID string) error {
	if err := s.repo.Delete(ctx, zoneID); err != nil {
		return zoneRepoError("delete zone", zoneID, err)
	}
	return nil
}

func zoneRepoError(op, zoneID string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.NotFoundError{Resource: "zone", ID: zoneID}
	}
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("%s %s: %w", op, zoneID, domain.ErrConflict)
	}
	return &domain.RepositoryError{Op: op, Err: err}
}

func validateZone(z *domain.SafeZone) error {
	z.EntityID = strings.TrimSpace(z.EntityID)
	z.Name = strings.TrimSpace(z.Name)

	switch {
	case z.EntityID == "":
		return &domain.ValidationError{Field: "entity_id", Reason: "is required"}
	case z.Name == "":
		return &domain.ValidationError{Field: "name", Reason: "is required"}
	case !(z.RadiusMeters > 0):
		return &domain.ValidationError{Field: "radius_meters", Reason: "must be greater than zero"}
	case !z.Status.Valid():
		return &domain.ValidationError{Field: "status", Reason: "must be active or inactive"}
	}
	if err := validateCoordinate("center_latitude", &z.CenterLat, 90); err != nil {
		return err
	}
	return validateCoordinate("center_longitude", &z.CenterLon, 180)
}
