package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type ZoneRepo struct {
	mu   sync.Mutex
	byID map[string]domain.SafeZone
}

func NewZoneRepo() *ZoneRepo {
	return &ZoneRepo{byID: make(map[string]domain.SafeZone)}
}

func (r *ZoneRepo) ListActiveZones(_ context.Context, entityID string) ([]domain.SafeZone, error) {
	return r.filter(func(z domain.SafeZone) bool {
		return z.EntityID == entityID && z.Status == domain.ZoneActive
	}), nil
}

func (r *ZoneRepo) ListByEntity(_ context.Context, entityID string) ([]domain.SafeZone, error) {
	return r.filter(func(z domain.SafeZone) bool { return z.EntityID == entityID }), nil
}

func (r *ZoneRepo) CompareAndSetAlertSent(_ context.Context, zoneID string, expected, next bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.byID[zoneID]
	if !ok || z.AlertSent != expected {
		return false, nil
	}
	z.AlertSent = next
	r.byID[zoneID] = z
	return true, nil
}

func (r *ZoneRepo) Get(_ context.Context, zoneID string) (*domain.SafeZone, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.byID[zoneID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &z, nil
}

func (r *ZoneRepo) Create(_ context.Context, zone *domain.SafeZone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[zone.ZoneID]; exists {
		return domain.ErrConflict
	}
	for _, z := range r.byID {
		if z.EntityID == zone.EntityID && z.Name == zone.Name {
			return domain.ErrConflict
		}
	}
	r.byID[zone.ZoneID] = *zone
	return nil
}

func (r *ZoneRepo) Update(_ context.Context, zone *domain.SafeZone) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.byID[zone.ZoneID]
	if !ok {
		return domain.ErrNotFound
	}
	for id, other := range r.byID {
		if id != z.ZoneID && other.EntityID == z.EntityID && other.Name == zone.Name {
			return domain.ErrConflict
		}
	}
	z.Name = zone.Name
	z.CenterLat = zone.CenterLat
	z.CenterLon = zone.CenterLon
	z.RadiusMeters = zone.RadiusMeters
	z.Status = zone.Status
	z.AlertSent = false
	z.UpdatedAt = zone.UpdatedAt
	r.byID[zone.ZoneID] = z
	return nil
}

func (r *ZoneRepo) Delete(_ context.Context, zoneID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[zoneID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, zoneID)
	return nil
}

func (r *ZoneRepo) filter(keep func(domain.SafeZone) bool) []domain.SafeZone {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.SafeZone, 0)
	for _, z := range r.byID {
		if keep(z) {
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ZoneID < out[j].ZoneID })
	return out
}
