// Package memory holds in-process repositories used for local runs and
// tests. Each repository guards its own state with a mutex.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

var (
	_ database.LocationRepository = (*LocationRepo)(nil)
	_ database.TrackerRepository  = (*TrackerRepo)(nil)
	_ database.ZoneRepository     = (*ZoneRepo)(nil)
	_ database.AlertRepository    = (*AlertRepo)(nil)
)

type LocationRepo struct {
	mu       sync.RWMutex
	byEntity map[string][]domain.LocationFix
}

func NewLocationRepo() *LocationRepo {
	return &LocationRepo{byEntity: make(map[string][]domain.LocationFix)}
}

func (r *LocationRepo) Insert(_ context.Context, fix *domain.LocationFix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEntity[fix.EntityID] = append(r.byEntity[fix.EntityID], *fix)
	return nil
}

func (r *LocationRepo) GetLatest(_ context.Context, entityID string) (*domain.LocationFix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fixes := r.byEntity[entityID]
	if len(fixes) == 0 {
		return nil, domain.ErrNotFound
	}
	latest := fixes[0]
	for _, f := range fixes[1:] {
		if !f.CapturedAt.Before(latest.CapturedAt) {
			latest = f
		}
	}
	return &latest, nil
}

func (r *LocationRepo) GetHistory(_ context.Context, query *domain.HistoryQuery) ([]domain.LocationFix, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.LocationFix, 0)
	for _, f := range r.byEntity[query.EntityID] {
		if f.CapturedAt.Before(query.Start) || f.CapturedAt.After(query.End) {
			continue
		}
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, nil
}

// Count returns how many fixes are stored for an entity.
func (r *LocationRepo) Count(entityID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byEntity[entityID])
}

type TrackerRepo struct {
	mu        sync.RWMutex
	byDevice  map[string]domain.Tracker
	guardians map[string]domain.Guardian
}

func NewTrackerRepo() *TrackerRepo {
	return &TrackerRepo{
		byDevice:  make(map[string]domain.Tracker),
		guardians: make(map[string]domain.Guardian),
	}
}

func (r *TrackerRepo) Put(t domain.Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byDevice[t.DeviceName] = t
}

func (r *TrackerRepo) PutGuardian(entityID string, g domain.Guardian) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guardians[entityID] = g
}

func (r *TrackerRepo) FindByDevice(_ context.Context, deviceName string) (*domain.Tracker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byDevice[deviceName]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (r *TrackerRepo) GetGuardian(_ context.Context, entityID string) (*domain.Guardian, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.guardians[entityID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}
