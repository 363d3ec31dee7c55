package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type AlertRepo struct {
	mu   sync.RWMutex
	byID map[string]domain.Alert
}

func NewAlertRepo() *AlertRepo {
	return &AlertRepo{byID: make(map[string]domain.Alert)}
}

func (r *AlertRepo) Insert(_ context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[alert.AlertID]; exists {
		return domain.ErrConflict
	}
	r.byID[alert.AlertID] = *alert
	return nil
}

func (r *AlertRepo) ListByEntity(_ context.Context, entityID string) ([]domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Alert, 0)
	for _, a := range r.byID {
		if a.EntityID == entityID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *AlertRepo) Delete(_ context.Context, alertID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[alertID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.byID, alertID)
	return nil
}
