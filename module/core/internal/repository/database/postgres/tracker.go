package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

var _ database.TrackerRepository = (*TrackerRepo)(nil)

type TrackerRepo struct {
	db *sql.DB
}

func NewTrackerRepo(db *sql.DB) *TrackerRepo {
	return &TrackerRepo{db: db}
}

func (r *TrackerRepo) FindByDevice(ctx context.Context, deviceName string) (*domain.Tracker, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT tracker_id, device_name, entity_id, owner_id FROM trackers WHERE device_name = $1 AND entity_id IS NOT NULL LIMIT 1`,
		deviceName,
	)

	var t domain.Tracker
	if err := row.Scan(&t.TrackerID, &t.DeviceName, &t.EntityID, &t.OwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *TrackerRepo) GetGuardian(ctx context.Context, entityID string) (*domain.Guardian, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT u.user_id, u.email, c.name, COALESCE(t.device_name, '')
		FROM children c
		JOIN users u ON u.user_id = c.owner_id
		LEFT JOIN trackers t ON t.entity_id = c.entity_id
		WHERE c.entity_id = $1
		LIMIT 1`,
		entityID,
	)

	var g domain.Guardian
	if err := row.Scan(&g.OwnerID, &g.Email, &g.ChildName, &g.TrackerName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &g, nil
}
