package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

var _ database.LocationRepository = (*LocationRepo)(nil)

type LocationRepo struct {
	db *sql.DB
}

func NewLocationRepo(db *sql.DB) *LocationRepo {
	return &LocationRepo{db: db}
}

func (r *LocationRepo) Insert(ctx context.Context, fix *domain.LocationFix) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO locations (entity_id, latitude, longitude, captured_at) VALUES ($1, $2, $3, $4)`,
		fix.EntityID, fix.Lat, fix.Lon, fix.CapturedAt,
	)
	return err
}

func (r *LocationRepo) GetLatest(ctx context.Context, entityID string) (*domain.LocationFix, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT entity_id, latitude, longitude, captured_at FROM locations WHERE entity_id = $1 ORDER BY captured_at DESC LIMIT 1`,
		entityID,
	)

	var fix domain.LocationFix
	if err := row.Scan(&fix.EntityID, &fix.Lat, &fix.Lon, &fix.CapturedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &fix, nil
}

func (r *LocationRepo) GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.LocationFix, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entity_id, latitude, longitude, captured_at FROM locations WHERE entity_id = $1 AND captured_at >= $2 AND captured_at <= $3 ORDER BY captured_at ASC`,
		query.EntityID, query.Start, query.End,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]domain.LocationFix, 0)
	for rows.Next() {
		var fix domain.LocationFix
		if err := rows.Scan(&fix.EntityID, &fix.Lat, &fix.Lon, &fix.CapturedAt); err != nil {
			return nil, err
		}
		results = append(results, fix)
	}
	return results, rows.Err()
}
