package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

var _ database.ZoneRepository = (*ZoneRepo)(nil)

const zoneColumns = `zone_id, entity_id, owner_id, name, center_latitude, center_longitude, radius_meters, status, alert_sent, updated_at`

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type ZoneRepo struct {
	db *sql.DB
}

func NewZoneRepo(db *sql.DB) *ZoneRepo {
	return &ZoneRepo{db: db}
}

func (r *ZoneRepo) ListActiveZones(ctx context.Context, entityID string) ([]domain.SafeZone, error) {
	return r.list(ctx,
		`SELECT `+zoneColumns+` FROM safe_zones WHERE entity_id = $1 AND status = 'active' ORDER BY zone_id`,
		entityID,
	)
}

func (r *ZoneRepo) ListByEntity(ctx context.Context, entityID string) ([]domain.SafeZone, error) {
	return r.list(ctx,
		`SELECT `+zoneColumns+` FROM safe_zones WHERE entity_id = $1 ORDER BY name`,
		entityID,
	)
}

func (r *ZoneRepo) CompareAndSetAlertSent(ctx context.Context, zoneID string, expected, next bool) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE safe_zones SET alert_sent = $1, updated_at = NOW() WHERE zone_id = $2 AND alert_sent = $3`,
		next, zoneID, expected,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ZoneRepo) Get(ctx context.Context, zoneID string) (*domain.SafeZone, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+zoneColumns+` FROM safe_zones WHERE zone_id = $1`, zoneID)

	z, err := scanZone(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return z, nil
}

func (r *ZoneRepo) Create(ctx context.Context, z *domain.SafeZone) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO safe_zones (`+zoneColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		z.ZoneID, z.EntityID, z.OwnerID, z.Name, z.CenterLat, z.CenterLon, z.RadiusMeters, string(z.Status), z.AlertSent, z.UpdatedAt,
	)
	return mapWriteError(err)
}

// Update rewrites the zone definition and clears alert_sent.
func (r *ZoneRepo) Update(ctx context.Context, z *domain.SafeZone) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE safe_zones SET name = $1, center_latitude = $2, center_longitude = $3, radius_meters = $4, status = $5, alert_sent = FALSE, updated_at = $6 WHERE zone_id = $7`,
		z.Name, z.CenterLat, z.CenterLon, z.RadiusMeters, string(z.Status), z.UpdatedAt, z.ZoneID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(res)
}

func (r *ZoneRepo) Delete(ctx context.Context, zoneID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM safe_zones WHERE zone_id = $1`, zoneID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (r *ZoneRepo) list(ctx context.Context, query string, args ...any) ([]domain.SafeZone, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]domain.SafeZone, 0)
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *z)
	}
	return results, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanZone(s scanner) (*domain.SafeZone, error) {
	var z domain.SafeZone
	var status string
	if err := s.Scan(&z.ZoneID, &z.EntityID, &z.OwnerID, &z.Name, &z.CenterLat, &z.CenterLon, &z.RadiusMeters, &status, &z.AlertSent, &z.UpdatedAt); err != nil {
		return nil, err
	}
	z.Status = domain.ZoneStatus(status)
	return &z, nil
}

// mapWriteError turns unique violations into ErrConflict and references to
// a missing child into ErrNotFound.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return domain.ErrConflict
		case foreignKeyViolation:
			return domain.ErrNotFound
		}
	}
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
