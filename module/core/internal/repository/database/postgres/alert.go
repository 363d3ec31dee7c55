package postgres

import (
	"context"
	"database/sql"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
)

var _ database.AlertRepository = (*AlertRepo)(nil)

type AlertRepo struct {
	db *sql.DB
}

func NewAlertRepo(db *sql.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) Insert(ctx context.Context, a *domain.Alert) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (alert_id, entity_id, zone_id, kind, message, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.AlertID, a.EntityID, nullableString(a.ZoneID), string(a.Kind), a.Message, a.CreatedAt,
	)
	return mapWriteError(err)
}

func (r *AlertRepo) ListByEntity(ctx context.Context, entityID string) ([]domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.alert_id, a.entity_id, a.zone_id, COALESCE(z.name, ''), a.kind, a.message, a.created_at
		FROM alerts a
		LEFT JOIN safe_zones z ON z.zone_id = a.zone_id
		WHERE a.entity_id = $1
		ORDER BY a.created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	results := make([]domain.Alert, 0)
	for rows.Next() {
		var a domain.Alert
		var zoneID sql.NullString
		var kind string
		if err := rows.Scan(&a.AlertID, &a.EntityID, &zoneID, &a.ZoneName, &kind, &a.Message, &a.CreatedAt); err != nil {
			return nil, err
		}
		if zoneID.Valid {
			id := zoneID.String
			a.ZoneID = &id
		}
		a.Kind = domain.AlertKind(kind)
		results = append(results, a)
	}
	return results, rows.Err()
}

func (r *AlertRepo) Delete(ctx context.Context, alertID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE alert_id = $1`, alertID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
