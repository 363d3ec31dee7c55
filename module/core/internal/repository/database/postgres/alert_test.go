package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

func TestAlertInsert_WithZone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	zoneID := "z-1"
	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs("a-1", "child-1", "z-1", "zone_exit", "left Casa", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewAlertRepo(db)
	err = repo.Insert(context.Background(), &domain.Alert{
		AlertID: "a-1", EntityID: "child-1", ZoneID: &zoneID, Kind: domain.AlertZoneExit, Message: "left Casa", CreatedAt: ts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestAlertInsert_WithoutZone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs("a-2", "child-1", nil, "low_battery", "battery at 10%", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewAlertRepo(db)
	err = repo.Insert(context.Background(), &domain.Alert{
		AlertID: "a-2", EntityID: "child-1", Kind: domain.AlertLowBattery, Message: "battery at 10%", CreatedAt: ts,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAlertListByEntity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	rows := sqlmock.NewRows([]string{"alert_id", "entity_id", "zone_id", "name", "kind", "message", "created_at"}).
		AddRow("a-1", "child-1", "z-1", "Casa", "zone_exit", "left Casa", ts).
		AddRow("a-2", "child-1", nil, "", "low_battery", "battery low", ts)
	mock.ExpectQuery(`FROM alerts a`).WithArgs("child-1").WillReturnRows(rows)

	repo := NewAlertRepo(db)
	alerts, err := repo.ListByEntity(context.Background(), "child-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].ZoneID == nil || *alerts[0].ZoneID != "z-1" || alerts[0].ZoneName != "Casa" {
		t.Errorf("unexpected first alert: %+v", alerts[0])
	}
	if alerts[1].ZoneID != nil {
		t.Errorf("expected nil zone id, got %v", *alerts[1].ZoneID)
	}
}

func TestAlertDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`DELETE FROM alerts`).WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM alerts`).WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewAlertRepo(db)
	if err := repo.Delete(context.Background(), "a-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Delete(context.Background(), "a-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertInsert_UnknownEntity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	ts := time.Unix(1715003456, 0)
	mock.ExpectExec(`INSERT INTO alerts`).
		WithArgs("a-1", "ghost", nil, "other", "hello", ts).
		WillReturnError(&pq.Error{Code: "23503"})

	repo := NewAlertRepo(db)
	err = repo.Insert(context.Background(), &domain.Alert{
		AlertID: "a-1", EntityID: "ghost", Kind: domain.AlertOther, Message: "hello", CreatedAt: ts,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertListByEntity_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"alert_id", "entity_id", "zone_id", "name", "kind", "message", "created_at"})
	mock.ExpectQuery(`FROM alerts a`).WithArgs("child-1").WillReturnRows(rows)

	repo := NewAlertRepo(db)
	alerts, err := repo.ListByEntity(context.Background(), "child-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alerts == nil || len(alerts) != 0 {
		t.Fatalf("expected an empty non-nil slice, got %#v", alerts)
	}
}
