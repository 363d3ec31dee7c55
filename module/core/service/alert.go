package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/metrics"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/mailer"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher"
)

type guardianLookup interface {
	GetGuardian(ctx context.Context, entityID string) (*domain.Guardian, error)
}

// AlertChannels are the optional fan-out targets of AlertService. A nil
// channel is skipped.
type AlertChannels struct {
	Broker   publisher.AlertPublisher
	Realtime publisher.RealtimePublisher
	Mailer   mailer.Mailer
	// EmailLimiter throttles outgoing mail. Nil means unlimited.
	EmailLimiter *rate.Limiter
}

type AlertService struct {
	alerts    database.AlertRepository
	guardians guardianLookup
	channels  AlertChannels
	now       func() time.Time
}

func NewAlertService(alerts database.AlertRepository, guardians guardianLookup, channels AlertChannels) *AlertService {
	return &AlertService{
		alerts:    alerts,
		guardians: guardians,
		channels:  channels,
		now:       time.Now,
	}
}

// Raise stores an alert and then delivers it to the broker, the owner's
// realtime stream and the guardian's inbox. Only the store step can fail
// the call; delivery failures are logged and counted.
func (s *AlertService) Raise(ctx context.Context, req domain.RaiseRequest) (*domain.Alert, error) {
	if err := validateRaise(&req); err != nil {
		return nil, err
	}

	alert := &domain.Alert{
		AlertID:   uuid.NewString(),
		EntityID:  req.EntityID,
		ZoneID:    req.ZoneID,
		ZoneName:  req.ZoneName,
		Kind:      req.Kind,
		Message:   req.Message,
		CreatedAt: s.now().UTC(),
	}
	if err := s.alerts.Insert(ctx, alert); err != nil {
		metrics.EmissionsTotal.WithLabelValues("store", "error").Inc()
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &domain.NotFoundError{Resource: "child", ID: alert.EntityID}
		}
		return nil, &domain.EmissionError{Channel: "store", Err: err}
	}
	metrics.EmissionsTotal.WithLabelValues("store", "ok").Inc()

	guardian, err := s.guardians.GetGuardian(ctx, alert.EntityID)
	if err != nil {
		log.Printf("guardian lookup error for entity %s: %v", alert.EntityID, err)
		guardian = nil
	}

	ownerID := ""
	if guardian != nil {
		ownerID = guardian.OwnerID
	}

	if s.channels.Broker != nil {
		err := s.channels.Broker.PublishAlert(ctx, &domain.AlertNotification{Alert: *alert, OwnerID: ownerID})
		s.record("broker", err)
	}

	if s.channels.Realtime != nil && ownerID != "" {
		err := s.channels.Realtime.Publish(ctx, ownerID, domain.RealtimeEvent{Type: domain.RealtimeAlert, Data: alert})
		s.record("realtime", err)
	}

	if s.channels.Mailer != nil && guardian != nil && guardian.Email != "" {
		s.record("email", s.sendEmail(ctx, guardian, alert))
	}

	return alert, nil
}

var errEmailThrottled = errors.New("email rate limit exceeded")

func (s *AlertService) sendEmail(ctx context.Context, g *domain.Guardian, alert *domain.Alert) error {
	if s.channels.EmailLimiter != nil && !s.channels.EmailLimiter.Allow() {
		return errEmailThrottled
	}

	subject, body, err := mailer.RenderAlert(mailer.AlertEmail{
		ChildName:   g.ChildName,
		TrackerName: g.TrackerName,
		ZoneName:    alert.ZoneName,
		Kind:        alert.Kind,
		Message:     alert.Message,
		Timestamp:   alert.CreatedAt,
	})
	if err != nil {
		return err
	}
	return s.channels.Mailer.Send(ctx, g.Email, subject, body)
}

func (s *AlertService) record(channel string, err error) {
	metrics.EmissionsTotal.WithLabelValues(channel, metrics.Status(err)).Inc()
	if err != nil {
		log.Printf("alert %s delivery error: %v", channel, err)
	}
}

func (s *AlertService) ListByEntity(ctx context.Context, entityID string) ([]domain.Alert, error) {
	alerts, err := s.alerts.ListByEntity(ctx, entityID)
	if err != nil {
		return nil, &domain.RepositoryError{Op: "list alerts", Err: err}
	}
	return alerts, nil
}

func (s *AlertService) Delete(ctx context.Context, alertID string) error {
	if err := s.alerts.Delete(ctx, alertID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.NotFoundError{Resource: "alert", ID: alertID}
		}
		return &domain.RepositoryError{Op: "delete alert", Err: err}
	}
	return nil
}

func validateRaise(req *domain.RaiseRequest) error {
	req.EntityID = strings.TrimSpace(req.EntityID)
	req.Message = strings.TrimSpace(req.Message)

	if req.EntityID == "" {
		return &domain.ValidationError{Field: "entity_id", Reason: "is required"}
	}
	if !req.Kind.Valid() {
		return &domain.ValidationError{Field: "kind", Reason: "must be zone_exit, low_battery or other"}
	}
	if req.Message == "" {
		return &domain.ValidationError{Field: "message", Reason: "is required"}
	}
	return nil
}
