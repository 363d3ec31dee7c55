package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher"
)

var _ publisher.AlertPublisher = (*AlertPublisher)(nil)

const (
	ExchangeName = "safezone.events"
	QueueName    = "zone_alerts"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AlertPublisher struct {
	ch channel
}

func NewAlertPublisher(conn *amqp.Connection) (*AlertPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := DeclareTopology(ch); err != nil {
		return nil, err
	}

	return &AlertPublisher{ch: ch}, nil
}

// DeclareTopology declares the fanout exchange and the alert queue bound to it.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

type AlertMessage struct {
	AlertID   string           `json:"alert_id"`
	EntityID  string           `json:"entity_id"`
	OwnerID   string           `json:"owner_id"`
	ZoneID    *string          `json:"zone_id"`
	ZoneName  string           `json:"zone_name,omitempty"`
	Kind      domain.AlertKind `json:"kind"`
	Message   string           `json:"message"`
	Timestamp int64            `json:"timestamp"`
}

func (p *AlertPublisher) PublishAlert(ctx context.Context, n *domain.AlertNotification) error {
	msg := AlertMessage{
		AlertID:   n.Alert.AlertID,
		EntityID:  n.Alert.EntityID,
		OwnerID:   n.OwnerID,
		ZoneID:    n.Alert.ZoneID,
		ZoneName:  n.Alert.ZoneName,
		Kind:      n.Alert.Kind,
		Message:   n.Alert.Message,
		Timestamp: n.Alert.CreatedAt.Unix(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return p.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.Alert.AlertID,
		Type:         string(n.Alert.Kind),
		Body:         body,
	})
}
