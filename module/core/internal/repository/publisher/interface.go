package publisher

import (
	"context"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type AlertPublisher interface {
	PublishAlert(ctx context.Context, n *domain.AlertNotification) error
}

// RealtimePublisher pushes events to every socket a guardian has open.
type RealtimePublisher interface {
	Publish(ctx context.Context, ownerID string, evt domain.RealtimeEvent) error
}

type RealtimeSubscriber interface {
	Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, func(), error)
}
