package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher"
)

var (
	_ publisher.RealtimePublisher  = (*Realtime)(nil)
	_ publisher.RealtimeSubscriber = (*Realtime)(nil)
)

// Realtime fans events out over Redis pub/sub so every server instance can
// deliver to the sockets it holds.
type Realtime struct {
	rdb *goredis.Client
}

func NewRealtime(rdb *goredis.Client) *Realtime {
	return &Realtime{rdb: rdb}
}

func ChannelName(ownerID string) string { return "user:" + ownerID }

func (r *Realtime) Publish(ctx context.Context, ownerID string, evt domain.RealtimeEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}
	return r.rdb.Publish(ctx, ChannelName(ownerID), data).Err()
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (r *Realtime) Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, func(), error) {
	ps := r.rdb.Subscribe(ctx, ChannelName(ownerID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan domain.RealtimeEvent, 16)
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var evt wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				continue
			}
			select {
			case out <- domain.RealtimeEvent{Type: evt.Type, Data: evt.Data}:
			default:
			}
		}
	}()

	return out, func() { _ = ps.Close() }, nil
}
