package http

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type realtimeSubscriber interface {
	Subscribe(ctx context.Context, ownerID string) (<-chan domain.RealtimeEvent, func(), error)
}

// RealtimeHandler streams location and alert events to a guardian's
// browser or phone over a websocket.
type RealtimeHandler struct {
	subscriber realtimeSubscriber
}

func NewRealtimeHandler(subscriber realtimeSubscriber) *RealtimeHandler {
	return &RealtimeHandler{subscriber: subscriber}
}

func (h *RealtimeHandler) Register(r gin.IRoutes) {
	r.GET("/ws", h.Stream)
}

func (h *RealtimeHandler) Stream(c *gin.Context) {
	ownerID := strings.TrimSpace(c.Query("user_id"))
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe, err := h.subscriber.Subscribe(ctx, ownerID)
	if err != nil {
		log.Printf("realtime subscribe error for %s: %v", ownerID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "realtime unavailable"})
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()

	// Client messages are ignored; reading keeps pongs flowing and tells us
	// when the peer goes away.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
