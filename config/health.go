package config

import (
	"context"
	"database/sql"
	"net/http"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
)

// HealthChecker reports the state of each configured backing service. A
// nil dependency is reported as disabled and does not fail the check.
type HealthChecker struct {
	db       *sql.DB
	amqpConn *amqp.Connection
	mqtt     mqtt.Client
	redis    *goredis.Client
}

func NewHealthChecker(db *sql.DB, amqpConn *amqp.Connection, mqttClient mqtt.Client, redisClient *goredis.Client) *HealthChecker {
	return &HealthChecker{db: db, amqpConn: amqpConn, mqtt: mqttClient, redis: redisClient}
}

func (h *HealthChecker) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Handle)
}

func (h *HealthChecker) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	deps := gin.H{}
	healthy := true

	report := func(name string, enabled bool, check func(context.Context) string) {
		if !enabled {
			deps[name] = gin.H{"status": "disabled"}
			return
		}
		if msg := check(ctx); msg != "" {
			deps[name] = gin.H{"status": "down", "error": msg}
			healthy = false
			return
		}
		deps[name] = gin.H{"status": "up"}
	}

	report("postgres", h.db != nil, func(ctx context.Context) string {
		if err := h.db.PingContext(ctx); err != nil {
			return err.Error()
		}
		return ""
	})
	report("rabbitmq", h.amqpConn != nil, func(context.Context) string {
		if h.amqpConn.IsClosed() {
			return "connection closed"
		}
		return ""
	})
	report("mqtt", h.mqtt != nil, func(context.Context) string {
		if !h.mqtt.IsConnected() {
			return "not connected"
		}
		return ""
	})
	report("redis", h.redis != nil, func(ctx context.Context) string {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			return err.Error()
		}
		return ""
	})

	status, overall := http.StatusOK, "healthy"
	if !healthy {
		status, overall = http.StatusServiceUnavailable, "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":       overall,
		"dependencies": deps,
	})
}
