package core

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/VaniaEncinas/ProyectoGradoGPS/config"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	handler "github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/http"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/subscriber"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/tcp"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/lock"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/metrics"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database/memory"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/database/postgres"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/mailer"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher"
	realtimemem "github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher/memory"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher/rabbitmq"
	realtimeredis "github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/repository/publisher/redis"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/service"
)

type Module struct {
	IngestSvc   *service.IngestService
	GeofenceSvc *service.GeofenceService
	AlertSvc    *service.AlertService
	ZoneSvc     *service.ZoneService
	LocationSvc *service.LocationService

	tracker    *handler.TrackerHandler
	location   *handler.LocationHandler
	zone       *handler.ZoneHandler
	alert      *handler.AlertHandler
	realtime   *handler.RealtimeHandler
	subscriber *subscriber.LocationSubscriber
	tcpServer  *tcp.Server
}

type repositories struct {
	locations database.LocationRepository
	trackers  database.TrackerRepository
	zones     database.ZoneRepository
	alerts    database.AlertRepository
}

// Build wires the module. A nil db selects the in-memory store, a nil
// amqpConn disables the broker and a nil rdb falls back to in-process
// locking and realtime delivery.
func Build(cfg *config.Config, db *sql.DB, amqpConn *amqp.Connection, rdb *goredis.Client) (*Module, error) {
	repos := buildRepositories(cfg, db)

	var (
		locker   lock.Locker
		realtime interface {
			publisher.RealtimePublisher
			publisher.RealtimeSubscriber
		}
	)
	if rdb != nil {
		locker = lock.NewRedis(rdb, cfg.LockTTL)
		realtime = realtimeredis.NewRealtime(rdb)
	} else {
		locker = lock.NewLocal()
		realtime = realtimemem.NewHub()
	}

	channels := service.AlertChannels{Realtime: realtime}
	if amqpConn != nil {
		pub, err := rabbitmq.NewAlertPublisher(amqpConn)
		if err != nil {
			return nil, fmt.Errorf("alert publisher: %w", err)
		}
		channels.Broker = pub
	}
	if cfg.EmailEnabled() {
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return nil, fmt.Errorf("mailer: %w", err)
		}
		channels.Mailer = m
		channels.EmailLimiter = emailLimiter(cfg.EmailPerMinute, cfg.EmailBurst)
	}

	geofenceSvc := service.NewGeofenceService(repos.zones)
	alertSvc := service.NewAlertService(repos.alerts, repos.trackers, channels)
	ingestSvc := service.NewIngestService(repos.trackers, repos.locations, geofenceSvc, alertSvc, realtime, locker)
	zoneSvc := service.NewZoneService(repos.zones)
	locationSvc := service.NewLocationService(repos.locations)

	return &Module{
		IngestSvc:   ingestSvc,
		GeofenceSvc: geofenceSvc,
		AlertSvc:    alertSvc,
		ZoneSvc:     zoneSvc,
		LocationSvc: locationSvc,
		tracker:     handler.NewTrackerHandler(ingestSvc),
		location:    handler.NewLocationHandler(locationSvc),
		zone:        handler.NewZoneHandler(zoneSvc),
		alert:       handler.NewAlertHandler(alertSvc),
		realtime:    handler.NewRealtimeHandler(realtime),
		subscriber:  subscriber.NewLocationSubscriber(ingestSvc),
		tcpServer:   tcp.NewServer(cfg.TCPAddr, ingestSvc),
	}, nil
}

func buildRepositories(cfg *config.Config, db *sql.DB) repositories {
	if db != nil {
		return repositories{
			locations: postgres.NewLocationRepo(db),
			trackers:  postgres.NewTrackerRepo(db),
			zones:     postgres.NewZoneRepo(db),
			alerts:    postgres.NewAlertRepo(db),
		}
	}

	trackers := memory.NewTrackerRepo()
	for _, seed := range cfg.Trackers {
		trackers.Put(domain.Tracker{
			TrackerID:  seed.DeviceName,
			DeviceName: seed.DeviceName,
			EntityID:   seed.EntityID,
			OwnerID:    seed.OwnerID,
		})
		trackers.PutGuardian(seed.EntityID, domain.Guardian{
			OwnerID:     seed.OwnerID,
			Email:       seed.Email,
			ChildName:   seed.ChildName,
			TrackerName: seed.DeviceName,
		})
	}
	log.Printf("using in-memory store with %d seeded tracker(s)", len(cfg.Trackers))

	return repositories{
		locations: memory.NewLocationRepo(),
		trackers:  trackers,
		zones:     memory.NewZoneRepo(),
		alerts:    memory.NewAlertRepo(),
	}
}

// emailLimiter allows perMinute sends per minute. Zero means unlimited.
func emailLimiter(perMinute float64, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = int(math.Max(1, perMinute))
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

// EnsureSchema creates the Postgres tables when they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	return postgres.EnsureSchema(ctx, db)
}

func (m *Module) RegisterRoutes(r *gin.RouterGroup) {
	m.tracker.Register(r)
	m.location.Register(r)
	m.zone.Register(r)
	m.alert.Register(r)
}

func (m *Module) RegisterRealtime(r gin.IRoutes) {
	m.realtime.Register(r)
}

// RegisterMetrics exposes the Prometheus registry on /metrics.
func (m *Module) RegisterMetrics(r gin.IRoutes) {
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// MQTTOnConnect subscribes to tracker fixes; install it as the MQTT
// client's on-connect hook.
func (m *Module) MQTTOnConnect(client mqtt.Client) {
	m.subscriber.OnConnect(client)
}

// RunTCP serves the GPS line protocol until ctx is cancelled.
func (m *Module) RunTCP(ctx context.Context) error {
	return m.tcpServer.Run(ctx)
}
