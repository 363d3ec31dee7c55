package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/VaniaEncinas/ProyectoGradoGPS/config"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.StoreMode == config.StorePostgres {
		db, err = config.NewPostgres(cfg)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer func() { _ = db.Close() }()

		if err := core.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}

	var amqpConn *amqp.Connection
	if cfg.RabbitMQURL != "" {
		amqpConn, err = config.NewRabbitMQ(cfg)
		if err != nil {
			log.Fatalf("rabbitmq: %v", err)
		}
		defer func() { _ = amqpConn.Close() }()
	}

	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedis(cfg)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer func() { _ = rdb.Close() }()
	}

	coreModule, err := core.Build(cfg, db, amqpConn, rdb)
	if err != nil {
		log.Fatalf("core module: %v", err)
	}

	var mqttClient mqtt.Client
	if cfg.MQTTBroker != "" {
		mqttClient, err = config.NewMQTT(cfg, coreModule.MQTTOnConnect)
		if err != nil {
			log.Fatalf("mqtt: %v", err)
		}
		defer mqttClient.Disconnect(250)
	}

	r := gin.Default()

	health := config.NewHealthChecker(db, amqpConn, mqttClient, rdb)
	health.Register(r)

	coreModule.RegisterMetrics(r)
	coreModule.RegisterRealtime(r)
	coreModule.RegisterRoutes(r.Group("/api"))

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.TCPAddr != "" {
		g.Go(func() error {
			return coreModule.RunTCP(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		log.Printf("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: %v", err)
		os.Exit(1)
	}
}
