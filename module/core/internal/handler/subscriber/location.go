package subscriber

import (
	"context"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/payload"
)

const (
	TopicPattern   = "/safezone/tracker/+/location"
	handlerTimeout = 10 * time.Second
)

type ingestService interface {
	Ingest(ctx context.Context, raw domain.RawFix) (*domain.IngestResult, error)
}

// LocationSubscriber feeds fixes published by trackers over MQTT into the
// ingestion pipeline.
type LocationSubscriber struct {
	ingestSvc ingestService
}

func NewLocationSubscriber(ingestSvc ingestService) *LocationSubscriber {
	return &LocationSubscriber{ingestSvc: ingestSvc}
}

func (s *LocationSubscriber) Start(client mqtt.Client) error {
	token := client.Subscribe(TopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

// OnConnect is meant for the client's on-connect hook so the subscription
// is restored after every reconnect.
func (s *LocationSubscriber) OnConnect(client mqtt.Client) {
	if err := s.Start(client); err != nil {
		log.Printf("mqtt subscribe %s error: %v", TopicPattern, err)
		return
	}
	log.Printf("mqtt subscribed to %s", TopicPattern)
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	raw, err := payload.DecodeJSON(msg.Payload())
	if err != nil {
		log.Printf("invalid location message on %s: %v", msg.Topic(), err)
		return
	}
	if raw.TrackerID == "" {
		raw.TrackerID = trackerFromTopic(msg.Topic())
	}
	raw.Source = "mqtt"

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	result, err := s.ingestSvc.Ingest(ctx, raw)
	if err != nil {
		log.Printf("ingest error for %s: %v", raw.TrackerID, err)
		return
	}
	if len(result.Events) > 0 {
		log.Printf("tracker %s: %d zone exit(s)", raw.TrackerID, len(result.Events))
	}
}

// trackerFromTopic extracts the wildcard segment of
// /safezone/tracker/<id>/location.
func trackerFromTopic(topic string) string {
	parts := strings.Split(strings.Trim(topic, "/"), "/")
	if len(parts) != 4 || parts[0] != "safezone" || parts[1] != "tracker" || parts[3] != "location" {
		return ""
	}
	return parts[2]
}
