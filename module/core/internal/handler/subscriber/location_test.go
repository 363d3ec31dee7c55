package subscriber

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type mockIngestSvc struct {
	ingestFn func(ctx context.Context, raw domain.RawFix) (*domain.IngestResult, error)
	calls    []domain.RawFix
}

func (m *mockIngestSvc) Ingest(ctx context.Context, raw domain.RawFix) (*domain.IngestResult, error) {
	m.calls = append(m.calls, raw)
	if m.ingestFn != nil {
		return m.ingestFn(ctx, raw)
	}
	return &domain.IngestResult{}, nil
}

type fakeMQTTMessage struct {
	topic   string
	payload []byte
}

func (f *fakeMQTTMessage) Duplicate() bool   { return false }
func (f *fakeMQTTMessage) Qos() byte         { return 0 }
func (f *fakeMQTTMessage) Retained() bool    { return false }
func (f *fakeMQTTMessage) Topic() string     { return f.topic }
func (f *fakeMQTTMessage) MessageID() uint16 { return 0 }
func (f *fakeMQTTMessage) Payload() []byte   { return f.payload }
func (f *fakeMQTTMessage) Ack()              {}

func TestHandleMessage_Success(t *testing.T) {
	svc := &mockIngestSvc{}
	sub := &LocationSubscriber{ingestSvc: svc}

	payload := []byte(`{"device_id":"PULSERA-01","latitude":-17.3895,"longitude":-66.1568,"timestamp":1715003456}`)
	sub.handleMessage(nil, &fakeMQTTMessage{topic: "/safezone/tracker/PULSERA-01/location", payload: payload})

	if len(svc.calls) != 1 {
		t.Fatalf("expected Ingest to be called once, got %d", len(svc.calls))
	}
	raw := svc.calls[0]
	if raw.TrackerID != "PULSERA-01" {
		t.Errorf("expected PULSERA-01, got %s", raw.TrackerID)
	}
	if raw.Source != "mqtt" {
		t.Errorf("expected mqtt source, got %s", raw.Source)
	}
	if *raw.Lat != -17.3895 {
		t.Errorf("expected -17.3895, got %f", *raw.Lat)
	}
	expectedTs := time.Unix(1715003456, 0)
	if raw.CapturedAt == nil || !raw.CapturedAt.Equal(expectedTs) {
		t.Errorf("expected %v, got %v", expectedTs, raw.CapturedAt)
	}
}

func TestHandleMessage_TrackerFromTopic(t *testing.T) {
	svc := &mockIngestSvc{}
	sub := &LocationSubscriber{ingestSvc: svc}

	payload := []byte(`{"lat":-17.3895,"lon":-66.1568}`)
	sub.handleMessage(nil, &fakeMQTTMessage{topic: "/safezone/tracker/PULSERA-07/location", payload: payload})

	if len(svc.calls) != 1 || svc.calls[0].TrackerID != "PULSERA-07" {
		t.Fatalf("expected tracker id from topic, got %+v", svc.calls)
	}
}

func TestHandleMessage_InvalidJSON(t *testing.T) {
	svc := &mockIngestSvc{
		ingestFn: func(context.Context, domain.RawFix) (*domain.IngestResult, error) {
			t.Fatal("Ingest should not be called")
			return nil, nil
		},
	}

	sub := &LocationSubscriber{ingestSvc: svc}
	sub.handleMessage(nil, &fakeMQTTMessage{topic: "/safezone/tracker/X/location", payload: []byte("invalid")})
}

func TestHandleMessage_IngestErrorIsLogged(t *testing.T) {
	svc := &mockIngestSvc{
		ingestFn: func(context.Context, domain.RawFix) (*domain.IngestResult, error) {
			return nil, errors.New("db error")
		},
	}

	sub := &LocationSubscriber{ingestSvc: svc}
	payload := []byte(`{"device_id":"PULSERA-01","latitude":1,"longitude":1}`)
	sub.handleMessage(nil, &fakeMQTTMessage{topic: "/safezone/tracker/PULSERA-01/location", payload: payload})

	if len(svc.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(svc.calls))
	}
}

func TestTrackerFromTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"/safezone/tracker/PULSERA-01/location", "PULSERA-01"},
		{"safezone/tracker/abc/location", "abc"},
		{"/safezone/device/B1234/location", ""},
		{"/safezone/tracker/location", ""},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := trackerFromTopic(tt.topic); got != tt.want {
				t.Errorf("trackerFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
			}
		})
	}
}
