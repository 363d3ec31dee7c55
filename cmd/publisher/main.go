package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/cobra"
)

const metersPerDegree = 6371000 * math.Pi / 180

var (
	transport string
	broker    string
	serverURL string
	tcpAddr   string
	devices   []string
	interval  time.Duration
	centerLat float64
	centerLon float64
	radius    float64
	outside   float64
)

var rootCmd = &cobra.Command{
	Use:   "tracker-sim",
	Short: "Simulate child trackers wandering around a safe zone",
	Long: `tracker-sim publishes fixes for a pool of devices around a zone center,
crossing the zone boundary now and then so exit alerts can be observed.`,
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&transport, "transport", "t", "mqtt", "mqtt, http or tcp")
	f.StringVar(&broker, "broker", envOr("MQTT_BROKER", "tcp://localhost:1883"), "MQTT broker")
	f.StringVar(&serverURL, "server", "http://localhost:8080", "HTTP server base URL")
	f.StringVar(&tcpAddr, "tcp-addr", "localhost:9000", "GPS line protocol address")
	f.StringSliceVarP(&devices, "device", "d", []string{"PULSERA-01"}, "device names to simulate")
	f.DurationVarP(&interval, "interval", "i", 2*time.Second, "time between fixes")
	f.Float64Var(&centerLat, "lat", -17.3895, "zone center latitude")
	f.Float64Var(&centerLon, "lon", -66.1568, "zone center longitude")
	f.Float64Var(&radius, "radius", 50, "zone radius in meters")
	f.Float64Var(&outside, "outside", 0.3, "probability that a fix lands outside the zone")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type fix struct {
	DeviceID  string  `json:"device_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

type sender func(f fix) error

func run(_ *cobra.Command, _ []string) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if len(devices) == 0 {
		return fmt.Errorf("at least one device is required")
	}

	send, closeFn, err := newSender(transport)
	if err != nil {
		return err
	}
	defer closeFn()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("sending %s fixes every %s for %v", transport, interval, devices)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			log.Println("shutting down")
			return nil
		case <-ticker.C:
			f := randomFix(devices[rand.Intn(len(devices))])
			if err := send(f); err != nil {
				log.Printf("send error for %s: %v", f.DeviceID, err)
				continue
			}
			log.Printf("sent %s (%.6f, %.6f)", f.DeviceID, f.Latitude, f.Longitude)
		}
	}
}

// randomFix places a point inside the zone, or up to three radii away
// from it with probability outside.
func randomFix(device string) fix {
	dist := rand.Float64() * radius * 0.9
	if rand.Float64() < outside {
		dist = radius * (1.2 + rand.Float64()*1.8)
	}
	bearing := rand.Float64() * 2 * math.Pi

	dLat := dist * math.Cos(bearing) / metersPerDegree
	dLon := dist * math.Sin(bearing) / (metersPerDegree * math.Cos(centerLat*math.Pi/180))

	return fix{
		DeviceID:  device,
		Latitude:  centerLat + dLat,
		Longitude: centerLon + dLon,
		Timestamp: time.Now().Unix(),
	}
}

func newSender(kind string) (sender, func(), error) {
	switch kind {
	case "mqtt":
		opts := mqtt.NewClientOptions().
			AddBroker(broker).
			SetClientID(fmt.Sprintf("safezone-sim-%d", rand.Intn(1_000_000)))
		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return nil, nil, fmt.Errorf("mqtt connect: %w", token.Error())
		}
		send := func(f fix) error {
			payload, _ := json.Marshal(f)
			token := client.Publish(fmt.Sprintf("/safezone/tracker/%s/location", f.DeviceID), 1, false, payload)
			token.Wait()
			return token.Error()
		}
		return send, func() { client.Disconnect(250) }, nil

	case "http":
		httpClient := &http.Client{Timeout: 5 * time.Second}
		send := func(f fix) error {
			payload, _ := json.Marshal(f)
			resp, err := httpClient.Post(serverURL+"/api/tracker", "application/json", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode >= 300 {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			return nil
		}
		return send, func() {}, nil

	case "tcp":
		conn, err := net.DialTimeout("tcp", tcpAddr, 5*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("tcp connect: %w", err)
		}
		send := func(f fix) error {
			_, err := fmt.Fprintf(conn, "%s,%.7f,%.7f,%d\n", f.DeviceID, f.Latitude, f.Longitude, f.Timestamp)
			return err
		}
		return send, func() { _ = conn.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", kind)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
