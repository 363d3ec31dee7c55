package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type AlertEmail struct {
	ChildName   string
	TrackerName string
	ZoneName    string
	Kind        domain.AlertKind
	Message     string
	Timestamp   time.Time
}

// RenderAlert returns the subject and HTML body for an alert email.
func RenderAlert(data AlertEmail) (string, string, error) {
	if data.TrackerName == "" {
		data.TrackerName = "No tracker"
	}

	var name, subject string
	switch data.Kind {
	case domain.AlertZoneExit:
		name, subject = "zone_exit.html", "Child left a safe zone"
		if data.ZoneName == "" {
			data.ZoneName = "Unnamed zone"
		}
	case domain.AlertLowBattery:
		name, subject = "low_battery.html", "Tracker battery is low"
	default:
		name, subject = "generic.html", fmt.Sprintf("Alert: %s", data.Kind)
		if data.ZoneName == "" {
			data.ZoneName = "No zone"
		}
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return subject, buf.String(), nil
}
