// Package payload decodes tracker fixes from the shapes devices and phone
// apps actually send.
package payload

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

// DecodeJSON reads a fix from a JSON object. The identifier is taken from
// device_id, deviceId or id; coordinates from location.coords, then the top
// level latitude/lat and longitude/lng/lon; the timestamp from timestamp or
// location.timestamp. Numbers may be sent as strings.
func DecodeJSON(body []byte) (domain.RawFix, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return domain.RawFix{}, &domain.ValidationError{Field: "body", Reason: "must be a JSON object"}
	}

	loc, _ := doc["location"].(map[string]any)
	coords, _ := loc["coords"].(map[string]any)

	var (
		raw domain.RawFix
		err error
	)
	raw.TrackerID = firstString(doc["device_id"], doc["deviceId"], doc["id"])

	if raw.Lat, err = firstNumber("latitude", coords["latitude"], doc["latitude"], doc["lat"]); err != nil {
		return domain.RawFix{}, err
	}
	if raw.Lon, err = firstNumber("longitude", coords["longitude"], doc["longitude"], doc["lng"], doc["lon"]); err != nil {
		return domain.RawFix{}, err
	}

	ts := doc["timestamp"]
	if ts == nil {
		ts = loc["timestamp"]
	}
	if raw.CapturedAt, err = timestamp(ts); err != nil {
		return domain.RawFix{}, err
	}
	return raw, nil
}

// FromQuery reads a fix from URL query parameters, for trackers that can
// only issue GET-style requests.
func FromQuery(values url.Values) (domain.RawFix, error) {
	get := func(keys ...string) any {
		for _, k := range keys {
			if v := values.Get(k); v != "" {
				return v
			}
		}
		return nil
	}

	var (
		raw domain.RawFix
		err error
	)
	raw.TrackerID = firstString(get("device_id", "deviceId", "id"))
	if raw.Lat, err = firstNumber("latitude", get("latitude", "lat")); err != nil {
		return domain.RawFix{}, err
	}
	if raw.Lon, err = firstNumber("longitude", get("longitude", "lng", "lon")); err != nil {
		return domain.RawFix{}, err
	}
	if raw.CapturedAt, err = timestamp(get("timestamp")); err != nil {
		return domain.RawFix{}, err
	}
	return raw, nil
}

// Merge fills the fields missing from primary with those of fallback.
func Merge(primary, fallback domain.RawFix) domain.RawFix {
	if primary.TrackerID == "" {
		primary.TrackerID = fallback.TrackerID
	}
	if primary.Lat == nil {
		primary.Lat = fallback.Lat
	}
	if primary.Lon == nil {
		primary.Lon = fallback.Lon
	}
	if primary.CapturedAt == nil {
		primary.CapturedAt = fallback.CapturedAt
	}
	return primary
}

// ParseTime accepts RFC 3339 or a unix timestamp in seconds or
// milliseconds.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return time.Time{}, &domain.ValidationError{Field: "timestamp", Reason: "must be RFC 3339 or a unix timestamp"}
	}
	return unixTime(n), nil
}

// unixTime treats values above 1e12 as milliseconds.
func unixTime(n float64) time.Time {
	if math.Abs(n) > 1e12 {
		return time.UnixMilli(int64(n)).UTC()
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func firstString(values ...any) string {
	for _, v := range values {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case json.Number:
			return t.String()
		}
	}
	return ""
}

// firstNumber returns the first present value as a float. An absent field
// yields nil so the caller can report it as missing.
func firstNumber(field string, values ...any) (*float64, error) {
	for _, v := range values {
		if v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case json.Number:
			s = t.String()
		case string:
			s = strings.TrimSpace(t)
			if s == "" {
				continue
			}
		default:
			return nil, &domain.ValidationError{Field: field, Reason: "must be a number"}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &domain.ValidationError{Field: field, Reason: "must be a number"}
		}
		return &f, nil
	}
	return nil, nil
}

func timestamp(v any) (*time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		t, err = ParseTime(x.String())
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		t, err = ParseTime(x)
	default:
		return nil, &domain.ValidationError{Field: "timestamp", Reason: "must be RFC 3339 or a unix timestamp"}
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
