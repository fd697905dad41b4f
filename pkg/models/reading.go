package models

import (
	"fmt"
	"strings"
	"time"
)

// OriginSimulator tags readings produced by the built-in generator
const OriginSimulator = "simulator"

const (
	// DefaultLatestLimit is used when the caller does not ask for a count
	DefaultLatestLimit = 20
	// MaxLatestLimit caps how many readings one query may return
	MaxLatestLimit = 100
)

// SensorReading is a stored measurement. HeatIndex is computed once at
// ingestion against the configuration active at that moment.
type SensorReading struct {
	ID          int64     `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	HeatIndex   float64   `json:"heatIndex"`
	Origin      string    `json:"origin"`
	Timestamp   time.Time `json:"timestamp"`
}

// String renders the reading for CLI output and logs
func (r SensorReading) String() string {
	return fmt.Sprintf("#%d %s origin=%s temperature=%.1f°C humidity=%.1f%% heatIndex=%.2f",
		r.ID,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Origin,
		r.Temperature,
		r.Humidity,
		r.HeatIndex)
}

// ReadingInput is a validated raw measurement ready for ingestion
type ReadingInput struct {
	Temperature float64
	Humidity    float64
	Origin      string
	Timestamp   time.Time
}

// ReadingPayload is the wire shape accepted by the ingestion endpoint
type ReadingPayload struct {
	Temperature *Number    `json:"temperature"`
	Humidity    *Number    `json:"humidity"`
	Origin      string     `json:"origin"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Parse validates the payload. Temperature and humidity are required;
// humidity outside 0-100 is accepted as-is.
func (p ReadingPayload) Parse() (ReadingInput, error) {
	verr := &ValidationError{cause: ErrMissingField}
	if !p.Temperature.IsSet() {
		verr.Add("temperature", "required")
	}
	if !p.Humidity.IsSet() {
		verr.Add("humidity", "required")
	}
	if verr.HasErrors() {
		return ReadingInput{}, verr
	}

	in := ReadingInput{
		Temperature: p.Temperature.Float(),
		Humidity:    p.Humidity.Float(),
		Origin:      strings.TrimSpace(p.Origin),
	}
	if p.Timestamp != nil {
		in.Timestamp = p.Timestamp.UTC()
	}
	return in, nil
}

// LatestQuery holds the parameters of a most-recent-readings query
type LatestQuery struct {
	Limit int
}

// Normalize applies the default and the upper bound to the limit
func (q LatestQuery) Normalize() LatestQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLatestLimit
	case q.Limit > MaxLatestLimit:
		q.Limit = MaxLatestLimit
	}
	return q
}

// Alerts flags which configured limits a reading exceeds
type Alerts struct {
	Temperature bool `json:"temperature"`
	Humidity    bool `json:"humidity"`
	HeatIndex   bool `json:"heatIndex"`
}

// Any reports whether at least one limit is exceeded
func (a Alerts) Any() bool {
	return a.Temperature || a.Humidity || a.HeatIndex
}

// EvaluateAlerts compares a reading with the limits of a configuration.
// A limit of 0 means "not configured".
func EvaluateAlerts(r SensorReading, cfg EnvironmentalConfig) Alerts {
	return Alerts{
		Temperature: cfg.TempLimit > 0 && r.Temperature > cfg.TempLimit,
		Humidity:    cfg.HumidityLimit > 0 && r.Humidity > cfg.HumidityLimit,
		HeatIndex:   cfg.HeatIndexLimit > 0 && r.HeatIndex > cfg.HeatIndexLimit,
	}
}
