package database

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sguter90/heatmaestro/pkg/models"
	"github.com/sguter90/heatmaestro/pkg/settings"
)

const influxMeasurement = "sensor_reading"

// ReadingMirror receives a copy of every stored reading. Mirrors are best
// effort: a failure is logged by the caller and never fails ingestion.
type ReadingMirror interface {
	MirrorReading(ctx context.Context, r models.SensorReading) error
	Close()
}

// InfluxMirror writes readings to an InfluxDB bucket for long-term charts,
// beyond the bounded window kept by the Store
type InfluxMirror struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

var _ ReadingMirror = (*InfluxMirror)(nil)

// NewInfluxMirror creates a mirror writing to cfg.Bucket
func NewInfluxMirror(cfg settings.InfluxConfig) (*InfluxMirror, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete")
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxMirror{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (m *InfluxMirror) MirrorReading(ctx context.Context, r models.SensorReading) error {
	if err := m.writeAPI.WritePoint(ctx, readingPoint(r)); err != nil {
		return fmt.Errorf("failed to write reading %d to influx: %w", r.ID, err)
	}
	return nil
}

func (m *InfluxMirror) Close() {
	m.client.Close()
}

func readingPoint(r models.SensorReading) *write.Point {
	tags := map[string]string{
		"origin": r.Origin,
	}
	fields := map[string]interface{}{
		"temperature": r.Temperature,
		"humidity":    r.Humidity,
		"heat_index":  r.HeatIndex,
	}
	return influxdb2.NewPoint(influxMeasurement, tags, fields, r.Timestamp)
}
