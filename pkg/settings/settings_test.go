package settings

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	s := Load()

	if s.Server.Port != "4001" {
		t.Errorf("Expected port 4001, got %s", s.Server.Port)
	}
	if s.Storage.Backend != "postgres" {
		t.Errorf("Expected postgres backend, got %s", s.Storage.Backend)
	}
	if !s.Simulator.Enabled {
		t.Error("Expected simulator to be enabled by default")
	}
	if s.Simulator.Inactivity != 60*time.Second {
		t.Errorf("Expected 60s inactivity, got %v", s.Simulator.Inactivity)
	}
	if s.Simulator.Interval != time.Second {
		t.Errorf("Expected 1s simulator interval, got %v", s.Simulator.Interval)
	}
	if s.MQTT.Enabled() || s.Influx.Enabled() {
		t.Error("Expected MQTT and Influx to be disabled without configuration")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.local, http://b.local,")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DB_CONNECT_RETRIES", "5")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_QOS", "7")
	t.Setenv("SIMULATOR", "false")
	t.Setenv("SIMULATOR_INTERVAL", "5")
	t.Setenv("DEVICE_INACTIVITY", "90")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HEATMAESTRO_URL", "http://monitor.local:4001")

	s := Load()

	if s.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", s.Server.Port)
	}
	if len(s.Server.AllowedOrigins) != 2 || s.Server.AllowedOrigins[1] != "http://b.local" {
		t.Errorf("Expected two trimmed origins, got %v", s.Server.AllowedOrigins)
	}
	if s.Storage.Backend != "redis" {
		t.Errorf("Expected redis backend, got %s", s.Storage.Backend)
	}
	if s.Storage.Redis.DB != 3 {
		t.Errorf("Expected redis db 3, got %d", s.Storage.Redis.DB)
	}
	if s.Storage.Postgres.ConnectRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", s.Storage.Postgres.ConnectRetries)
	}
	if !s.MQTT.Enabled() {
		t.Error("Expected MQTT to be enabled")
	}
	if s.MQTT.QoS != 1 {
		t.Errorf("Expected out-of-range QoS to keep default 1, got %d", s.MQTT.QoS)
	}
	if s.Simulator.Enabled {
		t.Error("Expected simulator to be disabled")
	}
	if s.Simulator.Interval != 5*time.Second {
		t.Errorf("Expected 5s interval, got %v", s.Simulator.Interval)
	}
	if s.Simulator.Inactivity != 90*time.Second {
		t.Errorf("Expected 90s inactivity, got %v", s.Simulator.Inactivity)
	}
	if s.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %s", s.Logging.Level)
	}
	if s.Client.URL != "http://monitor.local:4001" {
		t.Errorf("Expected client URL from env, got %s", s.Client.URL)
	}
}

func TestLoad_UseInMemoryOverridesBackend(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("USE_IN_MEMORY", "true")

	if s := Load(); s.Storage.Backend != "memory" {
		t.Errorf("Expected memory backend, got %s", s.Storage.Backend)
	}
}

func TestGetEnvDuration(t *testing.T) {
	testCases := []struct {
		value    string
		expected time.Duration
	}{
		{"", time.Minute},
		{"30", 30 * time.Second},
		{"1m30s", 90 * time.Second},
		{"-5", time.Minute},
		{"soon", time.Minute},
	}

	for _, tc := range testCases {
		t.Setenv("TEST_DURATION", tc.value)
		if got := getEnvDuration("TEST_DURATION", time.Minute); got != tc.expected {
			t.Errorf("getEnvDuration(%q) = %v, expected %v", tc.value, got, tc.expected)
		}
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	c := Defaults().Storage.Postgres
	expected := "host=localhost port=5432 user=heat_user password=heat_pass dbname=heat_db sslmode=disable"
	if got := c.DSN(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}
