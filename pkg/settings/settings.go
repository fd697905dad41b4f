package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	TLSCert        string
	TLSKey         string
}

// TLSEnabled reports whether both certificate and key are configured
func (c *ServerConfig) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// LoadFromEnv reads <prefix>_PORT, <prefix>_ALLOWED_ORIGINS, <prefix>_TLS_CERT and <prefix>_TLS_KEY
func (c *ServerConfig) LoadFromEnv(prefix string) {
	if port := os.Getenv(prefix + "_PORT"); port != "" {
		c.Port = port
	}
	if origins := os.Getenv(prefix + "_ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = splitList(origins)
	}
	if cert := os.Getenv(prefix + "_TLS_CERT"); cert != "" {
		c.TLSCert = cert
	}
	if key := os.Getenv(prefix + "_TLS_KEY"); key != "" {
		c.TLSKey = key
	}
}

// PostgresConfig holds the connection settings of the relational backend
type PostgresConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectRetries int
}

// DSN builds a lib/pq connection string
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func (c *PostgresConfig) LoadFromEnv(prefix string) {
	c.Host = getEnv(prefix+"_HOST", c.Host)
	c.Port = getEnv(prefix+"_PORT", c.Port)
	c.User = getEnv(prefix+"_USER", c.User)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.Name = getEnv(prefix+"_NAME", c.Name)
	c.SSLMode = getEnv(prefix+"_SSLMODE", c.SSLMode)
	c.ConnectRetries = getEnvInt(prefix+"_CONNECT_RETRIES", c.ConnectRetries)
}

// RedisConfig holds the connection settings of the Redis backend
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c *RedisConfig) LoadFromEnv(prefix string) {
	c.Addr = getEnv(prefix+"_ADDR", c.Addr)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.DB = getEnvInt(prefix+"_DB", c.DB)
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend  string
	Postgres PostgresConfig
	Redis    RedisConfig
}

// ClientConfig is used by the CLI commands that talk to a running server
type ClientConfig struct {
	URL string
}

// MQTTConfig configures the device transport. An empty broker disables it.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	QoS      byte
}

// Enabled reports whether a broker is configured
func (c *MQTTConfig) Enabled() bool {
	return c.Broker != ""
}

func (c *MQTTConfig) LoadFromEnv(prefix string) {
	c.Broker = getEnv(prefix+"_BROKER", c.Broker)
	c.ClientID = getEnv(prefix+"_CLIENT_ID", c.ClientID)
	c.Username = getEnv(prefix+"_USERNAME", c.Username)
	c.Password = getEnv(prefix+"_PASSWORD", c.Password)
	c.Topic = getEnv(prefix+"_TOPIC", c.Topic)
	if qos := getEnvInt(prefix+"_QOS", int(c.QoS)); qos >= 0 && qos <= 2 {
		c.QoS = byte(qos)
	}
}

// InfluxConfig configures the optional readings mirror. An empty URL disables it.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether a server URL is configured
func (c *InfluxConfig) Enabled() bool {
	return c.URL != ""
}

func (c *InfluxConfig) LoadFromEnv(prefix string) {
	c.URL = getEnv(prefix+"_URL", c.URL)
	c.Token = getEnv(prefix+"_TOKEN", c.Token)
	c.Org = getEnv(prefix+"_ORG", c.Org)
	c.Bucket = getEnv(prefix+"_BUCKET", c.Bucket)
}

// DefaultSimulatorInterval is the generator period used until a saved
// configuration provides one
const DefaultSimulatorInterval = time.Second

// SimulatorConfig configures the synthetic source and the arbitration policy
type SimulatorConfig struct {
	Enabled      bool
	Interval     time.Duration
	DeviceMarker string
	Inactivity   time.Duration
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string
	Format string
}

// Settings is the complete process configuration
type Settings struct {
	Server    ServerConfig
	Storage   StorageConfig
	Client    ClientConfig
	MQTT      MQTTConfig
	Influx    InfluxConfig
	Simulator SimulatorConfig
	Logging   LoggingConfig
}

// Defaults returns the settings used when no environment variable is set
func Defaults() Settings {
	return Settings{
		Server: ServerConfig{
			Port:           "4001",
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Backend: "postgres",
			Postgres: PostgresConfig{
				Host:           "localhost",
				Port:           "5432",
				User:           "heat_user",
				Password:       "heat_pass",
				Name:           "heat_db",
				SSLMode:        "disable",
				ConnectRetries: 3,
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Client: ClientConfig{
			URL: "http://localhost:4001",
		},
		MQTT: MQTTConfig{
			ClientID: "heatmaestro",
			Topic:    "heatmaestro/readings/#",
			QoS:      1,
		},
		Simulator: SimulatorConfig{
			Enabled:      true,
			Interval:     DefaultSimulatorInterval,
			DeviceMarker: "raspberry",
			Inactivity:   60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load returns the defaults overridden by the process environment
func Load() Settings {
	s := Defaults()

	s.Server.LoadFromEnv("SERVER")
	s.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", s.Storage.Backend))
	if getEnvBool("USE_IN_MEMORY", false) {
		s.Storage.Backend = "memory"
	}
	s.Storage.Postgres.LoadFromEnv("DB")
	s.Storage.Redis.LoadFromEnv("REDIS")
	s.Client.URL = getEnv("HEATMAESTRO_URL", s.Client.URL)
	s.MQTT.LoadFromEnv("MQTT")
	s.Influx.LoadFromEnv("INFLUX")

	s.Simulator.Enabled = getEnvBool("SIMULATOR", s.Simulator.Enabled)
	if secs := getEnvInt("SIMULATOR_INTERVAL", 0); secs > 0 {
		s.Simulator.Interval = time.Duration(secs) * time.Second
	}
	s.Simulator.DeviceMarker = getEnv("DEVICE_MARKER", s.Simulator.DeviceMarker)
	s.Simulator.Inactivity = getEnvDuration("DEVICE_INACTIVITY", s.Simulator.Inactivity)

	s.Logging.Level = getEnv("LOG_LEVEL", s.Logging.Level)
	s.Logging.Format = getEnv("LOG_FORMAT", s.Logging.Format)

	return s
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return i
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations ("90s") and plain seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
