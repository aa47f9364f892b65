package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Notification transports understood by the event notifier.
const (
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
	TransportNone      = "none"
)

type Config struct {
	ServiceName string

	// DatabaseURL takes precedence over the discrete DATABASE_* parameters.
	DatabaseURL      string
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseTimeout  time.Duration

	DBMinConnections int
	DBMaxConnections int

	// Retry policy of the resilient transaction runner.
	RetryMaxAttempts int
	RetryDelay       time.Duration

	HTTPListenAddr    string
	MetricsListenAddr string

	LogLevel       string
	DisableLogging bool

	NotifyTransport string
	// EXPRESS_APP_HOST / EXPRESS_APP_KEY: real-time relay endpoint and shared secret.
	NotifyURL    string
	NotifySecret string

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopicPrefix string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:       getEnv("SERVICE_NAME", "commnode"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DatabaseHost:      getEnv("DATABASE_HOST", ""),
		DatabasePort:      getEnv("DATABASE_PORT", "5432"),
		DatabaseName:      getEnv("DATABASE_NAME", ""),
		DatabaseUser:      getEnv("DATABASE_USER", ""),
		DatabasePassword:  getEnv("DATABASE_PASSWORD", ""),
		HTTPListenAddr:    getEnv("HTTP_LISTEN_ADDR", ":8000"),
		MetricsListenAddr: getEnv("METRICS_LISTEN_ADDR", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DisableLogging:    strings.EqualFold(getEnv("DISABLE_LOGGING", ""), "true"),
		NotifyTransport:   strings.ToLower(getEnv("NOTIFY_TRANSPORT", TransportWebSocket)),
		NotifyURL:         getEnv("EXPRESS_APP_HOST", "http://localhost:5000"),
		NotifySecret:      getEnv("EXPRESS_APP_KEY", "dev-key"),
		MQTTBrokerURL:     getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "commnode"),
		MQTTUsername:      getEnv("MQTT_USERNAME", ""),
		MQTTPassword:      getEnv("MQTT_PASSWORD", ""),
		MQTTTopicPrefix:   getEnv("MQTT_TOPIC_PREFIX", "watchsec/events"),
	}

	var err error
	if cfg.DatabaseTimeout, err = getEnvSeconds("DATABASE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.DBMinConnections, err = getEnvInt("DB_MIN_CONNECTIONS", 1); err != nil {
		return nil, err
	}
	if cfg.DBMaxConnections, err = getEnvInt("DB_MAX_CONNECTIONS", 10); err != nil {
		return nil, err
	}
	if cfg.RetryMaxAttempts, err = getEnvInt("DB_RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = getEnvSeconds("DB_RETRY_DELAY", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every parameter the server needs is present. All
// problems are reported together.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		if c.DatabaseHost == "" {
			missing = append(missing, "DATABASE_HOST")
		}
		if c.DatabaseName == "" {
			missing = append(missing, "DATABASE_NAME")
		}
		if c.DatabaseUser == "" {
			missing = append(missing, "DATABASE_USER")
		}
	}
	if c.HTTPListenAddr == "" {
		missing = append(missing, "HTTP_LISTEN_ADDR")
	}

	switch c.NotifyTransport {
	case TransportWebSocket:
		if c.NotifyURL == "" {
			missing = append(missing, "EXPRESS_APP_HOST")
		}
	case TransportMQTT:
		if c.MQTTBrokerURL == "" {
			missing = append(missing, "MQTT_BROKER_URL")
		}
	case TransportNone:
	default:
		return fmt.Errorf("NOTIFY_TRANSPORT must be one of %s, %s, %s (got %q)",
			TransportWebSocket, TransportMQTT, TransportNone, c.NotifyTransport)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.DBMinConnections < 0 || c.DBMaxConnections < 1 || c.DBMinConnections > c.DBMaxConnections {
		return fmt.Errorf("invalid pool bounds: DB_MIN_CONNECTIONS=%d DB_MAX_CONNECTIONS=%d",
			c.DBMinConnections, c.DBMaxConnections)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("DB_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("DB_RETRY_DELAY must not be negative")
	}
	return nil
}

// DSN returns the connection string for the store, built from the discrete
// DATABASE_* parameters when DATABASE_URL is not set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DatabaseUser, c.DatabasePassword),
		Host:   c.DatabaseHost + ":" + c.DatabasePort,
		Path:   "/" + c.DatabaseName,
	}
	q := url.Values{}
	q.Set("connect_timeout", strconv.Itoa(int(c.DatabaseTimeout.Seconds())))
	u.RawQuery = q.Encode()
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getEnvSeconds accepts either a Go duration ("500ms") or a bare number of seconds.
func getEnvSeconds(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
