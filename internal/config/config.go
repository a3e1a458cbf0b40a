package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	Port            string   `env:"PORT" envDefault:"5000"`
	ClientURLs      []string `env:"CLIENT_URL" envDefault:"http://localhost:5173" envSeparator:","`
	UploadDir       string   `env:"UPLOAD_DIR" envDefault:"uploads"`
	MaxFileSize     int64    `env:"MAX_FILE_SIZE" envDefault:"5242880"`
	AllowedTypes    []string `env:"ALLOWED_FILE_TYPES" envDefault:"image/jpeg,image/png,image/gif,application/pdf" envSeparator:","`
	RoomLogCap      int      `env:"ROOM_LOG_CAPACITY" envDefault:"1000"`
	ConvLogCap      int      `env:"CONVERSATION_LOG_CAPACITY" envDefault:"100"`
	Environment     string   `env:"APP_ENV" envDefault:"development"`
	ServiceName     string   `env:"SERVICE_NAME" envDefault:"chat-gateway"`
	DebugRoutes     bool     `env:"DEBUG_ROUTES" envDefault:"false"`
	OTLPEndpoint    string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AMQPURL         string   `env:"AMQP_URL"`
	AMQPExchange    string   `env:"AMQP_EXCHANGE" envDefault:"chat.events"`
	AuditRoutingKey string   `env:"AUDIT_ROUTING_KEY" envDefault:"audit.chat"`

	SweepInterval        time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	MemoryLogInterval    time.Duration `env:"MEMORY_LOG_INTERVAL" envDefault:"5m"`
	SlowRequestThreshold time.Duration `env:"SLOW_REQUEST_THRESHOLD" envDefault:"1s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.ClientURLs = trimAll(cfg.ClientURLs)
	cfg.AllowedTypes = trimAll(cfg.AllowedTypes)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is empty"))
	}
	if c.MaxFileSize <= 0 {
		errs = append(errs, fmt.Errorf("MAX_FILE_SIZE must be positive, got %d", c.MaxFileSize))
	}
	if c.RoomLogCap <= 0 {
		errs = append(errs, fmt.Errorf("ROOM_LOG_CAPACITY must be positive, got %d", c.RoomLogCap))
	}
	if c.ConvLogCap <= 0 {
		errs = append(errs, fmt.Errorf("CONVERSATION_LOG_CAPACITY must be positive, got %d", c.ConvLogCap))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func trimAll(values []string) []string {
	out := values[:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
