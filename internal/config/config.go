package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/config.yaml"

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	Storage    Storage  `yaml:"storage"`
	Lock       Lock     `yaml:"lock"`
	Calendar   Calendar `yaml:"calendar"`
	Notifier   Notifier `yaml:"notifier"`
	Tracking   Tracking `yaml:"tracking"`
	Location   Location `yaml:"location"`
	Events     Events   `yaml:"events"`
	Metrics    Metrics  `yaml:"metrics"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"15s"`
}

// Storage selects the key-value backend: memory, redis or postgres.
type Storage struct {
	Driver         string        `yaml:"driver" env:"STORAGE_DRIVER" env-default:"memory"`
	RedisAddr      string        `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	PostgresDSN    string        `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env-default:"30s"`
}

type Lock struct {
	Driver string        `yaml:"driver" env:"LOCK_DRIVER" env-default:"memory"`
	TTL    time.Duration `yaml:"ttl" env-default:"10s"`
}

type Calendar struct {
	HorizonDays int `yaml:"horizon_days" env-default:"365"`
}

type Notifier struct {
	TickInterval time.Duration `yaml:"tick_interval" env:"NOTIFIER_TICK_INTERVAL" env-default:"30s"`
	BufferSize   int           `yaml:"buffer_size" env-default:"16"`
}

type Tracking struct {
	SampleInterval  time.Duration `yaml:"sample_interval" env:"TRACKING_SAMPLE_INTERVAL" env-default:"60s"`
	RouteLimit      int           `yaml:"route_limit" env-default:"100"`
	LocationTimeout time.Duration `yaml:"location_timeout" env-default:"10s"`
}

// Location selects where device location reports are kept: memory or redis.
type Location struct {
	Driver     string        `yaml:"driver" env:"LOCATION_DRIVER" env-default:"memory"`
	StaleAfter time.Duration `yaml:"stale_after" env-default:"5m"`
}

// Events selects the transport for status and booking events: none, kafka or amqp.
type Events struct {
	Driver   string   `yaml:"driver" env:"EVENTS_DRIVER" env-default:"none"`
	Brokers  []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic    string   `yaml:"topic" env-default:"resource-events"`
	AMQPURL  string   `yaml:"amqp_url" env:"AMQP_URL"`
	Exchange string   `yaml:"exchange" env-default:"resource-events"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
	Path    string `yaml:"path" env-default:"/metrics"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	var cfg Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: config file does not exist: %s", op, configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "redis":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Lock.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown lock driver %q", c.Lock.Driver)
	}

	switch c.Location.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown location driver %q", c.Location.Driver)
	}

	switch c.Events.Driver {
	case "none":
	case "kafka":
		if len(c.Events.Brokers) == 0 {
			return fmt.Errorf("events.brokers is required for kafka driver")
		}
	case "amqp":
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("events.amqp_url is required for amqp driver")
		}
	default:
		return fmt.Errorf("unknown events driver %q", c.Events.Driver)
	}

	if c.Calendar.HorizonDays <= 0 {
		return fmt.Errorf("calendar.horizon_days must be positive")
	}
	if c.Notifier.TickInterval <= 0 {
		return fmt.Errorf("notifier.tick_interval must be positive")
	}
	if c.Tracking.SampleInterval <= 0 {
		return fmt.Errorf("tracking.sample_interval must be positive")
	}
	if c.Tracking.RouteLimit <= 0 {
		return fmt.Errorf("tracking.route_limit must be positive")
	}

	return nil
}
