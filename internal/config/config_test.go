package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "env: dev\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 365, cfg.Calendar.HorizonDays)
	assert.Equal(t, 30*time.Second, cfg.Notifier.TickInterval)
	assert.Equal(t, 60*time.Second, cfg.Tracking.SampleInterval)
	assert.Equal(t, 100, cfg.Tracking.RouteLimit)
	assert.Equal(t, 10*time.Second, cfg.Tracking.LocationTimeout)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "localhost:8080", cfg.HTTPServer.Address)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
env: prod
http_server:
  address: 0.0.0.0:9090
storage:
  driver: postgres
  postgres_dsn: postgres://localhost/rentals?sslmode=disable
notifier:
  tick_interval: 5s
tracking:
  sample_interval: 15s
  route_limit: 50
events:
  driver: kafka
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTPServer.Address)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Notifier.TickInterval)
	assert.Equal(t, 15*time.Second, cfg.Tracking.SampleInterval)
	assert.Equal(t, 50, cfg.Tracking.RouteLimit)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Storage:  Storage{Driver: "memory"},
			Lock:     Lock{Driver: "memory"},
			Location: Location{Driver: "memory"},
			Events:   Events{Driver: "none"},
			Calendar: Calendar{HorizonDays: 365},
			Notifier: Notifier{TickInterval: time.Second},
			Tracking: Tracking{SampleInterval: time.Second, RouteLimit: 100},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: "unknown storage driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "postgres_dsn"},
		{name: "kafka without brokers", mutate: func(c *Config) { c.Events.Driver = "kafka" }, wantErr: "brokers"},
		{name: "amqp without url", mutate: func(c *Config) { c.Events.Driver = "amqp" }, wantErr: "amqp_url"},
		{name: "zero horizon", mutate: func(c *Config) { c.Calendar.HorizonDays = 0 }, wantErr: "horizon_days"},
		{name: "zero route limit", mutate: func(c *Config) { c.Tracking.RouteLimit = 0 }, wantErr: "route_limit"},
		{name: "unknown lock", mutate: func(c *Config) { c.Lock.Driver = "etcd" }, wantErr: "unknown lock driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
