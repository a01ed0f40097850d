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
	path := filepath.Join(t.TempDir(), "brigade.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, time.Minute, cfg.Reconciler.Interval)
	assert.Equal(t, 10, cfg.Reconciler.MaxAttempts)
	assert.InDelta(t, 0.16, cfg.Pricing.TaxRate, 1e-9)
	assert.False(t, cfg.Broker.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":9000"
  allowed_origins: ["https://pos.example.com"]
storage:
  driver: postgres
  postgres:
    host: db
    user: chef
    password: "p@ss"
    database: kitchen
reconciler:
  interval: 2m
  retry_after: 45s
auth:
  jwt_secret: from-file
`)
	t.Setenv("BRIGADE_BROKER_ENABLED", "true")
	t.Setenv("RABBITMQ_URL", "amqp://rabbit:5672/")
	t.Setenv("BRIGADE_TIP_RATE", "0.15")
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddr)
	assert.Equal(t, []string{"https://pos.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://chef:p%40ss@db:5432/kitchen?sslmode=disable", cfg.Storage.Postgres.ConnString())
	assert.Equal(t, 2*time.Minute, cfg.Reconciler.Interval)
	assert.Equal(t, 45*time.Second, cfg.Reconciler.RetryAfter)
	assert.True(t, cfg.Broker.Enabled)
	assert.Equal(t, "amqp://rabbit:5672/", cfg.Broker.URL)
	assert.InDelta(t, 0.15, cfg.Pricing.TipRate, 1e-9)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestConnStringPrefersDSN(t *testing.T) {
	p := Postgres{DSN: "postgres://x@y/z", Host: "ignored"}
	assert.Equal(t, "postgres://x@y/z", p.ConnString())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing secret",
			wantErr: "jwt_secret",
		},
		{
			name:    "unknown driver",
			body:    "storage:\n  driver: sqlite\n",
			env:     map[string]string{"JWT_SECRET": "x"},
			wantErr: "unknown storage driver",
		},
		{
			name:    "bad env value",
			env:     map[string]string{"JWT_SECRET": "x", "BRIGADE_RECONCILE_INTERVAL": "soon"},
			wantErr: "BRIGADE_RECONCILE_INTERVAL",
		},
		{
			name:    "negative rate",
			body:    "pricing:\n  tax_rate: -1\n",
			env:     map[string]string{"JWT_SECRET": "x"},
			wantErr: "pricing rates",
		},
		{
			name:    "malformed yaml",
			body:    "server: [",
			env:     map[string]string{"JWT_SECRET": "x"},
			wantErr: "failed to parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
