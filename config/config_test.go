package config

import (
	"context"
	"errors"
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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// go test -v --run TestLoadDefaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "environment: dev\n"))
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 4, cfg.Monitor.Workers)
	assert.Equal(t, []string{"STRONG_BUY", "STRONG_SELL"}, cfg.Monitor.AlertWorthy)
	assert.Equal(t, []string{"OANDA", "FOREXCOM", "FX_IDC", "SAXO", "CURRENCYCOM"}, cfg.Source.Venues)
	assert.Equal(t, "forex", cfg.Source.Screener)
	assert.Equal(t, "5m", cfg.Source.Interval)
	assert.Equal(t, "memory", cfg.State.Backend)
	assert.Equal(t, "polling", cfg.Telegram.Mode)
}

// go test -v --run TestLoadFileAndEnv
func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
monitor:
  interval: 60s
  workers: 2
source:
  venues: [FOREXCOM, OANDA]
state:
  backend: redis
`)
	t.Setenv("MONITOR_WORKERS", "8")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, 8, cfg.Monitor.Workers)
	assert.Equal(t, []string{"FOREXCOM", "OANDA"}, cfg.Source.Venues)
	assert.Equal(t, "redis", cfg.State.Backend)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
}

// go test -v --run TestLoadInvalid
func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"backend":  "state:\n  backend: sqlite\n",
		"workers":  "monitor:\n  workers: 0\n",
		"venues":   "source:\n  venues: []\n",
		"webhook":  "telegram:\n  mode: webhook\n",
		"sms":      "sms:\n  enabled: true\n  account_sid: AC1\n  from: '+1555'\n",
		"interval": "monitor:\n  interval: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

// go test -v --run TestLoadWebhookNeedsServer
func TestLoadWebhookNeedsServer(t *testing.T) {
	body := "telegram:\n  enabled: true\n  mode: webhook\n  webhook_host: https://bot.example.com\n"

	_, err := Load(writeConfig(t, body+"server:\n  enabled: false\n"))
	assert.ErrorContains(t, err, "server.enabled")

	cfg, err := Load(writeConfig(t, body))
	require.NoError(t, err)
	assert.True(t, cfg.Server.Enabled)
}

// go test -v --run TestLoadMissingExplicitFile
func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// go test -v --run TestDSN
func TestDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "signalwatch", SSLMode: "disable", TimeZone: "UTC",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=signalwatch sslmode=disable TimeZone=UTC", cfg.DSN())
}

type fakeFetcher map[string]string

func (f fakeFetcher) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("parameter not found")
	}
	return v, nil
}

// go test -v --run TestResolveSecrets
func TestResolveSecrets(t *testing.T) {
	cfg := &Config{Environment: "prod"}
	cfg.Telegram.Enabled = true
	cfg.Telegram.TokenParam = "/signalwatch/telegram"
	cfg.Postgres.PasswordParam = "/signalwatch/db"
	cfg.Postgres.Password = "local"

	require.True(t, cfg.NeedsSecrets())
	require.NoError(t, cfg.ResolveSecrets(context.Background(), fakeFetcher{
		"/signalwatch/telegram": "999:xyz",
		"/signalwatch/db":       "s3cret",
	}))
	assert.Equal(t, "999:xyz", cfg.Telegram.Token)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.NoError(t, cfg.CheckSecrets())

	missing := &Config{Environment: "prod"}
	missing.SMS.AuthTokenParam = "/nope"
	assert.Error(t, missing.ResolveSecrets(context.Background(), fakeFetcher{}))

	dev := &Config{Environment: "dev"}
	dev.Telegram.TokenParam = "/signalwatch/telegram"
	assert.False(t, dev.NeedsSecrets())
	require.NoError(t, dev.ResolveSecrets(context.Background(), fakeFetcher{}))
	assert.Empty(t, dev.Telegram.Token)

	dev.Telegram.Enabled = true
	assert.Error(t, dev.CheckSecrets())
}
