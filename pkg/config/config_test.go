package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom("", "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "rentledger", cfg.Database.Database)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 5*24*time.Hour, cfg.LatePayments.Grace())
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadPrecedence(t *testing.T) {
	yamlPath := writeFile(t, "config.yaml", `
server_port: 9000
log_level: debug
storage_driver: memory
database:
  host: db.internal
  port: 6543
jwt:
  ttl: 2h
kafka:
  brokers: [k1:9092]
late_payments:
  interval: 30m
  grace_days: 3
`)
	dotenvPath := writeFile(t, ".env", "SERVER_PORT=9100\nDB_HOST=dotenv-host\nJWT_SECRET=from-dotenv\n")
	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := LoadFrom(yamlPath, dotenvPath)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.ServerPort, "environment beats .env and yaml")
	assert.Equal(t, "dotenv-host", cfg.Database.Host, ".env beats yaml")
	assert.Equal(t, 6543, cfg.Database.Port, "yaml beats defaults")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, "from-dotenv", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 30*time.Minute, cfg.LatePayments.Interval)
	assert.Equal(t, 3, cfg.LatePayments.GraceDays)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	_, err := LoadFrom("", "")
	assert.ErrorContains(t, err, "SERVER_PORT")

	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	_, err = LoadFrom("", "")
	assert.ErrorContains(t, err, "STORAGE_DRIVER")
}

func TestProductionNeedsJWTSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	_, err := LoadFrom("", "")
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "a-real-secret")
	_, err = LoadFrom("", "")
	require.NoError(t, err)
}

func TestMissingDotenvIsIgnored(t *testing.T) {
	_, err := LoadFrom("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
