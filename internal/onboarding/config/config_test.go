package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gartstein/onboard/internal/onboarding/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("JWT_SECRET: s3cret\n"))
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, "vendor.lifecycle", cfg.Topic)
	assert.Equal(t, "verified-photos", cfg.Storage().VerifiedBucket)
	assert.Equal(t, "business-photos", cfg.Storage().BusinessBucket)
	assert.Equal(t, int64(5<<20), cfg.MaxPhotoBytes)
	assert.Equal(t, models.RoleSalesperson, cfg.FallbackRole())
	assert.False(t, cfg.StrictTransitions)
}

func TestParseExplicitEmptyDefaultRoleDisablesFallback(t *testing.T) {
	cfg, err := Parse([]byte("JWT_SECRET: x\nDEFAULT_ROLE: \"\"\n"))
	require.NoError(t, err)
	assert.Equal(t, models.Role(""), cfg.FallbackRole())
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Parse([]byte("DB_HOST: localhost\n"))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = Parse([]byte("JWT_SECRET: x\nDEFAULT_ROLE: owner\n"))
	assert.ErrorContains(t, err, "DEFAULT_ROLE")

	_, err = Parse([]byte("JWT_SECRET: [unclosed"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("S3_ENDPOINT", "https://project.storage.example/s3")

	cfg, err := Parse([]byte("DB_HOST: localhost\nDB_PORT: 5432\nJWT_SECRET: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database().Host)
	assert.Equal(t, 6543, cfg.Database().Port)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "https://project.storage.example/s3", cfg.Storage().Endpoint)
}

func TestEnvOverrideInvalidPort(t *testing.T) {
	t.Setenv("DB_PORT", "five")
	_, err := Parse([]byte("JWT_SECRET: x\n"))
	assert.ErrorContains(t, err, "DB_PORT")
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET: file\nHTTP_PORT: 9090\nSTRICT_TRANSITIONS: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.True(t, cfg.StrictTransitions)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestBundledConfigParses(t *testing.T) {
	data, err := os.ReadFile("config.yaml")
	require.NoError(t, err)

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.S3UsePathStyle)
}
