package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "prhi-files", cfg.Storage.PublicBucket)
	assert.Equal(t, "documents", cfg.Storage.PrivateBucket)
	assert.Equal(t, "profiles", cfg.Storage.AvatarBucket)
	assert.Equal(t, time.Hour, cfg.Storage.SignedURLTTL)
	assert.Equal(t, 5*time.Second, cfg.Portal.NotificationTTL)
	assert.Equal(t, 7, cfg.Portal.AssessmentPassScore)
	assert.Equal(t, RealtimeDriverPostgres, cfg.Realtime.Driver)
	assert.Empty(t, cfg.Events.KafkaBrokers)
}

func TestLoadReadsEnvironment(t *testing.T) {
	chdirTemp(t)
	t.Setenv("NOTIFICATION_TTL", "2s")
	t.Setenv("ASSESSMENT_PASSING_SCORE", "8")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("STORAGE_DRIVER", "MINIO")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Portal.NotificationTTL)
	assert.Equal(t, 8, cfg.Portal.AssessmentPassScore)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, StorageDriverMinIO, cfg.Storage.Driver)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 3*time.Second, parseDuration("3s", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
