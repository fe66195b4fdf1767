package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.True(t, cfg.Storage.Seed)
	assert.Equal(t, 5.0, cfg.Matching.NearRadiusKm)
	assert.Equal(t, 10.0, cfg.Matching.WideRadiusKm)
	assert.Equal(t, "trip-events", cfg.Kafka.Topic)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RIDEQUICK_HTTP_ADDR", ":9090")
	t.Setenv("RIDEQUICK_STORAGE_BACKEND", "postgres")
	t.Setenv("RIDEQUICK_MATCHING_NEAR_RADIUS_KM", "2.5")
	t.Setenv("RIDEQUICK_KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, 2.5, cfg.Matching.NearRadiusKm)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("backend", func(t *testing.T) {
		t.Setenv("RIDEQUICK_STORAGE_BACKEND", "sqlite")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("radii", func(t *testing.T) {
		t.Setenv("RIDEQUICK_MATCHING_NEAR_RADIUS_KM", "20")
		_, err := Load()
		assert.Error(t, err)
	})
}
