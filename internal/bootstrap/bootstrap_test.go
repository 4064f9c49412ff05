package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenStoresMemory(t *testing.T) {
	clock := timeutil.NewFakeClock(timeutil.Date(2024, 5, 15))

	stores, err := OpenStores(context.Background(), config.DatabaseConfig{UseMemoryStore: true}, clock, quiet())
	require.NoError(t, err)
	defer stores.Close()

	assert.Nil(t, stores.DB)
	assert.NotNil(t, stores.Records)
	assert.NotNil(t, stores.Progress)
	assert.NotNil(t, stores.Wallets)
	assert.NotNil(t, stores.Inventory)
}

func TestOpenStoresBadURL(t *testing.T) {
	clock := timeutil.NewFakeClock(timeutil.Date(2024, 5, 15))

	_, err := OpenStores(context.Background(), config.DatabaseConfig{URL: "://nope"}, clock, quiet())
	assert.Error(t, err)
}

func TestOpenRedisDisabled(t *testing.T) {
	cache, err := OpenRedis(context.Background(), config.RedisConfig{Enabled: false}, quiet())
	require.NoError(t, err)
	assert.Nil(t, cache)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, slogLevel(logger.LevelDebug))
	assert.Equal(t, slog.LevelInfo, slogLevel(logger.LevelInfo))
	assert.Equal(t, slog.LevelWarn, slogLevel(logger.LevelWarn))
	assert.Equal(t, slog.LevelError, slogLevel(logger.LevelError))
}
