package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

// setupTestCache connects to REDIS_URL under a per-test namespace.
func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}

	cfg := DefaultConfig(url)
	cfg.Namespace = fmt.Sprintf("test_%d", time.Now().UnixNano())

	cache, err := NewCache(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestKey(t *testing.T) {
	c := NewCacheFromClient(nil, "")
	assert.Equal(t, "studyhub:studying_now:u1", c.Key("studying_now", "u1"))
}

func TestCacheSetGet(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	type payload struct{ N int }
	require.NoError(t, cache.Set(ctx, cache.Key("k"), payload{N: 3}, time.Minute))

	var got payload
	require.NoError(t, cache.Get(ctx, cache.Key("k"), &got))
	assert.Equal(t, 3, got.N)

	assert.ErrorIs(t, cache.Get(ctx, cache.Key("missing"), &got), ErrCacheMiss)
	assert.ErrorIs(t, cache.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
}

func TestStudyingNow(t *testing.T) {
	cache := setupTestCache(t)
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	tracker := NewStudyingNow(cache, clock)
	ctx := context.Background()
	t.Cleanup(func() { _ = tracker.Reset(ctx) })

	require.NoError(t, tracker.MarkStudying(ctx, "u1", study.SourceManual))
	clock.Advance(time.Minute)
	require.NoError(t, tracker.MarkStudying(ctx, "u2", study.SourceFocus))
	require.NoError(t, tracker.MarkStudying(ctx, "u1", study.SourcePresence))

	list, err := tracker.ListStudying(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, shared.UserID("u1"), list[0].UserID)
	assert.Equal(t, []study.Source{study.SourceManual, study.SourcePresence}, list[0].Sources)

	require.NoError(t, tracker.MarkStopped(ctx, "u1", study.SourceManual))
	list, err = tracker.ListStudying(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, tracker.MarkStopped(ctx, "u1", study.SourcePresence))
	require.NoError(t, tracker.MarkStopped(ctx, "nobody", study.SourceFocus))
	list, err = tracker.ListStudying(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared.UserID("u2"), list[0].UserID)

	require.NoError(t, tracker.Reset(ctx))
	list, err = tracker.ListStudying(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNotifierPublishesFocusCompletion(t *testing.T) {
	cache := setupTestCache(t)
	notifier := NewNotifier(cache, nil)
	ctx := context.Background()

	sub := cache.Subscribe(ctx, notifier.Channel())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	at := timeutil.DateTime(2024, 5, 15, 9, 25, 0)
	event := shared.NewFocusTimerCompletedEvent("u1", 25, 2500, at)
	require.NoError(t, notifier.NotifyFocusCompleted(ctx, event))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got FocusNotification
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, 25, got.Minutes)
	assert.Equal(t, 2500, got.Currency)
	assert.True(t, at.Equal(got.CompletedAt))
}

func TestStudyingNowPrune(t *testing.T) {
	cache := setupTestCache(t)
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	tracker := NewStudyingNow(cache, clock)
	ctx := context.Background()
	t.Cleanup(func() { _ = tracker.Reset(ctx) })

	require.NoError(t, tracker.MarkStudying(ctx, "old", study.SourceManual))
	clock.Advance(13 * time.Hour)
	require.NoError(t, tracker.MarkStudying(ctx, "fresh", study.SourceManual))

	n, err := tracker.PruneOlderThan(ctx, clock.Now().Add(-12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := tracker.ListStudying(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, shared.UserID("fresh"), list[0].UserID)
}
