package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/internal/bootstrap"
	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/internal/interface/http/handlers"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

type fixture struct {
	clock    *timeutil.FakeClock
	progress *memory.Progressions
	econ     *memory.Economy
	cfg      *config.Config
}

func newFixture() *fixture {
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 10, 0, 0))
	return &fixture{
		clock:    clock,
		progress: memory.NewProgressions(clock),
		econ:     memory.NewEconomy(clock),
		cfg: &config.Config{
			Database: config.DatabaseConfig{UseMemoryStore: true},
			HTTP:     config.HTTPConfig{JWTSecret: "test-secret"},
		},
	}
}

func (f *fixture) load(_ context.Context, withStores bool) (*env, error) {
	e := &env{cfg: f.cfg, clock: f.clock, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if withStores {
		e.stores = &bootstrap.Stores{
			Records:   memory.NewRecords(),
			Progress:  f.progress,
			Wallets:   f.econ.Wallets(),
			Inventory: f.econ.Inventory(),
		}
	}
	return e, nil
}

func execute(t *testing.T, f *fixture, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(f.load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRecalcLevels(t *testing.T) {
	f := newFixture()
	f.progress.Put(progression.UserProgression{UserID: "u1", CumulativeMinutes: 600, Level: 1})

	out, err := execute(t, f, "recalc-levels", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "u1\t1 -> ")
	assert.Contains(t, out, "scanned 1, would update 1")

	p, err := f.progress.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Level, "dry run must not write")

	out, err = execute(t, f, "recalc-levels")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 1, updated 1")

	out, err = execute(t, f, "recalc-levels")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 1, updated 0")
}

func TestStats(t *testing.T) {
	f := newFixture()
	_, err := f.econ.Wallets().Credit(context.Background(), shared.UserID("u1"), 250)
	require.NoError(t, err)

	out, err := execute(t, f, "stats", "u1")
	require.NoError(t, err)

	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, "u1", stats["user_id"])
	assert.EqualValues(t, 250, stats["balance"])
	assert.EqualValues(t, 1, stats["level"])

	_, err = execute(t, f, "stats")
	assert.Error(t, err, "user id argument is required")
}

func TestShop(t *testing.T) {
	f := newFixture()

	out, err := execute(t, f, "shop")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.NotEmpty(t, lines)
	assert.Contains(t, out, "title_king")
	assert.NotContains(t, out, "owned")
}

func TestToken(t *testing.T) {
	f := newFixture()

	out, err := execute(t, f, "token", "discord-bot", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := handlers.NewTokenManager("test-secret", "").Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "discord-bot", claims.Caller)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	f.cfg.HTTP.JWTSecret = ""
	_, err = execute(t, f, "token", "discord-bot")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestMigrateNeedsDatabase(t *testing.T) {
	f := newFixture()
	_, err := execute(t, f, "migrate", "status")
	assert.ErrorContains(t, err, "DATABASE_URL")
}
