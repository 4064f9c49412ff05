package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/internal/application/command"
	"github.com/safe1124/studyhub/internal/application/eventhandler"
	"github.com/safe1124/studyhub/internal/application/query"
	"github.com/safe1124/studyhub/internal/application/session"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/internal/infrastructure/messaging"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/internal/interface/http/handlers"
	"github.com/safe1124/studyhub/pkg/logger"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

const testSecret = "test-secret"

type testAPI struct {
	t      *testing.T
	clock  *timeutil.FakeClock
	flags  *config.FeatureFlags
	health *handlers.CompositeHealthChecker
	srv    *httptest.Server
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { _ = bus.Close() })

	records := memory.NewRecords()
	progress := memory.NewProgressions(clock)
	econ := memory.NewEconomy(clock)
	studying := memory.NewStudyingNow()
	require.NoError(t, eventhandler.NewStudyingNowMirror(studying, nil).Register(bus))

	completer := session.NewCompleter(records, progress, econ.Wallets(), bus, nil, session.DefaultCompleterConfig())
	tokens := handlers.NewTokenManager(testSecret, "")
	flags := config.NewFeatureFlags()
	health := handlers.NewCompositeHealthChecker("test")

	server := NewServer(DefaultConfig(), Dependencies{
		Manual:   session.NewManualTracker(completer, bus, clock, nil),
		Focus:    session.NewFocusTimers(0, completer, bus, clock, nil),
		Presence: session.NewPresenceTracker(study.NewAreaClassifier("study"), completer, bus, clock, nil),

		PurchaseItem: command.NewPurchaseItemHandler(econ.Wallets(), econ.Inventory(), bus, clock, nil),
		EquipItem:    command.NewEquipItemHandler(econ.Inventory(), bus, clock, nil),

		GetStats:            query.NewGetStatsHandler(records, progress, econ.Wallets(), econ.Inventory(), clock),
		GetPeriodRanking:    query.NewGetPeriodRankingHandler(records, clock),
		GetLevelLeaderboard: query.NewGetLevelLeaderboardHandler(progress),
		GetWallet:           query.NewGetWalletHandler(econ.Wallets()),
		GetInventory:        query.NewGetInventoryHandler(econ.Inventory()),
		ListShop:            query.NewListShopHandler(econ.Inventory()),
		GetStudyingNow:      query.NewGetStudyingNowHandler(studying),

		Tokens:   tokens,
		Features: flags,
		Health:   health,
		Logger:   logger.Nop(),
	})
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = server.Shutdown(context.Background()) })

	token, err := tokens.Issue("test-bot", time.Hour)
	require.NoError(t, err)

	return &testAPI{t: t, clock: clock, flags: flags, health: health, srv: srv, token: token}
}

func (a *testAPI) do(method, path string, body any) (int, map[string]any) {
	a.t.Helper()
	return a.doWithToken(method, path, body, a.token)
}

func (a *testAPI) doWithToken(method, path string, body any, token string) (int, map[string]any) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(a.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.srv.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestAuth(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.doWithToken(http.MethodGet, "/api/v1/studying-now", nil, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", errorCode(body))

	status, _ = api.doWithToken(http.MethodGet, "/api/v1/studying-now", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, status)

	expired, err := handlers.NewTokenManager(testSecret, "").Issue("bot", -time.Minute)
	require.NoError(t, err)
	status, body = api.doWithToken(http.MethodGet, "/api/v1/studying-now", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token_expired", errorCode(body))

	other, err := handlers.NewTokenManager("other-secret", "").Issue("bot", time.Hour)
	require.NoError(t, err)
	status, _ = api.doWithToken(http.MethodGet, "/api/v1/studying-now", nil, other)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.doWithToken(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["healthy"])

	api.health.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	status, body = api.doWithToken(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, false, body["healthy"])
}

func TestManualSessionFlow(t *testing.T) {
	api := newTestAPI(t)

	status, _ := api.do(http.MethodPost, "/api/v1/users/u1/session/start", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := api.do(http.MethodPost, "/api/v1/users/u1/session/start", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_active", errorCode(body))

	_, body = api.do(http.MethodGet, "/api/v1/studying-now", nil)
	assert.Equal(t, float64(1), body["count"])

	api.clock.Advance(30 * time.Minute)
	_, body = api.do(http.MethodGet, "/api/v1/users/u1/session", nil)
	assert.Equal(t, "active", body["state"])
	assert.Equal(t, float64(30), body["elapsed_minutes"])

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/session/stop", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(30), body["minutes"])
	assert.Equal(t, float64(3000), body["earned"])
	assert.Equal(t, float64(3000), body["balance"])

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/session/pause", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "not_active", errorCode(body))

	_, body = api.do(http.MethodGet, "/api/v1/users/u1/stats", nil)
	assert.Equal(t, float64(30), body["today_minutes"])
	assert.Equal(t, float64(3000), body["balance"])

	_, body = api.do(http.MethodGet, "/api/v1/rankings/day", nil)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].(map[string]any)["user_id"])
}

func TestShopFlow(t *testing.T) {
	api := newTestAPI(t)

	api.do(http.MethodPost, "/api/v1/users/u1/session/start", nil)
	api.clock.Advance(10 * time.Minute)
	api.do(http.MethodPost, "/api/v1/users/u1/session/stop", nil)

	status, body := api.do(http.MethodPost, "/api/v1/users/u1/shop/title_king/purchase", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["balance"])

	// Funds are checked before ownership, so a broke owner gets 402.
	status, body = api.do(http.MethodPost, "/api/v1/users/u1/shop/title_king/purchase", nil)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "insufficient_funds", errorCode(body))

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/shop/red/purchase", nil)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "insufficient_funds", errorCode(body))

	api.do(http.MethodPost, "/api/v1/users/u1/session/start", nil)
	api.clock.Advance(10 * time.Minute)
	api.do(http.MethodPost, "/api/v1/users/u1/session/stop", nil)

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/shop/title_king/purchase", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_owned", errorCode(body))

	_, body = api.do(http.MethodGet, "/api/v1/users/u1/wallet", nil)
	assert.Equal(t, float64(1000), body["balance"])

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/shop/gold/purchase", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "unknown_item", errorCode(body))

	status, _ = api.do(http.MethodPost, "/api/v1/users/u1/inventory/title_king/equip", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/inventory/red/equip", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "not_owned", errorCode(body))

	_, body = api.do(http.MethodGet, "/api/v1/users/u1/inventory", nil)
	assert.Len(t, body["titles"], 1)

	require.NoError(t, api.flags.DisableFeature(config.FeatureShop))
	status, body = api.do(http.MethodPost, "/api/v1/users/u1/shop/red/purchase", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "feature_disabled", errorCode(body))
}

func TestTimerAndPresence(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodPost, "/api/v1/users/u1/timer/start", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["timer_id"])

	api.clock.Advance(90 * time.Second)
	_, body = api.do(http.MethodGet, "/api/v1/users/u1/timer", nil)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(24), body["remaining_minutes"])

	status, body = api.do(http.MethodPost, "/api/v1/users/u1/timer/start", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "already_running", errorCode(body))

	api.clock.Advance(24 * time.Minute)
	_, body = api.do(http.MethodGet, "/api/v1/users/u1/timer", nil)
	assert.Equal(t, false, body["running"])

	status, body = api.do(http.MethodPost, "/api/v1/presence/events", map[string]any{
		"userId": "u2",
		"toArea": map[string]string{"id": "c1", "name": "Study Room"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "enter", body["transition"])
	assert.Equal(t, true, body["opened"])

	api.clock.Advance(5 * time.Minute)
	status, body = api.do(http.MethodPost, "/api/v1/presence/events", map[string]any{
		"userId":   "u2",
		"fromArea": map[string]string{"id": "c1", "name": "Study Room"},
		"toArea":   map[string]string{"id": "c2", "name": "Lounge"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "leave", body["transition"])
	completion := body["completion"].(map[string]any)
	assert.Equal(t, float64(5), completion["minutes"])

	_, body = api.do(http.MethodGet, "/api/v1/leaderboard/levels?user=u1", nil)
	require.NotNil(t, body["me"])
}

func TestValidationErrors(t *testing.T) {
	api := newTestAPI(t)

	status, body := api.do(http.MethodGet, "/api/v1/rankings/year", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", errorCode(body))

	status, _ = api.do(http.MethodGet, "/api/v1/rankings/week?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = api.do(http.MethodPost, "/api/v1/presence/events", map[string]any{"userId": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", errorCode(body))

	status, body = api.do(http.MethodGet, "/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", errorCode(body))
}

func TestErrorStatus(t *testing.T) {
	status, code := errorStatus(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal_error", code)
}
