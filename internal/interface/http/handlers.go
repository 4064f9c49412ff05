package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safe1124/studyhub/config"
	"github.com/safe1124/studyhub/internal/application/command"
	"github.com/safe1124/studyhub/internal/application/query"
	"github.com/safe1124/studyhub/internal/application/session"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type completionResponse struct {
	RecordID    string    `json:"record_id"`
	Source      string    `json:"source"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Minutes     int       `json:"minutes"`
	Earned      int       `json:"earned"`
	Level       int       `json:"level,omitempty"`
	LevelUp     bool      `json:"level_up"`
	Balance     *int      `json:"balance,omitempty"`
	CreditError string    `json:"credit_error,omitempty"`
}

func toCompletionResponse(res *session.CompletionResult) *completionResponse {
	if res == nil || res.Record == nil {
		return nil
	}
	out := &completionResponse{
		RecordID:  res.Record.ID,
		Source:    string(res.Record.Source),
		StartTime: res.Record.StartTime,
		EndTime:   res.Record.EndTime,
		Minutes:   res.Record.Minutes,
		Earned:    res.Earned,
		LevelUp:   res.LevelChanged(),
	}
	if res.Progression != nil {
		out.Level = res.Progression.Level
	}
	if res.Wallet != nil {
		b := res.Wallet.Balance
		out.Balance = &b
	}
	return out
}

type sessionStatusResponse struct {
	State              string     `json:"state"`
	SessionStartTime   *time.Time `json:"session_start_time,omitempty"`
	AccumulatedMinutes int        `json:"accumulated_minutes"`
	ElapsedMinutes     int        `json:"elapsed_minutes"`
	Legs               int        `json:"legs"`
}

type timerStatusResponse struct {
	Running          bool       `json:"running"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	RemainingMinutes int        `json:"remaining_minutes"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL SESSION
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Manual.Start(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"resumed":             res.Resumed,
		"session_start_time":  res.SessionStartTime,
		"leg_start_time":      res.LegStartTime,
		"accumulated_minutes": res.AccumulatedMinutes,
	})
}

func (s *Server) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Manual.Pause(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leg_minutes":         res.LegMinutes,
		"accumulated_minutes": res.AccumulatedMinutes,
	})
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Manual.Stop(r.Context(), userID)
	s.writeCompletion(w, r, res, err)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	st := s.deps.Manual.Status(userID)
	writeJSON(w, http.StatusOK, sessionStatusResponse{
		State:              string(st.State),
		SessionStartTime:   timePtr(st.SessionStartTime),
		AccumulatedMinutes: st.AccumulatedMinutes,
		ElapsedMinutes:     st.ElapsedMinutes,
		Legs:               st.Legs,
	})
}

// writeCompletion handles the (partial result, error) pair of a stop. When
// the record was written but a credit failed, the stop still happened, so the
// response is 200 with the failure noted.
func (s *Server) writeCompletion(w http.ResponseWriter, r *http.Request, res *session.CompletionResult, err error) {
	if err != nil && (res == nil || res.Record == nil) {
		s.writeDomainError(w, r, err)
		return
	}
	body := toCompletionResponse(res)
	if err != nil {
		body.CreditError = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// ══════════════════════════════════════════════════════════════════════════════
// FOCUS TIMER
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleTimerStart(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok || !s.featureAllowed(w, config.FeatureFocusTimer, userID) {
		return
	}
	res, err := s.deps.Focus.Start(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timer_id":   res.TimerID,
		"started_at": res.StartedAt,
		"deadline":   res.Deadline,
	})
}

func (s *Server) handleTimerStop(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Focus.Stop(r.Context(), userID)
	s.writeCompletion(w, r, res, err)
}

func (s *Server) handleTimerStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	st := s.deps.Focus.Status(userID)
	writeJSON(w, http.StatusOK, timerStatusResponse{
		Running:          st.Running,
		StartedAt:        timePtr(st.StartedAt),
		Deadline:         timePtr(st.Deadline),
		RemainingMinutes: st.RemainingMinutes,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESENCE
// ══════════════════════════════════════════════════════════════════════════════

type areaRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type presenceEventRequest struct {
	UserID   string       `json:"userId"`
	FromArea *areaRequest `json:"fromArea"`
	ToArea   *areaRequest `json:"toArea"`
}

func (a *areaRequest) area() study.Area {
	if a == nil {
		return study.Area{}
	}
	return study.Area{ID: a.ID, Name: a.Name}
}

var transitionNames = map[study.PresenceTransition]string{
	study.TransitionNone:  "none",
	study.TransitionEnter: "enter",
	study.TransitionLeave: "leave",
	study.TransitionMove:  "move",
}

func (s *Server) handlePresenceEvent(w http.ResponseWriter, r *http.Request) {
	var req presenceEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := shared.UserID(req.UserID)
	if !userID.IsValid() {
		writeError(w, http.StatusBadRequest, "validation_error", "userId is required")
		return
	}
	if !s.featureAllowed(w, config.FeaturePresenceTracking, userID) {
		return
	}

	out, err := s.deps.Presence.HandleMove(r.Context(), userID, req.FromArea.area(), req.ToArea.area())
	body := map[string]any{
		"transition": transitionNames[out.Transition],
		"opened":     out.Opened,
	}
	if c := toCompletionResponse(out.Completion); c != nil {
		if err != nil {
			c.CreditError = err.Error()
		}
		body["completion"] = c
	} else if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

// ══════════════════════════════════════════════════════════════════════════════
// ECONOMY
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok || !s.featureAllowed(w, config.FeatureShop, userID) {
		return
	}
	res, err := s.deps.PurchaseItem.Handle(r.Context(), command.PurchaseItemCommand{
		UserID: userID.String(),
		ItemID: chi.URLParam(r, "itemID"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":      string(res.Item.ID),
		"name":         res.Item.Name,
		"price":        res.Item.Price,
		"balance":      res.Balance,
		"purchased_at": res.PurchasedAt,
	})
}

func (s *Server) handleEquip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok || !s.featureAllowed(w, config.FeatureShop, userID) {
		return
	}
	res, err := s.deps.EquipItem.Handle(r.Context(), command.EquipItemCommand{
		UserID: userID.String(),
		ItemID: chi.URLParam(r, "itemID"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"item_id":  string(res.Item.ID),
		"category": string(res.Item.Category),
		"role":     res.Item.Role,
	})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.GetWallet.Handle(r.Context(), query.GetWalletQuery{UserID: userID.String()})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.GetInventory.Handle(r.Context(), query.GetInventoryQuery{UserID: userID.String()})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.ListShop.Handle(r.Context(), query.ListShopQuery{UserID: r.URL.Query().Get("user")})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": res})
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS AND RANKINGS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	res, err := s.deps.GetStats.Handle(r.Context(), query.GetStatsQuery{UserID: userID.String()})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	res, err := s.deps.GetPeriodRanking.Handle(r.Context(), query.GetPeriodRankingQuery{
		Period: chi.URLParam(r, "period"),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLevelLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit")
	if !ok {
		return
	}
	res, err := s.deps.GetLevelLeaderboard.Handle(r.Context(), query.GetLevelLeaderboardQuery{
		Limit:  limit,
		UserID: r.URL.Query().Get("user"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStudyingNow(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GetStudyingNow.Handle(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func userParam(w http.ResponseWriter, r *http.Request) (shared.UserID, bool) {
	userID := shared.UserID(chi.URLParam(r, "userID"))
	if !userID.IsValid() {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid user id")
		return "", false
	}
	return userID, true
}

func intQuery(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", key+" must be an integer")
		return 0, false
	}
	return n, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid payload")
		return false
	}
	return true
}

func (s *Server) featureAllowed(w http.ResponseWriter, feature string, userID shared.UserID) bool {
	if s.deps.Features.Allowed(feature, userID.String()) {
		return true
	}
	status, code := errorStatus(shared.ErrFeatureDisabled)
	writeError(w, status, code, feature+" is disabled")
	return false
}
