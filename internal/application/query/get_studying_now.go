package query

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
)

// StudyingNowDTO lists everyone with an open session.
type StudyingNowDTO struct {
	Count int               `json:"count"`
	Users []StudyingUserDTO `json:"users"`
}

// StudyingUserDTO is one user and the kinds of session they have open.
type StudyingUserDTO struct {
	UserID  string   `json:"user_id"`
	Sources []string `json:"sources"`
}

// GetStudyingNowHandler reads the studying-now view.
type GetStudyingNowHandler struct {
	tracker study.StudyingNowTracker
}

// NewGetStudyingNowHandler creates a GetStudyingNowHandler.
func NewGetStudyingNowHandler(tracker study.StudyingNowTracker) *GetStudyingNowHandler {
	return &GetStudyingNowHandler{tracker: tracker}
}

// Handle executes the query.
func (h *GetStudyingNowHandler) Handle(ctx context.Context) (*StudyingNowDTO, error) {
	entries, err := h.tracker.ListStudying(ctx)
	if err != nil {
		return nil, shared.Storage("study", "GetStudyingNow", err)
	}

	dto := &StudyingNowDTO{Count: len(entries), Users: make([]StudyingUserDTO, 0, len(entries))}
	for _, e := range entries {
		u := StudyingUserDTO{UserID: e.UserID.String(), Sources: make([]string, 0, len(e.Sources))}
		for _, s := range e.Sources {
			u.Sources = append(u.Sources, string(s))
		}
		dto.Users = append(dto.Users, u)
	}
	return dto, nil
}
