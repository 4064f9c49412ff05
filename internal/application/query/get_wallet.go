package query

import (
	"context"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/shared"
)

// GetWalletQuery selects the user.
type GetWalletQuery struct {
	UserID string
}

// WalletDTO is the wallet view.
type WalletDTO struct {
	UserID      string `json:"user_id"`
	Balance     int    `json:"balance"`
	TotalEarned int    `json:"total_earned"`
}

// GetWalletHandler handles GetWalletQuery. A user who never earned anything
// has a zero wallet rather than an error.
type GetWalletHandler struct {
	wallets economy.WalletRepository
}

// NewGetWalletHandler creates a GetWalletHandler.
func NewGetWalletHandler(wallets economy.WalletRepository) *GetWalletHandler {
	return &GetWalletHandler{wallets: wallets}
}

// Handle executes the query.
func (h *GetWalletHandler) Handle(ctx context.Context, q GetWalletQuery) (*WalletDTO, error) {
	userID := shared.UserID(q.UserID)
	if !userID.IsValid() {
		return nil, shared.NewDomainError("economy", "GetWallet", shared.ErrValidation, "user_id is required")
	}

	w, err := h.wallets.Get(ctx, userID)
	if shared.IsNotFound(err) {
		w, err = economy.EmptyWallet(userID), nil
	}
	if err != nil {
		return nil, shared.Storage("economy", "GetWallet", err)
	}
	return &WalletDTO{UserID: userID.String(), Balance: w.Balance, TotalEarned: w.TotalEarned}, nil
}
