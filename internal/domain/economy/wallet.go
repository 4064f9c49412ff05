package economy

import (
	"time"

	"github.com/safe1124/studyhub/internal/domain/shared"
)

// Wallet is a user's currency account. Balance moves up on session credits and
// down on purchases; TotalEarned only moves up.
type Wallet struct {
	UserID      shared.UserID
	Balance     int
	TotalEarned int
	UpdatedAt   time.Time
}

// EmptyWallet is the view of a user who has never been credited.
func EmptyWallet(userID shared.UserID) *Wallet {
	return &Wallet{UserID: userID}
}

// EarnedFor converts minutes into currency at the given rate.
func EarnedFor(minutes, perMinute int) int {
	if minutes <= 0 {
		return 0
	}
	return minutes * perMinute
}

// Credit adds earned currency.
func (w *Wallet) Credit(amount int, now time.Time) error {
	if amount < 0 {
		return shared.NewDomainError("economy", "Credit", shared.ErrValidation, "credit cannot be negative")
	}
	w.Balance += amount
	w.TotalEarned += amount
	w.UpdatedAt = now
	return nil
}

// CanAfford reports whether the balance covers price.
func (w *Wallet) CanAfford(price int) bool {
	return w.Balance >= price
}

// Debit removes price from the balance. It never lets the balance go negative.
func (w *Wallet) Debit(price int, now time.Time) error {
	if price < 0 {
		return shared.NewDomainError("economy", "Debit", shared.ErrValidation, "price cannot be negative")
	}
	if !w.CanAfford(price) {
		return shared.NewDomainError("economy", "Debit", shared.ErrInsufficientFunds, "not enough currency")
	}
	w.Balance -= price
	w.UpdatedAt = now
	return nil
}
