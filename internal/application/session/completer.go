package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/safe1124/studyhub/internal/domain/economy"
	"github.com/safe1124/studyhub/internal/domain/progression"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

// Completion describes a closed session that should be credited.
type Completion struct {
	UserID  shared.UserID
	Source  study.Source
	Start   time.Time
	End     time.Time
	Minutes int
}

// CompletionResult is what a credited session produced.
type CompletionResult struct {
	Record *study.StudyRecord

	// Earned is the currency credited (or attempted) for the session.
	Earned int

	// Progression and Wallet are nil when their credit failed.
	Progression *progression.UserProgression
	Wallet      *economy.Wallet
	OldLevel    int
}

// LevelChanged reports whether the credit moved the user to a new level.
func (r *CompletionResult) LevelChanged() bool {
	return r.Progression != nil && r.Progression.Level != r.OldLevel
}

// CompleterConfig holds crediting parameters.
type CompleterConfig struct {
	CurrencyPerMinute int
}

// DefaultCompleterConfig returns the standard rate.
func DefaultCompleterConfig() CompleterConfig {
	return CompleterConfig{CurrencyPerMinute: economy.CurrencyPerMinute}
}

// Completer turns a closed session into a ledger row plus credits.
//
// The append and the two credits are separate store calls. The append comes
// first; if it fails nothing is credited. If it succeeds, the cumulative and
// currency credits run concurrently and independently: a failure of either
// leaves the ledger ahead of progression or wallet, which is logged and
// reported but not compensated.
type Completer struct {
	records  study.RecordRepository
	progress progression.Repository
	wallets  economy.WalletRepository
	events   shared.EventPublisher
	logger   *logger.Logger
	config   CompleterConfig
}

// NewCompleter creates a Completer.
func NewCompleter(
	records study.RecordRepository,
	progress progression.Repository,
	wallets economy.WalletRepository,
	events shared.EventPublisher,
	log *logger.Logger,
	config CompleterConfig,
) *Completer {
	if events == nil {
		events = shared.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if config.CurrencyPerMinute <= 0 {
		config.CurrencyPerMinute = economy.CurrencyPerMinute
	}
	return &Completer{
		records:  records,
		progress: progress,
		wallets:  wallets,
		events:   events,
		logger:   log.With(logger.Component("completer")),
		config:   config,
	}
}

// Complete appends the record and credits the user.
//
// On an append failure it returns (nil, err) with err matching
// shared.ErrStorageUnavailable. On a credit failure it returns the partial
// result together with an error; the record has been written in that case.
func (c *Completer) Complete(ctx context.Context, comp Completion) (*CompletionResult, error) {
	record, err := study.NewStudyRecord(comp.UserID, comp.Source, comp.Start, comp.End, comp.Minutes)
	if err != nil {
		return nil, err
	}

	log := c.logger.With(
		logger.UserID(comp.UserID.String()),
		logger.String("source", string(comp.Source)),
		logger.String("record_id", record.ID),
		logger.Minutes(record.Minutes),
	)

	if err := c.records.Append(ctx, record); err != nil {
		log.Error("failed to append study record, session discarded", logger.Err(err))
		return nil, shared.Storage("study", "Append", err)
	}

	c.publish(shared.SessionCompletedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionCompleted, comp.UserID.String(), comp.End),
		RecordID:  record.ID,
		Source:    string(record.Source),
		Minutes:   record.Minutes,
		DayKey:    record.DayKey,
		WeekKey:   record.WeekKey,
		MonthKey:  record.MonthKey,
	})

	result := &CompletionResult{
		Record: record,
		Earned: economy.EarnedFor(record.Minutes, c.config.CurrencyPerMinute),
	}

	// The record is written; a caller going away must not leave it half-credited.
	creditCtx := context.WithoutCancel(ctx)

	var (
		g                  errgroup.Group
		progErr, walletErr error
		progRow            *progression.UserProgression
		oldLevel           int
		walletRow          *economy.Wallet
	)
	g.Go(func() error {
		progRow, oldLevel, progErr = c.progress.Credit(creditCtx, comp.UserID, record.Minutes)
		return progErr
	})
	g.Go(func() error {
		walletRow, walletErr = c.wallets.Credit(creditCtx, comp.UserID, result.Earned)
		return walletErr
	})
	_ = g.Wait()

	if progErr == nil {
		result.Progression = progRow
		result.OldLevel = oldLevel
		if result.LevelChanged() {
			log.Info("level changed",
				logger.Int("old_level", oldLevel),
				logger.UserLevel(progRow.Level),
			)
			c.publish(shared.NewLevelChangedEvent(comp.UserID.String(), oldLevel, progRow.Level, progRow.CumulativeMinutes, comp.End))
		}
	} else {
		log.Error("cumulative credit failed after append, ledger ahead of progression", logger.Err(progErr))
	}

	if walletErr == nil {
		result.Wallet = walletRow
		c.publish(shared.CurrencyCreditedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventCurrencyCredited, comp.UserID.String(), comp.End),
			Amount:    result.Earned,
			Balance:   walletRow.Balance,
		})
	} else {
		log.Error("currency credit failed after append, ledger ahead of wallet", logger.Err(walletErr))
	}

	if progErr != nil || walletErr != nil {
		return result, shared.WrapError("study", "Credit", shared.ErrStorageUnavailable,
			"session recorded but not fully credited", errors.Join(progErr, walletErr))
	}

	log.Info("study session completed", logger.Int("earned", result.Earned))
	return result, nil
}

func (c *Completer) publish(event shared.Event) {
	if err := c.events.Publish(event); err != nil {
		c.logger.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}
