package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safe1124/studyhub/internal/application/session"
	"github.com/safe1124/studyhub/internal/domain/shared"
	"github.com/safe1124/studyhub/internal/domain/study"
	"github.com/safe1124/studyhub/internal/infrastructure/messaging"
	"github.com/safe1124/studyhub/internal/infrastructure/persistence/memory"
	"github.com/safe1124/studyhub/pkg/timeutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []shared.FocusTimerCompletedEvent
	err    error
}

func (n *recordingNotifier) NotifyFocusCompleted(_ context.Context, e shared.FocusTimerCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

func (n *recordingNotifier) received() []shared.FocusTimerCompletedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]shared.FocusTimerCompletedEvent(nil), n.events...)
}

type engines struct {
	clock    *timeutil.FakeClock
	bus      *messaging.InMemoryEventBus
	tracker  *memory.StudyingNow
	notifier *recordingNotifier
	focus    *OnFocusCompletedHandler
	manual   *session.ManualTracker
	timers   *session.FocusTimers
}

func newEngines(t *testing.T) *engines {
	t.Helper()
	clock := timeutil.NewFakeClock(timeutil.DateTime(2024, 5, 15, 9, 0, 0))
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { _ = bus.Close() })

	e := &engines{
		clock:    clock,
		bus:      bus,
		tracker:  memory.NewStudyingNow(),
		notifier: &recordingNotifier{},
	}
	e.focus = NewOnFocusCompletedHandler(e.notifier, nil)
	require.NoError(t, e.focus.Register(bus))
	require.NoError(t, NewStudyingNowMirror(e.tracker, nil).Register(bus))

	economyStore := memory.NewEconomy(clock)
	completer := session.NewCompleter(memory.NewRecords(), memory.NewProgressions(clock),
		economyStore.Wallets(), bus, nil, session.DefaultCompleterConfig())
	e.manual = session.NewManualTracker(completer, bus, clock, nil)
	e.timers = session.NewFocusTimers(0, completer, bus, clock, nil)
	return e
}

func (e *engines) studying(t *testing.T) []study.StudyingEntry {
	t.Helper()
	list, err := e.tracker.ListStudying(context.Background())
	require.NoError(t, err)
	return list
}

func TestFocusExpiryNotifies(t *testing.T) {
	e := newEngines(t)
	_, err := e.timers.Start(context.Background(), "u1")
	require.NoError(t, err)

	e.clock.Advance(25 * time.Minute)
	e.focus.Wait()

	got := e.notifier.received()
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].AggregateID())
	assert.Equal(t, 25, got[0].Minutes)
	assert.Equal(t, 2500, got[0].Currency)
}

func TestFocusStoppedEarlyDoesNotNotify(t *testing.T) {
	e := newEngines(t)
	_, err := e.timers.Start(context.Background(), "u1")
	require.NoError(t, err)

	e.clock.Advance(10 * time.Minute)
	_, err = e.timers.Stop(context.Background(), "u1")
	require.NoError(t, err)
	e.clock.Advance(20 * time.Minute)
	e.focus.Wait()

	assert.Empty(t, e.notifier.received())
}

func TestNotifierFailureIsDropped(t *testing.T) {
	e := newEngines(t)
	e.notifier.err = errors.New("sink down")

	_, err := e.timers.Start(context.Background(), "u1")
	require.NoError(t, err)
	e.clock.Advance(25 * time.Minute)
	e.focus.Wait()

	// One attempt, no retry.
	assert.Len(t, e.notifier.received(), 1)
}

func TestStudyingNowFollowsSessions(t *testing.T) {
	e := newEngines(t)
	ctx := context.Background()

	_, err := e.manual.Start(ctx, "u1")
	require.NoError(t, err)
	_, err = e.timers.Start(ctx, "u1")
	require.NoError(t, err)
	_, err = e.timers.Start(ctx, "u2")
	require.NoError(t, err)

	list := e.studying(t)
	require.Len(t, list, 2)
	assert.ElementsMatch(t, []study.Source{study.SourceManual, study.SourceFocus}, list[0].Sources)

	e.clock.Advance(5 * time.Minute)
	_, err = e.manual.Pause(ctx, "u1")
	require.NoError(t, err)
	_, err = e.timers.Stop(ctx, "u2")
	require.NoError(t, err)

	list = e.studying(t)
	require.Len(t, list, 1)
	assert.Equal(t, shared.UserID("u1"), list[0].UserID)
	assert.Equal(t, []study.Source{study.SourceFocus}, list[0].Sources)

	e.clock.Advance(20 * time.Minute)
	assert.Empty(t, e.studying(t))
}
