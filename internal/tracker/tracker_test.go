package tracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/causalityd/internal/config"
)

// fakeClock lets tests control the tracker's notion of time.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestTracker creates a tracker with a controllable clock and a sweep
// interval long enough that it never fires during a test.
func newTestTracker(t *testing.T, cfg *Config) (*Tracker, *fakeClock) {
	t.Helper()

	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	cfg.CleanupInterval = config.Duration(time.Hour)

	trk, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(trk.Destroy)

	clk := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	setClock(trk, clk)
	return trk, clk
}

// setClock swaps the tracker clock under the store lock so the swap cannot
// race with the background sweep.
func setClock(trk *Tracker, clk *fakeClock) {
	trk.mu.Lock()
	defer trk.mu.Unlock()
	trk.now = clk.Now
}

func TestStartChain(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "user clicked checkout")
	require.NoError(t, err)
	require.NotEmpty(t, chainID)

	ch, ok := trk.Chain(chainID)
	require.True(t, ok)

	assert.Equal(t, chainID, ch.ID)
	assert.Len(t, ch.Events, 1)
	assert.Equal(t, 1, ch.Metadata.EventCount)
	assert.Equal(t, 0, ch.Metadata.MaxDepth)
	assert.False(t, ch.Ended())

	root := ch.RootCause
	require.NotNil(t, root)
	assert.Equal(t, EventUserAction, root.Type)
	assert.Equal(t, "user clicked checkout", root.Description)
	assert.Equal(t, chainID, root.ChainID)
	assert.Empty(t, root.ParentID)
	assert.Equal(t, 0, root.Metadata.Depth)
	assert.Equal(t, SeverityLow, root.Metadata.Severity)
	assert.False(t, root.Timing.Completed())

	assert.Equal(t, chainID, trk.ActiveChainID())
}

func TestStartChain_InvalidType(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	_, err := trk.StartChain(EventType("bogus"), "nope")
	require.ErrorIs(t, err, ErrInvalidEventType)
}

func TestStartChain_ReplacesActiveChain(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	first, err := trk.StartChain(EventUserAction, "first")
	require.NoError(t, err)
	second, err := trk.StartChain(EventUserAction, "second")
	require.NoError(t, err)

	assert.Equal(t, second, trk.ActiveChainID())

	// The first chain is still live, just no longer active.
	_, ok := trk.Chain(first)
	assert.True(t, ok)
}

func TestAddEvent_ParentChildLinks(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "submit form")
	require.NoError(t, err)

	e2, err := trk.AddEvent(EventAPICall, "POST /orders")
	require.NoError(t, err)
	e3, err := trk.AddEvent(EventStateChange, "order pending")
	require.NoError(t, err)

	ch, ok := trk.Chain(chainID)
	require.True(t, ok)
	require.Len(t, ch.Events, 3)

	root, second, third := ch.Events[0], ch.Events[1], ch.Events[2]
	assert.Equal(t, e2, second.ID)
	assert.Equal(t, e3, third.ID)

	assert.Equal(t, root.ID, second.ParentID)
	assert.Equal(t, second.ID, third.ParentID)
	assert.Equal(t, []string{second.ID}, root.ChildIDs)
	assert.Equal(t, []string{third.ID}, second.ChildIDs)

	assert.Equal(t, 1, second.Metadata.Depth)
	assert.Equal(t, 2, third.Metadata.Depth)
	assert.Equal(t, 3, ch.Metadata.EventCount)
	assert.Equal(t, 2, ch.Metadata.MaxDepth)
}

func TestAddEvent_ExplicitParentBranches(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "open page")
	require.NoError(t, err)

	rootID := mustChain(t, trk, chainID).RootCause.ID

	left, err := trk.AddEvent(EventAPICall, "fetch profile")
	require.NoError(t, err)
	right, err := trk.AddEvent(EventAPICall, "fetch orders", WithParent(rootID))
	require.NoError(t, err)

	ch := mustChain(t, trk, chainID)
	assert.Equal(t, []string{left, right}, ch.RootCause.ChildIDs)
	assert.Equal(t, rootID, ch.Events[2].ParentID)
	assert.Equal(t, 1, ch.Events[1].Metadata.Depth)
	assert.Equal(t, 1, ch.Events[2].Metadata.Depth)
	assert.Equal(t, 1, ch.Metadata.MaxDepth)
}

func TestAddEvent_UnknownParentFallsBackToLast(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "root")
	require.NoError(t, err)
	mid, err := trk.AddEvent(EventAPICall, "mid")
	require.NoError(t, err)

	_, err = trk.AddEvent(EventStateChange, "child", WithParent("evt_does-not-exist"))
	require.NoError(t, err)

	ch := mustChain(t, trk, chainID)
	assert.Equal(t, mid, ch.Events[2].ParentID)
	assert.Equal(t, 2, ch.Events[2].Metadata.Depth)
}

func TestAddEvent_ExplicitChainTargeting(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	first, err := trk.StartChain(EventUserAction, "first")
	require.NoError(t, err)
	_, err = trk.StartChain(EventUserAction, "second")
	require.NoError(t, err)

	// Targets the first chain even though the second is active.
	_, err = trk.AddEvent(EventAPICall, "late arrival", InChain(first))
	require.NoError(t, err)

	assert.Equal(t, 2, mustChain(t, trk, first).Metadata.EventCount)
}

func TestAddEvent_UnknownExplicitChain(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	_, err := trk.AddEvent(EventAPICall, "orphan", InChain("chain_missing"))
	require.ErrorIs(t, err, ErrChainNotFound)
}

func TestAddEvent_BootstrapsChainWhenNoneActive(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	id, err := trk.AddEvent(EventSystem, "cold start")
	require.NoError(t, err)

	chainID := trk.ActiveChainID()
	require.NotEmpty(t, chainID)

	ch := mustChain(t, trk, chainID)
	assert.Equal(t, id, ch.RootCause.ID, "bootstrap returns the root event id")
	assert.Equal(t, 1, ch.Metadata.EventCount)
	assert.Equal(t, EventSystem, ch.RootCause.Type)
}

func TestAddEvent_InvalidType(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	_, err := trk.AddEvent(EventType(""), "no type")
	require.ErrorIs(t, err, ErrInvalidEventType)
}

func TestAddEvent_MaxLengthEndsChain(t *testing.T) {
	t.Parallel()
	cfg := NewDefaultConfig()
	cfg.MaxChainLength = 4
	trk, _ := newTestTracker(t, cfg)

	chainID, err := trk.StartChain(EventUserAction, "runaway loop")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = trk.AddEvent(EventStateChange, "tick")
		require.NoError(t, err)
	}

	ch := mustChain(t, trk, chainID)
	assert.Equal(t, 4, ch.Metadata.EventCount)
	assert.True(t, ch.Ended(), "chain at max length auto-ends")
	assert.Empty(t, trk.ActiveChainID())

	// The next implicit event bootstraps a fresh chain.
	_, err = trk.AddEvent(EventStateChange, "tock")
	require.NoError(t, err)
	assert.NotEmpty(t, trk.ActiveChainID())
	assert.NotEqual(t, chainID, trk.ActiveChainID())
}

func TestAddEvent_OptionsApplied(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "root", WithTags("checkout"))
	require.NoError(t, err)

	_, err = trk.AddEvent(EventAPICall, "call",
		WithTags("payment", "checkout"),
		WithSeverity(SeverityMedium),
		WithContextValue("endpoint", "/api/pay"),
		WithData(map[string]any{"attempt": 1}),
	)
	require.NoError(t, err)

	ch := mustChain(t, trk, chainID)
	evt := ch.Events[1]
	assert.Equal(t, []string{"payment", "checkout"}, evt.Metadata.Tags)
	assert.Equal(t, SeverityMedium, evt.Metadata.Severity)
	assert.Equal(t, "/api/pay", evt.Context["endpoint"])
	assert.Equal(t, 1, evt.Metadata.Data["attempt"])

	// Chain tags are the union of event tags, first seen first.
	assert.Equal(t, []string{"checkout", "payment"}, ch.Metadata.Tags)
}

func TestCompleteEvent(t *testing.T) {
	t.Parallel()
	trk, clk := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventAPICall, "GET /users")
	require.NoError(t, err)
	rootID := mustChain(t, trk, chainID).RootCause.ID

	clk.Advance(150 * time.Millisecond)
	trk.CompleteEvent(rootID, nil)

	evt := mustChain(t, trk, chainID).RootCause
	assert.True(t, evt.Timing.Completed())
	assert.Equal(t, 150*time.Millisecond, evt.Timing.Duration)
	assert.Nil(t, evt.Metadata.Error)
	assert.Equal(t, SeverityLow, evt.Metadata.Severity)
}

func TestCompleteEvent_WithError(t *testing.T) {
	t.Parallel()
	trk, clk := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventAPICall, "GET /users")
	require.NoError(t, err)
	rootID := mustChain(t, trk, chainID).RootCause.ID

	clk.Advance(10 * time.Millisecond)
	trk.CompleteEvent(rootID, errors.New("connection refused"))

	evt := mustChain(t, trk, chainID).RootCause
	require.NotNil(t, evt.Metadata.Error)
	assert.Equal(t, "connection refused", evt.Metadata.Error.Message)
	assert.Equal(t, SeverityHigh, evt.Metadata.Severity)
	assert.True(t, evt.HasError())
}

func TestCompleteEvent_UnknownIsNoOp(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	// Must not panic or error: completions race with eviction.
	trk.CompleteEvent("evt_gone", nil)
	trk.CompleteEvent("evt_gone", errors.New("late failure"))
}

func TestCompleteEvent_ClampsNegativeDuration(t *testing.T) {
	t.Parallel()
	trk, clk := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventAPICall, "clock skew")
	require.NoError(t, err)
	rootID := mustChain(t, trk, chainID).RootCause.ID

	clk.Advance(-time.Second)
	trk.CompleteEvent(rootID, nil)

	evt := mustChain(t, trk, chainID).RootCause
	assert.True(t, evt.Timing.Completed())
	assert.Equal(t, time.Duration(0), evt.Timing.Duration)
}

func TestEndChain(t *testing.T) {
	t.Parallel()
	trk, clk := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "session")
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	trk.EndChain(chainID)

	ch := mustChain(t, trk, chainID)
	assert.True(t, ch.Ended())
	assert.Equal(t, 2*time.Second, ch.Metadata.TotalDuration)
	assert.Empty(t, trk.ActiveChainID())
}

func TestEndChain_UnknownIsNoOp(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	trk.EndChain("chain_missing")
}

func TestEndChain_AlreadyEndedKeepsDuration(t *testing.T) {
	t.Parallel()
	trk, clk := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "session")
	require.NoError(t, err)

	clk.Advance(time.Second)
	trk.EndChain(chainID)
	clk.Advance(time.Minute)
	trk.EndChain(chainID)

	ch := mustChain(t, trk, chainID)
	assert.Equal(t, time.Second, ch.Metadata.TotalDuration)
}

func TestEndActiveChain(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	// No active chain: no-op.
	trk.EndActiveChain()

	chainID, err := trk.StartChain(EventUserAction, "session")
	require.NoError(t, err)
	trk.EndActiveChain()

	assert.True(t, mustChain(t, trk, chainID).Ended())
	assert.Empty(t, trk.ActiveChainID())
}

func TestChain_ReturnsDeepCopy(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	chainID, err := trk.StartChain(EventUserAction, "immutable", WithTags("a"))
	require.NoError(t, err)

	ch := mustChain(t, trk, chainID)
	ch.RootCause.Description = "mutated"
	ch.Metadata.Tags[0] = "mutated"
	ch.Metadata.EventCount = 99

	fresh := mustChain(t, trk, chainID)
	assert.Equal(t, "immutable", fresh.RootCause.Description)
	assert.Equal(t, []string{"a"}, fresh.Metadata.Tags)
	assert.Equal(t, 1, fresh.Metadata.EventCount)
}

func TestDestroy(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	_, err := trk.StartChain(EventUserAction, "doomed")
	require.NoError(t, err)

	trk.Destroy()
	trk.Destroy() // idempotent

	stats := trk.Stats()
	assert.Zero(t, stats.LiveChains)
	assert.Zero(t, stats.LiveEvents)
	assert.Zero(t, stats.ChainsStarted)

	_, err = trk.StartChain(EventUserAction, "after destroy")
	require.ErrorIs(t, err, ErrTrackerClosed)
	_, err = trk.AddEvent(EventSystem, "after destroy")
	require.ErrorIs(t, err, ErrTrackerClosed)
}

func TestTracker_ConcurrentUse(t *testing.T) {
	t.Parallel()
	trk, _ := newTestTracker(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chainID, err := trk.StartChain(EventAsyncOperation, "worker")
			if err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 10; j++ {
				id, err := trk.AddEvent(EventStateChange, "step", InChain(chainID))
				if err != nil {
					t.Error(err)
					return
				}
				trk.CompleteEvent(id, nil)
			}
			trk.EndChain(chainID)
		}()
	}
	wg.Wait()

	stats := trk.Stats()
	assert.Equal(t, int64(8), stats.ChainsStarted)
	assert.Equal(t, int64(88), stats.EventsRecorded)
	assert.Equal(t, int64(8), stats.ChainsEnded)
}

// mustChain fetches a deep copy of a chain that is expected to exist.
func mustChain(t *testing.T, trk *Tracker, chainID string) *Chain {
	t.Helper()
	ch, ok := trk.Chain(chainID)
	require.True(t, ok, "chain %s not found", chainID)
	return ch
}
