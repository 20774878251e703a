package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/alerting"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/config"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/derived"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/feed"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/storage"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/trigger"
)

var slotBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type memoryStores struct {
	mu           sync.Mutex
	observations []storage.Observation
	feedStates   []storage.FeedState
	decisions    []storage.Decision
}

func (m *memoryStores) UpsertObservation(ctx context.Context, obs storage.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observations = append(m.observations, obs)
	return nil
}

func (m *memoryStores) ListObservationsBetween(ctx context.Context, feed string, from, to time.Time) ([]storage.Observation, error) {
	return nil, nil
}

func (m *memoryStores) ListRecentObservations(ctx context.Context, feed string, limit int) ([]storage.Observation, error) {
	return nil, nil
}

func (m *memoryStores) CountObservations(ctx context.Context, feed string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.observations)), nil
}

func (m *memoryStores) SaveFeedState(ctx context.Context, state storage.FeedState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedStates = append(m.feedStates, state)
	return nil
}

func (m *memoryStores) LoadFeedState(ctx context.Context, feed string) (*storage.FeedState, error) {
	return nil, nil
}

func (m *memoryStores) InsertDecision(ctx context.Context, decision storage.Decision) (storage.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	decision.ID = int64(len(m.decisions) + 1)
	m.decisions = append(m.decisions, decision)
	return decision, nil
}

func (m *memoryStores) ListRecentDecisions(ctx context.Context, limit int) ([]storage.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Decision(nil), m.decisions...), nil
}

type memoryNotifier struct {
	mu    sync.Mutex
	notes []alerting.Notification
}

func (m *memoryNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, note)
	return nil
}

type deniedLocker struct{}

func (deniedLocker) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	return nil, false, nil
}

func testPipeline(t *testing.T, locker storage.AdvisoryLocker) (*Service, *oracle.Static, *memoryStores, *memoryNotifier) {
	t.Helper()

	upstream := oracle.NewStatic(fixedpoint.FromInt(100))
	priceFeed, err := feed.New(feed.Config{
		UpdateInterval:         24 * time.Hour,
		MaxDataPoints:          10,
		Description:            "test_feed",
		InterpolationThreshold: 6 * time.Hour,
	}, upstream, slotBase, zerolog.Nop())
	if err != nil {
		t.Fatalf("feed.New should succeed: %v", err)
	}

	average, err := derived.NewMovingAverage(priceFeed, 2)
	if err != nil {
		t.Fatalf("NewMovingAverage should succeed: %v", err)
	}
	crossover, err := trigger.NewConfirmation(trigger.ConfirmationConfig{
		Reference:           derived.NewLastValue(priceFeed),
		Signal:              average,
		ConfirmationMinTime: 0,
		ConfirmationMaxTime: 48 * time.Hour,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewConfirmation should succeed: %v", err)
	}

	cfg := &config.Config{}
	cfg.Alerting.Enabled = true
	cfg.Alerting.Channels = []string{"alerts"}
	if locker != nil {
		cfg.Scheduler.AdvisoryLockKey = 1
	}

	stores := &memoryStores{}
	notifier := &memoryNotifier{}
	svc := New(cfg, nil, priceFeed, crossover, nil, Stores{
		Observations: stores,
		FeedStates:   stores,
		Decisions:    stores,
		Locker:       locker,
	}, notifier, zerolog.Nop())

	return svc, upstream, stores, notifier
}

func TestPipelineConfirmsRisingCrossover(t *testing.T) {
	svc, upstream, stores, notifier := testPipeline(t, nil)
	ctx := context.Background()

	// Slot 0: first observation, moving average still warming up.
	if err := svc.ProcessSlot(ctx, slotBase); err != nil {
		t.Fatalf("slot 0 should succeed: %v", err)
	}
	if len(stores.decisions) != 0 {
		t.Fatalf("no decision expected while warming up, got %d", len(stores.decisions))
	}

	// Slot 1: price rises above the average, the crossover arms.
	upstream.Set(fixedpoint.FromInt(110))
	if err := svc.ProcessSlot(ctx, slotBase.Add(24*time.Hour)); err != nil {
		t.Fatalf("slot 1 should succeed: %v", err)
	}
	if len(stores.decisions) != 0 {
		t.Fatalf("arming must not record a decision, got %d", len(stores.decisions))
	}

	// Slot 2: still above the average inside the window, the flip confirms.
	upstream.Set(fixedpoint.FromInt(120))
	if err := svc.ProcessSlot(ctx, slotBase.Add(48*time.Hour)); err != nil {
		t.Fatalf("slot 2 should succeed: %v", err)
	}

	if len(stores.observations) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(stores.observations))
	}
	if len(stores.feedStates) != 3 {
		t.Fatalf("expected 3 feed state saves, got %d", len(stores.feedStates))
	}
	if len(stores.decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(stores.decisions))
	}
	if !stores.decisions[0].Bullish {
		t.Fatal("expected a bullish decision")
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.notes))
	}
	if notifier.notes[0].Allocation != 100 {
		t.Fatalf("expected allocation 100, got %d", notifier.notes[0].Allocation)
	}
}

func TestPipelineRepeatSlotIsIdempotent(t *testing.T) {
	svc, _, stores, _ := testPipeline(t, nil)
	ctx := context.Background()

	if err := svc.ProcessSlot(ctx, slotBase); err != nil {
		t.Fatalf("slot should succeed: %v", err)
	}
	// Re-running the same slot is not an error: the poke is simply not due.
	if err := svc.ProcessSlot(ctx, slotBase.Add(time.Hour)); err != nil {
		t.Fatalf("repeat slot should succeed: %v", err)
	}
	if len(stores.observations) != 1 {
		t.Fatalf("repeat slot must not add an observation, got %d", len(stores.observations))
	}
}

func TestPipelineSkipsWhenLockHeldElsewhere(t *testing.T) {
	svc, _, stores, _ := testPipeline(t, deniedLocker{})
	ctx := context.Background()

	if err := svc.ProcessSlot(ctx, slotBase); err != nil {
		t.Fatalf("held lock should not be an error: %v", err)
	}
	if len(stores.observations) != 0 {
		t.Fatalf("slot must be skipped while the lock is held, got %d observations", len(stores.observations))
	}
}
