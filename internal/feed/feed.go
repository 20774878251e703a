package feed

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
)

var (
	// ErrTooSoon rejects a poke before the scheduled slot is due.
	ErrTooSoon = errors.New("feed: update interval has not elapsed")
	// ErrInsufficientHistory rejects a read wider than the stored history.
	ErrInsufficientHistory = errors.New("feed: not enough data points")
)

// Config parameterises a price feed. All fields are immutable after
// construction.
type Config struct {
	// UpdateInterval is the fixed cadence between accepted pokes.
	UpdateInterval time.Duration
	// MaxDataPoints bounds the stored history.
	MaxDataPoints int
	// Description is an opaque label carried into logs and storage.
	Description string
	// InterpolationThreshold is how overdue a poke may be before the
	// recorded value is linearized against the previous observation.
	InterpolationThreshold time.Duration
}

// Feed owns an append-only, capacity-bounded history of price observations
// with a fixed-grid admission gate. It is the single writer of its series;
// derived oracles hold only the read side.
type Feed struct {
	cfg      Config
	upstream oracle.PriceReader
	series   *series
	logger   zerolog.Logger

	// nextEarliestUpdate advances by exactly UpdateInterval per accepted
	// poke, regardless of wall-clock drift.
	nextEarliestUpdate time.Time
}

// State is the persisted layout of a feed: the stored values oldest first
// plus the schedule scalar. Timestamps are reconstructed on the fixed grid.
type State struct {
	Values             []*big.Int
	NextEarliestUpdate time.Time
}

// New builds an empty feed whose first poke becomes due at firstUpdate.
func New(cfg Config, upstream oracle.PriceReader, firstUpdate time.Time, logger zerolog.Logger) (*Feed, error) {
	if cfg.UpdateInterval <= 0 {
		return nil, fmt.Errorf("feed: update interval must be positive")
	}
	if cfg.MaxDataPoints <= 0 {
		return nil, fmt.Errorf("feed: max data points must be positive")
	}
	return &Feed{
		cfg:                cfg,
		upstream:           upstream,
		series:             newSeries(cfg.MaxDataPoints),
		logger:             logger.With().Str("component", "feed").Str("feed", cfg.Description).Logger(),
		nextEarliestUpdate: firstUpdate.UTC(),
	}, nil
}

// Restore rebuilds a feed from its persisted state so the admission and
// linearization schedule resumes exactly where it left off. The point k
// slots back from the newest is assigned timestamp
// nextEarliestUpdate - (k+1) * updateInterval.
func Restore(cfg Config, upstream oracle.PriceReader, state State, logger zerolog.Logger) (*Feed, error) {
	f, err := New(cfg, upstream, state.NextEarliestUpdate, logger)
	if err != nil {
		return nil, err
	}
	n := len(state.Values)
	for i, v := range state.Values {
		slot := state.NextEarliestUpdate.Add(-time.Duration(n-i) * cfg.UpdateInterval)
		f.series.append(PricePoint{Value: new(big.Int).Set(v), Timestamp: slot})
	}
	return f, nil
}

// Poke appends one new observation. It fails with ErrTooSoon before the
// scheduled slot; on success the schedule advances by exactly one interval.
// A rejected poke leaves the feed untouched.
func (f *Feed) Poke(ctx context.Context, now time.Time) (PricePoint, error) {
	now = now.UTC()
	if now.Before(f.nextEarliestUpdate) {
		return PricePoint{}, ErrTooSoon
	}

	value, err := f.next(ctx, now)
	if err != nil {
		return PricePoint{}, err
	}

	point := PricePoint{Value: value, Timestamp: now}
	f.series.append(point)
	f.nextEarliestUpdate = f.nextEarliestUpdate.Add(f.cfg.UpdateInterval)

	f.logger.Debug().
		Time("slot", now).
		Time("next_earliest_update", f.nextEarliestUpdate).
		Str("value", value.String()).
		Msg("observation recorded")

	return point, nil
}

// Read returns the most recent count points, newest first.
func (f *Feed) Read(count int) ([]PricePoint, error) {
	return f.series.read(count)
}

// Len reports the number of stored points.
func (f *Feed) Len() int {
	return f.series.len()
}

// Description returns the feed's opaque label.
func (f *Feed) Description() string {
	return f.cfg.Description
}

// NextEarliestUpdate reports when the next poke becomes admissible.
func (f *Feed) NextEarliestUpdate() time.Time {
	return f.nextEarliestUpdate
}

// Snapshot captures the persisted layout of the feed.
func (f *Feed) Snapshot() State {
	return State{
		Values:             f.series.values(),
		NextEarliestUpdate: f.nextEarliestUpdate,
	}
}
