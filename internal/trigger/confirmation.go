// Package trigger converts derived-oracle signals into allocation
// decisions. The confirmation machine debounces moving-average crossovers
// behind a two-phase arm/confirm protocol; the band machine maps a bounded
// oscillator directly to an allocation percentage.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/derived"
)

var (
	// ErrInvalidWindow rejects construction with min > max confirmation time.
	ErrInvalidWindow = errors.New("trigger: confirmation min time exceeds max time")
	// ErrNotEnoughTimePassed rejects re-arming before the minimum window.
	ErrNotEnoughTimePassed = errors.New("trigger: not enough time passed since last initial trigger")
	// ErrNoCrossover rejects arming when the signal restates the current state.
	ErrNoCrossover = errors.New("trigger: no crossover detected")
	// ErrWindowNotOpen rejects confirmation outside the [min,max] window.
	ErrWindowNotOpen = errors.New("trigger: confirmation window not open")
	// ErrCrossoverReversed rejects confirmation after the signal reverted.
	ErrCrossoverReversed = errors.New("trigger: crossover reversed before confirmation")
)

// ConfirmationConfig parameterises the two-phase crossover machine. All
// fields are immutable after construction.
type ConfirmationConfig struct {
	// Reference is the price-shaped signal being compared, typically the
	// feed's last value.
	Reference derived.Oracle
	// Signal is the level being crossed, typically a moving average.
	Signal derived.Oracle
	// ConfirmationMinTime and ConfirmationMaxTime bound the elapsed time
	// between an initial trigger and its confirmation, inclusive.
	ConfirmationMinTime time.Duration
	ConfirmationMaxTime time.Duration
	// InitialBullish seeds the confirmed allocation flag.
	InitialBullish bool
}

// Confirmation is the two-phase crossover state machine. A crossover is
// first armed by InitialTrigger and only becomes the confirmed allocation
// once ConfirmTrigger succeeds inside the confirmation window. The pending
// direction is implicit: it is always the opposite of the confirmed state.
type Confirmation struct {
	cfg    ConfirmationConfig
	logger zerolog.Logger

	bullish bool
	// pending is set by a successful arm and consumed by a successful
	// confirmation. lastInitial outlives it to rate-limit re-arming.
	pending     bool
	lastInitial time.Time
}

// NewConfirmation builds a crossover trigger.
func NewConfirmation(cfg ConfirmationConfig, logger zerolog.Logger) (*Confirmation, error) {
	if cfg.ConfirmationMinTime > cfg.ConfirmationMaxTime {
		return nil, ErrInvalidWindow
	}
	return &Confirmation{
		cfg:     cfg,
		logger:  logger.With().Str("component", "crossover_trigger").Logger(),
		bullish: cfg.InitialBullish,
	}, nil
}

// InitialTrigger arms a pending flip. It fails with ErrNotEnoughTimePassed
// while a previous arm could still be confirmed, and with ErrNoCrossover
// unless the reference has crossed to the opposite side of the signal. On
// success only the pending arm is recorded; the confirmed allocation is
// untouched.
func (c *Confirmation) InitialTrigger(ctx context.Context, now time.Time) error {
	if !c.lastInitial.IsZero() && now.Sub(c.lastInitial) < c.cfg.ConfirmationMinTime {
		return ErrNotEnoughTimePassed
	}

	crossed, err := c.crossed(ctx)
	if err != nil {
		return err
	}
	if !crossed {
		return ErrNoCrossover
	}

	c.pending = true
	c.lastInitial = now.UTC()
	c.logger.Info().
		Time("armed_at", c.lastInitial).
		Bool("pending_bullish", !c.bullish).
		Msg("crossover armed")
	return nil
}

// ConfirmTrigger finalises a pending flip. It fails with ErrWindowNotOpen
// when no arm is pending or outside [min,max] elapsed since the arm, and
// with ErrCrossoverReversed if the crossover no longer holds. On success the
// confirmed allocation flips and the arm is consumed: flipping again
// requires a fresh InitialTrigger.
func (c *Confirmation) ConfirmTrigger(ctx context.Context, now time.Time) error {
	if !c.pending {
		return ErrWindowNotOpen
	}
	elapsed := now.Sub(c.lastInitial)
	if elapsed < c.cfg.ConfirmationMinTime || elapsed > c.cfg.ConfirmationMaxTime {
		return ErrWindowNotOpen
	}

	crossed, err := c.crossed(ctx)
	if err != nil {
		return err
	}
	if !crossed {
		return ErrCrossoverReversed
	}

	c.bullish = !c.bullish
	c.pending = false
	c.logger.Info().
		Time("confirmed_at", now.UTC()).
		Bool("bullish", c.bullish).
		Msg("crossover confirmed")
	return nil
}

// IsBullish reads the confirmed allocation flag.
func (c *Confirmation) IsBullish() bool {
	return c.bullish
}

// crossed reports whether the reference currently sits strictly on the
// opposite side of the signal from the confirmed state: above while
// bearish, below while bullish. Equality is never a crossover.
func (c *Confirmation) crossed(ctx context.Context) (bool, error) {
	reference, err := c.cfg.Reference.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("read reference: %w", err)
	}
	signal, err := c.cfg.Signal.Read(ctx)
	if err != nil {
		return false, fmt.Errorf("read signal: %w", err)
	}

	if c.bullish {
		return reference.Cmp(signal) < 0, nil
	}
	return reference.Cmp(signal) > 0, nil
}

// Compare is exported for observability: it returns the current reference
// and signal values without touching trigger state.
func (c *Confirmation) Compare(ctx context.Context) (reference, signal *big.Int, err error) {
	reference, err = c.cfg.Reference.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	signal, err = c.cfg.Signal.Read(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reference, signal, nil
}
