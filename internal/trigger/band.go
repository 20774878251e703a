package trigger

import (
	"context"
	"errors"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/derived"
)

var (
	// ErrInvalidBounds rejects construction with lower bound above upper.
	ErrInvalidBounds = errors.New("trigger: lower bound exceeds upper bound")
	// ErrInvalidInitialAllocation rejects an initial allocation outside {0,100}.
	ErrInvalidInitialAllocation = errors.New("trigger: initial allocation must be 0 or 100")
	// ErrAmbiguousSignal rejects a strict band read inside the bounds.
	ErrAmbiguousSignal = errors.New("trigger: oscillator inside band, signal inconclusive")
)

// Band maps a bounded oscillator (RSI) directly to a base-asset allocation
// percentage. One machine covers both variants: the hysteretic trending
// trigger remembers its last decision inside the band, the strict midline
// trigger refuses to answer there.
type Band struct {
	oscillator derived.Oracle
	lower      *big.Int
	upper      *big.Int
	hysteretic bool
	logger     zerolog.Logger

	// allocation is only meaningful for the hysteretic variant.
	allocation int64
}

// NewTrending builds the hysteretic band trigger. Inside the band the last
// decision stands; only crossing the opposite bound flips it.
func NewTrending(oscillator derived.Oracle, lower, upper int64, initialAllocation int64, logger zerolog.Logger) (*Band, error) {
	if lower > upper {
		return nil, ErrInvalidBounds
	}
	if initialAllocation != 0 && initialAllocation != 100 {
		return nil, ErrInvalidInitialAllocation
	}
	return &Band{
		oscillator: oscillator,
		lower:      big.NewInt(lower),
		upper:      big.NewInt(upper),
		hysteretic: true,
		allocation: initialAllocation,
		logger:     logger.With().Str("component", "trending_trigger").Logger(),
	}, nil
}

// NewMidlineCross builds the strict band trigger. Inside the band every
// read fails with ErrAmbiguousSignal; callers never receive a fallback.
func NewMidlineCross(oscillator derived.Oracle, lower, upper int64, logger zerolog.Logger) (*Band, error) {
	if lower > upper {
		return nil, ErrInvalidBounds
	}
	return &Band{
		oscillator: oscillator,
		lower:      big.NewInt(lower),
		upper:      big.NewInt(upper),
		logger:     logger.With().Str("component", "midline_trigger").Logger(),
	}, nil
}

// Allocation returns 100 when the oscillator is at or above the upper
// bound and 0 at or below the lower bound. Inside the band the hysteretic
// variant re-persists and returns its unchanged state; the strict variant
// fails with ErrAmbiguousSignal.
func (b *Band) Allocation(ctx context.Context) (int64, error) {
	value, err := b.oscillator.Read(ctx)
	if err != nil {
		return 0, err
	}

	switch {
	case value.Cmp(b.upper) >= 0:
		return b.decide(100, value), nil
	case value.Cmp(b.lower) <= 0:
		return b.decide(0, value), nil
	case b.hysteretic:
		// No flip inside the band: the unchanged value is the decision.
		return b.decide(b.allocation, value), nil
	default:
		return 0, ErrAmbiguousSignal
	}
}

func (b *Band) decide(allocation int64, value *big.Int) int64 {
	if b.hysteretic {
		b.allocation = allocation
	}
	b.logger.Debug().
		Str("oscillator", value.String()).
		Int64("allocation", allocation).
		Msg("band allocation evaluated")
	return allocation
}
