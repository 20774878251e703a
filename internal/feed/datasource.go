package feed

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
)

// next computes the observation a poke would record at the logical time
// now. It reads the upstream raw price and, when the poke is overdue by
// more than the interpolation threshold, linearizes the raw price against
// the previous stored observation to damp the discontinuity of a stale gap.
func (f *Feed) next(ctx context.Context, now time.Time) (*big.Int, error) {
	raw, err := f.upstream.ReadPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("read upstream price: %w", err)
	}

	if f.series.len() == 0 {
		return raw, nil
	}

	sinceExpected := now.Sub(f.nextEarliestUpdate)
	if sinceExpected <= f.cfg.InterpolationThreshold {
		return raw, nil
	}

	return f.linearize(raw, now, sinceExpected)
}

// CurrentValue exposes the same computation read-only, without mutating
// the series or the schedule.
func (f *Feed) CurrentValue(ctx context.Context, now time.Time) (*big.Int, error) {
	return f.next(ctx, now.UTC())
}

// linearize blends the previous stored value and the raw observation
// proportionally to how overdue the update is:
//
//	floor((raw*interval + prev*sinceExpected) / sinceActual)
//
// with all durations in whole seconds. Rounding mode is floor; do not
// change it, downstream consumers depend on the exact quotient.
func (f *Feed) linearize(raw *big.Int, now time.Time, sinceExpected time.Duration) (*big.Int, error) {
	prev := f.series.last()
	sinceActual := now.Sub(prev.Timestamp)
	if sinceActual <= 0 {
		return nil, fixedpoint.ErrDivisionByZero
	}

	interval := seconds(f.cfg.UpdateInterval)
	expected := seconds(sinceExpected)
	actual := seconds(sinceActual)

	weightedRaw, err := fixedpoint.Mul(raw, interval)
	if err != nil {
		return nil, err
	}
	weightedPrev, err := fixedpoint.Mul(prev.Value, expected)
	if err != nil {
		return nil, err
	}
	sum, err := fixedpoint.Add(weightedRaw, weightedPrev)
	if err != nil {
		return nil, err
	}

	value, err := fixedpoint.Div(sum, actual)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Dur("since_expected", sinceExpected).
		Dur("since_actual", sinceActual).
		Str("raw", raw.String()).
		Str("linearized", value.String()).
		Msg("late poke linearized")

	return value, nil
}

func seconds(d time.Duration) *big.Int {
	return big.NewInt(int64(d / time.Second))
}
