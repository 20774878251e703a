package derived

import (
	"context"
	"fmt"
	"math/big"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
)

// MovingAverage computes floor(sum of the last N values / N).
type MovingAverage struct {
	history HistoryReader
	window  int
}

// NewMovingAverage builds a simple moving average over the given window.
func NewMovingAverage(history HistoryReader, window int) (*MovingAverage, error) {
	if window <= 0 {
		return nil, fmt.Errorf("derived: moving average window must be positive, got %d", window)
	}
	return &MovingAverage{history: history, window: window}, nil
}

// Read returns the floored average of the most recent window values. It
// fails with feed.ErrInsufficientHistory when fewer points are stored.
func (o *MovingAverage) Read(ctx context.Context) (*big.Int, error) {
	points, err := o.history.Read(o.window)
	if err != nil {
		return nil, err
	}

	sum := big.NewInt(0)
	for _, p := range points {
		sum, err = fixedpoint.Add(sum, p.Value)
		if err != nil {
			return nil, err
		}
	}

	return fixedpoint.Div(sum, big.NewInt(int64(o.window)))
}

var _ Oracle = (*MovingAverage)(nil)
