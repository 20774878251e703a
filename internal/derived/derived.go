// Package derived computes scalar signals over stored price history. Every
// variant is stateless between calls: each Read recomputes from the
// underlying feed or oracles.
package derived

import (
	"context"
	"math/big"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/feed"
)

// Oracle produces a scalar signal. Price-shaped signals are 1e18-scaled;
// the RSI oscillator is a plain integer in [0,100].
type Oracle interface {
	Read(ctx context.Context) (*big.Int, error)
}

// HistoryReader is the read side of a price feed.
type HistoryReader interface {
	Read(count int) ([]feed.PricePoint, error)
}

// LastValue reports the most recent stored observation.
type LastValue struct {
	history HistoryReader
}

// NewLastValue builds a last-value oracle.
func NewLastValue(history HistoryReader) *LastValue {
	return &LastValue{history: history}
}

// Read returns the newest stored value.
func (o *LastValue) Read(ctx context.Context) (*big.Int, error) {
	points, err := o.history.Read(1)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(points[0].Value), nil
}

var _ Oracle = (*LastValue)(nil)
