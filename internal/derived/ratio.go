package derived

import (
	"context"
	"math/big"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
)

// Ratio reports the 1e18-scaled quotient of two price oracles.
type Ratio struct {
	base  Oracle
	quote Oracle
}

// NewRatio builds a ratio oracle over a base and quote source.
func NewRatio(base, quote Oracle) *Ratio {
	return &Ratio{base: base, quote: quote}
}

// Read returns floor(base*UNIT/quote). A zero quote fails with
// fixedpoint.ErrDivisionByZero.
func (o *Ratio) Read(ctx context.Context) (*big.Int, error) {
	base, err := o.base.Read(ctx)
	if err != nil {
		return nil, err
	}
	quote, err := o.quote.Read(ctx)
	if err != nil {
		return nil, err
	}

	scaled, err := fixedpoint.Mul(base, fixedpoint.Unit)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Div(scaled, quote)
}

var _ Oracle = (*Ratio)(nil)
