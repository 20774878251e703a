package derived

import (
	"context"
	"fmt"
	"math/big"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
)

// TokenExchangeRate prices a compounding token by combining its underlying
// asset price with the token's on-chain exchange rate.
type TokenExchangeRate struct {
	underlying         Oracle
	rate               oracle.PriceReader
	tokenFullUnit      *big.Int
	underlyingFullUnit *big.Int
}

// NewTokenExchangeRate builds a compounding-token price oracle. Full units
// rescale the externally-scaled exchange rate into 1e18 terms.
func NewTokenExchangeRate(underlying Oracle, rate oracle.PriceReader, tokenFullUnit, underlyingFullUnit *big.Int) (*TokenExchangeRate, error) {
	if tokenFullUnit == nil || tokenFullUnit.Sign() <= 0 {
		return nil, fmt.Errorf("derived: token full unit must be positive")
	}
	if underlyingFullUnit == nil || underlyingFullUnit.Sign() <= 0 {
		return nil, fmt.Errorf("derived: underlying full unit must be positive")
	}
	return &TokenExchangeRate{
		underlying:         underlying,
		rate:               rate,
		tokenFullUnit:      new(big.Int).Set(tokenFullUnit),
		underlyingFullUnit: new(big.Int).Set(underlyingFullUnit),
	}, nil
}

// Read returns the 1e18-scaled token price:
//
//	floor(floor(price * rate * tokenFullUnit / underlyingFullUnit) / UNIT)
//
// The divisions apply in exactly this order. Reversing them changes the
// floored result and breaks compatibility with recorded prices.
func (o *TokenExchangeRate) Read(ctx context.Context) (*big.Int, error) {
	price, err := o.underlying.Read(ctx)
	if err != nil {
		return nil, err
	}
	rate, err := o.rate.ReadPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("read exchange rate: %w", err)
	}

	product, err := fixedpoint.Mul(price, rate)
	if err != nil {
		return nil, err
	}
	product, err = fixedpoint.Mul(product, o.tokenFullUnit)
	if err != nil {
		return nil, err
	}
	product, err = fixedpoint.Div(product, o.underlyingFullUnit)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Div(product, fixedpoint.Unit)
}

var _ Oracle = (*TokenExchangeRate)(nil)
