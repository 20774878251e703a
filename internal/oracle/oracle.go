package oracle

import (
	"context"
	"math/big"
)

// PriceReader retrieves the current raw upstream price, scaled to 1e18.
// The concrete reader may be a Maker-style medianizer, a compounding-token
// exchange rate, or a fixed value for simulation.
type PriceReader interface {
	ReadPrice(ctx context.Context) (*big.Int, error)
}
