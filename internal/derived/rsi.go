package derived

import (
	"context"
	"fmt"
	"math/big"
)

var oneHundred = big.NewInt(100)

// RSI computes the Relative Strength Index over the last period successive
// differences, as a plain integer in [0,100].
type RSI struct {
	history HistoryReader
	period  int
}

// NewRSI builds an RSI oracle. Reading requires period+1 stored points.
func NewRSI(history HistoryReader, period int) (*RSI, error) {
	if period <= 0 {
		return nil, fmt.Errorf("derived: rsi period must be positive, got %d", period)
	}
	return &RSI{history: history, period: period}, nil
}

// Read returns the current RSI. With gains and no losses the index is 100;
// with no gains it is 0; otherwise floor(100*gain/(gain+loss)), which is
// the floored form of 100 - 100/(1 + avgGain/avgLoss).
func (o *RSI) Read(ctx context.Context) (*big.Int, error) {
	points, err := o.history.Read(o.period + 1)
	if err != nil {
		return nil, err
	}

	gain := big.NewInt(0)
	loss := big.NewInt(0)
	for i := 0; i < o.period; i++ {
		// points are newest first, so points[i] succeeds points[i+1].
		diff := new(big.Int).Sub(points[i].Value, points[i+1].Value)
		if diff.Sign() > 0 {
			gain.Add(gain, diff)
		} else {
			loss.Sub(loss, diff)
		}
	}

	if gain.Sign() == 0 {
		return big.NewInt(0), nil
	}

	total := new(big.Int).Add(gain, loss)
	rsi := new(big.Int).Mul(oneHundred, gain)
	rsi.Quo(rsi, total)
	return rsi, nil
}

var _ Oracle = (*RSI)(nil)
