package oracle

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

const (
	exchangeRateABIJSON = `[{"inputs":[],"name":"exchangeRateStored","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`
)

var (
	exchangeRateABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(exchangeRateABIJSON))
	if err != nil {
		panic("failed to parse exchange rate ABI: " + err.Error())
	}
	exchangeRateABI = parsed
}

// ExchangeRateOptions parameterise the compounding-token rate reader.
type ExchangeRateOptions struct {
	RPCURL  string
	Address string
	Timeout time.Duration
}

// ExchangeRateReader reads exchangeRateStored() from a compounding token.
// The rate is scaled by the token's own full unit, not by 1e18; the derived
// oracle that consumes it owns the rescaling.
type ExchangeRateReader struct {
	opts   ExchangeRateOptions
	logger zerolog.Logger
	client lazyClient
}

// NewExchangeRateReader builds a new compounding-token rate reader.
func NewExchangeRateReader(opts ExchangeRateOptions, logger zerolog.Logger) *ExchangeRateReader {
	return &ExchangeRateReader{
		opts:   opts,
		logger: logger.With().Str("component", "exchange_rate_reader").Logger(),
		client: lazyClient{rpcURL: opts.RPCURL},
	}
}

// ReadPrice calls exchangeRateStored() on the token contract.
func (r *ExchangeRateReader) ReadPrice(ctx context.Context) (*big.Int, error) {
	if r.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if r.opts.Address == "" {
		return nil, errors.New("token contract address not configured")
	}

	timeout := r.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := r.client.get(ctx)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(r.opts.Address)

	payload, err := exchangeRateABI.Pack("exchangeRateStored")
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := exchangeRateABI.Unpack("exchangeRateStored", res)
	if err != nil {
		return nil, err
	}

	if len(outputs) != 1 {
		return nil, errors.New("unexpected exchangeRateStored response")
	}

	rate, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, errors.New("failed to decode exchangeRateStored output")
	}

	return rate, nil
}

var _ PriceReader = (*ExchangeRateReader)(nil)
