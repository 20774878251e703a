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
	medianizerABIJSON = `[{"inputs":[],"name":"read","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"}]`
)

var (
	medianizerABI abi.ABI
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(medianizerABIJSON))
	if err != nil {
		panic("failed to parse medianizer ABI: " + err.Error())
	}
	medianizerABI = parsed
}

// MedianizerOptions parameterise the on-chain price reader.
type MedianizerOptions struct {
	RPCURL  string
	Address string
	Timeout time.Duration
}

// Medianizer reads the current median price from a Maker-style medianizer
// contract. The price is bytes32-encoded and already scaled to 1e18.
type Medianizer struct {
	opts   MedianizerOptions
	logger zerolog.Logger
	client lazyClient
}

// NewMedianizer builds a new on-chain price reader.
func NewMedianizer(opts MedianizerOptions, logger zerolog.Logger) *Medianizer {
	return &Medianizer{
		opts:   opts,
		logger: logger.With().Str("component", "medianizer").Logger(),
		client: lazyClient{rpcURL: opts.RPCURL},
	}
}

// ReadPrice calls read() on the medianizer contract.
func (m *Medianizer) ReadPrice(ctx context.Context) (*big.Int, error) {
	if m.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if m.opts.Address == "" {
		return nil, errors.New("medianizer contract address not configured")
	}

	timeout := m.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := m.client.get(ctx)
	if err != nil {
		return nil, err
	}

	addr := common.HexToAddress(m.opts.Address)

	payload, err := medianizerABI.Pack("read")
	if err != nil {
		return nil, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return nil, err
	}

	outputs, err := medianizerABI.Unpack("read", res)
	if err != nil {
		return nil, err
	}

	if len(outputs) != 1 {
		return nil, errors.New("unexpected read response")
	}

	raw, ok := outputs[0].([32]byte)
	if !ok {
		return nil, errors.New("failed to decode read output")
	}

	price := new(big.Int).SetBytes(raw[:])
	if price.Sign() == 0 {
		return nil, errors.New("medianizer returned zero price")
	}

	return price, nil
}

var _ PriceReader = (*Medianizer)(nil)
