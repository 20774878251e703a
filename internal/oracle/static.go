package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
)

// Static serves a fixed price, updatable between reads. Used by the
// simulate command and in tests.
type Static struct {
	mux   sync.Mutex
	value *big.Int
}

// NewStatic builds a fixed-value reader.
func NewStatic(value *big.Int) *Static {
	return &Static{value: new(big.Int).Set(value)}
}

// Set replaces the served price.
func (s *Static) Set(value *big.Int) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.value = new(big.Int).Set(value)
}

// ReadPrice returns the current fixed price.
func (s *Static) ReadPrice(ctx context.Context) (*big.Int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return new(big.Int).Set(s.value), nil
}

// Sequence serves a predefined series of prices, one per read.
type Sequence struct {
	mux    sync.Mutex
	values []*big.Int
	next   int
}

// NewSequence builds a reader that walks the given values in order.
func NewSequence(values []*big.Int) *Sequence {
	copied := make([]*big.Int, len(values))
	for i, v := range values {
		copied[i] = new(big.Int).Set(v)
	}
	return &Sequence{values: copied}
}

// ReadPrice returns the next value in the sequence.
func (s *Sequence) ReadPrice(ctx context.Context) (*big.Int, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.next >= len(s.values) {
		return nil, errors.New("price sequence exhausted")
	}
	v := s.values[s.next]
	s.next++
	return new(big.Int).Set(v), nil
}

var _ PriceReader = (*Static)(nil)
var _ PriceReader = (*Sequence)(nil)
