package oracle

import (
	"context"
	"math/big"
	"testing"

	"github.com/rs/zerolog"
)

func TestMedianizerMissingConfig(t *testing.T) {
	m := NewMedianizer(MedianizerOptions{}, zerolog.Nop())
	if _, err := m.ReadPrice(context.Background()); err == nil {
		t.Fatal("missing RPC URL should be an error")
	}

	m = NewMedianizer(MedianizerOptions{RPCURL: "http://localhost"}, zerolog.Nop())
	if _, err := m.ReadPrice(context.Background()); err == nil {
		t.Fatal("missing contract address should be an error")
	}
}

func TestExchangeRateReaderMissingConfig(t *testing.T) {
	r := NewExchangeRateReader(ExchangeRateOptions{}, zerolog.Nop())
	if _, err := r.ReadPrice(context.Background()); err == nil {
		t.Fatal("missing RPC URL should be an error")
	}

	r = NewExchangeRateReader(ExchangeRateOptions{RPCURL: "http://localhost"}, zerolog.Nop())
	if _, err := r.ReadPrice(context.Background()); err == nil {
		t.Fatal("missing contract address should be an error")
	}
}

func TestStaticIsolation(t *testing.T) {
	seed := big.NewInt(100)
	s := NewStatic(seed)
	seed.SetInt64(999)

	got, err := s.ReadPrice(context.Background())
	if err != nil {
		t.Fatalf("ReadPrice should succeed: %v", err)
	}
	if got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("stored value must be a copy, got %s", got)
	}

	got.SetInt64(5)
	again, _ := s.ReadPrice(context.Background())
	if again.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("returned value must be a copy, got %s", again)
	}
}

func TestSequenceExhausts(t *testing.T) {
	s := NewSequence([]*big.Int{big.NewInt(1), big.NewInt(2)})
	ctx := context.Background()

	for _, want := range []int64{1, 2} {
		got, err := s.ReadPrice(ctx)
		if err != nil {
			t.Fatalf("ReadPrice should succeed: %v", err)
		}
		if got.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("expected %d, got %s", want, got)
		}
	}

	if _, err := s.ReadPrice(ctx); err == nil {
		t.Fatal("exhausted sequence should be an error")
	}
}
