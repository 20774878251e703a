package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestTrendingHysteresis(t *testing.T) {
	oscillator := newSettable(50)
	b, err := NewTrending(oscillator, 40, 60, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTrending should succeed: %v", err)
	}
	ctx := context.Background()

	// Inside the band the initial allocation stands.
	steps := []struct {
		rsi  int64
		want int64
	}{
		{50, 0},   // inside, keep initial
		{60, 100}, // at upper bound, flip up
		{55, 100}, // back inside, decision sticks
		{41, 100}, // still inside, decision sticks
		{40, 0},   // at lower bound, flip down
		{45, 0},   // inside again, sticks
		{70, 100}, // well above, flip up
	}
	for i, step := range steps {
		oscillator.Set(step.rsi)
		got, err := b.Allocation(ctx)
		if err != nil {
			t.Fatalf("step %d: Allocation should succeed: %v", i, err)
		}
		if got != step.want {
			t.Fatalf("step %d: rsi %d allocation %d, want %d", i, step.rsi, got, step.want)
		}
	}
}

func TestMidlineCrossStrictInsideBand(t *testing.T) {
	oscillator := newSettable(50)
	b, err := NewMidlineCross(oscillator, 48, 52, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewMidlineCross should succeed: %v", err)
	}
	ctx := context.Background()

	if _, err := b.Allocation(ctx); !errors.Is(err, ErrAmbiguousSignal) {
		t.Fatalf("expected ErrAmbiguousSignal inside band, got %v", err)
	}

	oscillator.Set(52)
	got, err := b.Allocation(ctx)
	if err != nil {
		t.Fatalf("Allocation at upper bound should succeed: %v", err)
	}
	if got != 100 {
		t.Fatalf("expected 100 at upper bound, got %d", got)
	}

	oscillator.Set(48)
	got, err = b.Allocation(ctx)
	if err != nil {
		t.Fatalf("Allocation at lower bound should succeed: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected 0 at lower bound, got %d", got)
	}

	// Strict variant stays strict: back inside, it refuses again rather
	// than replaying the last answer.
	oscillator.Set(50)
	if _, err := b.Allocation(ctx); !errors.Is(err, ErrAmbiguousSignal) {
		t.Fatalf("expected ErrAmbiguousSignal on re-entry, got %v", err)
	}
}

func TestBandBoundsInclusive(t *testing.T) {
	oscillator := newSettable(60)
	b, err := NewTrending(oscillator, 40, 60, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTrending should succeed: %v", err)
	}
	ctx := context.Background()

	got, err := b.Allocation(ctx)
	if err != nil {
		t.Fatalf("Allocation should succeed: %v", err)
	}
	if got != 100 {
		t.Fatalf("value equal to upper bound must allocate 100, got %d", got)
	}

	oscillator.Set(40)
	got, err = b.Allocation(ctx)
	if err != nil {
		t.Fatalf("Allocation should succeed: %v", err)
	}
	if got != 0 {
		t.Fatalf("value equal to lower bound must allocate 0, got %d", got)
	}
}

func TestBandConstructorValidation(t *testing.T) {
	oscillator := newSettable(50)

	if _, err := NewTrending(oscillator, 60, 40, 0, zerolog.Nop()); !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
	if _, err := NewMidlineCross(oscillator, 60, 40, zerolog.Nop()); !errors.Is(err, ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
	if _, err := NewTrending(oscillator, 40, 60, 50, zerolog.Nop()); !errors.Is(err, ErrInvalidInitialAllocation) {
		t.Fatalf("expected ErrInvalidInitialAllocation, got %v", err)
	}
	if _, err := NewTrending(oscillator, 40, 60, 100, zerolog.Nop()); err != nil {
		t.Fatalf("initial allocation 100 should be accepted: %v", err)
	}
}
