package feed

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
)

var baseTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		UpdateInterval:         24 * time.Hour,
		MaxDataPoints:          5,
		Description:            "test_feed",
		InterpolationThreshold: 6 * time.Hour,
	}
}

func newTestFeed(t *testing.T, upstream oracle.PriceReader) *Feed {
	t.Helper()
	f, err := New(testConfig(), upstream, baseTime, zerolog.Nop())
	if err != nil {
		t.Fatalf("New should succeed: %v", err)
	}
	return f
}

func TestPokeTooSoon(t *testing.T) {
	f := newTestFeed(t, oracle.NewStatic(fixedpoint.FromInt(100)))

	if _, err := f.Poke(context.Background(), baseTime.Add(-time.Second)); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon before first slot, got %v", err)
	}

	if _, err := f.Poke(context.Background(), baseTime); err != nil {
		t.Fatalf("poke at due time should succeed: %v", err)
	}

	if _, err := f.Poke(context.Background(), baseTime.Add(time.Hour)); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon one hour after accepted poke, got %v", err)
	}
}

func TestFixedGridSchedule(t *testing.T) {
	f := newTestFeed(t, oracle.NewStatic(fixedpoint.FromInt(100)))
	ctx := context.Background()

	// A poke arriving twelve hours late must still advance the schedule
	// by exactly one interval from the scheduled slot.
	if _, err := f.Poke(ctx, baseTime.Add(12*time.Hour)); err != nil {
		t.Fatalf("late poke should succeed: %v", err)
	}
	want := baseTime.Add(24 * time.Hour)
	if !f.NextEarliestUpdate().Equal(want) {
		t.Fatalf("expected next update %s, got %s", want, f.NextEarliestUpdate())
	}

	if _, err := f.Poke(ctx, baseTime.Add(30*time.Hour)); err != nil {
		t.Fatalf("second poke should succeed: %v", err)
	}
	want = baseTime.Add(48 * time.Hour)
	if !f.NextEarliestUpdate().Equal(want) {
		t.Fatalf("expected next update %s, got %s", want, f.NextEarliestUpdate())
	}
}

func TestPokeOnTimeRecordsRawPrice(t *testing.T) {
	upstream := oracle.NewStatic(fixedpoint.FromInt(100))
	f := newTestFeed(t, upstream)
	ctx := context.Background()

	if _, err := f.Poke(ctx, baseTime); err != nil {
		t.Fatalf("first poke should succeed: %v", err)
	}

	upstream.Set(fixedpoint.FromInt(200))
	point, err := f.Poke(ctx, baseTime.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("on-time poke should succeed: %v", err)
	}
	if point.Value.Cmp(fixedpoint.FromInt(200)) != 0 {
		t.Fatalf("on-time poke must record the raw price, got %s", point.Value)
	}
}

func TestLatePokeWithinThresholdRecordsRawPrice(t *testing.T) {
	upstream := oracle.NewStatic(fixedpoint.FromInt(100))
	f := newTestFeed(t, upstream)
	ctx := context.Background()

	if _, err := f.Poke(ctx, baseTime); err != nil {
		t.Fatalf("first poke should succeed: %v", err)
	}

	upstream.Set(fixedpoint.FromInt(200))
	point, err := f.Poke(ctx, baseTime.Add(24*time.Hour+6*time.Hour))
	if err != nil {
		t.Fatalf("poke at threshold should succeed: %v", err)
	}
	if point.Value.Cmp(fixedpoint.FromInt(200)) != 0 {
		t.Fatalf("poke within threshold must record the raw price, got %s", point.Value)
	}
}

func TestLatePokeLinearizes(t *testing.T) {
	upstream := oracle.NewStatic(fixedpoint.FromInt(100))
	f := newTestFeed(t, upstream)
	ctx := context.Background()

	if _, err := f.Poke(ctx, baseTime); err != nil {
		t.Fatalf("first poke should succeed: %v", err)
	}
	if _, err := f.Poke(ctx, baseTime.Add(24*time.Hour)); err != nil {
		t.Fatalf("second poke should succeed: %v", err)
	}

	// Third poke arrives twelve hours past its slot at t+48h. With
	// interval 24h, prev at t+24h:
	//   floor((200*86400 + 100*43200) / 129600) = 166.666...
	upstream.Set(fixedpoint.FromInt(200))
	point, err := f.Poke(ctx, baseTime.Add(60*time.Hour))
	if err != nil {
		t.Fatalf("late poke should succeed: %v", err)
	}

	want, _ := new(big.Int).SetString("166666666666666666666", 10)
	if point.Value.Cmp(want) != 0 {
		t.Fatalf("expected linearized value %s, got %s", want, point.Value)
	}
	if point.Value.Cmp(fixedpoint.FromInt(100)) <= 0 || point.Value.Cmp(fixedpoint.FromInt(200)) >= 0 {
		t.Fatalf("linearized value must sit strictly between prev and raw, got %s", point.Value)
	}
}

func TestReadOrderingAndEviction(t *testing.T) {
	upstream := oracle.NewStatic(fixedpoint.FromInt(1))
	f := newTestFeed(t, upstream)
	ctx := context.Background()

	// max is 5; record 7 points with increasing values.
	for i := 0; i < 7; i++ {
		upstream.Set(fixedpoint.FromInt(int64(i + 1)))
		if _, err := f.Poke(ctx, baseTime.Add(time.Duration(i)*24*time.Hour)); err != nil {
			t.Fatalf("poke %d should succeed: %v", i, err)
		}
	}

	if f.Len() != 5 {
		t.Fatalf("expected 5 stored points after eviction, got %d", f.Len())
	}

	points, err := f.Read(3)
	if err != nil {
		t.Fatalf("Read(3) should succeed: %v", err)
	}
	for i, wantUnits := range []int64{7, 6, 5} {
		if points[i].Value.Cmp(fixedpoint.FromInt(wantUnits)) != 0 {
			t.Fatalf("expected point %d to be %d units, got %s", i, wantUnits, points[i].Value)
		}
	}

	if _, err := f.Read(6); !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestRejectedPokeLeavesStateUnchanged(t *testing.T) {
	upstream := oracle.NewStatic(fixedpoint.FromInt(100))
	f := newTestFeed(t, upstream)
	ctx := context.Background()

	if _, err := f.Poke(ctx, baseTime); err != nil {
		t.Fatalf("first poke should succeed: %v", err)
	}
	before := f.NextEarliestUpdate()

	if _, err := f.Poke(ctx, baseTime.Add(time.Hour)); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon, got %v", err)
	}
	if f.Len() != 1 {
		t.Fatalf("rejected poke must not append, got %d points", f.Len())
	}
	if !f.NextEarliestUpdate().Equal(before) {
		t.Fatalf("rejected poke must not advance the schedule")
	}
}

func TestSnapshotRestore(t *testing.T) {
	upstream := oracle.NewStatic(fixedpoint.FromInt(100))
	f := newTestFeed(t, upstream)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		upstream.Set(fixedpoint.FromInt(int64(100 + i)))
		if _, err := f.Poke(ctx, baseTime.Add(time.Duration(i)*24*time.Hour)); err != nil {
			t.Fatalf("poke %d should succeed: %v", i, err)
		}
	}

	restored, err := Restore(testConfig(), upstream, f.Snapshot(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Restore should succeed: %v", err)
	}

	if restored.Len() != f.Len() {
		t.Fatalf("restored length %d, want %d", restored.Len(), f.Len())
	}
	if !restored.NextEarliestUpdate().Equal(f.NextEarliestUpdate()) {
		t.Fatalf("restored schedule %s, want %s", restored.NextEarliestUpdate(), f.NextEarliestUpdate())
	}

	want, _ := f.Read(3)
	got, _ := restored.Read(3)
	for i := range want {
		if got[i].Value.Cmp(want[i].Value) != 0 {
			t.Fatalf("restored point %d value %s, want %s", i, got[i].Value, want[i].Value)
		}
	}

	// The restored feed resumes the admission gate where it left off.
	if _, err := restored.Poke(ctx, baseTime.Add(50*time.Hour)); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon before resumed slot, got %v", err)
	}
	if _, err := restored.Poke(ctx, baseTime.Add(72*time.Hour)); err != nil {
		t.Fatalf("poke at resumed slot should succeed: %v", err)
	}
}
