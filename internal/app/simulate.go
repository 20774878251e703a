package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/derived"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/feed"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/trigger"
)

// Simulate runs a given price series through an in-memory pipeline, one
// update slot per price, and prints the evolving signals and decisions.
// Nothing touches the database or the network.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if len(opts.Prices) == 0 {
		return errors.New("at least one price must be provided")
	}

	upstream := oracle.NewSequence(opts.Prices)

	start := time.Now().UTC().Truncate(a.Config.Feed.UpdateInterval)
	priceFeed, err := feed.New(a.feedConfig(), upstream, start, a.Logger)
	if err != nil {
		return err
	}

	crossover, band, err := a.newTriggers(priceFeed)
	if err != nil {
		return err
	}

	movingAverage, err := derived.NewMovingAverage(priceFeed, a.Config.Analytics.MovingAverageWindow)
	if err != nil {
		return err
	}
	rsi, err := derived.NewRSI(priceFeed, a.Config.Analytics.RSIPeriod)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Slot (UTC)\tPrice\tMA\tRSI\tBand\tBullish")

	slot := start
	for range opts.Prices {
		point, err := priceFeed.Poke(ctx, slot)
		if err != nil {
			return fmt.Errorf("poke at %s: %w", slot.Format(time.RFC3339), err)
		}

		maCol, rsiCol, bandCol := "-", "-", "-"
		if ma, err := movingAverage.Read(ctx); err == nil {
			maCol = fixedpoint.ToDecimal(ma).StringFixed(6)
		}
		if osc, err := rsi.Read(ctx); err == nil {
			rsiCol = osc.String()
		}
		if allocation, err := band.Allocation(ctx); err == nil {
			bandCol = fmt.Sprintf("%d%%", allocation)
		} else if errors.Is(err, trigger.ErrAmbiguousSignal) {
			bandCol = "ambiguous"
		}

		if err := crossover.ConfirmTrigger(ctx, slot); err != nil {
			if errors.Is(err, trigger.ErrWindowNotOpen) {
				_ = crossover.InitialTrigger(ctx, slot)
			}
		}

		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%t\n",
			slot.Format(time.RFC3339),
			fixedpoint.ToDecimal(point.Value).StringFixed(6),
			maCol,
			rsiCol,
			bandCol,
			crossover.IsBullish(),
		)

		slot = slot.Add(a.Config.Feed.UpdateInterval)
	}

	return writer.Flush()
}
