package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints recent observations and allocation decisions.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show observations")
	}
	if closeStore != nil {
		defer closeStore()
	}

	observations, err := store.ListRecentObservations(ctx, a.Config.Feed.Description, opts.Limit)
	if err != nil {
		return err
	}
	if len(observations) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Slot (UTC)\tFeed\tPrice")
	for _, obs := range observations {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			obs.SlotTS.UTC().Format(time.RFC3339),
			obs.Feed,
			obs.Price.StringFixed(6),
		)
	}
	writer.Flush()

	decisions, err := store.ListRecentDecisions(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(decisions) == 0 {
		return nil
	}

	fmt.Fprintln(os.Stdout)
	writer = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Decided (UTC)\tDirection\tPrice\tMoving average")
	for _, d := range decisions {
		direction := "bearish"
		if d.Bullish {
			direction = "bullish"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\n",
			d.DecidedAt.UTC().Format(time.RFC3339),
			direction,
			d.Price.StringFixed(6),
			d.Signal.StringFixed(6),
		)
	}
	writer.Flush()
	return nil
}
