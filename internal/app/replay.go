package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/feed"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/service"
)

type replayRow struct {
	at    time.Time
	price *big.Int
}

// Replay feeds a historical price file through the full pipeline. Each CSV
// row is `timestamp,price` (RFC3339, whole units); rows arriving later than
// their scheduled slot exercise the same linearization as a live late poke.
func (a *App) Replay(ctx context.Context, opts ReplayOptions) error {
	rows, err := readReplayFile(opts.Path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("replay file contains no rows")
	}

	var stores service.Stores
	if opts.DryRun {
		a.Logger.Warn().Msg("replay dry-run: nothing will be written to the database")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("database.dsn not configured; cannot replay")
		}
		if closeStore != nil {
			defer closeStore()
		}
		stores = a.stores(store)
	}

	upstream := oracle.NewStatic(rows[0].price)

	firstUpdate := rows[0].at.Truncate(a.Config.Feed.UpdateInterval)
	priceFeed, err := feed.New(a.feedConfig(), upstream, firstUpdate, a.Logger)
	if err != nil {
		return err
	}

	crossover, band, err := a.newTriggers(priceFeed)
	if err != nil {
		return err
	}

	svc := service.New(a.Config, nil, priceFeed, crossover, band, stores, nil, a.Logger)

	processed := 0
	failed := 0
	for _, row := range rows {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		upstream.Set(row.price)
		if err := svc.ProcessSlot(ctx, row.at); err != nil {
			failed++
			a.Logger.Error().Err(err).Time("at", row.at).Msg("replay row failed")
			continue
		}
		processed++
	}

	a.Logger.Info().Int("processed", processed).Int("failed", failed).Msg("replay finished")
	if failed > 0 {
		return errors.New("some replay rows failed; check logs")
	}
	return nil
}

func readReplayFile(path string) ([]replayRow, error) {
	if path == "" {
		return nil, errors.New("replay file path is required")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2

	rows := make([]replayRow, 0)
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read replay file: %w", err)
		}
		line++

		at, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			if line == 1 {
				// tolerate a header row
				continue
			}
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", line, record[0], err)
		}

		price, err := decimal.NewFromString(record[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price %q: %w", line, record[1], err)
		}
		if price.Sign() <= 0 {
			return nil, fmt.Errorf("line %d: price must be positive", line)
		}

		rows = append(rows, replayRow{at: at.UTC(), price: fixedpoint.FromDecimal(price)})
	}

	return rows, nil
}
