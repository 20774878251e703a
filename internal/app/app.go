package app

import (
	"context"
	"errors"
	"math/big"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/alerting"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/config"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/derived"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/feed"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/oracle"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/scheduler"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/service"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/storage"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/trigger"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) feedConfig() feed.Config {
	return feed.Config{
		UpdateInterval:         a.Config.Feed.UpdateInterval,
		MaxDataPoints:          a.Config.Feed.MaxDataPoints,
		Description:            a.Config.Feed.Description,
		InterpolationThreshold: a.Config.Feed.InterpolationThreshold,
	}
}

// newFeed builds the price feed, resuming the persisted schedule when the
// store holds one and otherwise starting on the next aligned slot.
func (a *App) newFeed(ctx context.Context, upstream oracle.PriceReader, store *storage.Store) (*feed.Feed, error) {
	cfg := a.feedConfig()

	if store != nil {
		state, err := store.LoadFeedState(ctx, cfg.Description)
		if err != nil {
			return nil, err
		}
		if state != nil {
			observations, err := store.ListRecentObservations(ctx, cfg.Description, cfg.MaxDataPoints)
			if err != nil {
				return nil, err
			}
			values := make([]*big.Int, len(observations))
			for i, obs := range observations {
				// recent observations arrive newest first; the snapshot
				// layout is oldest first.
				values[len(observations)-1-i] = fixedpoint.FromDecimal(obs.Price)
			}
			a.Logger.Info().
				Int("points", len(values)).
				Time("next_earliest_update", state.NextEarliestUpdate).
				Msg("resuming feed from persisted state")
			return feed.Restore(cfg, upstream, feed.State{
				Values:             values,
				NextEarliestUpdate: state.NextEarliestUpdate,
			}, a.Logger)
		}
	}

	firstUpdate := time.Now().UTC().Truncate(cfg.UpdateInterval)
	return feed.New(cfg, upstream, firstUpdate, a.Logger)
}

func (a *App) newTriggers(priceFeed *feed.Feed) (*trigger.Confirmation, *trigger.Band, error) {
	lastValue := derived.NewLastValue(priceFeed)
	movingAverage, err := derived.NewMovingAverage(priceFeed, a.Config.Analytics.MovingAverageWindow)
	if err != nil {
		return nil, nil, err
	}
	rsi, err := derived.NewRSI(priceFeed, a.Config.Analytics.RSIPeriod)
	if err != nil {
		return nil, nil, err
	}

	crossover, err := trigger.NewConfirmation(trigger.ConfirmationConfig{
		Reference:           lastValue,
		Signal:              movingAverage,
		ConfirmationMinTime: a.Config.Trigger.ConfirmationMinTime,
		ConfirmationMaxTime: a.Config.Trigger.ConfirmationMaxTime,
		InitialBullish:      a.Config.Trigger.InitialBullish,
	}, a.Logger)
	if err != nil {
		return nil, nil, err
	}

	var band *trigger.Band
	if a.Config.Band.Hysteretic {
		band, err = trigger.NewTrending(rsi, a.Config.Band.LowerBound, a.Config.Band.UpperBound, a.Config.Band.InitialAllocation, a.Logger)
	} else {
		band, err = trigger.NewMidlineCross(rsi, a.Config.Band.LowerBound, a.Config.Band.UpperBound, a.Logger)
	}
	if err != nil {
		return nil, nil, err
	}

	return crossover, band, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) stores(store *storage.Store) service.Stores {
	if store == nil {
		return service.Stores{}
	}
	return service.Stores{
		Observations: store,
		FeedStates:   store,
		Decisions:    store,
		Locker:       store,
	}
}

// Run executes the long-running pipeline service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	upstream := oracle.NewMedianizer(oracle.MedianizerOptions{
		RPCURL:  a.Config.Ethereum.RPCURL,
		Address: a.Config.Ethereum.MedianizerAddress,
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)

	priceFeed, err := a.newFeed(ctx, upstream, store)
	if err != nil {
		return err
	}

	crossover, band, err := a.newTriggers(priceFeed)
	if err != nil {
		return err
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.CheckInterval,
		AlignToSlot:  a.Config.Scheduler.AlignToSlot,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := service.New(a.Config, sched, priceFeed, crossover, band, a.stores(store), a.newNotifier(), a.Logger)

	a.Logger.Info().Msg("starting pipeline service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("pipeline service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical observations.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions configure the offline pipeline simulation.
type SimulateOptions struct {
	Prices []*big.Int
}

// ReplayOptions configure the historical replay job.
type ReplayOptions struct {
	Path   string
	DryRun bool
}
