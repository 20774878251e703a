package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/alerting"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/config"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/feed"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/fixedpoint"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/scheduler"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/storage"
	"github.com/SetProtocol/set-protocol-strategies-sub003/internal/trigger"
)

// Service drives the poke/analyze/decide cycle: each slot pokes the feed,
// persists the observation, and walks the trigger state machines.
type Service struct {
	scheduler *scheduler.Scheduler
	priceFeed *feed.Feed
	crossover *trigger.Confirmation
	band      *trigger.Band

	observations storage.ObservationStore
	feedStates   storage.FeedStateStore
	decisions    storage.DecisionStore
	locker       storage.AdvisoryLocker
	notifier     alerting.Notifier
	logger       zerolog.Logger

	channels []string
	alertsOn bool
	lockKey  int64
}

// Stores bundles the optional persistence surfaces.
type Stores struct {
	Observations storage.ObservationStore
	FeedStates   storage.FeedStateStore
	Decisions    storage.DecisionStore
	Locker       storage.AdvisoryLocker
}

// New constructs the pipeline service.
func New(cfg *config.Config, sched *scheduler.Scheduler, priceFeed *feed.Feed, crossover *trigger.Confirmation, band *trigger.Band, stores Stores, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:    sched,
		priceFeed:    priceFeed,
		crossover:    crossover,
		band:         band,
		observations: stores.Observations,
		feedStates:   stores.FeedStates,
		decisions:    stores.Decisions,
		locker:       stores.Locker,
		notifier:     notifier,
		logger:       logger.With().Str("component", "service").Logger(),
		channels:     cfg.Alerting.Channels,
		alertsOn:     cfg.Alerting.Enabled,
		lockKey:      cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned poke loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessSlot)
}

// ProcessSlot executes one update slot at the given logical time.
func (s *Service) ProcessSlot(ctx context.Context, slot time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("slot", slot).Msg("skip slot because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return s.executeSlot(ctx, slot)
}

func (s *Service) executeSlot(ctx context.Context, slot time.Time) error {
	point, err := s.priceFeed.Poke(ctx, slot)
	switch {
	case err == nil:
		s.persistObservation(ctx, point)
	case errors.Is(err, feed.ErrTooSoon):
		// Not a new observation slot, but a confirmation window may have
		// opened mid-interval; the triggers still get evaluated.
		s.logger.Debug().Time("slot", slot).Msg("poke not yet due")
	default:
		return fmt.Errorf("poke feed: %w", err)
	}

	s.evaluateCrossover(ctx, slot)
	s.evaluateBand(ctx)

	return nil
}

func (s *Service) persistObservation(ctx context.Context, point feed.PricePoint) {
	if s.observations != nil {
		obs := storage.Observation{
			Feed:   s.priceFeed.Description(),
			SlotTS: point.Timestamp,
			Price:  fixedpoint.ToDecimal(point.Value),
		}
		if err := s.observations.UpsertObservation(ctx, obs); err != nil {
			s.logger.Error().Err(err).Time("slot", point.Timestamp).Msg("failed to upsert observation")
		}
	}

	if s.feedStates != nil {
		state := storage.FeedState{
			Feed:               s.priceFeed.Description(),
			NextEarliestUpdate: s.priceFeed.NextEarliestUpdate(),
		}
		if err := s.feedStates.SaveFeedState(ctx, state); err != nil {
			s.logger.Error().Err(err).Msg("failed to save feed state")
		}
	}

	s.logger.Info().
		Time("slot", point.Timestamp).
		Str("price", fixedpoint.ToDecimal(point.Value).String()).
		Msg("observation recorded")
}

// evaluateCrossover walks the two-phase machine: confirm a pending flip if
// its window is open, otherwise try to arm a new one. Admission failures
// are the normal idle path and only logged at debug.
func (s *Service) evaluateCrossover(ctx context.Context, slot time.Time) {
	if s.crossover == nil {
		return
	}

	err := s.crossover.ConfirmTrigger(ctx, slot)
	switch {
	case err == nil:
		s.recordDecision(ctx, slot)
		return
	case errors.Is(err, trigger.ErrCrossoverReversed):
		s.logger.Warn().Time("slot", slot).Msg("pending crossover reversed before confirmation")
		return
	case errors.Is(err, trigger.ErrWindowNotOpen):
		// fall through to arming
	case errors.Is(err, feed.ErrInsufficientHistory):
		s.logger.Debug().Time("slot", slot).Msg("crossover trigger warming up")
		return
	default:
		s.logger.Error().Err(err).Time("slot", slot).Msg("confirm trigger failed")
		return
	}

	err = s.crossover.InitialTrigger(ctx, slot)
	switch {
	case err == nil:
	case errors.Is(err, trigger.ErrNoCrossover), errors.Is(err, trigger.ErrNotEnoughTimePassed):
		s.logger.Debug().Time("slot", slot).Msg("no crossover to arm")
	case errors.Is(err, feed.ErrInsufficientHistory):
		s.logger.Debug().Time("slot", slot).Msg("crossover trigger warming up")
	default:
		s.logger.Error().Err(err).Time("slot", slot).Msg("initial trigger failed")
	}
}

func (s *Service) evaluateBand(ctx context.Context) {
	if s.band == nil {
		return
	}

	allocation, err := s.band.Allocation(ctx)
	switch {
	case err == nil:
		s.logger.Info().Int64("allocation", allocation).Msg("band allocation")
	case errors.Is(err, trigger.ErrAmbiguousSignal):
		s.logger.Debug().Msg("band signal inconclusive")
	case errors.Is(err, feed.ErrInsufficientHistory):
		s.logger.Debug().Msg("band trigger warming up")
	default:
		s.logger.Error().Err(err).Msg("band allocation failed")
	}
}

func (s *Service) recordDecision(ctx context.Context, slot time.Time) {
	bullish := s.crossover.IsBullish()
	allocation := int64(0)
	if bullish {
		allocation = 100
	}

	reference, signal, err := s.crossover.Compare(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read signals for decision record")
		return
	}

	price := fixedpoint.ToDecimal(reference)
	average := fixedpoint.ToDecimal(signal)

	s.logger.Info().
		Time("slot", slot).
		Bool("bullish", bullish).
		Str("price", price.String()).
		Str("moving_average", average.String()).
		Msg("allocation flip confirmed")

	if s.decisions != nil {
		record := storage.Decision{
			DecidedAt: slot,
			Bullish:   bullish,
			Price:     price,
			Signal:    average,
		}
		if _, err := s.decisions.InsertDecision(ctx, record); err != nil {
			s.logger.Error().Err(err).Time("slot", slot).Msg("failed to persist decision")
		}
	}

	if s.alertsOn && s.notifier != nil {
		note := alerting.Notification{
			At:         slot,
			Feed:       s.priceFeed.Description(),
			Price:      price,
			Signal:     average,
			Bullish:    bullish,
			Allocation: allocation,
			Channels:   s.channels,
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Time("slot", slot).Msg("failed to dispatch alert")
		}
	}
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
