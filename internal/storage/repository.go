package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertObservationSQL = `INSERT INTO observations (
        feed,
        slot_ts,
        price
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (feed, slot_ts) DO UPDATE
    SET price = EXCLUDED.price;`

	listObservationsBetweenSQL = `SELECT
        feed,
        slot_ts,
        price,
        created_at
    FROM observations
    WHERE feed = $1
      AND slot_ts >= $2
      AND slot_ts < $3
    ORDER BY slot_ts;`

	listRecentObservationsSQL = `SELECT
        feed,
        slot_ts,
        price,
        created_at
    FROM observations
    WHERE feed = $1
    ORDER BY slot_ts DESC
    LIMIT $2;`

	countObservationsSQL = `SELECT COUNT(*) FROM observations WHERE feed = $1;`

	saveFeedStateSQL = `INSERT INTO feed_state (
        feed,
        next_earliest_update
    ) VALUES (
        $1,$2
    )
    ON CONFLICT (feed) DO UPDATE
    SET next_earliest_update = EXCLUDED.next_earliest_update;`

	loadFeedStateSQL = `SELECT next_earliest_update FROM feed_state WHERE feed = $1;`

	insertDecisionSQL = `INSERT INTO decisions (
        decided_at,
        bullish,
        price,
        signal
    ) VALUES (
        $1,$2,$3,$4
    )
    RETURNING id, decided_at, bullish, price, signal, created_at;`

	listRecentDecisionsSQL = `SELECT
        id,
        decided_at,
        bullish,
        price,
        signal,
        created_at
    FROM decisions
    ORDER BY decided_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ObservationStore defines persistence for feed observations.
type ObservationStore interface {
	UpsertObservation(ctx context.Context, obs Observation) error
	ListObservationsBetween(ctx context.Context, feed string, from, to time.Time) ([]Observation, error)
	ListRecentObservations(ctx context.Context, feed string, limit int) ([]Observation, error)
	CountObservations(ctx context.Context, feed string) (int64, error)
}

// FeedStateStore persists the feed's admission schedule.
type FeedStateStore interface {
	SaveFeedState(ctx context.Context, state FeedState) error
	LoadFeedState(ctx context.Context, feed string) (*FeedState, error)
}

// DecisionStore defines operations for allocation-flip auditing.
type DecisionStore interface {
	InsertDecision(ctx context.Context, decision Decision) (Decision, error)
	ListRecentDecisions(ctx context.Context, limit int) ([]Decision, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to observations, feed state, and decisions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; releasing the session-scoped connection drops the
		// lock even if the explicit unlock fails
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// UpsertObservation persists or updates one feed data point.
func (s *Store) UpsertObservation(ctx context.Context, obs Observation) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertObservationSQL,
		obs.Feed,
		obs.SlotTS,
		obs.Price.String(),
	); execErr != nil {
		return fmt.Errorf("upsert observation: %w", execErr)
	}
	return nil
}

// ListObservationsBetween lists one feed's observations within a time window.
func (s *Store) ListObservationsBetween(ctx context.Context, feed string, from, to time.Time) ([]Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listObservationsBetweenSQL, feed, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations between: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, 0)
}

// ListRecentObservations lists the most recent observations, newest first.
func (s *Store) ListRecentObservations(ctx context.Context, feed string, limit int) ([]Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentObservationsSQL, feed, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent observations: %w", queryErr)
	}
	defer rows.Close()

	return collectObservations(rows, limit)
}

// CountObservations counts stored observations for one feed.
func (s *Store) CountObservations(ctx context.Context, feed string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL, feed).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// SaveFeedState persists the feed's next scheduled update.
func (s *Store) SaveFeedState(ctx context.Context, state FeedState) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, saveFeedStateSQL, state.Feed, state.NextEarliestUpdate); execErr != nil {
		return fmt.Errorf("save feed state: %w", execErr)
	}
	return nil
}

// LoadFeedState loads the feed's schedule, or nil when none is stored.
func (s *Store) LoadFeedState(ctx context.Context, feed string) (*FeedState, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	state := FeedState{Feed: feed}
	scanErr := pool.QueryRow(ctx, loadFeedStateSQL, feed).Scan(&state.NextEarliestUpdate)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load feed state: %w", scanErr)
	}
	return &state, nil
}

// InsertDecision persists a confirmed allocation flip.
func (s *Store) InsertDecision(ctx context.Context, decision Decision) (Decision, error) {
	pool, err := s.getPool()
	if err != nil {
		return Decision{}, err
	}

	row := pool.QueryRow(ctx, insertDecisionSQL,
		decision.DecidedAt,
		decision.Bullish,
		decision.Price.String(),
		decision.Signal.String(),
	)

	rec, scanErr := scanDecision(row)
	if scanErr != nil {
		return Decision{}, fmt.Errorf("insert decision: %w", scanErr)
	}
	return rec, nil
}

// ListRecentDecisions lists most recent allocation flips.
func (s *Store) ListRecentDecisions(ctx context.Context, limit int) ([]Decision, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentDecisionsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent decisions: %w", queryErr)
	}
	defer rows.Close()

	decisions := make([]Decision, 0, limit)
	for rows.Next() {
		rec, scanErr := scanDecision(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		decisions = append(decisions, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return decisions, nil
}

func collectObservations(rows pgx.Rows, sizeHint int) ([]Observation, error) {
	observations := make([]Observation, 0, sizeHint)
	for rows.Next() {
		var (
			obs      Observation
			priceStr string
		)
		if err := rows.Scan(&obs.Feed, &obs.SlotTS, &priceStr, &obs.CreatedAt); err != nil {
			return nil, err
		}

		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse observation price: %w", convErr)
		}
		obs.Price = price
		observations = append(observations, obs)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return observations, nil
}

func scanDecision(row pgx.Row) (Decision, error) {
	var (
		rec       Decision
		priceStr  string
		signalStr string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.DecidedAt,
		&rec.Bullish,
		&priceStr,
		&signalStr,
		&rec.CreatedAt,
	); err != nil {
		return Decision{}, err
	}

	var convErr error
	rec.Price, convErr = decimal.NewFromString(priceStr)
	if convErr != nil {
		return Decision{}, fmt.Errorf("parse decision price: %w", convErr)
	}
	rec.Signal, convErr = decimal.NewFromString(signalStr)
	if convErr != nil {
		return Decision{}, fmt.Errorf("parse decision signal: %w", convErr)
	}
	return rec, nil
}

var _ ObservationStore = (*Store)(nil)
var _ FeedStateStore = (*Store)(nil)
var _ DecisionStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
