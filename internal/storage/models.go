package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one persisted feed data point.
type Observation struct {
	Feed      string
	SlotTS    time.Time
	Price     decimal.Decimal
	CreatedAt time.Time
}

// FeedState is the resumable schedule of a feed: together with the stored
// observations it is sufficient to restart the admission/linearization
// schedule exactly where it left off.
type FeedState struct {
	Feed               string
	NextEarliestUpdate time.Time
}

// Decision records a confirmed allocation flip for auditing.
type Decision struct {
	ID        int64
	DecidedAt time.Time
	Bullish   bool
	Price     decimal.Decimal
	Signal    decimal.Decimal
	CreatedAt time.Time
}
