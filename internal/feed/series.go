package feed

import (
	"math/big"
	"time"
)

// PricePoint is one stored observation. Immutable once recorded.
type PricePoint struct {
	Value     *big.Int
	Timestamp time.Time
}

// series is a capacity-bounded, newest-last sequence of price points.
type series struct {
	max    int
	points []PricePoint
}

func newSeries(max int) *series {
	return &series{max: max, points: make([]PricePoint, 0, max)}
}

func (s *series) append(p PricePoint) {
	s.points = append(s.points, p)
	if len(s.points) > s.max {
		s.points = s.points[len(s.points)-s.max:]
	}
}

func (s *series) len() int {
	return len(s.points)
}

func (s *series) last() PricePoint {
	return s.points[len(s.points)-1]
}

// read returns the most recent count points, newest first. Downstream
// analytics consume this ordering positionally.
func (s *series) read(count int) ([]PricePoint, error) {
	if count <= 0 || count > len(s.points) {
		return nil, ErrInsufficientHistory
	}
	out := make([]PricePoint, count)
	for i := 0; i < count; i++ {
		out[i] = s.points[len(s.points)-1-i]
	}
	return out, nil
}

// values returns all stored values oldest first, for snapshotting.
func (s *series) values() []*big.Int {
	out := make([]*big.Int, len(s.points))
	for i, p := range s.points {
		out[i] = new(big.Int).Set(p.Value)
	}
	return out
}
