// Package memstore is an in-process implementation of the statistics store,
// used by tests and by the "memory" backend.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketstats/server/internal/models"
)

type Store struct {
	mu            sync.RWMutex
	periods       map[models.PeriodKey]models.StatPeriod
	distributions map[distKey][]models.DistributionRow
	ranges        map[string][]float64
	lastAvailable map[string]models.YearMonth
	now           func() time.Time
}

type distKey struct {
	city string
	ym   models.YearMonth
}

func New() *Store {
	return &Store{
		periods:       make(map[models.PeriodKey]models.StatPeriod),
		distributions: make(map[distKey][]models.DistributionRow),
		ranges:        make(map[string][]float64),
		lastAvailable: make(map[string]models.YearMonth),
		now:           time.Now,
	}
}

func (s *Store) GetPeriod(_ context.Context, key models.PeriodKey) (*models.StatPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.periods[key]
	if !ok {
		return nil, nil
	}
	p.Stats = p.Stats.Clone()
	return &p, nil
}

func (s *Store) PutPeriod(_ context.Context, key models.PeriodKey, st models.Stats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.periods[key] = models.StatPeriod{Key: key, Stats: st.Clone(), UpdatedAt: s.now()}
	return nil
}

func (s *Store) GetDistribution(_ context.Context, city string, ym models.YearMonth) ([]models.DistributionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.distributions[distKey{city: city, ym: ym}]
	if !ok {
		return nil, nil
	}
	return cloneRows(rows), nil
}

func (s *Store) PutDistribution(_ context.Context, city string, ym models.YearMonth, rows []models.DistributionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.distributions[distKey{city: city, ym: ym}] = cloneRows(rows)
	return nil
}

func (s *Store) GetDistributionRanges(_ context.Context, city string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.ranges[city]
	if !ok {
		return nil, nil
	}
	return append([]float64(nil), r...), nil
}

func (s *Store) PutDistributionRanges(_ context.Context, city string, ranges []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ranges[city] = append([]float64(nil), ranges...)
	return nil
}

func (s *Store) GetLastAvailable(_ context.Context, city string) (*models.YearMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ym, ok := s.lastAvailable[city]
	if !ok {
		return nil, nil
	}
	return &ym, nil
}

func (s *Store) PutLastAvailable(_ context.Context, city string, ym models.YearMonth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastAvailable[city] = ym
	return nil
}

// ListLocations returns the sorted names of locations with at least one period.
func (s *Store) ListLocations(_ context.Context, city string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range s.periods {
		if key.City == city {
			seen[key.Location] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored periods.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.periods)
}

func cloneRows(rows []models.DistributionRow) []models.DistributionRow {
	out := make([]models.DistributionRow, len(rows))
	for i, row := range rows {
		values := make(map[string]*float64, len(row.Values))
		for pt, v := range row.Values {
			if v != nil {
				c := *v
				v = &c
			}
			values[pt] = v
		}
		out[i] = models.DistributionRow{RangeFrom: row.RangeFrom, Values: values}
	}
	return out
}
