package aggregate

import (
	"context"
	"errors"
	"testing"

	"marketstats/server/internal/location"
	"marketstats/server/internal/memstore"
	"marketstats/server/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var march = models.YearMonth{Year: 2024, Month: 3}

// MockStore is a mock implementation of PeriodStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetPeriod(ctx context.Context, key models.PeriodKey) (*models.StatPeriod, error) {
	args := m.Called(ctx, key)
	p, _ := args.Get(0).(*models.StatPeriod)
	return p, args.Error(1)
}

func (m *MockStore) PutPeriod(ctx context.Context, key models.PeriodKey, s models.Stats) error {
	args := m.Called(ctx, key, s)
	return args.Error(0)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func ptr(v float64) *float64 {
	return &v
}

func testTree(t *testing.T) *location.Tree {
	t.Helper()
	tree, err := location.Normalize(location.Definition{
		City:  "edmonton",
		Shape: location.ShapeCityZoneCommunity,
		Root:  "Edmonton",
		Communities: []location.CommunityDef{
			{Name: "A", City: "Edmonton", Area: "Central", Zone: 1},
			{Name: "B", City: "Edmonton", Area: "Central", Zone: 1},
			{Name: "C", City: "Edmonton", Area: "Central", Zone: 2},
		},
		Cities:   []string{"Edmonton"},
		Measured: []string{"Edmonton"},
	})
	require.NoError(t, err)
	return tree
}

func put(t *testing.T, s *memstore.Store, loc, pt string, ym models.YearMonth, st models.Stats) {
	t.Helper()
	require.NoError(t, s.PutPeriod(context.Background(), periodKey("edmonton", loc, pt, ym), st))
}

func get(t *testing.T, s *memstore.Store, loc, pt string, ym models.YearMonth) *models.StatPeriod {
	t.Helper()
	p, err := s.GetPeriod(context.Background(), periodKey("edmonton", loc, pt, ym))
	require.NoError(t, err)
	return p
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name     string
		children []*models.StatPeriod
		want     models.Stats
		ok       bool
	}{
		{
			name: "sums counts and averages dom",
			children: []*models.StatPeriod{
				{Stats: models.Stats{Sold: ptr(3), DOM: ptr(10)}},
				{Stats: models.Stats{Sold: ptr(5), DOM: ptr(20)}},
			},
			want: models.Stats{Sold: ptr(8), DOM: ptr(15)},
			ok:   true,
		},
		{
			name: "missing children degrade to partial sums",
			children: []*models.StatPeriod{
				nil,
				{Stats: models.Stats{Sold: ptr(2), Active: ptr(7), BenchmarkPrice: ptr(300001)}},
				{Stats: models.Stats{Sold: ptr(0), BenchmarkPrice: ptr(400000)}},
			},
			want: models.Stats{Sold: ptr(2), Active: ptr(7), BenchmarkPrice: ptr(350001)},
			ok:   true,
		},
		{
			name: "mean is rounded",
			children: []*models.StatPeriod{
				{Stats: models.Stats{DOM: ptr(10)}},
				{Stats: models.Stats{DOM: ptr(11)}},
			},
			want: models.Stats{DOM: ptr(11)},
			ok:   true,
		},
		{
			name:     "no child records",
			children: []*models.StatPeriod{nil, nil},
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Combine(tt.children)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRollup_Tree(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tree := testTree(t)

	put(t, store, "A", "detached", march, models.Stats{Sold: ptr(3), Active: ptr(10), DOM: ptr(10), BenchmarkPrice: ptr(500000)})
	put(t, store, "B", "detached", march, models.Stats{Sold: ptr(5), Active: ptr(20), DOM: ptr(20), BenchmarkPrice: ptr(600000)})
	put(t, store, "C", "detached", march, models.Stats{Sold: ptr(1), Active: ptr(4), DOM: ptr(40), BenchmarkPrice: ptr(800000)})
	put(t, store, "Edmonton", "detached", march, models.Stats{Sold: ptr(999)})

	r := NewRollup(store, quietLogger(), 2)
	result, err := r.Tree(ctx, tree, []string{"detached", "condo"}, march)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Levels)
	assert.Equal(t, 3, result.Written)

	zone1 := get(t, store, "Zone 1", "detached", march)
	require.NotNil(t, zone1)
	assert.Equal(t, 8.0, *zone1.Stats.Sold)
	assert.Equal(t, 30.0, *zone1.Stats.Active)
	assert.Equal(t, 15.0, *zone1.Stats.DOM)
	assert.Equal(t, 550000.0, *zone1.Stats.BenchmarkPrice)

	// the area reads the zones written by the previous level
	central := get(t, store, "Central", "detached", march)
	require.NotNil(t, central)
	assert.Equal(t, 9.0, *central.Stats.Sold)
	assert.Equal(t, 28.0, *central.Stats.DOM)
	assert.Equal(t, 675000.0, *central.Stats.BenchmarkPrice)

	// no condo data anywhere, nothing written
	assert.Nil(t, get(t, store, "Zone 1", "condo", march))

	// the measured root keeps its ingested value
	assert.Equal(t, 999.0, *get(t, store, "Edmonton", "detached", march).Stats.Sold)
}

func TestRollup_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tree := testTree(t)
	put(t, store, "A", "detached", march, models.Stats{Sold: ptr(3), DOM: ptr(10)})
	put(t, store, "C", "detached", march, models.Stats{Sold: ptr(5), DOM: ptr(21)})

	r := NewRollup(store, quietLogger(), 0)
	_, err := r.Tree(ctx, tree, []string{"detached"}, march)
	require.NoError(t, err)
	first := get(t, store, "Central", "detached", march).Stats

	_, err = r.Tree(ctx, tree, []string{"detached"}, march)
	require.NoError(t, err)
	second := get(t, store, "Central", "detached", march).Stats

	assert.Equal(t, first, second)
}

func TestRollup_PreservesParentYTD(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	tree := testTree(t)
	put(t, store, "C", "detached", march, models.Stats{BenchmarkPrice: ptr(100)})
	put(t, store, "Zone 2", "detached", march, models.Stats{BenchmarkPriceYTD: ptr(90)})

	zone, _ := tree.Find("Zone 2")
	n, err := NewRollup(store, quietLogger(), 0).Node(ctx, "edmonton", zone, []string{"detached"}, march)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := get(t, store, "Zone 2", "detached", march)
	assert.Equal(t, 100.0, *got.Stats.BenchmarkPrice)
	assert.Equal(t, 90.0, *got.Stats.BenchmarkPriceYTD)
}

func TestRollup_StorageFailure(t *testing.T) {
	store := new(MockStore)
	storageErr := errors.New("connection reset")
	store.On("GetPeriod", mock.Anything, mock.Anything).Return(nil, storageErr)

	tree := testTree(t)
	_, err := NewRollup(store, quietLogger(), 0).Tree(context.Background(), tree, []string{"detached"}, march)

	assert.ErrorIs(t, err, storageErr)
	store.AssertNotCalled(t, "PutPeriod", mock.Anything, mock.Anything, mock.Anything)
}
