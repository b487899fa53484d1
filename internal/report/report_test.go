package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"marketstats/server/internal/location"
	"marketstats/server/internal/memstore"
	"marketstats/server/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	propertyTypes = []string{"detached", "apartment"}
	ref           = models.YearMonth{Year: 2024, Month: 3}
)

func ptr(v float64) *float64 {
	return &v
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testTree(t *testing.T) *location.Tree {
	t.Helper()
	tree, err := location.Normalize(location.Definition{
		City:  "calgary",
		Shape: location.ShapeRegionAreaCommunity,
		Root:  "City of Calgary",
		Regions: []location.RegionDef{{
			Name:  "City of Calgary",
			Areas: []location.AreaDef{{Name: "North", Communities: []string{"Beddington"}}},
		}},
	})
	require.NoError(t, err)
	return tree
}

func putStats(t *testing.T, s *memstore.Store, loc, pt string, ym models.YearMonth, st models.Stats) {
	t.Helper()
	require.NoError(t, s.PutPeriod(context.Background(), models.PeriodKey{
		City: "calgary", Location: loc, PropertyType: pt, Year: ym.Year, Month: ym.Month,
	}, st))
}

type recordingObserver struct {
	kinds []string
	errs  []error
}

func (o *recordingObserver) ReportBuilt(city, kind string, d time.Duration, err error) {
	o.kinds = append(o.kinds, kind)
	o.errs = append(o.errs, err)
}

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetPeriod(ctx context.Context, key models.PeriodKey) (*models.StatPeriod, error) {
	args := m.Called(ctx, key)
	p, _ := args.Get(0).(*models.StatPeriod)
	return p, args.Error(1)
}

func (m *MockStore) GetDistribution(ctx context.Context, city string, ym models.YearMonth) ([]models.DistributionRow, error) {
	args := m.Called(ctx, city, ym)
	rows, _ := args.Get(0).([]models.DistributionRow)
	return rows, args.Error(1)
}

func (m *MockStore) GetDistributionRanges(ctx context.Context, city string) ([]float64, error) {
	args := m.Called(ctx, city)
	r, _ := args.Get(0).([]float64)
	return r, args.Error(1)
}

func (m *MockStore) GetLastAvailable(ctx context.Context, city string) (*models.YearMonth, error) {
	args := m.Called(ctx, city)
	ym, _ := args.Get(0).(*models.YearMonth)
	return ym, args.Error(1)
}

func TestMonthPeriods(t *testing.T) {
	periods := MonthPeriods(ref, 14)
	require.Len(t, periods, 14)
	assert.Equal(t, models.YearMonth{Year: 2023, Month: 2}, periods[0])
	assert.Equal(t, models.YearMonth{Year: 2023, Month: 12}, periods[10])
	assert.Equal(t, ref, periods[13])
}

func TestYearPeriods(t *testing.T) {
	periods := YearPeriods(ref, 3)
	assert.Equal(t, []models.YearMonth{
		{Year: 2022, Month: 12},
		{Year: 2023, Month: 12},
		{Year: 2024, Month: 3},
	}, periods)
}

func TestBuild_SparseWindow(t *testing.T) {
	store := memstore.New()
	tree := testTree(t)
	root := "City of Calgary"

	putStats(t, store, root, "detached", ref.AddMonths(-1), models.Stats{
		Sold: ptr(50), Active: ptr(200), DOM: ptr(30), BenchmarkPrice: ptr(500000), BenchmarkPriceYTD: ptr(490000),
	})
	putStats(t, store, root, "detached", ref, models.Stats{
		Sold: ptr(100), Active: ptr(200), DOM: ptr(15), BenchmarkPrice: ptr(550000), BenchmarkPriceYTD: ptr(500000),
	})
	require.NoError(t, store.PutDistribution(context.Background(), "calgary", ref, []models.DistributionRow{
		{RangeFrom: 200000, Values: map[string]*float64{"detached": ptr(30)}},
		{RangeFrom: 500000, Values: map[string]*float64{"detached": ptr(70)}},
	}))

	a := NewAssembler(store, quietLogger(), Options{Months: 14, Years: 11, DefaultRanges: []float64{1, 200000, 500000}}, nil)
	rep, err := a.Build(context.Background(), Request{
		City: "calgary", Tree: tree, PropertyTypes: propertyTypes, Location: root, Period: ref,
	})
	require.NoError(t, err)

	require.Len(t, rep.Months, 13)
	for i, row := range rep.Months[:11] {
		for _, pt := range propertyTypes {
			assert.Equal(t, &models.TypeReport{}, row.Type(pt), "row %d %s", i, pt)
		}
	}

	prev := rep.Months[11].Type("detached")
	assert.Equal(t, 50.0, *prev.Sold)
	assert.Equal(t, 25.0, *prev.SoldPercent)
	assert.Equal(t, 75.0, *prev.UnsoldPercent)
	assert.Nil(t, prev.SoldDelta)
	assert.Nil(t, prev.MarketDistribution)
	assert.Nil(t, prev.SoldYTYDelta)

	last := rep.Months[12]
	assert.Equal(t, "2024-03", last.Attrs.Date)
	d := last.Type("detached")
	assert.Equal(t, 100.0, *d.SoldDelta)
	assert.Equal(t, 0.0, *d.ActiveDelta)
	assert.Equal(t, 100.0, *d.SoldPercentDelta)
	assert.Equal(t, -50.0, *d.DOMDelta)
	assert.Equal(t, 10.0, *d.BenchmarkPriceDelta)
	assert.Equal(t, 2.04, *d.BenchmarkPriceYTDDelta)
	// no record a year ago
	assert.Nil(t, d.SoldYTYDelta)
	assert.True(t, d.YearOverYear)

	data, err := json.Marshal(last)
	require.NoError(t, err)
	var decoded map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"soldYTYDelta", "activeYTYDelta", "soldPercentYTYDelta", "benchmarkPriceYTYDelta", "benchmarkPriceYTDYTYDelta", "domYTYDelta"} {
		require.Contains(t, decoded["detached"], key)
		assert.Equal(t, "null", string(decoded["detached"][key]), key)
	}
	assert.NotContains(t, decoded["apartment"], "soldYTYDelta")

	require.Len(t, d.MarketDistribution, 3)
	assert.Equal(t, 1.0, d.MarketDistribution[0].RangeFrom)
	assert.Nil(t, d.MarketDistribution[0].Percent)
	assert.Equal(t, 30.0, *d.MarketDistribution[1].Percent)
	assert.Equal(t, 70.0, *d.MarketDistribution[2].Percent)

	// the apartment type has no data and stays empty
	assert.Equal(t, &models.TypeReport{}, last.Type("apartment"))

	assert.Equal(t, []string{}, rep.Path)
	assert.Nil(t, rep.CityYears)
	require.Len(t, rep.Years, 10)
}

func TestBuild_YearOverYearOnLastRowOnly(t *testing.T) {
	store := memstore.New()
	tree := testTree(t)

	for _, ym := range MonthPeriods(ref, 14) {
		putStats(t, store, "North", "detached", ym, models.Stats{Sold: ptr(10), Active: ptr(20), BenchmarkPrice: ptr(400000)})
	}
	putStats(t, store, "North", "detached", ref, models.Stats{Sold: ptr(20), Active: ptr(20), BenchmarkPrice: ptr(440000)})

	a := NewAssembler(store, quietLogger(), Options{Strict: true}, nil)
	rep, err := a.Build(context.Background(), Request{
		City: "calgary", Tree: tree, PropertyTypes: propertyTypes, Location: "North", Period: ref,
	})
	require.NoError(t, err)
	require.Len(t, rep.Months, 13)

	for _, row := range rep.Months[:12] {
		d := row.Type("detached")
		assert.Nil(t, d.SoldYTYDelta)
		assert.Nil(t, d.BenchmarkPriceYTYDelta)
		assert.Equal(t, 0.0, *d.SoldDelta)
	}

	d := rep.Months[12].Type("detached")
	assert.Equal(t, 100.0, *d.SoldYTYDelta)
	assert.Equal(t, 0.0, *d.ActiveYTYDelta)
	assert.Equal(t, 10.0, *d.BenchmarkPriceYTYDelta)
	assert.Equal(t, 100.0, *d.SoldPercentYTYDelta)
	// distribution is only attached for the city root
	assert.Nil(t, d.MarketDistribution)

	assert.Equal(t, []string{"North"}, rep.Path)
	assert.NotNil(t, rep.CityYears)
	assert.Len(t, rep.CityYears, 10)
}

func TestBuild_YearRows(t *testing.T) {
	store := memstore.New()
	tree := testTree(t)

	putStats(t, store, "North", "detached", models.YearMonth{Year: 2021, Month: 12}, models.Stats{BenchmarkPriceYTD: ptr(100)})
	putStats(t, store, "North", "detached", models.YearMonth{Year: 2022, Month: 12}, models.Stats{BenchmarkPriceYTD: ptr(200)})
	putStats(t, store, "North", "detached", models.YearMonth{Year: 2023, Month: 12}, models.Stats{BenchmarkPriceYTD: ptr(250)})
	putStats(t, store, "North", "detached", ref, models.Stats{BenchmarkPriceYTD: ptr(300)})

	a := NewAssembler(store, quietLogger(), Options{Months: 2, Years: 4}, nil)
	rep, err := a.Build(context.Background(), Request{
		City: "calgary", Tree: tree, PropertyTypes: propertyTypes, Location: "North", Period: ref,
	})
	require.NoError(t, err)

	require.Len(t, rep.Years, 3)
	assert.Equal(t, 2022, rep.Years[0].Attrs.Year)
	assert.Equal(t, 12, rep.Years[0].Attrs.Month)
	assert.Equal(t, 100.0, *rep.Years[0].Type("detached").BenchmarkPriceYTDDelta)
	assert.Equal(t, 25.0, *rep.Years[1].Type("detached").BenchmarkPriceYTDDelta)
	assert.Nil(t, rep.Years[1].Type("detached").BenchmarkPriceTotalDelta)

	last := rep.Years[2]
	assert.Equal(t, 3, last.Attrs.Month)
	assert.Equal(t, 20.0, *last.Type("detached").BenchmarkPriceYTDDelta)
	assert.Equal(t, 50.0, *last.Type("detached").BenchmarkPriceTotalDelta)
	assert.Nil(t, last.Type("apartment").BenchmarkPriceTotalDelta)
}

func TestBuild_UnknownLocation(t *testing.T) {
	store := memstore.New()
	tree := testTree(t)
	req := Request{City: "calgary", Tree: tree, PropertyTypes: propertyTypes, Location: "Atlantis", Period: ref}

	_, err := NewAssembler(store, quietLogger(), Options{Strict: true}, nil).Build(context.Background(), req)
	assert.ErrorIs(t, err, location.ErrHierarchyMismatch)
	assert.EqualError(t, err, "location not found in hierarchy: Atlantis")

	rep, err := NewAssembler(store, quietLogger(), Options{}, nil).Build(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, rep.Matched)
	assert.Equal(t, []string{"Atlantis"}, rep.Path)
}

func TestBuild_DefaultsToLastAvailable(t *testing.T) {
	store := memstore.New()
	tree := testTree(t)
	observer := &recordingObserver{}
	a := NewAssembler(store, quietLogger(), Options{}, observer)
	req := Request{City: "calgary", Tree: tree, PropertyTypes: propertyTypes, Location: "North"}

	_, err := a.Build(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoData)

	require.NoError(t, store.PutLastAvailable(context.Background(), "calgary", ref))
	rep, err := a.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", rep.Months[len(rep.Months)-1].Attrs.Date)

	assert.Equal(t, []string{"report", "report"}, observer.kinds)
	assert.Error(t, observer.errs[0])
	assert.NoError(t, observer.errs[1])
}

func TestBuild_StorageFailure(t *testing.T) {
	store := new(MockStore)
	storageErr := errors.New("unavailable")
	store.On("GetPeriod", mock.Anything, mock.Anything).Return(nil, storageErr)
	store.On("GetDistribution", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	store.On("GetDistributionRanges", mock.Anything, mock.Anything).Return(nil, nil)

	_, err := NewAssembler(store, quietLogger(), Options{}, nil).Build(context.Background(), Request{
		City: "calgary", Tree: testTree(t), PropertyTypes: propertyTypes, Location: "City of Calgary", Period: ref,
	})
	assert.ErrorIs(t, err, storageErr)
}

func TestDistribution(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	a := NewAssembler(store, quietLogger(), Options{DefaultRanges: []float64{1, 200000}}, nil)

	rows, err := a.Distribution(ctx, "calgary", ref)
	require.NoError(t, err)
	assert.Nil(t, rows)

	require.NoError(t, store.PutDistribution(ctx, "calgary", ref, []models.DistributionRow{
		{RangeFrom: 200000, Values: map[string]*float64{"row": ptr(1)}},
	}))
	rows, err = a.Distribution(ctx, "calgary", ref)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, store.PutDistributionRanges(ctx, "calgary", []float64{0, 100000, 200000}))
	rows, err = a.Distribution(ctx, "calgary", ref)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[0].Value("row"))
	assert.Nil(t, rows[1].Value("row"))
	assert.Equal(t, 1.0, *rows[2].Value("row"))
}

func TestReportRow_JSON(t *testing.T) {
	row := models.NewReportRow(ref, []string{"detached", "apartment"})
	row.Types["detached"].Sold = ptr(3)

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "attrs")
	assert.Contains(t, decoded, "detached")
	assert.Contains(t, decoded, "apartment")
	assert.JSONEq(t, `{"date":"2024-03","month":3,"year":2024}`, string(decoded["attrs"]))

	var detached map[string]any
	require.NoError(t, json.Unmarshal(decoded["detached"], &detached))
	assert.Equal(t, 3.0, detached["sold"])
	assert.Nil(t, detached["active"])
	assert.NotContains(t, detached, "soldYTYDelta")
}
