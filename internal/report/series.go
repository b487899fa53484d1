package report

import (
	"context"
	"fmt"

	"marketstats/server/internal/models"

	"golang.org/x/sync/errgroup"
)

// Entry is the data of one period. A property type missing from Data, or
// mapped to nil, has no record for the period.
type Entry struct {
	Period models.YearMonth
	Data   map[string]*models.Stats
}

// Has reports whether the entry carries a record for the property type.
func (e Entry) Has(propertyType string) bool {
	return e.Data[propertyType] != nil
}

// Series is a list of entries in ascending period order.
type Series []Entry

// Find returns the entry of a period.
func (s Series) Find(ym models.YearMonth) (Entry, bool) {
	for _, e := range s {
		if e.Period == ym {
			return e, true
		}
	}
	return Entry{}, false
}

// MonthPeriods returns the n months ending at ref, oldest first.
func MonthPeriods(ref models.YearMonth, n int) []models.YearMonth {
	periods := make([]models.YearMonth, n)
	for i := 0; i < n; i++ {
		periods[n-1-i] = ref.AddMonths(-i)
	}
	return periods
}

// YearPeriods returns n yearly periods ending at ref, oldest first. Every
// year before ref's is represented by its December.
func YearPeriods(ref models.YearMonth, n int) []models.YearMonth {
	periods := make([]models.YearMonth, n)
	for i := 0; i < n; i++ {
		ym := models.YearMonth{Year: ref.Year - i, Month: 12}
		if i == 0 {
			ym = ref
		}
		periods[n-1-i] = ym
	}
	return periods
}

// Load fetches every (period, property type) pair concurrently. Missing
// records become absent entries; any storage error aborts the load.
func Load(ctx context.Context, store PeriodReader, city, loc string, propertyTypes []string, periods []models.YearMonth) (Series, error) {
	series := make(Series, len(periods))
	results := make([][]*models.Stats, len(periods))

	g, gctx := errgroup.WithContext(ctx)
	for i, ym := range periods {
		results[i] = make([]*models.Stats, len(propertyTypes))
		for j, pt := range propertyTypes {
			g.Go(func() error {
				p, err := store.GetPeriod(gctx, models.PeriodKey{
					City:         city,
					Location:     loc,
					PropertyType: pt,
					Year:         ym.Year,
					Month:        ym.Month,
				})
				if err != nil {
					return fmt.Errorf("failed to load %s/%s %s: %w", loc, pt, ym, err)
				}
				if p != nil {
					s := p.Stats
					results[i][j] = &s
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, ym := range periods {
		data := make(map[string]*models.Stats, len(propertyTypes))
		for j, pt := range propertyTypes {
			data[pt] = results[i][j]
		}
		series[i] = Entry{Period: ym, Data: data}
	}
	return series, nil
}
