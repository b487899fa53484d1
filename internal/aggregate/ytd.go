package aggregate

import (
	"context"
	"fmt"

	"marketstats/server/internal/models"
	"marketstats/server/internal/stats"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// YTD recomputes benchmarkPriceYTD over a whole year.
type YTD struct {
	store  PeriodStore
	logger *logrus.Logger
}

func NewYTD(store PeriodStore, logger *logrus.Logger) *YTD {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &YTD{store: store, logger: logger}
}

// Location rewrites benchmarkPriceYTD of every stored month from startMonth
// to December of year, for each property type of one location. Month M gets
// the rounded mean of the non-nil benchmark prices of months 1..M, or nil.
// Months without a record are skipped and never created. It returns the
// number of records written.
func (y *YTD) Location(ctx context.Context, city, loc string, propertyTypes []string, year, startMonth int) (int, error) {
	if startMonth < 1 || startMonth > 12 {
		return 0, fmt.Errorf("invalid start month %d", startMonth)
	}

	series := make([][12]*models.StatPeriod, len(propertyTypes))
	g, gctx := errgroup.WithContext(ctx)
	for i, pt := range propertyTypes {
		for m := 1; m <= 12; m++ {
			g.Go(func() error {
				p, err := y.store.GetPeriod(gctx, periodKey(city, loc, pt, models.YearMonth{Year: year, Month: m}))
				if err != nil {
					return fmt.Errorf("failed to load %s/%s %d-%02d: %w", loc, pt, year, m, err)
				}
				series[i][m-1] = p
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	written := 0
	for i, pt := range propertyTypes {
		values := YearToDate(series[i])
		for m := startMonth; m <= 12; m++ {
			p := series[i][m-1]
			if p == nil {
				continue
			}
			s := p.Stats.Clone()
			s.BenchmarkPriceYTD = values[m-1]
			key := periodKey(city, loc, pt, models.YearMonth{Year: year, Month: m})
			if err := y.store.PutPeriod(ctx, key, s); err != nil {
				return written, fmt.Errorf("failed to save YTD of %s/%s %d-%02d: %w", loc, pt, year, m, err)
			}
			written++
		}
	}

	y.logger.WithFields(logrus.Fields{
		"city":     city,
		"location": loc,
		"year":     year,
		"written":  written,
	}).Debug("Recalculated YTD")
	return written, nil
}

// YearToDate returns, for each month, the rounded mean of the benchmark
// prices present in the months up to and including it.
func YearToDate(months [12]*models.StatPeriod) [12]*float64 {
	var out [12]*float64
	var prefix []*float64
	for i, p := range months {
		if p != nil {
			prefix = append(prefix, p.Stats.BenchmarkPrice)
		}
		out[i] = stats.RoundPtr(stats.Mean(prefix...))
	}
	return out
}
