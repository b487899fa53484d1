package report

import (
	"context"
	"fmt"
	"time"

	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
	"marketstats/server/internal/stats"
)

// Summary compares the reference month of a location with the month before
// it and with the same month a year earlier. A zero req.Period means the
// city's last available month.
func (a *Assembler) Summary(ctx context.Context, req Request) (sum *models.Summary, err error) {
	start := time.Now()
	defer func() {
		if a.observer != nil {
			a.observer.ReportBuilt(req.City, "summary", time.Since(start), err)
		}
	}()

	if a.opts.Strict {
		if _, err := location.ResolveStrict(req.Tree.Root, req.Location); err != nil {
			return nil, err
		}
	}
	ref, err := a.period(ctx, req)
	if err != nil {
		return nil, err
	}

	periods := []models.YearMonth{ref.AddMonths(-12), ref.AddMonths(-1), ref}
	series, err := Load(ctx, a.store, req.City, req.Location, req.PropertyTypes, periods)
	if err != nil {
		return nil, fmt.Errorf("failed to build summary: %w", err)
	}

	return Summarize(req.City, req.Location, req.PropertyTypes, series[2], series[1], series[0]), nil
}

// Summarize builds a summary from the three months it compares.
func Summarize(city, loc string, propertyTypes []string, thisMonth, lastMonth, lastYear Entry) *models.Summary {
	sum := &models.Summary{
		City:      city,
		Location:  loc,
		ThisMonth: summarizePeriod(thisMonth, propertyTypes),
		LastMonth: summarizePeriod(lastMonth, propertyTypes),
		LastYear:  summarizePeriod(lastYear, propertyTypes),
		Changes:   make(map[string]models.PriceChange, len(propertyTypes)),
	}
	for _, pt := range propertyTypes {
		price := sum.ThisMonth.Types[pt].BenchmarkPrice
		sum.Changes[pt] = models.PriceChange{
			BenchmarkPriceDeltaMTM: stats.Delta(price, sum.LastMonth.Types[pt].BenchmarkPrice),
			BenchmarkPriceDeltaYTY: stats.Delta(price, sum.LastYear.Types[pt].BenchmarkPrice),
		}
	}
	return sum
}

func summarizePeriod(e Entry, propertyTypes []string) models.PeriodSummary {
	ps := models.PeriodSummary{
		Period: e.Period,
		Types:  make(map[string]models.Stats, len(propertyTypes)),
	}

	var sold, active []*float64
	var dom []stats.Pair
	for _, pt := range propertyTypes {
		var s models.Stats
		if d := e.Data[pt]; d != nil {
			s = d.Clone()
		}
		ps.Types[pt] = s
		sold = append(sold, s.Sold)
		active = append(active, s.Active)
		dom = append(dom, stats.Pair{Value: s.DOM, Weight: s.Sold})
	}

	ps.SoldTotal = stats.Sum(sold...)
	ps.ActiveTotal = stats.Sum(active...)
	ps.DOMAvg = stats.CeilPtr(stats.WeightedAverage(dom))
	ps.MOI = stats.Ratio(ps.ActiveTotal, ps.SoldTotal)
	ps.ListingAbsorption = stats.Percent(ps.SoldTotal, ps.ActiveTotal)
	return ps
}
