package report

import (
	"marketstats/server/internal/models"
	"marketstats/server/internal/stats"
)

// MonthRows builds one row per entry except the first, which only serves
// as the baseline of the second. Deltas need a record in both months. The
// last row also carries year over year deltas, taken from the entry of the
// same month a year earlier when the series holds it, and the distribution
// buckets when distribution is not nil.
func MonthRows(series Series, propertyTypes []string, distribution []models.DistributionRow) []models.ReportRow {
	if len(series) < 2 {
		return []models.ReportRow{}
	}

	rows := make([]models.ReportRow, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		last := i == len(series)-1
		row := models.NewReportRow(cur.Period, propertyTypes)

		for _, pt := range propertyTypes {
			c := cur.Data[pt]
			if c == nil {
				continue
			}
			out := row.Types[pt]
			fillRaw(out, c)

			if p := prev.Data[pt]; p != nil {
				prevSoldPercent := stats.Percent(p.Sold, p.Active)
				out.SoldDelta = stats.Delta(c.Sold, p.Sold)
				out.ActiveDelta = stats.Delta(c.Active, p.Active)
				out.SoldPercentDelta = stats.Delta(out.SoldPercent, prevSoldPercent)
				out.BenchmarkPriceDelta = stats.Delta(c.BenchmarkPrice, p.BenchmarkPrice)
				out.BenchmarkPriceYTDDelta = stats.Delta(c.BenchmarkPriceYTD, p.BenchmarkPriceYTD)
				out.DOMDelta = stats.Delta(c.DOM, p.DOM)
			}

			if !last {
				continue
			}
			out.YearOverYear = true
			if distribution != nil {
				out.MarketDistribution = stats.Buckets(distribution, pt)
			}
			yearAgo, ok := series.Find(cur.Period.AddMonths(-12))
			if !ok || !yearAgo.Has(pt) {
				continue
			}
			y := yearAgo.Data[pt]
			out.SoldYTYDelta = stats.Delta(c.Sold, y.Sold)
			out.ActiveYTYDelta = stats.Delta(c.Active, y.Active)
			out.SoldPercentYTYDelta = stats.Delta(out.SoldPercent, stats.Percent(y.Sold, y.Active))
			out.BenchmarkPriceYTYDelta = stats.Delta(c.BenchmarkPrice, y.BenchmarkPrice)
			out.BenchmarkPriceYTDYTYDelta = stats.Delta(c.BenchmarkPriceYTD, y.BenchmarkPriceYTD)
			out.DOMYTYDelta = stats.Delta(c.DOM, y.DOM)
		}
		rows = append(rows, row)
	}
	return rows
}

// YearRows builds one row per entry except the first, carrying only the
// year-to-date benchmark price and its change against the previous row.
// The last row also carries the change from the first row to the last.
func YearRows(series Series, propertyTypes []string) []models.ReportRow {
	if len(series) < 2 {
		return []models.ReportRow{}
	}

	first := series[1]
	final := series[len(series)-1]

	rows := make([]models.ReportRow, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		row := models.NewReportRow(cur.Period, propertyTypes)

		for _, pt := range propertyTypes {
			out := row.Types[pt]
			if c := cur.Data[pt]; c != nil {
				out.BenchmarkPriceYTD = c.BenchmarkPriceYTD
				if p := prev.Data[pt]; p != nil {
					out.BenchmarkPriceYTDDelta = stats.Delta(c.BenchmarkPriceYTD, p.BenchmarkPriceYTD)
				}
			}
			if i == len(series)-1 && first.Has(pt) && final.Has(pt) {
				out.BenchmarkPriceTotalDelta = stats.Delta(final.Data[pt].BenchmarkPriceYTD, first.Data[pt].BenchmarkPriceYTD)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func fillRaw(out *models.TypeReport, s *models.Stats) {
	out.Sold = s.Sold
	out.Active = s.Active
	out.DOM = s.DOM
	out.BenchmarkPrice = s.BenchmarkPrice
	out.BenchmarkPriceYTD = s.BenchmarkPriceYTD

	out.SoldPercent = stats.Percent(s.Sold, s.Active)
	if out.SoldPercent != nil {
		unsold := stats.Round2(100 - *out.SoldPercent)
		if unsold < 0 {
			unsold = 0
		}
		out.UnsoldPercent = &unsold
	}
}
