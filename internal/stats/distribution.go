package stats

import (
	"sort"

	"marketstats/server/internal/models"
)

// MergeDistribution joins stored buckets with the configured boundaries so
// that every boundary appears in the result. Stored rows keep their values,
// boundaries with no stored row get an empty one, and stored rows outside
// the configured set are kept. The result is ordered by RangeFrom.
func MergeDistribution(stored []models.DistributionRow, ranges []float64) []models.DistributionRow {
	byRange := make(map[float64]models.DistributionRow, len(stored)+len(ranges))
	for _, row := range stored {
		existing, ok := byRange[row.RangeFrom]
		if !ok {
			byRange[row.RangeFrom] = cloneRow(row)
			continue
		}
		for pt, v := range row.Values {
			existing.Values[pt] = v
		}
	}
	for _, from := range ranges {
		if _, ok := byRange[from]; !ok {
			byRange[from] = models.DistributionRow{RangeFrom: from, Values: map[string]*float64{}}
		}
	}

	merged := make([]models.DistributionRow, 0, len(byRange))
	for _, row := range byRange {
		merged = append(merged, row)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].RangeFrom < merged[j].RangeFrom })
	return merged
}

// Buckets projects distribution rows onto one property type and computes
// each bucket's share of the type's total.
func Buckets(rows []models.DistributionRow, propertyType string) []models.Bucket {
	values := make([]*float64, len(rows))
	for i, row := range rows {
		values[i] = row.Value(propertyType)
	}
	total := Sum(values...)

	buckets := make([]models.Bucket, len(rows))
	for i, row := range rows {
		buckets[i] = models.Bucket{
			RangeFrom: row.RangeFrom,
			Value:     values[i],
			Percent:   Percent(values[i], total),
		}
	}
	return buckets
}

// RangesOf returns the boundaries of the rows in ascending order.
func RangesOf(rows []models.DistributionRow) []float64 {
	ranges := make([]float64, 0, len(rows))
	for _, row := range rows {
		ranges = append(ranges, row.RangeFrom)
	}
	sort.Float64s(ranges)
	return ranges
}

func cloneRow(row models.DistributionRow) models.DistributionRow {
	values := make(map[string]*float64, len(row.Values))
	for pt, v := range row.Values {
		values[pt] = v
	}
	return models.DistributionRow{RangeFrom: row.RangeFrom, Values: values}
}
