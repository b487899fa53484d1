package models

import (
	"encoding/json"
	"fmt"
)

// RowAttrs identifies the period a report row describes.
type RowAttrs struct {
	Date  string `json:"date"`
	Month int    `json:"month"`
	Year  int    `json:"year"`
}

// TypeReport is the per property type payload of a report row.
type TypeReport struct {
	Sold              *float64 `json:"sold"`
	Active            *float64 `json:"active"`
	DOM               *float64 `json:"dom"`
	BenchmarkPrice    *float64 `json:"benchmarkPrice"`
	BenchmarkPriceYTD *float64 `json:"benchmarkPriceYTD"`

	SoldPercent   *float64 `json:"soldPercent"`
	UnsoldPercent *float64 `json:"unsoldPercent"`

	SoldDelta              *float64 `json:"soldDelta"`
	ActiveDelta            *float64 `json:"activeDelta"`
	SoldPercentDelta       *float64 `json:"soldPercentDelta"`
	BenchmarkPriceDelta    *float64 `json:"benchmarkPriceDelta"`
	BenchmarkPriceYTDDelta *float64 `json:"benchmarkPriceYTDDelta"`
	DOMDelta               *float64 `json:"domDelta"`

	// Set on the most recent month row only.
	SoldYTYDelta              *float64 `json:"soldYTYDelta,omitempty"`
	ActiveYTYDelta            *float64 `json:"activeYTYDelta,omitempty"`
	SoldPercentYTYDelta       *float64 `json:"soldPercentYTYDelta,omitempty"`
	BenchmarkPriceYTYDelta    *float64 `json:"benchmarkPriceYTYDelta,omitempty"`
	BenchmarkPriceYTDYTYDelta *float64 `json:"benchmarkPriceYTDYTYDelta,omitempty"`
	DOMYTYDelta               *float64 `json:"domYTYDelta,omitempty"`
	MarketDistribution        []Bucket `json:"marketDistribution,omitempty"`

	// Set on the most recent year row only.
	BenchmarkPriceTotalDelta *float64 `json:"benchmarkPriceTotalDelta,omitempty"`

	// YearOverYear makes the year over year deltas serialize even when
	// they are null.
	YearOverYear bool `json:"-"`
}

// MarshalJSON writes the year over year keys as null on the most recent
// month when there is no record a year earlier.
func (t TypeReport) MarshalJSON() ([]byte, error) {
	type plain TypeReport
	if !t.YearOverYear {
		return json.Marshal(plain(t))
	}
	return json.Marshal(struct {
		plain
		SoldYTYDelta              *float64 `json:"soldYTYDelta"`
		ActiveYTYDelta            *float64 `json:"activeYTYDelta"`
		SoldPercentYTYDelta       *float64 `json:"soldPercentYTYDelta"`
		BenchmarkPriceYTYDelta    *float64 `json:"benchmarkPriceYTYDelta"`
		BenchmarkPriceYTDYTYDelta *float64 `json:"benchmarkPriceYTDYTYDelta"`
		DOMYTYDelta               *float64 `json:"domYTYDelta"`
	}{
		plain:                     plain(t),
		SoldYTYDelta:              t.SoldYTYDelta,
		ActiveYTYDelta:            t.ActiveYTYDelta,
		SoldPercentYTYDelta:       t.SoldPercentYTYDelta,
		BenchmarkPriceYTYDelta:    t.BenchmarkPriceYTYDelta,
		BenchmarkPriceYTDYTYDelta: t.BenchmarkPriceYTDYTYDelta,
		DOMYTYDelta:               t.DOMYTYDelta,
	})
}

// ReportRow is one month or year of a report. Types holds one entry per
// property type, serialized in the order of PropertyTypes.
type ReportRow struct {
	Attrs         RowAttrs
	PropertyTypes []string
	Types         map[string]*TypeReport
}

// NewReportRow returns a row with an empty payload for every property type.
func NewReportRow(ym YearMonth, propertyTypes []string) ReportRow {
	row := ReportRow{
		Attrs: RowAttrs{
			Date:  ym.String(),
			Month: ym.Month,
			Year:  ym.Year,
		},
		PropertyTypes: propertyTypes,
		Types:         make(map[string]*TypeReport, len(propertyTypes)),
	}
	for _, pt := range propertyTypes {
		row.Types[pt] = &TypeReport{}
	}
	return row
}

// Type returns the payload of a property type, or nil if the row does not carry it.
func (r ReportRow) Type(propertyType string) *TypeReport {
	return r.Types[propertyType]
}

// MarshalJSON writes {"attrs": ..., "<type>": ...} with property types in order.
func (r ReportRow) MarshalJSON() ([]byte, error) {
	buf := []byte(`{"attrs":`)
	attrs, err := json.Marshal(r.Attrs)
	if err != nil {
		return nil, err
	}
	buf = append(buf, attrs...)

	for _, pt := range r.PropertyTypes {
		if pt == "attrs" {
			return nil, fmt.Errorf("property type name %q is reserved", pt)
		}
		payload, err := json.Marshal(r.Types[pt])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", pt, err)
		}
		key, _ := json.Marshal(pt)
		buf = append(buf, ',')
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, payload...)
	}
	return append(buf, '}'), nil
}

// Report is the payload returned for one location.
type Report struct {
	City      string      `json:"city"`
	Location  string      `json:"location"`
	Path      []string    `json:"path"`
	Matched   bool        `json:"matched"`
	Months    []ReportRow `json:"months"`
	Years     []ReportRow `json:"years"`
	CityYears []ReportRow `json:"cityYears,omitempty"`
}

// PeriodSummary is the market overview of one month.
type PeriodSummary struct {
	Period            YearMonth        `json:"period"`
	Types             map[string]Stats `json:"types"`
	SoldTotal         *float64         `json:"soldTotal"`
	ActiveTotal       *float64         `json:"activeTotal"`
	DOMAvg            *float64         `json:"domAvg"`
	MOI               *float64         `json:"moi"`
	ListingAbsorption *float64         `json:"listingAbsorption"`
}

// PriceChange holds the benchmark price deltas of one property type.
type PriceChange struct {
	BenchmarkPriceDeltaMTM *float64 `json:"benchmarkPriceDeltaMTM"`
	BenchmarkPriceDeltaYTY *float64 `json:"benchmarkPriceDeltaYTY"`
}

// Summary compares a month with the previous month and the same month a
// year earlier.
type Summary struct {
	City      string                 `json:"city"`
	Location  string                 `json:"location"`
	ThisMonth PeriodSummary          `json:"thisMonth"`
	LastMonth PeriodSummary          `json:"lastMonth"`
	LastYear  PeriodSummary          `json:"lastYear"`
	Changes   map[string]PriceChange `json:"changes"`
}
