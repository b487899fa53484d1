package models

import (
	"fmt"
	"time"
)

// Field names of a StatPeriod, in the order they are reported.
const (
	FieldSold              = "sold"
	FieldActive            = "active"
	FieldDOM               = "dom"
	FieldBenchmarkPrice    = "benchmarkPrice"
	FieldBenchmarkPriceYTD = "benchmarkPriceYTD"
)

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewYearMonth normalizes month overflow, so NewYearMonth(2024, 0) is 2023-12.
func NewYearMonth(year, month int) YearMonth {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

// AddMonths returns the month n months after ym (n may be negative).
func (ym YearMonth) AddMonths(n int) YearMonth {
	return NewYearMonth(ym.Year, ym.Month+n)
}

// Before reports whether ym is strictly earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// Valid reports whether the month is within 1..12.
func (ym YearMonth) Valid() bool {
	return ym.Month >= 1 && ym.Month <= 12 && ym.Year > 0
}

// String formats the month as YYYY-MM.
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// PeriodKey addresses one StatPeriod record.
type PeriodKey struct {
	City         string `json:"city"`
	Location     string `json:"location"`
	PropertyType string `json:"property_type"`
	Year         int    `json:"year"`
	Month        int    `json:"month"`
}

// YearMonth returns the calendar month of the key.
func (k PeriodKey) YearMonth() YearMonth {
	return YearMonth{Year: k.Year, Month: k.Month}
}

// Stats holds the optional figures of one location, property type and month.
// A nil field means no data; zero is a valid count.
type Stats struct {
	Sold              *float64 `json:"sold"`
	Active            *float64 `json:"active"`
	DOM               *float64 `json:"dom"`
	BenchmarkPrice    *float64 `json:"benchmarkPrice"`
	BenchmarkPriceYTD *float64 `json:"benchmarkPriceYTD"`
}

// IsEmpty reports whether no field carries a value.
func (s Stats) IsEmpty() bool {
	return s.Sold == nil && s.Active == nil && s.DOM == nil &&
		s.BenchmarkPrice == nil && s.BenchmarkPriceYTD == nil
}

// Clone returns a deep copy so callers can mutate fields independently.
func (s Stats) Clone() Stats {
	return Stats{
		Sold:              copyFloat(s.Sold),
		Active:            copyFloat(s.Active),
		DOM:               copyFloat(s.DOM),
		BenchmarkPrice:    copyFloat(s.BenchmarkPrice),
		BenchmarkPriceYTD: copyFloat(s.BenchmarkPriceYTD),
	}
}

// StatPeriod is a stored Stats record with its key.
type StatPeriod struct {
	Key       PeriodKey `json:"key"`
	Stats     Stats     `json:"stats"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
