package importer

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
)

// ErrInvalidWorkbook is returned for workbooks without the expected layout.
var ErrInvalidWorkbook = errors.New("invalid statistics workbook")

const (
	headerRow = 2 // zero-based, rows 1-2 are preamble
	nameCol   = 0 // A
	periodCol = 2 // C
)

// columns maps zero-based sheet columns to statistic fields.
var columns = map[int]string{
	2:  models.FieldSold,              // C
	8:  models.FieldActive,            // I
	9:  models.FieldDOM,               // J
	17: models.FieldBenchmarkPrice,    // R
	20: models.FieldBenchmarkPriceYTD, // U
}

// Workbook is the parsed content of a monthly statistics file.
type Workbook struct {
	Period        models.YearMonth
	PropertyTypes []string
	// Records by property type, then location name.
	Records map[string]map[string]models.Stats
	// Names found in the sheets that the hierarchy does not know.
	Unknown []string
}

// Parse reads a workbook with one sheet per property type. The report
// month is taken from the header cell C3 of the first sheet.
func Parse(r io.Reader, tree *location.Tree) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: no sheets", ErrInvalidWorkbook)
	}

	wb := &Workbook{Records: make(map[string]map[string]models.Stats)}
	unknown := make(map[string]bool)
	for i, sheet := range sheets {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}
		if i == 0 {
			period, err := reportPeriod(rows)
			if err != nil {
				return nil, err
			}
			wb.Period = period
		}
		if len(rows) <= headerRow {
			continue
		}

		pt := strings.ToLower(strings.TrimSpace(sheet))
		records := make(map[string]models.Stats)
		for _, row := range rows[headerRow+1:] {
			if len(row) <= nameCol {
				continue
			}
			name := strings.TrimSpace(row[nameCol])
			if name == "" {
				continue
			}
			if !tree.Contains(name) {
				unknown[name] = true
				continue
			}
			if _, seen := records[name]; seen {
				continue
			}
			records[name] = parseRow(row)
		}
		wb.PropertyTypes = append(wb.PropertyTypes, pt)
		wb.Records[pt] = records
	}

	for name := range unknown {
		wb.Unknown = append(wb.Unknown, name)
	}
	return wb, nil
}

func reportPeriod(rows [][]string) (models.YearMonth, error) {
	if len(rows) <= headerRow || len(rows[headerRow]) <= periodCol {
		return models.YearMonth{}, fmt.Errorf("%w: missing header row", ErrInvalidWorkbook)
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(rows[headerRow][periodCol]), 64)
	if err != nil {
		return models.YearMonth{}, fmt.Errorf("%w: header cell C3 is not a date", ErrInvalidWorkbook)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return models.YearMonth{}, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	return models.YearMonth{Year: t.Year(), Month: int(t.Month())}, nil
}

func parseRow(row []string) models.Stats {
	var s models.Stats
	for col, field := range columns {
		if col >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v = math.Round(v)
		switch field {
		case models.FieldSold:
			s.Sold = &v
		case models.FieldActive:
			s.Active = &v
		case models.FieldDOM:
			s.DOM = &v
		case models.FieldBenchmarkPrice:
			s.BenchmarkPrice = &v
		case models.FieldBenchmarkPriceYTD:
			s.BenchmarkPriceYTD = &v
		}
	}
	return s
}
