// Package report assembles month and year reports and market summaries from
// stored statistics.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
	"marketstats/server/internal/stats"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrNoData is returned when a city has no last available month and the
// request did not name one.
var ErrNoData = errors.New("no data available")

// PeriodReader reads single stat periods. A missing record is (nil, nil).
type PeriodReader interface {
	GetPeriod(ctx context.Context, key models.PeriodKey) (*models.StatPeriod, error)
}

// Store is everything the assembler reads.
type Store interface {
	PeriodReader
	GetDistribution(ctx context.Context, city string, ym models.YearMonth) ([]models.DistributionRow, error)
	GetDistributionRanges(ctx context.Context, city string) ([]float64, error)
	GetLastAvailable(ctx context.Context, city string) (*models.YearMonth, error)
}

// Observer is notified of every assembled report.
type Observer interface {
	ReportBuilt(city, kind string, d time.Duration, err error)
}

type Options struct {
	Months        int
	Years         int
	DefaultRanges []float64
	// Strict rejects locations that are not in the city hierarchy instead
	// of looking them up as a bare key under the root.
	Strict bool
}

type Assembler struct {
	store    Store
	logger   *logrus.Logger
	opts     Options
	observer Observer
}

func NewAssembler(store Store, logger *logrus.Logger, opts Options, observer Observer) *Assembler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if opts.Months < 2 {
		opts.Months = 14
	}
	if opts.Years < 2 {
		opts.Years = 11
	}
	return &Assembler{store: store, logger: logger, opts: opts, observer: observer}
}

// Request names what to report on. A zero Period means the city's last
// available month.
type Request struct {
	City          string
	Tree          *location.Tree
	PropertyTypes []string
	Location      string
	Period        models.YearMonth
}

// Build assembles the month and year rows of a location. Missing periods
// become null rows; only storage failures abort the report.
func (a *Assembler) Build(ctx context.Context, req Request) (rep *models.Report, err error) {
	start := time.Now()
	defer func() {
		if a.observer != nil {
			a.observer.ReportBuilt(req.City, "report", time.Since(start), err)
		}
	}()

	path, mismatch := location.ResolveStrict(req.Tree.Root, req.Location)
	if mismatch != nil {
		if a.opts.Strict {
			return nil, mismatch
		}
		a.logger.WithFields(logrus.Fields{
			"city":     req.City,
			"location": req.Location,
		}).Warn("Location not in hierarchy, using bare key")
	}

	ref, err := a.period(ctx, req)
	if err != nil {
		return nil, err
	}

	isRoot := req.Tree.IsRoot(req.Location)
	var months, years, cityYears Series
	var distribution []models.DistributionRow

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		months, err = Load(gctx, a.store, req.City, req.Location, req.PropertyTypes, MonthPeriods(ref, a.opts.Months))
		return err
	})
	g.Go(func() error {
		var err error
		years, err = Load(gctx, a.store, req.City, req.Location, req.PropertyTypes, YearPeriods(ref, a.opts.Years))
		return err
	})
	if isRoot {
		g.Go(func() error {
			var err error
			distribution, err = a.Distribution(gctx, req.City, ref)
			return err
		})
	} else {
		g.Go(func() error {
			var err error
			cityYears, err = Load(gctx, a.store, req.City, req.Tree.Root.Name, req.PropertyTypes, YearPeriods(ref, a.opts.Years))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"city":     req.City,
			"location": req.Location,
			"period":   ref.String(),
		}).Error("Failed to load report data")
		return nil, fmt.Errorf("failed to build report: %w", err)
	}

	rep = &models.Report{
		City:     req.City,
		Location: req.Location,
		Path:     path.Keys,
		Matched:  path.Matched,
		Months:   MonthRows(months, req.PropertyTypes, distribution),
		Years:    YearRows(years, req.PropertyTypes),
	}
	if !isRoot {
		rep.CityYears = YearRows(cityYears, req.PropertyTypes)
	}
	return rep, nil
}

// Distribution returns the stored distribution of a month merged with the
// city's ranges, or the configured defaults when the city has none. It is
// nil when no distribution is stored for the month.
func (a *Assembler) Distribution(ctx context.Context, city string, ym models.YearMonth) ([]models.DistributionRow, error) {
	rows, err := a.store.GetDistribution(ctx, city, ym)
	if err != nil {
		return nil, fmt.Errorf("failed to load distribution: %w", err)
	}
	if rows == nil {
		return nil, nil
	}
	ranges, err := a.Ranges(ctx, city)
	if err != nil {
		return nil, err
	}
	return stats.MergeDistribution(rows, ranges), nil
}

// Ranges returns the stored bucket boundaries of a city or the defaults.
func (a *Assembler) Ranges(ctx context.Context, city string) ([]float64, error) {
	ranges, err := a.store.GetDistributionRanges(ctx, city)
	if err != nil {
		return nil, fmt.Errorf("failed to load distribution ranges: %w", err)
	}
	if ranges == nil {
		return a.opts.DefaultRanges, nil
	}
	return ranges, nil
}

func (a *Assembler) period(ctx context.Context, req Request) (models.YearMonth, error) {
	if req.Period != (models.YearMonth{}) {
		return req.Period, nil
	}
	last, err := a.store.GetLastAvailable(ctx, req.City)
	if err != nil {
		return models.YearMonth{}, fmt.Errorf("failed to load last available month: %w", err)
	}
	if last == nil {
		return models.YearMonth{}, ErrNoData
	}
	return *last, nil
}
