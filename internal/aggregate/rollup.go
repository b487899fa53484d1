// Package aggregate writes derived statistics back to storage: parent
// rollups computed from children and year-to-date benchmark averages.
package aggregate

import (
	"context"
	"fmt"

	"marketstats/server/internal/location"
	"marketstats/server/internal/models"
	"marketstats/server/internal/stats"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PeriodStore is the storage the aggregators read children from and write
// derived records to. A missing record is (nil, nil).
type PeriodStore interface {
	GetPeriod(ctx context.Context, key models.PeriodKey) (*models.StatPeriod, error)
	PutPeriod(ctx context.Context, key models.PeriodKey, s models.Stats) error
}

// Rollup derives rollup targets from their children's stored statistics.
type Rollup struct {
	store       PeriodStore
	logger      *logrus.Logger
	concurrency int
}

// NewRollup creates a Rollup. concurrency bounds the number of nodes of one
// level computed at the same time; values below 1 mean unbounded.
func NewRollup(store PeriodStore, logger *logrus.Logger, concurrency int) *Rollup {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Rollup{store: store, logger: logger, concurrency: concurrency}
}

// RollupResult counts what a tree rollup wrote.
type RollupResult struct {
	Levels  int
	Written int
}

// Tree rolls up every target of the tree for one month. Levels run in
// order so that each level reads children already written by the previous
// one; nodes inside a level run concurrently.
func (r *Rollup) Tree(ctx context.Context, tree *location.Tree, propertyTypes []string, ym models.YearMonth) (RollupResult, error) {
	var result RollupResult
	for _, level := range tree.RollupLevels() {
		written := make([]int, len(level.Nodes))

		g, gctx := errgroup.WithContext(ctx)
		if r.concurrency > 0 {
			g.SetLimit(r.concurrency)
		}
		for i, node := range level.Nodes {
			g.Go(func() error {
				n, err := r.Node(gctx, tree.City, node, propertyTypes, ym)
				written[i] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return result, fmt.Errorf("failed to roll up level %d of %s: %w", level.Height, tree.City, err)
		}

		result.Levels++
		for _, n := range written {
			result.Written += n
		}
	}

	r.logger.WithFields(logrus.Fields{
		"city":    tree.City,
		"period":  ym.String(),
		"levels":  result.Levels,
		"written": result.Written,
	}).Info("Rollup completed")
	return result, nil
}

// Node computes the statistics of one parent for every property type from
// its direct children and writes them. Property types for which no child
// has a record are left untouched. It returns the number of records written.
func (r *Rollup) Node(ctx context.Context, city string, node *location.Node, propertyTypes []string, ym models.YearMonth) (int, error) {
	if node.IsLeaf() {
		return 0, nil
	}

	children := make([][]*models.StatPeriod, len(propertyTypes))
	parents := make([]*models.StatPeriod, len(propertyTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, pt := range propertyTypes {
		children[i] = make([]*models.StatPeriod, len(node.Children))
		for j, child := range node.Children {
			g.Go(func() error {
				p, err := r.store.GetPeriod(gctx, periodKey(city, child.Name, pt, ym))
				if err != nil {
					return fmt.Errorf("failed to load %s/%s: %w", child.Name, pt, err)
				}
				children[i][j] = p
				return nil
			})
		}
		g.Go(func() error {
			p, err := r.store.GetPeriod(gctx, periodKey(city, node.Name, pt, ym))
			if err != nil {
				return fmt.Errorf("failed to load %s/%s: %w", node.Name, pt, err)
			}
			parents[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	written := 0
	for i, pt := range propertyTypes {
		s, ok := Combine(children[i])
		if !ok {
			continue
		}
		if parents[i] != nil {
			s.BenchmarkPriceYTD = parents[i].Stats.BenchmarkPriceYTD
		}
		if err := r.store.PutPeriod(ctx, periodKey(city, node.Name, pt, ym), s); err != nil {
			return written, fmt.Errorf("failed to save rollup of %s/%s: %w", node.Name, pt, err)
		}
		written++
	}

	r.logger.WithFields(logrus.Fields{
		"city":     city,
		"location": node.Name,
		"period":   ym.String(),
		"children": len(node.Children),
		"written":  written,
	}).Debug("Rolled up location")
	return written, nil
}

// Combine aggregates child records: sold and active are summed, dom and
// benchmarkPrice are averaged and rounded. Fields stay nil when no child
// has a value. ok is false when no child has a record at all.
func Combine(children []*models.StatPeriod) (models.Stats, bool) {
	var sold, active, dom, price []*float64
	for _, c := range children {
		if c == nil {
			continue
		}
		sold = append(sold, c.Stats.Sold)
		active = append(active, c.Stats.Active)
		dom = append(dom, c.Stats.DOM)
		price = append(price, c.Stats.BenchmarkPrice)
	}
	if len(sold) == 0 {
		return models.Stats{}, false
	}
	return models.Stats{
		Sold:           stats.Sum(sold...),
		Active:         stats.Sum(active...),
		DOM:            stats.RoundPtr(stats.Mean(dom...)),
		BenchmarkPrice: stats.RoundPtr(stats.Mean(price...)),
	}, true
}

func periodKey(city, loc, propertyType string, ym models.YearMonth) models.PeriodKey {
	return models.PeriodKey{
		City:         city,
		Location:     loc,
		PropertyType: propertyType,
		Year:         ym.Year,
		Month:        ym.Month,
	}
}
