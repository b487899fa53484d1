// Package firestore stores statistics in Cloud Firestore, one collection
// tree per city:
//
//	cities/{city}                      ranges, lastAvailable
//	cities/{city}/periods/{id}         one stat period
//	cities/{city}/distributions/{ym}   the buckets of one month
package firestore

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"marketstats/server/internal/models"
)

type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

type periodDoc struct {
	Location          string    `firestore:"location"`
	PropertyType      string    `firestore:"propertyType"`
	Year              int       `firestore:"year"`
	Month             int       `firestore:"month"`
	Sold              *float64  `firestore:"sold"`
	Active            *float64  `firestore:"active"`
	DOM               *float64  `firestore:"dom"`
	BenchmarkPrice    *float64  `firestore:"benchmarkPrice"`
	BenchmarkPriceYTD *float64  `firestore:"benchmarkPriceYTD"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

type distributionDoc struct {
	Rows []bucketDoc `firestore:"rows"`
}

type bucketDoc struct {
	RangeFrom float64             `firestore:"rangeFrom"`
	Values    map[string]*float64 `firestore:"values"`
}

type cityDoc struct {
	Ranges        []float64     `firestore:"ranges,omitempty"`
	LastAvailable *yearMonthDoc `firestore:"lastAvailable,omitempty"`
}

type yearMonthDoc struct {
	Year  int `firestore:"year"`
	Month int `firestore:"month"`
}

// PeriodDocID is the document id of a period inside its city. Location
// names may contain "/", which Firestore ids cannot.
func PeriodDocID(key models.PeriodKey) string {
	return fmt.Sprintf("%s|%s|%04d-%02d", url.PathEscape(key.Location), url.PathEscape(key.PropertyType), key.Year, key.Month)
}

func (s *Store) city(city string) *firestore.DocumentRef {
	return s.client.Collection("cities").Doc(city)
}

func (s *Store) GetPeriod(ctx context.Context, key models.PeriodKey) (*models.StatPeriod, error) {
	snap, err := s.city(key.City).Collection("periods").Doc(PeriodDocID(key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}

	var doc periodDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode period: %w", err)
	}
	return &models.StatPeriod{
		Key: key,
		Stats: models.Stats{
			Sold:              doc.Sold,
			Active:            doc.Active,
			DOM:               doc.DOM,
			BenchmarkPrice:    doc.BenchmarkPrice,
			BenchmarkPriceYTD: doc.BenchmarkPriceYTD,
		},
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Store) PutPeriod(ctx context.Context, key models.PeriodKey, st models.Stats) error {
	doc := periodDoc{
		Location:          key.Location,
		PropertyType:      key.PropertyType,
		Year:              key.Year,
		Month:             key.Month,
		Sold:              st.Sold,
		Active:            st.Active,
		DOM:               st.DOM,
		BenchmarkPrice:    st.BenchmarkPrice,
		BenchmarkPriceYTD: st.BenchmarkPriceYTD,
		UpdatedAt:         time.Now().UTC(),
	}
	if _, err := s.city(key.City).Collection("periods").Doc(PeriodDocID(key)).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to save period: %w", err)
	}
	return nil
}

func (s *Store) GetDistribution(ctx context.Context, city string, ym models.YearMonth) ([]models.DistributionRow, error) {
	snap, err := s.city(city).Collection("distributions").Doc(ym.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distribution: %w", err)
	}

	var doc distributionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode distribution: %w", err)
	}
	rows := make([]models.DistributionRow, len(doc.Rows))
	for i, b := range doc.Rows {
		values := b.Values
		if values == nil {
			values = map[string]*float64{}
		}
		rows[i] = models.DistributionRow{RangeFrom: b.RangeFrom, Values: values}
	}
	return rows, nil
}

func (s *Store) PutDistribution(ctx context.Context, city string, ym models.YearMonth, rows []models.DistributionRow) error {
	doc := distributionDoc{Rows: make([]bucketDoc, len(rows))}
	for i, r := range rows {
		doc.Rows[i] = bucketDoc{RangeFrom: r.RangeFrom, Values: r.Values}
	}
	if _, err := s.city(city).Collection("distributions").Doc(ym.String()).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to save distribution: %w", err)
	}
	return nil
}

func (s *Store) getCity(ctx context.Context, city string) (*cityDoc, error) {
	snap, err := s.city(city).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get city: %w", err)
	}
	var doc cityDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode city: %w", err)
	}
	return &doc, nil
}

func (s *Store) GetDistributionRanges(ctx context.Context, city string) ([]float64, error) {
	doc, err := s.getCity(ctx, city)
	if err != nil || doc == nil {
		return nil, err
	}
	if len(doc.Ranges) == 0 {
		return nil, nil
	}
	ranges := append([]float64(nil), doc.Ranges...)
	sort.Float64s(ranges)
	return ranges, nil
}

func (s *Store) PutDistributionRanges(ctx context.Context, city string, ranges []float64) error {
	_, err := s.city(city).Set(ctx, map[string]interface{}{"ranges": ranges}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to save distribution ranges: %w", err)
	}
	return nil
}

func (s *Store) GetLastAvailable(ctx context.Context, city string) (*models.YearMonth, error) {
	doc, err := s.getCity(ctx, city)
	if err != nil || doc == nil || doc.LastAvailable == nil {
		return nil, err
	}
	return &models.YearMonth{Year: doc.LastAvailable.Year, Month: doc.LastAvailable.Month}, nil
}

func (s *Store) PutLastAvailable(ctx context.Context, city string, ym models.YearMonth) error {
	_, err := s.city(city).Set(ctx, map[string]interface{}{
		"lastAvailable": map[string]interface{}{"year": ym.Year, "month": ym.Month},
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to save last available month: %w", err)
	}
	return nil
}

func (s *Store) ListLocations(ctx context.Context, city string) ([]string, error) {
	iter := s.city(city).Collection("periods").Select("location").Documents(ctx)
	defer iter.Stop()

	seen := make(map[string]struct{})
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list locations: %w", err)
		}
		name, err := snap.DataAt("location")
		if err != nil {
			continue
		}
		if str, ok := name.(string); ok {
			seen[str] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
