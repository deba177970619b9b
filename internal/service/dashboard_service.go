package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cwaweather/backend/internal/domain"
)

var (
	ErrBatchNotFound     = errors.New("batch not found")
	ErrInvalidTrendField = errors.New("trend field must be min or max")
)

// DefaultTrendBatches is how many batches a trend covers when no limit is given
const DefaultTrendBatches = 10

// ExportHeader is the column order of the CSV export
var ExportHeader = []string{"location", "min_temp", "max_temp", "description", "batch_id", "fetch_time"}

// DashboardService builds the read model behind the dashboard API
type DashboardService struct {
	repo         BatchRepository
	trendBatches int
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(repo BatchRepository, trendBatches int) *DashboardService {
	if trendBatches <= 0 {
		trendBatches = DefaultTrendBatches
	}
	return &DashboardService{
		repo:         repo,
		trendBatches: trendBatches,
	}
}

// Batches returns one summary per stored batch, newest first
func (s *DashboardService) Batches(ctx context.Context) ([]domain.BatchSummary, error) {
	return s.repo.BatchList(ctx)
}

// Stats returns table-wide aggregates
func (s *DashboardService) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx)
}

// Health reports store connectivity
func (s *DashboardService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}

// View returns records, markers and chart series for a batch. batchID may be
// domain.LatestBatch; an empty store then yields an empty view.
func (s *DashboardService) View(ctx context.Context, batchID string) (domain.BatchView, error) {
	records, err := s.records(ctx, batchID)
	if err != nil {
		return domain.BatchView{}, err
	}

	view := domain.BatchView{
		Records: records,
		Markers: BuildMarkers(records),
		Series:  BuildSeries(records),
		Center:  domain.TaiwanCenter,
	}
	if len(records) > 0 {
		view.BatchID = records[0].BatchID
	}
	return view, nil
}

// Trend returns, per location, the min or max temperature across the most
// recent limit batches, oldest first
func (s *DashboardService) Trend(ctx context.Context, field string, limit int) ([]domain.TrendSeries, error) {
	var pick func(domain.WeatherRecord) *float64
	switch field {
	case "min":
		pick = func(r domain.WeatherRecord) *float64 { return r.MinTemp }
	case "max":
		pick = func(r domain.WeatherRecord) *float64 { return r.MaxTemp }
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidTrendField, field)
	}
	if limit <= 0 {
		limit = s.trendBatches
	}

	batches, err := s.repo.BatchList(ctx)
	if err != nil {
		return nil, err
	}
	if len(batches) > limit {
		batches = batches[:limit]
	}

	// Load the batches concurrently; results keep their slot so order survives
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		errs    []error
		results = make([][]domain.WeatherRecord, len(batches))
	)
	for i, b := range batches {
		wg.Add(1)
		go func(i int, batchID string) {
			defer wg.Done()
			records, err := s.repo.Batch(ctx, batchID)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			results[i] = records
		}(i, b.BatchID)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	byLocation := map[string][]domain.TrendPoint{}
	for i := len(batches) - 1; i >= 0; i-- {
		for _, rec := range results[i] {
			byLocation[rec.Location] = append(byLocation[rec.Location], domain.TrendPoint{
				BatchID:   batches[i].BatchID,
				BatchTime: batches[i].CreatedAt,
				Value:     pick(rec),
			})
		}
	}

	locations := make([]string, 0, len(byLocation))
	for loc := range byLocation {
		locations = append(locations, loc)
	}
	sort.Strings(locations)

	series := make([]domain.TrendSeries, 0, len(locations))
	for _, loc := range locations {
		series = append(series, domain.TrendSeries{Location: loc, Points: byLocation[loc]})
	}
	return series, nil
}

// ExportRows returns the CSV rows of a batch, header first, together with the
// resolved batch id
func (s *DashboardService) ExportRows(ctx context.Context, batchID string) (string, [][]string, error) {
	records, err := s.records(ctx, batchID)
	if err != nil {
		return "", nil, err
	}
	if len(records) == 0 {
		return "", nil, ErrBatchNotFound
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, ExportHeader)
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Location,
			formatTemp(rec.MinTemp),
			formatTemp(rec.MaxTemp),
			formatText(rec.Description),
			rec.BatchID,
			rec.FetchTime.Format("2006-01-02 15:04:05"),
		})
	}
	return records[0].BatchID, rows, nil
}

func (s *DashboardService) records(ctx context.Context, batchID string) ([]domain.WeatherRecord, error) {
	if batchID == domain.LatestBatch {
		return s.repo.LatestBatch(ctx)
	}

	records, err := s.repo.Batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, batchID)
	}
	return records, nil
}

func formatTemp(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatText(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
