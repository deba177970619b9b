package postgres

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwaweather/backend/internal/domain"
)

// MemoryRepository implements domain.BatchRepository in process memory.
// It backs demo mode when PostgreSQL is unreachable and the service tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []domain.WeatherRecord
	nextID  int64
	now     func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{now: time.Now}
}

// Init is a no-op; the table always exists in memory
func (r *MemoryRepository) Init(ctx context.Context) error {
	return nil
}

// InsertBatch appends drafts under batchID with a shared insert timestamp
func (r *MemoryRepository) InsertBatch(ctx context.Context, drafts []domain.WeatherDraft, batchID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, d := range drafts {
		r.nextID++
		r.records = append(r.records, domain.WeatherRecord{
			ID:          r.nextID,
			BatchID:     batchID,
			Location:    d.Location,
			MinTemp:     d.MinTemp,
			MaxTemp:     d.MaxTemp,
			Description: d.Description,
			FetchTime:   now,
			CreatedAt:   now,
		})
	}
	return len(drafts), nil
}

// LatestBatch returns the records of the batch created last
func (r *MemoryRepository) LatestBatch(ctx context.Context) ([]domain.WeatherRecord, error) {
	r.mu.RLock()
	var latest *domain.WeatherRecord
	for i := range r.records {
		rec := &r.records[i]
		if latest == nil || !rec.CreatedAt.Before(latest.CreatedAt) {
			latest = rec
		}
	}
	batchID := ""
	if latest != nil {
		batchID = latest.BatchID
	}
	r.mu.RUnlock()

	if batchID == "" {
		return []domain.WeatherRecord{}, nil
	}
	return r.Batch(ctx, batchID)
}

// Batch returns the records of one batch ordered by location
func (r *MemoryRepository) Batch(ctx context.Context, batchID string) ([]domain.WeatherRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := []domain.WeatherRecord{}
	for _, rec := range r.records {
		if rec.BatchID == batchID {
			results = append(results, rec)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Location < results[j].Location
	})
	return results, nil
}

// BatchList returns one summary per batch, newest first
func (r *MemoryRepository) BatchList(ctx context.Context) ([]domain.BatchSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index := make(map[string]int)
	results := []domain.BatchSummary{}
	for _, rec := range r.records {
		i, ok := index[rec.BatchID]
		if !ok {
			index[rec.BatchID] = len(results)
			results = append(results, domain.BatchSummary{BatchID: rec.BatchID, Count: 1, CreatedAt: rec.CreatedAt})
			continue
		}
		results[i].Count++
		if rec.CreatedAt.Before(results[i].CreatedAt) {
			results[i].CreatedAt = rec.CreatedAt
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].BatchID > results[j].BatchID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}

// Stats returns record and batch counts and the created_at range
func (r *MemoryRepository) Stats(ctx context.Context) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s domain.Stats
	batches := make(map[string]struct{})
	for i := range r.records {
		rec := r.records[i]
		batches[rec.BatchID] = struct{}{}
		if s.EarliestRecord == nil || rec.CreatedAt.Before(*s.EarliestRecord) {
			t := rec.CreatedAt
			s.EarliestRecord = &t
		}
		if s.LatestRecord == nil || rec.CreatedAt.After(*s.LatestRecord) {
			t := rec.CreatedAt
			s.LatestRecord = &t
		}
	}
	s.TotalRecords = len(r.records)
	s.TotalBatches = len(batches)
	return s, nil
}

// Health always returns nil in memory mode
func (r *MemoryRepository) Health(ctx context.Context) error {
	return nil
}
