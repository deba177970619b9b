package postgres

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock returns start, start+step, start+2*step...
func steppingClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(step)
		return t
	}
}

func newTestMemoryRepository() *MemoryRepository {
	r := NewMemoryRepository()
	r.now = steppingClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), time.Minute)
	return r
}

func regionDrafts() []domain.WeatherDraft {
	return []domain.WeatherDraft{
		{Location: "南部地區", MinTemp: domain.Float(21), MaxTemp: domain.Float(29), Description: domain.String("晴時多雲")},
		{Location: "北部地區", MinTemp: domain.Float(18), MaxTemp: domain.Float(24), Description: domain.String("多雲")},
		{Location: "東部地區", MinTemp: nil, MaxTemp: domain.Float(26), Description: nil},
		{Location: "中部地區", MinTemp: domain.Float(30), MaxTemp: domain.Float(20), Description: domain.String("陰")},
	}
}

func TestMemoryRepository_InsertAndBatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestMemoryRepository()
	drafts := regionDrafts()

	n, err := repo.InsertBatch(ctx, drafts, "20240101_120000")
	require.NoError(t, err)
	assert.Equal(t, len(drafts), n)

	records, err := repo.Batch(ctx, "20240101_120000")
	require.NoError(t, err)
	require.Len(t, records, len(drafts))

	inputs := make(map[string]bool)
	for _, d := range drafts {
		inputs[d.Location] = true
	}
	locations := make([]string, 0, len(records))
	for _, r := range records {
		assert.True(t, inputs[r.Location], r.Location)
		assert.Equal(t, "20240101_120000", r.BatchID)
		locations = append(locations, r.Location)
	}
	assert.True(t, sort.StringsAreSorted(locations))

	// nulls and min > max survive storage untouched
	for _, r := range records {
		switch r.Location {
		case "東部地區":
			assert.Nil(t, r.MinTemp)
			assert.Nil(t, r.Description)
		case "中部地區":
			assert.Greater(t, *r.MinTemp, *r.MaxTemp)
		}
	}
}

func TestMemoryRepository_IDsIncrease(t *testing.T) {
	ctx := context.Background()
	repo := newTestMemoryRepository()

	_, err := repo.InsertBatch(ctx, regionDrafts(), "20240101_120000")
	require.NoError(t, err)
	_, err = repo.InsertBatch(ctx, regionDrafts(), "20240101_130000")
	require.NoError(t, err)

	var last int64
	for _, rec := range repo.records {
		assert.Greater(t, rec.ID, last)
		last = rec.ID
	}
}

func TestMemoryRepository_BatchListCountsAcrossInserts(t *testing.T) {
	ctx := context.Background()
	repo := newTestMemoryRepository()

	_, err := repo.InsertBatch(ctx, regionDrafts()[:2], "20240101_120000")
	require.NoError(t, err)
	_, err = repo.InsertBatch(ctx, regionDrafts()[:3], "20240101_130000")
	require.NoError(t, err)
	_, err = repo.InsertBatch(ctx, regionDrafts()[2:], "20240101_120000")
	require.NoError(t, err)

	list, err := repo.BatchList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// newest first by earliest created_at
	assert.Equal(t, "20240101_130000", list[0].BatchID)
	assert.Equal(t, 3, list[0].Count)
	assert.Equal(t, "20240101_120000", list[1].BatchID)
	assert.Equal(t, 4, list[1].Count)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestMemoryRepository_LatestBatchMatchesNewestCreatedAt(t *testing.T) {
	ctx := context.Background()
	repo := newTestMemoryRepository()

	latest, err := repo.LatestBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, latest)

	_, err = repo.InsertBatch(ctx, regionDrafts(), "20240101_120000")
	require.NoError(t, err)
	_, err = repo.InsertBatch(ctx, regionDrafts()[:1], "20240101_130000")
	require.NoError(t, err)

	latest, err = repo.LatestBatch(ctx)
	require.NoError(t, err)
	want, err := repo.Batch(ctx, "20240101_130000")
	require.NoError(t, err)
	assert.Equal(t, want, latest)
}

func TestMemoryRepository_StatsScenario(t *testing.T) {
	ctx := context.Background()
	repo := newTestMemoryRepository()

	empty, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalRecords)
	assert.Nil(t, empty.EarliestRecord)
	assert.Nil(t, empty.LatestRecord)

	drafts := []domain.WeatherDraft{
		{Location: "北部地區", MinTemp: domain.Float(18.0), MaxTemp: domain.Float(24.0), Description: domain.String("多雲")},
	}
	_, err = repo.InsertBatch(ctx, drafts, "20240101_120000")
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRecords)
	assert.Equal(t, 1, stats.TotalBatches)
	require.NotNil(t, stats.EarliestRecord)
	assert.Equal(t, *stats.EarliestRecord, *stats.LatestRecord)

	list, err := repo.BatchList(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "20240101_120000", list[0].BatchID)
	assert.Equal(t, 1, list[0].Count)
	assert.Equal(t, *stats.EarliestRecord, list[0].CreatedAt)
}

func TestMemoryRepository_InitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestMemoryRepository()

	require.NoError(t, repo.Init(ctx))
	_, err := repo.InsertBatch(ctx, regionDrafts(), "20240101_120000")
	require.NoError(t, err)
	require.NoError(t, repo.Init(ctx))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(regionDrafts()), stats.TotalRecords)
}

func TestMemoryRepository_UnknownBatchIsEmpty(t *testing.T) {
	records, err := newTestMemoryRepository().Batch(context.Background(), "19990101_000000")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
