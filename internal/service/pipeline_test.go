package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/cwaweather/backend/internal/notify"
	"github.com/cwaweather/backend/internal/repository/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	feed domain.RawFeed
	err  error
}

func (f stubFetcher) Fetch(ctx context.Context) (domain.RawFeed, error) {
	return f.feed, f.err
}

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Init(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockRepository) InsertBatch(ctx context.Context, drafts []domain.WeatherDraft, batchID string) (int, error) {
	args := m.Called(ctx, drafts, batchID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepository) LatestBatch(ctx context.Context) ([]domain.WeatherRecord, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.WeatherRecord), args.Error(1)
}

func (m *mockRepository) Batch(ctx context.Context, batchID string) ([]domain.WeatherRecord, error) {
	args := m.Called(ctx, batchID)
	return args.Get(0).([]domain.WeatherRecord), args.Error(1)
}

func (m *mockRepository) BatchList(ctx context.Context) ([]domain.BatchSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.BatchSummary), args.Error(1)
}

func (m *mockRepository) Stats(ctx context.Context) (domain.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Stats), args.Error(1)
}

func (m *mockRepository) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type recordingNotifier struct {
	events []notify.BatchEvent
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, event notify.BatchEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) Close() {}

func sampleRawFeed(t *testing.T) domain.RawFeed {
	return domain.RawFeed{
		Body: decode(t, feedWith(`[
			{"locationName":"北部地區","weatherElements":{"MinT":{"daily":[{"temperature":"18"}]},"MaxT":{"daily":[{"temperature":"24"}]},"Wx":{"daily":[{"weather":"多雲"}]}}},
			{"locationName":"南部地區","weatherElements":{"MinT":{"daily":[{"temperature":"abc"}]},"MaxT":{"daily":[{"temperature":"30"}]},"Wx":{"daily":[{"weather":"晴"}]}}}
		]`)),
		Size:     512,
		Checksum: "0123456789abcdef",
	}
}

func TestPipelineRun(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	notifier := &recordingNotifier{}
	pipeline := NewPipeline(repo, stubFetcher{feed: sampleRawFeed(t)}, nil, notifier)

	var steps []Step
	result, err := pipeline.Run(context.Background(), func(step Step) { steps = append(steps, step) })
	require.NoError(t, err)

	assert.Equal(t, []Step{StepInit, StepFetch, StepParse, StepInsert}, steps)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, "0123456789abcdef", result.Checksum)
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, 2, result.Stats.TotalRecords)
	assert.Equal(t, 1, result.Stats.TotalBatches)
	require.Len(t, result.Recent, 1)
	assert.Equal(t, result.BatchID, result.Recent[0].BatchID)

	records, err := repo.Batch(context.Background(), result.BatchID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Nil(t, records[1].MinTemp)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, result.BatchID, notifier.events[0].BatchID)
	assert.Equal(t, result.RunID, notifier.events[0].RunID)
}

func TestPipelineRunRecentIsCapped(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	pipeline := NewPipeline(repo, stubFetcher{feed: sampleRawFeed(t)}, nil, nil)

	var result RunResult
	for i := 0; i < RecentBatches+2; i++ {
		var err error
		result, err = pipeline.Run(context.Background(), nil)
		require.NoError(t, err)
	}

	assert.Len(t, result.Recent, RecentBatches)
	assert.Equal(t, RecentBatches+2, result.Stats.TotalBatches)
}

func TestPipelineNotifierFailureIsNotFatal(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("broker down")}
	pipeline := NewPipeline(postgres.NewMemoryRepository(), stubFetcher{feed: sampleRawFeed(t)}, nil, notifier)

	result, err := pipeline.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	assert.Len(t, notifier.events, 1)
}

func TestPipelineInitFailure(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Init", mock.Anything).Return(errors.New("postgres: connection refused"))

	_, err := NewPipeline(repo, stubFetcher{feed: sampleRawFeed(t)}, nil, nil).Run(context.Background(), nil)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepInit, stepErr.Step)
	repo.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipelineFetchFailure(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	pipeline := NewPipeline(repo, stubFetcher{err: ErrTimeout}, nil, nil)

	_, err := pipeline.Run(context.Background(), nil)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepFetch, stepErr.Step)
	assert.ErrorIs(t, err, ErrTimeout)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRecords)
}

func TestPipelineParseFailure(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	pipeline := NewPipeline(repo, stubFetcher{feed: domain.RawFeed{Body: map[string]any{}}}, nil, nil)

	_, err := pipeline.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRegionsNotFound)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepParse, stepErr.Step)
}

func TestPipelineNoRegions(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	pipeline := NewPipeline(repo, stubFetcher{feed: domain.RawFeed{Body: decode(t, feedWith(`[]`))}}, nil, nil)

	_, err := pipeline.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoRegions)

	batches, err := repo.BatchList(context.Background())
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestPipelineInsertFailure(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Init", mock.Anything).Return(nil)
	repo.On("InsertBatch", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(0, errors.New("postgres: failed to commit batch"))

	_, err := NewPipeline(repo, stubFetcher{feed: sampleRawFeed(t)}, nil, nil).Run(context.Background(), nil)

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, StepInsert, stepErr.Step)
	repo.AssertNotCalled(t, "Stats", mock.Anything)
}

func TestPipelineWithFetcherSharesStore(t *testing.T) {
	repo := postgres.NewMemoryRepository()
	base := NewPipeline(repo, stubFetcher{err: ErrConnection}, nil, nil)
	manual := base.WithFetcher(stubFetcher{feed: sampleRawFeed(t)})

	_, err := base.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrConnection)

	first, err := manual.Run(context.Background(), nil)
	require.NoError(t, err)
	second, err := manual.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.BatchID, second.BatchID)
	assert.Equal(t, 2, second.Stats.TotalBatches)
}

type clockAdvancingFetcher struct {
	feed    domain.RawFeed
	advance func()
}

func (f clockAdvancingFetcher) Fetch(ctx context.Context) (domain.RawFeed, error) {
	f.advance()
	return f.feed, nil
}

func TestPipelineBatchIDMarksRunStart(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	now := start
	ids := NewBatchIDGenerator()
	ids.now = func() time.Time { return now }

	// a slow download must not move the batch id
	fetcher := clockAdvancingFetcher{
		feed:    sampleRawFeed(t),
		advance: func() { now = now.Add(time.Hour) },
	}
	repo := postgres.NewMemoryRepository()

	result, err := NewPipeline(repo, fetcher, ids, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "20240101_120000", result.BatchID)

	records, err := repo.Batch(context.Background(), "20240101_120000")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
