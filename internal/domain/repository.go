package domain

import (
	"context"
	"time"
)

// RegionMarker is a map point for one region of a batch
type RegionMarker struct {
	Region
	MinTemp     *float64        `json:"min_temp"`
	MaxTemp     *float64        `json:"max_temp"`
	AvgTemp     *float64        `json:"avg_temp"`
	Description *string         `json:"description"`
	Band        TemperatureBand `json:"band"`
	Size        float64         `json:"size"`
}

// ChartSeries holds column-oriented values for the comparison and range charts
type ChartSeries struct {
	Locations []string   `json:"locations"`
	MinTemps  []*float64 `json:"min_temps"`
	MaxTemps  []*float64 `json:"max_temps"`
	Ranges    []*float64 `json:"ranges"`
}

// BatchView is everything the dashboard renders for one batch
type BatchView struct {
	BatchID string          `json:"batch_id"`
	Records []WeatherRecord `json:"records"`
	Markers []RegionMarker  `json:"markers"`
	Series  ChartSeries     `json:"series"`
	Center  MapCenter       `json:"center"`
}

// TrendPoint is one value of a location across batches
type TrendPoint struct {
	BatchID   string    `json:"batch_id"`
	BatchTime time.Time `json:"batch_time"`
	Value     *float64  `json:"value"`
}

// TrendSeries is the history of a single location
type TrendSeries struct {
	Location string       `json:"location"`
	Points   []TrendPoint `json:"points"`
}

// BatchRepository defines the interface for batch persistence
// Records are append-only: there is no update or delete.
type BatchRepository interface {
	// Init creates the weather table if it does not exist
	Init(ctx context.Context) error

	// InsertBatch stores drafts under batchID and returns the number stored
	InsertBatch(ctx context.Context, drafts []WeatherDraft, batchID string) (int, error)

	// LatestBatch returns the records of the most recently created batch
	LatestBatch(ctx context.Context) ([]WeatherRecord, error)

	// Batch returns the records of one batch ordered by location
	Batch(ctx context.Context, batchID string) ([]WeatherRecord, error)

	// BatchList returns one summary per batch, newest first
	BatchList(ctx context.Context) ([]BatchSummary, error)

	// Stats returns table-wide aggregates
	Stats(ctx context.Context) (Stats, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
