package domain

import "time"

// UnknownRegion is used when a feed entry carries no locationName
const UnknownRegion = "未知地區"

// WeatherDraft is a parsed region forecast that has not been stored yet
type WeatherDraft struct {
	Location    string   `json:"location"`
	MinTemp     *float64 `json:"min_temp"`
	MaxTemp     *float64 `json:"max_temp"`
	Description *string  `json:"description"`
}

// WeatherRecord is one stored row of the weather table
type WeatherRecord struct {
	ID          int64     `json:"id"`
	BatchID     string    `json:"batch_id"`
	Location    string    `json:"location"`
	MinTemp     *float64  `json:"min_temp"`
	MaxTemp     *float64  `json:"max_temp"`
	Description *string   `json:"description"`
	FetchTime   time.Time `json:"fetch_time"`
	CreatedAt   time.Time `json:"created_at"`
}

// BatchSummary describes one stored batch
type BatchSummary struct {
	BatchID   string    `json:"batch_id"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats holds table-wide aggregates. Earliest/Latest are nil on an empty table.
type Stats struct {
	TotalRecords   int        `json:"total_records"`
	TotalBatches   int        `json:"total_batches"`
	EarliestRecord *time.Time `json:"earliest_record"`
	LatestRecord   *time.Time `json:"latest_record"`
}

// RawFeed is the decoded CWA document plus fetch metadata
type RawFeed struct {
	Body      map[string]any
	Size      int
	Checksum  string
	FetchedAt time.Time
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s
func String(s string) *string {
	return &s
}
