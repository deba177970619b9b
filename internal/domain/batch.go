package domain

import (
	"fmt"
	"time"
)

// BatchIDLayout is the time layout of batch identifiers (YYYYMMDD_HHMMSS)
const BatchIDLayout = "20060102_150405"

// LatestBatch selects the most recent batch wherever a batch id is accepted
const LatestBatch = "latest"

// NewBatchID formats t as a batch identifier in t's location
func NewBatchID(t time.Time) string {
	return t.Format(BatchIDLayout)
}

// ParseBatchID checks that id is a well-formed batch identifier and returns
// the local time it encodes
func ParseBatchID(id string) (time.Time, error) {
	t, err := time.ParseInLocation(BatchIDLayout, id, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid batch id %q: %w", id, err)
	}
	return t, nil
}
