package service

import (
	"sync"
	"time"

	"github.com/cwaweather/backend/internal/domain"
)

// BatchIDGenerator hands out second-granular batch ids. Within one process the
// same id is never returned twice; a collision moves to the next second.
type BatchIDGenerator struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewBatchIDGenerator creates a generator on the local wall clock
func NewBatchIDGenerator() *BatchIDGenerator {
	return &BatchIDGenerator{now: time.Now}
}

// Next returns a fresh batch id
func (g *BatchIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().Truncate(time.Second)
	if !g.last.IsZero() && !t.After(g.last) {
		t = g.last.Add(time.Second)
	}
	g.last = t

	return domain.NewBatchID(t)
}
