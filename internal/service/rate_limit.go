package service

import (
	"context"
	"errors"

	"github.com/cwaweather/backend/internal/domain"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a refresh is requested too soon after the last one
var ErrRateLimited = errors.New("cwa: refresh rate limit exceeded")

// RateLimitedFetcher wraps a Fetcher with a token bucket. Requests over the
// limit are rejected rather than queued.
type RateLimitedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewRateLimitedFetcher allows rps fetches per second with the given burst
func NewRateLimitedFetcher(next Fetcher, rps float64, burst int) *RateLimitedFetcher {
	return &RateLimitedFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (f *RateLimitedFetcher) Fetch(ctx context.Context) (domain.RawFeed, error) {
	if !f.limiter.Allow() {
		return domain.RawFeed{}, ErrRateLimited
	}
	return f.next.Fetch(ctx)
}
