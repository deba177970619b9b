package service

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/cwaweather/backend/pkg/checksum"
	"github.com/sony/gobreaker"
)

var (
	ErrMissingAPIKey = errors.New("cwa: api key is not configured")
	ErrTimeout       = errors.New("cwa: request timed out")
	ErrConnection    = errors.New("cwa: connection failed")
	ErrMalformedBody = errors.New("cwa: malformed response body")
	ErrCircuitOpen   = errors.New("cwa: circuit breaker open")
)

// StatusError reports a non-2xx answer from the open data API
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cwa: unexpected HTTP status %s", e.Status)
}

// Fetcher downloads one copy of the forecast feed
type Fetcher interface {
	Fetch(ctx context.Context) (domain.RawFeed, error)
}

// CWAClientConfig configures the open data client
type CWAClientConfig struct {
	APIKey      string
	BaseURL     string
	DatasetID   string
	Timeout     time.Duration
	InsecureTLS bool
}

// CWAClient handles downloads from the CWA open data file API
type CWAClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	now        func() time.Time
}

// NewCWAClient creates a new open data client
func NewCWAClient(cfg CWAClientConfig) *CWAClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &CWAClient{
		apiKey:   cfg.APIKey,
		endpoint: fmt.Sprintf("%s/%s", cfg.BaseURL, cfg.DatasetID),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "cwa-opendata",
			MaxRequests: 1,
			Interval:    10 * time.Minute,
			Timeout:     2 * time.Minute,
		}),
		now: time.Now,
	}
}

// Fetch issues a single GET for the dataset and decodes the JSON document.
// Failures are not retried.
func (c *CWAClient) Fetch(ctx context.Context) (domain.RawFeed, error) {
	if c.apiKey == "" {
		return domain.RawFeed{}, ErrMissingAPIKey
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.download(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.RawFeed{}, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return domain.RawFeed{}, err
	}

	return result.(domain.RawFeed), nil
}

func (c *CWAClient) download(ctx context.Context) (domain.RawFeed, error) {
	values := url.Values{}
	values.Set("Authorization", c.apiKey)
	values.Set("downloadType", "WEB")
	values.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return domain.RawFeed{}, fmt.Errorf("cwa: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawFeed{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.RawFeed{}, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawFeed{}, classifyTransportError(err)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return domain.RawFeed{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if body == nil {
		return domain.RawFeed{}, fmt.Errorf("%w: document is null", ErrMalformedBody)
	}

	return domain.RawFeed{
		Body:      body,
		Size:      len(raw),
		Checksum:  checksum.Digest(raw),
		FetchedAt: c.now(),
	}, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
