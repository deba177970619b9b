package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/cwaweather/backend/internal/notify"
	"github.com/google/uuid"
)

// ErrNoRegions aborts a run whose feed parsed into zero regions
var ErrNoRegions = errors.New("pipeline: feed contained no regions")

// Step identifies one stage of a pipeline run
type Step int

const (
	StepInit Step = iota + 1
	StepFetch
	StepParse
	StepInsert
)

// TotalSteps is the number of stages reported through Progress
const TotalSteps = 4

func (s Step) String() string {
	switch s {
	case StepInit:
		return "init"
	case StepFetch:
		return "fetch"
	case StepParse:
		return "parse"
	case StepInsert:
		return "insert"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// StepError reports which stage aborted a run
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline: %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Progress is called when a stage starts
type Progress func(step Step)

// RunResult summarises one successful run
type RunResult struct {
	RunID     string                `json:"run_id"`
	BatchID   string                `json:"batch_id"`
	Inserted  int                   `json:"inserted"`
	Checksum  string                `json:"checksum"`
	Size      int                   `json:"size"`
	FetchedAt time.Time             `json:"fetched_at"`
	Issues    []FieldIssue          `json:"issues"`
	Stats     domain.Stats          `json:"stats"`
	Recent    []domain.BatchSummary `json:"recent_batches"`
}

// RecentBatches is how many batch summaries a run result carries
const RecentBatches = 5

// Pipeline runs init, fetch, parse and insert as one unit
type Pipeline struct {
	repo     BatchRepository
	fetcher  Fetcher
	ids      *BatchIDGenerator
	notifier notify.Notifier

	mu *sync.Mutex // one run at a time, shared with WithFetcher copies
}

// NewPipeline creates a pipeline. A nil notifier disables announcements.
func NewPipeline(repo BatchRepository, fetcher Fetcher, ids *BatchIDGenerator, notifier notify.Notifier) *Pipeline {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if ids == nil {
		ids = NewBatchIDGenerator()
	}
	return &Pipeline{
		repo:     repo,
		fetcher:  fetcher,
		ids:      ids,
		notifier: notifier,
		mu:       &sync.Mutex{},
	}
}

// WithFetcher returns a pipeline that downloads through f but shares the
// store, id generator, notifier and run lock of p
func (p *Pipeline) WithFetcher(f Fetcher) *Pipeline {
	clone := *p
	clone.fetcher = f
	return &clone
}

// Run executes every stage once. Any failure aborts with a *StepError and
// leaves the store untouched by this run.
func (p *Pipeline) Run(ctx context.Context, progress Progress) (RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if progress == nil {
		progress = func(Step) {}
	}
	// the batch id marks when the run started, not when it was stored
	result := RunResult{RunID: uuid.NewString(), BatchID: p.ids.Next()}
	batchID := result.BatchID

	progress(StepInit)
	if err := p.repo.Init(ctx); err != nil {
		return result, &StepError{Step: StepInit, Err: err}
	}

	progress(StepFetch)
	feed, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return result, &StepError{Step: StepFetch, Err: err}
	}
	result.Checksum = feed.Checksum
	result.Size = feed.Size
	result.FetchedAt = feed.FetchedAt

	progress(StepParse)
	parsed, err := ParseFeed(feed.Body)
	if err != nil {
		return result, &StepError{Step: StepParse, Err: err}
	}
	result.Issues = parsed.Issues
	for _, issue := range parsed.Issues {
		log.Printf("Parse issue in run %s: %s", result.RunID, issue)
	}
	if len(parsed.Drafts) == 0 {
		return result, &StepError{Step: StepParse, Err: ErrNoRegions}
	}

	progress(StepInsert)
	inserted, err := p.repo.InsertBatch(ctx, parsed.Drafts, batchID)
	if err != nil {
		return result, &StepError{Step: StepInsert, Err: err}
	}
	result.Inserted = inserted

	// the batch is stored; summary problems are only logged
	if stats, err := p.repo.Stats(ctx); err != nil {
		log.Printf("Failed to collect stats after batch %s: %v", batchID, err)
	} else {
		result.Stats = stats
	}
	if batches, err := p.repo.BatchList(ctx); err != nil {
		log.Printf("Failed to list batches after batch %s: %v", batchID, err)
	} else {
		if len(batches) > RecentBatches {
			batches = batches[:RecentBatches]
		}
		result.Recent = batches
	}

	p.announce(ctx, result)
	return result, nil
}

func (p *Pipeline) announce(ctx context.Context, result RunResult) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := p.notifier.Publish(ctx, notify.BatchEvent{
		RunID:     result.RunID,
		BatchID:   result.BatchID,
		Inserted:  result.Inserted,
		Checksum:  result.Checksum,
		FetchedAt: result.FetchedAt,
	})
	if err != nil {
		log.Printf("Failed to announce batch %s: %v", result.BatchID, err)
	}
}
