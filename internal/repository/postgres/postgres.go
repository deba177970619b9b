package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cwaweather/backend/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxPool is the subset of *pgxpool.Pool used by the repository
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

var _ pgxPool = (*pgxpool.Pool)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS weather (
		id          BIGSERIAL PRIMARY KEY,
		batch_id    TEXT NOT NULL,
		location    TEXT NOT NULL,
		min_temp    DOUBLE PRECISION,
		max_temp    DOUBLE PRECISION,
		description TEXT,
		fetch_time  TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_weather_batch_id ON weather (batch_id);
	CREATE INDEX IF NOT EXISTS idx_weather_created_at ON weather (created_at);
`

const insertRecord = `
	INSERT INTO weather (batch_id, location, min_temp, max_temp, description)
	VALUES ($1, $2, $3, $4, $5)
`

// location is compared byte-wise so the order does not depend on the server locale
const selectBatch = `
	SELECT id, batch_id, location, min_temp, max_temp, description, fetch_time, created_at
	FROM weather
	WHERE batch_id = $1
	ORDER BY location COLLATE "C", id
`

const selectLatestBatchID = `
	SELECT batch_id
	FROM weather
	ORDER BY created_at DESC, id DESC
	LIMIT 1
`

const selectBatchList = `
	SELECT batch_id, COUNT(*) AS count, MIN(created_at) AS created_at
	FROM weather
	GROUP BY batch_id
	ORDER BY MIN(created_at) DESC, batch_id DESC
`

const selectStats = `
	SELECT COUNT(*), COUNT(DISTINCT batch_id), MIN(created_at), MAX(created_at)
	FROM weather
`

// PostgresRepository implements domain.BatchRepository
type PostgresRepository struct {
	pool pgxPool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func newRepository(pool pgxPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Init creates the weather table and its indexes
func (r *PostgresRepository) Init(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: failed to create weather table: %w", err)
	}
	return nil
}

// InsertBatch stores all drafts in a single transaction. Either every draft
// is stored or none is.
func (r *PostgresRepository) InsertBatch(ctx context.Context, drafts []domain.WeatherDraft, batchID string) (int, error) {
	if len(drafts) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}

	for _, d := range drafts {
		_, err := tx.Exec(ctx, insertRecord, batchID, d.Location, d.MinTemp, d.MaxTemp, d.Description)
		if err != nil {
			if rx := tx.Rollback(ctx); rx != nil {
				log.Printf("Error rolling back batch %s: %v", batchID, rx)
			}
			return 0, fmt.Errorf("postgres: failed to insert %s for batch %s: %w", d.Location, batchID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: failed to commit batch %s: %w", batchID, err)
	}

	return len(drafts), nil
}

// LatestBatch returns the records of the batch created last
func (r *PostgresRepository) LatestBatch(ctx context.Context) ([]domain.WeatherRecord, error) {
	var batchID string
	err := r.pool.QueryRow(ctx, selectLatestBatchID).Scan(&batchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.WeatherRecord{}, nil
		}
		return nil, fmt.Errorf("postgres: failed to find latest batch: %w", err)
	}

	return r.Batch(ctx, batchID)
}

// Batch returns the records of one batch ordered by location
func (r *PostgresRepository) Batch(ctx context.Context, batchID string) ([]domain.WeatherRecord, error) {
	rows, err := r.pool.Query(ctx, selectBatch, batchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query batch %s: %w", batchID, err)
	}
	defer rows.Close()

	results := []domain.WeatherRecord{}
	for rows.Next() {
		var w domain.WeatherRecord
		err := rows.Scan(
			&w.ID, &w.BatchID, &w.Location, &w.MinTemp, &w.MaxTemp, &w.Description, &w.FetchTime, &w.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan weather row: %w", err)
		}
		results = append(results, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read batch %s: %w", batchID, err)
	}

	return results, nil
}

// BatchList returns one summary per batch, newest first
func (r *PostgresRepository) BatchList(ctx context.Context) ([]domain.BatchSummary, error) {
	rows, err := r.pool.Query(ctx, selectBatchList)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query batch list: %w", err)
	}
	defer rows.Close()

	results := []domain.BatchSummary{}
	for rows.Next() {
		var b domain.BatchSummary
		if err := rows.Scan(&b.BatchID, &b.Count, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan batch row: %w", err)
		}
		results = append(results, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read batch list: %w", err)
	}

	return results, nil
}

// Stats returns record and batch counts and the created_at range
func (r *PostgresRepository) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	err := r.pool.QueryRow(ctx, selectStats).Scan(&s.TotalRecords, &s.TotalBatches, &s.EarliestRecord, &s.LatestRecord)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("postgres: failed to query stats: %w", err)
	}
	return s, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
