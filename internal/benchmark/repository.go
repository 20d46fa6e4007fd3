package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdant/esgengine/internal/contracts"
)

// Repository persists SectorBenchmark rows with as_of last-writer-wins.
// Two concurrent recomputes of the same sector race on which result is
// current; the guard in SQL discards the older write instead of letting
// it overwrite backward.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveBenchmark stores a benchmark unless a row with a newer or equal
// as_of already exists, in which case it returns ErrStaleBenchmark.
func (r *Repository) SaveBenchmark(ctx context.Context, b *contracts.SectorBenchmark) error {
	percentilesJSON, err := json.Marshal(b.Percentiles)
	if err != nil {
		return fmt.Errorf("marshal percentiles: %w", err)
	}

	query := `
		INSERT INTO esg.sector_benchmarks (
			sector_id, as_of, percentiles, mean, stddev,
			peer_count, low_confidence, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (sector_id) DO UPDATE SET
			as_of = EXCLUDED.as_of,
			percentiles = EXCLUDED.percentiles,
			mean = EXCLUDED.mean,
			stddev = EXCLUDED.stddev,
			peer_count = EXCLUDED.peer_count,
			low_confidence = EXCLUDED.low_confidence,
			updated_at = NOW()
		WHERE esg.sector_benchmarks.as_of < EXCLUDED.as_of
	`

	tag, err := r.db.Exec(ctx, query,
		b.SectorID,
		b.AsOf,
		percentilesJSON,
		b.Mean,
		b.StdDev,
		b.PeerCount,
		b.LowConfidence,
	)
	if err != nil {
		return fmt.Errorf("save benchmark: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sector %s as_of %s: %w", b.SectorID, b.AsOf.Format("2006-01-02T15:04:05"), contracts.ErrStaleBenchmark)
	}

	return nil
}

// GetBenchmark retrieves the current benchmark for one sector
func (r *Repository) GetBenchmark(ctx context.Context, sectorID string) (*contracts.SectorBenchmark, error) {
	query := `
		SELECT sector_id, as_of, percentiles, mean, stddev,
		       peer_count, low_confidence
		FROM esg.sector_benchmarks
		WHERE sector_id = $1
	`

	b := &contracts.SectorBenchmark{}
	var percentilesJSON []byte
	err := r.db.QueryRow(ctx, query, sectorID).Scan(
		&b.SectorID,
		&b.AsOf,
		&percentilesJSON,
		&b.Mean,
		&b.StdDev,
		&b.PeerCount,
		&b.LowConfidence,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("benchmark %s: %w", sectorID, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query benchmark: %w", err)
	}

	if err := json.Unmarshal(percentilesJSON, &b.Percentiles); err != nil {
		return nil, fmt.Errorf("unmarshal percentiles: %w", err)
	}

	return b, nil
}
