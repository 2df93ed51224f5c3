package repository

import (
	"context"
	"database/sql"
	"errors"

	"race-tracker/internal/db"
	"race-tracker/internal/domain"

	"github.com/rs/zerolog"
)

type SnapshotRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewSnapshotRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// Latest returns the newest snapshot, or nil when none exists.
func (r *SnapshotRepository) Latest(ctx context.Context, competitorID string) (*domain.CompetitorSnapshot, error) {
	s, err := r.queries.GetLatestSnapshot(ctx, competitorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	result := toDomainSnapshot(s)
	return &result, nil
}

// History returns up to limit snapshots, newest first.
func (r *SnapshotRepository) History(ctx context.Context, competitorID string, limit int) ([]domain.CompetitorSnapshot, error) {
	records, err := r.queries.ListSnapshotsByCompetitor(ctx, db.ListSnapshotsByCompetitorParams{
		CompetitorID: competitorID,
		Limit:        int64(limit),
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.CompetitorSnapshot, len(records))
	for i, s := range records {
		result[i] = toDomainSnapshot(s)
	}
	return result, nil
}

func (r *SnapshotRepository) Count(ctx context.Context, competitorID string) (int, error) {
	n, err := r.queries.CountSnapshotsByCompetitor(ctx, competitorID)
	return int(n), err
}
