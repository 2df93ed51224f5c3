package db

import (
	"context"
	"time"
)

const insertSnapshot = `
INSERT INTO competitor_snapshots (
    id, competitor_id, captured_at, overall_rank, overall_time_seconds,
    overall_time_display, status, last_completed_station,
    last_completed_station_order, split_times_json, roxzone_time_seconds
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertSnapshotParams struct {
	ID                        string
	CompetitorID              string
	CapturedAt                time.Time
	OverallRank               *int64
	OverallTimeSeconds        *int64
	OverallTimeDisplay        *string
	Status                    string
	LastCompletedStation      *string
	LastCompletedStationOrder *int64
	SplitTimesJson            *string
	RoxzoneTimeSeconds        *int64
}

func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, insertSnapshot,
		arg.ID,
		arg.CompetitorID,
		arg.CapturedAt,
		arg.OverallRank,
		arg.OverallTimeSeconds,
		arg.OverallTimeDisplay,
		arg.Status,
		arg.LastCompletedStation,
		arg.LastCompletedStationOrder,
		arg.SplitTimesJson,
		arg.RoxzoneTimeSeconds,
	)
	return err
}

const snapshotColumns = `id, competitor_id, captured_at, overall_rank, overall_time_seconds,
    overall_time_display, status, last_completed_station,
    last_completed_station_order, split_times_json, roxzone_time_seconds`

const getLatestSnapshot = `SELECT ` + snapshotColumns + ` FROM competitor_snapshots
WHERE competitor_id = ?
ORDER BY captured_at DESC, rowid DESC
LIMIT 1`

func (q *Queries) GetLatestSnapshot(ctx context.Context, competitorID string) (CompetitorSnapshot, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot, competitorID)
	var i CompetitorSnapshot
	err := row.Scan(
		&i.ID,
		&i.CompetitorID,
		&i.CapturedAt,
		&i.OverallRank,
		&i.OverallTimeSeconds,
		&i.OverallTimeDisplay,
		&i.Status,
		&i.LastCompletedStation,
		&i.LastCompletedStationOrder,
		&i.SplitTimesJson,
		&i.RoxzoneTimeSeconds,
	)
	return i, err
}

const listSnapshotsByCompetitor = `SELECT ` + snapshotColumns + ` FROM competitor_snapshots
WHERE competitor_id = ?
ORDER BY captured_at DESC, rowid DESC
LIMIT ?`

type ListSnapshotsByCompetitorParams struct {
	CompetitorID string
	Limit        int64
}

func (q *Queries) ListSnapshotsByCompetitor(ctx context.Context, arg ListSnapshotsByCompetitorParams) ([]CompetitorSnapshot, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotsByCompetitor, arg.CompetitorID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CompetitorSnapshot
	for rows.Next() {
		var i CompetitorSnapshot
		if err := rows.Scan(
			&i.ID,
			&i.CompetitorID,
			&i.CapturedAt,
			&i.OverallRank,
			&i.OverallTimeSeconds,
			&i.OverallTimeDisplay,
			&i.Status,
			&i.LastCompletedStation,
			&i.LastCompletedStationOrder,
			&i.SplitTimesJson,
			&i.RoxzoneTimeSeconds,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countSnapshotsByCompetitor = `SELECT COUNT(*) FROM competitor_snapshots WHERE competitor_id = ?`

func (q *Queries) CountSnapshotsByCompetitor(ctx context.Context, competitorID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countSnapshotsByCompetitor, competitorID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
