package db

import (
	"context"
	"time"
)

const createRace = `
INSERT INTO tracked_races (
    id, event_url_slug, event_code, event_label, is_active,
    poll_interval_seconds, consecutive_errors, created_at
) VALUES (?, ?, ?, ?, 1, ?, 0, ?)
`

type CreateRaceParams struct {
	ID                  string
	EventUrlSlug        string
	EventCode           string
	EventLabel          string
	PollIntervalSeconds int64
	CreatedAt           time.Time
}

func (q *Queries) CreateRace(ctx context.Context, arg CreateRaceParams) error {
	_, err := q.db.ExecContext(ctx, createRace,
		arg.ID,
		arg.EventUrlSlug,
		arg.EventCode,
		arg.EventLabel,
		arg.PollIntervalSeconds,
		arg.CreatedAt,
	)
	return err
}

const raceColumns = `id, event_url_slug, event_code, event_label, is_active,
    poll_interval_seconds, last_polled_at, last_error, consecutive_errors, created_at`

const getRace = `SELECT ` + raceColumns + ` FROM tracked_races WHERE id = ?`

func (q *Queries) GetRace(ctx context.Context, id string) (TrackedRace, error) {
	row := q.db.QueryRowContext(ctx, getRace, id)
	var i TrackedRace
	err := row.Scan(
		&i.ID,
		&i.EventUrlSlug,
		&i.EventCode,
		&i.EventLabel,
		&i.IsActive,
		&i.PollIntervalSeconds,
		&i.LastPolledAt,
		&i.LastError,
		&i.ConsecutiveErrors,
		&i.CreatedAt,
	)
	return i, err
}

const listActiveRaces = `SELECT ` + raceColumns + ` FROM tracked_races
WHERE is_active = 1
ORDER BY created_at ASC`

func (q *Queries) ListActiveRaces(ctx context.Context) ([]TrackedRace, error) {
	return q.listRaces(ctx, listActiveRaces)
}

const listRaces = `SELECT ` + raceColumns + ` FROM tracked_races
ORDER BY created_at DESC`

func (q *Queries) ListRaces(ctx context.Context) ([]TrackedRace, error) {
	return q.listRaces(ctx, listRaces)
}

func (q *Queries) listRaces(ctx context.Context, query string) ([]TrackedRace, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrackedRace
	for rows.Next() {
		var i TrackedRace
		if err := rows.Scan(
			&i.ID,
			&i.EventUrlSlug,
			&i.EventCode,
			&i.EventLabel,
			&i.IsActive,
			&i.PollIntervalSeconds,
			&i.LastPolledAt,
			&i.LastError,
			&i.ConsecutiveErrors,
			&i.CreatedAt,
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

const updateRacePollState = `
UPDATE tracked_races
SET last_polled_at = ?,
    last_error = ?,
    consecutive_errors = ?,
    is_active = CASE WHEN ? THEN 0 ELSE is_active END
WHERE id = ?
`

type UpdateRacePollStateParams struct {
	LastPolledAt      *time.Time
	LastError         *string
	ConsecutiveErrors int64
	Deactivate        bool
	ID                string
}

func (q *Queries) UpdateRacePollState(ctx context.Context, arg UpdateRacePollStateParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRacePollState,
		arg.LastPolledAt,
		arg.LastError,
		arg.ConsecutiveErrors,
		arg.Deactivate,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deactivateRace = `UPDATE tracked_races SET is_active = 0 WHERE id = ?`

func (q *Queries) DeactivateRace(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deactivateRace, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const reactivateRace = `
UPDATE tracked_races
SET is_active = 1, consecutive_errors = 0, last_error = NULL
WHERE id = ?
`

func (q *Queries) ReactivateRace(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, reactivateRace, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRace = `DELETE FROM tracked_races WHERE id = ?`

func (q *Queries) DeleteRace(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRace, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
