package db

import (
	"context"
	"time"
)

const createCompetitor = `
INSERT INTO tracked_competitors (
    id, race_id, athlete_name, bib_number, external_id,
    gender, division, age_group, position, created_at
) VALUES (?, ?, ?, ?, NULL, ?, ?, ?, ?, ?)
`

type CreateCompetitorParams struct {
	ID          string
	RaceID      string
	AthleteName string
	BibNumber   *string
	Gender      *string
	Division    *string
	AgeGroup    *string
	Position    int64
	CreatedAt   time.Time
}

func (q *Queries) CreateCompetitor(ctx context.Context, arg CreateCompetitorParams) error {
	_, err := q.db.ExecContext(ctx, createCompetitor,
		arg.ID,
		arg.RaceID,
		arg.AthleteName,
		arg.BibNumber,
		arg.Gender,
		arg.Division,
		arg.AgeGroup,
		arg.Position,
		arg.CreatedAt,
	)
	return err
}

const competitorColumns = `id, race_id, athlete_name, bib_number, external_id,
    gender, division, age_group, position, created_at`

const listCompetitorsByRace = `SELECT ` + competitorColumns + ` FROM tracked_competitors
WHERE race_id = ?
ORDER BY position ASC, created_at ASC`

func (q *Queries) ListCompetitorsByRace(ctx context.Context, raceID string) ([]TrackedCompetitor, error) {
	rows, err := q.db.QueryContext(ctx, listCompetitorsByRace, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TrackedCompetitor
	for rows.Next() {
		var i TrackedCompetitor
		if err := rows.Scan(
			&i.ID,
			&i.RaceID,
			&i.AthleteName,
			&i.BibNumber,
			&i.ExternalID,
			&i.Gender,
			&i.Division,
			&i.AgeGroup,
			&i.Position,
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

const getCompetitorInRace = `SELECT ` + competitorColumns + ` FROM tracked_competitors
WHERE id = ? AND race_id = ?`

type GetCompetitorInRaceParams struct {
	ID     string
	RaceID string
}

func (q *Queries) GetCompetitorInRace(ctx context.Context, arg GetCompetitorInRaceParams) (TrackedCompetitor, error) {
	row := q.db.QueryRowContext(ctx, getCompetitorInRace, arg.ID, arg.RaceID)
	var i TrackedCompetitor
	err := row.Scan(
		&i.ID,
		&i.RaceID,
		&i.AthleteName,
		&i.BibNumber,
		&i.ExternalID,
		&i.Gender,
		&i.Division,
		&i.AgeGroup,
		&i.Position,
		&i.CreatedAt,
	)
	return i, err
}

// The external_id IS NULL guard keeps a bound identity from being replaced.
const bindCompetitorExternalID = `
UPDATE tracked_competitors
SET external_id = ?
WHERE id = ? AND external_id IS NULL
`

type BindCompetitorExternalIDParams struct {
	ExternalID string
	ID         string
}

func (q *Queries) BindCompetitorExternalID(ctx context.Context, arg BindCompetitorExternalIDParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, bindCompetitorExternalID, arg.ExternalID, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
