package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"race-tracker/internal/db"
	"race-tracker/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

var ErrNotFound = errors.New("not found")

type RaceRepository struct {
	queries *db.Queries
	db      *sql.DB
	logger  zerolog.Logger
}

func NewRaceRepository(sqlDB *sql.DB, queries *db.Queries, logger zerolog.Logger) *RaceRepository {
	return &RaceRepository{
		queries: queries,
		db:      sqlDB,
		logger:  logger,
	}
}

// CompetitorState is a competitor together with its most recent snapshot.
type CompetitorState struct {
	Competitor domain.TrackedCompetitor
	Latest     *domain.CompetitorSnapshot
}

// Binding records an external identifier discovered during a cycle.
type Binding struct {
	CompetitorID string
	ExternalID   string
}

// CycleCommit is everything one race poll cycle writes. It is applied in a
// single transaction so a cycle becomes visible all at once.
type CycleCommit struct {
	Race       domain.TrackedRace
	Deactivate bool
	Bindings   []Binding
	Snapshots  []domain.CompetitorSnapshot
}

func (r *RaceRepository) Create(ctx context.Context, race domain.TrackedRace, competitors []domain.TrackedCompetitor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	err = qtx.CreateRace(ctx, db.CreateRaceParams{
		ID:                  race.ID,
		EventUrlSlug:        race.EventURLSlug,
		EventCode:           race.EventCode,
		EventLabel:          race.EventLabel,
		PollIntervalSeconds: int64(race.PollIntervalSeconds),
		CreatedAt:           race.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to create race %s: %w", race.ID, err)
	}

	for _, c := range competitors {
		err := qtx.CreateCompetitor(ctx, db.CreateCompetitorParams{
			ID:          c.ID,
			RaceID:      race.ID,
			AthleteName: c.AthleteName,
			BibNumber:   c.BibNumber,
			Gender:      c.Gender,
			Division:    c.Division,
			AgeGroup:    c.AgeGroup,
			Position:    int64(c.Position),
			CreatedAt:   c.CreatedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to create competitor %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (r *RaceRepository) Get(ctx context.Context, id string) (*domain.TrackedRace, error) {
	race, err := r.queries.GetRace(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	result := toDomainRace(race)
	return &result, nil
}

// List returns every race, newest first.
func (r *RaceRepository) List(ctx context.Context) ([]domain.TrackedRace, error) {
	races, err := r.queries.ListRaces(ctx)
	if err != nil {
		return nil, err
	}
	return toDomainRaces(races), nil
}

func (r *RaceRepository) ListActive(ctx context.Context) ([]domain.TrackedRace, error) {
	races, err := r.queries.ListActiveRaces(ctx)
	if err != nil {
		return nil, err
	}
	return toDomainRaces(races), nil
}

func toDomainRaces(races []db.TrackedRace) []domain.TrackedRace {
	result := make([]domain.TrackedRace, len(races))
	for i, race := range races {
		result[i] = toDomainRace(race)
	}
	return result
}

func (r *RaceRepository) Competitors(ctx context.Context, raceID string) ([]domain.TrackedCompetitor, error) {
	competitors, err := r.queries.ListCompetitorsByRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	result := make([]domain.TrackedCompetitor, len(competitors))
	for i, c := range competitors {
		result[i] = toDomainCompetitor(c)
	}
	return result, nil
}

func (r *RaceRepository) Competitor(ctx context.Context, raceID, competitorID string) (*domain.TrackedCompetitor, error) {
	c, err := r.queries.GetCompetitorInRace(ctx, db.GetCompetitorInRaceParams{
		ID:     competitorID,
		RaceID: raceID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	result := toDomainCompetitor(c)
	return &result, nil
}

// CompetitorStates loads the competitors of a race, each with its latest
// snapshot.
func (r *RaceRepository) CompetitorStates(ctx context.Context, raceID string) ([]CompetitorState, error) {
	competitors, err := r.Competitors(ctx, raceID)
	if err != nil {
		return nil, err
	}

	states := make([]CompetitorState, len(competitors))
	for i, c := range competitors {
		states[i].Competitor = c
		latest, err := r.queries.GetLatestSnapshot(ctx, c.ID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load latest snapshot for %s: %w", c.ID, err)
		}
		snapshot := toDomainSnapshot(latest)
		states[i].Latest = &snapshot
	}
	return states, nil
}

// LoadCycle reads the race and its competitor states at the start of a poll
// cycle.
func (r *RaceRepository) LoadCycle(ctx context.Context, raceID string) (*domain.TrackedRace, []CompetitorState, error) {
	race, err := r.Get(ctx, raceID)
	if err != nil {
		return nil, nil, err
	}
	states, err := r.CompetitorStates(ctx, raceID)
	if err != nil {
		return nil, nil, err
	}
	return race, states, nil
}

func (r *RaceRepository) CommitCycle(ctx context.Context, cycle CycleCommit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := r.queries.WithTx(tx)

	for _, b := range cycle.Bindings {
		n, err := qtx.BindCompetitorExternalID(ctx, db.BindCompetitorExternalIDParams{
			ExternalID: b.ExternalID,
			ID:         b.CompetitorID,
		})
		if err != nil {
			return fmt.Errorf("failed to bind competitor %s: %w", b.CompetitorID, err)
		}
		if n == 0 {
			r.logger.Warn().
				Str("competitor_id", b.CompetitorID).
				Str("external_id", b.ExternalID).
				Msg("competitor already bound, keeping existing identifier")
		}
	}

	for _, s := range cycle.Snapshots {
		id := s.ID
		if id == "" {
			id, err = gonanoid.New()
			if err != nil {
				return fmt.Errorf("failed to generate nanoid: %w", err)
			}
		}
		err := qtx.InsertSnapshot(ctx, db.InsertSnapshotParams{
			ID:                        id,
			CompetitorID:              s.CompetitorID,
			CapturedAt:                s.CapturedAt.UTC(),
			OverallRank:               int64Ptr(s.OverallRank),
			OverallTimeSeconds:        int64Ptr(s.OverallTimeSeconds),
			OverallTimeDisplay:        s.OverallTimeDisplay,
			Status:                    string(s.Status),
			LastCompletedStation:      s.LastCompletedStation,
			LastCompletedStationOrder: int64Ptr(s.LastCompletedStationOrder),
			SplitTimesJson:            s.SplitTimesJSON,
			RoxzoneTimeSeconds:        int64Ptr(s.RoxzoneTimeSeconds),
		})
		if err != nil {
			return fmt.Errorf("failed to insert snapshot for %s: %w", s.CompetitorID, err)
		}
	}

	var polledAt = cycle.Race.LastPolledAt
	if polledAt != nil {
		utc := polledAt.UTC()
		polledAt = &utc
	}
	n, err := qtx.UpdateRacePollState(ctx, db.UpdateRacePollStateParams{
		LastPolledAt:      polledAt,
		LastError:         cycle.Race.LastError,
		ConsecutiveErrors: int64(cycle.Race.ConsecutiveErrors),
		Deactivate:        cycle.Deactivate,
		ID:                cycle.Race.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to update race %s: %w", cycle.Race.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("race %s: %w", cycle.Race.ID, ErrNotFound)
	}

	return tx.Commit()
}

func (r *RaceRepository) Deactivate(ctx context.Context, id string) error {
	return expectRow(r.queries.DeactivateRace(ctx, id))
}

// Reactivate re-enables polling and clears the error streak.
func (r *RaceRepository) Reactivate(ctx context.Context, id string) error {
	return expectRow(r.queries.ReactivateRace(ctx, id))
}

// Delete removes the race; competitors and snapshots go with it.
func (r *RaceRepository) Delete(ctx context.Context, id string) error {
	return expectRow(r.queries.DeleteRace(ctx, id))
}

func expectRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
