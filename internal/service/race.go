package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"race-tracker/internal/constants"
	"race-tracker/internal/domain"
	"race-tracker/internal/middleware"
	"race-tracker/internal/repository"
	"race-tracker/internal/trackerv1"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

type RaceService struct {
	races     *repository.RaceRepository
	snapshots *repository.SnapshotRepository
	logger    zerolog.Logger
	now       func() time.Time
	dbTimeout time.Duration
}

func NewRaceService(races *repository.RaceRepository, snapshots *repository.SnapshotRepository, logger zerolog.Logger) *RaceService {
	return &RaceService{races: races, snapshots: snapshots, logger: logger, now: time.Now, dbTimeout: constants.DatabaseTimeout}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func notFound(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func validateStart(req *trackerv1.StartTrackingRequest) error {
	if strings.TrimSpace(req.EventURLSlug) == "" {
		return invalid("event_url_slug is required")
	}
	if strings.TrimSpace(req.EventCode) == "" {
		return invalid("event_code is required")
	}
	if strings.TrimSpace(req.EventLabel) == "" {
		return invalid("event_label is required")
	}
	if req.PollIntervalSeconds != 0 &&
		(req.PollIntervalSeconds < constants.MinPollIntervalSeconds || req.PollIntervalSeconds > constants.MaxPollIntervalSeconds) {
		return invalid("poll_interval_seconds must be between %d and %d",
			constants.MinPollIntervalSeconds, constants.MaxPollIntervalSeconds)
	}
	if len(req.Competitors) == 0 || len(req.Competitors) > constants.MaxCompetitorsPerRace {
		return invalid("between 1 and %d competitors are required", constants.MaxCompetitorsPerRace)
	}
	for i, c := range req.Competitors {
		if len(strings.TrimSpace(c.AthleteName)) < constants.MinAthleteNameLength {
			return invalid("competitors[%d].athlete_name must be at least %d characters", i, constants.MinAthleteNameLength)
		}
		switch c.Gender {
		case "", "M", "W":
		default:
			return invalid("competitors[%d].gender must be M or W", i)
		}
	}
	return nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *RaceService) StartTracking(ctx context.Context, req *trackerv1.StartTrackingRequest) (*trackerv1.StartTrackingResponse, error) {
	if err := validateStart(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	interval := req.PollIntervalSeconds
	if interval == 0 {
		interval = constants.DefaultPollIntervalSeconds
	}

	now := s.now().UTC()
	race := domain.TrackedRace{
		ID:                  uuid.NewString(),
		EventURLSlug:        strings.TrimSpace(req.EventURLSlug),
		EventCode:           strings.TrimSpace(req.EventCode),
		EventLabel:          strings.TrimSpace(req.EventLabel),
		IsActive:            true,
		PollIntervalSeconds: interval,
		CreatedAt:           now,
	}

	competitors := make([]domain.TrackedCompetitor, len(req.Competitors))
	for i, c := range req.Competitors {
		competitors[i] = domain.TrackedCompetitor{
			ID:          uuid.NewString(),
			RaceID:      race.ID,
			AthleteName: strings.TrimSpace(c.AthleteName),
			BibNumber:   optionalString(c.BibNumber),
			Gender:      optionalString(c.Gender),
			Division:    optionalString(c.Division),
			AgeGroup:    optionalString(c.AgeGroup),
			Position:    i,
			CreatedAt:   now,
		}
	}

	if err := s.races.Create(ctx, race, competitors); err != nil {
		s.logger.Error().Err(err).Str("event_code", race.EventCode).Msg("failed to create tracked race")
		return nil, err
	}

	s.logger.Info().
		Str("race_id", race.ID).
		Str("caller", middleware.GetCaller(ctx)).
		Str("request_id", middleware.GetRequestID(ctx)).
		Str("event_label", race.EventLabel).
		Int("competitors", len(competitors)).
		Int("poll_interval_seconds", interval).
		Msg("tracking started")

	return &trackerv1.StartTrackingResponse{
		RaceID:              race.ID,
		EventLabel:          race.EventLabel,
		CompetitorsCount:    len(competitors),
		PollIntervalSeconds: interval,
		Message:             fmt.Sprintf("Tracking %d competitor(s) in %s", len(competitors), race.EventLabel),
	}, nil
}

// ListRaces returns every race, newest first, with competitor status.
func (s *RaceService) ListRaces(ctx context.Context) ([]trackerv1.RaceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	races, err := s.races.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}

	statuses := make([]trackerv1.RaceStatus, len(races))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.StatusConcurrency)
	for i, race := range races {
		g.Go(func() error {
			status, err := s.raceStatus(gctx, race)
			if err != nil {
				return err
			}
			statuses[i] = status
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

func (s *RaceService) GetRace(ctx context.Context, raceID string) (*trackerv1.RaceStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	race, err := s.races.Get(ctx, raceID)
	if err != nil {
		return nil, notFound(err, "race "+raceID)
	}
	status, err := s.raceStatus(ctx, *race)
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *RaceService) raceStatus(ctx context.Context, race domain.TrackedRace) (trackerv1.RaceStatus, error) {
	states, err := s.races.CompetitorStates(ctx, race.ID)
	if err != nil {
		return trackerv1.RaceStatus{}, fmt.Errorf("failed to load competitors for race %s: %w", race.ID, err)
	}

	competitors := make([]trackerv1.CompetitorStatus, len(states))
	for i, st := range states {
		competitors[i] = competitorStatus(st.Competitor, st.Latest)
	}

	return trackerv1.RaceStatus{
		RaceID:              race.ID,
		EventLabel:          race.EventLabel,
		EventURLSlug:        race.EventURLSlug,
		EventCode:           race.EventCode,
		IsActive:            race.IsActive,
		PollIntervalSeconds: race.PollIntervalSeconds,
		LastPolledAt:        race.LastPolledAt,
		LastError:           race.LastError,
		ConsecutiveErrors:   race.ConsecutiveErrors,
		Competitors:         competitors,
	}, nil
}

func competitorStatus(c domain.TrackedCompetitor, latest *domain.CompetitorSnapshot) trackerv1.CompetitorStatus {
	status := trackerv1.CompetitorStatus{
		CompetitorID: c.ID,
		AthleteName:  c.AthleteName,
		BibNumber:    c.BibNumber,
		ExternalID:   c.ExternalID,
		Status:       string(domain.StatusNotStarted),
	}
	if latest == nil {
		return status
	}

	status.OverallRank = latest.OverallRank
	status.OverallTimeDisplay = latest.OverallTimeDisplay
	status.OverallTimeSeconds = latest.OverallTimeSeconds
	status.Status = string(latest.Status)
	status.LastCompletedStation = latest.LastCompletedStation
	status.LastCompletedStationOrder = latest.LastCompletedStationOrder
	status.StationsCompleted, status.ProgressPercentage = Progress(latest.LastCompletedStationOrder)
	status.SplitTimes = DecodeSplits(latest.SplitTimesJSON)
	capturedAt := latest.CapturedAt
	status.LastUpdated = &capturedAt
	return status
}

// audit logs a lifecycle change with the caller and request behind it.
func (s *RaceService) audit(ctx context.Context, raceID, msg string) {
	s.logger.Info().
		Str("race_id", raceID).
		Str("caller", middleware.GetCaller(ctx)).
		Str("request_id", middleware.GetRequestID(ctx)).
		Msg(msg)
}

func (s *RaceService) StopTracking(ctx context.Context, raceID string) (*trackerv1.RaceActionResponse, error) {
	dbCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	if err := s.races.Deactivate(dbCtx, raceID); err != nil {
		return nil, notFound(err, "race "+raceID)
	}
	s.audit(ctx, raceID, "tracking stopped")
	return &trackerv1.RaceActionResponse{RaceID: raceID, Message: "Tracking stopped"}, nil
}

func (s *RaceService) ResumeTracking(ctx context.Context, raceID string) (*trackerv1.RaceActionResponse, error) {
	dbCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	if err := s.races.Reactivate(dbCtx, raceID); err != nil {
		return nil, notFound(err, "race "+raceID)
	}
	s.audit(ctx, raceID, "tracking resumed")
	return &trackerv1.RaceActionResponse{RaceID: raceID, Message: "Tracking resumed"}, nil
}

func (s *RaceService) DeleteRace(ctx context.Context, raceID string) (*trackerv1.RaceActionResponse, error) {
	dbCtx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	if err := s.races.Delete(dbCtx, raceID); err != nil {
		return nil, notFound(err, "race "+raceID)
	}
	s.audit(ctx, raceID, "race deleted")
	return &trackerv1.RaceActionResponse{RaceID: raceID, Message: "Race deleted"}, nil
}

func (s *RaceService) CompetitorHistory(ctx context.Context, req *trackerv1.CompetitorHistoryRequest) (*trackerv1.CompetitorHistoryResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = constants.DefaultHistoryLimit
	}
	if limit < 1 || limit > constants.MaxHistoryLimit {
		return nil, invalid("limit must be between 1 and %d", constants.MaxHistoryLimit)
	}

	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	competitor, err := s.races.Competitor(ctx, req.RaceID, req.CompetitorID)
	if err != nil {
		return nil, notFound(err, "competitor "+req.CompetitorID)
	}

	snapshots, err := s.snapshots.History(ctx, competitor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", competitor.ID, err)
	}
	total, err := s.snapshots.Count(ctx, competitor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count snapshots for %s: %w", competitor.ID, err)
	}

	resp := &trackerv1.CompetitorHistoryResponse{
		CompetitorID:  competitor.ID,
		AthleteName:   competitor.AthleteName,
		SnapshotCount: total,
		Snapshots:     make([]trackerv1.Snapshot, len(snapshots)),
	}
	for i, snap := range snapshots {
		resp.Snapshots[i] = trackerv1.Snapshot{
			ID:                        snap.ID,
			CapturedAt:                snap.CapturedAt,
			OverallRank:               snap.OverallRank,
			OverallTimeDisplay:        snap.OverallTimeDisplay,
			OverallTimeSeconds:        snap.OverallTimeSeconds,
			Status:                    string(snap.Status),
			LastCompletedStation:      snap.LastCompletedStation,
			LastCompletedStationOrder: snap.LastCompletedStationOrder,
			SplitTimes:                DecodeSplits(snap.SplitTimesJSON),
			RoxzoneTimeSeconds:        snap.RoxzoneTimeSeconds,
		}
	}
	return resp, nil
}
