package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"race-tracker/internal/api"
	"race-tracker/internal/config"
	"race-tracker/internal/domain"
	"race-tracker/internal/extract"
	"race-tracker/internal/repository"
	"race-tracker/internal/service"

	"github.com/rs/zerolog"
)

// RaceStore is the persistence the poll loop needs.
type RaceStore interface {
	ListActive(ctx context.Context) ([]domain.TrackedRace, error)
	LoadCycle(ctx context.Context, raceID string) (*domain.TrackedRace, []repository.CompetitorState, error)
	CommitCycle(ctx context.Context, cycle repository.CycleCommit) error
}

// Fetcher fetches pages and owns pooled connections released on Close.
type Fetcher interface {
	service.PageFetcher
	Close() error
}

// IdentifierResolver finds a competitor's external identifier.
type IdentifierResolver interface {
	Resolve(ctx context.Context, race domain.TrackedRace, competitor domain.TrackedCompetitor) (string, error)
}

type Options struct {
	Tick            time.Duration
	RaceDelay       time.Duration
	CompetitorDelay time.Duration
}

// Scheduler runs the background poll loop over active races.
type Scheduler struct {
	store     RaceStore
	fetcher   Fetcher
	resolver  IdentifierResolver
	endpoints api.Endpoints
	health    service.HealthMonitor
	opts      Options
	logger    zerolog.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(store RaceStore, fetcher Fetcher, resolver IdentifierResolver, endpoints api.Endpoints, health service.HealthMonitor, opts Options, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		fetcher:   fetcher,
		resolver:  resolver,
		endpoints: endpoints,
		health:    health,
		opts:      opts,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// NewFromConfig builds the process scheduler from its concrete collaborators.
func NewFromConfig(cfg *config.Config, races *repository.RaceRepository, client *api.ResultsClient, resolver *service.Resolver, endpoints api.Endpoints, health service.HealthMonitor, logger zerolog.Logger) *Scheduler {
	return New(races, client, resolver, endpoints, health, Options{
		Tick:            cfg.PollTick,
		RaceDelay:       cfg.PollRaceDelay,
		CompetitorDelay: cfg.PollCompetitorDelay,
	}, logger)
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("scheduler already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)
	s.logger.Info().Dur("tick", s.opts.Tick).Msg("scheduler started")
}

// Stop cancels the loop, waits for it to exit and releases the fetcher's
// connections. Calling it on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	<-done

	if err := s.fetcher.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to close fetcher")
	}
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		s.Tick(ctx)
		if !sleep(ctx, s.opts.Tick) {
			return
		}
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Due reports whether the race's poll interval has elapsed. A race that was
// never polled is always due.
func Due(race domain.TrackedRace, now time.Time) bool {
	if race.LastPolledAt == nil {
		return true
	}
	return now.Sub(*race.LastPolledAt) >= race.PollInterval()
}

// Tick runs one pass over the due races. Errors and panics stop at the tick.
func (s *Scheduler) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("recovered from panic in scheduler tick")
		}
	}()

	races, err := s.store.ListActive(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("failed to list active races")
		}
		return
	}

	now := s.now()
	var due []domain.TrackedRace
	for _, race := range races {
		if Due(race, now) {
			due = append(due, race)
		}
	}
	if len(due) == 0 {
		return
	}
	s.logger.Debug().Int("active", len(races)).Int("due", len(due)).Msg("polling due races")

	for i, race := range due {
		if i > 0 && !sleep(ctx, s.opts.RaceDelay) {
			return
		}
		if err := s.PollRace(ctx, race.ID); err != nil {
			if errors.Is(err, context.Canceled) {
				s.logger.Info().Str("race_id", race.ID).Msg("race cycle abandoned on shutdown")
				return
			}
			s.logger.Error().Err(err).Str("race_id", race.ID).Msg("race cycle failed")
		}
	}
}

// PollRace runs one cycle for a race and commits it atomically. A cancelled
// ctx discards the cycle.
func (s *Scheduler) PollRace(ctx context.Context, raceID string) error {
	race, states, err := s.store.LoadCycle(ctx, raceID)
	if err != nil {
		return fmt.Errorf("failed to load race %s: %w", raceID, err)
	}
	if !race.IsActive {
		return nil
	}

	logger := s.logger.With().Str("race_id", race.ID).Str("event", race.EventLabel).Logger()
	logger.Info().Int("competitors", len(states)).Msg("polling race")

	cycle := repository.CycleCommit{}
	failures := 0
	for i, state := range states {
		if i > 0 && !sleep(ctx, s.opts.CompetitorDelay) {
			return ctx.Err()
		}
		if err := s.pollCompetitor(ctx, *race, state, &cycle, logger); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			logger.Warn().
				Err(err).
				Str("competitor_id", state.Competitor.ID).
				Str("athlete", state.Competitor.AthleteName).
				Msg("competitor poll failed")
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cycle.Deactivate = s.health.Apply(race, failures, s.now())
	cycle.Race = *race
	if err := s.store.CommitCycle(ctx, cycle); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}

	event := logger.Info()
	if cycle.Deactivate {
		event = logger.Warn()
	}
	event.
		Int("failures", failures).
		Int("snapshots", len(cycle.Snapshots)).
		Int("bindings", len(cycle.Bindings)).
		Int("consecutive_errors", race.ConsecutiveErrors).
		Bool("deactivated", cycle.Deactivate).
		Msg("race cycle committed")
	return nil
}

// pollCompetitor stages whatever one competitor contributes to the cycle.
// A nil error with nothing staged is a normal outcome (unresolved, duplicate).
func (s *Scheduler) pollCompetitor(ctx context.Context, race domain.TrackedRace, state repository.CompetitorState, cycle *repository.CycleCommit, logger zerolog.Logger) (err error) {
	competitor := state.Competitor
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while polling competitor: %v", r)
		}
	}()

	externalID := ""
	if competitor.ExternalID != nil {
		externalID = *competitor.ExternalID
	}
	if externalID == "" {
		id, err := s.resolver.Resolve(ctx, race, competitor)
		if errors.Is(err, service.ErrNoMatch) {
			logger.Info().
				Str("competitor_id", competitor.ID).
				Str("athlete", competitor.AthleteName).
				Msg("athlete not found in search results yet")
			return nil
		}
		if err != nil {
			return err
		}
		externalID = id
		cycle.Bindings = append(cycle.Bindings, repository.Binding{CompetitorID: competitor.ID, ExternalID: id})
		logger.Info().
			Str("competitor_id", competitor.ID).
			Str("external_id", id).
			Msg("athlete resolved")
	}

	page, err := s.fetcher.Fetch(ctx, s.endpoints.DetailURL(race.EventURLSlug, race.EventCode, externalID))
	if err != nil {
		return fmt.Errorf("failed to fetch detail page: %w", err)
	}

	detail := extract.ParseDetail(page)
	if service.IsDuplicate(state.Latest, detail) {
		logger.Debug().Str("competitor_id", competitor.ID).Msg("no change since last snapshot")
		return nil
	}
	if service.IsRegression(state.Latest, detail) {
		logger.Warn().
			Str("competitor_id", competitor.ID).
			Str("latest_status", string(state.Latest.Status)).
			Str("observed_status", string(detail.Status)).
			Msg("discarding regressed observation")
		return nil
	}

	snapshot, err := service.NewSnapshot(competitor.ID, detail, s.now())
	if err != nil {
		return err
	}
	cycle.Snapshots = append(cycle.Snapshots, snapshot)
	return nil
}
