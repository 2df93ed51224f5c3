package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"race-tracker/internal/api"
	"race-tracker/internal/domain"
	"race-tracker/internal/extract"

	"github.com/rs/zerolog"
)

// ErrNoMatch means the search page had no candidate for the competitor.
// It is not a fetch failure; resolution is simply retried on a later cycle.
var ErrNoMatch = errors.New("no matching athlete in search results")

// PageFetcher retrieves a page body from the results host.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Resolver finds a competitor's external identifier on the search page.
type Resolver struct {
	fetcher   PageFetcher
	endpoints api.Endpoints
	logger    zerolog.Logger
}

func NewResolver(fetcher *api.ResultsClient, endpoints api.Endpoints, logger zerolog.Logger) *Resolver {
	return NewResolverWith(fetcher, endpoints, logger)
}

func NewResolverWith(fetcher PageFetcher, endpoints api.Endpoints, logger zerolog.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, endpoints: endpoints, logger: logger}
}

// FamilyName is the part of "Family, Given" before the first comma.
func FamilyName(athleteName string) string {
	family, _, _ := strings.Cut(athleteName, ",")
	return strings.TrimSpace(family)
}

func (r *Resolver) Resolve(ctx context.Context, race domain.TrackedRace, competitor domain.TrackedCompetitor) (string, error) {
	family := FamilyName(competitor.AthleteName)
	if family == "" {
		return "", ErrNoMatch
	}

	url := r.endpoints.SearchURL(race.EventURLSlug, race.EventCode, family)
	page, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to fetch search page: %w", err)
	}

	entries, strategy := extract.ParseRankingWithStrategy(page)
	r.logger.Debug().
		Str("competitor_id", competitor.ID).
		Str("family_name", family).
		Str("strategy", strategy).
		Int("candidates", len(entries)).
		Msg("search page parsed")

	entry, ok := MatchEntry(entries, competitor.AthleteName)
	if !ok {
		return "", ErrNoMatch
	}
	return entry.ExternalID, nil
}

// MatchEntry picks the candidate for athleteName: an exact case-insensitive
// name match first, else the first candidate containing the family name.
func MatchEntry(entries []domain.RankingEntry, athleteName string) (domain.RankingEntry, bool) {
	want := strings.ToLower(strings.TrimSpace(athleteName))
	for _, e := range entries {
		if e.ExternalID != "" && strings.ToLower(strings.TrimSpace(e.Name)) == want {
			return e, true
		}
	}

	family := strings.ToLower(FamilyName(athleteName))
	if family == "" {
		return domain.RankingEntry{}, false
	}
	for _, e := range entries {
		if e.ExternalID != "" && strings.Contains(strings.ToLower(e.Name), family) {
			return e, true
		}
	}
	return domain.RankingEntry{}, false
}
