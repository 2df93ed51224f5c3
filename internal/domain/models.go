package domain

import (
	"time"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusDNF        Status = "dnf"
	StatusDSQ        Status = "dsq"
)

// Terminal reports whether no later observation may move the competitor out of s.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusDNF, StatusDSQ:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusFinished, StatusDNF, StatusDSQ:
		return true
	}
	return false
}

type TrackedRace struct {
	ID                  string
	EventURLSlug        string
	EventCode           string
	EventLabel          string
	IsActive            bool
	PollIntervalSeconds int
	LastPolledAt        *time.Time
	LastError           *string
	ConsecutiveErrors   int
	CreatedAt           time.Time
}

// PollInterval is the minimum spacing between two cycles of the race.
func (r TrackedRace) PollInterval() time.Duration {
	return time.Duration(r.PollIntervalSeconds) * time.Second
}

type TrackedCompetitor struct {
	ID          string
	RaceID      string
	AthleteName string // "Family, Given"
	BibNumber   *string
	ExternalID  *string // mika timing idp, bound once
	Gender      *string // "M" or "W"
	Division    *string
	AgeGroup    *string
	Position    int
	CreatedAt   time.Time
}

type CompetitorSnapshot struct {
	ID                        string // nanoid
	CompetitorID              string
	CapturedAt                time.Time
	OverallRank               *int
	OverallTimeSeconds        *int
	OverallTimeDisplay        *string
	Status                    Status
	LastCompletedStation      *string
	LastCompletedStationOrder *int
	SplitTimesJSON            *string
	RoxzoneTimeSeconds        *int
}

// RankingEntry is one candidate row from a search/ranking page.
type RankingEntry struct {
	Name        string // "Family, Given"
	ExternalID  string
	Rank        *int
	Bib         *string
	TimeDisplay *string
}

type SplitTime struct {
	StationName  string
	StationOrder int
	TimeDisplay  *string // nil when the source shows a placeholder
	TimeSeconds  *int
}

// AthleteDetail is the extracted state of one athlete's detail page.
type AthleteDetail struct {
	Name                      *string
	Bib                       *string
	OverallRank               *int
	OverallTimeDisplay        *string
	OverallTimeSeconds        *int
	Status                    Status
	Splits                    []SplitTime
	LastCompletedStation      *string
	LastCompletedStationOrder *int
	RoxzoneTimeSeconds        *int
}
