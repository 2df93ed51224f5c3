package db

import (
	"time"
)

type TrackedRace struct {
	ID                  string
	EventUrlSlug        string
	EventCode           string
	EventLabel          string
	IsActive            bool
	PollIntervalSeconds int64
	LastPolledAt        *time.Time
	LastError           *string
	ConsecutiveErrors   int64
	CreatedAt           time.Time
}

type TrackedCompetitor struct {
	ID          string
	RaceID      string
	AthleteName string
	BibNumber   *string
	ExternalID  *string
	Gender      *string
	Division    *string
	AgeGroup    *string
	Position    int64
	CreatedAt   time.Time
}

type CompetitorSnapshot struct {
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
