package constants

import "time"

const (
	ResultsBaseURL = "https://results.hyrox.com"
	UserAgent      = "RaceTracker/1.0 (Live Race Tracking)"
	SearchResults  = 100
)

const (
	FetchTimeout      = 30 * time.Second
	FetchMaxAttempts  = 3
	FetchBaseDelay    = 1 * time.Second
	DefaultRetryAfter = 10 * time.Second
	MaxRedirects      = 5
	MaxBodyBytes      = 8 * 1024 * 1024
)

const (
	PollTick             = 5 * time.Second
	InterRaceDelay       = 2 * time.Second
	InterCompetitorDelay = 1 * time.Second
	MaxConsecutiveErrors = 10
)

const (
	MinPollIntervalSeconds     = 30
	MaxPollIntervalSeconds     = 300
	DefaultPollIntervalSeconds = 60
	MaxCompetitorsPerRace      = 20
	MinAthleteNameLength       = 2
	DefaultHistoryLimit        = 50
	MaxHistoryLimit            = 200
	StatusConcurrency          = 4
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
