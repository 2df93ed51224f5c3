// Package trackerv1 holds the request and response messages of the
// tracker.v1.LiveTracking service.
package trackerv1

import "time"

const ServiceName = "tracker.v1.LiveTracking"

const (
	StartTrackingProcedure        = "/" + ServiceName + "/StartTracking"
	ListRacesProcedure            = "/" + ServiceName + "/ListRaces"
	GetRaceProcedure              = "/" + ServiceName + "/GetRace"
	StopTrackingProcedure         = "/" + ServiceName + "/StopTracking"
	ResumeTrackingProcedure       = "/" + ServiceName + "/ResumeTracking"
	DeleteRaceProcedure           = "/" + ServiceName + "/DeleteRace"
	GetCompetitorHistoryProcedure = "/" + ServiceName + "/GetCompetitorHistory"
	WorkerHealthProcedure         = "/" + ServiceName + "/WorkerHealth"
)

type CompetitorInput struct {
	AthleteName string `json:"athlete_name"`
	BibNumber   string `json:"bib_number,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Division    string `json:"division,omitempty"`
	AgeGroup    string `json:"age_group,omitempty"`
}

type StartTrackingRequest struct {
	EventURLSlug        string            `json:"event_url_slug"`
	EventCode           string            `json:"event_code"`
	EventLabel          string            `json:"event_label"`
	Competitors         []CompetitorInput `json:"competitors"`
	PollIntervalSeconds int               `json:"poll_interval_seconds,omitempty"`
}

type StartTrackingResponse struct {
	RaceID              string `json:"race_id"`
	EventLabel          string `json:"event_label"`
	CompetitorsCount    int    `json:"competitors_count"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	Message             string `json:"message"`
}

type Split struct {
	Order       int     `json:"order"`
	TimeDisplay *string `json:"time_display"`
	TimeSeconds *int    `json:"time_seconds"`
}

type CompetitorStatus struct {
	CompetitorID              string           `json:"competitor_id"`
	AthleteName               string           `json:"athlete_name"`
	BibNumber                 *string          `json:"bib_number,omitempty"`
	ExternalID                *string          `json:"external_id,omitempty"`
	OverallRank               *int             `json:"overall_rank"`
	OverallTimeDisplay        *string          `json:"overall_time_display"`
	OverallTimeSeconds        *int             `json:"overall_time_seconds"`
	Status                    string           `json:"status"`
	LastCompletedStation      *string          `json:"last_completed_station"`
	LastCompletedStationOrder *int             `json:"last_completed_station_order"`
	StationsCompleted         int              `json:"stations_completed"`
	ProgressPercentage        float64          `json:"progress_percentage"`
	SplitTimes                map[string]Split `json:"split_times,omitempty"`
	LastUpdated               *time.Time       `json:"last_updated"`
}

type RaceStatus struct {
	RaceID              string             `json:"race_id"`
	EventLabel          string             `json:"event_label"`
	EventURLSlug        string             `json:"event_url_slug"`
	EventCode           string             `json:"event_code"`
	IsActive            bool               `json:"is_active"`
	PollIntervalSeconds int                `json:"poll_interval_seconds"`
	LastPolledAt        *time.Time         `json:"last_polled_at"`
	LastError           *string            `json:"last_error"`
	ConsecutiveErrors   int                `json:"consecutive_errors"`
	Competitors         []CompetitorStatus `json:"competitors"`
}

type ListRacesRequest struct{}

type ListRacesResponse struct {
	Races []RaceStatus `json:"races"`
}

type RaceRequest struct {
	RaceID string `json:"race_id"`
}

type RaceActionResponse struct {
	RaceID  string `json:"race_id"`
	Message string `json:"message"`
}

type CompetitorHistoryRequest struct {
	RaceID       string `json:"race_id"`
	CompetitorID string `json:"competitor_id"`
	Limit        int    `json:"limit,omitempty"`
}

type Snapshot struct {
	ID                        string           `json:"id"`
	CapturedAt                time.Time        `json:"captured_at"`
	OverallRank               *int             `json:"overall_rank"`
	OverallTimeDisplay        *string          `json:"overall_time_display"`
	OverallTimeSeconds        *int             `json:"overall_time_seconds"`
	Status                    string           `json:"status"`
	LastCompletedStation      *string          `json:"last_completed_station"`
	LastCompletedStationOrder *int             `json:"last_completed_station_order"`
	SplitTimes                map[string]Split `json:"split_times"`
	RoxzoneTimeSeconds        *int             `json:"roxzone_time_seconds"`
}

type CompetitorHistoryResponse struct {
	CompetitorID  string     `json:"competitor_id"`
	AthleteName   string     `json:"athlete_name"`
	SnapshotCount int        `json:"snapshot_count"`
	Snapshots     []Snapshot `json:"snapshots"`
}

type WorkerHealthRequest struct{}

type WorkerHealthResponse struct {
	WorkerRunning      bool      `json:"worker_running"`
	Status             string    `json:"status"`
	ThrottledResponses int       `json:"throttled_responses"`
	LastThrottledAt    time.Time `json:"last_throttled_at,omitzero"`
}
