package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"race-tracker/internal/api"
	"race-tracker/internal/config"
	"race-tracker/internal/database"
	"race-tracker/internal/db"
	"race-tracker/internal/middleware"
	"race-tracker/internal/repository"
	"race-tracker/internal/service"
	"race-tracker/internal/trackerv1"
	"race-tracker/internal/worker"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		DBPath:               filepath.Join(t.TempDir(), "server.db"),
		ResultsBaseURL:       "https://results.test",
		UserAgent:            "test",
		FetchTimeout:         time.Second,
		FetchMaxAttempts:     1,
		PollTick:             time.Second,
		MaxConsecutiveErrors: 10,
	}
	logger := zerolog.Nop()

	sqlDB, err := database.New(cfg, logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	q := db.New(sqlDB)
	races := repository.NewRaceRepository(sqlDB, q, logger)
	snapshots := repository.NewSnapshotRepository(sqlDB, q, logger)
	client := api.NewResultsClient(cfg, logger)
	endpoints := api.NewEndpoints(cfg)
	resolver := service.NewResolver(client, endpoints, logger)
	sched := worker.NewFromConfig(cfg, races, client, resolver, endpoints, service.NewHealthMonitor(cfg.MaxConsecutiveErrors), logger)

	tracker := NewTrackerServer(service.NewRaceService(races, snapshots, logger), sched, client, logger)
	srv := httptest.NewServer(NewRouter(tracker, logger))
	t.Cleanup(srv.Close)
	return srv
}

func call[Req, Res any](t *testing.T, srv *httptest.Server, procedure string, msg *Req, caller string) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](srv.Client(), srv.URL+procedure, connect.WithCodec(JSONCodec{}))
	req := connect.NewRequest(msg)
	if caller != "" {
		req.Header().Set(middleware.CallerHeader, caller)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func codeOf(err error) connect.Code {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return connect.CodeUnknown
}

func TestRequiresCallerIdentity(t *testing.T) {
	srv := newTestServer(t)
	_, err := call[trackerv1.ListRacesRequest, trackerv1.ListRacesResponse](t, srv, trackerv1.ListRacesProcedure, &trackerv1.ListRacesRequest{}, "")
	if codeOf(err) != connect.CodeUnauthenticated {
		t.Fatalf("err: got %v, want unauthenticated", err)
	}
}

func TestTrackingFlow(t *testing.T) {
	srv := newTestServer(t)

	_, err := call[trackerv1.StartTrackingRequest, trackerv1.StartTrackingResponse](t, srv, trackerv1.StartTrackingProcedure,
		&trackerv1.StartTrackingRequest{EventURLSlug: "s", EventCode: "c", EventLabel: "l"}, "alice")
	if codeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("empty competitors: got %v", err)
	}

	started, err := call[trackerv1.StartTrackingRequest, trackerv1.StartTrackingResponse](t, srv, trackerv1.StartTrackingProcedure,
		&trackerv1.StartTrackingRequest{
			EventURLSlug:        "season-8",
			EventCode:           "H_LR3",
			EventLabel:          "London",
			PollIntervalSeconds: 30,
			Competitors:         []trackerv1.CompetitorInput{{AthleteName: "Smith, John", Gender: "M"}},
		}, "alice")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.PollIntervalSeconds != 30 || started.CompetitorsCount != 1 {
		t.Errorf("start response: %+v", started)
	}

	race, err := call[trackerv1.RaceRequest, trackerv1.RaceStatus](t, srv, trackerv1.GetRaceProcedure, &trackerv1.RaceRequest{RaceID: started.RaceID}, "alice")
	if err != nil {
		t.Fatalf("get race: %v", err)
	}
	if !race.IsActive || len(race.Competitors) != 1 || race.Competitors[0].Status != "not_started" {
		t.Errorf("race: %+v", race)
	}

	list, err := call[trackerv1.ListRacesRequest, trackerv1.ListRacesResponse](t, srv, trackerv1.ListRacesProcedure, &trackerv1.ListRacesRequest{}, "alice")
	if err != nil || len(list.Races) != 1 {
		t.Fatalf("list: %v", err)
	}

	if _, err := call[trackerv1.RaceRequest, trackerv1.RaceActionResponse](t, srv, trackerv1.StopTrackingProcedure, &trackerv1.RaceRequest{RaceID: started.RaceID}, "alice"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := call[trackerv1.RaceRequest, trackerv1.RaceActionResponse](t, srv, trackerv1.ResumeTrackingProcedure, &trackerv1.RaceRequest{RaceID: started.RaceID}, "alice"); err != nil {
		t.Fatalf("resume: %v", err)
	}

	_, err = call[trackerv1.CompetitorHistoryRequest, trackerv1.CompetitorHistoryResponse](t, srv, trackerv1.GetCompetitorHistoryProcedure,
		&trackerv1.CompetitorHistoryRequest{RaceID: started.RaceID, CompetitorID: "missing"}, "alice")
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("history for unknown competitor: got %v", err)
	}

	if _, err := call[trackerv1.RaceRequest, trackerv1.RaceActionResponse](t, srv, trackerv1.DeleteRaceProcedure, &trackerv1.RaceRequest{RaceID: started.RaceID}, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = call[trackerv1.RaceRequest, trackerv1.RaceStatus](t, srv, trackerv1.GetRaceProcedure, &trackerv1.RaceRequest{RaceID: started.RaceID}, "alice")
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("deleted race: got %v", err)
	}
}

func TestWorkerHealth(t *testing.T) {
	srv := newTestServer(t)

	health, err := call[trackerv1.WorkerHealthRequest, trackerv1.WorkerHealthResponse](t, srv, trackerv1.WorkerHealthProcedure, &trackerv1.WorkerHealthRequest{}, "alice")
	if err != nil {
		t.Fatalf("worker health: %v", err)
	}
	if health.WorkerRunning || health.Status != "stopped" || health.ThrottledResponses != 0 {
		t.Errorf("health: %+v", health)
	}

	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
	var body struct {
		Status        string `json:"status"`
		WorkerRunning bool   `json:"worker_running"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.WorkerRunning {
		t.Errorf("health body: %+v", body)
	}
}
