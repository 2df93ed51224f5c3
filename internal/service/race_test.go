package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"race-tracker/internal/config"
	"race-tracker/internal/database"
	"race-tracker/internal/db"
	"race-tracker/internal/domain"
	"race-tracker/internal/middleware"
	"race-tracker/internal/repository"
	"race-tracker/internal/trackerv1"

	"github.com/rs/zerolog"
)

func newTestService(t *testing.T) (*RaceService, *repository.RaceRepository) {
	t.Helper()
	sqlDB, err := database.New(&config.Config{DBPath: filepath.Join(t.TempDir(), "svc.db")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	q := db.New(sqlDB)
	races := repository.NewRaceRepository(sqlDB, q, zerolog.Nop())
	snapshots := repository.NewSnapshotRepository(sqlDB, q, zerolog.Nop())
	return NewRaceService(races, snapshots, zerolog.Nop()), races
}

func validStart() *trackerv1.StartTrackingRequest {
	return &trackerv1.StartTrackingRequest{
		EventURLSlug: "season-8",
		EventCode:    "H_LR3_OVERALL",
		EventLabel:   "HYROX London",
		Competitors: []trackerv1.CompetitorInput{
			{AthleteName: "Smith, John", Gender: "M", BibNumber: "345"},
			{AthleteName: "Doe, Jane", Gender: "W"},
		},
	}
}

func TestStartTrackingValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tooMany := validStart()
	for range 20 {
		tooMany.Competitors = append(tooMany.Competitors, trackerv1.CompetitorInput{AthleteName: "Extra, Person"})
	}

	tests := map[string]func(r *trackerv1.StartTrackingRequest){
		"missing slug":      func(r *trackerv1.StartTrackingRequest) { r.EventURLSlug = " " },
		"missing code":      func(r *trackerv1.StartTrackingRequest) { r.EventCode = "" },
		"missing label":     func(r *trackerv1.StartTrackingRequest) { r.EventLabel = "" },
		"interval too low":  func(r *trackerv1.StartTrackingRequest) { r.PollIntervalSeconds = 29 },
		"interval too high": func(r *trackerv1.StartTrackingRequest) { r.PollIntervalSeconds = 301 },
		"no competitors":    func(r *trackerv1.StartTrackingRequest) { r.Competitors = nil },
		"too many":          func(r *trackerv1.StartTrackingRequest) { r.Competitors = tooMany.Competitors },
		"short name":        func(r *trackerv1.StartTrackingRequest) { r.Competitors[0].AthleteName = "X" },
		"bad gender":        func(r *trackerv1.StartTrackingRequest) { r.Competitors[1].Gender = "F" },
	}
	for name, mutate := range tests {
		req := validStart()
		mutate(req)
		if _, err := svc.StartTracking(context.Background(), req); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: got %v, want ErrInvalidArgument", name, err)
		}
	}
}

func TestStartTrackingAndStatus(t *testing.T) {
	svc, races := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartTracking(ctx, validStart())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if resp.PollIntervalSeconds != 60 || resp.CompetitorsCount != 2 || resp.RaceID == "" {
		t.Fatalf("response: %+v", resp)
	}

	race, states, err := races.LoadCycle(ctx, resp.RaceID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	order := 5
	snap, _ := NewSnapshot(states[0].Competitor.ID, &domain.AthleteDetail{
		Status:                    domain.StatusInProgress,
		OverallRank:               ip(12),
		LastCompletedStation:      ptr(domain.StationRun3.Name()),
		LastCompletedStationOrder: &order,
		Splits:                    []domain.SplitTime{{StationName: "Running 1", StationOrder: 1, TimeSeconds: ip(250)}},
	}, time.Now())
	now := time.Now()
	race.LastPolledAt = &now
	if err := races.CommitCycle(ctx, repository.CycleCommit{Race: *race, Snapshots: []domain.CompetitorSnapshot{snap}}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	status, err := svc.GetRace(ctx, resp.RaceID)
	if err != nil {
		t.Fatalf("get race: %v", err)
	}
	if len(status.Competitors) != 2 {
		t.Fatalf("competitors: got %d", len(status.Competitors))
	}
	first := status.Competitors[0]
	if first.AthleteName != "Smith, John" || first.Status != "in_progress" || first.StationsCompleted != 5 || first.ProgressPercentage != 31.3 {
		t.Errorf("first competitor: %+v", first)
	}
	if first.SplitTimes["Running 1"].Order != 1 || first.LastUpdated == nil {
		t.Errorf("splits/last updated: %+v", first)
	}
	second := status.Competitors[1]
	if second.Status != "not_started" || second.StationsCompleted != 0 || second.ProgressPercentage != 0 {
		t.Errorf("second competitor: %+v", second)
	}

	list, err := svc.ListRaces(ctx)
	if err != nil || len(list) != 1 || list[0].RaceID != resp.RaceID {
		t.Errorf("list: %d races, %v", len(list), err)
	}
}

func ptr(s string) *string { return &s }

func TestRaceLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartTracking(ctx, validStart())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.StopTracking(ctx, resp.RaceID); err != nil {
		t.Fatalf("stop: %v", err)
	}
	status, _ := svc.GetRace(ctx, resp.RaceID)
	if status.IsActive {
		t.Error("race still active after stop")
	}
	if len(status.Competitors) != 2 {
		t.Error("stop should keep competitors")
	}

	if _, err := svc.ResumeTracking(ctx, resp.RaceID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	status, _ = svc.GetRace(ctx, resp.RaceID)
	if !status.IsActive {
		t.Error("race inactive after resume")
	}

	if _, err := svc.DeleteRace(ctx, resp.RaceID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	for name, call := range map[string]func() error{
		"get":    func() error { _, err := svc.GetRace(ctx, resp.RaceID); return err },
		"stop":   func() error { _, err := svc.StopTracking(ctx, resp.RaceID); return err },
		"resume": func() error { _, err := svc.ResumeTracking(ctx, resp.RaceID); return err },
		"delete": func() error { _, err := svc.DeleteRace(ctx, resp.RaceID); return err },
	} {
		if err := call(); !errors.Is(err, ErrNotFound) {
			t.Errorf("%s after delete: got %v", name, err)
		}
	}
}

func TestCompetitorHistory(t *testing.T) {
	svc, races := newTestService(t)
	ctx := context.Background()

	resp, _ := svc.StartTracking(ctx, validStart())
	other, _ := svc.StartTracking(ctx, validStart())
	race, states, _ := races.LoadCycle(ctx, resp.RaceID)
	c := states[0].Competitor

	var staged []domain.CompetitorSnapshot
	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 3; i++ {
		order := i
		snap, _ := NewSnapshot(c.ID, &domain.AthleteDetail{Status: domain.StatusInProgress, LastCompletedStationOrder: &order}, base.Add(time.Duration(i)*time.Minute))
		staged = append(staged, snap)
	}
	if err := races.CommitCycle(ctx, repository.CycleCommit{Race: *race, Snapshots: staged}); err != nil {
		t.Fatalf("commit: %v", err)
	}

	hist, err := svc.CompetitorHistory(ctx, &trackerv1.CompetitorHistoryRequest{RaceID: resp.RaceID, CompetitorID: c.ID, Limit: 2})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if hist.SnapshotCount != 3 || len(hist.Snapshots) != 2 || *hist.Snapshots[0].LastCompletedStationOrder != 3 {
		t.Errorf("history: %+v", hist)
	}

	hist, err = svc.CompetitorHistory(ctx, &trackerv1.CompetitorHistoryRequest{RaceID: resp.RaceID, CompetitorID: c.ID})
	if err != nil || len(hist.Snapshots) != 3 {
		t.Errorf("default limit: %v", err)
	}

	_, err = svc.CompetitorHistory(ctx, &trackerv1.CompetitorHistoryRequest{RaceID: other.RaceID, CompetitorID: c.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("competitor from another race: got %v", err)
	}

	for _, limit := range []int{-1, 201} {
		_, err := svc.CompetitorHistory(ctx, &trackerv1.CompetitorHistoryRequest{RaceID: resp.RaceID, CompetitorID: c.ID, Limit: limit})
		if !errors.Is(err, ErrInvalidArgument) || !strings.Contains(err.Error(), "limit") {
			t.Errorf("limit %d: got %v", limit, err)
		}
	}
}

func TestRaceLifecycleHonoursDatabaseTimeout(t *testing.T) {
	svc, races := newTestService(t)
	ctx := context.Background()

	resp, err := svc.StartTracking(ctx, validStart())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	svc.dbTimeout = -time.Second
	ops := map[string]func() error{
		"stop":   func() error { _, err := svc.StopTracking(ctx, resp.RaceID); return err },
		"resume": func() error { _, err := svc.ResumeTracking(ctx, resp.RaceID); return err },
		"delete": func() error { _, err := svc.DeleteRace(ctx, resp.RaceID); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("%s: got %v, want deadline exceeded", name, err)
		}
	}

	race, err := races.Get(ctx, resp.RaceID)
	if err != nil {
		t.Fatalf("race should survive timed-out calls: %v", err)
	}
	if !race.IsActive {
		t.Error("timed-out stop deactivated the race")
	}
}

func TestRaceLifecycleLogsCaller(t *testing.T) {
	svc, _ := newTestService(t)
	var buf bytes.Buffer
	svc.logger = zerolog.New(&buf)

	ctx := context.WithValue(context.Background(), middleware.CallerKey, "ops@example.com")
	ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-42")

	resp, err := svc.StartTracking(ctx, validStart())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	buf.Reset()
	if _, err := svc.StopTracking(ctx, resp.RaceID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if entry["caller"] != "ops@example.com" || entry["request_id"] != "req-42" || entry["race_id"] != resp.RaceID {
		t.Errorf("log entry: %v", entry)
	}
	if entry["message"] != "tracking stopped" {
		t.Errorf("message: %v", entry["message"])
	}
}
