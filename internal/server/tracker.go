package server

import (
	"context"
	"errors"

	"race-tracker/internal/api"
	"race-tracker/internal/service"
	"race-tracker/internal/trackerv1"
	"race-tracker/internal/worker"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

type TrackerServer struct {
	races     *service.RaceService
	scheduler *worker.Scheduler
	client    *api.ResultsClient
	logger    zerolog.Logger
}

func NewTrackerServer(races *service.RaceService, scheduler *worker.Scheduler, client *api.ResultsClient, logger zerolog.Logger) *TrackerServer {
	return &TrackerServer{races: races, scheduler: scheduler, client: client, logger: logger}
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func (s *TrackerServer) StartTracking(ctx context.Context, req *connect.Request[trackerv1.StartTrackingRequest]) (*connect.Response[trackerv1.StartTrackingResponse], error) {
	resp, err := s.races.StartTracking(ctx, req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) ListRaces(ctx context.Context, _ *connect.Request[trackerv1.ListRacesRequest]) (*connect.Response[trackerv1.ListRacesResponse], error) {
	races, err := s.races.ListRaces(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&trackerv1.ListRacesResponse{Races: races}), nil
}

func (s *TrackerServer) GetRace(ctx context.Context, req *connect.Request[trackerv1.RaceRequest]) (*connect.Response[trackerv1.RaceStatus], error) {
	race, err := s.races.GetRace(ctx, req.Msg.RaceID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(race), nil
}

func (s *TrackerServer) StopTracking(ctx context.Context, req *connect.Request[trackerv1.RaceRequest]) (*connect.Response[trackerv1.RaceActionResponse], error) {
	resp, err := s.races.StopTracking(ctx, req.Msg.RaceID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) ResumeTracking(ctx context.Context, req *connect.Request[trackerv1.RaceRequest]) (*connect.Response[trackerv1.RaceActionResponse], error) {
	resp, err := s.races.ResumeTracking(ctx, req.Msg.RaceID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) DeleteRace(ctx context.Context, req *connect.Request[trackerv1.RaceRequest]) (*connect.Response[trackerv1.RaceActionResponse], error) {
	resp, err := s.races.DeleteRace(ctx, req.Msg.RaceID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) GetCompetitorHistory(ctx context.Context, req *connect.Request[trackerv1.CompetitorHistoryRequest]) (*connect.Response[trackerv1.CompetitorHistoryResponse], error) {
	resp, err := s.races.CompetitorHistory(ctx, req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(resp), nil
}

func (s *TrackerServer) WorkerHealth(_ context.Context, _ *connect.Request[trackerv1.WorkerHealthRequest]) (*connect.Response[trackerv1.WorkerHealthResponse], error) {
	return connect.NewResponse(s.workerHealth()), nil
}

func (s *TrackerServer) workerHealth() *trackerv1.WorkerHealthResponse {
	running := s.scheduler.IsRunning()
	status := "stopped"
	if running {
		status = "running"
	}
	throttle := s.client.GetThrottleInfo()
	return &trackerv1.WorkerHealthResponse{
		WorkerRunning:      running,
		Status:             status,
		ThrottledResponses: throttle.Count,
		LastThrottledAt:    throttle.UpdatedAt,
	}
}
