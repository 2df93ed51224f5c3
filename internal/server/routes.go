package server

import (
	"encoding/json"
	"net/http"

	"race-tracker/internal/middleware"
	"race-tracker/internal/trackerv1"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// NewRouter mounts the tracking procedures and the health probe.
func NewRouter(tracker *TrackerServer, logger zerolog.Logger) http.Handler {
	opts := []connect.HandlerOption{
		connect.WithCodec(JSONCodec{}),
		connect.WithInterceptors(middleware.CallerIdentity()),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		health := tracker.workerHealth()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"worker_running": health.WorkerRunning,
		})
	})

	r.Handle(trackerv1.StartTrackingProcedure, connect.NewUnaryHandler(trackerv1.StartTrackingProcedure, tracker.StartTracking, opts...))
	r.Handle(trackerv1.ListRacesProcedure, connect.NewUnaryHandler(trackerv1.ListRacesProcedure, tracker.ListRaces, opts...))
	r.Handle(trackerv1.GetRaceProcedure, connect.NewUnaryHandler(trackerv1.GetRaceProcedure, tracker.GetRace, opts...))
	r.Handle(trackerv1.StopTrackingProcedure, connect.NewUnaryHandler(trackerv1.StopTrackingProcedure, tracker.StopTracking, opts...))
	r.Handle(trackerv1.ResumeTrackingProcedure, connect.NewUnaryHandler(trackerv1.ResumeTrackingProcedure, tracker.ResumeTracking, opts...))
	r.Handle(trackerv1.DeleteRaceProcedure, connect.NewUnaryHandler(trackerv1.DeleteRaceProcedure, tracker.DeleteRace, opts...))
	r.Handle(trackerv1.GetCompetitorHistoryProcedure, connect.NewUnaryHandler(trackerv1.GetCompetitorHistoryProcedure, tracker.GetCompetitorHistory, opts...))
	r.Handle(trackerv1.WorkerHealthProcedure, connect.NewUnaryHandler(trackerv1.WorkerHealthProcedure, tracker.WorkerHealth, opts...))

	return r
}
