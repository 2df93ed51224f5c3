package fx

import (
	"database/sql"

	"race-tracker/internal/api"
	"race-tracker/internal/config"
	"race-tracker/internal/database"
	"race-tracker/internal/db"
	"race-tracker/internal/extract"
	"race-tracker/internal/logger"
	"race-tracker/internal/repository"
	"race-tracker/internal/server"
	"race-tracker/internal/service"
	"race-tracker/internal/worker"

	"go.uber.org/fx"
)

func ProvideQueries(sqlDB *sql.DB) *db.Queries {
	return db.New(sqlDB)
}

func ProvideHealthMonitor(cfg *config.Config) service.HealthMonitor {
	return service.NewHealthMonitor(cfg.MaxConsecutiveErrors)
}

var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(ProvideQueries),
	// station tables must be consistent before anything polls
	fx.Invoke(extract.ValidateVocabulary),
	// repos
	fx.Provide(repository.NewRaceRepository),
	fx.Provide(repository.NewSnapshotRepository),
	// results host
	fx.Provide(api.NewResultsClient),
	fx.Provide(api.NewEndpoints),
	// svc
	fx.Provide(service.NewResolver),
	fx.Provide(ProvideHealthMonitor),
	fx.Provide(service.NewRaceService),
	// worker
	fx.Provide(worker.NewFromConfig),
	// server
	fx.Provide(server.NewTrackerServer),
)
