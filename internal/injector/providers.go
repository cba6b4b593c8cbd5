package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/skyrace/internal/config"
	"github.com/zeusync/skyrace/internal/core/events/bus"
	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/pathfind"
	"github.com/zeusync/skyrace/internal/race"
	"github.com/zeusync/skyrace/internal/server"
	"github.com/zeusync/skyrace/internal/terrain"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	bus.New,
	ProvideHub,
	ProvideGenerator,
	ProvideTerrain,
	ProvidePlanner,
	ProvideClock,
	ProvideSession,
	ProvideServer,
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	return log.New(cfg.LogLevel(), cfg.LogOptions())
}

func ProvideHub(cfg *config.Config, logger log.Log) *server.Hub {
	return server.NewHub(cfg.ServerConfig(), logger)
}

func ProvideGenerator() *terrain.Generator {
	return terrain.NewGenerator(terrain.PerlinSource)
}

// ProvideTerrain builds the tile manager, backed by a worker pool when
// generation is asynchronous.
func ProvideTerrain(cfg *config.Config, gen *terrain.Generator, hub *server.Hub, events bus.EventBus, logger log.Log) (*terrain.Manager, func(), error) {
	opts := []terrain.ManagerOption{
		terrain.WithListener(hub),
		terrain.WithEventBus(events),
		terrain.WithLogger(logger),
	}
	if cfg.Terrain.Async {
		backend := terrain.NewWorkerBackend(context.Background(), gen, cfg.Terrain.Workers, cfg.Terrain.QueueSize)
		opts = append(opts, terrain.WithBackend(backend))
	}

	m, err := terrain.NewManager(cfg.TerrainConfig(), gen, opts...)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close terrain", log.Error(err))
		}
	}
	return m, cleanup, nil
}

func ProvidePlanner(cfg *config.Config) (pathfind.Planner, error) {
	return pathfind.NewPlanner(cfg.Pathfinding.Mode, cfg.PathfindOptions())
}

func ProvideClock() race.Clock {
	return race.NewWallClock()
}

func ProvideSession(cfg *config.Config, hub *server.Hub, tiles *terrain.Manager, planner pathfind.Planner, clock race.Clock, events bus.EventBus, logger log.Log) (*race.Session, error) {
	return race.NewSession(cfg.RaceSettings(), race.Dependencies{
		Surface: hub,
		UI:      hub,
		Clock:   clock,
		Terrain: tiles,
		Planner: planner,
		Events:  events,
		Logger:  logger,
	})
}

func ProvideServer(cfg *config.Config, hub *server.Hub, session *race.Session, tiles *terrain.Manager, events bus.EventBus, logger log.Log) (*server.Server, error) {
	return server.NewServer(cfg.ServerConfig(), hub, session, tiles, events, logger)
}
