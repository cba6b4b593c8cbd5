// Package config loads the skyrace server configuration from YAML. Every key
// is optional; missing keys keep the values of Default.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/core/systems/physics"
	"github.com/zeusync/skyrace/internal/pathfind"
	"github.com/zeusync/skyrace/internal/race"
	"github.com/zeusync/skyrace/internal/server"
	"github.com/zeusync/skyrace/internal/terrain"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Server      ServerConfig      `yaml:"server"`
	Session     SessionConfig     `yaml:"session"`
	Player      PlayerConfig      `yaml:"player"`
	AI          AIConfig          `yaml:"ai"`
	Track       TrackConfig       `yaml:"track"`
	Terrain     TerrainConfig     `yaml:"terrain"`
	Pathfinding PathfindingConfig `yaml:"pathfinding"`
}

type LogConfig struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Output   []string `yaml:"output"`
}

type ServerConfig struct {
	Listen         string        `yaml:"listen"`
	TickRate       time.Duration `yaml:"tick_rate"`
	MaxClients     int           `yaml:"max_clients"`
	Token          string        `yaml:"token"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	SendBuffer     int           `yaml:"send_buffer"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	HistorySize    int           `yaml:"history_size"`
}

type SessionConfig struct {
	// MaxDelta caps the simulated time of one tick.
	MaxDelta time.Duration `yaml:"max_delta"`
}

type TuningConfig struct {
	Accel    float64 `yaml:"accel"`
	MaxSpeed float64 `yaml:"max_speed"`
	Friction float64 `yaml:"friction"`
}

type PlayerConfig struct {
	Tuning          TuningConfig `yaml:"tuning"`
	LookSensitivity float64      `yaml:"look_sensitivity"`
	Ceiling         float64      `yaml:"ceiling"`
	Start           r3.Vector    `yaml:"start"`
}

type AIConfig struct {
	Count              int           `yaml:"count"`
	Tuning             TuningConfig  `yaml:"tuning"`
	PathUpdateInterval time.Duration `yaml:"path_update_interval"`
	WaypointReach      float64       `yaml:"waypoint_reach"`
	CheckpointReach    float64       `yaml:"checkpoint_reach"`
	Start              r3.Vector     `yaml:"start"`
	Spacing            float64       `yaml:"spacing"`
}

type ObstacleConfig struct {
	Center r3.Vector `yaml:"center"`
	Radius float64   `yaml:"radius"`
}

type LayoutConfig struct {
	Checkpoints []r3.Vector      `yaml:"checkpoints"`
	Obstacles   []ObstacleConfig `yaml:"obstacles"`
}

type TrackConfig struct {
	Checkpoints     int           `yaml:"checkpoints"`
	Spacing         float64       `yaml:"spacing"`
	Offset          float64       `yaml:"offset"`
	LateralSpread   float64       `yaml:"lateral_spread"`
	Altitude        float64       `yaml:"altitude"`
	ArrivalRadius   float64       `yaml:"arrival_radius"`
	Obstacles       int           `yaml:"obstacles"`
	ObstacleRadius  float64       `yaml:"obstacle_radius"`
	ObstacleMinY    float64       `yaml:"obstacle_min_y"`
	ObstacleMaxY    float64       `yaml:"obstacle_max_y"`
	ObstacleDepth   float64       `yaml:"obstacle_depth"`
	CollisionRadius float64       `yaml:"collision_radius"`
	Seed            int64         `yaml:"seed"`
	Layout          *LayoutConfig `yaml:"layout"`
}

type TerrainConfig struct {
	terrain.Params `yaml:",inline"`

	CloseDistance int           `yaml:"close_distance"`
	WideDistance  int           `yaml:"wide_distance"`
	Debounce      time.Duration `yaml:"debounce"`
	MaxInFlight   int           `yaml:"max_in_flight"`
	// Async moves tile generation onto a worker pool.
	Async     bool `yaml:"async"`
	Workers   int  `yaml:"workers"`
	QueueSize int  `yaml:"queue_size"`
}

type PathfindingConfig struct {
	Mode              string  `yaml:"mode"`
	GridSize          float64 `yaml:"grid_size"`
	MaxNodes          int     `yaml:"max_nodes"`
	Clearance         float64 `yaml:"clearance"`
	MinMargin         float64 `yaml:"min_margin"`
	MinVerticalMargin float64 `yaml:"min_vertical_margin"`
	WorldExtent       float64 `yaml:"world_extent"`
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func tuningConfig(t physics.Tuning) TuningConfig {
	return TuningConfig{Accel: t.Accel, MaxSpeed: t.MaxSpeed, Friction: t.Friction}
}

func (t TuningConfig) tuning() physics.Tuning {
	return physics.Tuning{Accel: t.Accel, MaxSpeed: t.MaxSpeed, Friction: t.Friction}
}

// Default mirrors the defaults of every subsystem.
func Default() *Config {
	srv := server.DefaultServerConfig()
	rs := race.DefaultSettings()
	tc := terrain.DefaultConfig()
	po := pathfind.DefaultOptions()

	return &Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
			Output:   []string{"stderr"},
		},
		Server: ServerConfig{
			Listen:         srv.ListenAddr,
			TickRate:       srv.TickRate,
			MaxClients:     srv.MaxClients,
			Token:          srv.Token,
			MaxMessageSize: srv.MaxMessageSize,
			SendBuffer:     srv.SendBuffer,
			WriteTimeout:   srv.WriteTimeout,
			PingInterval:   srv.PingInterval,
			HistorySize:    srv.HistorySize,
		},
		Session: SessionConfig{MaxDelta: seconds(rs.MaxDelta)},
		Player: PlayerConfig{
			Tuning:          tuningConfig(rs.Player.Tuning),
			LookSensitivity: rs.Player.LookSensitivity,
			Ceiling:         rs.Player.Ceiling,
			Start:           rs.Player.Start,
		},
		AI: AIConfig{
			Count:              rs.AI.Count,
			Tuning:             tuningConfig(rs.AI.Tuning),
			PathUpdateInterval: seconds(rs.AI.PathUpdateInterval),
			WaypointReach:      rs.AI.WaypointReach,
			CheckpointReach:    rs.AI.CheckpointReach,
			Start:              rs.AI.Start,
			Spacing:            rs.AI.Spacing,
		},
		Track: TrackConfig{
			Checkpoints:     rs.Track.Checkpoints,
			Spacing:         rs.Track.Spacing,
			Offset:          rs.Track.Offset,
			LateralSpread:   rs.Track.LateralSpread,
			Altitude:        rs.Track.Altitude,
			ArrivalRadius:   rs.Track.ArrivalRadius,
			Obstacles:       rs.Track.Obstacles,
			ObstacleRadius:  rs.Track.ObstacleRadius,
			ObstacleMinY:    rs.Track.ObstacleMinY,
			ObstacleMaxY:    rs.Track.ObstacleMaxY,
			ObstacleDepth:   rs.Track.ObstacleDepth,
			CollisionRadius: rs.Track.CollisionRadius,
			Seed:            rs.Track.Seed,
		},
		Terrain: TerrainConfig{
			Params:        tc.Params,
			CloseDistance: tc.CloseDistance,
			WideDistance:  tc.WideDistance,
			Debounce:      tc.Debounce,
			MaxInFlight:   tc.MaxInFlight,
			Async:         true,
			Workers:       2,
			QueueSize:     16,
		},
		Pathfinding: PathfindingConfig{
			Mode:              pathfind.Mode3D,
			GridSize:          po.GridSize,
			MaxNodes:          po.MaxNodes,
			Clearance:         po.Clearance,
			MinMargin:         po.MinMargin,
			MinVerticalMargin: po.MinVerticalMargin,
			WorldExtent:       po.WorldExtent,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}

// LoadYAML decodes YAML over the defaults and validates the result. An
// empty document yields the defaults.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate fails on the first bad key; the error names its section.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log.encoding: unknown encoding %q", ErrInvalidConfig, c.Log.Encoding)
	}
	if err := c.ServerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: server: %w", ErrInvalidConfig, err)
	}
	if err := c.RaceSettings().Validate(); err != nil {
		return fmt.Errorf("%w: race: %w", ErrInvalidConfig, err)
	}
	if err := c.TerrainConfig().Validate(); err != nil {
		return fmt.Errorf("%w: terrain: %w", ErrInvalidConfig, err)
	}
	if c.Terrain.Async && c.Terrain.Workers < 1 {
		return fmt.Errorf("%w: terrain.workers: must be positive with async generation", ErrInvalidConfig)
	}
	if _, err := pathfind.NewPlanner(c.Pathfinding.Mode, c.PathfindOptions()); err != nil {
		return fmt.Errorf("%w: pathfinding: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

func (c *Config) LogOptions() log.Options {
	return log.Options{Encoding: c.Log.Encoding, OutputPaths: c.Log.Output}
}

func (c *Config) ServerConfig() server.Config {
	s := c.Server
	return server.Config{
		ListenAddr:     s.Listen,
		MaxClients:     s.MaxClients,
		Token:          s.Token,
		TickRate:       s.TickRate,
		MaxMessageSize: s.MaxMessageSize,
		SendBuffer:     s.SendBuffer,
		WriteTimeout:   s.WriteTimeout,
		PingInterval:   s.PingInterval,
		HistorySize:    s.HistorySize,
	}
}

func (c *Config) RaceSettings() race.Settings {
	t := c.Track
	rs := race.Settings{
		MaxDelta: c.Session.MaxDelta.Seconds(),
		Player: race.PlayerSettings{
			Tuning:          c.Player.Tuning.tuning(),
			LookSensitivity: c.Player.LookSensitivity,
			Ceiling:         c.Player.Ceiling,
			Start:           c.Player.Start,
		},
		AI: race.AISettings{
			Tuning:             c.AI.Tuning.tuning(),
			Count:              c.AI.Count,
			PathUpdateInterval: c.AI.PathUpdateInterval.Seconds(),
			WaypointReach:      c.AI.WaypointReach,
			CheckpointReach:    c.AI.CheckpointReach,
			Start:              c.AI.Start,
			Spacing:            c.AI.Spacing,
		},
		Track: race.TrackSettings{
			Checkpoints:     t.Checkpoints,
			Spacing:         t.Spacing,
			Offset:          t.Offset,
			LateralSpread:   t.LateralSpread,
			Altitude:        t.Altitude,
			ArrivalRadius:   t.ArrivalRadius,
			Obstacles:       t.Obstacles,
			ObstacleRadius:  t.ObstacleRadius,
			ObstacleMinY:    t.ObstacleMinY,
			ObstacleMaxY:    t.ObstacleMaxY,
			ObstacleDepth:   t.ObstacleDepth,
			CollisionRadius: t.CollisionRadius,
			Seed:            t.Seed,
		},
	}
	if t.Layout != nil {
		layout := &race.Layout{Checkpoints: append([]r3.Vector(nil), t.Layout.Checkpoints...)}
		for _, o := range t.Layout.Obstacles {
			layout.Obstacles = append(layout.Obstacles, race.Obstacle{Center: o.Center, Radius: o.Radius})
		}
		rs.Track.Layout = layout
	}
	return rs
}

func (c *Config) TerrainConfig() terrain.Config {
	return terrain.Config{
		Params:        c.Terrain.Params,
		CloseDistance: c.Terrain.CloseDistance,
		WideDistance:  c.Terrain.WideDistance,
		Debounce:      c.Terrain.Debounce,
		MaxInFlight:   c.Terrain.MaxInFlight,
	}
}

func (c *Config) PathfindOptions() pathfind.Options {
	p := c.Pathfinding
	return pathfind.Options{
		GridSize:          p.GridSize,
		MaxNodes:          p.MaxNodes,
		Clearance:         p.Clearance,
		MinMargin:         p.MinMargin,
		MinVerticalMargin: p.MinVerticalMargin,
		WorldExtent:       p.WorldExtent,
	}
}
