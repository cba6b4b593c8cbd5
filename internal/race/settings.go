package race

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/internal/core/systems/physics"
)

var ErrInvalidSettings = errors.New("invalid race settings")

type PlayerSettings struct {
	Tuning          physics.Tuning
	LookSensitivity float64
	Ceiling         float64
	Start           r3.Vector
}

type AISettings struct {
	Tuning physics.Tuning
	Count  int
	// PathUpdateInterval is the path age, in race seconds, after which the
	// route is planned again. It is also the back-off after a failed plan.
	PathUpdateInterval float64
	WaypointReach      float64
	CheckpointReach    float64
	// AI i starts at Start + (i*Spacing - Spacing, 0, 0).
	Start   r3.Vector
	Spacing float64
}

type TrackSettings struct {
	Checkpoints     int
	Spacing         float64
	Offset          float64
	LateralSpread   float64
	Altitude        float64
	ArrivalRadius   float64
	Obstacles       int
	ObstacleRadius  float64
	ObstacleMinY    float64
	ObstacleMaxY    float64
	ObstacleDepth   float64
	CollisionRadius float64
	Seed            int64
	// Layout replaces the generated course when set.
	Layout *Layout
}

// Layout is an explicit course.
type Layout struct {
	Checkpoints []r3.Vector
	Obstacles   []Obstacle
}

type Settings struct {
	// MaxDelta caps a single frame step in seconds.
	MaxDelta float64
	Player   PlayerSettings
	AI       AISettings
	Track    TrackSettings
}

func DefaultSettings() Settings {
	tuning := physics.Tuning{Accel: 1.5, MaxSpeed: 10, Friction: 0.9}
	return Settings{
		MaxDelta: 0.1,
		Player: PlayerSettings{
			Tuning:          tuning,
			LookSensitivity: 0.002,
			Ceiling:         100,
			Start:           r3.Vector{Y: 10},
		},
		AI: AISettings{
			Tuning:             tuning,
			Count:              3,
			PathUpdateInterval: 3,
			WaypointReach:      5,
			CheckpointReach:    15,
			Start:              r3.Vector{Y: 10},
			Spacing:            20,
		},
		Track: TrackSettings{
			Checkpoints:     10,
			Spacing:         150,
			Offset:          50,
			LateralSpread:   100,
			Altitude:        10,
			ArrivalRadius:   10,
			Obstacles:       5,
			ObstacleRadius:  5,
			ObstacleMinY:    5,
			ObstacleMaxY:    5,
			ObstacleDepth:   1000,
			CollisionRadius: 5,
			Seed:            1,
		},
	}
}

func positive(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

func validTuning(name string, t physics.Tuning) error {
	switch {
	case !positive(t.Accel):
		return fmt.Errorf("%w: %s accel %v", ErrInvalidSettings, name, t.Accel)
	case !positive(t.MaxSpeed):
		return fmt.Errorf("%w: %s max speed %v", ErrInvalidSettings, name, t.MaxSpeed)
	case !(t.Friction > 0 && t.Friction <= 1):
		return fmt.Errorf("%w: %s friction %v", ErrInvalidSettings, name, t.Friction)
	}
	return nil
}

func (s Settings) Validate() error {
	if !positive(s.MaxDelta) {
		return fmt.Errorf("%w: max delta %v", ErrInvalidSettings, s.MaxDelta)
	}
	if err := validTuning("player", s.Player.Tuning); err != nil {
		return err
	}
	if err := validTuning("ai", s.AI.Tuning); err != nil {
		return err
	}
	switch {
	case s.Player.LookSensitivity < 0:
		return fmt.Errorf("%w: look sensitivity %v", ErrInvalidSettings, s.Player.LookSensitivity)
	case s.AI.Count < 0:
		return fmt.Errorf("%w: ai count %d", ErrInvalidSettings, s.AI.Count)
	case !positive(s.AI.PathUpdateInterval):
		return fmt.Errorf("%w: path update interval %v", ErrInvalidSettings, s.AI.PathUpdateInterval)
	case !positive(s.AI.WaypointReach) || !positive(s.AI.CheckpointReach):
		return fmt.Errorf("%w: ai reach thresholds", ErrInvalidSettings)
	case !positive(s.Track.ArrivalRadius) || s.Track.CollisionRadius < 0:
		return fmt.Errorf("%w: track radii", ErrInvalidSettings)
	}
	if s.Track.Layout != nil {
		if len(s.Track.Layout.Checkpoints) == 0 {
			return fmt.Errorf("%w: layout has no checkpoints", ErrInvalidSettings)
		}
		return nil
	}
	switch {
	case s.Track.Checkpoints < 1:
		return fmt.Errorf("%w: checkpoints %d", ErrInvalidSettings, s.Track.Checkpoints)
	case s.Track.Obstacles < 0:
		return fmt.Errorf("%w: obstacles %d", ErrInvalidSettings, s.Track.Obstacles)
	case s.Track.ObstacleMaxY < s.Track.ObstacleMinY:
		return fmt.Errorf("%w: obstacle altitude range", ErrInvalidSettings)
	}
	return nil
}
