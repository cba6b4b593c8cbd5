package race

import (
	"math/rand/v2"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/internal/pathfind"
)

// Obstacle is an immutable blocking sphere.
type Obstacle = pathfind.Obstacle

// Checkpoint is an immutable gate the vehicles must pass.
type Checkpoint struct {
	Index    int       `json:"index"`
	Position r3.Vector `json:"position"`
}

// Course is built once per session and never mutated.
type Course struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
	Obstacles   []Obstacle   `json:"obstacles"`
}

// NewCourse lays the checkpoints out along -Z with a seeded lateral jitter
// and scatters obstacles over the same stretch, unless an explicit layout
// is given.
func NewCourse(t TrackSettings) Course {
	if t.Layout != nil {
		c := Course{Obstacles: append([]Obstacle(nil), t.Layout.Obstacles...)}
		for i, p := range t.Layout.Checkpoints {
			c.Checkpoints = append(c.Checkpoints, Checkpoint{Index: i, Position: p})
		}
		return c
	}

	rng := rand.New(rand.NewPCG(uint64(t.Seed), uint64(t.Seed)^0x9e3779b97f4a7c15))
	c := Course{
		Checkpoints: make([]Checkpoint, 0, t.Checkpoints),
		Obstacles:   make([]Obstacle, 0, t.Obstacles),
	}
	for i := 0; i < t.Checkpoints; i++ {
		c.Checkpoints = append(c.Checkpoints, Checkpoint{
			Index: i,
			Position: r3.Vector{
				X: (rng.Float64() - 0.5) * t.LateralSpread,
				Y: t.Altitude,
				Z: -float64(i)*t.Spacing - t.Offset,
			},
		})
	}
	for i := 0; i < t.Obstacles; i++ {
		c.Obstacles = append(c.Obstacles, Obstacle{
			Center: r3.Vector{
				X: (rng.Float64() - 0.5) * t.LateralSpread,
				Y: t.ObstacleMinY + rng.Float64()*(t.ObstacleMaxY-t.ObstacleMinY),
				Z: -rng.Float64()*t.ObstacleDepth - t.Offset,
			},
			Radius: t.ObstacleRadius,
		})
	}
	return c
}
