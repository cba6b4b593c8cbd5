package pathfind

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func assertGridSteps(t *testing.T, start r3.Vector, path []r3.Vector, grid float64, allowed ...float64) {
	t.Helper()
	prev := start
	for i, p := range path[:len(path)-1] {
		step := p.Distance(prev)
		ok := false
		for _, a := range allowed {
			if math.Abs(step-a) < eps {
				ok = true
				break
			}
		}
		assert.Truef(t, ok, "waypoint %d step %v is not a grid step of %v", i, step, grid)
		prev = p
	}
}

func TestFindPath2DOpenGridEndsAtGoal(t *testing.T) {
	opts := DefaultOptions()
	start := r3.Vector{X: 0, Y: 10, Z: 0}
	goal := r3.Vector{X: 103, Y: 10, Z: -47}

	path := FindPath2D(start, goal, nil, opts)
	require.NotEmpty(t, path)
	assert.Equal(t, goal, path[len(path)-1])
	assert.NotEqual(t, start, path[0])
	assertGridSteps(t, start, path, opts.GridSize, opts.GridSize, opts.GridSize*math.Sqrt2)
	for _, p := range path[:len(path)-1] {
		assert.Equal(t, 10.0, p.Y)
	}
	assert.Less(t, path[len(path)-2].Distance(goal), opts.GridSize)
}

func TestFindPath2DStartNearGoal(t *testing.T) {
	goal := r3.Vector{X: 3, Y: 10}
	path := FindPath2D(r3.Vector{Y: 10}, goal, nil, DefaultOptions())
	assert.Equal(t, []r3.Vector{goal}, path)
}

func TestFindPath2DAvoidsObstacles(t *testing.T) {
	opts := DefaultOptions()
	start := r3.Vector{Y: 10}
	goal := r3.Vector{X: 100, Y: 10}
	obstacles := []Obstacle{{Center: r3.Vector{X: 50, Y: 10}, Radius: 10}}

	path := FindPath2D(start, goal, obstacles, opts)
	require.NotEmpty(t, path)
	assert.Equal(t, goal, path[len(path)-1])
	for _, p := range path[:len(path)-1] {
		assert.GreaterOrEqual(t, p.Distance(obstacles[0].Center), obstacles[0].Radius+opts.Clearance)
	}
}

func ring(center r3.Vector, radius float64, count int) []Obstacle {
	out := make([]Obstacle, 0, count)
	for i := 0; i < count; i++ {
		a := 2 * math.Pi * float64(i) / float64(count)
		out = append(out, Obstacle{
			Center: center.Add(r3.Vector{X: radius * math.Cos(a), Z: radius * math.Sin(a)}),
			Radius: 10,
		})
	}
	return out
}

func TestFindPath2DEnclosedGoalHitsNodeBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxNodes = 2000
	goal := r3.Vector{X: 100, Y: 10}

	path := FindPath2D(r3.Vector{Y: 10}, goal, ring(goal, 40, 36), opts)
	assert.Empty(t, path)
}

func TestFindPath2DReachesGoalOutsideWorldBox(t *testing.T) {
	opts := DefaultOptions()
	opts.WorldExtent = 100
	start := r3.Vector{Y: 10}
	goal := r3.Vector{X: 20, Y: 10, Z: -300}

	path := FindPath2D(start, goal, nil, opts)
	require.NotEmpty(t, path)
	assert.Equal(t, goal, path[len(path)-1])
}

func TestFindPath2DOnlyMarksObstaclesInsideWorldBox(t *testing.T) {
	opts := DefaultOptions()
	opts.WorldExtent = 100
	start := r3.Vector{Y: 10}
	goal := r3.Vector{Y: 10, Z: -300}
	outside := Obstacle{Center: r3.Vector{Y: 10, Z: -200}, Radius: 10}

	path := FindPath2D(start, goal, []Obstacle{outside}, opts)
	require.NotEmpty(t, path)
	assert.Contains(t, path, outside.Center)

	opts.WorldExtent = 1000
	path = FindPath2D(start, goal, []Obstacle{outside}, opts)
	require.NotEmpty(t, path)
	assert.NotContains(t, path, outside.Center)
}

func TestFindPath2DArrivesAtDifferentAltitude(t *testing.T) {
	opts := DefaultOptions()
	start := r3.Vector{Y: 10}
	goal := r3.Vector{X: 50, Y: 80}

	path := FindPath2D(start, goal, nil, opts)
	require.NotEmpty(t, path)
	assert.Equal(t, goal, path[len(path)-1])
	for _, p := range path[:len(path)-1] {
		assert.Equal(t, 10.0, p.Y)
	}
}

func TestFindPath3DEnclosedGoalExhaustsOpenSet(t *testing.T) {
	opts := DefaultOptions()
	opts.MinMargin = 0
	opts.MinVerticalMargin = 0
	goal := r3.Vector{X: 100, Y: 10}

	// Stacked rings wall the goal in over the whole height of the search box.
	var walls []Obstacle
	for _, y := range []float64{-10, 10, 30} {
		walls = append(walls, ring(goal.Add(r3.Vector{Y: y - goal.Y}), 40, 36)...)
	}

	path := FindPath3D(r3.Vector{Y: 10}, goal, walls, opts)
	assert.Empty(t, path)
}

func TestFindPath3DClimbsToGoal(t *testing.T) {
	opts := DefaultOptions()
	start := r3.Vector{X: 0, Y: 10, Z: 0}
	goal := r3.Vector{X: 40, Y: 60, Z: -120}

	path := FindPath3D(start, goal, nil, opts)
	require.NotEmpty(t, path)
	assert.Equal(t, goal, path[len(path)-1])
	g := opts.GridSize
	assertGridSteps(t, start, path, g, g, g*math.Sqrt2, g*math.Sqrt(3))
}

func TestFindPath3DRespectsNodeBudget(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxNodes = 50
	path := FindPath3D(r3.Vector{Y: 10}, r3.Vector{Y: 10, Z: -800}, nil, opts)
	assert.Nil(t, path)
}

func TestFindPath3DGoesAroundObstacle(t *testing.T) {
	opts := DefaultOptions()
	start := r3.Vector{Y: 10}
	goal := r3.Vector{Y: 10, Z: -150}
	obstacles := []Obstacle{{Center: r3.Vector{Y: 10, Z: -75}, Radius: 12}}

	path := FindPath3D(start, goal, obstacles, opts)
	require.NotEmpty(t, path)
	for _, p := range path[:len(path)-1] {
		assert.GreaterOrEqual(t, p.Distance(obstacles[0].Center), 12+opts.Clearance)
	}
}

func TestNewPlanner(t *testing.T) {
	p, err := NewPlanner("2D", DefaultOptions())
	require.NoError(t, err)
	path := p(r3.Vector{}, r3.Vector{X: 30}, nil)
	require.NotEmpty(t, path)
	assert.Equal(t, 0.0, path[0].Y)

	p, err = NewPlanner(Mode3D, DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, p(r3.Vector{}, r3.Vector{Y: 30}, nil))

	_, err = NewPlanner("hex", DefaultOptions())
	assert.ErrorIs(t, err, ErrUnknownMode)

	bad := DefaultOptions()
	bad.GridSize = 0
	_, err = NewPlanner(Mode2D, bad)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}
