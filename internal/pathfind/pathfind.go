// Package pathfind plans collision-free routes on a regular grid anchored at
// the start position. Searches are stateless; an empty result means no route
// was found within the expansion budget and callers retry later.
package pathfind

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/pkg/sequence"
)

var (
	ErrUnknownMode    = errors.New("unknown pathfinding mode")
	ErrInvalidOptions = errors.New("invalid pathfinding options")
)

const (
	Mode2D = "2d"
	Mode3D = "3d"
)

// Obstacle is a blocking sphere.
type Obstacle struct {
	Center r3.Vector `json:"center"`
	Radius float64   `json:"radius"`
}

// Options bound a single search.
type Options struct {
	// GridSize is the cell edge length and the success distance to the goal.
	GridSize float64
	// MaxNodes caps node expansions before the search gives up.
	MaxNodes int
	// Clearance is added to every obstacle radius when testing cells.
	Clearance float64
	// MinMargin and MinVerticalMargin are the lower bounds of the 3D search box
	// around the start/goal span.
	MinMargin         float64
	MinVerticalMargin float64
	// WorldExtent is the half size of the fixed 2D search box around the origin.
	WorldExtent float64
}

func DefaultOptions() Options {
	return Options{
		GridSize:          10,
		MaxNodes:          10000,
		Clearance:         5,
		MinMargin:         200,
		MinVerticalMargin: 20,
		WorldExtent:       1000,
	}
}

func (o Options) Validate() error {
	switch {
	case !(o.GridSize > 0) || math.IsInf(o.GridSize, 0):
		return fmt.Errorf("%w: grid size %v", ErrInvalidOptions, o.GridSize)
	case o.MaxNodes <= 0:
		return fmt.Errorf("%w: max nodes %d", ErrInvalidOptions, o.MaxNodes)
	case o.Clearance < 0 || math.IsNaN(o.Clearance):
		return fmt.Errorf("%w: clearance %v", ErrInvalidOptions, o.Clearance)
	case o.MinMargin < 0 || o.MinVerticalMargin < 0:
		return fmt.Errorf("%w: negative margin", ErrInvalidOptions)
	case !(o.WorldExtent > 0):
		return fmt.Errorf("%w: world extent %v", ErrInvalidOptions, o.WorldExtent)
	}
	return nil
}

// Planner computes a waypoint route from start to goal. The start position is
// never part of the result; the goal always is when a route exists.
type Planner func(start, goal r3.Vector, obstacles []Obstacle) []r3.Vector

// NewPlanner binds options to the 2D or 3D search.
func NewPlanner(mode string, opts Options) (Planner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(mode) {
	case Mode2D:
		return func(start, goal r3.Vector, obstacles []Obstacle) []r3.Vector {
			return FindPath2D(start, goal, obstacles, opts)
		}, nil
	case Mode3D, "":
		return func(start, goal r3.Vector, obstacles []Obstacle) []r3.Vector {
			return FindPath3D(start, goal, obstacles, opts)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// FindPath2D searches the horizontal plane at the start altitude. Obstacles
// are only marked inside the fixed world box; cells outside it stay passable.
// Goal arrival ignores the altitude difference.
func FindPath2D(start, goal r3.Vector, obstacles []Obstacle, opts Options) []r3.Vector {
	e := opts.WorldExtent
	return search(start, goal, obstacles, opts, space{
		dirs: dirs2D,
		box: bounds{
			min: r3.Vector{X: -e, Y: math.Inf(-1), Z: -e},
			max: r3.Vector{X: e, Y: math.Inf(1), Z: e},
		},
		dist: planar,
		cost: func(cell) float64 { return opts.GridSize },
	})
}

// FindPath3D searches all 26 neighbours inside a box derived from the
// start/goal span. Cells outside the box are never expanded.
func FindPath3D(start, goal r3.Vector, obstacles []Obstacle, opts Options) []r3.Vector {
	g := opts.GridSize
	span := math.Max(math.Max(math.Abs(start.X-goal.X), math.Abs(start.Z-goal.Z)), opts.MinMargin) + g
	ySpan := math.Max(math.Abs(start.Y-goal.Y), opts.MinVerticalMargin) + g
	return search(start, goal, obstacles, opts, space{
		dirs: dirs3D,
		box: bounds{
			min: r3.Vector{
				X: math.Min(start.X, goal.X) - span,
				Y: math.Min(math.Min(start.Y, goal.Y), 0) - ySpan,
				Z: math.Min(start.Z, goal.Z) - span,
			},
			max: r3.Vector{
				X: math.Max(start.X, goal.X) + span,
				Y: math.Max(math.Max(start.Y, goal.Y), 30) + ySpan,
				Z: math.Max(start.Z, goal.Z) + span,
			},
		},
		clip: true,
		dist: r3.Vector.Distance,
		cost: func(d cell) float64 {
			return g * math.Sqrt(float64(d.x*d.x+d.y*d.y+d.z*d.z))
		},
	})
}

func planar(a, b r3.Vector) float64 {
	return math.Hypot(a.X-b.X, a.Z-b.Z)
}

// space describes one search variant. With clip set the box bounds the
// search; otherwise it only bounds where obstacles are marked.
type space struct {
	dirs []cell
	box  bounds
	clip bool
	dist func(a, b r3.Vector) float64
	cost func(cell) float64
}

// cell is an integer offset from the start position in grid units.
type cell struct{ x, y, z int }

func (c cell) add(d cell) cell { return cell{c.x + d.x, c.y + d.y, c.z + d.z} }

var dirs2D, dirs3D = neighbours(false), neighbours(true)

func neighbours(vertical bool) []cell {
	var out []cell
	ys := []int{0}
	if vertical {
		ys = []int{-1, 0, 1}
	}
	for _, dx := range []int{-1, 0, 1} {
		for _, dy := range ys {
			for _, dz := range []int{-1, 0, 1} {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, cell{dx, dy, dz})
			}
		}
	}
	return out
}

type bounds struct{ min, max r3.Vector }

func (b bounds) contains(p r3.Vector) bool {
	return p.X >= b.min.X && p.X <= b.max.X &&
		p.Y >= b.min.Y && p.Y <= b.max.Y &&
		p.Z >= b.min.Z && p.Z <= b.max.Z
}

type pathNode struct {
	c      cell
	pos    r3.Vector
	g      float64
	parent *pathNode
}

func search(start, goal r3.Vector, obstacles []Obstacle, opts Options, sp space) []r3.Vector {
	if opts.GridSize <= 0 || opts.MaxNodes <= 0 {
		return nil
	}
	g := opts.GridSize

	toWorld := func(c cell) r3.Vector {
		return start.Add(r3.Vector{X: float64(c.x), Y: float64(c.y), Z: float64(c.z)}.Mul(g))
	}

	// Lazily filled; only cells the search touches are tested.
	blocked := make(map[cell]bool)
	isBlocked := func(c cell, p r3.Vector) bool {
		if v, ok := blocked[c]; ok {
			return v
		}
		if !sp.box.contains(p) {
			return false
		}
		v := false
		for _, o := range obstacles {
			if p.Distance(o.Center) < o.Radius+opts.Clearance {
				v = true
				break
			}
		}
		blocked[c] = v
		return v
	}

	open := sequence.NewPriorityQueue[*pathNode](64)
	root := &pathNode{pos: start}
	open.Enqueue(root, sp.dist(start, goal))

	best := map[cell]float64{{}: 0}
	closed := make(map[cell]bool)
	expanded := 0

	for !open.IsEmpty() {
		cur, _ := open.Dequeue()
		if closed[cur.c] {
			continue
		}
		expanded++
		if expanded > opts.MaxNodes {
			return nil
		}
		closed[cur.c] = true

		if sp.dist(cur.pos, goal) < g {
			return buildPath(cur, goal)
		}

		for _, d := range sp.dirs {
			nc := cur.c.add(d)
			if closed[nc] {
				continue
			}
			np := toWorld(nc)
			if (sp.clip && !sp.box.contains(np)) || isBlocked(nc, np) {
				continue
			}
			ng := cur.g + sp.cost(d)
			if prev, ok := best[nc]; ok && ng >= prev {
				continue
			}
			best[nc] = ng
			open.Enqueue(&pathNode{c: nc, pos: np, g: ng, parent: cur}, ng+sp.dist(np, goal))
		}
	}
	return nil
}

func buildPath(end *pathNode, goal r3.Vector) []r3.Vector {
	var path []r3.Vector
	for n := end; n.parent != nil; n = n.parent {
		path = append(path, n.pos)
	}
	// Reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return append(path, goal)
}
