package terrain

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidParams   = errors.New("invalid terrain parameters")
	ErrNonFiniteHeight = errors.New("non-finite terrain height")
)

// Coord identifies a tile on the terrain grid.
type Coord struct {
	X int `msgpack:"x" json:"x"`
	Z int `msgpack:"z" json:"z"`
}

func (c Coord) String() string { return fmt.Sprintf("%d,%d", c.X, c.Z) }

// Chebyshev returns the chessboard distance between two cells.
func (c Coord) Chebyshev(o Coord) int {
	return max(abs(c.X-o.X), abs(c.Z-o.Z))
}

func (c Coord) distSq(o Coord) int {
	dx, dz := c.X-o.X, c.Z-o.Z
	return dx*dx + dz*dz
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type TileState uint8

const (
	TilePending TileState = iota
	TileReady
	TileEvicted
)

func (s TileState) String() string {
	switch s {
	case TilePending:
		return "pending"
	case TileReady:
		return "ready"
	case TileEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

// Params are the inputs that fully determine a tile's geometry.
type Params struct {
	TileSize       float64 `yaml:"tile_size"`
	Segments       int     `yaml:"segments"`
	NoiseScale     float64 `yaml:"noise_scale"`
	NoiseAmplitude float64 `yaml:"noise_amplitude"`
	Seed           int64   `yaml:"seed"`
}

func DefaultParams() Params {
	return Params{
		TileSize:       200,
		Segments:       6,
		NoiseScale:     100,
		NoiseAmplitude: 10,
		Seed:           1,
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (p Params) Validate() error {
	switch {
	case !finite(p.TileSize) || p.TileSize <= 0:
		return fmt.Errorf("%w: tile size %v", ErrInvalidParams, p.TileSize)
	case p.Segments < 1:
		return fmt.Errorf("%w: segments %d", ErrInvalidParams, p.Segments)
	case !finite(p.NoiseScale) || p.NoiseScale == 0:
		return fmt.Errorf("%w: noise scale %v", ErrInvalidParams, p.NoiseScale)
	case !finite(p.NoiseAmplitude):
		return fmt.Errorf("%w: noise amplitude %v", ErrInvalidParams, p.NoiseAmplitude)
	}
	return nil
}

// CellOf maps a world position to the grid cell whose tile is centred
// nearest to it.
func (p Params) CellOf(x, z float64) Coord {
	return Coord{X: int(math.Round(x / p.TileSize)), Z: int(math.Round(z / p.TileSize))}
}

// Mesh is the generated geometry of one tile. Vertices are x,y,z triplets
// local to the tile centre; Indices hold two triangles per lattice quad.
type Mesh struct {
	Segments int       `msgpack:"segments"`
	TileSize float64   `msgpack:"tile_size"`
	Heights  []float32 `msgpack:"heights"`
	Vertices []float32 `msgpack:"vertices"`
	Indices  []uint32  `msgpack:"indices"`
	Checksum uint64    `msgpack:"checksum"`
}

// Tile is one streamed terrain patch.
type Tile struct {
	Coord Coord
	State TileState
	Mesh  *Mesh
}

// Dispose releases the tile geometry. The tile must not be used afterwards.
func (t *Tile) Dispose() {
	t.State = TileEvicted
	t.Mesh = nil
}
