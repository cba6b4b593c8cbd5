package terrain

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/aquilax/go-perlin"
	"github.com/cespare/xxhash/v2"
)

const (
	perlinAlpha = 2.0
	perlinBeta  = 2.0
	perlinOct   = 3
)

// Noise samples a 2D height field in roughly [-1, 1].
type Noise func(x, z float64) float64

// NoiseSource builds the noise for a seed. It must be deterministic.
type NoiseSource func(seed int64) Noise

// PerlinSource is the default seeded Perlin noise.
func PerlinSource(seed int64) Noise {
	p := perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOct, seed)
	return p.Noise2D
}

// Generator builds tile meshes. It is safe for concurrent use; noise tables
// are built once per seed and only read afterwards.
type Generator struct {
	source NoiseSource
	mu     sync.Mutex
	noises map[int64]Noise
}

func NewGenerator(source NoiseSource) *Generator {
	if source == nil {
		source = PerlinSource
	}
	return &Generator{source: source, noises: make(map[int64]Noise)}
}

func (g *Generator) noise(seed int64) Noise {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.noises[seed]
	if !ok {
		n = g.source(seed)
		g.noises[seed] = n
	}
	return n
}

// Generate samples the lattice for c. Identical inputs always produce
// bit-identical heights.
func (g *Generator) Generate(c Coord, p Params) (*Mesh, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	noise := g.noise(p.Seed)

	width := p.Segments + 1
	step := p.TileSize / float64(p.Segments)
	half := p.TileSize / 2

	heights := make([]float32, width*width)
	vertices := make([]float32, width*width*3)
	for i := range heights {
		localX := float64(i%width)*step - half
		localZ := float64(i/width)*step - half
		worldX := localX + float64(c.X)*p.TileSize
		worldZ := localZ + float64(c.Z)*p.TileSize

		h := noise(worldX/p.NoiseScale, worldZ/p.NoiseScale) * p.NoiseAmplitude
		if !finite(h) || !finite(float64(float32(h))) {
			return nil, fmt.Errorf("%w: tile %s at %v,%v", ErrNonFiniteHeight, c, worldX, worldZ)
		}
		heights[i] = float32(h)
		vertices[i*3] = float32(localX)
		vertices[i*3+1] = heights[i]
		vertices[i*3+2] = float32(localZ)
	}

	indices := make([]uint32, 0, p.Segments*p.Segments*6)
	for z := 0; z < p.Segments; z++ {
		for x := 0; x < p.Segments; x++ {
			a := uint32(x + width*z)
			b := uint32(x + width*(z+1))
			cc := uint32(x + 1 + width*(z+1))
			d := uint32(x + 1 + width*z)
			indices = append(indices, a, b, d, b, cc, d)
		}
	}

	return &Mesh{
		Segments: p.Segments,
		TileSize: p.TileSize,
		Heights:  heights,
		Vertices: vertices,
		Indices:  indices,
		Checksum: Checksum(heights),
	}, nil
}

// Checksum hashes the raw float32 bits of a height array.
func Checksum(heights []float32) uint64 {
	d := xxhash.New()
	var buf [4]byte
	for _, h := range heights {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(h))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
