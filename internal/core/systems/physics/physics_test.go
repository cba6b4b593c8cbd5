package physics

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestIntegrateOrder(t *testing.T) {
	b := &Body{}
	Integrate(b, r3.Vector{X: 2}, 0.5, Tuning{MaxSpeed: 10, Friction: 0.9})
	assert.InDelta(t, 0.9, b.Vel.X, eps)
	assert.InDelta(t, 0.9, b.Pos.X, eps)
}

func TestIntegrateClampsBeforeFriction(t *testing.T) {
	b := &Body{Vel: r3.Vector{X: 30}}
	Integrate(b, r3.Vector{}, 1, Tuning{MaxSpeed: 10, Friction: 0.5})
	assert.InDelta(t, 5, b.Vel.Norm(), eps)
}

func TestCoastToStop(t *testing.T) {
	tuning := Tuning{Accel: 0.5, MaxSpeed: 10, Friction: 0.9}
	b := &Body{}
	Integrate(b, DesiredFromControls(Controls{Forward: true}, 0, 0, tuning.Accel), 1, tuning)
	assert.InDelta(t, 0.45, b.Vel.Norm(), eps)

	const epsilon = 1e-6
	prev := b.Vel.Norm()
	ticks := 0
	for prev >= epsilon {
		Integrate(b, r3.Vector{}, 1, tuning)
		speed := b.Vel.Norm()
		if !assert.Less(t, speed, prev, "tick %d", ticks) {
			return
		}
		prev = speed
		ticks++
		if !assert.Less(t, ticks, 1000, "speed never fell below epsilon") {
			return
		}
	}
	assert.Less(t, b.Vel.Norm(), epsilon)
}

func TestBasisFacesNegativeZ(t *testing.T) {
	f, r := Basis(0, 0)
	assert.InDelta(t, -1, f.Z, eps)
	assert.InDelta(t, 1, r.X, eps)

	f, _ = Basis(0, math.Pi/2)
	assert.InDelta(t, 1, f.Y, eps)

	f, r = Basis(math.Pi/2, 0)
	assert.InDelta(t, -1, f.X, eps)
	assert.InDelta(t, -1, r.Z, eps)
	assert.InDelta(t, 0, f.Dot(r), eps)
}

func TestDesiredFromControls(t *testing.T) {
	d := DesiredFromControls(Controls{Forward: true, Backward: true}, 0.3, 0.2, 1.5)
	assert.InDelta(t, 0, d.Norm(), eps)

	d = DesiredFromControls(Controls{Ascend: true}, 1, -1, 1.5)
	assert.Equal(t, r3.Vector{Y: 1.5}, d)

	d = DesiredFromControls(Controls{Left: true}, 0, 0, 2)
	assert.InDelta(t, -2, d.X, eps)
}

func TestDesiredToward(t *testing.T) {
	d := DesiredToward(r3.Vector{}, r3.Vector{X: 3, Z: 4}, 2)
	assert.InDelta(t, 2, d.Norm(), eps)
	assert.InDelta(t, 1.2, d.X, eps)

	assert.Equal(t, r3.Vector{}, DesiredToward(r3.Vector{X: 1}, r3.Vector{X: 1}, 2))
}

func TestLookClampsPitch(t *testing.T) {
	b := &Body{}
	Look(b, 100, -10000, 0.002)
	assert.InDelta(t, -0.2, b.Yaw, eps)
	assert.InDelta(t, math.Pi/2, b.Pitch, eps)
}

func TestClampCeiling(t *testing.T) {
	b := &Body{Pos: r3.Vector{Y: 120}, Vel: r3.Vector{Y: 3, X: 1}}
	ClampCeiling(b, 100)
	assert.Equal(t, 100.0, b.Pos.Y)
	assert.Equal(t, 0.0, b.Vel.Y)
	assert.Equal(t, 1.0, b.Vel.X)

	b = &Body{Pos: r3.Vector{Y: 50}, Vel: r3.Vector{Y: 3}}
	ClampCeiling(b, 100)
	assert.Equal(t, 3.0, b.Vel.Y)
}
