package physics

import (
	"math"

	"github.com/golang/geo/r3"
)

var _ Transform = (*Body)(nil)

// Tuning holds the per-vehicle motion constants.
type Tuning struct {
	Accel    float64
	MaxSpeed float64
	Friction float64
}

// Body is the integrable state of a vehicle.
type Body struct {
	Pos   r3.Vector
	Vel   r3.Vector
	Yaw   float64
	Pitch float64
}

func (b *Body) Position() r3.Vector               { return b.Pos }
func (b *Body) Orientation() (yaw, pitch float64) { return b.Yaw, b.Pitch }

// Controls is the set of held directional intents.
type Controls struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
	Ascend   bool
	Descend  bool
}

// Any reports whether at least one intent is held.
func (c Controls) Any() bool {
	return c.Forward || c.Backward || c.Left || c.Right || c.Ascend || c.Descend
}

// Basis returns the unit forward and right vectors for a yaw/pitch pair,
// rotating -Z and +X by pitch about X after yaw about Y.
func Basis(yaw, pitch float64) (forward, right r3.Vector) {
	sy, cy := math.Sincos(yaw)
	sp, cp := math.Sincos(pitch)
	forward = r3.Vector{X: -sy, Y: sp * cy, Z: -cp * cy}
	right = r3.Vector{X: cy, Y: sp * sy, Z: -cp * sy}
	return forward, right
}

// DesiredFromControls builds the player's desired acceleration. Forward and
// strafe follow the view basis, ascend and descend follow world up.
func DesiredFromControls(c Controls, yaw, pitch, accel float64) r3.Vector {
	forward, right := Basis(yaw, pitch)
	var d r3.Vector
	if c.Forward {
		d = d.Add(forward.Mul(accel))
	}
	if c.Backward {
		d = d.Sub(forward.Mul(accel))
	}
	if c.Right {
		d = d.Add(right.Mul(accel))
	}
	if c.Left {
		d = d.Sub(right.Mul(accel))
	}
	if c.Ascend {
		d.Y += accel
	}
	if c.Descend {
		d.Y -= accel
	}
	return d
}

// DesiredToward returns accel along the unit direction from pos to target,
// or zero when the two coincide.
func DesiredToward(pos, target r3.Vector, accel float64) r3.Vector {
	dir := target.Sub(pos)
	n := dir.Norm()
	if n == 0 || math.IsNaN(n) {
		return r3.Vector{}
	}
	return dir.Mul(accel / n)
}

// ClampMagnitude scales v down to max when it is longer.
func ClampMagnitude(v r3.Vector, max float64) r3.Vector {
	n := v.Norm()
	if n <= max || n == 0 {
		return v
	}
	return v.Mul(max / n)
}

// Integrate advances the body one step. The order is fixed:
// velocity += desired*delta, clamp to MaxSpeed, apply friction, then
// position += velocity.
func Integrate(b *Body, desired r3.Vector, delta float64, t Tuning) {
	b.Vel = b.Vel.Add(desired.Mul(delta))
	b.Vel = ClampMagnitude(b.Vel, t.MaxSpeed)
	b.Vel = b.Vel.Mul(t.Friction)
	b.Pos = b.Pos.Add(b.Vel)
}

// Look applies pointer deltas to the body's orientation. Pitch is clamped to
// straight up or down.
func Look(b *Body, dx, dy, sensitivity float64) {
	b.Yaw -= dx * sensitivity
	b.Pitch -= dy * sensitivity
	b.Pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, b.Pitch))
}

// ClampCeiling keeps the body at or below ceiling and cancels upward motion
// when it hits it.
func ClampCeiling(b *Body, ceiling float64) {
	if b.Pos.Y > ceiling {
		b.Pos.Y = ceiling
		b.Vel.Y = math.Min(b.Vel.Y, 0)
	}
}
