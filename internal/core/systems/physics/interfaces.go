package physics

import "github.com/golang/geo/r3"

// Transform exposes the pose of anything that moves through the world.
type Transform interface {
	Position() r3.Vector
	Orientation() (yaw, pitch float64)
}
