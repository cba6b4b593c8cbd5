package race

import (
	"time"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/internal/terrain"
)

// Surface receives the per-tick scene transforms. The session never reads
// anything back from it.
type Surface interface {
	Present(Frame)
}

// UISink receives the HUD every tick and the standings table whenever it
// changes.
type UISink interface {
	HUD(HUD)
	Standings(Table)
}

// Clock yields the seconds elapsed since the previous call.
type Clock interface {
	Delta() float64
	Reset()
}

// Terrain streams tiles around the player.
type Terrain interface {
	Refresh(pos r3.Vector)
	SetViewMode(terrain.ViewMode)
}

var _ Clock = (*WallClock)(nil)

// WallClock is a monotonic Clock backed by time.Now.
type WallClock struct {
	last time.Time
	now  func() time.Time
}

func NewWallClock() *WallClock {
	c := &WallClock{now: time.Now}
	c.Reset()
	return c
}

func (c *WallClock) Delta() float64 {
	now := c.now()
	d := now.Sub(c.last).Seconds()
	c.last = now
	if d < 0 {
		return 0
	}
	return d
}

func (c *WallClock) Reset() {
	c.last = c.now()
}

var _ Clock = (*FixedClock)(nil)

// FixedClock returns the same step every call.
type FixedClock struct {
	Step float64
}

func (c FixedClock) Delta() float64 { return c.Step }
func (c FixedClock) Reset()         {}
