package race

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIAdvancePopsWaypointAndMovesCursor(t *testing.T) {
	settings := DefaultSettings()
	course := Course{Checkpoints: []Checkpoint{
		{Index: 0, Position: r3.Vector{Y: 10, Z: -12}},
		{Index: 1, Position: r3.Vector{Y: 10, Z: -300}},
	}}
	v := NewAI(0, r3.Vector{Y: 10}, settings.AI.PathUpdateInterval)
	v.AI.Path = []r3.Vector{{Y: 10, Z: -3}, {Y: 10, Z: -12}}

	reached := v.Advance(0.1, settings, course, 0.1)
	assert.Len(t, v.AI.Path, 1)
	require.Equal(t, []int{0}, reached)
	assert.Equal(t, 1, v.AI.Target)
	assert.True(t, v.HasVisited(0))
	assert.False(t, v.Finished())
	assert.Less(t, v.Body.Vel.Z, 0.0)
}

func TestAIWithoutPathCoasts(t *testing.T) {
	settings := DefaultSettings()
	v := NewAI(1, r3.Vector{}, settings.AI.PathUpdateInterval)
	v.Body.Vel = r3.Vector{X: 1}
	v.Advance(0.1, settings, Course{Checkpoints: []Checkpoint{{Position: r3.Vector{Z: -100}}}}, 0.1)
	assert.InDelta(t, settings.AI.Tuning.Friction, v.Body.Vel.X, 1e-12)
	assert.Equal(t, "3", v.ID)
	assert.Equal(t, KindAI, v.Kind())
}

func TestPlayerAdvanceRespectsCeiling(t *testing.T) {
	settings := DefaultSettings()
	v := NewPlayer(r3.Vector{Y: 99.5})
	v.Player.set(ControlAscend, true)
	v.Body.Vel = r3.Vector{Y: 5}

	assert.Empty(t, v.Advance(0.1, settings, Course{}, 0.1))
	assert.Equal(t, settings.Player.Ceiling, v.Body.Pos.Y)
	assert.Equal(t, 0.0, v.Body.Vel.Y)
}

func TestVisitStampsFinishOnce(t *testing.T) {
	v := NewPlayer(r3.Vector{})
	assert.True(t, v.visit(1, 2, 1.0))
	assert.False(t, v.visit(1, 2, 1.5))
	assert.False(t, v.visit(5, 2, 1.5))
	assert.True(t, v.visit(0, 2, 2.0))
	assert.Equal(t, 2.0, v.FinishTime)
	assert.Equal(t, 2, v.VisitedCount())
}

func TestParseControl(t *testing.T) {
	c, ok := ParseControl("ascend")
	assert.True(t, ok)
	assert.Equal(t, ControlAscend, c)
	_, ok = ParseControl("barrel-roll")
	assert.False(t, ok)
}
