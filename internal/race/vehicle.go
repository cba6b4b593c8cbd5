package race

import (
	"math"
	"strconv"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/internal/core/systems/physics"
)

type Kind uint8

const (
	KindPlayer Kind = iota
	KindAI
)

func (k Kind) String() string {
	if k == KindAI {
		return "ai"
	}
	return "player"
}

// Control is one directional intent.
type Control uint8

const (
	ControlForward Control = iota
	ControlBackward
	ControlLeft
	ControlRight
	ControlAscend
	ControlDescend
)

var controlNames = map[string]Control{
	"forward":  ControlForward,
	"backward": ControlBackward,
	"left":     ControlLeft,
	"right":    ControlRight,
	"ascend":   ControlAscend,
	"descend":  ControlDescend,
}

func ParseControl(s string) (Control, bool) {
	c, ok := controlNames[s]
	return c, ok
}

// PlayerState is the human-controlled variant.
type PlayerState struct {
	Controls physics.Controls
}

func (p *PlayerState) set(c Control, on bool) {
	switch c {
	case ControlForward:
		p.Controls.Forward = on
	case ControlBackward:
		p.Controls.Backward = on
	case ControlLeft:
		p.Controls.Left = on
	case ControlRight:
		p.Controls.Right = on
	case ControlAscend:
		p.Controls.Ascend = on
	case ControlDescend:
		p.Controls.Descend = on
	}
}

// AIState is the autonomous variant. Checkpoints are taken strictly in
// index order through Target.
type AIState struct {
	Path     []r3.Vector
	Target   int
	LastPlan float64
	RetryAt  float64
}

// Vehicle is the record shared by both variants. Exactly one of Player and
// AI is set.
type Vehicle struct {
	ID   string
	Body physics.Body

	Visited    map[int]struct{}
	FinishTime float64
	Penalized  bool

	Player *PlayerState
	AI     *AIState

	start physics.Body
}

func newVehicle(id string, start r3.Vector) *Vehicle {
	v := &Vehicle{ID: id, start: physics.Body{Pos: start}}
	v.reset(0)
	return v
}

// NewPlayer creates the human-controlled vehicle.
func NewPlayer(start r3.Vector) *Vehicle {
	v := newVehicle("1", start)
	v.Player = &PlayerState{}
	return v
}

// NewAI creates autonomous vehicle n (0 based). Its first plan is due on
// the first tick.
func NewAI(n int, start r3.Vector, planInterval float64) *Vehicle {
	v := newVehicle(strconv.Itoa(n+2), start)
	v.AI = &AIState{LastPlan: -planInterval}
	return v
}

func (v *Vehicle) Kind() Kind {
	if v.AI != nil {
		return KindAI
	}
	return KindPlayer
}

func (v *Vehicle) Finished() bool { return !math.IsInf(v.FinishTime, 1) }

func (v *Vehicle) VisitedCount() int { return len(v.Visited) }

func (v *Vehicle) HasVisited(i int) bool {
	_, ok := v.Visited[i]
	return ok
}

func (v *Vehicle) Speed() float64 { return v.Body.Vel.Norm() }

// reset restores the start pose and clears progress. The next AI plan is
// due on the first tick after it.
func (v *Vehicle) reset(planInterval float64) {
	v.Body = v.start
	v.Visited = make(map[int]struct{})
	v.FinishTime = math.Inf(1)
	v.Penalized = false
	if v.Player != nil {
		v.Player.Controls = physics.Controls{}
	}
	if v.AI != nil {
		*v.AI = AIState{LastPlan: -planInterval}
	}
}

// visit marks checkpoint i and stamps the finish time the first time every
// checkpoint has been seen. It reports whether i was new.
func (v *Vehicle) visit(i, total int, elapsed float64) bool {
	if v.HasVisited(i) || i < 0 || i >= total {
		return false
	}
	v.Visited[i] = struct{}{}
	if len(v.Visited) == total && !v.Finished() {
		v.FinishTime = elapsed
	}
	return true
}

// Advance runs one motion step and returns the checkpoints the AI cursor
// passed during it. Players never report checkpoints here.
func (v *Vehicle) Advance(delta float64, s Settings, course Course, elapsed float64) []int {
	if v.Player != nil {
		var desired r3.Vector
		if c := v.Player.Controls; c.Any() {
			desired = physics.DesiredFromControls(c, v.Body.Yaw, v.Body.Pitch, s.Player.Tuning.Accel)
		}
		physics.Integrate(&v.Body, desired, delta, s.Player.Tuning)
		physics.ClampCeiling(&v.Body, s.Player.Ceiling)
		return nil
	}

	ai := v.AI
	var desired r3.Vector
	if len(ai.Path) > 0 && ai.Target < len(course.Checkpoints) {
		desired = physics.DesiredToward(v.Body.Pos, ai.Path[0], s.AI.Tuning.Accel)
	}
	physics.Integrate(&v.Body, desired, delta, s.AI.Tuning)

	if len(ai.Path) > 0 && v.Body.Pos.Distance(ai.Path[0]) < s.AI.WaypointReach {
		ai.Path = ai.Path[1:]
	}

	var reached []int
	if ai.Target < len(course.Checkpoints) {
		cp := course.Checkpoints[ai.Target]
		if v.Body.Pos.Distance(cp.Position) < s.AI.CheckpointReach {
			if v.visit(cp.Index, len(course.Checkpoints), elapsed) {
				reached = append(reached, cp.Index)
			}
			ai.Target++
		}
	}
	return reached
}
