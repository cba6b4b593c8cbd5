package race

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/internal/core/systems/physics"
)

type State uint8

const (
	StateIdle State = iota
	StateRacing
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRacing:
		return "racing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Standing is one ranked entry. FinishTime is +Inf until the vehicle
// finishes.
type Standing struct {
	VehicleID  string
	Visited    int
	FinishTime float64
	Penalty    bool
}

func (s Standing) Finished() bool { return !math.IsInf(s.FinishTime, 1) }

// PenaltyRecord is appended each tick the player touches an obstacle.
type PenaltyRecord struct {
	VehicleID string
	Elapsed   float64
	Obstacle  int
}

// RaceState is the observable progress of a session.
type RaceState struct {
	Elapsed   float64
	Standings []Standing
	Penalties []PenaltyRecord
}

func (r RaceState) clone() RaceState {
	return RaceState{
		Elapsed:   r.Elapsed,
		Standings: append([]Standing(nil), r.Standings...),
		Penalties: append([]PenaltyRecord(nil), r.Penalties...),
	}
}

// rank orders standings by visited count descending, then finish time
// ascending. Ties keep vehicle order.
func rank(vs []*Vehicle) []Standing {
	out := make([]Standing, len(vs))
	for i, v := range vs {
		out[i] = Standing{
			VehicleID:  v.ID,
			Visited:    v.VisitedCount(),
			FinishTime: v.FinishTime,
			Penalty:    v.Penalized,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Visited != out[j].Visited {
			return out[i].Visited > out[j].Visited
		}
		return out[i].FinishTime < out[j].FinishTime
	})
	return out
}

// HUD is the per-tick heads-up display.
type HUD struct {
	Elapsed float64 `json:"elapsed"`
	Speed   float64 `json:"speed"`
	Paused  bool    `json:"paused"`
	State   string  `json:"state"`
}

func (h HUD) ElapsedText() string { return fmt.Sprintf("%.1f", h.Elapsed) }
func (h HUD) SpeedText() string   { return fmt.Sprintf("%.1f", h.Speed) }

// Row is one rendered standings line.
type Row struct {
	VehicleID string `json:"id"`
	Progress  string `json:"progress"`
	Finish    string `json:"finish"`
	Penalty   bool   `json:"penalty,omitempty"`
}

// Table is the rendered standings.
type Table struct {
	Rows   []Row  `json:"rows"`
	Winner string `json:"winner,omitempty"`
}

func (t Table) equal(o Table) bool {
	if t.Winner != o.Winner || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Rows {
		if t.Rows[i] != o.Rows[i] {
			return false
		}
	}
	return true
}

func render(standings []Standing, total int) Table {
	t := Table{Rows: make([]Row, 0, len(standings))}
	for _, s := range standings {
		finish := "-"
		if s.Finished() {
			finish = fmt.Sprintf("%.1f", s.FinishTime)
		}
		t.Rows = append(t.Rows, Row{
			VehicleID: s.VehicleID,
			Progress:  fmt.Sprintf("%d/%d", s.Visited, total),
			Finish:    finish,
			Penalty:   s.Penalty,
		})
	}
	if len(standings) > 0 && standings[0].Visited == total && total > 0 {
		t.Winner = fmt.Sprintf("Drone %s Wins!", standings[0].VehicleID)
	}
	return t
}

// Transform is one vehicle's pose in a Frame.
type Transform struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Position r3.Vector `json:"position"`
	Yaw      float64   `json:"yaw"`
	Pitch    float64   `json:"pitch"`
	Speed    float64   `json:"speed"`
	Target   int       `json:"target,omitempty"`
}

func transformOf(id string, kind Kind, pose physics.Transform) Transform {
	yaw, pitch := pose.Orientation()
	return Transform{
		ID:       id,
		Kind:     kind.String(),
		Position: pose.Position(),
		Yaw:      yaw,
		Pitch:    pitch,
	}
}

// Frame is what the render surface draws for one tick.
type Frame struct {
	Tick     uint64      `json:"tick"`
	Elapsed  float64     `json:"elapsed"`
	State    string      `json:"state"`
	Vehicles []Transform `json:"vehicles"`
}
