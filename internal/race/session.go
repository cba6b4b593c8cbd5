package race

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/zeusync/skyrace/internal/core/events/bus"
	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/core/systems/physics"
	"github.com/zeusync/skyrace/internal/pathfind"
	"github.com/zeusync/skyrace/internal/terrain"
)

var ErrMissingDependency = errors.New("missing session dependency")

// Dependencies are the collaborators a Session needs. Events and Logger are
// optional.
type Dependencies struct {
	Surface Surface
	UI      UISink
	Clock   Clock
	Terrain Terrain
	Planner pathfind.Planner
	Events  bus.EventBus
	Logger  log.Log
}

func (d Dependencies) validate() error {
	switch {
	case d.Surface == nil:
		return fmt.Errorf("%w: surface", ErrMissingDependency)
	case d.UI == nil:
		return fmt.Errorf("%w: ui sink", ErrMissingDependency)
	case d.Clock == nil:
		return fmt.Errorf("%w: clock", ErrMissingDependency)
	case d.Terrain == nil:
		return fmt.Errorf("%w: terrain", ErrMissingDependency)
	case d.Planner == nil:
		return fmt.Errorf("%w: planner", ErrMissingDependency)
	}
	return nil
}

// CheckpointEvent is published when a vehicle visits a checkpoint.
type CheckpointEvent struct {
	VehicleID string  `json:"vehicle_id"`
	Index     int     `json:"index"`
	Visited   int     `json:"visited"`
	Elapsed   float64 `json:"elapsed"`
}

// FinishEvent is published once per vehicle per race.
type FinishEvent struct {
	VehicleID string  `json:"vehicle_id"`
	Time      float64 `json:"time"`
}

// PenaltyEvent is published for every obstacle contact.
type PenaltyEvent struct {
	VehicleID string  `json:"vehicle_id"`
	Obstacle  int     `json:"obstacle"`
	Elapsed   float64 `json:"elapsed"`
}

// StateEvent is published on every state transition.
type StateEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PlanExhaustedEvent is published when the planner finds no route.
type PlanExhaustedEvent struct {
	VehicleID string  `json:"vehicle_id"`
	Target    int     `json:"target"`
	RetryAt   float64 `json:"retry_at"`
}

// Session owns every piece of mutable race state. All methods must be
// called from one goroutine.
type Session struct {
	id       string
	settings Settings
	deps     Dependencies
	logger   log.Log

	course    Course
	player    *Vehicle
	ais       []*Vehicle
	vehicles  []*Vehicle
	obstacles []pathfind.Obstacle

	state       State
	paused      bool
	pointerLock bool
	tick        uint64
	race        RaceState
	lastTable   *Table
}

func NewSession(settings Settings, deps Dependencies) (*Session, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:       uuid.NewString(),
		settings: settings,
		deps:     deps,
		course:   NewCourse(settings.Track),
	}
	s.logger = deps.Logger
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	s.logger = s.logger.With(log.Component("race"), log.String("session", s.id))

	s.obstacles = s.course.Obstacles
	s.player = NewPlayer(settings.Player.Start)
	s.vehicles = append(s.vehicles, s.player)
	for i := 0; i < settings.AI.Count; i++ {
		offset := r3.Vector{X: float64(i)*settings.AI.Spacing - settings.AI.Spacing}
		ai := NewAI(i, settings.AI.Start.Add(offset), settings.AI.PathUpdateInterval)
		s.ais = append(s.ais, ai)
		s.vehicles = append(s.vehicles, ai)
	}

	s.logger.Info("session created",
		log.Int("checkpoints", len(s.course.Checkpoints)),
		log.Int("obstacles", len(s.course.Obstacles)),
		log.Int("ai", len(s.ais)))
	return s, nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) State() State         { return s.state }
func (s *Session) Paused() bool         { return s.paused }
func (s *Session) Course() Course       { return s.course }
func (s *Session) Player() *Vehicle     { return s.player }
func (s *Session) AIs() []*Vehicle      { return s.ais }
func (s *Session) Vehicles() []*Vehicle { return s.vehicles }

// Snapshot returns a copy of the race progress.
func (s *Session) Snapshot() RaceState { return s.race.clone() }

// Winner is the best ranked finished vehicle.
func (s *Session) Winner() (string, bool) {
	for _, st := range s.race.Standings {
		if st.Finished() {
			return st.VehicleID, true
		}
	}
	return "", false
}

// StartOrReset enters racing from any state with every vehicle back on its
// start pose.
func (s *Session) StartOrReset() {
	s.race = RaceState{Standings: []Standing{}}
	s.lastTable = nil
	s.paused = false
	for _, v := range s.vehicles {
		v.reset(s.settings.AI.PathUpdateInterval)
	}
	s.deps.Clock.Reset()
	s.setState(StateRacing)
	s.logger.Info("race started")
}

// TogglePause freezes or resumes the race and reports the new paused state.
func (s *Session) TogglePause() bool {
	if s.state != StateRacing {
		return s.paused
	}
	s.paused = !s.paused
	s.logger.Info("pause toggled", log.Bool("paused", s.paused))
	return s.paused
}

func (s *Session) SetViewMode(mode terrain.ViewMode) {
	s.deps.Terrain.SetViewMode(mode)
}

func (s *Session) Press(c Control)   { s.player.Player.set(c, true) }
func (s *Session) Release(c Control) { s.player.Player.set(c, false) }

func (s *Session) SetPointerLock(locked bool) { s.pointerLock = locked }

// Look turns the player by pointer deltas; ignored without pointer lock.
func (s *Session) Look(dx, dy float64) {
	if !s.pointerLock {
		return
	}
	physics.Look(&s.player.Body, dx, dy, s.settings.Player.LookSensitivity)
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	s.publish(bus.TypeState, StateEvent{From: from.String(), To: to.String()})
}

func (s *Session) clampDelta(d float64) float64 {
	if math.IsNaN(d) || d < 0 {
		return 0
	}
	return math.Min(d, s.settings.MaxDelta)
}

// Tick runs one simulation step. Outside of an unpaused race only the
// terrain follows the player and the frame is presented.
func (s *Session) Tick() {
	delta := s.clampDelta(s.deps.Clock.Delta())
	s.tick++

	s.deps.Terrain.Refresh(s.player.Body.Pos)
	if s.state != StateRacing || s.paused {
		s.present()
		return
	}

	s.race.Elapsed += delta
	s.replan()
	for _, v := range s.vehicles {
		for _, idx := range v.Advance(delta, s.settings, s.course, s.race.Elapsed) {
			s.onVisit(v, idx)
		}
	}
	s.resolveCheckpoints()
	s.resolveCollisions()
	s.race.Standings = rank(s.vehicles)

	if s.player.Finished() {
		s.setState(StateFinished)
		s.logger.Info("race finished", log.Float64("time", s.player.FinishTime))
	}
	s.emit()
}

func (s *Session) replan() {
	now := s.race.Elapsed
	interval := s.settings.AI.PathUpdateInterval
	for _, v := range s.ais {
		ai := v.AI
		if ai.Target >= len(s.course.Checkpoints) {
			continue
		}
		stale := now-ai.LastPlan > interval
		if !(len(ai.Path) == 0 || stale) || now < ai.RetryAt {
			continue
		}
		target := s.course.Checkpoints[ai.Target].Position
		path := s.deps.Planner(v.Body.Pos, target, s.obstacles)
		if len(path) == 0 {
			ai.RetryAt = now + interval
			s.logger.Debug("no path, backing off",
				log.String("vehicle", v.ID), log.Int("target", ai.Target), log.Float64("retry_at", ai.RetryAt))
			s.publish(bus.TypePlanExhausted, PlanExhaustedEvent{VehicleID: v.ID, Target: ai.Target, RetryAt: ai.RetryAt})
			continue
		}
		ai.Path = path
		ai.LastPlan = now
	}
}

// resolveCheckpoints applies arrival: the player may take any unvisited
// checkpoint, an AI only its current target.
func (s *Session) resolveCheckpoints() {
	total := len(s.course.Checkpoints)
	radius := s.settings.Track.ArrivalRadius
	for _, v := range s.vehicles {
		if v.AI != nil {
			if v.AI.Target >= total {
				continue
			}
			cp := s.course.Checkpoints[v.AI.Target]
			if v.Body.Pos.Distance(cp.Position) < radius {
				v.AI.Target++
				if v.visit(cp.Index, total, s.race.Elapsed) {
					s.onVisit(v, cp.Index)
				}
			}
			continue
		}
		for _, cp := range s.course.Checkpoints {
			if v.HasVisited(cp.Index) || v.Body.Pos.Distance(cp.Position) >= radius {
				continue
			}
			if v.visit(cp.Index, total, s.race.Elapsed) {
				s.onVisit(v, cp.Index)
			}
		}
	}
}

func (s *Session) onVisit(v *Vehicle, idx int) {
	s.logger.Debug("checkpoint", log.String("vehicle", v.ID), log.Int("index", idx))
	s.publish(bus.TypeCheckpoint, CheckpointEvent{
		VehicleID: v.ID,
		Index:     idx,
		Visited:   v.VisitedCount(),
		Elapsed:   s.race.Elapsed,
	})
	// A new visit reaches the total exactly once per race.
	if v.VisitedCount() == len(s.course.Checkpoints) {
		s.logger.Info("vehicle finished", log.String("vehicle", v.ID), log.Float64("time", v.FinishTime))
		s.publish(bus.TypeFinish, FinishEvent{VehicleID: v.ID, Time: v.FinishTime})
	}
}

// resolveCollisions halves the velocity of every vehicle touching an
// obstacle. Player contacts are also recorded as penalties.
func (s *Session) resolveCollisions() {
	radius := s.settings.Track.CollisionRadius
	for _, v := range s.vehicles {
		for i, o := range s.obstacles {
			if v.Body.Pos.Distance(o.Center) >= radius {
				continue
			}
			v.Body.Vel = v.Body.Vel.Mul(0.5)
			if v.Player == nil {
				continue
			}
			v.Penalized = true
			rec := PenaltyRecord{VehicleID: v.ID, Elapsed: s.race.Elapsed, Obstacle: i}
			s.race.Penalties = append(s.race.Penalties, rec)
			s.logger.Debug("penalty", log.String("vehicle", v.ID), log.Int("obstacle", i))
			s.publish(bus.TypePenalty, PenaltyEvent{VehicleID: v.ID, Obstacle: i, Elapsed: rec.Elapsed})
		}
	}
}

func (s *Session) emit() {
	s.present()
	s.deps.UI.HUD(HUD{
		Elapsed: s.race.Elapsed,
		Speed:   s.player.Speed(),
		Paused:  s.paused,
		State:   s.state.String(),
	})
	table := render(s.race.Standings, len(s.course.Checkpoints))
	if s.lastTable == nil || !s.lastTable.equal(table) {
		s.lastTable = &table
		s.deps.UI.Standings(table)
	}
}

func (s *Session) present() {
	frame := Frame{
		Tick:     s.tick,
		Elapsed:  s.race.Elapsed,
		State:    s.state.String(),
		Vehicles: make([]Transform, 0, len(s.vehicles)),
	}
	for _, v := range s.vehicles {
		t := transformOf(v.ID, v.Kind(), &v.Body)
		t.Speed = v.Speed()
		if v.AI != nil {
			t.Target = v.AI.Target
		}
		frame.Vehicles = append(frame.Vehicles, t)
	}
	s.deps.Surface.Present(frame)
}

func (s *Session) publish(typ string, data any) {
	if s.deps.Events == nil {
		return
	}
	if err := s.deps.Events.Publish(bus.NewEvent(typ, s.id, data)); err != nil {
		s.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}
