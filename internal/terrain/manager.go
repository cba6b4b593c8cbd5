package terrain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang/geo/r3"

	"github.com/zeusync/skyrace/internal/core/events/bus"
	"github.com/zeusync/skyrace/internal/core/observability/log"
)

var ErrInvalidConfig = errors.New("invalid terrain manager config")

type ViewMode uint8

const (
	ViewClose ViewMode = iota
	ViewWide
)

func (m ViewMode) String() string {
	if m == ViewWide {
		return "wide"
	}
	return "close"
}

// ParseViewMode accepts "close"/"first" and "wide"/"third".
func ParseViewMode(s string) (ViewMode, error) {
	switch s {
	case "close", "first", "first_person":
		return ViewClose, nil
	case "wide", "third", "third_person":
		return ViewWide, nil
	}
	return ViewClose, fmt.Errorf("unknown view mode %q", s)
}

// Listener observes tiles entering and leaving the resident set.
type Listener interface {
	TileReady(t *Tile)
	TileEvicted(c Coord)
}

// Config drives a Manager.
type Config struct {
	Params        Params
	CloseDistance int
	WideDistance  int
	Debounce      time.Duration
	MaxInFlight   int
}

// DefaultConfig streams the 3x3 block around the player in close view and
// 5x5 in wide view.
func DefaultConfig() Config {
	return Config{
		Params:        DefaultParams(),
		CloseDistance: 1,
		WideDistance:  2,
		Debounce:      100 * time.Millisecond,
		MaxInFlight:   4,
	}
}

func (c Config) Validate() error {
	if err := c.Params.Validate(); err != nil {
		return err
	}
	switch {
	case c.CloseDistance < 0 || c.WideDistance < 0:
		return fmt.Errorf("%w: negative render distance", ErrInvalidConfig)
	case c.Debounce < 0:
		return fmt.Errorf("%w: negative debounce", ErrInvalidConfig)
	case c.MaxInFlight < 1:
		return fmt.Errorf("%w: max in flight %d", ErrInvalidConfig, c.MaxInFlight)
	}
	return nil
}

// Stats are cumulative counters since the manager was created.
type Stats struct {
	Resident    int
	Ready       int
	Pending     int
	Queued      int
	InFlight    int
	Generated   uint64
	Evicted     uint64
	Discarded   uint64
	Retried     uint64
	Failed      uint64
	Recomputes  uint64
	DebounceHit uint64
}

type ManagerOption func(*Manager)

// WithBackend generates tiles asynchronously through b.
func WithBackend(b Backend) ManagerOption {
	return func(m *Manager) { m.backend = b }
}

func WithListener(l Listener) ManagerOption {
	return func(m *Manager) { m.listener = l }
}

func WithEventBus(b bus.EventBus) ManagerOption {
	return func(m *Manager) { m.events = b }
}

func WithLogger(l log.Log) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithClock replaces the wall clock used for debouncing.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager keeps the tiles around a moving reference point resident. It is
// not safe for concurrent use; the tick goroutine owns it.
type Manager struct {
	cfg      Config
	gen      *Generator
	backend  Backend
	listener Listener
	events   bus.EventBus
	logger   log.Log
	now      func() time.Time

	mode     ViewMode
	tiles    map[Coord]*Tile
	queue    []Coord
	inFlight map[Coord]struct{}

	hasLast bool
	force   bool
	last    Coord
	lastAt  time.Time

	stats Stats
}

func NewManager(cfg Config, gen *Generator, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		gen = NewGenerator(nil)
	}
	m := &Manager{
		cfg:      cfg,
		gen:      gen,
		logger:   log.NewNop(),
		now:      time.Now,
		tiles:    make(map[Coord]*Tile),
		inFlight: make(map[Coord]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(log.Component("terrain"))
	return m, nil
}

func (m *Manager) Params() Params { return m.cfg.Params }

func (m *Manager) ViewMode() ViewMode { return m.mode }

// SetViewMode switches the render radius. The next Refresh recomputes even
// if the reference cell has not changed.
func (m *Manager) SetViewMode(mode ViewMode) {
	if mode == m.mode {
		return
	}
	m.mode = mode
	m.force = true
}

// Radius is the active render distance in cells.
func (m *Manager) Radius() int {
	if m.mode == ViewWide {
		return m.cfg.WideDistance
	}
	return m.cfg.CloseDistance
}

// Refresh drains finished generations, dispatches queued requests and, when
// the reference cell changed and the debounce interval passed, recomputes
// the resident set around pos.
func (m *Manager) Refresh(pos r3.Vector) {
	m.drain()
	m.dispatch()

	cell := m.cfg.Params.CellOf(pos.X, pos.Z)
	now := m.now()
	if m.hasLast && !m.force {
		if cell == m.last {
			return
		}
		if now.Sub(m.lastAt) < m.cfg.Debounce {
			m.stats.DebounceHit++
			return
		}
	}
	m.recompute(cell, now)
}

func (m *Manager) recompute(center Coord, now time.Time) {
	m.hasLast = true
	m.force = false
	m.last = center
	m.lastAt = now
	m.stats.Recomputes++

	radius := m.Radius()
	m.logger.Debug("recomputing resident set", log.Any("center", center), log.Int("radius", radius))
	cells := make([]Coord, 0, (2*radius+1)*(2*radius+1))
	for x := center.X - radius; x <= center.X+radius; x++ {
		for z := center.Z - radius; z <= center.Z+radius; z++ {
			cells = append(cells, Coord{X: x, Z: z})
		}
	}
	sort.SliceStable(cells, func(i, j int) bool {
		return cells[i].distSq(center) < cells[j].distSq(center)
	})

	for _, c := range cells {
		if _, ok := m.tiles[c]; ok {
			continue
		}
		m.tiles[c] = &Tile{Coord: c, State: TilePending}
		if m.backend != nil {
			m.queue = append(m.queue, c)
		} else {
			m.generateSync(c)
		}
	}
	m.dispatch()

	for c, t := range m.tiles {
		if c.Chebyshev(center) <= radius {
			continue
		}
		delete(m.tiles, c)
		m.evict(t)
	}
}

func (m *Manager) evict(t *Tile) {
	wasReady := t.State == TileReady
	t.Dispose()
	m.stats.Evicted++
	if !wasReady {
		return
	}
	if m.listener != nil {
		m.listener.TileEvicted(t.Coord)
	}
	m.publish(bus.TypeTileEvicted, t.Coord)
}

// dispatch hands queued cells to the backend while under the in-flight cap.
func (m *Manager) dispatch() {
	if m.backend == nil {
		return
	}
	for len(m.queue) > 0 && len(m.inFlight) < m.cfg.MaxInFlight {
		c := m.queue[0]
		t, ok := m.tiles[c]
		if !ok || t.State != TilePending {
			m.queue = m.queue[1:]
			continue
		}
		if _, busy := m.inFlight[c]; busy {
			// An earlier request for the same cell will fill it.
			m.queue = m.queue[1:]
			continue
		}
		err := m.backend.Submit(Request{Coord: c, Params: m.cfg.Params})
		if errors.Is(err, ErrBackendBusy) {
			return
		}
		m.queue = m.queue[1:]
		if err != nil {
			m.logger.Warn("backend rejected tile, generating inline",
				log.String("tile", c.String()), log.Error(err))
			m.generateSync(c)
			continue
		}
		m.inFlight[c] = struct{}{}
	}
}

// drain applies every response already available without blocking.
func (m *Manager) drain() {
	if m.backend == nil {
		return
	}
	for {
		select {
		case resp, ok := <-m.backend.Responses():
			if !ok {
				m.backend = nil
				m.settlePending()
				return
			}
			m.apply(resp)
		default:
			return
		}
	}
}

// settlePending generates inline whatever a closed backend left unanswered.
func (m *Manager) settlePending() {
	clear(m.inFlight)
	m.queue = nil
	for c, t := range m.tiles {
		if t.State == TilePending {
			m.generateSync(c)
		}
	}
}

func (m *Manager) apply(resp Response) {
	delete(m.inFlight, resp.Coord)

	t, ok := m.tiles[resp.Coord]
	if !ok || t.State != TilePending {
		m.stats.Discarded++
		return
	}
	if resp.Err != nil {
		m.stats.Retried++
		m.logger.Warn("tile generation failed, retrying inline",
			log.String("tile", resp.Coord.String()), log.Error(resp.Err))
		m.generateSync(resp.Coord)
		return
	}
	m.install(t, resp.Mesh)
}

func (m *Manager) generateSync(c Coord) {
	mesh, err := m.gen.Generate(c, m.cfg.Params)
	if err != nil {
		delete(m.tiles, c)
		m.stats.Failed++
		m.logger.Error("tile generation failed, dropping tile",
			log.String("tile", c.String()), log.Error(err))
		m.publish(bus.TypeTileFailed, c)
		return
	}
	t, ok := m.tiles[c]
	if !ok {
		return
	}
	m.install(t, mesh)
}

func (m *Manager) install(t *Tile, mesh *Mesh) {
	t.Mesh = mesh
	t.State = TileReady
	m.stats.Generated++
	if m.listener != nil {
		m.listener.TileReady(t)
	}
	m.publish(bus.TypeTileReady, t.Coord)
}

func (m *Manager) publish(typ string, c Coord) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(bus.NewEvent(typ, "terrain", c)); err != nil {
		m.logger.Warn("event handler failed", log.String("event", typ), log.Error(err))
	}
}

// Tiles returns the ready tiles ordered by coordinate.
func (m *Manager) Tiles() []*Tile {
	out := make([]*Tile, 0, len(m.tiles))
	for _, t := range m.tiles {
		if t.State == TileReady {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Coord.X != out[j].Coord.X {
			return out[i].Coord.X < out[j].Coord.X
		}
		return out[i].Coord.Z < out[j].Coord.Z
	})
	return out
}

// Tile returns the tracked tile at c, pending or ready.
func (m *Manager) Tile(c Coord) (*Tile, bool) {
	t, ok := m.tiles[c]
	return t, ok
}

// Resident returns every tracked cell, pending or ready.
func (m *Manager) Resident() []Coord {
	out := make([]Coord, 0, len(m.tiles))
	for c := range m.tiles {
		out = append(out, c)
	}
	return out
}

func (m *Manager) Stats() Stats {
	s := m.stats
	s.Resident = len(m.tiles)
	for _, t := range m.tiles {
		if t.State == TileReady {
			s.Ready++
		} else {
			s.Pending++
		}
	}
	s.Queued = len(m.queue)
	s.InFlight = len(m.inFlight)
	return s
}

// Close releases every tile and shuts the backend down.
func (m *Manager) Close() error {
	for c, t := range m.tiles {
		delete(m.tiles, c)
		t.Dispose()
	}
	m.queue = nil
	if m.backend == nil {
		return nil
	}
	b := m.backend
	m.backend = nil
	return b.Close()
}
