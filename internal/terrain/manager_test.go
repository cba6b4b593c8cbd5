package terrain

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/skyrace/internal/core/events/bus"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeBackend struct {
	submitted []Request
	responses chan Response
	closed    bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{responses: make(chan Response, 64)}
}

func (b *fakeBackend) Submit(r Request) error {
	b.submitted = append(b.submitted, r)
	return nil
}

func (b *fakeBackend) Responses() <-chan Response { return b.responses }

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

type recordingListener struct {
	ready   []Coord
	evicted []Coord
}

func (l *recordingListener) TileReady(t *Tile)   { l.ready = append(l.ready, t.Coord) }
func (l *recordingListener) TileEvicted(c Coord) { l.evicted = append(l.evicted, c) }

func testConfig() Config {
	return DefaultConfig()
}

func expectedCells(center Coord, radius int) []Coord {
	var out []Coord
	for x := center.X - radius; x <= center.X+radius; x++ {
		for z := center.Z - radius; z <= center.Z+radius; z++ {
			out = append(out, Coord{X: x, Z: z})
		}
	}
	return out
}

func sorted(cs []Coord) []Coord {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].X != cs[j].X {
			return cs[i].X < cs[j].X
		}
		return cs[i].Z < cs[j].Z
	})
	return cs
}

func TestRefreshKeepsExactlyRadiusCells(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m, err := NewManager(testConfig(), nil, WithClock(clock.now))
	require.NoError(t, err)

	for _, pos := range []r3.Vector{{}, {X: 210, Z: 5}, {X: 900, Z: -1300}, {X: -450, Z: 420}} {
		clock.advance(time.Second)
		m.Refresh(pos)

		center := m.Params().CellOf(pos.X, pos.Z)
		assert.Equal(t, sorted(expectedCells(center, 1)), sorted(m.Resident()))
		assert.Len(t, m.Tiles(), 9)
		for _, tile := range m.Tiles() {
			assert.Equal(t, TileReady, tile.State)
			assert.NotNil(t, tile.Mesh)
		}
	}
}

func TestRefreshNoopsOnSameCellAndDebounces(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	m, err := NewManager(testConfig(), nil, WithClock(clock.now))
	require.NoError(t, err)

	m.Refresh(r3.Vector{})
	assert.Equal(t, uint64(1), m.Stats().Recomputes)

	clock.advance(time.Second)
	m.Refresh(r3.Vector{X: 40, Z: -60})
	assert.Equal(t, uint64(1), m.Stats().Recomputes)

	clock.advance(10 * time.Millisecond)
	m.Refresh(r3.Vector{X: 200})
	assert.Equal(t, uint64(2), m.Stats().Recomputes)

	clock.advance(10 * time.Millisecond)
	m.Refresh(r3.Vector{X: 400})
	assert.Equal(t, uint64(2), m.Stats().Recomputes)
	assert.Equal(t, uint64(1), m.Stats().DebounceHit)
	assert.Equal(t, sorted(expectedCells(Coord{X: 1}, 1)), sorted(m.Resident()))

	clock.advance(200 * time.Millisecond)
	m.Refresh(r3.Vector{X: 400})
	assert.Equal(t, sorted(expectedCells(Coord{X: 2}, 1)), sorted(m.Resident()))
}

func TestSetViewModeForcesRecompute(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	l := &recordingListener{}
	m, err := NewManager(testConfig(), nil, WithClock(clock.now), WithListener(l))
	require.NoError(t, err)

	m.Refresh(r3.Vector{})
	require.Len(t, m.Resident(), 9)

	m.SetViewMode(ViewWide)
	m.Refresh(r3.Vector{})
	assert.Len(t, m.Resident(), 25)
	assert.Len(t, l.ready, 25)

	m.SetViewMode(ViewClose)
	m.Refresh(r3.Vector{})
	assert.Len(t, m.Resident(), 9)
	assert.Len(t, l.evicted, 16)
}

func TestNearestTilesAreRequestedFirst(t *testing.T) {
	b := newFakeBackend()
	cfg := testConfig()
	cfg.WideDistance = 2
	cfg.MaxInFlight = 100
	m, err := NewManager(cfg, nil, WithBackend(b))
	require.NoError(t, err)
	m.SetViewMode(ViewWide)

	m.Refresh(r3.Vector{})
	require.Len(t, b.submitted, 25)
	assert.Equal(t, Coord{}, b.submitted[0].Coord)
	prev := 0
	for _, r := range b.submitted {
		d := r.Coord.distSq(Coord{})
		assert.GreaterOrEqual(t, d, prev)
		prev = d
	}
}

func TestAsyncBackendCapsInFlight(t *testing.T) {
	b := newFakeBackend()
	cfg := testConfig()
	cfg.MaxInFlight = 3
	m, err := NewManager(cfg, nil, WithBackend(b))
	require.NoError(t, err)

	m.Refresh(r3.Vector{})
	assert.Len(t, b.submitted, 3)
	s := m.Stats()
	assert.Equal(t, 3, s.InFlight)
	assert.Equal(t, 6, s.Queued)
	assert.Equal(t, 9, s.Pending)
	assert.Empty(t, m.Tiles())

	gen := NewGenerator(nil)
	for _, r := range b.submitted[:2] {
		mesh, err := gen.Generate(r.Coord, r.Params)
		require.NoError(t, err)
		b.responses <- Response{Coord: r.Coord, Mesh: mesh}
	}
	m.Refresh(r3.Vector{})
	assert.Len(t, m.Tiles(), 2)
	assert.Len(t, b.submitted, 5)
	assert.Equal(t, 3, m.Stats().InFlight)
}

func TestLateResponseForEvictedTileIsDiscarded(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newFakeBackend()
	cfg := testConfig()
	cfg.CloseDistance = 0
	m, err := NewManager(cfg, nil, WithBackend(b), WithClock(clock.now))
	require.NoError(t, err)

	m.Refresh(r3.Vector{})
	require.Len(t, b.submitted, 1)
	first := b.submitted[0]

	clock.advance(time.Second)
	m.Refresh(r3.Vector{X: 1000})
	_, tracked := m.Tile(first.Coord)
	assert.False(t, tracked)

	mesh, err := NewGenerator(nil).Generate(first.Coord, first.Params)
	require.NoError(t, err)
	b.responses <- Response{Coord: first.Coord, Mesh: mesh}
	m.Refresh(r3.Vector{X: 1000})

	assert.Equal(t, uint64(1), m.Stats().Discarded)
	_, tracked = m.Tile(first.Coord)
	assert.False(t, tracked)
}

func TestErrorResponseRetriesInline(t *testing.T) {
	b := newFakeBackend()
	cfg := testConfig()
	cfg.CloseDistance = 0
	events := bus.New()
	var readyEvents int
	_, err := events.Subscribe(bus.TypeTileReady, func(bus.Event) error {
		readyEvents++
		return nil
	})
	require.NoError(t, err)

	m, err := NewManager(cfg, nil, WithBackend(b), WithEventBus(events))
	require.NoError(t, err)

	m.Refresh(r3.Vector{})
	b.responses <- Response{Coord: Coord{}, Err: errors.New("worker crashed")}
	m.Refresh(r3.Vector{})

	tile, ok := m.Tile(Coord{})
	require.True(t, ok)
	assert.Equal(t, TileReady, tile.State)
	assert.Equal(t, uint64(1), m.Stats().Retried)
	assert.Equal(t, 1, readyEvents)
}

func TestFailedRetryDropsTile(t *testing.T) {
	b := newFakeBackend()
	cfg := testConfig()
	cfg.CloseDistance = 0
	broken := NewGenerator(func(int64) Noise {
		return func(x, z float64) float64 { return math.Inf(1) }
	})
	m, err := NewManager(cfg, broken, WithBackend(b))
	require.NoError(t, err)

	m.Refresh(r3.Vector{})
	b.responses <- Response{Coord: Coord{}, Err: ErrNonFiniteHeight}
	m.Refresh(r3.Vector{})

	_, ok := m.Tile(Coord{})
	assert.False(t, ok)
	s := m.Stats()
	assert.Equal(t, uint64(1), s.Failed)
	assert.Equal(t, 0, s.Resident)
}

func TestWorkerBackendFillsResidentSet(t *testing.T) {
	backend := NewWorkerBackend(context.Background(), nil, 2, 8)
	cfg := testConfig()
	cfg.MaxInFlight = 4
	m, err := NewManager(cfg, nil, WithBackend(backend))
	require.NoError(t, err)
	defer func() { assert.NoError(t, m.Close()) }()

	m.Refresh(r3.Vector{X: -200, Z: 200})
	require.Eventually(t, func() bool {
		m.Refresh(r3.Vector{X: -200, Z: 200})
		return len(m.Tiles()) == 9
	}, 5*time.Second, 5*time.Millisecond)

	want, err := NewGenerator(nil).Generate(Coord{X: -1, Z: 1}, cfg.Params)
	require.NoError(t, err)
	got, ok := m.Tile(Coord{X: -1, Z: 1})
	require.True(t, ok)
	assert.Equal(t, want.Checksum, got.Mesh.Checksum)
}

func TestWorkerBackendReportsErrors(t *testing.T) {
	backend := NewWorkerBackend(context.Background(), nil, 1, 2)
	defer func() { assert.NoError(t, backend.Close()) }()

	bad := DefaultParams()
	bad.TileSize = -1
	require.NoError(t, backend.Submit(Request{Coord: Coord{X: 5}, Params: bad}))

	select {
	case resp := <-backend.Responses():
		assert.Equal(t, Coord{X: 5}, resp.Coord)
		assert.ErrorIs(t, resp.Err, ErrInvalidParams)
		assert.Nil(t, resp.Mesh)
	case <-time.After(5 * time.Second):
		t.Fatal("no response")
	}
}

func TestNewManagerValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 0
	_, err := NewManager(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = testConfig()
	cfg.Params.Segments = 0
	_, err = NewManager(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
