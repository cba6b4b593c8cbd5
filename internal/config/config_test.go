package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/pathfind"
	"github.com/zeusync/skyrace/internal/race"
	"github.com/zeusync/skyrace/internal/server"
	"github.com/zeusync/skyrace/internal/terrain"
)

func TestDefaultMatchesSubsystems(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, race.DefaultSettings(), c.RaceSettings())
	assert.Equal(t, terrain.DefaultConfig(), c.TerrainConfig())
	assert.Equal(t, pathfind.DefaultOptions(), c.PathfindOptions())
	assert.Equal(t, server.DefaultServerConfig(), c.ServerConfig())
	assert.Equal(t, log.LevelInfo, c.LogLevel())
}

func TestLoadShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "skyrace.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 16*time.Millisecond, c.Server.TickRate)
	assert.Equal(t, race.DefaultSettings(), c.RaceSettings())
	assert.Equal(t, terrain.DefaultConfig(), c.TerrainConfig())
	assert.Equal(t, pathfind.DefaultOptions(), c.PathfindOptions())
}

func TestLoadYAMLOverlaysDefaults(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(`
log:
  level: debug
server:
  listen: 0.0.0.0:9000
ai:
  count: 1
  path_update_interval: 1500ms
terrain:
  segments: 8
  async: false
pathfinding:
  mode: 2d
`))
	require.NoError(t, err)

	assert.Equal(t, log.LevelDebug, c.LogLevel())
	assert.Equal(t, "0.0.0.0:9000", c.ServerConfig().ListenAddr)
	assert.Equal(t, server.DefaultServerConfig().TickRate, c.ServerConfig().TickRate)

	rs := c.RaceSettings()
	assert.Equal(t, 1, rs.AI.Count)
	assert.InDelta(t, 1.5, rs.AI.PathUpdateInterval, 1e-9)
	assert.Equal(t, 10, rs.Track.Checkpoints)

	tc := c.TerrainConfig()
	assert.Equal(t, 8, tc.Params.Segments)
	assert.Equal(t, 200.0, tc.Params.TileSize)
	assert.False(t, c.Terrain.Async)
	assert.Equal(t, pathfind.Mode2D, c.Pathfinding.Mode)
}

func TestLoadYAMLLayout(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(`
track:
  layout:
    checkpoints:
      - {x: 0, y: 10, z: -50}
      - {x: 10, y: 12, z: -200}
    obstacles:
      - center: {x: 0, y: 5, z: -120}
        radius: 5
`))
	require.NoError(t, err)

	layout := c.RaceSettings().Track.Layout
	require.NotNil(t, layout)
	assert.Equal(t, []r3.Vector{{X: 0, Y: 10, Z: -50}, {X: 10, Y: 12, Z: -200}}, layout.Checkpoints)
	require.Len(t, layout.Obstacles, 1)
	assert.Equal(t, 5.0, layout.Obstacles[0].Radius)

	course := race.NewCourse(c.RaceSettings().Track)
	assert.Len(t, course.Checkpoints, 2)
}

func TestLoadYAMLEmptyDocument(t *testing.T) {
	c, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestValidateNamesTheSection(t *testing.T) {
	cases := []struct {
		key string
		doc string
	}{
		{"log.level", "log:\n  level: loud\n"},
		{"log.encoding", "log:\n  encoding: xml\n"},
		{"server", "server:\n  tick_rate: 0s\n"},
		{"race", "player:\n  tuning: {accel: 1.5, max_speed: 10, friction: 0}\n"},
		{"terrain", "terrain:\n  segments: 0\n"},
		{"terrain.workers", "terrain:\n  workers: 0\n"},
		{"pathfinding", "pathfinding:\n  mode: 4d\n"},
	}
	for _, tc := range cases {
		_, err := LoadYAML(strings.NewReader(tc.doc))
		require.Error(t, err, tc.key)
		assert.ErrorIs(t, err, ErrInvalidConfig, tc.key)
		assert.Contains(t, err.Error(), tc.key+":", tc.key)
	}
}

func TestValidateKeepsSubsystemErrors(t *testing.T) {
	c := Default()
	c.Pathfinding.GridSize = 0
	err := c.Validate()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, pathfind.ErrInvalidOptions)

	c = Default()
	c.Track.Checkpoints = 0
	assert.ErrorIs(t, c.Validate(), race.ErrInvalidSettings)
}

func TestLoadYAMLRejectsUnknownKeys(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("server:\n  listen_port: 80\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
