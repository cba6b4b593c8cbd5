package server

import (
	"sort"

	"github.com/zeusync/skyrace/internal/core/events/bus"
	"github.com/zeusync/skyrace/internal/core/observability/log"
	"github.com/zeusync/skyrace/internal/core/protocol"
	"github.com/zeusync/skyrace/internal/race"
	"github.com/zeusync/skyrace/internal/terrain"
)

var (
	_ race.Surface     = (*Hub)(nil)
	_ race.UISink      = (*Hub)(nil)
	_ terrain.Listener = (*Hub)(nil)
)

// Hub fans session output out to the connected clients. It is the render
// surface and UI sink of the session and the tile listener of the terrain
// manager, so every method runs on the server loop goroutine.
type Hub struct {
	clients   map[string]*client
	seq       uint64
	standings []byte
	history   *History
	json      protocol.JSONCodec
	msgpack   protocol.MsgpackCodec
	logger    log.Log

	dropped uint64
}

func NewHub(cfg Config, logger log.Log) *Hub {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{
		clients: make(map[string]*client),
		history: NewHistory(cfg.HistorySize),
		logger:  logger.With(log.Component("hub")),
	}
}

func (h *Hub) Present(f race.Frame)        { h.broadcastJSON(protocol.MessageFrame, f) }
func (h *Hub) HUD(hud race.HUD)            { h.broadcastJSON(protocol.MessageHUD, hud) }
func (h *Hub) TileEvicted(c terrain.Coord) { h.broadcastTile(protocol.TileFrame{Type: protocol.MessageEvict, Coord: c}) }

// Standings remembers the table so joining clients see it immediately.
func (h *Hub) Standings(t race.Table) {
	data, ok := h.encode(protocol.MessageStandings, t)
	if !ok {
		return
	}
	h.standings = data
	h.broadcast(outbound{data: data})
}

func (h *Hub) TileReady(t *terrain.Tile) {
	h.broadcastTile(protocol.TileFrame{Type: protocol.MessageTile, Coord: t.Coord, Mesh: t.Mesh})
}

// Forward relays race events from the bus. Terrain events are already
// covered by the binary tile frames.
func (h *Hub) Forward(e bus.Event) error {
	switch e.Type() {
	case bus.TypeTileReady, bus.TypeTileEvicted, bus.TypeTileFailed:
		return nil
	}
	data, ok := h.encode(protocol.MessageEvent, protocol.EventPayload{
		Kind:   e.Type(),
		Source: e.Source(),
		Data:   e.Data(),
	})
	if !ok {
		return nil
	}
	if se, isState := e.Data().(race.StateEvent); isState && se.To == race.StateRacing.String() {
		h.history.Clear()
		h.standings = nil
	}
	h.history.Add(data)
	h.broadcast(outbound{data: data})
	return nil
}

// Clients returns the ids of the connected clients, sorted.
func (h *Hub) Clients() []string {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dropped counts clients removed because they could not keep up.
func (h *Hub) Dropped() uint64 {
	return h.dropped
}

func (h *Hub) add(c *client) {
	h.clients[c.id] = c
	h.logger.Info("Client joined", log.String("client_id", c.id), log.Int("clients", len(h.clients)))
}

func (h *Hub) remove(id, reason string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	delete(h.clients, id)
	close(c.send)
	h.logger.Info("Client left",
		log.String("client_id", id),
		log.String("reason", reason),
		log.Int("clients", len(h.clients)))
}

func (h *Hub) closeAll() {
	for id := range h.clients {
		h.remove(id, "server stopping")
	}
}

// welcome sends the join snapshot: hello, resident tiles, the current table
// and recent events.
func (h *Hub) welcome(c *client, hello protocol.Hello, tiles []*terrain.Tile) {
	hello.ClientID = c.id
	data, ok := h.encode(protocol.MessageHello, hello)
	if !ok {
		return
	}
	msgs := []outbound{{data: data}}
	for _, t := range tiles {
		tile, err := h.msgpack.Encode(protocol.TileFrame{Type: protocol.MessageTile, Coord: t.Coord, Mesh: t.Mesh})
		if err != nil {
			h.logger.Warn("Failed to encode tile", log.String("tile", t.Coord.String()), log.Error(err))
			continue
		}
		msgs = append(msgs, outbound{binary: true, data: tile})
	}
	if h.standings != nil {
		msgs = append(msgs, outbound{data: h.standings})
	}
	for _, ev := range h.history.Get() {
		msgs = append(msgs, outbound{data: ev})
	}
	for _, m := range msgs {
		if !h.sendTo(c, m) {
			return
		}
	}
}

// reject tells one client its command was refused.
func (h *Hub) reject(c *client, err error) {
	data, ok := h.encode(protocol.MessageError, protocol.ErrorPayload{Message: err.Error()})
	if ok {
		h.sendTo(c, outbound{data: data})
	}
}

func (h *Hub) encode(msgType string, payload any) ([]byte, bool) {
	h.seq++
	env, err := protocol.NewEnvelope(msgType, h.seq, payload)
	if err != nil {
		h.logger.Warn("Failed to encode message", log.String("type", msgType), log.Error(err))
		return nil, false
	}
	data, err := h.json.Encode(env)
	if err != nil {
		h.logger.Warn("Failed to encode message", log.String("type", msgType), log.Error(err))
		return nil, false
	}
	return data, true
}

func (h *Hub) broadcastJSON(msgType string, payload any) {
	if len(h.clients) == 0 {
		return
	}
	if data, ok := h.encode(msgType, payload); ok {
		h.broadcast(outbound{data: data})
	}
}

func (h *Hub) broadcastTile(f protocol.TileFrame) {
	if len(h.clients) == 0 {
		return
	}
	data, err := h.msgpack.Encode(f)
	if err != nil {
		h.logger.Warn("Failed to encode tile", log.String("tile", f.Coord.String()), log.Error(err))
		return
	}
	h.broadcast(outbound{binary: true, data: data})
}

func (h *Hub) broadcast(msg outbound) {
	for _, c := range h.clients {
		h.sendTo(c, msg)
	}
}

// sendTo drops the client when its queue is full. Clients that already left
// are skipped since their queue is closed.
func (h *Hub) sendTo(c *client, msg outbound) bool {
	if h.clients[c.id] != c {
		return false
	}
	if c.trySend(msg) {
		return true
	}
	h.dropped++
	h.logger.Warn("Dropping slow client", log.String("client_id", c.id), log.Uint64("dropped_total", h.dropped))
	h.remove(c.id, "send buffer full")
	return false
}
