// Package relay implements the server side of the pulsefeed event layer:
// websocket peers, room membership, and frame fan-out.
package relay

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/buffer"
	"github.com/opspulse/pulsefeed/internal/wire"
)

// Client represents one attached websocket peer.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	id     string
	send   chan []byte
	mu     sync.Mutex
	closed bool
}

// NewClient creates a peer for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   id,
		send: make(chan []byte, 256),
	}
}

// ID returns the peer's connection id.
func (c *Client) ID() string {
	return c.id
}

// Send queues a frame for delivery. A peer that cannot drain its queue is
// closed rather than allowed to block the fan-out.
func (c *Client) Send(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.closeLocked()
	}
}

// Close closes the peer's send channel.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// IsClosed returns true if the peer is closed.
func (c *Client) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SendChan returns the peer's outbound queue.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// Conn returns the underlying websocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

// Hub tracks attached peers and their room membership, and fans published
// frames out to the interested peers.
type Hub struct {
	recentCap int
	logger    zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
	recent  map[string]*buffer.FrameRing

	onPublish func(wire.Frame)
}

// NewHub creates an empty hub. recentCap bounds the per-room recent-frame
// ring; non-positive disables the cache.
func NewHub(recentCap int, logger zerolog.Logger) *Hub {
	return &Hub{
		recentCap: recentCap,
		logger:    logger,
		clients:   make(map[*Client]bool),
		rooms:     make(map[string]map[*Client]bool),
		recent:    make(map[string]*buffer.FrameRing),
	}
}

// SetOnPublish sets a callback invoked for every relayed frame, used to feed
// the history store.
func (h *Hub) SetOnPublish(fn func(wire.Frame)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPublish = fn
}

// Register adds a peer to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
	connectedClients.Set(float64(len(h.clients)))
}

// Unregister removes a peer from the hub and from every room it joined.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	connectedClients.Set(float64(len(h.clients)))
	activeRooms.Set(float64(len(h.rooms)))
	h.mu.Unlock()

	client.Close()
}

// JoinRoom adds a peer to a room. Joining twice is harmless; the client
// side refcounts and only announces the 0→1 transition anyway.
func (h *Hub) JoinRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]bool)
		h.rooms[room] = members
	}
	members[client] = true
	activeRooms.Set(float64(len(h.rooms)))
}

// LeaveRoom removes a peer from a room.
func (h *Hub) LeaveRoom(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	activeRooms.Set(float64(len(h.rooms)))
}

// Publish fans a frame out: to the members of its room, or to every peer
// when the frame is not room-scoped. The sender is excluded; frames already
// in flight back to a leaving publisher are its own to ignore.
func (h *Hub) Publish(sender *Client, f wire.Frame) {
	data, err := f.Encode()
	if err != nil {
		framesDropped.Inc()
		h.logger.Debug().Err(err).Str("event", f.Event).Msg("dropping unencodable frame")
		return
	}

	h.mu.RLock()
	var targets []*Client
	if f.Room != "" {
		for client := range h.rooms[f.Room] {
			if client != sender {
				targets = append(targets, client)
			}
		}
	} else {
		for client := range h.clients {
			if client != sender {
				targets = append(targets, client)
			}
		}
	}
	onPublish := h.onPublish
	h.mu.RUnlock()

	for _, client := range targets {
		client.Send(data)
	}
	framesRelayed.Inc()

	if f.Room != "" && h.recentCap > 0 {
		h.pushRecent(f)
	}
	if onPublish != nil {
		onPublish(f)
	}
}

func (h *Hub) pushRecent(f wire.Frame) {
	h.mu.Lock()
	ring, ok := h.recent[f.Room]
	if !ok {
		ring = buffer.NewFrameRing(h.recentCap)
		h.recent[f.Room] = ring
	}
	h.mu.Unlock()

	ring.Push(f)
}

// Recent returns the cached recent frames for a room, oldest first.
func (h *Hub) Recent(room string) []wire.Frame {
	h.mu.RLock()
	ring := h.recent[room]
	h.mu.RUnlock()

	if ring == nil {
		return nil
	}
	return ring.Snapshot()
}

// ClientCount returns the number of attached peers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomMembers returns the number of peers in a room.
func (h *Hub) RoomMembers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close closes every peer and clears the hub.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]map[*Client]bool)
	h.recent = make(map[string]*buffer.FrameRing)
	connectedClients.Set(0)
	activeRooms.Set(0)
	h.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
