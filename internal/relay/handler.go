package relay

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/history"
	"github.com/opspulse/pulsefeed/internal/model"
	"github.com/opspulse/pulsefeed/internal/wire"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// SetCheckOrigin sets a custom origin checker for the websocket upgrader.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// Handler upgrades attach requests and pumps frames between peers and the hub.
type Handler struct {
	hub    *Hub
	token  string
	repo   *history.Repository
	logger zerolog.Logger
}

// NewHandler creates a handler. An empty token disables authentication;
// a nil repository disables history persistence.
func NewHandler(hub *Hub, token string, repo *history.Repository, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		token:  token,
		repo:   repo,
		logger: logger,
	}
}

// Hub returns the hub this handler feeds.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// HandleConnection authenticates and upgrades an attach request, then runs
// the read and write pumps for the new peer.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) error {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return model.ErrUnauthorized
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(h.hub, conn, uuid.New().String())
	h.hub.Register(client)
	h.logger.Debug().Str("client_id", client.ID()).Msg("peer attached")

	go h.writePump(client)
	go h.readPump(client)

	return nil
}

// authorized checks the bearer token from the Authorization header, falling
// back to the token query parameter for browser clients.
func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == h.token {
		return true
	}
	return r.URL.Query().Get("token") == h.token
}

// readPump pumps frames from the peer into the hub until the connection dies.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn().Close()
		h.logger.Debug().Str("client_id", client.ID()).Msg("peer detached")
	}()

	client.Conn().SetReadLimit(maxMessageSize)
	client.Conn().SetReadDeadline(time.Now().Add(pongWait))
	client.Conn().SetPongHandler(func(string) error {
		client.Conn().SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := client.Conn().ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Debug().Err(err).Str("client_id", client.ID()).Msg("read error")
			}
			return
		}

		frame, err := wire.Decode(raw)
		if err != nil {
			framesDropped.Inc()
			h.logger.Debug().Err(err).Str("client_id", client.ID()).Msg("dropping malformed frame")
			continue
		}

		h.handleFrame(client, frame)
	}
}

// handleFrame routes one inbound frame: join/leave adjust membership,
// everything else is published.
func (h *Handler) handleFrame(client *Client, frame wire.Frame) {
	if frame.IsControl() {
		room, err := frame.ControlRoom()
		if err != nil {
			framesDropped.Inc()
			h.logger.Debug().Err(err).Str("client_id", client.ID()).Msg("dropping malformed control frame")
			return
		}
		switch frame.Event {
		case wire.EventJoin:
			h.hub.JoinRoom(client, room)
		case wire.EventLeave:
			h.hub.LeaveRoom(client, room)
		}
		return
	}

	h.hub.Publish(client, frame)
	h.record(frame)
}

// record persists a published frame to the history store.
func (h *Handler) record(frame wire.Frame) {
	if h.repo == nil {
		return
	}

	rec := &model.EventRecord{
		ID:         uuid.New().String(),
		Room:       frame.Room,
		Event:      frame.Event,
		Payload:    frame.Data,
		ReceivedAt: time.Now().UTC(),
	}
	if err := h.repo.Insert(context.Background(), rec); err != nil {
		h.logger.Warn().Err(err).Str("event", frame.Event).Msg("failed to persist event")
	}
}

// writePump pumps queued frames to the peer and keeps the connection alive
// with pings.
func (h *Handler) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn().Close()
	}()

	for {
		select {
		case message, ok := <-client.SendChan():
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn().WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per websocket message so clients can decode
			// each payload independently.
			if err := client.Conn().WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			n := len(client.SendChan())
			for i := 0; i < n; i++ {
				queued := <-client.SendChan()
				client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.Conn().WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}
		case <-ticker.C:
			client.Conn().SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn().WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
