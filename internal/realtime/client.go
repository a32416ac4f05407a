package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/model"
	"github.com/opspulse/pulsefeed/internal/wire"
)

// errAttemptCancelled marks a dial aborted by Disconnect or Close.
var errAttemptCancelled = errors.New("connection attempt cancelled")

// Options configures a Client.
type Options struct {
	// URL is the relay websocket endpoint.
	URL string
	// Token is the bearer token attached at connect time. Connect fails
	// with ErrTokenRequired while it is empty.
	Token string
	// Transport defaults to a WebsocketTransport.
	Transport Transport
	// BackoffBase and BackoffCap bound the reconnect delays. Zero values
	// use the package defaults (1s base, 30s cap).
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Logger defaults to a disabled logger.
	Logger zerolog.Logger
}

// Client owns the single connection to the relay and multiplexes every
// subscriber over it. One Client is shared per application instance;
// constructing private instances would split the room refcounting.
//
// All state transitions happen through Connect, Disconnect and the internal
// connection loop. Dropped connections are retried with exponential backoff
// until Disconnect is called; every transition into Connected resyncs the
// active rooms before the connect lifecycle event fires.
type Client struct {
	opts      Options
	transport Transport
	dispatch  *Dispatcher
	rooms     *Rooms
	logger    zerolog.Logger

	mu         sync.Mutex
	state      ConnectionState
	conn       Conn
	gen        uint64
	stop       chan struct{}
	cancelDial context.CancelFunc
	closed     bool
}

// New creates a disconnected Client.
func New(opts Options) *Client {
	if opts.Transport == nil {
		opts.Transport = &WebsocketTransport{}
	}
	logger := opts.Logger
	c := &Client{
		opts:      opts,
		transport: opts.Transport,
		logger:    logger,
	}
	c.dispatch = NewDispatcher(logger)
	c.rooms = newRooms(c.sendFrame, logger)
	return c
}

// Connect starts connecting if the client is Disconnected or Errored; it is
// a no-op while Connecting, Connected or Reconnecting. The attempt runs in
// the background: transport failures surface as connect_error lifecycle
// events, never as a synchronous error. Only misuse is reported directly.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return model.ErrClientClosed
	}
	if c.opts.Token == "" {
		c.mu.Unlock()
		return model.ErrTokenRequired
	}
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return nil
	}
	c.gen++
	gen := c.gen
	c.state = StateConnecting
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(gen, stop, false)
	return nil
}

// Disconnect closes the connection and cancels any in-flight dial or backoff
// wait. Intentional disconnects never trigger reconnection. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.gen++
	stop := c.stop
	c.stop = nil
	cancel := c.cancelDial
	c.cancelDial = nil
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stop != nil {
		close(stop)
	}
	if conn != nil {
		conn.Close()
	}
	c.logger.Info().Msg("disconnected")
	c.dispatch.Dispatch(Event{Name: wire.EventDisconnect})
}

// Close disconnects and clears every subscription and room membership so
// handlers cannot leak across sessions. The client cannot be reused.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.Disconnect()
	c.dispatch.Clear()
	c.rooms.Clear()
}

// Subscribe registers a handler for the named event and returns a disposer.
// Lifecycle events (connect, disconnect, connect_error) use the same
// contract as application events.
func (c *Client) Subscribe(event string, fn Handler) func() {
	return c.dispatch.On(event, fn)
}

// Send publishes an event to the relay. While not Connected the frame is
// dropped with a debug log rather than queued: stale commands from consumers
// that have since gone away must not be replayed blindly.
func (c *Client) Send(event string, payload any) error {
	frame, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}
	c.sendFrame(frame)
	return nil
}

// JoinRoom registers interest in a room and returns a disposer that leaves
// it exactly once.
func (c *Client) JoinRoom(room string) func() {
	return c.rooms.Join(room)
}

// LeaveRoom withdraws one unit of interest in a room.
func (c *Client) LeaveRoom(room string) {
	c.rooms.Leave(room)
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rooms returns the room registry.
func (c *Client) Rooms() *Rooms {
	return c.rooms
}

// Dispatcher returns the event dispatcher.
func (c *Client) Dispatcher() *Dispatcher {
	return c.dispatch
}

// run is the connection loop for one generation. It dials, attaches, pumps
// inbound frames, and retries with backoff after unexpected closes until the
// generation is invalidated by Disconnect or Close.
func (c *Client) run(gen uint64, stop chan struct{}, reconnecting bool) {
	backoff := NewBackoff(c.opts.BackoffBase, c.opts.BackoffCap)

	for {
		conn, err := c.dial(gen)
		if c.isStale(gen) {
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			c.logger.Debug().Err(err).Msg("connection attempt failed")
			c.emitConnectError(err)
			if !reconnecting || errors.Is(err, model.ErrUnauthorized) {
				c.setState(gen, StateErrored)
				return
			}
			select {
			case <-time.After(backoff.Next()):
				continue
			case <-stop:
				return
			}
		}

		if !c.attach(gen, conn) {
			conn.Close()
			return
		}
		backoff.Reset()

		// Re-establish room membership before declaring the connection
		// ready, so subscribers observe a fully synced connection.
		c.rooms.ResyncAll()
		c.logger.Info().Msg("connected")
		c.dispatch.Dispatch(Event{Name: wire.EventConnect})

		c.readLoop(conn)

		if c.isStale(gen) {
			return
		}
		c.detach(gen)
		c.logger.Warn().Msg("connection lost, reconnecting")
		c.dispatch.Dispatch(Event{Name: wire.EventDisconnect})
		reconnecting = true
	}
}

// dial performs one transport dial, registering its cancel function so an
// explicit Disconnect can abort a dial in flight.
func (c *Client) dial(gen uint64) (Conn, error) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if gen != c.gen || c.closed {
		c.mu.Unlock()
		cancel()
		return nil, errAttemptCancelled
	}
	c.cancelDial = cancel
	c.mu.Unlock()

	conn, err := c.transport.Dial(ctx, c.opts.URL, c.opts.Token)

	c.mu.Lock()
	c.cancelDial = nil
	c.mu.Unlock()
	cancel()

	return conn, err
}

// readLoop pumps frames from the connection into the dispatcher until the
// connection dies. Malformed frames are dropped and logged; they affect
// neither the connection nor other dispatches.
func (c *Client) readLoop(conn Conn) {
	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := wire.Decode(raw)
		if err != nil {
			c.logger.Debug().Err(err).Msg("dropping malformed frame")
			continue
		}
		c.dispatch.Dispatch(Event{Name: frame.Event, Room: frame.Room, Data: frame.Data})
	}
}

func (c *Client) attach(gen uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed {
		return false
	}
	c.conn = conn
	c.state = StateConnected
	return true
}

func (c *Client) detach(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateReconnecting
}

func (c *Client) setState(gen uint64, state ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.state = state
}

func (c *Client) isStale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen || c.closed
}

func (c *Client) emitConnectError(err error) {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	c.dispatch.Dispatch(Event{Name: wire.EventConnectError, Data: data})
}

// sendFrame writes a frame if the connection is up, dropping it otherwise.
// Write failures are logged only; the read loop notices the dead connection
// and drives the reconnect.
func (c *Client) sendFrame(f wire.Frame) {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || conn == nil {
		c.logger.Debug().Str("event", f.Event).Msg("dropping frame while not connected")
		return
	}

	data, err := f.Encode()
	if err != nil {
		c.logger.Debug().Err(err).Str("event", f.Event).Msg("failed to encode frame")
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		c.logger.Debug().Err(err).Str("event", f.Event).Msg("write failed")
	}
}
