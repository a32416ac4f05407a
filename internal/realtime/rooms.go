package realtime

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/opspulse/pulsefeed/internal/wire"
)

// Rooms tracks, per room, how many independent consumers are interested.
// Join/leave wire traffic is only produced on the 0→1 and 1→0 refcount
// transitions, so two widgets watching the same room share one membership
// and the first unmount does not kill the second widget's feed.
//
// Sending is delegated to the connection manager, which drops frames while
// not connected; the refcount is authoritative either way, and ResyncAll
// re-announces every active room after a (re)connect.
type Rooms struct {
	mu     sync.Mutex
	refs   map[string]int
	send   func(wire.Frame)
	logger zerolog.Logger
}

func newRooms(send func(wire.Frame), logger zerolog.Logger) *Rooms {
	return &Rooms{
		refs:   make(map[string]int),
		send:   send,
		logger: logger,
	}
}

// Join increments the room's refcount, announcing membership to the relay on
// the 0→1 transition. The returned disposer leaves the room exactly once no
// matter how many times it is invoked.
func (r *Rooms) Join(room string) func() {
	if room == "" {
		return func() {}
	}

	r.mu.Lock()
	r.refs[room]++
	first := r.refs[room] == 1
	r.mu.Unlock()

	if first {
		r.send(wire.JoinFrame(room))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.Leave(room)
		})
	}
}

// Leave decrements the room's refcount, announcing departure to the relay on
// the 1→0 transition. Leaving a room with no refcount is a no-op.
func (r *Rooms) Leave(room string) {
	r.mu.Lock()
	count, ok := r.refs[room]
	if !ok {
		r.mu.Unlock()
		return
	}
	count--
	last := count == 0
	if last {
		delete(r.refs, room)
	} else {
		r.refs[room] = count
	}
	r.mu.Unlock()

	if last {
		r.send(wire.LeaveFrame(room))
	}
}

// ResyncAll re-announces every room with a positive refcount. The connection
// manager calls this on every transition into Connected, since the relay
// forgets membership when a connection drops.
func (r *Rooms) ResyncAll() {
	for _, room := range r.Active() {
		r.send(wire.JoinFrame(room))
	}
}

// Active returns the rooms with a positive refcount, sorted for determinism.
func (r *Rooms) Active() []string {
	r.mu.Lock()
	rooms := make([]string, 0, len(r.refs))
	for room := range r.refs {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	sort.Strings(rooms)
	return rooms
}

// Refcount returns the current refcount for a room.
func (r *Rooms) Refcount(room string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refs[room]
}

// Clear drops all memberships without emitting leave traffic. Used on
// teardown, when the connection is going away anyway.
func (r *Rooms) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = make(map[string]int)
}
