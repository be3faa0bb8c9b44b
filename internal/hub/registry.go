package hub

import (
	"sync"

	"github.com/samber/lo"

	"creator_collab/internal/domain"
	"creator_collab/internal/metrics"
	"creator_collab/pkg/logger"
)

// Registry is the in-memory presence and fan-out table. Membership changes
// take the write lock and broadcasts hold the read lock while queueing, so a
// connection never receives a frame after Unregister returns.
type Registry struct {
	mu    sync.RWMutex
	conns map[*Connection]map[string]struct{}
	rooms map[string]map[*Connection]struct{}
	log   logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		conns: make(map[*Connection]map[string]struct{}),
		rooms: make(map[string]map[*Connection]struct{}),
		log:   log,
	}
}

func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		return
	}
	r.conns[conn] = make(map[string]struct{})
	metrics.ActiveConnections.Inc()
}

// Unregister drops the connection from every room and closes it. It returns
// the rooms where the identity has no other watching connection left.
func (r *Registry) Unregister(conn *Connection) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	watched, ok := r.conns[conn]
	if !ok {
		conn.close()
		return nil
	}

	var left []string
	for roomID := range watched {
		if r.detach(conn, roomID) {
			left = append(left, roomID)
		}
	}
	delete(r.conns, conn)
	conn.close()

	metrics.ActiveConnections.Dec()
	metrics.WatchedRooms.Set(float64(len(r.rooms)))
	r.log.Debug("Connection unregistered", "connection_id", conn.ID(), "user_id", conn.Identity().UserID, "rooms", len(watched))
	return left
}

// Watch reports whether this is the identity's first connection watching
// roomID. Unknown connections are ignored.
func (r *Registry) Watch(conn *Connection, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	watched, ok := r.conns[conn]
	if !ok {
		return false
	}
	if _, already := watched[roomID]; already {
		return false
	}

	first := !r.identityPresent(roomID, conn.Identity().UserID)

	watched[roomID] = struct{}{}
	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[*Connection]struct{})
	}
	r.rooms[roomID][conn] = struct{}{}

	metrics.WatchedRooms.Set(float64(len(r.rooms)))
	return first
}

// Unwatch reports whether the identity's last watching connection left
// roomID.
func (r *Registry) Unwatch(conn *Connection, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	watched, ok := r.conns[conn]
	if !ok {
		return false
	}
	if _, watching := watched[roomID]; !watching {
		return false
	}

	delete(watched, roomID)
	left := r.detach(conn, roomID)

	metrics.WatchedRooms.Set(float64(len(r.rooms)))
	return left
}

// detach must be called with the write lock held.
func (r *Registry) detach(conn *Connection, roomID string) bool {
	members := r.rooms[roomID]
	delete(members, conn)
	if len(members) == 0 {
		delete(r.rooms, roomID)
	}
	return !r.identityPresent(roomID, conn.Identity().UserID)
}

func (r *Registry) identityPresent(roomID, userID string) bool {
	for c := range r.rooms[roomID] {
		if c.Identity().UserID == userID {
			return true
		}
	}
	return false
}

// Broadcast queues frame to every watcher of roomID except skip. Watchers
// whose buffer is full are returned so the caller can evict them.
func (r *Registry) Broadcast(roomID string, frame []byte, skip *Connection) (delivered int, slow []*Connection) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.rooms[roomID] {
		if conn == skip {
			continue
		}
		if conn.enqueue(frame) {
			delivered++
			continue
		}
		if !conn.Closed() {
			slow = append(slow, conn)
		}
	}
	return delivered, slow
}

// Deliver queues frame to a single registered connection.
func (r *Registry) Deliver(conn *Connection, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.conns[conn]; !ok {
		return false
	}
	return conn.enqueue(frame)
}

// Online lists the distinct identities watching roomID.
func (r *Registry) Online(roomID string) []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identities := make([]domain.Identity, 0, len(r.rooms[roomID]))
	for conn := range r.rooms[roomID] {
		identities = append(identities, conn.Identity())
	}
	return lo.UniqBy(identities, func(i domain.Identity) string { return i.UserID })
}

func (r *Registry) Watching(conn *Connection) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns[conn])
}

// ConnectionsOf returns the open connections of userID.
func (r *Registry) ConnectionsOf(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for conn := range r.conns {
		if conn.Identity().UserID == userID {
			out = append(out, conn)
		}
	}
	return out
}

// All returns every registered connection.
func (r *Registry) All() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.conns)
}

func (r *Registry) Connections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
