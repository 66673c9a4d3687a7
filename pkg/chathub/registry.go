package chathub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Conn is the write side of a client connection. *websocket.Conn satisfies
// it; tests stub it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DefaultDisconnectGrace is how long a disconnected client's entry is kept
// before it is purged, so a quick reconnect can be told apart from a client
// that is gone.
const DefaultDisconnectGrace = 30 * time.Second

type clientEntry struct {
	// writeMu serializes writes to conn: websocket connections allow only
	// one concurrent writer.
	writeMu        sync.Mutex
	conn           Conn // nil while disconnected
	lastSeen       time.Time
	disconnectedAt time.Time
}

func (e *clientEntry) write(conn Conn, payload []byte) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// ConnectionRegistry owns the set of live client connections, keyed by client
// id, independent of any conversation state. At most one live handle exists
// per client id; a second Register supersedes the prior handle.
type ConnectionRegistry struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	grace   time.Duration

	purgeRunning bool
}

func NewConnectionRegistry(grace time.Duration) *ConnectionRegistry {
	if grace <= 0 {
		grace = DefaultDisconnectGrace
	}
	return &ConnectionRegistry{
		clients: map[string]*clientEntry{},
		grace:   grace,
	}
}

// Register installs conn as the live handle for clientID. An existing live
// handle for the same id is closed first: the client reconnected from a new
// network path while the old socket lingers.
func (r *ConnectionRegistry) Register(clientID string, conn Conn) {
	if clientID == "" || conn == nil {
		return
	}
	var stale Conn
	r.mu.Lock()
	if entry, ok := r.clients[clientID]; ok {
		stale = entry.conn
	}
	r.clients[clientID] = &clientEntry{conn: conn, lastSeen: time.Now()}
	total := r.liveCountLocked()
	r.mu.Unlock()
	if stale != nil {
		log.Info().Str("component", "registry").Str("client_id", clientID).Msg("superseding stale connection")
		_ = stale.Close()
	}
	log.Info().Str("component", "registry").Str("client_id", clientID).Int("live", total).Msg("client connected")
}

// Unregister marks the client disconnected and retains a tombstone for the
// grace window. Unknown ids are a no-op.
func (r *ConnectionRegistry) Unregister(clientID string) {
	r.mu.Lock()
	entry, ok := r.clients[clientID]
	var conn Conn
	if ok {
		conn = entry.conn
		entry.conn = nil
		entry.disconnectedAt = time.Now()
	}
	total := r.liveCountLocked()
	r.mu.Unlock()
	if !ok {
		return
	}
	if conn != nil {
		_ = conn.Close()
	}
	log.Info().Str("component", "registry").Str("client_id", clientID).Int("live", total).Msg("client disconnected")
}

// Send delivers payload to the client's live handle. ErrNotConnected means
// the client has no live push channel; the caller falls back to its
// synchronous reply. A failed write drops the handle.
func (r *ConnectionRegistry) Send(clientID string, payload []byte) error {
	r.mu.Lock()
	entry, ok := r.clients[clientID]
	if !ok || entry.conn == nil {
		r.mu.Unlock()
		return errors.Wrap(ErrNotConnected, clientID)
	}
	conn := entry.conn
	entry.lastSeen = time.Now()
	r.mu.Unlock()

	if err := entry.write(conn, payload); err != nil {
		log.Warn().Err(err).Str("component", "registry").Str("client_id", clientID).Msg("send failed, dropping connection")
		r.drop(clientID, conn)
		return errors.Wrap(ErrNotConnected, clientID)
	}
	return nil
}

// Broadcast delivers payload to every live handle. Best-effort: individual
// failures are logged and the handle dropped, never propagated.
func (r *ConnectionRegistry) Broadcast(payload []byte) {
	type target struct {
		entry *clientEntry
		conn  Conn
	}
	r.mu.Lock()
	targets := make(map[string]target, len(r.clients))
	for id, entry := range r.clients {
		if entry.conn != nil {
			targets[id] = target{entry: entry, conn: entry.conn}
		}
	}
	r.mu.Unlock()

	for id, tg := range targets {
		if err := tg.entry.write(tg.conn, payload); err != nil {
			log.Warn().Err(err).Str("component", "registry").Str("client_id", id).Msg("broadcast failed, dropping connection")
			r.drop(id, tg.conn)
		}
	}
}

// ClientStatus is a point-in-time view of one registry entry. LastSeen is the
// last successful Register or Send for the client.
type ClientStatus struct {
	ClientID  string    `json:"client_id"`
	Connected bool      `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Snapshot lists every known client, live handles and tombstones alike, for
// the stats surface.
func (r *ConnectionRegistry) Snapshot() []ClientStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ClientStatus, 0, len(r.clients))
	for id, entry := range r.clients {
		out = append(out, ClientStatus{
			ClientID:  id,
			Connected: entry.conn != nil,
			LastSeen:  entry.lastSeen,
		})
	}
	return out
}

// IsConnected reports whether the client currently has a live handle.
func (r *ConnectionRegistry) IsConnected(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.clients[clientID]
	return ok && entry.conn != nil
}

// LiveCount reports the number of live handles.
func (r *ConnectionRegistry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liveCountLocked()
}

func (r *ConnectionRegistry) liveCountLocked() int {
	n := 0
	for _, entry := range r.clients {
		if entry.conn != nil {
			n++
		}
	}
	return n
}

// StartPurgeLoop runs tombstone purges at interval until ctx is done.
func (r *ConnectionRegistry) StartPurgeLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = r.grace
	}
	r.mu.Lock()
	if r.purgeRunning {
		r.mu.Unlock()
		return
	}
	r.purgeRunning = true
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.mu.Lock()
				r.purgeRunning = false
				r.mu.Unlock()
				return
			case now := <-ticker.C:
				r.purgeOnce(now)
			}
		}
	}()
}

// purgeOnce removes tombstones whose grace window has elapsed and returns how
// many were purged.
func (r *ConnectionRegistry) purgeOnce(now time.Time) int {
	if now.IsZero() {
		now = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for id, entry := range r.clients {
		if entry.conn != nil || entry.disconnectedAt.IsZero() {
			continue
		}
		if now.Sub(entry.disconnectedAt) >= r.grace {
			delete(r.clients, id)
			purged++
		}
	}
	if purged > 0 {
		log.Debug().Str("component", "registry").Int("purged", purged).Msg("purged disconnected clients")
	}
	return purged
}

// CloseAll closes every live handle, for shutdown.
func (r *ConnectionRegistry) CloseAll() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.clients))
	for _, entry := range r.clients {
		if entry.conn != nil {
			conns = append(conns, entry.conn)
			entry.conn = nil
			entry.disconnectedAt = time.Now()
		}
	}
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// UnregisterHandle tombstones the client only if conn is still its live
// handle. A disconnect racing a reconnect must not tear down the handle the
// reconnect just installed. Returns whether anything was unregistered.
func (r *ConnectionRegistry) UnregisterHandle(clientID string, conn Conn) bool {
	if conn == nil {
		if !r.IsConnected(clientID) {
			return false
		}
		r.Unregister(clientID)
		return true
	}
	if !r.drop(clientID, conn) {
		return false
	}
	log.Info().Str("component", "registry").Str("client_id", clientID).Int("live", r.LiveCount()).Msg("client disconnected")
	return true
}

// drop removes conn as the live handle for clientID, but only if it still is
// the live handle: a concurrent Register may have superseded it already.
func (r *ConnectionRegistry) drop(clientID string, conn Conn) bool {
	r.mu.Lock()
	entry, ok := r.clients[clientID]
	if ok && entry.conn == conn {
		entry.conn = nil
		entry.disconnectedAt = time.Now()
	} else {
		ok = false
	}
	r.mu.Unlock()
	if ok {
		_ = conn.Close()
	}
	return ok
}
