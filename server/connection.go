package server

import (
	"strings"
	"sync"
	"time"

	"etamoo/types"
)

// Conn is the transport side of one client connection; the TCP
// listener in cmd/etamoo provides the real implementation.
type Conn interface {
	Send(line string) error
	Close() error
}

// ConnInfo is the server-side record of a connection. Until login it
// is identified by a negative connection id; after login the id is the
// player's object number.
type ConnInfo struct {
	ID          types.ObjID
	Conn        Conn
	Name        string
	ConnectedAt time.Time
	LastInput   time.Time
	Options     map[string]types.Value

	buffered []string // output held back by notify(.., .., no_flush)

	// In-band .program collection state.
	ProgramTarget string
	ProgramLines  []string
	Programming   bool
}

// ConnectionManager is the shared connection table, mutated only under
// its lock; the scheduler and the listener goroutines both touch it.
type ConnectionManager struct {
	mu         sync.Mutex
	conns      map[types.ObjID]*ConnInfo
	nextConnID types.ObjID
}

// NewConnectionManager creates an empty table.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		conns:      make(map[types.ObjID]*ConnInfo),
		nextConnID: -10, // below the object sentinels
	}
}

// NewConnection registers a transport and returns its pre-login id.
func (cm *ConnectionManager) NewConnection(c Conn, name string) *ConnInfo {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	info := &ConnInfo{
		ID:          cm.nextConnID,
		Conn:        c,
		Name:        name,
		ConnectedAt: time.Now(),
		LastInput:   time.Now(),
		Options:     make(map[string]types.Value),
	}
	cm.nextConnID--
	cm.conns[info.ID] = info
	return info
}

// Login rebinds a connection to a player object, booting any previous
// connection for the same player.
func (cm *ConnectionManager) Login(connID, player types.ObjID) *ConnInfo {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	info, ok := cm.conns[connID]
	if !ok {
		return nil
	}
	if old, ok := cm.conns[player]; ok && old != info {
		old.Conn.Close()
	}
	delete(cm.conns, connID)
	info.ID = player
	cm.conns[player] = info
	return info
}

// Get looks up a connection by id.
func (cm *ConnectionManager) Get(id types.ObjID) *ConnInfo {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.conns[id]
}

// Remove drops a connection from the table.
func (cm *ConnectionManager) Remove(id types.ObjID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.conns, id)
}

// Touch records input activity for idle_seconds.
func (cm *ConnectionManager) Touch(id types.ObjID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if info, ok := cm.conns[id]; ok {
		info.LastInput = time.Now()
	}
}

// Send writes a line, or buffers it when noFlush is set.
func (cm *ConnectionManager) Send(id types.ObjID, line string, noFlush bool) bool {
	cm.mu.Lock()
	info, ok := cm.conns[id]
	if ok && noFlush {
		info.buffered = append(info.buffered, line)
		cm.mu.Unlock()
		return true
	}
	var pending []string
	if ok {
		pending = info.buffered
		info.buffered = nil
	}
	cm.mu.Unlock()
	if !ok {
		return false
	}
	for _, p := range pending {
		info.Conn.Send(p)
	}
	return info.Conn.Send(line) == nil
}

// Flush writes any held-back output.
func (cm *ConnectionManager) Flush(id types.ObjID) {
	cm.mu.Lock()
	info, ok := cm.conns[id]
	var pending []string
	if ok {
		pending = info.buffered
		info.buffered = nil
	}
	cm.mu.Unlock()
	for _, p := range pending {
		info.Conn.Send(p)
	}
}

// Players lists the logged-in player ids (non-negative entries).
func (cm *ConnectionManager) Players() []types.ObjID {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	var out []types.ObjID
	for id := range cm.conns {
		if id >= 0 {
			out = append(out, id)
		}
	}
	return out
}

// All lists every connection id, pre-login ones included.
func (cm *ConnectionManager) All() []types.ObjID {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	var out []types.ObjID
	for id := range cm.conns {
		out = append(out, id)
	}
	return out
}

// Option reads a per-connection option.
func (cm *ConnectionManager) Option(id types.ObjID, name string) (types.Value, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	info, ok := cm.conns[id]
	if !ok {
		return nil, false
	}
	v, set := info.Options[strings.ToLower(name)]
	if !set {
		return types.NewInt(0), true
	}
	return v, true
}

// SetOption writes a per-connection option.
func (cm *ConnectionManager) SetOption(id types.ObjID, name string, v types.Value) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	info, ok := cm.conns[id]
	if !ok {
		return false
	}
	info.Options[strings.ToLower(name)] = v
	return true
}
