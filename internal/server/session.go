package server

import (
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session represents a terminal connection
type Session struct {
	ID          string
	Conn        net.Conn
	Remote      string
	ConnectedAt time.Time

	mu         sync.RWMutex
	deviceCode uint32
	hasDevice  bool
	lastActive time.Time
	frames     uint64
}

// SessionInfo is a point-in-time copy of a session for reporting.
type SessionInfo struct {
	ID          string    `json:"session"`
	Remote      string    `json:"remote"`
	DeviceCode  *uint32   `json:"device_code"`
	ConnectedAt time.Time `json:"connected_at"`
	LastActive  time.Time `json:"last_active"`
	Frames      uint64    `json:"frames"`
}

func newSession(conn net.Conn) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		Conn:        conn,
		Remote:      conn.RemoteAddr().String(),
		ConnectedAt: now,
		lastActive:  now,
	}
}

// Touch records read activity.
func (s *Session) Touch(at time.Time) {
	s.mu.Lock()
	s.lastActive = at
	s.mu.Unlock()
}

// CountFrame increments the processed frame counter.
func (s *Session) CountFrame() {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

// BindDevice remembers the device code of the first CONNECT or HEARTBEAT.
// Later calls are ignored. It reports whether the code was bound now.
func (s *Session) BindDevice(code uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasDevice {
		return false
	}
	s.deviceCode = code
	s.hasDevice = true
	return true
}

// DeviceCode returns the bound device code, if any.
func (s *Session) DeviceCode() (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviceCode, s.hasDevice
}

// Info snapshots the session.
func (s *Session) Info() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := SessionInfo{
		ID:          s.ID,
		Remote:      s.Remote,
		ConnectedAt: s.ConnectedAt,
		LastActive:  s.lastActive,
		Frames:      s.frames,
	}
	if s.hasDevice {
		code := s.deviceCode
		info.DeviceCode = &code
	}
	return info
}

// SessionRegistry tracks live sessions keyed by session id.
type SessionRegistry struct {
	sessions sync.Map // map[string]*Session
}

// Add registers a session.
func (r *SessionRegistry) Add(s *Session) {
	r.sessions.Store(s.ID, s)
}

// Remove forgets a session.
func (r *SessionRegistry) Remove(id string) {
	r.sessions.Delete(id)
}

// Get returns a session by id.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Count returns the number of live sessions.
func (r *SessionRegistry) Count() int {
	n := 0
	r.sessions.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Snapshot returns every live session ordered by connect time.
func (r *SessionRegistry) Snapshot() []SessionInfo {
	infos := make([]SessionInfo, 0)
	r.sessions.Range(func(_, value interface{}) bool {
		infos = append(infos, value.(*Session).Info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// closeAll closes every live connection.
func (r *SessionRegistry) closeAll() {
	r.sessions.Range(func(_, value interface{}) bool {
		value.(*Session).Conn.Close()
		return true
	})
}
