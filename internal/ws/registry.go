package ws

import "sync"

// Session is one live authenticated connection held by the registry.
type Session interface {
	ID() string
	UserID() int
	// Push enqueues a payload for delivery. It never blocks; a full buffer or
	// closed connection returns an error.
	Push(payload []byte) error
	Closed() bool
	Close()
}

// Registry is the process-wide table of live sessions per user. A user may
// hold any number of simultaneous sessions (multi-device). Mutations are
// atomic with respect to lookups; lookups never block on pending sends.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]map[string]Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[int]map[string]Session)}
}

// Register adds a session for its user. Existing sessions for the same user
// are retained unless their transport already signalled close, in which case
// they are pruned first.
func (r *Registry) Register(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID := r.sessions[s.UserID()]
	if byID == nil {
		byID = make(map[string]Session)
		r.sessions[s.UserID()] = byID
	}
	for id, existing := range byID {
		if existing.Closed() {
			delete(byID, id)
		}
	}
	byID[s.ID()] = s
}

// Unregister removes exactly the matching session. It is a no-op if the
// session was never registered or is already gone.
func (r *Registry) Unregister(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byID, ok := r.sessions[s.UserID()]
	if !ok {
		return
	}
	delete(byID, s.ID())
	if len(byID) == 0 {
		delete(r.sessions, s.UserID())
	}
}

// Lookup returns a snapshot of the user's live sessions, possibly empty.
func (r *Registry) Lookup(userID int) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := r.sessions[userID]
	if len(byID) == 0 {
		return nil
	}
	snapshot := make([]Session, 0, len(byID))
	for _, s := range byID {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// IsReachable reports whether the user has at least one live session.
func (r *Registry) IsReachable(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID]) > 0
}

// Send pushes payload to every live session of the user and returns how many
// accepted it. A session that rejects the push is treated as unreachable and
// pruned; other sessions are unaffected.
func (r *Registry) Send(userID int, payload []byte) int {
	delivered := 0
	for _, s := range r.Lookup(userID) {
		if err := s.Push(payload); err != nil {
			r.Unregister(s)
			s.Close()
			continue
		}
		delivered++
	}
	return delivered
}
