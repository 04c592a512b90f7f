package runtime

import (
	"bkalan/contract"
	"sync"
)

type session struct {
	user string
	sink contract.EventSink
}

// Registry tracks the live participants of the chat room. Display names are
// not unique, so every live connection is keyed by its own connection ID.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]session // map connection -> participant
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]session)}
}

// Subscribe registers the sink of a live connection.
func (r *Registry) Subscribe(connID, user string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = session{user: user, sink: sink}
}

// Unsubscribe removes a connection and reports the display name it carried.
// The second result is false when the connection was already gone, so a
// departure is announced at most once.
func (r *Registry) Unsubscribe(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return "", false
	}
	delete(r.sessions, connID)
	return s.user, true
}

// Sinks returns the sinks of every live connection but except.
// Returns nil when nobody else is connected.
func (r *Registry) Sinks(except string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sinks []contract.EventSink
	for connID, s := range r.sessions {
		if connID == except {
			continue
		}
		sinks = append(sinks, s.sink)
	}
	return sinks
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
