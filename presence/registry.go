// Package presence tracks which identities currently hold a live connection
// and the delivery sink attached to each. State lives for the process only;
// a restart always begins with an empty registry, whatever the store holds.
package presence

import (
	"chat-relay/contract"
	"sync"
)

type Registry struct {
	mu    sync.RWMutex
	sinks map[string]contract.EventSink // username -> live delivery channel
}

func NewRegistry() *Registry {
	return &Registry{sinks: make(map[string]contract.EventSink)}
}

// MarkOnline registers a username with its delivery sink. Re-marking an
// already-online username replaces the sink: a reconnect takes over the
// entry, it never duplicates it.
func (r *Registry) MarkOnline(username string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[username] = sink
}

// MarkOffline removes the username's entry. Idempotent: going offline twice
// is a no-op.
func (r *Registry) MarkOffline(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, username)
}

func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sinks[username]
	return ok
}

// SnapshotOnline returns the usernames currently online, unordered.
func (r *Registry) SnapshotOnline() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.sinks))
	for username := range r.sinks {
		users = append(users, username)
	}
	return users
}

// SinkFor resolves a username to its live sink, if any.
func (r *Registry) SinkFor(username string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.sinks[username]
	return sink, ok
}

// GroupScope snapshots every live sink for a broadcast. The snapshot may be
// stale by the time deliveries land; callers treat each publish as
// individually failable.
func (r *Registry) GroupScope() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.sinks))
	for _, sink := range r.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}
