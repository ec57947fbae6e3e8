// Package registry owns the set of live connections and the
// connection-to-identity mapping. It is the sole owner of Connection
// lifetime; every other component refers to connections by id.
package registry

import (
	"sync"
)

// Registry tracks live connections under a single mutex. The lock
// covers only map mutations and snapshots; per-connection queue
// operations take the queue's own lock and never this one.
type Registry struct {
	mu         sync.RWMutex
	capacity   int
	queueDepth int
	conns      map[string]*Connection
	byIdentity map[string]map[string]*Connection // identity -> connID -> conn
}

// NewRegistry creates a registry with a hard connection ceiling and a
// fixed outbound queue depth for every connection it admits.
func NewRegistry(capacity, queueDepth int) *Registry {
	return &Registry{
		capacity:   capacity,
		queueDepth: queueDepth,
		conns:      make(map[string]*Connection),
		byIdentity: make(map[string]map[string]*Connection),
	}
}

// Register admits a new, unidentified connection. It fails only when
// the registry is at capacity, in which case the caller must reject the
// connection before it reaches Active.
func (r *Registry) Register() (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.conns) >= r.capacity {
		return nil, ErrCapacityExceeded
	}

	conn := newConnection(r.queueDepth)
	r.conns[conn.id] = conn
	return conn, nil
}

// AttachIdentity binds a user identity to a connection exactly once and
// indexes it for LookupByIdentity. A second call fails with
// ErrAlreadyIdentified regardless of the identity offered.
func (r *Registry) AttachIdentity(connID, identity string) error {
	if identity == "" {
		return ErrInvalidIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrNotFound
	}
	if err := conn.bindIdentity(identity); err != nil {
		return err
	}

	if r.byIdentity[identity] == nil {
		r.byIdentity[identity] = make(map[string]*Connection)
	}
	r.byIdentity[identity][connID] = conn
	return nil
}

// Lookup returns the connection for an id.
func (r *Registry) Lookup(connID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	return conn, ok
}

// LookupByIdentity returns every live connection bound to an identity.
// An identity may hold several simultaneous connections (multiple
// tabs); an unknown identity yields an empty slice.
func (r *Registry) LookupByIdentity(identity string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tabs := r.byIdentity[identity]
	if len(tabs) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(tabs))
	for _, conn := range tabs {
		conns = append(conns, conn)
	}
	return conns
}

// Remove deletes a connection and seals its outbound queue. Idempotent:
// removing an unknown id is a no-op. The queue is closed under the
// registry lock, so once Remove returns, no dispatch — even one holding
// a stale snapshot — can enqueue onto this connection.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return
	}

	delete(r.conns, connID)

	if identity := conn.Identity(); identity != "" {
		if tabs, ok := r.byIdentity[identity]; ok {
			delete(tabs, connID)
			if len(tabs) == 0 {
				delete(r.byIdentity, identity)
			}
		}
	}

	conn.queue.Close()
}

// Snapshot returns all live connections for whole-registry fan-out.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Count reports the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// IdentityCount reports the number of distinct identities online.
func (r *Registry) IdentityCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}
