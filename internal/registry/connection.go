package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one live endpoint. The id is server-assigned and never
// reused; identity stays empty until the auth gate resolves it and is
// immutable once set. The outbound queue is owned by this connection
// and survives until the registry removes it.
type Connection struct {
	id    string
	queue *Queue

	mu           sync.RWMutex
	identity     string
	lastActivity time.Time
}

func newConnection(queueDepth int) *Connection {
	return &Connection{
		id:           uuid.New().String(),
		queue:        newQueue(queueDepth),
		lastActivity: time.Now(),
	}
}

// ID returns the opaque connection handle.
func (c *Connection) ID() string {
	return c.id
}

// Identity returns the bound user identity, or "" before auth.
func (c *Connection) Identity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// Authenticated reports whether an identity has been attached.
func (c *Connection) Authenticated() bool {
	return c.Identity() != ""
}

// Queue returns the connection's outbound buffer.
func (c *Connection) Queue() *Queue {
	return c.queue
}

// Touch records inbound activity for idle bookkeeping.
func (c *Connection) Touch(now time.Time) {
	c.mu.Lock()
	c.lastActivity = now
	c.mu.Unlock()
}

// LastActivity returns the most recent inbound activity time.
func (c *Connection) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// bindIdentity attaches the identity exactly once. Callers go through
// Registry.AttachIdentity, which also maintains the identity index.
func (c *Connection) bindIdentity(identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity != "" {
		return ErrAlreadyIdentified
	}
	c.identity = identity
	return nil
}
