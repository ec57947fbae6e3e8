// Package session orchestrates one connection's life: admission,
// authentication, the event loop, and teardown. It is the only place
// that wires the registry, rooms, rate limiter, auth gate, dispatcher
// and presence tracker together.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"roomhub/internal/auth"
	"roomhub/internal/ratelimit"
	"roomhub/internal/registry"
	"roomhub/internal/room"
	"roomhub/pkg/interfaces"
	"roomhub/pkg/types"
)

// State is the lifecycle position of a connection.
type State int

const (
	StateConnecting State = iota
	StateUnauthenticated
	StateActive
	StateClosing
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Coordinator holds the shared components and accepts new sessions.
type Coordinator struct {
	registry    *registry.Registry
	rooms       *room.Manager
	limiter     *ratelimit.Limiter
	verifier    interfaces.TokenVerifier
	dispatcher  interfaces.Dispatcher
	presence    interfaces.Presence
	authTimeout time.Duration
	rateWindow  time.Duration

	now func() time.Time
}

// NewCoordinator wires the shared components. rateWindow is only used
// for the retry hint on rate-limit rejections; the limiter itself
// carries the authoritative setting.
func NewCoordinator(
	reg *registry.Registry,
	rooms *room.Manager,
	limiter *ratelimit.Limiter,
	verifier interfaces.TokenVerifier,
	dispatcher interfaces.Dispatcher,
	presence interfaces.Presence,
	authTimeout, rateWindow time.Duration,
) *Coordinator {
	return &Coordinator{
		registry:    reg,
		rooms:       rooms,
		limiter:     limiter,
		verifier:    verifier,
		dispatcher:  dispatcher,
		presence:    presence,
		authTimeout: authTimeout,
		rateWindow:  rateWindow,
		now:         time.Now,
	}
}

// Accept admits a new connection and returns its session in the
// Unauthenticated state. Fails with registry.ErrCapacityExceeded when
// the registry is at its ceiling; the caller rejects the connection at
// the transport level and no session exists.
func (c *Coordinator) Accept() (*Lifecycle, error) {
	conn, err := c.registry.Register()
	if err != nil {
		return nil, err
	}

	s := &Lifecycle{
		coord: c,
		conn:  conn,
		state: StateUnauthenticated,
	}

	// An unauthenticated connection that never presents a claim is
	// force-closed so idle strangers cannot accumulate.
	s.authTimer = time.AfterFunc(c.authTimeout, s.authDeadline)

	log.Printf("session accepted: conn=%s", conn.ID())
	return s, nil
}

// Lifecycle is the per-connection state machine
// Connecting→Unauthenticated→Active→Closing→Closed. All inbound frames
// for one connection arrive from a single read loop, so the mutex only
// guards against the auth timer and transport-driven Close racing that
// loop.
type Lifecycle struct {
	coord *Coordinator
	conn  *registry.Connection

	mu        sync.Mutex
	state     State
	authTimer *time.Timer
}

// Conn exposes the underlying connection for the transport layer,
// which drains its outbound queue.
func (s *Lifecycle) Conn() *registry.Connection {
	return s.conn
}

// State returns the current lifecycle state.
func (s *Lifecycle) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleFrame processes one raw inbound frame. Rejections are reported
// to the client as error frames; only a closed session returns an
// error, which tells the transport to stop reading.
func (s *Lifecycle) HandleFrame(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosing, StateClosed:
		return ErrSessionClosed
	}

	now := s.coord.now()
	s.conn.Touch(now)

	ev, err := types.DecodeEvent(raw)
	if err != nil {
		s.reject(types.CodeBadEvent, "unrecognized event")
		return nil
	}

	if s.state == StateUnauthenticated {
		s.handleUnauthenticated(ev)
		return nil
	}

	s.handleActive(ev, now)
	return nil
}

// handleUnauthenticated admits exactly one kind of event: an auth
// claim. Everything else is rejected without a state change.
func (s *Lifecycle) handleUnauthenticated(ev *types.InboundEvent) {
	if ev.Kind != types.EventAuth {
		s.reject(types.CodeNotAuthenticated, "authenticate first")
		return
	}

	identity, err := s.coord.verifier.Verify(ev.Token)
	if err != nil {
		// Expired gets its own message; both outcomes reject the
		// connection at the protocol layer.
		code := types.CodeAuthFailed
		text := "authentication failed"
		if errors.Is(err, auth.ErrTokenExpired) {
			code = types.CodeAuthExpired
			text = "token expired"
		}
		s.reject(code, text)
		log.Printf("session auth rejected: conn=%s err=%v", s.conn.ID(), err)
		s.closeLocked()
		return
	}

	if err := s.coord.registry.AttachIdentity(s.conn.ID(), identity); err != nil {
		// Registry state diverged from the state machine; treat as a
		// failed handshake rather than guessing.
		s.reject(types.CodeAuthFailed, "authentication failed")
		log.Printf("session attach identity failed: conn=%s err=%v", s.conn.ID(), err)
		s.closeLocked()
		return
	}

	s.authTimer.Stop()
	s.state = StateActive
	s.conn.Queue().Enqueue(types.NewSystemFrame(fmt.Sprintf("authenticated as %s", identity)))
	log.Printf("session active: conn=%s identity=%s", s.conn.ID(), identity)
}

// handleActive runs the normal event loop: rate gate, then dispatch by
// kind. The switch over the event enum is exhaustive.
func (s *Lifecycle) handleActive(ev *types.InboundEvent, now time.Time) {
	if ev.Kind == types.EventAuth {
		// Identity is immutable once attached.
		s.reject(types.CodeAlreadyIdentified, "already authenticated")
		return
	}

	if !s.coord.limiter.Admit(s.conn.ID(), now) {
		s.reject(types.CodeRateLimited,
			fmt.Sprintf("rate limit exceeded, retry within %s", s.coord.rateWindow))
		return
	}

	identity := s.conn.Identity()

	switch ev.Kind {
	case types.EventJoin:
		if err := s.coord.rooms.Join(s.conn.ID(), ev.Room); err != nil {
			s.reject(types.CodeBadEvent, "invalid room name")
			return
		}
		s.coord.presence.OnJoinRoom(ev.Room)

	case types.EventLeave:
		s.coord.rooms.Leave(s.conn.ID(), ev.Room)
		s.coord.presence.OnLeaveRoom(ev.Room)

	case types.EventMessage:
		if !types.IsValidText(ev.Text) {
			s.reject(types.CodeBadEvent, "message too long")
			return
		}
		if ev.Room != "" {
			// Sender is excluded from room chat; their client already
			// has the message locally.
			s.coord.dispatcher.SendRoom(ev.Room, types.NewRoomMessage(identity, ev.Room, ev.Text), s.conn.ID())
		} else {
			s.coord.dispatcher.SendAll(types.NewBroadcastMessage(identity, ev.Text), s.conn.ID())
		}

	case types.EventPrivate:
		if !types.IsValidIdentity(ev.To) {
			s.reject(types.CodeBadEvent, "invalid recipient")
			return
		}
		if !types.IsValidText(ev.Text) {
			s.reject(types.CodeBadEvent, "message too long")
			return
		}
		// Fans out to every connection the recipient holds; an offline
		// recipient simply receives nothing.
		s.coord.dispatcher.SendUser(ev.To, types.NewPrivateMessage(identity, ev.Text))

	case types.EventTyping:
		if !types.IsValidRoomName(ev.Room) {
			s.reject(types.CodeBadEvent, "invalid room name")
			return
		}
		s.coord.presence.OnTyping(identity, s.conn.ID(), ev.Room, ev.Typing)
	}
}

// Close drives Closing→Closed teardown. Safe to call from the
// transport, the auth timer, or tests, any number of times.
func (s *Lifecycle) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// closeLocked removes all shared state for this connection. Teardown
// is best-effort and never aborts partway: each step runs regardless
// of the others.
func (s *Lifecycle) closeLocked() {
	switch s.state {
	case StateClosing, StateClosed:
		return
	}
	s.state = StateClosing

	s.authTimer.Stop()

	connID := s.conn.ID()
	affected := s.coord.rooms.LeaveAll(connID)
	s.coord.limiter.Reset(connID)
	s.coord.registry.Remove(connID)

	// Notify after Remove so the departed connection can no longer
	// receive its own presence updates.
	s.coord.presence.OnDisconnect(affected)

	s.state = StateClosed
	log.Printf("session closed: conn=%s rooms=%d", connID, len(affected))
}

// authDeadline fires when the auth timer lapses. Still-unauthenticated
// sessions are force-closed.
func (s *Lifecycle) authDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnauthenticated {
		return
	}
	log.Printf("session auth timeout: conn=%s", s.conn.ID())
	s.reject(types.CodeNotAuthenticated, "authentication timeout")
	s.closeLocked()
}

// reject sends an error frame back to this connection only.
func (s *Lifecycle) reject(code, text string) {
	s.conn.Queue().Enqueue(types.NewErrorFrame(code, text))
}
