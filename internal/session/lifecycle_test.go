package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roomhub/internal/auth"
	"roomhub/internal/dispatch"
	"roomhub/internal/presence"
	"roomhub/internal/ratelimit"
	"roomhub/internal/registry"
	"roomhub/internal/room"
	"roomhub/pkg/types"
)

type testEnv struct {
	coord    *Coordinator
	registry *registry.Registry
	rooms    *room.Manager
	gate     *auth.Gate
	clock    time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reg := registry.NewRegistry(8, 16)
	rooms := room.NewManager()
	limiter := ratelimit.NewLimiter(3, time.Second)
	gate := auth.NewGate("test-secret", "roomhub-test", time.Hour)
	dispatcher := dispatch.NewDispatcher(reg, rooms)
	tracker := presence.NewTracker(rooms, dispatcher)

	env := &testEnv{
		coord:    NewCoordinator(reg, rooms, limiter, gate, dispatcher, tracker, time.Minute, time.Second),
		registry: reg,
		rooms:    rooms,
		gate:     gate,
		clock:    time.Now(),
	}
	env.coord.now = func() time.Time { return env.clock }
	return env
}

func (e *testEnv) accept(t *testing.T) *Lifecycle {
	t.Helper()
	s, err := e.coord.Accept()
	require.NoError(t, err)
	return s
}

// authenticate runs the auth handshake and drains the welcome frame.
func (e *testEnv) authenticate(t *testing.T, s *Lifecycle, identity string) {
	t.Helper()
	token, err := e.gate.Mint(identity)
	require.NoError(t, err)
	e.send(t, s, &types.InboundEvent{Kind: types.EventAuth, Token: token})
	require.Equal(t, StateActive, s.State())
	drain(s.Conn().Queue())
}

func (e *testEnv) send(t *testing.T, s *Lifecycle, ev *types.InboundEvent) {
	t.Helper()
	raw, err := types.EncodeEvent(ev)
	require.NoError(t, err)
	require.NoError(t, s.HandleFrame(raw))
}

func drain(q *registry.Queue) []*types.Frame {
	var frames []*types.Frame
	for {
		select {
		case f, ok := <-q.Frames():
			if !ok {
				return frames
			}
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func lastError(frames []*types.Frame) *types.Frame {
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == types.FrameError {
			return frames[i]
		}
	}
	return nil
}

func TestLifecycle_AcceptStartsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)

	require.Equal(t, StateUnauthenticated, s.State())
	require.False(t, s.Conn().Authenticated())
	require.Equal(t, 1, env.registry.Count())
}

func TestLifecycle_AcceptAtCapacity(t *testing.T) {
	reg := registry.NewRegistry(1, 4)
	rooms := room.NewManager()
	dispatcher := dispatch.NewDispatcher(reg, rooms)
	coord := NewCoordinator(reg, rooms, ratelimit.NewLimiter(3, time.Second),
		auth.NewGate("s", "i", time.Hour), dispatcher,
		presence.NewTracker(rooms, dispatcher), time.Minute, time.Second)

	first, err := coord.Accept()
	require.NoError(t, err)

	_, err = coord.Accept()
	require.ErrorIs(t, err, registry.ErrCapacityExceeded)

	// The first session is untouched by the rejected accept.
	require.Equal(t, StateUnauthenticated, first.State())
	require.Equal(t, 1, reg.Count())
}

func TestLifecycle_EventBeforeAuthRejected(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)

	env.send(t, s, &types.InboundEvent{Kind: types.EventJoin, Room: "lobby"})

	frames := drain(s.Conn().Queue())
	errFrame := lastError(frames)
	require.NotNil(t, errFrame)
	require.Equal(t, types.CodeNotAuthenticated, errFrame.Code)
	require.Equal(t, StateUnauthenticated, s.State(), "no transition on rejected event")
	require.Empty(t, env.rooms.RoomsOf(s.Conn().ID()))
}

func TestLifecycle_ValidAuthActivates(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)

	token, err := env.gate.Mint("alice")
	require.NoError(t, err)
	env.send(t, s, &types.InboundEvent{Kind: types.EventAuth, Token: token})

	require.Equal(t, StateActive, s.State())
	require.Equal(t, "alice", s.Conn().Identity())

	frames := drain(s.Conn().Queue())
	require.Len(t, frames, 1)
	require.Equal(t, types.FrameSystem, frames[0].Type)
}

func TestLifecycle_InvalidTokenClosesConnection(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)

	env.send(t, s, &types.InboundEvent{Kind: types.EventAuth, Token: "garbage"})

	require.Equal(t, StateClosed, s.State())
	require.Equal(t, 0, env.registry.Count())

	errFrame := lastError(drain(s.Conn().Queue()))
	require.NotNil(t, errFrame)
	require.Equal(t, types.CodeAuthFailed, errFrame.Code)
}

func TestLifecycle_ExpiredTokenDistinguished(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)

	expiredGate := auth.NewGate("test-secret", "roomhub-test", -time.Minute)
	token, err := expiredGate.Mint("alice")
	require.NoError(t, err)
	env.send(t, s, &types.InboundEvent{Kind: types.EventAuth, Token: token})

	require.Equal(t, StateClosed, s.State())
	errFrame := lastError(drain(s.Conn().Queue()))
	require.NotNil(t, errFrame)
	require.Equal(t, types.CodeAuthExpired, errFrame.Code)
}

func TestLifecycle_DuplicateAuthRejectedConnectionStaysOpen(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)
	env.authenticate(t, s, "alice")

	token, err := env.gate.Mint("bob")
	require.NoError(t, err)
	env.send(t, s, &types.InboundEvent{Kind: types.EventAuth, Token: token})

	errFrame := lastError(drain(s.Conn().Queue()))
	require.NotNil(t, errFrame)
	require.Equal(t, types.CodeAlreadyIdentified, errFrame.Code)
	require.Equal(t, StateActive, s.State())
	require.Equal(t, "alice", s.Conn().Identity())
}

func TestLifecycle_MalformedFrame(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)
	env.authenticate(t, s, "alice")

	require.NoError(t, s.HandleFrame([]byte("not json")))

	errFrame := lastError(drain(s.Conn().Queue()))
	require.NotNil(t, errFrame)
	require.Equal(t, types.CodeBadEvent, errFrame.Code)
	require.Equal(t, StateActive, s.State())
}

func TestLifecycle_RoomChatEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	a := env.accept(t)
	b := env.accept(t)
	env.authenticate(t, a, "alice")
	env.authenticate(t, b, "bob")

	env.send(t, a, &types.InboundEvent{Kind: types.EventJoin, Room: "lobby"})
	env.send(t, b, &types.InboundEvent{Kind: types.EventJoin, Room: "lobby"})
	drain(a.Conn().Queue())
	drain(b.Conn().Queue())

	env.send(t, a, &types.InboundEvent{Kind: types.EventMessage, Room: "lobby", Text: "hi"})

	got := drain(b.Conn().Queue())
	require.Len(t, got, 1)
	require.Equal(t, types.FrameRoomMessage, got[0].Type)
	require.Equal(t, "alice", got[0].From)
	require.Equal(t, "lobby", got[0].Room)
	require.Equal(t, "hi", got[0].Text)

	require.Empty(t, drain(a.Conn().Queue()), "sender excluded from room chat")
}

func TestLifecycle_JoinAnnouncesPresence(t *testing.T) {
	env := newTestEnv(t)
	a := env.accept(t)
	env.authenticate(t, a, "alice")

	env.send(t, a, &types.InboundEvent{Kind: types.EventJoin, Room: "lobby"})

	frames := drain(a.Conn().Queue())
	require.Len(t, frames, 1)
	require.Equal(t, types.FramePresence, frames[0].Type)
	require.Equal(t, "lobby", frames[0].Room)
	require.Equal(t, 1, *frames[0].Count)
}

func TestLifecycle_BroadcastWithoutRoom(t *testing.T) {
	env := newTestEnv(t)
	a := env.accept(t)
	b := env.accept(t)
	env.authenticate(t, a, "alice")
	env.authenticate(t, b, "bob")

	env.send(t, a, &types.InboundEvent{Kind: types.EventMessage, Text: "hello everyone"})

	got := drain(b.Conn().Queue())
	require.Len(t, got, 1)
	require.Equal(t, types.FrameMessage, got[0].Type)
	require.Empty(t, drain(a.Conn().Queue()), "sender excluded from broadcast")
}

func TestLifecycle_PrivateMessageMultiTab(t *testing.T) {
	env := newTestEnv(t)
	sender := env.accept(t)
	tab1 := env.accept(t)
	tab2 := env.accept(t)
	env.authenticate(t, sender, "bob")
	env.authenticate(t, tab1, "alice")
	env.authenticate(t, tab2, "alice")

	env.send(t, sender, &types.InboundEvent{Kind: types.EventPrivate, To: "alice", Text: "psst"})

	for _, tab := range []*Lifecycle{tab1, tab2} {
		got := drain(tab.Conn().Queue())
		require.Len(t, got, 1)
		require.Equal(t, types.FramePrivateMessage, got[0].Type)
		require.Equal(t, "bob", got[0].From)
		require.Equal(t, "psst", got[0].Text)
	}
}

func TestLifecycle_PrivateToOfflineIdentityIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)
	env.authenticate(t, s, "alice")

	env.send(t, s, &types.InboundEvent{Kind: types.EventPrivate, To: "nobody", Text: "hello?"})

	require.Empty(t, drain(s.Conn().Queue()))
	require.Equal(t, StateActive, s.State())
}

func TestLifecycle_TypingRelay(t *testing.T) {
	env := newTestEnv(t)
	a := env.accept(t)
	b := env.accept(t)
	env.authenticate(t, a, "alice")
	env.authenticate(t, b, "bob")
	env.send(t, a, &types.InboundEvent{Kind: types.EventJoin, Room: "lobby"})
	env.send(t, b, &types.InboundEvent{Kind: types.EventJoin, Room: "lobby"})
	drain(a.Conn().Queue())
	drain(b.Conn().Queue())

	env.send(t, a, &types.InboundEvent{Kind: types.EventTyping, Room: "lobby", Typing: true})

	got := drain(b.Conn().Queue())
	require.Len(t, got, 1)
	require.Equal(t, types.FrameTyping, got[0].Type)
	require.Equal(t, "alice", got[0].From)
	require.True(t, *got[0].Typing)

	require.Empty(t, drain(a.Conn().Queue()), "typist does not hear their own indicator")
}

func TestLifecycle_RateLimitSequence(t *testing.T) {
	env := newTestEnv(t)
	a := env.accept(t)
	b := env.accept(t)
	env.authenticate(t, a, "alice")
	env.authenticate(t, b, "bob")

	for range 3 {
		env.send(t, a, &types.InboundEvent{Kind: types.EventMessage, Text: "spam"})
	}
	env.send(t, a, &types.InboundEvent{Kind: types.EventMessage, Text: "one too many"})

	errFrame := lastError(drain(a.Conn().Queue()))
	require.NotNil(t, errFrame, "4th send inside the window must be rejected")
	require.Equal(t, types.CodeRateLimited, errFrame.Code)
	require.NotEmpty(t, errFrame.Text, "rejection carries a retry hint")
	require.Equal(t, StateActive, a.State(), "rate limiting throttles, it does not ban")

	require.Len(t, drain(b.Conn().Queue()), 3, "only admitted messages were delivered")

	// Past the window, budget is restored.
	env.clock = env.clock.Add(1100 * time.Millisecond)
	env.send(t, a, &types.InboundEvent{Kind: types.EventMessage, Text: "after the window"})
	require.Nil(t, lastError(drain(a.Conn().Queue())))
	require.Len(t, drain(b.Conn().Queue()), 1)
}

func TestLifecycle_DisconnectCleanup(t *testing.T) {
	env := newTestEnv(t)
	leaver := env.accept(t)
	stayer := env.accept(t)
	env.authenticate(t, leaver, "alice")
	env.authenticate(t, stayer, "bob")

	env.send(t, leaver, &types.InboundEvent{Kind: types.EventJoin, Room: "a"})
	env.send(t, leaver, &types.InboundEvent{Kind: types.EventJoin, Room: "b"})
	env.send(t, stayer, &types.InboundEvent{Kind: types.EventJoin, Room: "a"})
	drain(leaver.Conn().Queue())
	drain(stayer.Conn().Queue())

	leaver.Close()

	require.Equal(t, StateClosed, leaver.State())
	require.Equal(t, 1, env.registry.Count())
	require.Empty(t, env.rooms.RoomsOf(leaver.Conn().ID()))
	require.Equal(t, 1, env.rooms.MemberCount("a"))
	require.Equal(t, 1, env.rooms.RoomCount(), "room b lost its last member and is gone")

	// The remaining member saw the updated count for room a.
	frames := drain(stayer.Conn().Queue())
	require.Len(t, frames, 1)
	require.Equal(t, types.FramePresence, frames[0].Type)
	require.Equal(t, 1, *frames[0].Count)

	// Nothing reaches the departed connection afterwards.
	env.send(t, stayer, &types.InboundEvent{Kind: types.EventMessage, Room: "a", Text: "gone?"})
	require.Equal(t, 0, leaver.Conn().Queue().Len())
}

func TestLifecycle_CloseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)
	env.authenticate(t, s, "alice")

	s.Close()
	s.Close()

	require.Equal(t, StateClosed, s.State())
	require.ErrorIs(t, s.HandleFrame([]byte(`{"type":"message","text":"late"}`)), ErrSessionClosed)
}

func TestLifecycle_LeaveNeverJoinedRoomIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	s := env.accept(t)
	env.authenticate(t, s, "alice")

	env.send(t, s, &types.InboundEvent{Kind: types.EventLeave, Room: "never-joined"})

	require.Nil(t, lastError(drain(s.Conn().Queue())), "explicit leave of an unjoined room is not an error")
	require.Equal(t, StateActive, s.State())
}

func TestLifecycle_AuthTimeoutForceCloses(t *testing.T) {
	reg := registry.NewRegistry(8, 16)
	rooms := room.NewManager()
	dispatcher := dispatch.NewDispatcher(reg, rooms)
	coord := NewCoordinator(reg, rooms, ratelimit.NewLimiter(3, time.Second),
		auth.NewGate("s", "i", time.Hour), dispatcher,
		presence.NewTracker(rooms, dispatcher), 20*time.Millisecond, time.Second)

	s, err := coord.Accept()
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return s.State() == StateClosed
	}, time.Second, 5*time.Millisecond, "unauthenticated session must be force-closed")
	require.Equal(t, 0, reg.Count())
}

func TestLifecycle_AuthTimerStoppedOnAuth(t *testing.T) {
	reg := registry.NewRegistry(8, 16)
	rooms := room.NewManager()
	gate := auth.NewGate("test-secret", "roomhub-test", time.Hour)
	dispatcher := dispatch.NewDispatcher(reg, rooms)
	coord := NewCoordinator(reg, rooms, ratelimit.NewLimiter(3, time.Second),
		gate, dispatcher, presence.NewTracker(rooms, dispatcher), 30*time.Millisecond, time.Second)

	s, err := coord.Accept()
	require.NoError(t, err)

	token, err := gate.Mint("alice")
	require.NoError(t, err)
	raw, err := types.EncodeEvent(&types.InboundEvent{Kind: types.EventAuth, Token: token})
	require.NoError(t, err)
	require.NoError(t, s.HandleFrame(raw))

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateActive, s.State(), "authenticated session must survive the auth deadline")
}
