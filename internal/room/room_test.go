package room

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roomchess/roomchess/pkg/wire"
)

type fakeOut struct {
	ch chan wire.ServerMessage
}

func newFakeOut() *fakeOut {
	return &fakeOut{ch: make(chan wire.ServerMessage, 16)}
}

func (f *fakeOut) Deliver(msg wire.ServerMessage) {
	select {
	case f.ch <- msg:
	default:
	}
}

func (f *fakeOut) next(t *testing.T) wire.ServerMessage {
	t.Helper()
	select {
	case msg := <-f.ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func (f *fakeOut) expectNone(t *testing.T) {
	t.Helper()
	select {
	case msg := <-f.ch:
		t.Fatalf("unexpected event %#v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeSink struct {
	mu    sync.Mutex
	saves []string
}

func (f *fakeSink) SaveBoard(roomID, fen string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, fen)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type seated struct {
	id    uuid.UUID
	out   *fakeOut
	color wire.Color
}

// startGame creates a room, joins two users, and returns the white and black
// seats resolved from their start events.
func startGame(t *testing.T, sink *fakeSink, onClose func(string)) (*Room, seated, seated) {
	t.Helper()
	creator := seated{id: uuid.New(), out: newFakeOut()}
	joiner := seated{id: uuid.New(), out: newFakeOut()}

	r := New("testroom", creator.id, sink, onClose, nil)
	r.Join(creator.id, creator.out)
	r.Join(joiner.id, joiner.out)

	for _, s := range []*seated{&creator, &joiner} {
		ev, ok := s.out.next(t).(wire.StartEvent)
		if !ok {
			t.Fatalf("expected start event")
		}
		s.color = ev.Color
		if ev.Color == wire.White && len(ev.Dests) == 0 {
			t.Fatalf("white start event missing destinations")
		}
		if ev.Color == wire.Black && ev.Dests != nil {
			t.Fatalf("black start event should not carry destinations")
		}
	}
	if creator.color == joiner.color {
		t.Fatalf("both seats got color %s", creator.color)
	}
	if creator.color == wire.White {
		return r, creator, joiner
	}
	return r, joiner, creator
}

func TestSecondJoinStartsGame(t *testing.T) {
	sink := &fakeSink{}
	startGame(t, sink, nil)
	if got := sink.count(); got != 1 {
		t.Fatalf("expected one board save at start, got %d", got)
	}
}

func TestMoveBroadcastToBothPlayers(t *testing.T) {
	sink := &fakeSink{}
	r, white, black := startGame(t, sink, nil)

	r.Move(white.id, "e2", "e4")
	for _, s := range []seated{white, black} {
		ev, ok := s.out.next(t).(wire.MoveEvent)
		if !ok {
			t.Fatalf("expected move event for %s", s.color)
		}
		if ev.Side != wire.Black {
			t.Fatalf("move event side = %s, want black to move next", ev.Side)
		}
		if ev.Check {
			t.Fatalf("e2e4 should not give check")
		}
		if len(ev.Dests) == 0 {
			t.Fatalf("move event missing destinations for the side to move")
		}
	}
}

func TestWrongTurnMoveRejected(t *testing.T) {
	r, white, black := startGame(t, &fakeSink{}, nil)

	r.Move(black.id, "e7", "e5")
	ev, ok := black.out.next(t).(wire.ErrEvent)
	if !ok || ev.What != wire.CodeIllegalMove {
		t.Fatalf("expected illegal_move for out-of-turn mover, got %#v", ev)
	}
	white.out.expectNone(t)
}

func TestIllegalMoveUnicastToMover(t *testing.T) {
	r, white, black := startGame(t, &fakeSink{}, nil)

	r.Move(white.id, "e2", "e5")
	ev, ok := white.out.next(t).(wire.ErrEvent)
	if !ok || ev.What != wire.CodeIllegalMove {
		t.Fatalf("expected illegal_move, got %#v", ev)
	}
	black.out.expectNone(t)
}

func TestSpectatorExcludedFromMovesButSeesGameEnd(t *testing.T) {
	r, white, _ := startGame(t, &fakeSink{}, nil)

	viewer := newFakeOut()
	r.Join(uuid.New(), viewer)

	r.Move(white.id, "e2", "e4")
	viewer.expectNone(t)

	r.Resign(white.id)
	ev, ok := viewer.next(t).(wire.GameEndEvent)
	if !ok || ev.Result != wire.WhiteResigns {
		t.Fatalf("expected white_resigns for spectator, got %#v", ev)
	}
}

func TestSpectatorMoveOutOfContext(t *testing.T) {
	r, white, _ := startGame(t, &fakeSink{}, nil)

	viewer := newFakeOut()
	viewerID := uuid.New()
	r.Join(viewerID, viewer)

	r.Move(viewerID, "e2", "e4")
	ev, ok := viewer.next(t).(wire.ErrEvent)
	if !ok || ev.What != wire.CodeOutOfContext {
		t.Fatalf("expected out_of_context, got %#v", ev)
	}
	white.out.expectNone(t)
}

func TestPlayerReconnectRestoresView(t *testing.T) {
	r, white, _ := startGame(t, &fakeSink{}, nil)

	r.Move(white.id, "e2", "e4")
	white.out.next(t)

	r.Leave(white.id)
	fresh := newFakeOut()
	r.Join(white.id, fresh)

	ev, ok := fresh.next(t).(wire.ReconnectEvent)
	if !ok {
		t.Fatalf("expected reconnect event")
	}
	if ev.Color != wire.White {
		t.Fatalf("reconnect color = %s, want white", ev.Color)
	}
	if ev.Turn != wire.Black {
		t.Fatalf("reconnect turn = %s, want black", ev.Turn)
	}
	if ev.FEN == "" {
		t.Fatalf("reconnect event missing fen")
	}
	if ev.Dests != nil {
		t.Fatalf("reconnect off turn should not carry destinations")
	}
}

func TestResignEndsGameAndClosesRoom(t *testing.T) {
	closed := make(chan string, 1)
	r, white, black := startGame(t, &fakeSink{}, func(id string) { closed <- id })

	r.Resign(black.id)
	for _, s := range []seated{white, black} {
		ev, ok := s.out.next(t).(wire.GameEndEvent)
		if !ok || ev.Result != wire.BlackResigns {
			t.Fatalf("expected black_resigns for %s, got %#v", s.color, ev)
		}
	}

	select {
	case id := <-closed:
		if id != "testroom" {
			t.Fatalf("onClose called with %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("room never reported close")
	}

	// messages after the terminal event are dropped
	r.Move(white.id, "e2", "e4")
	white.out.expectNone(t)
}

func TestCreatorReattachWhileWaiting(t *testing.T) {
	creatorID := uuid.New()
	r := New("waitroom", creatorID, &fakeSink{}, nil, nil)

	first := newFakeOut()
	r.Join(creatorID, first)
	r.Leave(creatorID)

	second := newFakeOut()
	r.Join(creatorID, second)
	second.expectNone(t)

	// the reattached creator still holds a seat when the game starts
	joiner := newFakeOut()
	r.Join(uuid.New(), joiner)
	if _, ok := second.next(t).(wire.StartEvent); !ok {
		t.Fatalf("reattached creator did not receive start")
	}
	first.expectNone(t)
}
