// Package room hosts the per-game actor. A room owns one game's state
// machine, the two player seats, the spectator set, and every broadcast for
// that game. All mutation happens on the actor goroutine; other components
// only enqueue messages.
package room

import (
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomchess/roomchess/internal/rules"
	"github.com/roomchess/roomchess/pkg/wire"
)

// Outbound is one connection's egress. Deliver must never block; a slow or
// closed connection silently misses the event.
type Outbound interface {
	Deliver(msg wire.ServerMessage)
}

// BoardSink receives the fire-and-forget write-through of each new position.
type BoardSink interface {
	SaveBoard(roomID, fen string)
}

type joinMsg struct {
	userID uuid.UUID
	out    Outbound
}

type leaveMsg struct {
	userID uuid.UUID
}

type moveMsg struct {
	userID   uuid.UUID
	from, to string
}

type resignMsg struct {
	userID uuid.UUID
}

// player is a seat: the identity persists for the room's lifetime, the
// outbound handle is nil while its owner is disconnected.
type player struct {
	id  uuid.UUID
	out Outbound
}

type Room struct {
	id      string
	creator player

	started    bool
	white      player
	black      player
	spectators map[uuid.UUID]Outbound
	game       *rules.Game

	board   BoardSink
	onClose func(roomID string)
	log     *zap.Logger

	inbox chan any
	done  chan struct{}
	once  sync.Once
}

// New starts a room actor in the waiting state. onClose is invoked exactly
// once, after the terminal broadcast, so the registry can drop its entry.
func New(id string, creator uuid.UUID, board BoardSink, onClose func(roomID string), log *zap.Logger) *Room {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Room{
		id:         id,
		creator:    player{id: creator},
		spectators: make(map[uuid.UUID]Outbound),
		board:      board,
		onClose:    onClose,
		log:        log,
		inbox:      make(chan any, 32),
		done:       make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Room) ID() string { return r.id }

// Join attaches a connection: creator reattach while waiting, game start on
// the second identity, seat reattach for a known player, spectator insert
// for anyone else.
func (r *Room) Join(userID uuid.UUID, out Outbound) {
	r.send(joinMsg{userID: userID, out: out})
}

// Leave detaches a connection. A player's seat is retained so the same
// identity can reattach later; a spectator entry is removed outright.
func (r *Room) Leave(userID uuid.UUID) {
	r.send(leaveMsg{userID: userID})
}

// Move submits a candidate move for validation and broadcast.
func (r *Room) Move(userID uuid.UUID, from, to string) {
	r.send(moveMsg{userID: userID, from: from, to: to})
}

// Resign ends the game in the opponent's favor.
func (r *Room) Resign(userID uuid.UUID) {
	r.send(resignMsg{userID: userID})
}

// send enqueues unless the actor already terminated; messages to a finished
// room are dropped on the floor.
func (r *Room) send(m any) {
	select {
	case <-r.done:
	case r.inbox <- m:
	}
}

func (r *Room) run() {
	for {
		var m any
		select {
		case <-r.done:
			return
		case m = <-r.inbox:
		}
		switch m := m.(type) {
		case joinMsg:
			r.handleJoin(m)
		case leaveMsg:
			r.handleLeave(m)
		case moveMsg:
			r.handleMove(m)
		case resignMsg:
			r.handleResign(m)
		}
	}
}

func (r *Room) handleJoin(m joinMsg) {
	if !r.started {
		if m.userID == r.creator.id {
			r.creator.out = m.out
			return
		}
		r.start(m)
		return
	}

	switch m.userID {
	case r.white.id:
		r.white.out = m.out
		r.deliver(r.white.out, r.reconnectEvent(wire.White))
	case r.black.id:
		r.black.out = m.out
		r.deliver(r.black.out, r.reconnectEvent(wire.Black))
	default:
		// keyed by identity: a rejoining spectator just swaps its handle
		r.spectators[m.userID] = m.out
	}
}

// start assigns colors by coin flip, creates the position, and notifies both
// players. White moves first and therefore gets the opening destinations.
func (r *Room) start(m joinMsg) {
	joiner := player{id: m.userID, out: m.out}
	if coinFlip() {
		r.white, r.black = joiner, r.creator
	} else {
		r.white, r.black = r.creator, joiner
	}
	r.game = rules.NewGame()
	r.started = true

	r.deliver(r.black.out, wire.Start(wire.Black, nil))
	r.deliver(r.white.out, wire.Start(wire.White, r.game.LegalDestinations()))
	r.board.SaveBoard(r.id, r.game.FEN())

	r.log.Info("room_started",
		zap.String("room_id", r.id),
		zap.String("white_id", r.white.id.String()),
		zap.String("black_id", r.black.id.String()),
	)
}

func (r *Room) reconnectEvent(color wire.Color) wire.ReconnectEvent {
	turn := r.game.SideToMove()
	var dests wire.Dests
	if turn == color {
		dests = r.game.LegalDestinations()
	}
	return wire.Reconnect(color, turn, r.game.FEN(), dests, r.game.InCheck())
}

func (r *Room) handleLeave(m leaveMsg) {
	if !r.started {
		if m.userID == r.creator.id {
			r.creator.out = nil
		}
		return
	}
	switch m.userID {
	case r.white.id:
		r.white.out = nil
	case r.black.id:
		r.black.out = nil
	default:
		delete(r.spectators, m.userID)
	}
}

func (r *Room) handleMove(m moveMsg) {
	if !r.started {
		return
	}

	mover, seated := r.seatOf(m.userID)
	if !seated {
		if out, ok := r.spectators[m.userID]; ok {
			r.deliver(out, wire.Err(wire.CodeOutOfContext))
		}
		return
	}
	moverOut := r.seatOut(mover)
	if mover != r.game.SideToMove() {
		r.deliver(moverOut, wire.Err(wire.CodeIllegalMove))
		return
	}

	if err := r.game.Apply(m.from, m.to); err != nil {
		r.deliver(moverOut, wire.Err(wire.CodeIllegalMove))
		return
	}

	// the event's side names whoever moves next, matching the destinations
	r.toPlayers(wire.Move(mover.Opponent(), r.game.FEN(), r.game.LegalDestinations(), r.game.InCheck()))
	r.board.SaveBoard(r.id, r.game.FEN())

	if result, over := r.game.Result(); over {
		r.finish(result)
	}
}

func (r *Room) handleResign(m resignMsg) {
	if !r.started {
		return
	}
	color, seated := r.seatOf(m.userID)
	if !seated {
		if out, ok := r.spectators[m.userID]; ok {
			r.deliver(out, wire.Err(wire.CodeOutOfContext))
		}
		return
	}
	r.game.Resign(color)
	if result, over := r.game.Result(); over {
		r.finish(result)
	}
}

// finish broadcasts the terminal result to every participant, hands the id
// back to the registry, and stops the actor. No message is processed after
// this point.
func (r *Room) finish(result wire.GameResult) {
	end := wire.GameEnd(result)
	r.toPlayers(end)
	for _, out := range r.spectators {
		r.deliver(out, end)
	}
	r.log.Info("room_finished", zap.String("room_id", r.id), zap.String("result", string(result)))
	r.once.Do(func() { close(r.done) })
	if r.onClose != nil {
		r.onClose(r.id)
	}
}

func (r *Room) seatOf(userID uuid.UUID) (wire.Color, bool) {
	switch userID {
	case r.white.id:
		return wire.White, true
	case r.black.id:
		return wire.Black, true
	default:
		return "", false
	}
}

func (r *Room) seatOut(color wire.Color) Outbound {
	if color == wire.White {
		return r.white.out
	}
	return r.black.out
}

// toPlayers fans out to both seats; a detached seat is skipped, never queued.
func (r *Room) toPlayers(msg wire.ServerMessage) {
	r.deliver(r.white.out, msg)
	r.deliver(r.black.out, msg)
}

func (r *Room) deliver(out Outbound, msg wire.ServerMessage) {
	if out != nil {
		out.Deliver(msg)
	}
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	return err == nil && n.Int64() == 0
}
