// Package registry hosts the singleton actor that owns the room table and
// the connected-session table. It routes connections to rooms and hands out
// fresh room ids; per-game state never lives here.
package registry

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roomchess/roomchess/internal/room"
	"github.com/roomchess/roomchess/pkg/wire"
)

// Session is a connection as the registry sees it: an egress plus a callback
// telling the connection which room it now belongs to.
type Session interface {
	room.Outbound
	RoomJoined(rm *room.Room)
}

const roomIDLen = 12

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

type connectMsg struct {
	userID uuid.UUID
	sess   Session
	reply  chan error
}

type disconnectMsg struct {
	userID uuid.UUID
	sess   Session
}

type createMsg struct {
	userID uuid.UUID
	sess   Session
	reply  chan createReply
}

type createReply struct {
	roomID string
	err    error
}

type joinMsg struct {
	userID uuid.UUID
	roomID string
	sess   Session
}

type listMsg struct {
	max  int
	sess Session
}

type removeMsg struct {
	roomID string
}

type sessionOfMsg struct {
	userID uuid.UUID
	reply  chan Session
}

type Registry struct {
	rooms    map[string]*room.Room
	order    []string // insertion order, newest last
	sessions map[uuid.UUID]Session

	board room.BoardSink
	log   *zap.Logger

	inbox chan any
	done  chan struct{}
	once  sync.Once
}

// New starts the registry actor.
func New(board room.BoardSink, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		rooms:    make(map[string]*room.Room),
		sessions: make(map[uuid.UUID]Session),
		board:    board,
		log:      log,
		inbox:    make(chan any, 64),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

// Stop terminates the actor. Pending messages are discarded.
func (r *Registry) Stop() {
	r.once.Do(func() { close(r.done) })
}

// Connect registers a live session for userID, replacing any previous one.
func (r *Registry) Connect(ctx context.Context, userID uuid.UUID, s Session) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, connectMsg{userID: userID, sess: s, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect drops the session entry for userID, but only if s is still the
// registered handle. A newer connection for the same identity is untouched.
func (r *Registry) Disconnect(userID uuid.UUID, s Session) {
	_ = r.send(context.Background(), disconnectMsg{userID: userID, sess: s})
}

// Create allocates a room with userID as its creator and returns the room id.
// The creator is not joined; it connects again on the play endpoint.
func (r *Registry) Create(ctx context.Context, userID uuid.UUID, s Session) (string, error) {
	reply := make(chan createReply, 1)
	if err := r.send(ctx, createMsg{userID: userID, sess: s, reply: reply}); err != nil {
		return "", err
	}
	select {
	case rep := <-reply:
		return rep.roomID, rep.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Join routes the session into roomID. An unknown id produces an err event on
// the session instead of a reply.
func (r *Registry) Join(userID uuid.UUID, roomID string, s Session) {
	_ = r.send(context.Background(), joinMsg{userID: userID, roomID: roomID, sess: s})
}

// List delivers up to max room ids to the session, newest first.
func (r *Registry) List(max int, s Session) {
	_ = r.send(context.Background(), listMsg{max: max, sess: s})
}

func (r *Registry) send(ctx context.Context, m any) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrStopped is returned for requests arriving after Stop.
var ErrStopped = staticErr("registry stopped")

func (r *Registry) run() {
	for {
		var m any
		select {
		case <-r.done:
			return
		case m = <-r.inbox:
		}
		switch m := m.(type) {
		case connectMsg:
			r.sessions[m.userID] = m.sess
			m.reply <- nil
		case disconnectMsg:
			if r.sessions[m.userID] == m.sess {
				delete(r.sessions, m.userID)
			}
		case createMsg:
			m.reply <- r.handleCreate(m)
		case joinMsg:
			r.handleJoin(m)
		case listMsg:
			m.sess.Deliver(wire.List(r.listIDs(m.max)))
		case removeMsg:
			r.dropRoom(m.roomID)
		case sessionOfMsg:
			m.reply <- r.sessions[m.userID]
		}
	}
}

func (r *Registry) handleCreate(m createMsg) createReply {
	id, err := r.freshID()
	if err != nil {
		return createReply{err: err}
	}
	rm := room.New(id, m.userID, r.board, r.roomClosed, r.log)
	r.rooms[id] = rm
	r.order = append(r.order, id)
	r.log.Info("room_created",
		zap.String("room_id", id),
		zap.String("creator_id", m.userID.String()),
	)
	return createReply{roomID: id}
}

func (r *Registry) handleJoin(m joinMsg) {
	rm, ok := r.rooms[m.roomID]
	if !ok {
		m.sess.Deliver(wire.Err(wire.CodeInvalidInput))
		return
	}
	rm.Join(m.userID, m.sess)
	m.sess.RoomJoined(rm)
}

func (r *Registry) listIDs(max int) []string {
	if max <= 0 || max > len(r.order) {
		max = len(r.order)
	}
	ids := make([]string, 0, max)
	for i := len(r.order) - 1; i >= 0 && len(ids) < max; i-- {
		ids = append(ids, r.order[i])
	}
	return ids
}

// sessionOf answers which handle is registered for userID, nil when absent.
func (r *Registry) sessionOf(ctx context.Context, userID uuid.UUID) Session {
	reply := make(chan Session, 1)
	if err := r.send(ctx, sessionOfMsg{userID: userID, reply: reply}); err != nil {
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return nil
	}
}

// roomClosed runs on the room's goroutine; it only enqueues.
func (r *Registry) roomClosed(roomID string) {
	select {
	case r.inbox <- removeMsg{roomID: roomID}:
	case <-r.done:
	}
}

func (r *Registry) dropRoom(roomID string) {
	if _, ok := r.rooms[roomID]; !ok {
		return
	}
	delete(r.rooms, roomID)
	for i, id := range r.order {
		if id == roomID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.log.Info("room_removed", zap.String("room_id", roomID))
}

// freshID draws 12 alphanumeric characters, retrying the rare collision with
// a live room.
func (r *Registry) freshID() (string, error) {
	for {
		id, err := generateID(roomIDLen)
		if err != nil {
			return "", err
		}
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
}

func generateID(n int) (string, error) {
	max := big.NewInt(int64(len(idAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = idAlphabet[v.Int64()]
	}
	return string(buf), nil
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
