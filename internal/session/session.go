// Package session runs the per-connection actor. It pumps websocket frames,
// enforces the heartbeat, and bridges one client to the registry and, once
// joined, to its room. All writes to the socket happen on the actor loop.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/roomchess/roomchess/internal/registry"
	"github.com/roomchess/roomchess/internal/room"
	"github.com/roomchess/roomchess/pkg/wire"
)

const (
	heartbeatInterval = 5 * time.Second
	clientTimeout     = 10 * time.Second
	pingTimeout       = 3 * time.Second
	writeTimeout      = 5 * time.Second

	// default page size for lobby listings
	lobbyListSize = 12
)

// Intent is what the client connected for. An empty RoomID means the lobby;
// otherwise the session heads straight into that room.
type Intent struct {
	RoomID string
}

func Lobby() Intent             { return Intent{} }
func Play(roomID string) Intent { return Intent{RoomID: roomID} }

func (i Intent) play() bool { return i.RoomID != "" }

type Session struct {
	id     uuid.UUID
	intent Intent

	reg  *registry.Registry
	conn *websocket.Conn
	log  *zap.Logger

	// rm is owned by the Run loop; other goroutines go through joined.
	rm *room.Room

	outbox chan wire.ServerMessage
	joined chan *room.Room
	frames chan []byte

	lastSeen atomic.Int64
}

func New(id uuid.UUID, intent Intent, reg *registry.Registry, conn *websocket.Conn, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		id:     id,
		intent: intent,
		reg:    reg,
		conn:   conn,
		log:    log.With(zap.String("session_id", id.String())),
		outbox: make(chan wire.ServerMessage, 64),
		joined: make(chan *room.Room, 1),
		frames: make(chan []byte, 16),
	}
}

// Deliver queues one outbound event. It never blocks: a backlogged socket
// drops the event rather than stalling the actor that produced it.
func (s *Session) Deliver(msg wire.ServerMessage) {
	select {
	case s.outbox <- msg:
	default:
		s.log.Warn("session_outbox_full")
	}
}

// RoomJoined hands the session its room handle. Called from the registry
// actor, consumed by the Run loop.
func (s *Session) RoomJoined(rm *room.Room) {
	select {
	case s.joined <- rm:
	default:
	}
}

// Run drives the session until the client disconnects, the heartbeat lapses,
// or ctx is cancelled. It always deregisters on the way out.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.reg.Connect(ctx, s.id, s); err != nil {
		return err
	}
	defer s.teardown()

	if s.intent.play() {
		s.reg.Join(s.id, s.intent.RoomID, s)
	} else {
		s.reg.List(lobbyListSize, s)
	}

	s.touch()
	go s.readPump(ctx)
	go s.pingLoop(ctx, cancel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case rm := <-s.joined:
			s.rm = rm
		case data, ok := <-s.frames:
			if !ok {
				return nil
			}
			s.touch()
			if err := s.handleFrame(ctx, data); err != nil {
				return err
			}
		case msg := <-s.outbox:
			if err := s.write(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (s *Session) teardown() {
	// a join may have landed after the loop stopped selecting
	select {
	case rm := <-s.joined:
		s.rm = rm
	default:
	}
	if s.rm != nil {
		s.rm.Leave(s.id)
	}
	s.reg.Disconnect(s.id, s)
	_ = s.conn.Close(websocket.StatusNormalClosure, "session closed")
}

func (s *Session) readPump(ctx context.Context) {
	defer close(s.frames)
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			s.log.Debug("non_text_frame_dropped")
			continue
		}
		select {
		case s.frames <- data:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop pings the client every heartbeatInterval and cancels the session
// when nothing has been heard within clientTimeout. An answered ping counts as
// hearing from the client.
func (s *Session) pingLoop(ctx context.Context, cancel context.CancelFunc) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if time.Since(s.lastSeenAt()) > clientTimeout {
				s.log.Info("client_timeout")
				cancel()
				return
			}
			pingCtx, pcancel := context.WithTimeout(ctx, pingTimeout)
			err := s.conn.Ping(pingCtx)
			pcancel()
			if err == nil {
				s.touch()
			}
		}
	}
}

func (s *Session) handleFrame(ctx context.Context, data []byte) error {
	msg, err := wire.DecodeClient(data)
	if err != nil {
		return s.write(ctx, wire.Err(wire.CodeInvalidInput))
	}

	if s.intent.play() {
		switch msg.Type {
		case wire.KindMove:
			if s.rm != nil {
				s.rm.Move(s.id, msg.From, msg.To)
			}
		case wire.KindResign:
			if s.rm != nil {
				s.rm.Resign(s.id)
			}
		default:
			return s.write(ctx, wire.Err(wire.CodeOutOfContext))
		}
		return nil
	}

	switch msg.Type {
	case wire.KindCreate:
		roomID, err := s.reg.Create(ctx, s.id, s)
		if err != nil {
			s.log.Error("room_create_failed", zap.Error(err))
			return s.write(ctx, wire.Err(wire.CodeInternalError))
		}
		return s.write(ctx, wire.Create(roomID))
	case wire.KindList:
		n := msg.Count
		if n == 0 {
			n = lobbyListSize
		}
		s.reg.List(n, s)
	default:
		return s.write(ctx, wire.Err(wire.CodeOutOfContext))
	}
	return nil
}

func (s *Session) write(ctx context.Context, msg wire.ServerMessage) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(wctx, s.conn, msg); err != nil {
		s.log.Warn("session_write_failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) lastSeenAt() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}
