// Package wire defines the JSON messages exchanged with clients over a
// websocket. Each frame carries exactly one message; the variant tag lives in
// the snake_case "type" field on both directions.
package wire

import (
	"encoding/json"
	"strings"
)

// Color identifies a side on the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Opponent returns the other side.
func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// GameResult is the terminal outcome reported in a game_end event.
type GameResult string

const (
	WhiteCheckmates GameResult = "white_checkmates"
	BlackCheckmates GameResult = "black_checkmates"
	WhiteResigns    GameResult = "white_resigns"
	BlackResigns    GameResult = "black_resigns"
	Stalemate       GameResult = "stalemate"
	DrawAccepted    GameResult = "draw_accepted"
)

// ErrorCode is the taxonomy for err replies. Every code is terminal to the
// offending message only; the connection stays open.
type ErrorCode string

const (
	CodeInternalError ErrorCode = "internal_error"
	CodeInvalidInput  ErrorCode = "invalid_input"
	CodeIllegalMove   ErrorCode = "illegal_move"
	CodeOutOfContext  ErrorCode = "out_of_context"
)

// Dests maps a source square to the destination squares a legal move may
// reach from it, in coordinate notation ("e2" -> ["e3","e4"]).
type Dests map[string][]string

// ClientKind enumerates inbound message variants.
type ClientKind string

const (
	KindMove   ClientKind = "move"
	KindCreate ClientKind = "create"
	KindList   ClientKind = "list"
	KindResign ClientKind = "resign"
)

// ClientMessage is one inbound frame. Fields beyond Type are populated per
// variant: From/To for move, Count for list.
type ClientMessage struct {
	Type  ClientKind `json:"type"`
	From  string     `json:"from,omitempty"`
	To    string     `json:"to,omitempty"`
	Count int        `json:"count,omitempty"`
}

// ErrMalformed is returned by DecodeClient when a frame does not parse
// against the schema.
var ErrMalformed = staticErr("malformed client message")

// DecodeClient parses and validates one inbound text frame.
func DecodeClient(data []byte) (*ClientMessage, error) {
	var m ClientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ErrMalformed
	}
	switch m.Type {
	case KindMove:
		if !ValidSquare(m.From) || !ValidSquare(m.To) {
			return nil, ErrMalformed
		}
	case KindCreate, KindResign:
	case KindList:
		if m.Count < 0 {
			return nil, ErrMalformed
		}
	default:
		return nil, ErrMalformed
	}
	return &m, nil
}

// ValidSquare reports whether s names a board square in coordinate notation.
func ValidSquare(s string) bool {
	if len(s) != 2 {
		return false
	}
	s = strings.ToLower(s)
	return s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// ServerMessage is implemented by every outbound event.
type ServerMessage interface{ serverMessage() }

// MoveEvent reports an accepted move to the players. Side names the side to
// move in the new position; Dests are that side's legal destinations.
type MoveEvent struct {
	Type  string `json:"type"`
	Side  Color  `json:"side"`
	FEN   string `json:"fen"`
	Dests Dests  `json:"legal_destinations,omitempty"`
	Check bool   `json:"check"`
}

// GameEndEvent reports the terminal result; the room stops after sending it.
type GameEndEvent struct {
	Type   string     `json:"type"`
	Result GameResult `json:"result"`
}

// ErrEvent is a unicast error reply to the offending connection.
type ErrEvent struct {
	Type string    `json:"type"`
	What ErrorCode `json:"what"`
}

// CreateEvent carries the freshly generated room id back to its creator.
type CreateEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

// StartEvent tells a player the game began and which color they hold. White
// additionally receives the legal destinations for the opening position.
type StartEvent struct {
	Type  string `json:"type"`
	Color Color  `json:"color"`
	Dests Dests  `json:"legal_destinations,omitempty"`
}

// ReconnectEvent restores a returning player's view of a live game.
type ReconnectEvent struct {
	Type  string `json:"type"`
	Color Color  `json:"color"`
	Turn  Color  `json:"turn"`
	FEN   string `json:"fen"`
	Dests Dests  `json:"legal_destinations,omitempty"`
	Check bool   `json:"check"`
}

// ListEvent carries room ids, most recently created first.
type ListEvent struct {
	Type    string   `json:"type"`
	RoomIDs []string `json:"room_ids"`
}

func (MoveEvent) serverMessage()      {}
func (GameEndEvent) serverMessage()   {}
func (ErrEvent) serverMessage()       {}
func (CreateEvent) serverMessage()    {}
func (StartEvent) serverMessage()     {}
func (ReconnectEvent) serverMessage() {}
func (ListEvent) serverMessage()      {}

func Move(side Color, fen string, dests Dests, check bool) MoveEvent {
	return MoveEvent{Type: "move", Side: side, FEN: fen, Dests: dests, Check: check}
}

func GameEnd(result GameResult) GameEndEvent {
	return GameEndEvent{Type: "game_end", Result: result}
}

func Err(what ErrorCode) ErrEvent {
	return ErrEvent{Type: "err", What: what}
}

func Create(roomID string) CreateEvent {
	return CreateEvent{Type: "create", RoomID: roomID}
}

func Start(color Color, dests Dests) StartEvent {
	return StartEvent{Type: "start", Color: color, Dests: dests}
}

func Reconnect(color, turn Color, fen string, dests Dests, check bool) ReconnectEvent {
	return ReconnectEvent{Type: "reconnect", Color: color, Turn: turn, FEN: fen, Dests: dests, Check: check}
}

func List(roomIDs []string) ListEvent {
	return ListEvent{Type: "list", RoomIDs: roomIDs}
}

type staticErr string

func (e staticErr) Error() string { return string(e) }
