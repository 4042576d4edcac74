// Package rules wraps the chess library behind the narrow surface the room
// actor consumes: apply a from/to move, enumerate legal destinations, and
// translate terminal outcomes.
package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/roomchess/roomchess/pkg/wire"
)

// ErrRejected covers both malformed square pairs and moves the rules
// library refuses for the current position.
var ErrRejected = staticErr("move rejected")

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Game is the authoritative position for one room. It is not safe for
// concurrent use; a room actor owns exactly one and serializes access.
type Game struct {
	game      *nchess.Game
	lastCheck bool
}

func NewGame() *Game {
	return &Game{game: nchess.NewGame()}
}

// Apply validates and plays the move from->to. On success the position
// advances and the side to move flips; on failure nothing changes.
func (g *Game) Apply(from, to string) error {
	if !wire.ValidSquare(from) || !wire.ValidSquare(to) {
		return ErrRejected
	}
	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to))
	pos := g.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err == nil {
		err = g.game.Move(mv, nil)
	}
	if err != nil {
		// A pawn reaching the last rank needs a promotion piece; queen by
		// default since the wire schema carries squares only. The bare pair
		// decodes fine, so the retry has to cover the Move rejection too.
		mv, err = nchess.UCINotation{}.Decode(pos, uci+"q")
		if err != nil {
			return ErrRejected
		}
		if err := g.game.Move(mv, nil); err != nil {
			return ErrRejected
		}
	}
	g.lastCheck = mv.HasTag(nchess.Check)
	return nil
}

// Resign ends the game in favor of the given color's opponent.
func (g *Game) Resign(c wire.Color) {
	if c == wire.White {
		g.game.Resign(nchess.White)
		return
	}
	g.game.Resign(nchess.Black)
}

// SideToMove reports whose turn it is.
func (g *Game) SideToMove() wire.Color {
	if g.game.Position().Turn() == nchess.White {
		return wire.White
	}
	return wire.Black
}

// FEN returns the serialized board encoding of the current position.
func (g *Game) FEN() string {
	return g.game.FEN()
}

// InCheck reports whether the side to move is currently in check.
func (g *Game) InCheck() bool {
	return g.lastCheck
}

// LegalDestinations enumerates, per source square, the squares the side to
// move may legally reach.
func (g *Game) LegalDestinations() wire.Dests {
	dests := wire.Dests{}
	for _, mv := range g.game.ValidMoves() {
		from := mv.S1().String()
		to := mv.S2().String()
		// promotion variants share one from/to pair
		if prev := dests[from]; len(prev) > 0 && prev[len(prev)-1] == to {
			continue
		}
		dests[from] = append(dests[from], to)
	}
	return dests
}

// Result reports the terminal outcome, if any.
func (g *Game) Result() (wire.GameResult, bool) {
	switch g.game.Outcome() {
	case nchess.WhiteWon:
		if g.game.Method() == nchess.Resignation {
			return wire.BlackResigns, true
		}
		return wire.WhiteCheckmates, true
	case nchess.BlackWon:
		if g.game.Method() == nchess.Resignation {
			return wire.WhiteResigns, true
		}
		return wire.BlackCheckmates, true
	case nchess.Draw:
		if g.game.Method() == nchess.Stalemate {
			return wire.Stalemate, true
		}
		return wire.DrawAccepted, true
	default:
		return "", false
	}
}
