package rules

import (
	"strings"
	"testing"

	"github.com/roomchess/roomchess/pkg/wire"
)

func TestOpeningDestinations(t *testing.T) {
	g := NewGame()
	dests := g.LegalDestinations()
	if len(dests) != 10 {
		t.Fatalf("expected 10 source squares in the opening position, got %d", len(dests))
	}
	found := false
	for _, to := range dests["e2"] {
		if to == "e4" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected e2->e4 among opening destinations, got %v", dests["e2"])
	}
}

func TestApplyFlipsSideToMove(t *testing.T) {
	g := NewGame()
	if g.SideToMove() != wire.White {
		t.Fatalf("expected white to move first")
	}
	if err := g.Apply("e2", "e4"); err != nil {
		t.Fatalf("Apply e2e4: %v", err)
	}
	if g.SideToMove() != wire.Black {
		t.Fatalf("expected black to move after e4")
	}
}

func TestApplyRejectsWithoutStateChange(t *testing.T) {
	g := NewGame()
	before := g.FEN()
	cases := [][2]string{
		{"e2", "e5"}, // no such move
		{"e7", "e5"}, // not white's piece
		{"zz", "e4"}, // malformed square
		{"", ""},
	}
	for _, c := range cases {
		if err := g.Apply(c[0], c[1]); err == nil {
			t.Fatalf("expected rejection for %v", c)
		}
		if g.FEN() != before {
			t.Fatalf("position changed after rejected move %v", c)
		}
	}
}

func TestCheckFlag(t *testing.T) {
	g := NewGame()
	moves := [][2]string{{"e2", "e4"}, {"f7", "f5"}, {"d1", "h5"}}
	for _, m := range moves {
		if err := g.Apply(m[0], m[1]); err != nil {
			t.Fatalf("Apply %v: %v", m, err)
		}
	}
	if !g.InCheck() {
		t.Fatalf("expected black to be in check after Qh5+")
	}
	if _, over := g.Result(); over {
		t.Fatalf("game should not be over")
	}
}

func TestFoolsMate(t *testing.T) {
	g := NewGame()
	moves := [][2]string{{"f2", "f3"}, {"e7", "e5"}, {"g2", "g4"}, {"d8", "h4"}}
	for _, m := range moves {
		if err := g.Apply(m[0], m[1]); err != nil {
			t.Fatalf("Apply %v: %v", m, err)
		}
	}
	result, over := g.Result()
	if !over || result != wire.BlackCheckmates {
		t.Fatalf("expected black_checkmates, got %q (over=%v)", result, over)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	g := NewGame()
	moves := [][2]string{
		{"a2", "a4"}, {"h7", "h6"},
		{"a4", "a5"}, {"h6", "h5"},
		{"a5", "a6"}, {"h5", "h4"},
		{"a6", "b7"}, {"h4", "h3"},
	}
	for _, m := range moves {
		if err := g.Apply(m[0], m[1]); err != nil {
			t.Fatalf("Apply %v: %v", m, err)
		}
	}
	if err := g.Apply("b7", "a8"); err != nil {
		t.Fatalf("Apply b7a8 promotion: %v", err)
	}
	if fen := g.FEN(); !strings.HasPrefix(fen, "Qnbqkbnr") {
		t.Fatalf("expected a queen on a8, got %q", fen)
	}
	if g.SideToMove() != wire.Black {
		t.Fatalf("expected black to move after the promotion")
	}
	if _, over := g.Result(); over {
		t.Fatalf("game should not be over")
	}
}

func TestResign(t *testing.T) {
	g := NewGame()
	g.Resign(wire.White)
	result, over := g.Result()
	if !over || result != wire.WhiteResigns {
		t.Fatalf("expected white_resigns, got %q (over=%v)", result, over)
	}
}
