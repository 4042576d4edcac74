package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb, err := Open(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	s := New(rdb, nil)
	t.Cleanup(s.Close)
	return s, mr
}

func TestSaveBoardWritesThrough(t *testing.T) {
	s, mr := newTestStore(t)

	s.SaveBoard("abc123", "fen-one")
	s.SaveBoard("abc123", "fen-two")

	deadline := time.Now().Add(2 * time.Second)
	for {
		got := mr.HGet("rc:room:abc123", "fen")
		if got == "fen-two" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("write-through did not land, have %q", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBoardRead(t *testing.T) {
	s, mr := newTestStore(t)
	mr.HSet("rc:room:xyz", "fen", "some-fen")

	data, err := s.Board(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Board: %v", err)
	}
	if data["fen"] != "some-fen" {
		t.Fatalf("unexpected board data: %v", data)
	}

	if _, err := s.Board(context.Background(), "missing"); err != ErrNoRoom {
		t.Fatalf("expected ErrNoRoom, got %v", err)
	}
}

func TestOpenRejectsBadURL(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty URL")
	}
	if _, err := Open("http://localhost:6379"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}
