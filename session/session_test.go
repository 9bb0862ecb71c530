package session

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-zoox/gztunnel/errdefs"
	"github.com/go-zoox/gztunnel/protocol"
)

func TestDeliverFinishKeepsOrder(t *testing.T) {
	s := New(context.Background(), 1, "example.com", 80, 4, nil)

	for _, chunk := range []string{"a", "b", "c"} {
		if err := s.Deliver([]byte(chunk), time.Second); err != nil {
			t.Fatalf("failed to deliver %s: %s", chunk, err)
		}
	}
	s.Finish()

	got := ""
	for chunk := range s.Inbound() {
		got += string(chunk)
	}

	if got != "abc" {
		t.Fatalf("inbound not match, expect abc, but got %s", got)
	}

	if err := s.Deliver([]byte("d"), time.Second); !errors.Is(err, errdefs.ErrClosed) {
		t.Fatalf("expect ErrClosed after Finish, but got %v", err)
	}
}

func TestDeliverStalls(t *testing.T) {
	s := New(context.Background(), 1, "example.com", 80, 1, nil)

	if err := s.Deliver([]byte("a"), time.Second); err != nil {
		t.Fatalf("failed to deliver: %s", err)
	}

	if err := s.Deliver([]byte("b"), 20*time.Millisecond); !errors.Is(err, ErrStalled) {
		t.Fatalf("expect ErrStalled, but got %v", err)
	}
}

func TestDeliverUnblocksOnRelease(t *testing.T) {
	s := New(context.Background(), 1, "example.com", 80, 1, nil)
	s.Deliver([]byte("a"), time.Second)

	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Release(nil)
	}()

	if err := s.Deliver([]byte("b"), 5*time.Second); !errors.Is(err, errdefs.ErrClosed) {
		t.Fatalf("expect ErrClosed, but got %v", err)
	}
}

func TestReleaseOnce(t *testing.T) {
	released := 0
	s := New(context.Background(), 1, "example.com", 80, 1, func(*Session) {
		released++
	})

	local, remote := net.Pipe()
	defer remote.Close()
	s.Attach(local)

	cause := errors.New("boom")
	s.Release(cause)
	s.Release(nil)

	if released != 1 {
		t.Fatalf("onRelease not match, expect 1 call, but got %d", released)
	}

	if s.State() != StateClosed {
		t.Fatalf("State not match, expect closed, but got %s", s.State())
	}

	if !errors.Is(s.Err(), cause) {
		t.Fatalf("Err not match, expect %v, but got %v", cause, s.Err())
	}

	if _, err := local.Write([]byte("x")); err == nil {
		t.Fatalf("expect local stream to be closed")
	}
}

func TestAttachAfterRelease(t *testing.T) {
	s := New(context.Background(), 1, "example.com", 80, 1, nil)
	s.Release(nil)

	local, remote := net.Pipe()
	defer remote.Close()
	s.Attach(local)

	if _, err := local.Write([]byte("x")); err == nil {
		t.Fatalf("expect late stream to be closed")
	}
}

func TestStateTransitions(t *testing.T) {
	s := New(context.Background(), 1, "example.com", 80, 1, nil)

	if s.HalfClose() {
		t.Fatalf("a requesting session cannot be half closed")
	}

	if !s.Activate() || s.State() != StateActive {
		t.Fatalf("expect requesting -> active, but got %s", s.State())
	}

	if !s.HalfClose() || s.State() != StateHalfClosed {
		t.Fatalf("expect active -> half-closed, but got %s", s.State())
	}

	if !s.MarkCloseSent() || s.MarkCloseSent() {
		t.Fatalf("expect exactly one caller to send Close")
	}
}

func TestAwaitResponse(t *testing.T) {
	s := New(context.Background(), 1, "example.com", 80, 1, nil)

	s.Respond(&protocol.ProxyResponse{SessionID: 1, OK: true})
	s.Respond(&protocol.ProxyResponse{SessionID: 1})

	response, err := s.AwaitResponse(context.Background())
	if err != nil {
		t.Fatalf("failed to await response: %s", err)
	}
	if !response.OK {
		t.Fatalf("expect the first response to win")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.AwaitResponse(ctx); !errors.Is(err, errdefs.ErrTimeout) {
		t.Fatalf("expect timeout error, but got %v", err)
	}
}
