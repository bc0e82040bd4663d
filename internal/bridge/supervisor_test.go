package bridge

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConnectSucceedsAfterRetries(t *testing.T) {
	f := newFakeSim()
	f.intersections = []string{"tlA", "tlB"}

	attempts := 0
	dial := func(ctx context.Context) (Simulation, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return f, nil
	}

	sup := NewSupervisor(dial, time.Millisecond, nil)
	simulation, session, err := sup.Connect(context.Background(), 10)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if simulation == nil {
		t.Fatal("Connect returned nil simulation")
	}
	if attempts != 3 {
		t.Fatalf("dialed %d times, want 3", attempts)
	}
	if len(session.Intersections) != 2 || session.Intersections[0] != "tlA" {
		t.Fatalf("intersections = %v, want discovery captured once", session.Intersections)
	}
	if !session.Connected {
		t.Fatal("session not marked connected")
	}
}

func TestConnectFailsAfterBound(t *testing.T) {
	attempts := 0
	dial := func(ctx context.Context) (Simulation, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	sup := NewSupervisor(dial, time.Millisecond, nil)
	_, _, err := sup.Connect(context.Background(), 4)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("err = %v, want ErrConnectionFailed", err)
	}
	if attempts != 4 {
		t.Fatalf("dialed %d times, want exactly 4", attempts)
	}
}

func TestConnectHonorsCancellation(t *testing.T) {
	dial := func(ctx context.Context) (Simulation, error) {
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sup := NewSupervisor(dial, time.Hour, nil)
	_, _, err := sup.Connect(ctx, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
