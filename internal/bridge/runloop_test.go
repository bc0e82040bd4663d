package bridge

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/sim"
)

func TestRunStopsOnCancel(t *testing.T) {
	f := newFakeSim()
	store := registers.NewStore()
	session := NewSession(nil)
	engine := NewEngine(f, store, session, WithTickInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Let a few ticks happen, then request shutdown.
	deadline := time.After(2 * time.Second)
	for engine.TickCount() < 3 {
		select {
		case <-deadline:
			t.Fatal("engine never ticked")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	if engine.State() != StateStopped {
		t.Fatalf("state = %v, want stopped", engine.State())
	}
	if session.Running {
		t.Fatal("session still marked running after shutdown")
	}
}

func TestRunStopsWhenSimulationLost(t *testing.T) {
	f := newFakeSim()
	f.failAll = fmt.Errorf("step: %w", sim.ErrSimulationUnavailable)
	engine := NewEngine(f, registers.NewStore(), NewSession(nil), WithTickInterval(time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- engine.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, sim.ErrSimulationUnavailable) {
			t.Fatalf("Run returned %v, want ErrSimulationUnavailable", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after session loss")
	}
	// Session loss is not a shutdown: the engine ends up disconnected and
	// the host process decides whether to re-supervise.
	if engine.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", engine.State())
	}
}

func TestRunRefusesWhenNotSyncing(t *testing.T) {
	f := newFakeSim()
	engine := NewEngine(f, registers.NewStore(), NewSession(nil))
	engine.state = StateDisconnected

	if err := engine.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded from disconnected state")
	}
}
