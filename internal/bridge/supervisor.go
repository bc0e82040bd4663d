package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/logging"
)

// ErrConnectionFailed reports that the simulation could not be reached
// within the attempt bound. Fatal to the process at startup.
var ErrConnectionFailed = errors.New("simulation connection failed")

// DefaultConnectBackoff is the pause between connection attempts.
const DefaultConnectBackoff = 5 * time.Second

// Dialer opens a fresh simulation session.
type Dialer func(ctx context.Context) (Simulation, error)

// Supervisor establishes the simulation session with bounded retries. It
// does not heal mid-run failures; a lost session ends the engine and
// re-supervision is the host's decision.
type Supervisor struct {
	dial    Dialer
	backoff time.Duration
	log     logging.Logger
}

// NewSupervisor creates a supervisor around a dialer. A zero backoff means
// DefaultConnectBackoff.
func NewSupervisor(dial Dialer, backoff time.Duration, log logging.Logger) *Supervisor {
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Supervisor{dial: dial, backoff: backoff, log: log}
}

// Connect attempts to establish the simulation session up to maxAttempts
// times, waiting the configured backoff between failures. On success it
// captures the intersection list once and returns the session material the
// engine needs.
func (s *Supervisor) Connect(ctx context.Context, maxAttempts int) (Simulation, *Session, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		simulation, err := s.dial(ctx)
		if err == nil {
			intersections, err := simulation.ListIntersections(ctx)
			if err != nil {
				lastErr = err
				s.log.Warn(ctx, "connected but intersection discovery failed",
					logging.Int("attempt", attempt),
					logging.String("error", err.Error()),
				)
				if closer, ok := simulation.(interface{ Close() error }); ok {
					_ = closer.Close()
				}
			} else {
				s.log.Info(ctx, "connected to simulation",
					logging.Int("attempt", attempt),
					logging.Any("intersections", intersections),
				)
				return simulation, NewSession(intersections), nil
			}
		} else {
			lastErr = err
			s.log.Warn(ctx, "simulation connection attempt failed",
				logging.Int("attempt", attempt),
				logging.Int("max_attempts", maxAttempts),
				logging.String("error", err.Error()),
			)
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(s.backoff):
		}
	}
	return nil, nil, fmt.Errorf("%w after %d attempts: %v", ErrConnectionFailed, maxAttempts, lastErr)
}
