// Package bridge contains the synchronization core: the tick loop that
// mirrors simulation state into the register store and applies operator
// register writes back onto the simulation.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/catalog"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/logging"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/sim"
)

// State is the engine's connection state.
type State int

const (
	StateDisconnected State = iota
	StateSyncing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateSyncing:
		return "syncing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Defaults for the tick loop.
const (
	DefaultTickInterval       = 50 * time.Millisecond
	DefaultDiagnosticInterval = 100
)

// MetricsRecorder receives engine telemetry. Implemented by
// observability.BridgeCollector; a nil recorder is legal.
type MetricsRecorder interface {
	ObserveTick(d time.Duration)
	IncSoftFailure(phase string)
	IncCommand(kind string)
	SetTraffic(vehicles int, averageSpeedKmh float64)
	SetConnected(connected bool)
}

// SoftFailure is a recovered per-entity failure inside a tick.
type SoftFailure struct {
	Phase  string // "pull" or "command"
	Op     string
	Object string
	Err    error
}

// TickReport aggregates what one tick observed and which sub-operations
// failed softly. Soft failures never abort a tick.
type TickReport struct {
	Vehicles        int
	AverageSpeedKmh float64
	SoftFailures    []SoftFailure
}

func (r *TickReport) soft(phase, op, object string, err error) {
	r.SoftFailures = append(r.SoftFailures, SoftFailure{Phase: phase, Op: op, Object: object, Err: err})
}

// Engine drives the pull/command cycle against a connected simulation.
// Ticks are strictly serialized; the register store is the only state it
// shares with other goroutines.
type Engine struct {
	sim     Simulation
	store   *registers.Store
	session *Session

	log      logging.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer
	interval time.Duration
	diagEach int

	state     State
	tickCount int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTickInterval overrides the polling cadence.
func WithTickInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// WithDiagnosticInterval overrides how many ticks pass between summary logs.
func WithDiagnosticInterval(n int) Option {
	return func(e *Engine) { e.diagEach = n }
}

// NewEngine creates an engine for an established simulation session. The
// engine starts in the Syncing state.
func NewEngine(simulation Simulation, store *registers.Store, session *Session, opts ...Option) *Engine {
	e := &Engine{
		sim:      simulation,
		store:    store,
		session:  session,
		log:      logging.Noop(),
		tracer:   otel.Tracer("bridge"),
		interval: DefaultTickInterval,
		diagEach: DefaultDiagnosticInterval,
		state:    StateSyncing,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics != nil {
		e.metrics.SetConnected(true)
	}
	return e
}

// State reports the engine's current state.
func (e *Engine) State() State { return e.state }

// TickCount reports how many ticks have completed.
func (e *Engine) TickCount() int { return e.tickCount }

// Run drives the tick loop until the context is cancelled or the simulation
// becomes unreachable. Cancellation is observed at the top of each cycle;
// an in-flight tick always completes.
func (e *Engine) Run(ctx context.Context) error {
	if e.state != StateSyncing {
		return fmt.Errorf("engine is %s, not syncing", e.state)
	}

	e.session.Running = true
	defer func() {
		e.session.Running = false
		if e.metrics != nil {
			e.metrics.SetConnected(false)
		}
	}()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.log.Info(ctx, "shutdown requested, stopping tick loop", logging.Int("ticks", e.tickCount))
			e.state = StateStopped
			return nil
		case <-ticker.C:
			report, err := e.Tick(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					e.state = StateStopped
					return nil
				}
				e.log.Error(ctx, "simulation lost, stopping session", logging.String("error", err.Error()))
				return err
			}
			for _, f := range report.SoftFailures {
				e.log.Debug(ctx, "recovered sub-operation failure",
					logging.String("phase", f.Phase),
					logging.String("op", f.Op),
					logging.String("object", f.Object),
					logging.String("error", f.Err.Error()),
				)
			}
		}
	}
}

// Tick performs one pull+command cycle. The returned error is non-nil only
// when the session is over: the simulation became unreachable or the
// context was cancelled. Everything else is reported as a soft failure.
func (e *Engine) Tick(ctx context.Context) (TickReport, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "bridge.tick",
		trace.WithAttributes(attribute.Int("tick", e.tickCount+1)))
	defer span.End()

	var report TickReport

	if err := e.pull(ctx, &report); err != nil {
		return report, e.sessionLost(err)
	}
	if err := e.applyCommands(ctx, &report); err != nil {
		return report, e.sessionLost(err)
	}

	e.tickCount++
	if e.metrics != nil {
		e.metrics.ObserveTick(time.Since(start))
		e.metrics.SetTraffic(report.Vehicles, report.AverageSpeedKmh)
		for _, f := range report.SoftFailures {
			e.metrics.IncSoftFailure(f.Phase)
		}
	}

	if e.diagEach > 0 && e.tickCount%e.diagEach == 0 {
		vehicles, _ := e.store.Get(registers.BankInput, catalog.InputVehicleCount)
		speed, _ := e.store.Get(registers.BankInput, catalog.InputAverageSpeed)
		e.log.Info(ctx, "bridge status",
			logging.Int("tick", e.tickCount),
			logging.Int("vehicles", int(vehicles)),
			logging.Int("avg_speed_kmh", int(speed)),
		)
	}

	return report, nil
}

// sessionLost flips the state machine when err is fatal to the session and
// passes soft errors through unchanged (callers decide those are fatal only
// when sessionLost marks them).
func (e *Engine) sessionLost(err error) error {
	e.session.Connected = false
	e.state = StateDisconnected
	if e.metrics != nil {
		e.metrics.SetConnected(false)
	}
	return err
}

// fatal reports whether err ends the session rather than a single
// sub-operation.
func fatal(err error) bool {
	return errors.Is(err, sim.ErrSimulationUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// clamp16 narrows a float to the 16-bit register range.
func clamp16(v float64) uint16 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
