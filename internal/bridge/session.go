package bridge

import "context"

// Simulation is the adapter surface the engine drives. *sim.Adapter
// implements it; tests substitute a fake.
type Simulation interface {
	AdvanceStep(ctx context.Context) error
	ListVehicles(ctx context.Context) ([]string, error)
	VehicleSpeedKmh(ctx context.Context, id string) (float64, error)
	VehicleWaitingTime(ctx context.Context, id string) (float64, error)
	VehicleTypeID(ctx context.Context, id string) (string, error)
	SetVehicleMaxSpeedKmh(ctx context.Context, id string, kmh float64) error
	ListIntersections(ctx context.Context) ([]string, error)
	IntersectionPhase(ctx context.Context, id string) (int, error)
	IntersectionSignalState(ctx context.Context, id string) (string, error)
	SetIntersectionPhase(ctx context.Context, id string, phase int) error
	SetIntersectionSignalState(ctx context.Context, id, state string) error
	ListEdges(ctx context.Context) ([]string, error)
	EdgeHaltingCount(ctx context.Context, edge string) (int, error)
	SimulationTime(ctx context.Context) (float64, error)
	ArrivedVehicleCount(ctx context.Context) (int, error)
}

// Debounce-table keys for the command phase.
const (
	cmdKeyEmergency = "emergency"
	cmdKeySpeed     = "speed"
)

// Session is the bridge's mutable per-connection state. It is owned by the
// engine and mutated only from the tick loop; nothing here needs a lock.
type Session struct {
	Running   bool
	Connected bool

	// Intersections is the ordered ID list discovered once after connect.
	Intersections []string

	// lastApplied records the last value acted on per command key so
	// identical commands are not re-issued every tick.
	lastApplied map[string]uint16
}

// NewSession creates a session for a freshly connected simulation.
func NewSession(intersections []string) *Session {
	return &Session{
		Connected:     true,
		Intersections: intersections,
		lastApplied:   make(map[string]uint16),
	}
}

// LastApplied returns the debounced value for a command key, zero when the
// command has never been applied.
func (s *Session) LastApplied(key string) uint16 {
	return s.lastApplied[key]
}

func (s *Session) recordApplied(key string, value uint16) {
	s.lastApplied[key] = value
}
