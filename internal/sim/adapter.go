// Package sim wraps the TraCI session behind the typed accessors and
// mutators the sync engine works with. The adapter performs no retries;
// connection policy lives with the supervisor.
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/traci"
)

// ErrSimulationUnavailable reports that the simulation session is gone.
// Every adapter call fails with it once the underlying connection dropped.
var ErrSimulationUnavailable = errors.New("simulation unavailable")

// EmergencyVehicleType is the SUMO vehicle type that counts toward the
// emergency-vehicles register.
const EmergencyVehicleType = "emergency"

// msToKmh converts between SUMO's internal m/s speeds and the km/h values
// exposed on the register map.
const msToKmh = 3.6

// Conn is the wire-client surface the adapter drives. *traci.Client
// implements it; tests substitute a fake.
type Conn interface {
	Step() error
	GetStringList(dom traci.Domain, variable byte, objID string) ([]string, error)
	GetString(dom traci.Domain, variable byte, objID string) (string, error)
	GetInt(dom traci.Domain, variable byte, objID string) (int, error)
	GetDouble(dom traci.Domain, variable byte, objID string) (float64, error)
	SetDouble(dom traci.Domain, variable byte, objID string, value float64) error
	SetInt(dom traci.Domain, variable byte, objID string, value int) error
	SetString(dom traci.Domain, variable byte, objID string, value string) error
	Close() error
}

// Adapter exposes the simulation observables and commands the bridge
// mirrors onto the register map.
type Adapter struct {
	conn Conn
}

// NewAdapter wraps an open simulation connection.
func NewAdapter(conn Conn) *Adapter {
	return &Adapter{conn: conn}
}

// Close releases the underlying session.
func (a *Adapter) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}

// AdvanceStep advances the simulation by exactly one discrete step.
func (a *Adapter) AdvanceStep(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.wrap("advance step", a.conn.Step())
}

// ListVehicles returns the IDs of all vehicles currently in the network.
func (a *Adapter) ListVehicles(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := a.conn.GetStringList(traci.DomainVehicle, traci.VarIDList, "")
	return ids, a.wrap("list vehicles", err)
}

// VehicleSpeedKmh returns a vehicle's current speed in km/h.
func (a *Adapter) VehicleSpeedKmh(ctx context.Context, id string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ms, err := a.conn.GetDouble(traci.DomainVehicle, traci.VarSpeed, id)
	return ms * msToKmh, a.wrap("vehicle speed", err)
}

// VehicleWaitingTime returns a vehicle's accumulated waiting time in seconds.
func (a *Adapter) VehicleWaitingTime(ctx context.Context, id string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w, err := a.conn.GetDouble(traci.DomainVehicle, traci.VarWaitingTime, id)
	return w, a.wrap("vehicle waiting time", err)
}

// VehicleTypeID returns the vehicle's type identifier.
func (a *Adapter) VehicleTypeID(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	typ, err := a.conn.GetString(traci.DomainVehicle, traci.VarTypeID, id)
	return typ, a.wrap("vehicle type", err)
}

// SetVehicleMaxSpeedKmh forces a vehicle's maximum speed, given in km/h.
func (a *Adapter) SetVehicleMaxSpeedKmh(ctx context.Context, id string, kmh float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.wrap("set max speed", a.conn.SetDouble(traci.DomainVehicle, traci.VarMaxSpeed, id, kmh/msToKmh))
}

// ListIntersections returns the IDs of all signal-controlled intersections.
func (a *Adapter) ListIntersections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := a.conn.GetStringList(traci.DomainTrafficLight, traci.VarIDList, "")
	return ids, a.wrap("list intersections", err)
}

// IntersectionPhase returns the current phase index of an intersection.
func (a *Adapter) IntersectionPhase(ctx context.Context, id string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	phase, err := a.conn.GetInt(traci.DomainTrafficLight, traci.VarTLPhase, id)
	return phase, a.wrap("intersection phase", err)
}

// IntersectionSignalState returns the per-lane signal color string.
func (a *Adapter) IntersectionSignalState(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	state, err := a.conn.GetString(traci.DomainTrafficLight, traci.VarTLState, id)
	return state, a.wrap("intersection state", err)
}

// SetIntersectionPhase forces an intersection to a zero-based phase index.
func (a *Adapter) SetIntersectionPhase(ctx context.Context, id string, phase int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.wrap("set phase", a.conn.SetInt(traci.DomainTrafficLight, traci.VarTLSetPh, id, phase))
}

// SetIntersectionSignalState forces an intersection's per-lane color string.
func (a *Adapter) SetIntersectionSignalState(ctx context.Context, id, state string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.wrap("set signal state", a.conn.SetString(traci.DomainTrafficLight, traci.VarTLState, id, state))
}

// ListEdges returns the IDs of all network edges.
func (a *Adapter) ListEdges(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := a.conn.GetStringList(traci.DomainEdge, traci.VarIDList, "")
	return ids, a.wrap("list edges", err)
}

// EdgeHaltingCount returns the number of vehicles halting on an edge.
func (a *Adapter) EdgeHaltingCount(ctx context.Context, edge string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := a.conn.GetInt(traci.DomainEdge, traci.VarHaltingNumber, edge)
	return n, a.wrap("edge halting count", err)
}

// SimulationTime returns the elapsed simulation time in seconds.
func (a *Adapter) SimulationTime(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, err := a.conn.GetDouble(traci.DomainSimulation, traci.VarTime, "")
	return t, a.wrap("simulation time", err)
}

// ArrivedVehicleCount returns how many vehicles arrived in the last step.
func (a *Adapter) ArrivedVehicleCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := a.conn.GetInt(traci.DomainSimulation, traci.VarArrivedNumber, "")
	return n, a.wrap("arrived count", err)
}

// AllGreenState returns the all-green signal string matching the length of
// the given state, used by the emergency-mode command.
func AllGreenState(state string) string {
	return strings.Repeat("G", len(state))
}

// EncodeSignalState collapses a per-lane color string into the bitmap
// published on the register map: 1 when any lane shows green, 2 when any
// shows red, 4 when any shows yellow. Bits are additive; a mixed state sets
// several at once.
func EncodeSignalState(state string) uint16 {
	var v uint16
	if strings.ContainsAny(state, "Gg") {
		v |= 1
	}
	if strings.ContainsAny(state, "rR") {
		v |= 2
	}
	if strings.ContainsAny(state, "yY") {
		v |= 4
	}
	return v
}

// wrap classifies an underlying client error. Transport loss becomes
// ErrSimulationUnavailable; per-object command failures pass through for
// the engine to treat as soft.
func (a *Adapter) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, traci.ErrConnLost) {
		return fmt.Errorf("%s: %w", op, ErrSimulationUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
