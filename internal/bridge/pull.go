package bridge

import (
	"context"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/catalog"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/sim"
)

// pull advances the simulation one step and mirrors its observables into
// the input bank. Individual read failures are soft: partial telemetry is
// preferable to halting synchronization. Only session loss aborts.
func (e *Engine) pull(ctx context.Context, report *TickReport) error {
	ctx, span := e.tracer.Start(ctx, "bridge.pull")
	defer span.End()

	if err := e.sim.AdvanceStep(ctx); err != nil {
		if fatal(err) {
			return err
		}
		report.soft("pull", "advance step", "", err)
	}

	vehicles, err := e.sim.ListVehicles(ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		report.soft("pull", "list vehicles", "", err)
		vehicles = nil
	}

	var speedSum, waitingSum float64
	speedCount := 0
	emergencyCount := 0
	for _, id := range vehicles {
		kmh, err := e.sim.VehicleSpeedKmh(ctx, id)
		switch {
		case err == nil:
			speedSum += kmh
			speedCount++
		case fatal(err):
			return err
		default:
			report.soft("pull", "vehicle speed", id, err)
		}

		waiting, err := e.sim.VehicleWaitingTime(ctx, id)
		switch {
		case err == nil:
			waitingSum += waiting
		case fatal(err):
			return err
		default:
			report.soft("pull", "vehicle waiting time", id, err)
		}

		typ, err := e.sim.VehicleTypeID(ctx, id)
		switch {
		case err == nil:
			if typ == sim.EmergencyVehicleType {
				emergencyCount++
			}
		case fatal(err):
			return err
		default:
			report.soft("pull", "vehicle type", id, err)
		}
	}

	averageSpeed := 0.0
	if speedCount > 0 {
		averageSpeed = speedSum / float64(speedCount)
	}
	report.Vehicles = len(vehicles)
	report.AverageSpeedKmh = averageSpeed

	simTime, err := e.sim.SimulationTime(ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		report.soft("pull", "simulation time", "", err)
	}

	arrived, err := e.sim.ArrivedVehicleCount(ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		report.soft("pull", "arrived count", "", err)
	}

	jam, err := e.jamLength(ctx, report)
	if err != nil {
		return err
	}

	writes := []struct {
		addr  uint16
		value uint16
	}{
		{catalog.InputVehicleCount, clamp16(float64(len(vehicles)))},
		{catalog.InputAverageSpeed, clamp16(averageSpeed)},
		{catalog.InputSimulationTime, clamp16(simTime)},
		{catalog.InputTotalWaitingTime, clamp16(waitingSum)},
		{catalog.InputJamLength, clamp16(float64(jam))},
		{catalog.InputArrivedVehicles, clamp16(float64(arrived))},
	}
	for _, w := range writes {
		if err := e.store.Set(registers.BankInput, w.addr, w.value); err != nil {
			return err
		}
	}

	if err := e.pullIntersections(ctx, report); err != nil {
		return err
	}

	// Written after the intersection blocks: with more than two
	// intersections the third block overlaps these addresses, and the
	// alarm registers take precedence.
	return e.store.Set(registers.BankInput, catalog.InputEmergencyCount, clamp16(float64(emergencyCount)))
}

// jamLength sums halting vehicles over at most the first MaxJamEdges edges.
// The truncation is fixed; it keeps the per-tick cost bounded on large
// networks.
func (e *Engine) jamLength(ctx context.Context, report *TickReport) (int, error) {
	edges, err := e.sim.ListEdges(ctx)
	if err != nil {
		if fatal(err) {
			return 0, err
		}
		report.soft("pull", "list edges", "", err)
		return 0, nil
	}
	if len(edges) > catalog.MaxJamEdges {
		edges = edges[:catalog.MaxJamEdges]
	}

	total := 0
	for _, edge := range edges {
		n, err := e.sim.EdgeHaltingCount(ctx, edge)
		switch {
		case err == nil:
			total += n
		case fatal(err):
			return 0, err
		default:
			report.soft("pull", "edge halting count", edge, err)
		}
	}
	return total, nil
}

// pullIntersections mirrors phase and encoded signal state for the first
// MaxMirroredTLs discovered intersections. A failure on one intersection
// does not prevent the others from being written the same tick.
func (e *Engine) pullIntersections(ctx context.Context, report *TickReport) error {
	for idx, id := range e.session.Intersections {
		if idx >= catalog.MaxMirroredTLs {
			break
		}

		phase, err := e.sim.IntersectionPhase(ctx, id)
		if err != nil {
			if fatal(err) {
				return err
			}
			report.soft("pull", "intersection phase", id, err)
			continue
		}
		state, err := e.sim.IntersectionSignalState(ctx, id)
		if err != nil {
			if fatal(err) {
				return err
			}
			report.soft("pull", "intersection state", id, err)
			continue
		}

		if err := e.store.Set(registers.BankInput, catalog.TLPhaseAddress(idx), clamp16(float64(phase))); err != nil {
			return err
		}
		if err := e.store.Set(registers.BankInput, catalog.TLStateAddress(idx), sim.EncodeSignalState(state)); err != nil {
			return err
		}
	}
	return nil
}
