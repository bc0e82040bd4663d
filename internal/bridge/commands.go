package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/catalog"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/logging"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/sim"
)

// applyCommands reads the holding bank and applies newly changed commands
// to the simulation. Each sub-step is independently fault tolerant: a
// failure in one never prevents evaluation of the others in the same tick.
func (e *Engine) applyCommands(ctx context.Context, report *TickReport) error {
	ctx, span := e.tracer.Start(ctx, "bridge.commands")
	defer span.End()

	steps := []struct {
		name string
		fn   func(context.Context, *TickReport) error
	}{
		{"emergency mode", e.applyEmergencyMode},
		{"manual phase", e.applyManualPhases},
		{"speed override", e.applySpeedOverride},
		{"system reset", e.applySystemReset},
	}
	for _, step := range steps {
		if err := step.fn(ctx, report); err != nil {
			if fatal(err) || errors.Is(err, registers.ErrOutOfRange) {
				return err
			}
			report.soft("command", step.name, "", err)
		}
	}
	return nil
}

// applyEmergencyMode handles the level command at holding register 0.
// Activation forces every known intersection to all green. Deactivation
// issues no simulation call: the signal programs resume on their own once
// the forced state expires, and restoring a snapshot would fight them.
func (e *Engine) applyEmergencyMode(ctx context.Context, report *TickReport) error {
	value, err := e.store.Get(registers.BankHolding, catalog.HoldingEmergencyMode)
	if err != nil {
		return err
	}
	last := e.session.LastApplied(cmdKeyEmergency)

	switch {
	case value != 0 && last == 0:
		e.log.Info(ctx, "emergency mode activated", logging.Int("intersections", len(e.session.Intersections)))
		for _, id := range e.session.Intersections {
			state, err := e.sim.IntersectionSignalState(ctx, id)
			if err != nil {
				if fatal(err) {
					return err
				}
				report.soft("command", "emergency read state", id, err)
				continue
			}
			if err := e.sim.SetIntersectionSignalState(ctx, id, sim.AllGreenState(state)); err != nil {
				if fatal(err) {
					return err
				}
				report.soft("command", "emergency force green", id, err)
			}
		}
		e.session.recordApplied(cmdKeyEmergency, value)
		if e.metrics != nil {
			e.metrics.IncCommand("emergency_mode")
		}

	case value == 0 && last != 0:
		e.log.Info(ctx, "emergency mode deactivated")
		e.session.recordApplied(cmdKeyEmergency, 0)
	}
	return nil
}

// applyManualPhases handles the edge commands at holding registers 1 and 2.
// Register values are one-based; zero means automatic control and is never
// forwarded.
func (e *Engine) applyManualPhases(ctx context.Context, report *TickReport) error {
	for idx, id := range e.session.Intersections {
		if idx >= catalog.MaxManualTLs {
			break
		}

		value, err := e.store.Get(registers.BankHolding, catalog.ManualPhaseAddress(idx))
		if err != nil {
			return err
		}
		key := manualPhaseKey(idx)
		if value == 0 || value == e.session.LastApplied(key) {
			continue
		}

		if err := e.sim.SetIntersectionPhase(ctx, id, int(value)-1); err != nil {
			if fatal(err) {
				return err
			}
			report.soft("command", "set phase", id, err)
			continue
		}
		e.log.Info(ctx, "manual phase applied",
			logging.String("intersection", id),
			logging.Int("phase", int(value)-1),
		)
		e.session.recordApplied(key, value)
		if e.metrics != nil {
			e.metrics.IncCommand("manual_phase")
		}
	}
	return nil
}

// applySpeedOverride handles the edge command at holding register 3: a
// nonzero, newly changed value is applied as the max speed of every vehicle
// currently in the network. Failures on individual vehicles are swallowed;
// the override is still recorded as applied.
func (e *Engine) applySpeedOverride(ctx context.Context, report *TickReport) error {
	value, err := e.store.Get(registers.BankHolding, catalog.HoldingSpeedOverride)
	if err != nil {
		return err
	}
	if value == 0 || value == e.session.LastApplied(cmdKeySpeed) {
		return nil
	}

	vehicles, err := e.sim.ListVehicles(ctx)
	if err != nil {
		if fatal(err) {
			return err
		}
		report.soft("command", "speed override list", "", err)
		return nil
	}

	e.log.Info(ctx, "speed override applied",
		logging.Int("speed_kmh", int(value)),
		logging.Int("vehicles", len(vehicles)),
	)
	for _, id := range vehicles {
		if err := e.sim.SetVehicleMaxSpeedKmh(ctx, id, float64(value)); err != nil {
			if fatal(err) {
				return err
			}
			report.soft("command", "set max speed", id, err)
		}
	}
	e.session.recordApplied(cmdKeySpeed, value)
	if e.metrics != nil {
		e.metrics.IncCommand("speed_override")
	}
	return nil
}

// applySystemReset handles the pulse command at holding register 20: any
// nonzero value zeroes the entire input bank, catalog-known or not, and the
// cell clears itself in the same tick.
func (e *Engine) applySystemReset(ctx context.Context, _ *TickReport) error {
	value, err := e.store.Get(registers.BankHolding, catalog.HoldingSystemReset)
	if err != nil {
		return err
	}
	if value == 0 {
		return nil
	}

	e.log.Info(ctx, "system reset requested")
	e.store.ZeroBank(registers.BankInput)
	if err := e.store.Set(registers.BankHolding, catalog.HoldingSystemReset, 0); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IncCommand("system_reset")
	}
	return nil
}

func manualPhaseKey(idx int) string {
	return fmt.Sprintf("tl%d", idx)
}
