// Package catalog declares the fixed Modbus register map exposed by the
// bridge. The addresses and their semantics are a compatibility contract
// with existing SCADA configurations and MUST NOT change.
package catalog

import "sort"

// Input register addresses (function 04, read-only, mirrored from SUMO).
const (
	InputVehicleCount     uint16 = 0
	InputAverageSpeed     uint16 = 1
	InputSimulationTime   uint16 = 2
	InputTotalWaitingTime uint16 = 3
	InputJamLength        uint16 = 4
	InputArrivedVehicles  uint16 = 5
	InputTL1Phase         uint16 = 10
	InputTL1State         uint16 = 11
	InputTL2Phase         uint16 = 20
	InputTL2State         uint16 = 21
	InputEmergencyCount   uint16 = 30
	InputCollisionCount   uint16 = 31
)

// Holding register addresses (functions 03/06/16, operator commands).
const (
	HoldingEmergencyMode uint16 = 0
	HoldingTL1Phase      uint16 = 1
	HoldingTL2Phase      uint16 = 2
	HoldingSpeedOverride uint16 = 3
	HoldingReroute       uint16 = 4
	HoldingPhaseDuration uint16 = 5
	HoldingTL1GreenTime  uint16 = 10
	HoldingTL2GreenTime  uint16 = 11
	HoldingSystemReset   uint16 = 20
	HoldingPause         uint16 = 21
)

// Layout constants shared by the sync engine and the register store.
const (
	// TLBaseAddress is the first input register of the per-intersection
	// block; each further intersection is offset by TLBlockStride.
	TLBaseAddress uint16 = 10
	TLBlockStride uint16 = 10

	// MaxMirroredTLs bounds how many intersections are mirrored into the
	// input bank.
	MaxMirroredTLs = 4
	// MaxManualTLs bounds how many intersections accept manual phase
	// commands from the holding bank.
	MaxManualTLs = 2
	// MaxJamEdges bounds the jam-length sum to the first edges returned
	// by the simulation. Fixed, not configurable.
	MaxJamEdges = 10
)

// Entry describes one meaningful register address.
type Entry struct {
	Address     uint16
	Name        string
	Unit        string
	Description string
	Range       string
	Writable    bool
}

// Input is the read-only register table, keyed by address.
var Input = map[uint16]Entry{
	InputVehicleCount:     {InputVehicleCount, "Vehicle Count", "vehicles", "Total number of vehicles in the simulation", "0-1000", false},
	InputAverageSpeed:     {InputAverageSpeed, "Average Speed", "km/h", "Mean speed over all vehicles", "0-150", false},
	InputSimulationTime:   {InputSimulationTime, "Simulation Time", "seconds", "Elapsed simulation time", "0-86400", false},
	InputTotalWaitingTime: {InputTotalWaitingTime, "Total Waiting Time", "seconds", "Accumulated waiting time over all vehicles", "0-10000", false},
	InputJamLength:        {InputJamLength, "Jam Length", "vehicles", "Number of halting vehicles on the monitored edges", "0-500", false},
	InputArrivedVehicles:  {InputArrivedVehicles, "Arrived Vehicles", "vehicles", "Vehicles that reached their destination", "0-10000", false},
	InputTL1Phase:         {InputTL1Phase, "Traffic Light 1 Phase", "phase", "Current phase index of traffic light 1", "0-8", false},
	InputTL1State:         {InputTL1State, "Traffic Light 1 State", "bitmap", "Signal state bitmap (1=green, 2=red, 4=yellow)", "0-7", false},
	InputTL2Phase:         {InputTL2Phase, "Traffic Light 2 Phase", "phase", "Current phase index of traffic light 2", "0-8", false},
	InputTL2State:         {InputTL2State, "Traffic Light 2 State", "bitmap", "Signal state bitmap (1=green, 2=red, 4=yellow)", "0-7", false},
	InputEmergencyCount:   {InputEmergencyCount, "Emergency Vehicles Count", "vehicles", "Active vehicles of type emergency", "0-10", false},
	InputCollisionCount:   {InputCollisionCount, "Collision Count", "events", "Detected collisions (reserved)", "0-100", false},
}

// Holding is the read-write register table, keyed by address.
var Holding = map[uint16]Entry{
	HoldingEmergencyMode: {HoldingEmergencyMode, "Emergency Mode", "boolean", "Force all signals green while nonzero (0=OFF, 1=ON)", "0-1", true},
	HoldingTL1Phase:      {HoldingTL1Phase, "Traffic Light 1 Manual Phase", "phase", "Manual phase for traffic light 1 (0=auto)", "0-8", true},
	HoldingTL2Phase:      {HoldingTL2Phase, "Traffic Light 2 Manual Phase", "phase", "Manual phase for traffic light 2 (0=auto)", "0-8", true},
	HoldingSpeedOverride: {HoldingSpeedOverride, "Speed Limit Override", "km/h", "Force a max speed on all vehicles (0=normal)", "0-130", true},
	HoldingReroute:       {HoldingReroute, "Reroute Command", "command", "Recompute routes (reserved)", "0-1", true},
	HoldingPhaseDuration: {HoldingPhaseDuration, "Phase Duration", "seconds", "Signal phase duration (reserved)", "10-120", true},
	HoldingTL1GreenTime:  {HoldingTL1GreenTime, "TL1 Green Duration", "seconds", "Green duration for traffic light 1 (reserved)", "5-90", true},
	HoldingTL2GreenTime:  {HoldingTL2GreenTime, "TL2 Green Duration", "seconds", "Green duration for traffic light 2 (reserved)", "5-90", true},
	HoldingSystemReset:   {HoldingSystemReset, "System Reset", "command", "Zero all monitoring registers (write 1, self-clearing)", "0-1", true},
	HoldingPause:         {HoldingPause, "Pause Simulation", "boolean", "Pause the simulation (reserved)", "0-1", true},
}

// LookupInput returns the input-register entry for addr, if any.
func LookupInput(addr uint16) (Entry, bool) {
	e, ok := Input[addr]
	return e, ok
}

// LookupHolding returns the holding-register entry for addr, if any.
func LookupHolding(addr uint16) (Entry, bool) {
	e, ok := Holding[addr]
	return e, ok
}

// InputEntries returns the input table in ascending address order.
func InputEntries() []Entry { return sorted(Input) }

// HoldingEntries returns the holding table in ascending address order.
func HoldingEntries() []Entry { return sorted(Holding) }

func sorted(table map[uint16]Entry) []Entry {
	entries := make([]Entry, 0, len(table))
	for _, e := range table {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Address < entries[j].Address })
	return entries
}

// ManualPhaseAddress returns the holding register carrying the manual phase
// command for the intersection at the given discovery index.
func ManualPhaseAddress(idx int) uint16 {
	return HoldingTL1Phase + uint16(idx)
}

// TLPhaseAddress returns the input register holding the phase of the
// intersection at the given discovery index.
func TLPhaseAddress(idx int) uint16 {
	return TLBaseAddress + uint16(idx)*TLBlockStride
}

// TLStateAddress returns the input register holding the encoded signal state
// of the intersection at the given discovery index.
func TLStateAddress(idx int) uint16 {
	return TLPhaseAddress(idx) + 1
}
