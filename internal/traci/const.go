package traci

// TraCI command identifiers. Get/response/set identifiers for a domain are
// related by fixed offsets (response = get + 0x10, set = get + 0x20).
const (
	cmdGetVersion     byte = 0x00
	cmdSimStep        byte = 0x02
	cmdClose          byte = 0x7f
	cmdGetTLVariable  byte = 0xa2
	cmdGetVehVariable byte = 0xa4
	cmdGetEdgeVar     byte = 0xaa
	cmdGetSimVariable byte = 0xab
	cmdSetTLVariable  byte = 0xc2
	cmdSetVehVariable byte = 0xc4

	responseOffset byte = 0x10
)

// Domain selects the TraCI object domain a variable belongs to.
type Domain byte

const (
	DomainVehicle      Domain = Domain(cmdGetVehVariable)
	DomainTrafficLight Domain = Domain(cmdGetTLVariable)
	DomainEdge         Domain = Domain(cmdGetEdgeVar)
	DomainSimulation   Domain = Domain(cmdGetSimVariable)
)

// Variable identifiers used by the bridge.
const (
	VarIDList byte = 0x00

	// Vehicle domain.
	VarSpeed       byte = 0x40
	VarMaxSpeed    byte = 0x41
	VarTypeID      byte = 0x4f
	VarWaitingTime byte = 0x7a

	// Traffic light domain.
	VarTLState byte = 0x20 // red-yellow-green state string
	VarTLPhase byte = 0x28 // current phase index (get)
	VarTLSetPh byte = 0x22 // phase index (set)

	// Edge domain.
	VarHaltingNumber byte = 0x14

	// Simulation domain.
	VarTime           byte = 0x66
	VarArrivedNumber  byte = 0x79
	VarDepartedNumber byte = 0x73
)

// Wire value type identifiers.
const (
	typeUByte      byte = 0x07
	typeByte       byte = 0x08
	typeInteger    byte = 0x09
	typeDouble     byte = 0x0b
	typeString     byte = 0x0c
	typeStringList byte = 0x0e
	typeCompound   byte = 0x0f
)

// Status results.
const (
	statusOK  byte = 0x00
	statusErr byte = 0xff
)
