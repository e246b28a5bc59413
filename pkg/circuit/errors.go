package circuit

import "errors"

// Fatal validation errors raised while loading a netlist or extracting a
// subcircuit. All of them terminate the run with a diagnostic.
var (
	ErrIllegalSignalType        = errors.New("illegal signal type in netlist bit list")
	ErrIllegalSignalList        = errors.New("bit list is not an array")
	ErrIllegalPortDirection     = errors.New("illegal port direction")
	ErrIllegalCellType          = errors.New("unknown cell type")
	ErrIllegalCellCycle         = errors.New("cell output feeds its own input")
	ErrIllegalNameRedeclaration = errors.New("redeclaration of a known name")
	ErrIllegalMissingSignals    = errors.New("netlist references signals that are never produced")
	ErrIllegalClockSignal       = errors.New("register clock is a constant signal")
	ErrIllegalMultipleClocks    = errors.New("registers disagree on the clock signal")
	ErrIllegalClockEdge         = errors.New("registers disagree on the clock edge")

	ErrSubcircuitMissingInput   = errors.New("subcircuit slice reads a top-level input that is not a subcircuit input")
	ErrSubcircuitImplicitOutput = errors.New("subcircuit internal signal is a top-level output but not a subcircuit output")

	ErrMissingModule = errors.New("module not found in netlist")
)
