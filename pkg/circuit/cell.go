package circuit

import "fmt"

// CellKind classifies the port shape of a cell.
type CellKind int

const (
	KindUnary CellKind = iota
	KindBinary
	KindMux
	KindRegister
)

// CellType is the closed enumeration of supported cell functions.
type CellType int

const (
	CellNone CellType = iota
	CellBuf
	CellNot
	CellAnd
	CellNand
	CellOr
	CellNor
	CellXor
	CellXnor
	CellAndNot
	CellOrNot
	CellMux
	CellDff
	CellDffR
	CellDffE
	CellDffER
)

// String returns a string representation of the cell type.
func (t CellType) String() string {
	switch t {
	case CellBuf:
		return "BUF"
	case CellNot:
		return "NOT"
	case CellAnd:
		return "AND"
	case CellNand:
		return "NAND"
	case CellOr:
		return "OR"
	case CellNor:
		return "NOR"
	case CellXor:
		return "XOR"
	case CellXnor:
		return "XNOR"
	case CellAndNot:
		return "ANDNOT"
	case CellOrNot:
		return "ORNOT"
	case CellMux:
		return "MUX"
	case CellDff:
		return "DFF"
	case CellDffR:
		return "DFFR"
	case CellDffE:
		return "DFFE"
	case CellDffER:
		return "DFFER"
	default:
		return "UNKNOWN"
	}
}

// Kind returns the port shape of the cell type.
func (t CellType) Kind() CellKind {
	switch t {
	case CellBuf, CellNot:
		return KindUnary
	case CellAnd, CellNand, CellOr, CellNor, CellXor, CellXnor, CellAndNot, CellOrNot:
		return KindBinary
	case CellMux:
		return KindMux
	case CellDff, CellDffR, CellDffE, CellDffER:
		return KindRegister
	default:
		panic(fmt.Sprintf("circuit: kind of unknown cell type %d", int(t)))
	}
}

// IsRegister reports whether the type is one of the flip-flop variants.
func (t CellType) IsRegister() bool {
	return t == CellDff || t == CellDffR || t == CellDffE || t == CellDffER
}

// HasReset reports whether the register variant carries a reset port.
func (t CellType) HasReset() bool { return t == CellDffR || t == CellDffER }

// HasEnable reports whether the register variant carries an enable port.
func (t CellType) HasEnable() bool { return t == CellDffE || t == CellDffER }

// DffSpec carries the polarity bits of a register cell: the triggering clock
// edge, the active level and value of the reset, and the active level of the
// enable.
type DffSpec struct {
	ClockPos  bool // trigger on the rising edge
	ResetPos  bool // reset asserted when R is 1
	ResetVal  bool // value loaded while reset is asserted
	EnablePos bool // data captured when E is 1
}

// Cell is one node of the circuit graph. The port fields used depend on the
// kind: unary cells use A, binary cells A and B, multiplexers A, B and S,
// registers C, D and optionally R and E. Y is the shared output slot (the Q
// output for registers).
type Cell struct {
	Name string
	Type CellType

	A, B, S SignalID
	C, D    SignalID
	R, E    SignalID
	Y       SignalID

	Dff DffSpec
}

// Output returns the output signal of the cell, uniformly over all variants.
func (c *Cell) Output() SignalID { return c.Y }

// IsRegister reports whether the cell is a flip-flop.
func (c *Cell) IsRegister() bool { return c.Type.IsRegister() }

// Inputs appends the input signals of the cell to dst and returns it. For
// registers this includes the clock and the optional reset and enable.
func (c *Cell) Inputs(dst []SignalID) []SignalID {
	switch c.Type.Kind() {
	case KindUnary:
		dst = append(dst, c.A)
	case KindBinary:
		dst = append(dst, c.A, c.B)
	case KindMux:
		dst = append(dst, c.A, c.B, c.S)
	case KindRegister:
		dst = append(dst, c.C, c.D)
		if c.Type.HasReset() {
			dst = append(dst, c.R)
		}
		if c.Type.HasEnable() {
			dst = append(dst, c.E)
		}
	}
	return dst
}

// combInputs appends the input signals that participate in the topological
// ordering of combinational logic. Registers break the combinational graph,
// so they contribute nothing.
func (c *Cell) combInputs(dst []SignalID) []SignalID {
	if c.IsRegister() {
		return dst
	}
	return c.Inputs(dst)
}

// String returns a string representation of the cell.
func (c *Cell) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.Type)
}

// Ops is the operation set the cell evaluator is polymorphic over. Boolean
// evaluation and symbolic (solver-variable) evaluation both implement it.
type Ops[V any] interface {
	// Lift converts a constant into a value.
	Lift(b bool) V
	Not(a V) V
	And(a, b V) V
	Or(a, b V) V
	Xor(a, b V) V
	// Mux returns b when s is true and a otherwise.
	Mux(s, a, b V) V
}

// Eval computes the output of the cell and stores it into curr.
// Combinational cells read their inputs from curr; registers read their
// ports from prev and apply the reset-over-enable update rule. The caller
// guarantees that the required entries exist (the cell sequence is
// topologically ordered). An unknown cell type is a fatal bug.
func Eval[V any](ops Ops[V], c *Cell, prev, curr map[SignalID]V) {
	switch c.Type {
	case CellBuf:
		curr[c.Y] = curr[c.A]
	case CellNot:
		curr[c.Y] = ops.Not(curr[c.A])
	case CellAnd:
		curr[c.Y] = ops.And(curr[c.A], curr[c.B])
	case CellNand:
		curr[c.Y] = ops.Not(ops.And(curr[c.A], curr[c.B]))
	case CellOr:
		curr[c.Y] = ops.Or(curr[c.A], curr[c.B])
	case CellNor:
		curr[c.Y] = ops.Not(ops.Or(curr[c.A], curr[c.B]))
	case CellXor:
		curr[c.Y] = ops.Xor(curr[c.A], curr[c.B])
	case CellXnor:
		curr[c.Y] = ops.Not(ops.Xor(curr[c.A], curr[c.B]))
	case CellAndNot:
		curr[c.Y] = ops.And(curr[c.A], ops.Not(curr[c.B]))
	case CellOrNot:
		curr[c.Y] = ops.Or(curr[c.A], ops.Not(curr[c.B]))
	case CellMux:
		curr[c.Y] = ops.Mux(curr[c.S], curr[c.A], curr[c.B])
	case CellDff, CellDffR, CellDffE, CellDffER:
		next := prev[c.D]
		if c.Type.HasEnable() {
			en := prev[c.E]
			if !c.Dff.EnablePos {
				en = ops.Not(en)
			}
			next = ops.Mux(en, prev[c.Y], next)
		}
		if c.Type.HasReset() {
			rst := prev[c.R]
			if !c.Dff.ResetPos {
				rst = ops.Not(rst)
			}
			next = ops.Mux(rst, next, ops.Lift(c.Dff.ResetVal))
		}
		curr[c.Y] = next
	default:
		panic(fmt.Sprintf("circuit: eval of unknown cell type %d", int(c.Type)))
	}
}

// BoolOps evaluates cells over plain booleans.
type BoolOps struct{}

// Lift implements Ops.
func (BoolOps) Lift(b bool) bool { return b }

// Not implements Ops.
func (BoolOps) Not(a bool) bool { return !a }

// And implements Ops.
func (BoolOps) And(a, b bool) bool { return a && b }

// Or implements Ops.
func (BoolOps) Or(a, b bool) bool { return a || b }

// Xor implements Ops.
func (BoolOps) Xor(a, b bool) bool { return a != b }

// Mux implements Ops.
func (BoolOps) Mux(s, a, b bool) bool {
	if s {
		return b
	}
	return a
}
