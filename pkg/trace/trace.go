// Package trace builds the dual-trace symbolic model of a circuit: two
// per-cycle assignments of solver variables (golden and faulty) plus the
// fault selectors deciding where the traces may diverge.
package trace

import (
	"github.com/go-air/gini/z"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/sat"
)

// State maps each signal to its solver variable for one cycle.
type State map[circuit.SignalID]z.Lit

// FaultSpec is the fault selector of one signal at one cycle. It owns one
// solver variable: 0 means pass-through, 1 means bit-flip.
type FaultSpec struct {
	F0 z.Lit
}

// NewFaultSpec allocates a selector with a fresh solver variable.
func NewFaultSpec(s *sat.Solver) *FaultSpec {
	return &FaultSpec{F0: s.NewVar()}
}

// IsFaulted returns the selector literal.
func (f *FaultSpec) IsFaulted() z.Lit { return f.F0 }

// InduceFault returns a fresh variable y constrained to x XOR f0.
func (f *FaultSpec) InduceFault(s *sat.Solver, x z.Lit) z.Lit {
	y := s.NewVar()
	s.AddClause(x, f.F0, y.Not())
	s.AddClause(x.Not(), f.F0, y)
	s.AddClause(x, f.F0.Not(), y)
	s.AddClause(x.Not(), f.F0.Not(), y.Not())
	return y
}

// CycleFaults records the fault selectors allocated at one cycle, in
// allocation order so runs stay deterministic.
type CycleFaults struct {
	order []circuit.SignalID
	specs map[circuit.SignalID]*FaultSpec
}

// NewCycleFaults creates an empty selector registry.
func NewCycleFaults() *CycleFaults {
	return &CycleFaults{specs: make(map[circuit.SignalID]*FaultSpec)}
}

func (f *CycleFaults) add(sig circuit.SignalID, spec *FaultSpec) {
	f.order = append(f.order, sig)
	f.specs[sig] = spec
}

// Get returns the selector of sig, or nil when sig has none at this cycle.
func (f *CycleFaults) Get(sig circuit.SignalID) *FaultSpec { return f.specs[sig] }

// Signals returns the faultable signals of the cycle in allocation order.
func (f *CycleFaults) Signals() []circuit.SignalID { return f.order }

// Len returns the number of selectors.
func (f *CycleFaults) Len() int { return len(f.order) }

// Vars returns the selector literals in allocation order.
func (f *CycleFaults) Vars() []z.Lit {
	vars := make([]z.Lit, 0, len(f.order))
	for _, sig := range f.order {
		vars = append(vars, f.specs[sig].F0)
	}
	return vars
}

// Trace owns the golden and faulty state sequences and the per-cycle fault
// selectors. All selector variables live in the trace's solver; tearing the
// solver down invalidates the trace.
type Trace struct {
	circ   *circuit.Circuit
	solver *sat.Solver

	Golden []State
	Faulty []State
	Faults []*CycleFaults
}

// New creates an empty trace over the circuit and solver.
func New(c *circuit.Circuit, s *sat.Solver) *Trace {
	return &Trace{circ: c, solver: s}
}

// Len returns the number of produced cycles.
func (t *Trace) Len() int { return len(t.Golden) }

// Circuit returns the circuit the trace was built from.
func (t *Trace) Circuit() *circuit.Circuit { return t.circ }

// Solver returns the solver the trace allocates into.
func (t *Trace) Solver() *sat.Solver { return t.solver }

// litOps evaluates cells over solver literals by emitting gates.
type litOps struct {
	s *sat.Solver
}

func (o litOps) Lift(b bool) z.Lit {
	if b {
		return o.s.True()
	}
	return o.s.False()
}

func (o litOps) Not(a z.Lit) z.Lit        { return o.s.Not(a) }
func (o litOps) And(a, b z.Lit) z.Lit     { return o.s.And(a, b) }
func (o litOps) Or(a, b z.Lit) z.Lit      { return o.s.Or(a, b) }
func (o litOps) Xor(a, b z.Lit) z.Lit     { return o.s.Xor(a, b) }
func (o litOps) Mux(s, a, b z.Lit) z.Lit  { return o.s.Mux(s, a, b) }
