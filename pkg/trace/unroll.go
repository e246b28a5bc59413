package trace

import (
	"fmt"
	"sort"

	"github.com/go-air/gini/z"

	"github.com/fyerfyer/kfault/pkg/circuit"
)

// newState seeds a cycle state with the four constants. X and Z coerce to
// logic 0 in the two-valued model.
func (t *Trace) newState() State {
	return State{
		circuit.Sig0: t.solver.False(),
		circuit.Sig1: t.solver.True(),
		circuit.SigX: t.solver.False(),
		circuit.SigZ: t.solver.False(),
	}
}

// UnrollInit produces cycle 0. Primary inputs get one fresh variable shared
// by both traces unless faultable, in which case the faulty copy is the
// golden value behind a fault selector. Register outputs get independent
// fresh variables in each trace: the unconstrained initial state stands for
// any reachable state, so register faults at cycle 0 need no selectors.
// Combinational cells are then evaluated in topological order, with a
// selector spliced onto every faultable cell output in the faulty trace.
func (t *Trace) UnrollInit(faultable map[circuit.SignalID]struct{}) {
	if t.Len() != 0 {
		panic("trace: UnrollInit on a non-empty trace")
	}
	golden := t.newState()
	faulty := t.newState()
	faults := NewCycleFaults()
	ops := litOps{t.solver}

	for _, sig := range t.circ.SortedIns() {
		g := t.solver.NewVar()
		golden[sig] = g
		if _, ok := faultable[sig]; ok {
			spec := NewFaultSpec(t.solver)
			faults.add(sig, spec)
			faulty[sig] = spec.InduceFault(t.solver, g)
		} else {
			faulty[sig] = g
		}
	}

	for _, sig := range t.circ.SortedRegs() {
		golden[sig] = t.solver.NewVar()
		faulty[sig] = t.solver.NewVar()
	}

	empty := State{}
	for _, cell := range t.circ.Cells() {
		if cell.IsRegister() {
			continue
		}
		circuit.Eval[z.Lit](ops, cell, empty, golden)
		circuit.Eval[z.Lit](ops, cell, empty, faulty)

		out := cell.Output()
		if _, ok := faultable[out]; ok {
			spec := NewFaultSpec(t.solver)
			faults.add(out, spec)
			faulty[out] = spec.InduceFault(t.solver, faulty[out])
		}
	}

	t.Golden = append(t.Golden, golden)
	t.Faulty = append(t.Faulty, faulty)
	t.Faults = append(t.Faults, faults)
}

// Unroll produces the next cycle. Inputs are shared between the traces
// (modulo fault selectors); register outputs follow from the previous cycle
// under the reset-over-enable rule; combinational cell outputs get a
// selector only when faultable and combinationally connected to an alert
// signal, since a fault that cannot reach an alert in this cycle is already
// covered by the initial-state freedom of the next one.
func (t *Trace) Unroll(faultable, alerts map[circuit.SignalID]struct{}) {
	if t.Len() == 0 {
		panic("trace: Unroll before UnrollInit")
	}
	prevGolden := t.Golden[t.Len()-1]
	prevFaulty := t.Faulty[t.Len()-1]

	golden := t.newState()
	faulty := t.newState()
	faults := NewCycleFaults()
	ops := litOps{t.solver}

	for _, sig := range t.circ.SortedIns() {
		g := t.solver.NewVar()
		golden[sig] = g
		if _, ok := faultable[sig]; ok {
			spec := NewFaultSpec(t.solver)
			faults.add(sig, spec)
			faulty[sig] = spec.InduceFault(t.solver, g)
		} else {
			faulty[sig] = g
		}
	}

	for _, cell := range t.circ.Cells() {
		circuit.Eval[z.Lit](ops, cell, prevGolden, golden)
		circuit.Eval[z.Lit](ops, cell, prevFaulty, faulty)

		if cell.IsRegister() {
			continue
		}
		out := cell.Output()
		if _, ok := faultable[out]; !ok {
			continue
		}
		if !t.reachesAlert(out, alerts) {
			continue
		}
		spec := NewFaultSpec(t.solver)
		faults.add(out, spec)
		faulty[out] = spec.InduceFault(t.solver, faulty[out])
	}

	t.Golden = append(t.Golden, golden)
	t.Faulty = append(t.Faulty, faulty)
	t.Faults = append(t.Faults, faults)
}

func (t *Trace) reachesAlert(sig circuit.SignalID, alerts map[circuit.SignalID]struct{}) bool {
	conn := t.circ.ConnOuts(sig)
	for i, ok := conn.NextSet(0); ok; i, ok = conn.NextSet(i + 1) {
		if _, hit := alerts[circuit.SignalID(i)]; hit {
			return true
		}
	}
	return false
}

// sortedNames returns the map keys in ascending order so clause emission is
// deterministic.
func sortedNames(m map[string][]bool) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AssertInvariantsAtStep forces the golden-state bits of each invariant net
// to the given literal values, one unit clause per bit.
func (t *Trace) AssertInvariantsAtStep(invariants map[string][]bool, step int) error {
	if step >= t.Len() {
		return fmt.Errorf("invariant step %d beyond trace length %d", step, t.Len())
	}
	golden := t.Golden[step]
	for _, name := range sortedNames(invariants) {
		bits, err := t.circ.Bits(name)
		if err != nil {
			return fmt.Errorf("invariant %q: %w", name, err)
		}
		values := invariants[name]
		if len(bits) != len(values) {
			return fmt.Errorf("invariant %q: %d bits declared, net has %d", name, len(values), len(bits))
		}
		for pos, sig := range bits {
			lit := golden[sig]
			if !values[pos] {
				lit = lit.Not()
			}
			t.solver.AddClause(lit)
		}
	}
	return nil
}

// AssertNoAlertAtStep adds, for each alert net, one clause forcing both
// traces to hold the safe value at the given cycle.
func (t *Trace) AssertNoAlertAtStep(alerts map[string][]bool, step int) error {
	if step >= t.Len() {
		return fmt.Errorf("alert step %d beyond trace length %d", step, t.Len())
	}
	golden := t.Golden[step]
	faulty := t.Faulty[step]
	for _, name := range sortedNames(alerts) {
		bits, err := t.circ.Bits(name)
		if err != nil {
			return fmt.Errorf("alert %q: %w", name, err)
		}
		values := alerts[name]
		if len(bits) != len(values) {
			return fmt.Errorf("alert %q: %d bits declared, net has %d", name, len(values), len(bits))
		}
		safe := make([]z.Lit, 0, 2*len(bits))
		for pos, sig := range bits {
			g, f := golden[sig], faulty[sig]
			if !values[pos] {
				g, f = g.Not(), f.Not()
			}
			safe = append(safe, g, f)
		}
		t.solver.AddClause(t.solver.Ands(safe...))
	}
	return nil
}
