package circuit

import (
	"encoding/json"
	"fmt"
	"os"
)

// ExtractSubcircuitFile extracts the named subcircuit interface from a JSON
// file. See ExtractSubcircuit.
func ExtractSubcircuitFile(top *Circuit, path, module string) (*Circuit, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read subcircuit interface: %w", err)
	}
	return ExtractSubcircuit(top, data, module)
}

// ExtractSubcircuit carves a sub-DAG out of the top circuit. The interface
// data declares only the ports of the sub-module; the cells are found by
// backward traversal from the subcircuit outputs through the top circuit,
// stopping at the subcircuit inputs. Visited cells keep the top-level
// topological order. The returned warnings report unused subcircuit inputs
// and external cells that read subcircuit-internal signals.
func ExtractSubcircuit(top *Circuit, data []byte, module string) (*Circuit, []string, error) {
	var file rawNetlist
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse subcircuit interface: %w", err)
	}
	rawMod, ok := file.Modules[module]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrMissingModule, module)
	}
	var mod rawModule
	if err := json.Unmarshal(rawMod, &mod); err != nil {
		return nil, nil, fmt.Errorf("parse module %q: %w", module, err)
	}

	sub := newCircuit(module)
	if err := sub.loadPorts(mod.Ports); err != nil {
		return nil, nil, err
	}

	// Backward fixpoint from the subcircuit outputs through the top cells.
	visitedSigs := make(map[SignalID]struct{}, len(sub.outs))
	for sig := range sub.outs {
		visitedSigs[sig] = struct{}{}
	}
	visitedCells := make(map[*Cell]struct{})

	var inputs []SignalID
	for prev := -1; prev != len(visitedSigs); {
		prev = len(visitedSigs)
		for i := len(top.cells) - 1; i >= 0; i-- {
			cell := top.cells[i]
			if _, done := visitedCells[cell]; done {
				continue
			}
			out := cell.Output()
			if _, ok := visitedSigs[out]; !ok {
				continue
			}
			if _, ok := sub.ins[out]; ok {
				// The traversal stops at the subcircuit inputs.
				continue
			}
			inputs = cell.Inputs(inputs[:0])
			for _, sig := range inputs {
				_, topIn := top.ins[sig]
				_, subIn := sub.ins[sig]
				if topIn && !subIn {
					return nil, nil, fmt.Errorf("%w: signal %s feeding cell %q",
						ErrSubcircuitMissingInput, sig, cell.Name)
				}
				visitedSigs[sig] = struct{}{}
			}
			visitedCells[cell] = struct{}{}
			if cell.IsRegister() {
				sub.regOuts[out] = struct{}{}
			}
		}
	}

	var warnings []string
	for sig := range sub.ins {
		if _, ok := visitedSigs[sig]; !ok {
			warnings = append(warnings, fmt.Sprintf("subcircuit input %s is unused", sig))
		}
	}

	// An internal signal that the top module exports must be a declared
	// subcircuit output, otherwise the slice hides an observable wire.
	for sig := range visitedSigs {
		if sig.IsConst() {
			continue
		}
		_, topOut := top.outs[sig]
		_, subOut := sub.outs[sig]
		if topOut && !subOut {
			return nil, nil, fmt.Errorf("%w: signal %s", ErrSubcircuitImplicitOutput, sig)
		}
	}

	// Cells outside the slice reading internal signals mean the slice has
	// implicit fan-out; report them.
	for _, cell := range top.cells {
		if _, done := visitedCells[cell]; done {
			continue
		}
		inputs = cell.Inputs(inputs[:0])
		for _, sig := range inputs {
			if sig.IsConst() {
				continue
			}
			if _, ok := sub.ins[sig]; ok {
				continue
			}
			_, inside := visitedSigs[sig]
			_, declared := sub.outs[sig]
			if inside && !declared {
				warnings = append(warnings, fmt.Sprintf(
					"external cell %q reads subcircuit-internal signal %s", cell.Name, sig))
			}
		}
	}

	for sig := range visitedSigs {
		sub.signals[sig] = struct{}{}
	}

	// Copy the visited cells preserving the top-level order (registers
	// first, then topological).
	sub.cells = make([]*Cell, 0, len(visitedCells))
	for _, cell := range top.cells {
		if _, ok := visitedCells[cell]; ok {
			copied := *cell
			sub.cells = append(sub.cells, &copied)
		}
	}

	if err := sub.resolveClock(); err != nil {
		return nil, nil, err
	}

	// Take over the net names whose bits intersect the slice.
	for name, bits := range top.nets {
		if known, ok := sub.nets[name]; ok {
			if len(known) != len(bits) {
				return nil, nil, fmt.Errorf("%w: net %q", ErrIllegalNameRedeclaration, name)
			}
			for i := range known {
				if known[i] != bits[i] {
					return nil, nil, fmt.Errorf("%w: net %q", ErrIllegalNameRedeclaration, name)
				}
			}
			continue
		}
		included := false
		for _, sig := range bits {
			if _, ok := sub.signals[sig]; ok {
				included = true
				break
			}
		}
		if included {
			sub.nets[name] = bits
			sub.addBitNames(name, bits)
		}
	}
	sub.nameConstants()

	return sub, warnings, nil
}
