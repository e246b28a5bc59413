package circuit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Circuit is the loaded gate-level netlist of one module: the known signals,
// port and register sets, the cell sequence in register-first topological
// order, the named nets, and the adjacency overlays computed by
// BuildAdjacentLists.
type Circuit struct {
	name string

	signals map[SignalID]struct{}
	ins     map[SignalID]struct{}
	outs    map[SignalID]struct{}
	regOuts map[SignalID]struct{}

	cells    []*Cell
	nets     map[string][]SignalID
	bitNames map[SignalID]BitRef

	clock    SignalID
	clockPos bool

	connRegs map[SignalID]*bitset.BitSet
	connOuts map[SignalID]*bitset.BitSet
	prevRegs map[SignalID]*bitset.BitSet
}

// Name returns the module name the circuit was loaded from.
func (c *Circuit) Name() string { return c.name }

// Cells returns the cell sequence: registers first, then a valid
// combinational topological order.
func (c *Circuit) Cells() []*Cell { return c.cells }

// Sigs returns the set of known signals, including the four constants.
func (c *Circuit) Sigs() map[SignalID]struct{} { return c.signals }

// Ins returns the input port signal set.
func (c *Circuit) Ins() map[SignalID]struct{} { return c.ins }

// Outs returns the output port signal set.
func (c *Circuit) Outs() map[SignalID]struct{} { return c.outs }

// Regs returns the register output signal set.
func (c *Circuit) Regs() map[SignalID]struct{} { return c.regOuts }

// Nets returns the net-name table.
func (c *Circuit) Nets() map[string][]SignalID { return c.nets }

// Clock returns the clock signal, or SigNone for a register-free circuit.
func (c *Circuit) Clock() SignalID { return c.clock }

// Has reports whether the named net exists.
func (c *Circuit) Has(name string) bool {
	_, ok := c.nets[name]
	return ok
}

// Bits returns the bit signals of the named net.
func (c *Circuit) Bits(name string) ([]SignalID, error) {
	bits, ok := c.nets[name]
	if !ok {
		return nil, fmt.Errorf("net %q: %w", name, ErrIllegalMissingSignals)
	}
	return bits, nil
}

// BitName returns the preferred human-readable label of the signal.
func (c *Circuit) BitName(sig SignalID) BitRef { return c.bitNames[sig] }

// SortedIns returns the input port signals in ascending order.
func (c *Circuit) SortedIns() []SignalID { return sortedSignals(c.ins) }

// SortedOuts returns the output port signals in ascending order.
func (c *Circuit) SortedOuts() []SignalID { return sortedSignals(c.outs) }

// SortedRegs returns the register output signals in ascending order.
func (c *Circuit) SortedRegs() []SignalID { return sortedSignals(c.regOuts) }

func sortedSignals(set map[SignalID]struct{}) []SignalID {
	sigs := make([]SignalID, 0, len(set))
	for sig := range set {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })
	return sigs
}

// Stats returns a one-shot summary of the circuit size.
func (c *Circuit) Stats() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cells=%d sigs=%d ins=%d outs=%d regs=%d nets=%d",
		len(c.cells), len(c.signals), len(c.ins), len(c.outs), len(c.regOuts), len(c.nets))
	return b.String()
}

// raw netlist shapes; the tables stay raw so key declaration order can be
// recovered before decoding.
type rawNetlist struct {
	Modules map[string]json.RawMessage `json:"modules"`
}

type rawModule struct {
	Ports    json.RawMessage `json:"ports"`
	Cells    json.RawMessage `json:"cells"`
	Netnames json.RawMessage `json:"netnames"`
}

type rawPort struct {
	Direction string          `json:"direction"`
	Bits      json.RawMessage `json:"bits"`
}

type rawCell struct {
	Type        string                     `json:"type"`
	Connections map[string]json.RawMessage `json:"connections"`
}

type rawNet struct {
	Bits json.RawMessage `json:"bits"`
}

// orderedKeys walks a raw JSON object and returns its top-level keys in
// declaration order.
func orderedKeys(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// decodeBits converts a raw bit list into signal ids. Integer bits map
// directly; string tokens name the four constants.
func decodeBits(raw json.RawMessage) ([]SignalID, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, ErrIllegalSignalList
	}
	sigs := make([]SignalID, 0, len(items))
	for _, item := range items {
		var n uint32
		if err := json.Unmarshal(item, &n); err == nil {
			sigs = append(sigs, SignalID(n))
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIllegalSignalType, item)
		}
		sig, err := signalFromToken(s)
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

// LoadCircuitFile loads the named module from a netlist JSON file.
func LoadCircuitFile(path, module string) (*Circuit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read netlist: %w", err)
	}
	return LoadCircuit(data, module)
}

// LoadCircuit loads the named module from netlist JSON data, canonicalizes
// the cell order, and validates the structural invariants.
func LoadCircuit(data []byte, module string) (*Circuit, error) {
	var file rawNetlist
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse netlist: %w", err)
	}
	rawMod, ok := file.Modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingModule, module)
	}
	var mod rawModule
	if err := json.Unmarshal(rawMod, &mod); err != nil {
		return nil, fmt.Errorf("parse module %q: %w", module, err)
	}

	c := newCircuit(module)
	if err := c.loadPorts(mod.Ports); err != nil {
		return nil, err
	}
	pending, err := c.loadCells(mod.Cells)
	if err != nil {
		return nil, err
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: %d unresolved cell inputs", ErrIllegalMissingSignals, len(pending))
	}
	for sig := range c.outs {
		if _, ok := c.signals[sig]; !ok {
			return nil, fmt.Errorf("%w: output %s has no producer", ErrIllegalMissingSignals, sig)
		}
	}
	if err := c.resolveClock(); err != nil {
		return nil, err
	}
	if err := c.linearize(); err != nil {
		return nil, err
	}
	if err := c.loadNetnames(mod.Netnames); err != nil {
		return nil, err
	}
	c.nameConstants()
	return c, nil
}

func newCircuit(name string) *Circuit {
	c := &Circuit{
		name:     name,
		signals:  make(map[SignalID]struct{}),
		ins:      make(map[SignalID]struct{}),
		outs:     make(map[SignalID]struct{}),
		regOuts:  make(map[SignalID]struct{}),
		nets:     make(map[string][]SignalID),
		bitNames: make(map[SignalID]BitRef),
		clock:    SigNone,
	}
	for _, sig := range [...]SignalID{Sig0, Sig1, SigX, SigZ} {
		c.signals[sig] = struct{}{}
	}
	return c
}

func (c *Circuit) loadPorts(raw json.RawMessage) error {
	var ports map[string]rawPort
	if err := json.Unmarshal(raw, &ports); err != nil {
		return fmt.Errorf("parse ports: %w", err)
	}
	names, err := orderedKeys(raw)
	if err != nil {
		return fmt.Errorf("parse ports: %w", err)
	}
	for _, name := range names {
		port := ports[name]
		if port.Direction != "input" && port.Direction != "output" {
			return fmt.Errorf("%w: port %q has direction %q", ErrIllegalPortDirection, name, port.Direction)
		}
		bits, err := decodeBits(port.Bits)
		if err != nil {
			return fmt.Errorf("port %q: %w", name, err)
		}
		if _, ok := c.nets[name]; ok {
			return fmt.Errorf("%w: port %q", ErrIllegalNameRedeclaration, name)
		}
		c.nets[name] = bits
		c.addBitNames(name, bits)
		for _, sig := range bits {
			if port.Direction == "input" {
				c.ins[sig] = struct{}{}
				c.signals[sig] = struct{}{}
			} else {
				c.outs[sig] = struct{}{}
			}
		}
	}
	return nil
}

// loadCells processes the cell table in declaration order. It returns the
// set of signals that were read by some cell but never produced.
func (c *Circuit) loadCells(raw json.RawMessage) (map[SignalID]struct{}, error) {
	var cells map[string]rawCell
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, fmt.Errorf("parse cells: %w", err)
	}
	names, err := orderedKeys(raw)
	if err != nil {
		return nil, fmt.Errorf("parse cells: %w", err)
	}

	pending := make(map[SignalID]struct{})
	noteInput := func(sig SignalID) {
		if _, ok := c.signals[sig]; !ok {
			pending[sig] = struct{}{}
		}
	}

	for _, name := range names {
		rc := cells[name]
		if rc.Type == "$assert" {
			continue
		}
		typ, dff := CellTypeFromString(rc.Type)
		if typ == CellNone {
			return nil, fmt.Errorf("%w: cell %q has type %q", ErrIllegalCellType, name, rc.Type)
		}

		conn := func(letter string) (SignalID, error) {
			rawBits, ok := rc.Connections[letter]
			if !ok {
				return SigNone, fmt.Errorf("cell %q: missing connection %q", name, letter)
			}
			bits, err := decodeBits(rawBits)
			if err != nil || len(bits) == 0 {
				return SigNone, fmt.Errorf("cell %q connection %q: %w", name, letter, ErrIllegalSignalList)
			}
			return bits[0], nil
		}

		cell := &Cell{Name: name, Type: typ, Dff: dff}
		switch typ.Kind() {
		case KindUnary:
			a, err := conn("A")
			if err != nil {
				return nil, err
			}
			y, err := conn("Y")
			if err != nil {
				return nil, err
			}
			if a == y {
				return nil, fmt.Errorf("%w: cell %q", ErrIllegalCellCycle, name)
			}
			noteInput(a)
			cell.A, cell.Y = a, y
		case KindBinary:
			a, err := conn("A")
			if err != nil {
				return nil, err
			}
			b, err := conn("B")
			if err != nil {
				return nil, err
			}
			y, err := conn("Y")
			if err != nil {
				return nil, err
			}
			if a == y || b == y {
				return nil, fmt.Errorf("%w: cell %q", ErrIllegalCellCycle, name)
			}
			noteInput(a)
			noteInput(b)
			cell.A, cell.B, cell.Y = a, b, y
		case KindMux:
			a, err := conn("A")
			if err != nil {
				return nil, err
			}
			b, err := conn("B")
			if err != nil {
				return nil, err
			}
			s, err := conn("S")
			if err != nil {
				return nil, err
			}
			y, err := conn("Y")
			if err != nil {
				return nil, err
			}
			if a == y || b == y || s == y {
				return nil, fmt.Errorf("%w: cell %q", ErrIllegalCellCycle, name)
			}
			noteInput(a)
			noteInput(b)
			noteInput(s)
			cell.A, cell.B, cell.S, cell.Y = a, b, s, y
		case KindRegister:
			clk, err := conn("C")
			if err != nil {
				return nil, err
			}
			d, err := conn("D")
			if err != nil {
				return nil, err
			}
			q, err := conn("Q")
			if err != nil {
				return nil, err
			}
			if clk == q {
				return nil, fmt.Errorf("%w: cell %q", ErrIllegalCellCycle, name)
			}
			noteInput(clk)
			noteInput(d)
			cell.C, cell.D, cell.Y = clk, d, q
			if typ.HasReset() {
				r, err := conn("R")
				if err != nil {
					return nil, err
				}
				if r == q {
					return nil, fmt.Errorf("%w: cell %q", ErrIllegalCellCycle, name)
				}
				noteInput(r)
				cell.R = r
			}
			if typ.HasEnable() {
				e, err := conn("E")
				if err != nil {
					return nil, err
				}
				if e == q {
					return nil, fmt.Errorf("%w: cell %q", ErrIllegalCellCycle, name)
				}
				noteInput(e)
				cell.E = e
			}
		}

		if _, ok := c.signals[cell.Y]; ok {
			return nil, fmt.Errorf("%w: cell %q redefines signal %s", ErrIllegalNameRedeclaration, name, cell.Y)
		}
		c.signals[cell.Y] = struct{}{}
		if typ.IsRegister() {
			c.regOuts[cell.Y] = struct{}{}
		}
		delete(pending, cell.Y)
		c.cells = append(c.cells, cell)
	}
	return pending, nil
}

// resolveClock picks the clock from the first register and checks that all
// registers agree on it and on the triggering edge.
func (c *Circuit) resolveClock() error {
	foundPos, foundNeg := false, false
	for _, cell := range c.cells {
		if !cell.IsRegister() {
			continue
		}
		if cell.Dff.ClockPos {
			foundPos = true
		} else {
			foundNeg = true
		}
		if c.clock == SigNone {
			if cell.C.IsConst() {
				return fmt.Errorf("%w: register %q", ErrIllegalClockSignal, cell.Name)
			}
			c.clock = cell.C
			c.clockPos = cell.Dff.ClockPos
		} else if cell.C != c.clock {
			return fmt.Errorf("%w: register %q", ErrIllegalMultipleClocks, cell.Name)
		}
	}
	if foundPos && foundNeg {
		return ErrIllegalClockEdge
	}
	return nil
}

// linearize reorders the cells so that registers come first and every
// combinational cell follows the producers of all its inputs. Inputs,
// constants and register outputs seed the visited set; a scan pass that
// makes no progress means a combinational loop.
func (c *Circuit) linearize() error {
	visited := make(map[SignalID]struct{}, len(c.signals))
	for _, sig := range [...]SignalID{Sig0, Sig1, SigX, SigZ} {
		visited[sig] = struct{}{}
	}
	for sig := range c.ins {
		visited[sig] = struct{}{}
	}

	order := make([]*Cell, 0, len(c.cells))
	emitted := make(map[*Cell]struct{}, len(c.cells))
	for _, cell := range c.cells {
		if cell.IsRegister() {
			order = append(order, cell)
			emitted[cell] = struct{}{}
			visited[cell.Y] = struct{}{}
		}
	}

	var inputs []SignalID
	for len(order) != len(c.cells) {
		progress := false
		for _, cell := range c.cells {
			if _, done := emitted[cell]; done || cell.IsRegister() {
				continue
			}
			ready := true
			inputs = cell.combInputs(inputs[:0])
			for _, sig := range inputs {
				if _, ok := visited[sig]; !ok {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			visited[cell.Y] = struct{}{}
			emitted[cell] = struct{}{}
			order = append(order, cell)
			progress = true
		}
		if !progress {
			return fmt.Errorf("%w: combinational loop", ErrIllegalCellCycle)
		}
	}
	c.cells = order
	return nil
}

func (c *Circuit) loadNetnames(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var nets map[string]rawNet
	if err := json.Unmarshal(raw, &nets); err != nil {
		return fmt.Errorf("parse netnames: %w", err)
	}
	names, err := orderedKeys(raw)
	if err != nil {
		return fmt.Errorf("parse netnames: %w", err)
	}
	for _, name := range names {
		bits, err := decodeBits(nets[name].Bits)
		if err != nil {
			return fmt.Errorf("net %q: %w", name, err)
		}
		if known, ok := c.nets[name]; ok {
			// Redeclaration is fine only if the bit sequence matches.
			if len(known) != len(bits) {
				return fmt.Errorf("%w: net %q", ErrIllegalNameRedeclaration, name)
			}
			for i := range known {
				if known[i] != bits[i] {
					return fmt.Errorf("%w: net %q", ErrIllegalNameRedeclaration, name)
				}
			}
			continue
		}
		c.nets[name] = bits
		c.addBitNames(name, bits)
	}
	return nil
}

// addBitNames records (name, pos) labels for the given bits, keeping the
// preferred label per signal.
func (c *Circuit) addBitNames(name string, bits []SignalID) {
	for pos, sig := range bits {
		ref := NewBitRef(name, uint32(pos))
		if cur, ok := c.bitNames[sig]; !ok || ref.Less(cur) {
			c.bitNames[sig] = ref
		}
	}
}

func (c *Circuit) nameConstants() {
	c.bitNames[Sig0] = NewBitRef("constant 0", 0)
	c.bitNames[Sig1] = NewBitRef("constant 1", 0)
	c.bitNames[SigX] = NewBitRef("constant X", 0)
	c.bitNames[SigZ] = NewBitRef("constant Z", 0)
}

// emptySet is the canonical shared empty adjacency set.
var emptySet = bitset.New(0)

// ConnRegs returns the register outputs reachable from sig through
// combinational logic. BuildAdjacentLists must have run. The returned set is
// shared and must not be mutated.
func (c *Circuit) ConnRegs(sig SignalID) *bitset.BitSet {
	if set, ok := c.connRegs[sig]; ok {
		return set
	}
	return emptySet
}

// ConnOuts returns the primary outputs reachable from sig through
// combinational logic. The returned set is shared and must not be mutated.
func (c *Circuit) ConnOuts(sig SignalID) *bitset.BitSet {
	if set, ok := c.connOuts[sig]; ok {
		return set
	}
	return emptySet
}

// PrevRegs returns the registers whose outputs reach the given register's
// input cone, i.e. the predecessors of q in the register graph.
func (c *Circuit) PrevRegs(q SignalID) *bitset.BitSet {
	if set, ok := c.prevRegs[q]; ok {
		return set
	}
	return emptySet
}
