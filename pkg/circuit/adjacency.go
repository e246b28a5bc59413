package circuit

import "github.com/bits-and-blooms/bitset"

// BuildAdjacentLists computes the two per-signal backward-reachability
// overlays Procedures 1 and 2 depend on:
//
//   - ConnRegs(s): register outputs reachable from s by forward
//     combinational traversal, stopping at register input boundaries;
//   - ConnOuts(s): primary outputs reachable the same way;
//
// and derives PrevRegs from ConnRegs. Both overlays are computed in a single
// backward pass over the reverse combinational topological order. Successor
// sets are interned: many signals share the same *bitset.BitSet, with one
// canonical empty set, and a shared set is never mutated after it is
// published.
func (c *Circuit) BuildAdjacentLists() {
	// Map each signal to the cells reading it.
	sigToCells := make(map[SignalID][]*Cell)
	var inputs []SignalID
	for _, cell := range c.cells {
		inputs = cell.Inputs(inputs[:0])
		for _, sig := range inputs {
			sigToCells[sig] = append(sigToCells[sig], cell)
		}
	}

	// Order of exploration: constants, input ports, then cell outputs in
	// the (register-first, topological) cell order. The backward pass walks
	// this in reverse, so every combinational successor is finished before
	// its drivers.
	order := make([]SignalID, 0, 4+len(c.ins)+len(c.cells))
	order = append(order, Sig0, Sig1, SigX, SigZ)
	order = append(order, c.SortedIns()...)
	for _, cell := range c.cells {
		order = append(order, cell.Output())
	}

	c.connRegs = make(map[SignalID]*bitset.BitSet, len(order))
	c.connOuts = make(map[SignalID]*bitset.BitSet, len(order))

	for i := len(order) - 1; i >= 0; i-- {
		sig := order[i]

		var ownRegs, ownOuts *bitset.BitSet
		regShared := make(map[*bitset.BitSet]struct{})
		outShared := make(map[*bitset.BitSet]struct{})

		// A primary output reaches itself. Constants are never tracked.
		if _, isOut := c.outs[sig]; isOut && !sig.IsConst() {
			ownOuts = bitset.New(uint(sig) + 1)
			ownOuts.Set(uint(sig))
		}

		for _, cell := range sigToCells[sig] {
			if cell.IsRegister() {
				if ownRegs == nil {
					ownRegs = bitset.New(uint(cell.Output()) + 1)
				}
				ownRegs.Set(uint(cell.Output()))
				continue
			}
			succRegs := c.connRegs[cell.Output()]
			if succRegs != nil && succRegs.Any() {
				regShared[succRegs] = struct{}{}
			}
			succOuts := c.connOuts[cell.Output()]
			if succOuts != nil && succOuts.Any() {
				outShared[succOuts] = struct{}{}
			}
		}

		c.connRegs[sig] = internSet(ownRegs, regShared)
		c.connOuts[sig] = internSet(ownOuts, outShared)
	}

	// Previous registers of q: every register whose output cone contains q.
	c.prevRegs = make(map[SignalID]*bitset.BitSet, len(c.regOuts))
	for r := range c.regOuts {
		for q, ok := c.connRegs[r].NextSet(0); ok; q, ok = c.connRegs[r].NextSet(q + 1) {
			set := c.prevRegs[SignalID(q)]
			if set == nil {
				set = bitset.New(uint(r) + 1)
				c.prevRegs[SignalID(q)] = set
			}
			set.Set(uint(r))
		}
	}
}

// internSet combines a signal's own contribution with the shared successor
// sets. When nothing needs merging the shared set (or the canonical empty
// set) is reused by reference; otherwise a fresh union is built so no
// published set is ever mutated.
func internSet(own *bitset.BitSet, shared map[*bitset.BitSet]struct{}) *bitset.BitSet {
	ownEmpty := own == nil || !own.Any()
	switch {
	case ownEmpty && len(shared) == 0:
		return emptySet
	case len(shared) == 0:
		return own
	case ownEmpty && len(shared) == 1:
		for set := range shared {
			return set
		}
	}
	union := own
	if union == nil {
		union = bitset.New(0)
	}
	for set := range shared {
		union.InPlaceUnion(set)
	}
	return union
}
