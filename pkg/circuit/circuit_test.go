package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustLoad parses a netlist literal for module "top".
func mustLoad(t *testing.T, src string) *Circuit {
	t.Helper()
	c, err := LoadCircuit([]byte(src), "top")
	require.NoError(t, err)
	return c
}

const simpleWire = `{
  "modules": {
    "top": {
      "ports": {
        "a": {"direction": "input", "bits": [2]},
        "y": {"direction": "output", "bits": [3]}
      },
      "cells": {
        "b1": {"type": "$_BUF_", "connections": {"A": [2], "Y": [3]}}
      },
      "netnames": {
        "a": {"bits": [2]},
        "y": {"bits": [3]}
      }
    }
  }
}`

func TestLoadSimpleWire(t *testing.T) {
	c := mustLoad(t, simpleWire)

	assert.Equal(t, "top", c.Name())
	assert.Len(t, c.Cells(), 1)
	assert.Contains(t, c.Ins(), SignalID(2))
	assert.Contains(t, c.Outs(), SignalID(3))
	assert.Empty(t, c.Regs())
	assert.Equal(t, SigNone, c.Clock())

	// The four constants are always known.
	for _, sig := range []SignalID{Sig0, Sig1, SigX, SigZ} {
		assert.Contains(t, c.Sigs(), sig)
	}
}

func TestProducerUniqueness(t *testing.T) {
	c := mustLoad(t, simpleWire)

	// Every non-constant signal has exactly one producer: an input port or
	// one cell output.
	producers := make(map[SignalID]int)
	for sig := range c.Ins() {
		producers[sig]++
	}
	for _, cell := range c.Cells() {
		producers[cell.Output()]++
	}
	for sig := range c.Sigs() {
		if sig.IsConst() {
			continue
		}
		assert.Equal(t, 1, producers[sig], "signal %s", sig)
	}
}

func TestTopologicalOrder(t *testing.T) {
	// Cells declared in reverse dependency order; the loader must reorder
	// them so producers come first and registers lead the sequence.
	src := `{
	  "modules": {
	    "top": {
	      "ports": {
	        "clk": {"direction": "input", "bits": [2]},
	        "a": {"direction": "input", "bits": [3]},
	        "y": {"direction": "output", "bits": [6]}
	      },
	      "cells": {
	        "n2": {"type": "$_NOT_", "connections": {"A": [5], "Y": [6]}},
	        "n1": {"type": "$_NOT_", "connections": {"A": [4], "Y": [5]}},
	        "r1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}}
	      },
	      "netnames": {}
	    }
	  }
	}`
	c := mustLoad(t, src)
	require.Len(t, c.Cells(), 3)
	assert.Equal(t, "r1", c.Cells()[0].Name)
	assert.Equal(t, "n1", c.Cells()[1].Name)
	assert.Equal(t, "n2", c.Cells()[2].Name)
	assert.Equal(t, SignalID(2), c.Clock())

	// Invariant: every combinational cell follows the producers of all its
	// inputs.
	seen := map[SignalID]struct{}{Sig0: {}, Sig1: {}, SigX: {}, SigZ: {}}
	for sig := range c.Ins() {
		seen[sig] = struct{}{}
	}
	for _, cell := range c.Cells() {
		if cell.IsRegister() {
			seen[cell.Output()] = struct{}{}
		}
	}
	var inputs []SignalID
	for _, cell := range c.Cells() {
		if cell.IsRegister() {
			continue
		}
		inputs = cell.Inputs(inputs[:0])
		for _, sig := range inputs {
			_, ok := seen[sig]
			assert.True(t, ok, "cell %s input %s not yet produced", cell.Name, sig)
		}
		seen[cell.Output()] = struct{}{}
	}
}

func TestConstantBits(t *testing.T) {
	src := `{
	  "modules": {
	    "top": {
	      "ports": {
	        "a": {"direction": "input", "bits": [2]},
	        "y": {"direction": "output", "bits": [3]}
	      },
	      "cells": {
	        "a1": {"type": "$_AND_", "connections": {"A": [2], "B": ["1"], "Y": [3]}}
	      },
	      "netnames": {}
	    }
	  }
	}`
	c := mustLoad(t, src)
	require.Len(t, c.Cells(), 1)
	assert.Equal(t, Sig1, c.Cells()[0].B)
}

func TestLoaderErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want error
	}{
		{
			name: "unknown cell type",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
				"cells": {"c1": {"type": "$_FOO_", "connections": {"A": [2], "Y": [3]}}},
				"netnames": {}}}}`,
			want: ErrIllegalCellType,
		},
		{
			name: "self loop",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
				"cells": {"c1": {"type": "$_AND_", "connections": {"A": [2], "B": [3], "Y": [3]}}},
				"netnames": {}}}}`,
			want: ErrIllegalCellCycle,
		},
		{
			name: "output redeclaration",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
				"cells": {
					"c1": {"type": "$_NOT_", "connections": {"A": [2], "Y": [3]}},
					"c2": {"type": "$_NOT_", "connections": {"A": [2], "Y": [3]}}},
				"netnames": {}}}}`,
			want: ErrIllegalNameRedeclaration,
		},
		{
			name: "missing producer",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
				"cells": {"c1": {"type": "$_NOT_", "connections": {"A": [9], "Y": [3]}}},
				"netnames": {}}}}`,
			want: ErrIllegalMissingSignals,
		},
		{
			name: "output without producer",
			src: `{"modules": {"top": {"ports": {"y": {"direction": "output", "bits": [7]}},
				"cells": {}, "netnames": {}}}}`,
			want: ErrIllegalMissingSignals,
		},
		{
			name: "bad port direction",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "inout", "bits": [2]}},
				"cells": {}, "netnames": {}}}}`,
			want: ErrIllegalPortDirection,
		},
		{
			name: "multiple clocks",
			src: `{"modules": {"top": {"ports": {
					"c1": {"direction": "input", "bits": [2]},
					"c2": {"direction": "input", "bits": [3]},
					"d": {"direction": "input", "bits": [4]}},
				"cells": {
					"r1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [4], "Q": [5]}},
					"r2": {"type": "$_DFF_P_", "connections": {"C": [3], "D": [4], "Q": [6]}}},
				"netnames": {}}}}`,
			want: ErrIllegalMultipleClocks,
		},
		{
			name: "clock edge mismatch",
			src: `{"modules": {"top": {"ports": {
					"clk": {"direction": "input", "bits": [2]},
					"d": {"direction": "input", "bits": [3]}},
				"cells": {
					"r1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}},
					"r2": {"type": "$_DFF_N_", "connections": {"C": [2], "D": [3], "Q": [5]}}},
				"netnames": {}}}}`,
			want: ErrIllegalClockEdge,
		},
		{
			name: "constant clock",
			src: `{"modules": {"top": {"ports": {"d": {"direction": "input", "bits": [2]}},
				"cells": {"r1": {"type": "$_DFF_P_", "connections": {"C": ["1"], "D": [2], "Q": [3]}}},
				"netnames": {}}}}`,
			want: ErrIllegalClockSignal,
		},
		{
			name: "net redeclaration mismatch",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
				"cells": {},
				"netnames": {"a": {"bits": [3]}}}}}`,
			want: ErrIllegalNameRedeclaration,
		},
		{
			name: "combinational loop",
			src: `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
				"cells": {
					"c1": {"type": "$_AND_", "connections": {"A": [2], "B": [4], "Y": [3]}},
					"c2": {"type": "$_AND_", "connections": {"A": [2], "B": [3], "Y": [4]}}},
				"netnames": {}}}}`,
			want: ErrIllegalCellCycle,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCircuit([]byte(tc.src), "top")
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNetRedeclarationExactMatchOK(t *testing.T) {
	src := `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2, 3]}},
		"cells": {},
		"netnames": {"a": {"bits": [2, 3]}}}}}`
	c := mustLoad(t, src)
	bits, err := c.Bits("a")
	require.NoError(t, err)
	assert.Equal(t, []SignalID{2, 3}, bits)
}

func TestBitLabelPreference(t *testing.T) {
	// The same bit appears under the port name, a synthesized name, a deep
	// name, and a short flat net name; the one-letter port name must win.
	src := `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
		"cells": {},
		"netnames": {
			"_auto_42": {"bits": [2]},
			"u.core.state": {"bits": [2]},
			"st": {"bits": [2]}
		}}}}`
	c := mustLoad(t, src)
	assert.Equal(t, "a", c.BitName(2).Name())

	// Without the port label the short flat net name wins.
	ref := NewBitRef("st", 0)
	assert.True(t, ref.Less(NewBitRef("_auto_42", 0)))
	assert.True(t, ref.Less(NewBitRef("u.core.state", 0)))
	assert.True(t, NewBitRef("u.core.state", 0).Less(NewBitRef("_auto_42", 0)))
}

func TestSkipAssertCells(t *testing.T) {
	src := `{"modules": {"top": {"ports": {"a": {"direction": "input", "bits": [2]}},
		"cells": {"chk": {"type": "$assert", "connections": {"A": [2]}}},
		"netnames": {}}}}`
	c := mustLoad(t, src)
	assert.Empty(t, c.Cells())
}
