package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Top circuit: two stages; the first stage (n1, r1) is the subcircuit, the
// second stage consumes its result.
const twoStageSrc = `{
  "modules": {
    "top": {
      "ports": {
        "clk": {"direction": "input", "bits": [2]},
        "in": {"direction": "input", "bits": [3]},
        "y": {"direction": "output", "bits": [7]}
      },
      "cells": {
        "n1": {"type": "$_NOT_", "connections": {"A": [3], "Y": [4]}},
        "r1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [4], "Q": [5]}},
        "n2": {"type": "$_NOT_", "connections": {"A": [5], "Y": [6]}},
        "n3": {"type": "$_BUF_", "connections": {"A": [6], "Y": [7]}}
      },
      "netnames": {
        "stage1": {"bits": [4, 5]}
      }
    }
  }
}`

func TestExtractSubcircuit(t *testing.T) {
	top := mustLoad(t, twoStageSrc)

	iface := `{"modules": {"stage1": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"in": {"direction": "input", "bits": [3]},
		"q": {"direction": "output", "bits": [5]}
	}}}}`
	sub, warnings, err := ExtractSubcircuit(top, []byte(iface), "stage1")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, sub.Cells(), 2)
	// Register-first order is preserved from the top circuit.
	assert.Equal(t, "r1", sub.Cells()[0].Name)
	assert.Equal(t, "n1", sub.Cells()[1].Name)
	assert.Contains(t, sub.Regs(), SignalID(5))
	assert.Equal(t, SignalID(2), sub.Clock())

	// The sliced net is carried over.
	assert.True(t, sub.Has("stage1"))
}

func TestExtractSubcircuitMissingInput(t *testing.T) {
	top := mustLoad(t, twoStageSrc)

	// The interface forgets the data input; the slice reads top input 3.
	iface := `{"modules": {"stage1": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"q": {"direction": "output", "bits": [5]}
	}}}}`
	_, _, err := ExtractSubcircuit(top, []byte(iface), "stage1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubcircuitMissingInput)
}

func TestExtractSubcircuitImplicitOutput(t *testing.T) {
	// Signal 4 is both internal to the slice and a top output.
	src := `{
	  "modules": {
	    "top": {
	      "ports": {
	        "in": {"direction": "input", "bits": [3]},
	        "mid": {"direction": "output", "bits": [4]},
	        "y": {"direction": "output", "bits": [5]}
	      },
	      "cells": {
	        "n1": {"type": "$_NOT_", "connections": {"A": [3], "Y": [4]}},
	        "n2": {"type": "$_NOT_", "connections": {"A": [4], "Y": [5]}}
	      },
	      "netnames": {}
	    }
	  }
	}`
	top := mustLoad(t, src)

	iface := `{"modules": {"slice": {"ports": {
		"in": {"direction": "input", "bits": [3]},
		"y": {"direction": "output", "bits": [5]}
	}}}}`
	_, _, err := ExtractSubcircuit(top, []byte(iface), "slice")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSubcircuitImplicitOutput)
}

func TestExtractSubcircuitWarnsUnusedInput(t *testing.T) {
	top := mustLoad(t, twoStageSrc)

	iface := `{"modules": {"stage1": {"ports": {
		"clk": {"direction": "input", "bits": [2]},
		"in": {"direction": "input", "bits": [3]},
		"spare": {"direction": "input", "bits": [9]},
		"q": {"direction": "output", "bits": [5]}
	}}}}`
	sub, warnings, err := ExtractSubcircuit(top, []byte(iface), "stage1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unused")
}
