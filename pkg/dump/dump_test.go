package dump

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/sat"
	"github.com/fyerfyer/kfault/pkg/trace"
)

const regSrc = `{
  "modules": {
    "top": {
      "ports": {
        "clk": {"direction": "input", "bits": [2]},
        "in": {"direction": "input", "bits": [3]},
        "q": {"direction": "output", "bits": [4]}
      },
      "cells": {
        "r1": {"type": "$_DFF_P_", "connections": {"C": [2], "D": [3], "Q": [4]}}
      },
      "netnames": {}
    }
  }
}`

func TestWritePartitioning(t *testing.T) {
	part0 := bitset.New(8)
	part0.Set(4)
	part1 := bitset.New(8)
	part1.Set(5)
	part1.Set(6)

	path := filepath.Join(t.TempDir(), "partitioning-1.json")
	require.NoError(t, WritePartitioning(path, []*bitset.BitSet{part0, part1}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string][]uint32
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string][]uint32{"0": {4}, "1": {5, 6}}, got)
}

func TestWriteVCDAndGTKW(t *testing.T) {
	circ, err := circuit.LoadCircuit([]byte(regSrc), "top")
	require.NoError(t, err)
	circ.BuildAdjacentLists()

	solver := sat.New()
	tr := trace.New(circ, solver)
	tr.UnrollInit(nil)
	tr.Unroll(nil, nil)

	// Force the traces apart on the initial register state so the diff
	// scope has something to show.
	solver.Assume(solver.Xor(tr.Golden[0][4], tr.Faulty[0][4]))
	res, _ := solver.Solve()
	require.Equal(t, sat.Sat, res)

	vcdPath := filepath.Join(t.TempDir(), "run.vcd")
	require.NoError(t, WriteVCD(vcdPath, circ, tr))
	data, err := os.ReadFile(vcdPath)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "$scope module golden $end")
	assert.Contains(t, out, "$scope module faulty $end")
	assert.Contains(t, out, "$scope module diff $end")
	assert.Contains(t, out, "bx d")
	assert.Contains(t, out, "$enddefinitions $end")

	part := bitset.New(8)
	part.Set(4)
	require.NoError(t, WriteGTKW(vcdPath, []int{0}, nil, []*bitset.BitSet{part}, circ))
	gtkw, err := os.ReadFile(filepath.Join(filepath.Dir(vcdPath), "run.gtkw"))
	require.NoError(t, err)
	assert.Contains(t, string(gtkw), "initial faulty 0")
	assert.Contains(t, string(gtkw), "diff.\\q[0]")
}
