package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func evalComb(t *testing.T, typ CellType, in map[SignalID]bool) bool {
	t.Helper()
	cell := &Cell{Name: "c", Type: typ, A: 10, B: 11, S: 12, Y: 20}
	curr := map[SignalID]bool{}
	for sig, v := range in {
		curr[sig] = v
	}
	Eval[bool](BoolOps{}, cell, nil, curr)
	return curr[20]
}

func TestEvalCombCells(t *testing.T) {
	a, b := SignalID(10), SignalID(11)
	s := SignalID(12)

	cases := []struct {
		typ  CellType
		in   map[SignalID]bool
		want bool
	}{
		{CellBuf, map[SignalID]bool{a: true}, true},
		{CellNot, map[SignalID]bool{a: true}, false},
		{CellAnd, map[SignalID]bool{a: true, b: true}, true},
		{CellAnd, map[SignalID]bool{a: true, b: false}, false},
		{CellNand, map[SignalID]bool{a: true, b: true}, false},
		{CellOr, map[SignalID]bool{a: false, b: false}, false},
		{CellOr, map[SignalID]bool{a: false, b: true}, true},
		{CellNor, map[SignalID]bool{a: false, b: false}, true},
		{CellXor, map[SignalID]bool{a: true, b: true}, false},
		{CellXor, map[SignalID]bool{a: true, b: false}, true},
		{CellXnor, map[SignalID]bool{a: true, b: true}, true},
		{CellAndNot, map[SignalID]bool{a: true, b: false}, true},
		{CellAndNot, map[SignalID]bool{a: true, b: true}, false},
		{CellOrNot, map[SignalID]bool{a: false, b: false}, true},
		{CellOrNot, map[SignalID]bool{a: false, b: true}, false},
		{CellMux, map[SignalID]bool{a: true, b: false, s: false}, true},
		{CellMux, map[SignalID]bool{a: true, b: false, s: true}, false},
	}
	for _, tc := range cases {
		got := evalComb(t, tc.typ, tc.in)
		assert.Equal(t, tc.want, got, "%s over %v", tc.typ, tc.in)
	}
}

func TestEvalRegister(t *testing.T) {
	const (
		clk = SignalID(2)
		d   = SignalID(3)
		r   = SignalID(4)
		e   = SignalID(5)
		q   = SignalID(20)
	)

	run := func(cell *Cell, prev map[SignalID]bool) bool {
		curr := map[SignalID]bool{}
		Eval[bool](BoolOps{}, cell, prev, curr)
		return curr[q]
	}

	plain := &Cell{Type: CellDff, C: clk, D: d, Y: q, Dff: DffSpec{ClockPos: true}}
	assert.True(t, run(plain, map[SignalID]bool{d: true, q: false}))
	assert.False(t, run(plain, map[SignalID]bool{d: false, q: true}))

	// Enable low holds the previous output.
	withE := &Cell{Type: CellDffE, C: clk, D: d, E: e, Y: q,
		Dff: DffSpec{ClockPos: true, EnablePos: true}}
	assert.True(t, run(withE, map[SignalID]bool{d: false, e: false, q: true}))
	assert.False(t, run(withE, map[SignalID]bool{d: false, e: true, q: true}))

	// Active-low enable inverts the test.
	withEN := &Cell{Type: CellDffE, C: clk, D: d, E: e, Y: q,
		Dff: DffSpec{ClockPos: true, EnablePos: false}}
	assert.False(t, run(withEN, map[SignalID]bool{d: false, e: false, q: true}))

	// Reset loads the reset value.
	withR := &Cell{Type: CellDffR, C: clk, D: d, R: r, Y: q,
		Dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: false}}
	assert.False(t, run(withR, map[SignalID]bool{d: true, r: true, q: true}))
	assert.True(t, run(withR, map[SignalID]bool{d: true, r: false, q: false}))

	withR1 := &Cell{Type: CellDffR, C: clk, D: d, R: r, Y: q,
		Dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: true}}
	assert.True(t, run(withR1, map[SignalID]bool{d: false, r: true, q: false}))

	// Reset wins over a deasserted enable.
	withRE := &Cell{Type: CellDffER, C: clk, D: d, R: r, E: e, Y: q,
		Dff: DffSpec{ClockPos: true, ResetPos: true, ResetVal: false, EnablePos: true}}
	assert.False(t, run(withRE, map[SignalID]bool{d: true, r: true, e: false, q: true}))
	// Enable deasserted without reset holds.
	assert.True(t, run(withRE, map[SignalID]bool{d: false, r: false, e: false, q: true}))
}

func TestCellOutputUniform(t *testing.T) {
	cells := []*Cell{
		{Type: CellNot, A: 2, Y: 9},
		{Type: CellAnd, A: 2, B: 3, Y: 9},
		{Type: CellMux, A: 2, B: 3, S: 4, Y: 9},
		{Type: CellDff, C: 2, D: 3, Y: 9},
	}
	for _, cell := range cells {
		assert.Equal(t, SignalID(9), cell.Output(), "%s", cell.Type)
	}
}

func TestCellTypeFromString(t *testing.T) {
	typ, dff := CellTypeFromString("$_SDFF_PP1_")
	assert.Equal(t, CellDffR, typ)
	assert.True(t, dff.ClockPos)
	assert.True(t, dff.ResetPos)
	assert.True(t, dff.ResetVal)

	typ, _ = CellTypeFromString("$_NOPE_")
	assert.Equal(t, CellNone, typ)
}
