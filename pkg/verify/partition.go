package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/go-air/gini/z"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/sat"
	"github.com/fyerfyer/kfault/pkg/trace"
)

// A partition is a non-empty set of register output signals; a partitioning
// is an ordered sequence of disjoint partitions covering the register set.
// Refinement only ever merges partitions.

// PartitionsFromScratch builds the trivial partitioning: one register per
// partition, in ascending signal order.
func PartitionsFromScratch(c *circuit.Circuit) []*bitset.BitSet {
	regs := c.SortedRegs()
	parts := make([]*bitset.BitSet, 0, len(regs))
	for _, reg := range regs {
		part := bitset.New(uint(reg) + 1)
		part.Set(uint(reg))
		parts = append(parts, part)
	}
	return parts
}

// PartitionsFromFile loads a seed partitioning from a JSON file mapping
// partition index (as a string) to a list of register signal ids. Every
// register must be covered exactly once.
func PartitionsFromFile(c *circuit.Circuit, path string) ([]*bitset.BitSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partitioning: %w", err)
	}
	var file map[string][]uint32
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse partitioning: %w", err)
	}

	indexes := make([]int, 0, len(file))
	for key := range file {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("parse partitioning: bad index %q", key)
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	regs := c.Regs()
	covered := make(map[circuit.SignalID]struct{}, len(regs))
	parts := make([]*bitset.BitSet, 0, len(indexes))
	for _, idx := range indexes {
		sigs := file[strconv.Itoa(idx)]
		if len(sigs) == 0 {
			return nil, fmt.Errorf("partitioning: partition %d is empty", idx)
		}
		part := bitset.New(0)
		for _, raw := range sigs {
			sig := circuit.SignalID(raw)
			if _, ok := regs[sig]; !ok {
				return nil, fmt.Errorf("partitioning: signal %s is not a register output", sig)
			}
			if _, seen := covered[sig]; seen {
				return nil, fmt.Errorf("partitioning: signal %s appears twice", sig)
			}
			covered[sig] = struct{}{}
			part.Set(uint(sig))
		}
		parts = append(parts, part)
	}
	if len(covered) != len(regs) {
		return nil, fmt.Errorf("partitioning covers %d of %d registers", len(covered), len(regs))
	}
	return parts, nil
}

// partitionSignals returns the member signals of a partition in ascending
// order.
func partitionSignals(part *bitset.BitSet) []circuit.SignalID {
	sigs := make([]circuit.SignalID, 0, part.Count())
	for i, ok := part.NextSet(0); ok; i, ok = part.NextSet(i + 1) {
		sigs = append(sigs, circuit.SignalID(i))
	}
	return sigs
}

// PartitionInfo renders the partition census: the partition count, the ten
// largest partitions, and an occurrence count of the interesting names
// inside the four largest.
func PartitionInfo(c *circuit.Circuit, parts []*bitset.BitSet, interesting []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "partitions=%d largest=", len(parts))

	taken := make(map[int]struct{})
	var largest []int
	for i := 0; i < len(parts) && i < 10; i++ {
		best := -1
		for idx, part := range parts {
			if _, ok := taken[idx]; ok {
				continue
			}
			if best < 0 || part.Count() > parts[best].Count() {
				best = idx
			}
		}
		taken[best] = struct{}{}
		largest = append(largest, best)
		fmt.Fprintf(&b, "(%d:%d) ", best, parts[best].Count())
	}

	if len(interesting) > 0 {
		for i := 0; i < len(largest) && i < 4; i++ {
			fmt.Fprintf(&b, "\ncontents of %d: ", largest[i])
			for _, name := range interesting {
				found := 0
				for _, sig := range partitionSignals(parts[largest[i]]) {
					if strings.Contains(c.BitName(sig).Display(), name) {
						found++
					}
				}
				fmt.Fprintf(&b, "(%s:%d) ", name, found)
			}
		}
	}
	return b.String()
}

// connRegsOfPartition unions the connected-register sets of every member
// signal into a fresh set.
func connRegsOfPartition(c *circuit.Circuit, part *bitset.BitSet) *bitset.BitSet {
	union := bitset.New(0)
	for _, sig := range partitionSignals(part) {
		union.InPlaceUnion(c.ConnRegs(sig))
	}
	return union
}

// regPartIndex maps each register signal to the index of its partition.
func regPartIndex(parts []*bitset.BitSet) map[circuit.SignalID]int {
	m := make(map[circuit.SignalID]int)
	for idx, part := range parts {
		for _, sig := range partitionSignals(part) {
			m[sig] = idx
		}
	}
	return m
}

// spansOnePartition reports whether every register in regs falls into the
// same partition (or regs is empty or a singleton).
func spansOnePartition(regs *bitset.BitSet, index map[circuit.SignalID]int) bool {
	if regs.Count() <= 1 {
		return true
	}
	first := -1
	for i, ok := regs.NextSet(0); ok; i, ok = regs.NextSet(i + 1) {
		idx := index[circuit.SignalID(i)]
		if first < 0 {
			first = idx
		} else if idx != first {
			return false
		}
	}
	return true
}

// optimAtLeast2 prunes faults that cannot destabilize the partitioning: a
// partition whose combinational fan-out touches at most one partition, and a
// combinational fault whose connected registers span at most one partition,
// can never make more partitions faulty than the budget allows. Both get
// permanent blocking clauses.
func (d *Driver) optimAtLeast2(s *sat.Solver, parts []*bitset.BitSet,
	initFaults *trace.CycleFaults, initDiff []z.Lit) {

	index := regPartIndex(parts)

	partCount := 0
	for idx, part := range parts {
		if spansOnePartition(connRegsOfPartition(d.circ, part), index) {
			s.AddClause(initDiff[idx].Not())
			partCount++
		}
	}

	combCount := 0
	for _, sig := range initFaults.Signals() {
		if spansOnePartition(d.circ.ConnRegs(sig), index) {
			s.AddClause(initFaults.Get(sig).IsFaulted().Not())
			combCount++
		}
	}
	d.log.Debug().Int("partitions", partCount).Int("comb", combCount).
		Msg("pruned faults not connected to 2 partitions")
}
