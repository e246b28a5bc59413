package verify

import (
	"fmt"
	"path/filepath"

	"github.com/bits-and-blooms/bitset"
	"github.com/go-air/gini/z"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/config"
	"github.com/fyerfyer/kfault/pkg/dump"
	"github.com/fyerfyer/kfault/pkg/sat"
	"github.com/fyerfyer/kfault/pkg/trace"
)

// BuildPartitions runs Procedure 1: starting from the given partitioning it
// repeatedly asks the solver for an attack that makes more partitions faulty
// in the next cycle than the fault budget could set directly, merges the
// witnessed partitions, and stops when every fault-budget split is UNSAT.
// The refined partitioning is returned; in enumerate mode the partitioning
// is left untouched and the witnessed combinational faults are forbidden
// instead.
func (d *Driver) BuildPartitions(parts []*bitset.BitSet,
	alerts, faultable map[circuit.SignalID]struct{}) ([]*bitset.BitSet, error) {

	solver := sat.New()
	solver.SetTimeout(d.conf.Timeout())
	tr := trace.New(d.circ, solver)

	horizon := maxUint(1, d.conf.Delay)
	for cycle := uint(0); cycle <= horizon; cycle++ {
		if cycle == 0 {
			tr.UnrollInit(faultable)
			if err := tr.AssertInvariantsAtStep(d.conf.InvariantList, 0); err != nil {
				return nil, err
			}
		} else {
			tr.Unroll(faultable, alerts)
		}
		if err := tr.AssertNoAlertAtStep(d.conf.AlertList, int(cycle)); err != nil {
			return nil, err
		}
	}

	// Partition difference vectors at cycles 0 and 1.
	var partsDiff [2][]z.Lit
	for cycle := 0; cycle <= 1; cycle++ {
		golden, faulty := tr.Golden[cycle], tr.Faulty[cycle]
		for _, part := range parts {
			var diffs []z.Lit
			for _, sig := range partitionSignals(part) {
				diffs = append(diffs, solver.Xor(golden[sig], faulty[sig]))
			}
			partsDiff[cycle] = append(partsDiff[cycle], solver.Ors(diffs...))
		}
	}

	// Combinational fault selectors: cycle 0 in the first slot, all later
	// cycles merged into the second.
	var combFaultVars [2][]z.Lit
	for cycle := 0; cycle < tr.Len(); cycle++ {
		slot := 0
		if cycle > 0 {
			slot = 1
		}
		combFaultVars[slot] = append(combFaultVars[slot], tr.Faults[cycle].Vars()...)
	}

	startK := d.conf.K
	if d.conf.IncreasingK {
		startK = 1
	}
	for kFaults := int(startK); kFaults <= int(d.conf.K); kFaults++ {
		maxKfComb := kFaults
		if d.conf.FGates == config.GatesSeq {
			maxKfComb = 0
		}
		for kfComb := maxKfComb; kfComb >= 0; kfComb-- {
			for kfCombNext := 0; kfCombNext <= minInt(kFaults-1, kfComb); kfCombNext++ {
				kfPart := kFaults - kfComb
				kfCombInit := kfComb - kfCombNext

				d.log.Info().
					Int("k_f_part", kfPart).
					Int("k_f_comb_init", kfCombInit).
					Int("k_f_comb_next", kfCombNext).
					Int("partitions", len(parts)).
					Msg("partitioning round")

				for d.solverIter++; d.solverIter < MaxIter; d.solverIter++ {
					if d.conf.OptimAtLeast2 {
						d.optimAtLeast2(solver, parts, tr.Faults[0], partsDiff[0])
					}

					solver.Assume(solver.AtMost(combFaultVars[0], kfCombInit))
					solver.Assume(solver.AtMost(combFaultVars[1], kfCombNext))
					solver.Assume(solver.AtMost(partsDiff[0], kfPart))
					solver.Assume(solver.AtLeast(partsDiff[1], kFaults+1))

					res, elapsed := solver.Solve()
					d.log.Info().Int("query", d.solverIter).
						Dur("elapsed", elapsed).Stringer("result", res).
						Msg("solver query")

					if res == sat.Unknown {
						d.log.Warn().Int("query", d.solverIter).
							Msg("solver timeout, treating split as finished")
						break
					}
					if res == sat.Unsat {
						break
					}

					combWitness := d.readCombFaults(tr, solver)
					faultyInitial := litIndexes(solver, partsDiff[0])
					faultyNext := litIndexes(solver, partsDiff[1])
					d.logWitness(combWitness, faultyInitial, faultyNext)

					if d.conf.DumpVCD {
						name := fmt.Sprintf("k-partitions-%s-%d.vcd", d.stamp, d.solverIter)
						path := filepath.Join(d.conf.DumpPath, name)
						if err := dump.WriteVCD(path, d.circ, tr); err != nil {
							return nil, err
						}
						if err := dump.WriteGTKW(path, faultyInitial, faultyNext, parts, d.circ); err != nil {
							return nil, err
						}
					}

					if d.conf.EnumerateExploitable {
						// Forbid the witnessed gates instead of merging.
						d.forbidCombFaults(tr, solver, combWitness)
						continue
					}

					parts = d.mergeFaulty(solver, parts, &partsDiff, faultyNext, kFaults)
					d.log.Info().Msg(PartitionInfo(d.circ, parts, d.conf.InterestingNames))
				}

				d.log.Info().Int("partitions", len(parts)).Msg("partitioning finished")

				if d.conf.DumpPartitioning {
					name := fmt.Sprintf("partitioning-%d.json", d.solverIter)
					path := filepath.Join(d.conf.DumpPath, name)
					if err := dump.WritePartitioning(path, parts); err != nil {
						return nil, err
					}
					d.log.Info().Str("path", path).Msg("wrote partitioning")
				}
			}
		}
	}
	return parts, nil
}

// readCombFaults returns the combinational selectors set in the model,
// keyed by cycle.
func (d *Driver) readCombFaults(tr *trace.Trace, solver *sat.Solver) [][]circuit.SignalID {
	witness := make([][]circuit.SignalID, tr.Len())
	for cycle := 0; cycle < tr.Len(); cycle++ {
		for _, sig := range tr.Faults[cycle].Signals() {
			if solver.Value(tr.Faults[cycle].Get(sig).IsFaulted()) {
				witness[cycle] = append(witness[cycle], sig)
			}
		}
	}
	return witness
}

// forbidCombFaults adds permanent blocking clauses for every witnessed
// combinational fault, at every cycle the signal has a selector.
func (d *Driver) forbidCombFaults(tr *trace.Trace, solver *sat.Solver, witness [][]circuit.SignalID) {
	for _, sigs := range witness {
		for _, sig := range sigs {
			for cycle := 0; cycle < tr.Len(); cycle++ {
				if spec := tr.Faults[cycle].Get(sig); spec != nil {
					solver.AddClause(spec.IsFaulted().Not())
				}
			}
		}
	}
}

// litIndexes returns the indexes whose literal is true in the model.
func litIndexes(solver *sat.Solver, lits []z.Lit) []int {
	var idxs []int
	for i, m := range lits {
		if solver.Value(m) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

func (d *Driver) logWitness(comb [][]circuit.SignalID, initial, next []int) {
	for cycle, sigs := range comb {
		if len(sigs) == 0 {
			continue
		}
		names := make([]string, 0, len(sigs))
		for _, sig := range sigs {
			names = append(names, d.circ.BitName(sig).Display())
		}
		d.log.Info().Int("cycle", cycle).Strs("gates", names).Msg("faulty comb gates")
	}
	d.log.Info().Ints("initial", initial).Ints("next", next).Msg("faulty partitions")
}

// mergeFaulty buckets the next-cycle-faulty partition indexes randomly into
// kFaults groups and replaces each group with its union. The difference
// literals of a merged partition are the disjunctions of its constituents'.
func (d *Driver) mergeFaulty(solver *sat.Solver, parts []*bitset.BitSet,
	partsDiff *[2][]z.Lit, faultyNext []int, kFaults int) []*bitset.BitSet {

	if len(faultyNext) == 0 {
		return parts
	}

	bucketSize := float64(len(faultyNext)) / float64(kFaults)
	nextBucket := 0.0
	copies := append([]int(nil), faultyNext...)
	var groups [][]int
	for fi := 0; fi < len(faultyNext); fi++ {
		if float64(fi) >= nextBucket {
			groups = append(groups, nil)
			nextBucket += bucketSize
		}
		pick := d.rng.Intn(len(copies))
		groups[len(groups)-1] = append(groups[len(groups)-1], copies[pick])
		copies = append(copies[:pick], copies[pick+1:]...)
	}

	for _, group := range groups {
		merged := bitset.New(0)
		var diffs0, diffs1 []z.Lit
		for _, fi := range group {
			merged.InPlaceUnion(parts[fi])
			diffs0 = append(diffs0, partsDiff[0][fi])
			diffs1 = append(diffs1, partsDiff[1][fi])
		}
		d.log.Info().Ints("merge", group).Msg("merging partitions")
		parts = append(parts, merged)
		partsDiff[0] = append(partsDiff[0], solver.Ors(diffs0...))
		partsDiff[1] = append(partsDiff[1], solver.Ors(diffs1...))
	}

	// faultyNext is ascending, so removal with a shifting offset is safe.
	removed := 0
	for _, fi := range faultyNext {
		idx := fi - removed
		parts = append(parts[:idx], parts[idx+1:]...)
		partsDiff[0] = append(partsDiff[0][:idx], partsDiff[0][idx+1:]...)
		partsDiff[1] = append(partsDiff[1][:idx], partsDiff[1][idx+1:]...)
		removed++
	}

	d.log.Info().Int("merged", len(faultyNext)).Int("remaining", len(parts)).Msg("merge round done")
	return parts
}
