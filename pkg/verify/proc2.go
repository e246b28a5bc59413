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

// Witness is one exploitable attack found by Procedure 2: the combinational
// faults and initially-faulty partitions that corrupt a primary output
// without raising an alert.
type Witness struct {
	CombFaults       []circuit.SignalID
	FaultyPartitions []int
	CorruptedOutputs []circuit.SignalID
}

// CheckOutputIntegrity runs Procedure 2 against a fixed partitioning: it
// enumerates attacks of up to k faults that flip a primary output while
// every alert stays quiet, forbidding each witnessed fault and partition so
// the enumeration makes progress, until every budget split is UNSAT.
func (d *Driver) CheckOutputIntegrity(parts []*bitset.BitSet,
	alerts, faultable map[circuit.SignalID]struct{}) ([]Witness, error) {

	solver := sat.New()
	solver.SetTimeout(d.conf.Timeout())
	tr := trace.New(d.circ, solver)

	for cycle := uint(0); cycle <= d.conf.Delay; cycle++ {
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

	golden, faulty := tr.Golden[0], tr.Faulty[0]

	// Partition difference vector at cycle 0.
	var partsDiff []z.Lit
	for _, part := range parts {
		var diffs []z.Lit
		for _, sig := range partitionSignals(part) {
			diffs = append(diffs, solver.Xor(golden[sig], faulty[sig]))
		}
		partsDiff = append(partsDiff, solver.Ors(diffs...))
	}

	var combFaultVars []z.Lit
	for cycle := 0; cycle < tr.Len(); cycle++ {
		combFaultVars = append(combFaultVars, tr.Faults[cycle].Vars()...)
	}

	// Primary outputs are the outputs that are not alert signals.
	primary := make(map[circuit.SignalID]struct{})
	var primarySorted []circuit.SignalID
	for _, sig := range d.circ.SortedOuts() {
		if _, isAlert := alerts[sig]; !isAlert {
			primary[sig] = struct{}{}
			primarySorted = append(primarySorted, sig)
		}
	}
	var outputDiff []z.Lit
	for _, sig := range primarySorted {
		outputDiff = append(outputDiff, solver.Xor(golden[sig], faulty[sig]))
	}

	d.pruneDisconnected(solver, parts, partsDiff, tr.Faults[0], primary)

	var witnesses []Witness

	startK := d.conf.K
	if d.conf.IncreasingK {
		startK = 1
	}
	for kFaults := int(startK); kFaults <= int(d.conf.K); kFaults++ {
		maxKfComb := kFaults
		if d.conf.FGates == config.GatesSeq {
			maxKfComb = 0
		}
		for kfComb := 0; kfComb <= maxKfComb; kfComb++ {
			kfPart := kFaults - kfComb

			d.log.Info().
				Int("k_f_part", kfPart).
				Int("k_f_comb", kfComb).
				Int("partitions", len(parts)).
				Msg("output integrity round")

			atMostComb := solver.AtMost(combFaultVars, kfComb)
			atMostPart := solver.AtMost(partsDiff, kfPart)
			anyOutputDiff := solver.Ors(outputDiff...)

			for ; d.solverIter < MaxIter; d.solverIter++ {
				solver.Assume(atMostComb)
				solver.Assume(atMostPart)
				solver.Assume(anyOutputDiff)

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

				witness := d.readIntegrityWitness(tr, solver, partsDiff, primarySorted)
				witnesses = append(witnesses, witness)
				d.log.Info().
					Int("comb_faults", len(witness.CombFaults)).
					Ints("partitions", witness.FaultyPartitions).
					Int("outputs", len(witness.CorruptedOutputs)).
					Msg("exploitable attack")

				if d.conf.DumpVCD {
					name := fmt.Sprintf("k-partitions-output-%s-%d.vcd", d.stamp, d.solverIter)
					path := filepath.Join(d.conf.DumpPath, name)
					if err := dump.WriteVCD(path, d.circ, tr); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return witnesses, nil
}

// pruneDisconnected adds permanent clauses blocking faults that cannot
// reach a primary output: partitions whose combinational fan-out misses the
// primary outputs, and combinational faults likewise.
func (d *Driver) pruneDisconnected(solver *sat.Solver, parts []*bitset.BitSet,
	partsDiff []z.Lit, initFaults *trace.CycleFaults, primary map[circuit.SignalID]struct{}) {

	partCount := 0
	for idx, part := range parts {
		connected := false
		for _, sig := range partitionSignals(part) {
			if intersectsPrimary(d.circ.ConnOuts(sig), primary) {
				connected = true
				break
			}
		}
		if !connected {
			solver.AddClause(partsDiff[idx].Not())
			partCount++
		}
	}

	combCount := 0
	for _, sig := range initFaults.Signals() {
		if !intersectsPrimary(d.circ.ConnOuts(sig), primary) {
			solver.AddClause(initFaults.Get(sig).IsFaulted().Not())
			combCount++
		}
	}
	d.log.Debug().Int("partitions", partCount).Int("comb", combCount).
		Msg("pruned faults not connected to primary outputs")
}

func intersectsPrimary(conn *bitset.BitSet, primary map[circuit.SignalID]struct{}) bool {
	for i, ok := conn.NextSet(0); ok; i, ok = conn.NextSet(i + 1) {
		if _, hit := primary[circuit.SignalID(i)]; hit {
			return true
		}
	}
	return false
}

// readIntegrityWitness extracts the attack from the model and registers its
// combinational faults and faulty partitions as exploitable by adding
// permanent blocking clauses.
func (d *Driver) readIntegrityWitness(tr *trace.Trace, solver *sat.Solver,
	partsDiff []z.Lit, primary []circuit.SignalID) Witness {

	var witness Witness

	seen := make(map[circuit.SignalID]struct{})
	for cycle := 0; cycle < tr.Len(); cycle++ {
		for _, sig := range tr.Faults[cycle].Signals() {
			if !solver.Value(tr.Faults[cycle].Get(sig).IsFaulted()) {
				continue
			}
			if _, dup := seen[sig]; !dup {
				seen[sig] = struct{}{}
				witness.CombFaults = append(witness.CombFaults, sig)
			}
		}
	}

	for idx, diff := range partsDiff {
		if solver.Value(diff) {
			witness.FaultyPartitions = append(witness.FaultyPartitions, idx)
		}
	}

	golden, faulty := tr.Golden[0], tr.Faulty[0]
	for _, sig := range primary {
		if solver.Value(golden[sig]) != solver.Value(faulty[sig]) {
			witness.CorruptedOutputs = append(witness.CorruptedOutputs, sig)
		}
	}

	// The model is read in full above, before any blocking clause is added.
	// Forbid the witnessed gates at every cycle they carry a selector.
	for _, sig := range witness.CombFaults {
		for cycle := 0; cycle < tr.Len(); cycle++ {
			if spec := tr.Faults[cycle].Get(sig); spec != nil {
				solver.AddClause(spec.IsFaulted().Not())
			}
		}
	}
	for _, idx := range witness.FaultyPartitions {
		solver.AddClause(partsDiff[idx].Not())
	}
	return witness
}
