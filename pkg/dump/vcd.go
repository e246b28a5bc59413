// Package dump writes the external artifacts of a verification run: VCD
// waveforms of the witnessed traces, GTKWave save files grouping the faulty
// partitions, and partitioning snapshots.
package dump

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/trace"
)

// vcdID returns the VCD identifier of a signal.
func vcdID(sig circuit.SignalID) string {
	return fmt.Sprintf("s%d", uint32(sig))
}

// vcdName sanitizes a net name for the VCD format.
func vcdName(name string) string {
	name = strings.ReplaceAll(name, ":", "_")
	if strings.ContainsRune(name, '$') {
		name = "\\" + name
	}
	return name
}

// WriteVCD dumps the golden and faulty traces of the last SAT model as a
// waveform with three scopes: golden, faulty, and their difference. The
// difference scope shows x wherever the traces disagree. Each cycle spans
// 1000 ticks with a clock pulse falling at +500.
func WriteVCD(path string, circ *circuit.Circuit, tr *trace.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vcd: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	fmt.Fprintf(w, "$date\n\t%s\n$end\n", time.Now().Format(time.ANSIC))
	fmt.Fprintf(w, "$version\n\tkfault verifier\n$end\n")
	fmt.Fprintf(w, "$timescale\n\t1ps\n$end\n")

	// Collect the named signal bits, most significant first per net.
	type scopeEntry struct {
		id   string
		name string
		pos  int
	}
	var entries []scopeEntry
	inVCD := make(map[circuit.SignalID]string)

	netNames := make([]string, 0, len(circ.Nets()))
	for name := range circ.Nets() {
		netNames = append(netNames, name)
	}
	sort.Strings(netNames)
	for _, name := range netNames {
		bits := circ.Nets()[name]
		for pos := len(bits) - 1; pos >= 0; pos-- {
			sig := bits[pos]
			inVCD[sig] = vcdID(sig)
			entries = append(entries, scopeEntry{id: vcdID(sig), name: vcdName(name), pos: pos})
		}
	}
	if circ.Clock() != circuit.SigNone {
		delete(inVCD, circ.Clock())
	}

	for _, scope := range [][2]string{{"golden", "g"}, {"faulty", "f"}, {"diff", "d"}} {
		fmt.Fprintf(w, "$scope module %s $end\n", scope[0])
		for _, e := range entries {
			fmt.Fprintf(w, "\t$var wire 1 %s%s %s[%d] $end\n", scope[1], e.id, e.name, e.pos)
		}
		fmt.Fprintf(w, "$upscope $end\n")
	}
	fmt.Fprintf(w, "$enddefinitions $end\n")

	if tr.Len() == 0 {
		return nil
	}

	sigs := make([]circuit.SignalID, 0, len(inVCD))
	for sig := range inVCD {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })

	solver := tr.Solver()
	bit := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}

	tick := 0
	for cycle := 0; cycle < tr.Len(); cycle++ {
		fmt.Fprintf(w, "#%d\n", tick)
		if cycle == 0 {
			fmt.Fprintf(w, "$dumpvars\n")
		}
		if clk := circ.Clock(); clk != circuit.SigNone {
			for _, prefix := range [...]string{"g", "f", "d"} {
				fmt.Fprintf(w, "b1 %s%s\n", prefix, vcdID(clk))
			}
		}
		for _, sig := range sigs {
			id := inVCD[sig]
			gLit, known := tr.Golden[cycle][sig]
			if !known {
				if cycle == 0 {
					fmt.Fprintf(w, "bz g%s\nbz f%s\nbz d%s\n", id, id, id)
				}
				continue
			}
			g := solver.Value(gLit)
			f := solver.Value(tr.Faulty[cycle][sig])

			changed := cycle == 0
			if cycle > 0 {
				pg, ok := tr.Golden[cycle-1][sig]
				if !ok || solver.Value(pg) != g || solver.Value(tr.Faulty[cycle-1][sig]) != f {
					changed = true
				}
			}
			if !changed {
				continue
			}
			fmt.Fprintf(w, "b%d g%s\n", bit(g), id)
			fmt.Fprintf(w, "b%d f%s\n", bit(f), id)
			if g != f {
				fmt.Fprintf(w, "bx d%s\n", id)
			} else {
				fmt.Fprintf(w, "b%d d%s\n", bit(g), id)
			}
		}
		if cycle == 0 {
			fmt.Fprintf(w, "$end\n")
		}
		if clk := circ.Clock(); clk != circuit.SigNone {
			fmt.Fprintf(w, "#%d\n", tick+500)
			for _, prefix := range [...]string{"g", "f", "d"} {
				fmt.Fprintf(w, "b0 %s%s\n", prefix, vcdID(clk))
			}
		}
		tick += 1000
	}
	fmt.Fprintf(w, "#%d\n", tick)
	return nil
}
