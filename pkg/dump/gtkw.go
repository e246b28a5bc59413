package dump

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/fyerfyer/kfault/pkg/circuit"
)

// GTKWave save-file markers for signal groups and binary display.
const (
	gtkwOpenGroup     = "@800200"
	gtkwCloseGroup    = "@1000200"
	gtkwDisplayBinary = "@8"
)

// WriteGTKW writes a GTKWave save file next to the VCD dump, grouping the
// diff signals of the initially-faulty and next-cycle-faulty partitions.
func WriteGTKW(vcdPath string, faultyInitial, faultyNext []int,
	parts []*bitset.BitSet, circ *circuit.Circuit) error {

	path := strings.TrimSuffix(vcdPath, ".vcd") + ".gtkw"
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create gtkw: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	fmt.Fprintf(w, "[*] Fault analysis result\n")
	fmt.Fprintf(w, "[dumpfile] %q\n", filepath.Base(vcdPath))

	writeGroup := func(label string, idx int) {
		fmt.Fprintf(w, "%s\n-%s %d\n%s\n", gtkwOpenGroup, label, idx, gtkwDisplayBinary)
		for i, ok := parts[idx].NextSet(0); ok; i, ok = parts[idx].NextSet(i + 1) {
			ref := circ.BitName(circuit.SignalID(i))
			name := strings.ReplaceAll(ref.Name(), ":", "_")
			fmt.Fprintf(w, "diff.\\%s[%d]\n", name, ref.Pos())
		}
		fmt.Fprintf(w, "%s\n-%s %d\n", gtkwCloseGroup, label, idx)
	}

	for _, idx := range faultyInitial {
		writeGroup("initial faulty", idx)
	}
	for _, idx := range faultyNext {
		writeGroup("next faulty", idx)
	}
	return nil
}
