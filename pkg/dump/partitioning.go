package dump

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/bits-and-blooms/bitset"
)

// WritePartitioning dumps the partitioning as JSON, mapping each partition
// index (as a string) to the ascending list of its register signal ids.
func WritePartitioning(path string, parts []*bitset.BitSet) error {
	out := make(map[string][]uint32, len(parts))
	for idx, part := range parts {
		sigs := make([]uint32, 0, part.Count())
		for i, ok := part.NextSet(0); ok; i, ok = part.NextSet(i + 1) {
			sigs = append(sigs, uint32(i))
		}
		out[strconv.Itoa(idx)] = sigs
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode partitioning: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write partitioning: %w", err)
	}
	return nil
}
