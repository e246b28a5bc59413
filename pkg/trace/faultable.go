package trace

import (
	"strings"

	"github.com/fyerfyer/kfault/pkg/circuit"
)

// FaultFilter selects the signals an adversary may fault. Prefixes match
// net names; the included set defaults to every known signal when no
// include prefix is given.
type FaultFilter struct {
	IncludedPrefixes []string
	ExcludedPrefixes []string
	ExcludedSignals  []circuit.SignalID
	ExcludeInputs    bool
}

// ComputeFaultableSignals applies the filter to the circuit and returns the
// faultable signal set.
func ComputeFaultableSignals(c *circuit.Circuit, filter FaultFilter) map[circuit.SignalID]struct{} {
	excluded := make(map[circuit.SignalID]struct{})
	for _, prefix := range filter.ExcludedPrefixes {
		for name, bits := range c.Nets() {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			for _, sig := range bits {
				excluded[sig] = struct{}{}
			}
		}
	}
	if filter.ExcludeInputs {
		for sig := range c.Ins() {
			excluded[sig] = struct{}{}
		}
	}
	for _, sig := range filter.ExcludedSignals {
		excluded[sig] = struct{}{}
	}

	included := make(map[circuit.SignalID]struct{})
	if len(filter.IncludedPrefixes) == 0 {
		for sig := range c.Sigs() {
			included[sig] = struct{}{}
		}
	} else {
		for _, prefix := range filter.IncludedPrefixes {
			for name, bits := range c.Nets() {
				if !strings.HasPrefix(name, prefix) {
					continue
				}
				for _, sig := range bits {
					included[sig] = struct{}{}
				}
			}
		}
	}

	faultable := make(map[circuit.SignalID]struct{}, len(included))
	for sig := range included {
		if _, ok := excluded[sig]; !ok {
			faultable[sig] = struct{}{}
		}
	}
	return faultable
}
