// Package verify implements the two SAT-driven procedures: building a
// register partitioning that is stable under k faults, and checking output
// integrity against a fixed partitioning.
package verify

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/config"
)

// MaxIter bounds the total number of solver queries across a run.
const MaxIter = 2000

// Driver runs the verification procedures over one circuit. It owns the
// solver instance of the procedure currently running and the seeded PRNG of
// the merge strategy.
type Driver struct {
	circ *circuit.Circuit
	conf *config.Config
	log  zerolog.Logger
	rng  *rand.Rand

	stamp      string
	solverIter int
}

// NewDriver creates a driver for the circuit under the given configuration.
func NewDriver(circ *circuit.Circuit, conf *config.Config, log zerolog.Logger) *Driver {
	return &Driver{
		circ:  circ,
		conf:  conf,
		log:   log,
		rng:   rand.New(rand.NewSource(conf.Seed)),
		stamp: time.Now().Format("06.01.02@15:04:05"),
	}
}

// AlertSignals resolves the configured alert nets into a signal set.
func (d *Driver) AlertSignals() (map[circuit.SignalID]struct{}, error) {
	alerts := make(map[circuit.SignalID]struct{})
	for name := range d.conf.AlertList {
		bits, err := d.circ.Bits(name)
		if err != nil {
			return nil, err
		}
		for _, sig := range bits {
			alerts[sig] = struct{}{}
		}
	}
	return alerts, nil
}

func maxUint(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
