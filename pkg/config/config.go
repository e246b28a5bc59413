// Package config loads the named verification configurations from a JSON
// file and prepares the dump directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyerfyer/kfault/pkg/circuit"
)

// Fatal configuration errors.
var (
	ErrMissingConf  = errors.New("missing configuration in file")
	ErrMissingParam = errors.New("missing parameter in configuration file")
)

// Procedure selects which procedures to run.
type Procedure int

const (
	ProcBoth Procedure = iota
	Proc1
	Proc2
)

// Gates selects where faults may be injected.
type Gates int

const (
	// GatesAll allows faults on combinational gates and registers.
	GatesAll Gates = iota
	// GatesSeq inhibits combinational faults.
	GatesSeq
)

// Config is one named verification configuration.
type Config struct {
	DesignPath string
	DesignName string
	K          uint
	Delay      uint
	DumpPath   string

	AlertList     map[string][]bool
	InvariantList map[string][]bool

	Subcircuit              bool
	SubcircuitInterfacePath string
	SubcircuitInterfaceName string

	InitialPartitionPath string

	FIncludedPrefix  []string
	FExcludedPrefix  []string
	FExcludedSignals []circuit.SignalID
	FGates           Gates
	ExcludeInputs    bool

	IncreasingK          bool
	Procedure            Procedure
	EnumerateExploitable bool
	OptimAtLeast2        bool

	DumpVCD          bool
	DumpPartitioning bool
	InterestingNames []string

	Seed       int64
	SATTimeout uint // seconds per solver query, 0 disables the deadline
}

// rawConfig mirrors the JSON shape; pointers distinguish absent keys from
// zero values so the defaulting rules can apply.
type rawConfig struct {
	DesignPath *string `json:"design_path"`
	DesignName *string `json:"design_name"`
	K          *uint   `json:"k"`
	Delay      *uint   `json:"delay"`
	DumpPath   *string `json:"dump_path"`

	AlertList     map[string][]int `json:"alert_list"`
	InvariantList map[string][]int `json:"invariant_list"`

	Subcircuit              *bool  `json:"subcircuit"`
	SubcircuitInterfacePath string `json:"subcircuit_interface_path"`
	SubcircuitInterfaceName string `json:"subcircuit_interface_name"`

	InitialPartitionPath string `json:"initial_partition_path"`

	FIncludedPrefix  []string `json:"f_included_prefix"`
	FExcludedPrefix  []string `json:"f_excluded_prefix"`
	FExcludedSignals []uint32 `json:"f_excluded_signals"`
	FGates           *int     `json:"f_gates"`
	ExcludeInputs    *bool    `json:"exclude_inputs"`

	IncreasingK          *bool `json:"increasing_k"`
	Procedure            *int  `json:"procedure"`
	EnumerateExploitable *bool `json:"enumerate_exploitable"`
	OptimAtLeast2        *bool `json:"optim_atleast2"`

	DumpVCD          *bool    `json:"dump_vcd"`
	DumpPartitioning *bool    `json:"dump_partitioning"`
	InterestingNames []string `json:"interesting_names"`

	Seed       *int64 `json:"seed"`
	SATTimeout *uint  `json:"sat_timeout"`
}

// Load reads the configuration file and returns the named configuration
// with defaults applied.
func Load(path, name string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var file map[string]json.RawMessage
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	rawConf, ok := file[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingConf, name)
	}
	var raw rawConfig
	if err := json.Unmarshal(rawConf, &raw); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", name, err)
	}

	if raw.DesignPath == nil || raw.DesignName == nil || raw.K == nil ||
		raw.Delay == nil || raw.DumpPath == nil || raw.AlertList == nil {
		return nil, fmt.Errorf("%w (config %q)", ErrMissingParam, name)
	}

	conf := &Config{
		DesignPath: *raw.DesignPath,
		DesignName: *raw.DesignName,
		K:          *raw.K,
		Delay:      *raw.Delay,
		DumpPath:   *raw.DumpPath,

		AlertList:     bitVectors(raw.AlertList),
		InvariantList: bitVectors(raw.InvariantList),

		SubcircuitInterfacePath: raw.SubcircuitInterfacePath,
		SubcircuitInterfaceName: raw.SubcircuitInterfaceName,
		InitialPartitionPath:    raw.InitialPartitionPath,

		FIncludedPrefix:  raw.FIncludedPrefix,
		FExcludedPrefix:  raw.FExcludedPrefix,
		InterestingNames: raw.InterestingNames,

		// Defaults.
		FGates:           GatesAll,
		IncreasingK:      true,
		Procedure:        ProcBoth,
		OptimAtLeast2:    false,
		DumpPartitioning: true,
		Seed:             42,
		SATTimeout:       30,
	}
	for _, sig := range raw.FExcludedSignals {
		conf.FExcludedSignals = append(conf.FExcludedSignals, circuit.SignalID(sig))
	}
	if raw.Subcircuit != nil {
		conf.Subcircuit = *raw.Subcircuit
	}
	if conf.Subcircuit && (conf.SubcircuitInterfacePath == "" || conf.SubcircuitInterfaceName == "") {
		return nil, fmt.Errorf("%w: subcircuit interface (config %q)", ErrMissingParam, name)
	}
	if raw.FGates != nil {
		conf.FGates = Gates(*raw.FGates)
	}
	if raw.ExcludeInputs != nil {
		conf.ExcludeInputs = *raw.ExcludeInputs
	}
	if raw.IncreasingK != nil {
		conf.IncreasingK = *raw.IncreasingK
	}
	if raw.Procedure != nil {
		conf.Procedure = Procedure(*raw.Procedure)
	}
	if raw.EnumerateExploitable != nil {
		conf.EnumerateExploitable = *raw.EnumerateExploitable
	}
	if raw.OptimAtLeast2 != nil {
		conf.OptimAtLeast2 = *raw.OptimAtLeast2
	}
	if raw.DumpVCD != nil {
		conf.DumpVCD = *raw.DumpVCD
	}
	if raw.DumpPartitioning != nil {
		conf.DumpPartitioning = *raw.DumpPartitioning
	}
	if raw.Seed != nil {
		conf.Seed = *raw.Seed
	}
	if raw.SATTimeout != nil {
		conf.SATTimeout = *raw.SATTimeout
	}
	return conf, nil
}

// Timeout returns the per-query solver deadline, zero when disabled.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.SATTimeout) * time.Second
}

func bitVectors(m map[string][]int) map[string][]bool {
	out := make(map[string][]bool, len(m))
	for name, bits := range m {
		vec := make([]bool, len(bits))
		for i, b := range bits {
			vec[i] = b != 0
		}
		out[name] = vec
	}
	return out
}

// PrepareDumpDir wipes and recreates the dump directory and copies the
// configuration file into it.
func (c *Config) PrepareDumpDir(configPath string) error {
	if _, err := os.Stat(c.DumpPath); err == nil {
		if err := os.RemoveAll(c.DumpPath); err != nil {
			return fmt.Errorf("wipe dump dir: %w", err)
		}
	}
	if err := os.MkdirAll(c.DumpPath, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("copy config file: %w", err)
	}
	dst := filepath.Join(c.DumpPath, "config_file")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("copy config file: %w", err)
	}
	return nil
}
