package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/kfault/pkg/circuit"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config_file.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const fullConf = `{
  "default": {
    "design_path": "designs/top.json",
    "design_name": "top",
    "k": 2,
    "delay": 3,
    "dump_path": "out",
    "alert_list": {"alert": [0, 1]},
    "invariant_list": {"state": [1]},
    "f_excluded_prefix": ["_auto"],
    "f_excluded_signals": [7, 9],
    "exclude_inputs": true,
    "f_gates": 1,
    "increasing_k": false,
    "procedure": 2,
    "enumerate_exploitable": true,
    "optim_atleast2": true,
    "dump_vcd": true,
    "dump_partitioning": false,
    "interesting_names": ["core"],
    "seed": 7,
    "sat_timeout": 5
  },
  "minimal": {
    "design_path": "designs/top.json",
    "design_name": "top",
    "k": 1,
    "delay": 1,
    "dump_path": "out",
    "alert_list": {}
  },
  "broken": {
    "design_name": "top"
  }
}`

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, fullConf)
	conf, err := Load(path, "default")
	require.NoError(t, err)

	assert.Equal(t, "designs/top.json", conf.DesignPath)
	assert.Equal(t, "top", conf.DesignName)
	assert.Equal(t, uint(2), conf.K)
	assert.Equal(t, uint(3), conf.Delay)
	assert.Equal(t, map[string][]bool{"alert": {false, true}}, conf.AlertList)
	assert.Equal(t, map[string][]bool{"state": {true}}, conf.InvariantList)
	assert.Equal(t, []string{"_auto"}, conf.FExcludedPrefix)
	assert.Equal(t, []circuit.SignalID{7, 9}, conf.FExcludedSignals)
	assert.True(t, conf.ExcludeInputs)
	assert.Equal(t, GatesSeq, conf.FGates)
	assert.False(t, conf.IncreasingK)
	assert.Equal(t, Proc2, conf.Procedure)
	assert.True(t, conf.EnumerateExploitable)
	assert.True(t, conf.OptimAtLeast2)
	assert.True(t, conf.DumpVCD)
	assert.False(t, conf.DumpPartitioning)
	assert.Equal(t, []string{"core"}, conf.InterestingNames)
	assert.Equal(t, int64(7), conf.Seed)
	assert.Equal(t, uint(5), conf.SATTimeout)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, fullConf)
	conf, err := Load(path, "minimal")
	require.NoError(t, err)

	assert.Equal(t, GatesAll, conf.FGates)
	assert.True(t, conf.IncreasingK)
	assert.Equal(t, ProcBoth, conf.Procedure)
	assert.False(t, conf.EnumerateExploitable)
	assert.False(t, conf.OptimAtLeast2)
	assert.False(t, conf.DumpVCD)
	assert.True(t, conf.DumpPartitioning)
	assert.False(t, conf.ExcludeInputs)
	assert.Equal(t, int64(42), conf.Seed)
	assert.Equal(t, uint(30), conf.SATTimeout)
}

func TestLoadErrors(t *testing.T) {
	path := writeConfig(t, fullConf)

	_, err := Load(path, "nope")
	assert.ErrorIs(t, err, ErrMissingConf)

	_, err = Load(path, "broken")
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestPrepareDumpDir(t *testing.T) {
	dir := t.TempDir()
	confPath := writeConfig(t, fullConf)

	conf := &Config{DumpPath: filepath.Join(dir, "out")}
	// Pre-existing content is wiped.
	require.NoError(t, os.MkdirAll(conf.DumpPath, 0o755))
	stale := filepath.Join(conf.DumpPath, "stale")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	require.NoError(t, conf.PrepareDumpDir(confPath))
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(conf.DumpPath, "config_file"))
	assert.NoError(t, err)
}
