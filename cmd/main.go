package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyerfyer/kfault/pkg/circuit"
	"github.com/fyerfyer/kfault/pkg/config"
	"github.com/fyerfyer/kfault/pkg/logging"
	"github.com/fyerfyer/kfault/pkg/trace"
	"github.com/fyerfyer/kfault/pkg/verify"
)

var (
	configPath string
	configName string
	verbose    bool
)

func main() {
	cmd := &cobra.Command{
		Use:           "kfault",
		Short:         "Verify k-fault resistance of a gate-level netlist",
		Long:          "kfault checks that no adversary injecting up to k transient bit-flips can destabilize the register partitioning or corrupt a primary output without raising an alert.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "config/config_file.json", "configuration file")
	cmd.Flags().StringVar(&configName, "name", "default", "configuration name inside the file")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	conf, err := config.Load(configPath, configName)
	if err != nil {
		return err
	}
	if err := conf.PrepareDumpDir(configPath); err != nil {
		return err
	}
	runLog, err := os.Create(filepath.Join(conf.DumpPath, "log"))
	if err != nil {
		return fmt.Errorf("create run log: %w", err)
	}
	defer runLog.Close()

	logging.WithRunLog(runLog)
	logging.SetVerbose(verbose)
	log := logging.Logger()

	circ, err := circuit.LoadCircuitFile(conf.DesignPath, conf.DesignName)
	if err != nil {
		return err
	}
	if conf.Subcircuit {
		sub, warnings, err := circuit.ExtractSubcircuitFile(circ,
			conf.SubcircuitInterfacePath, conf.SubcircuitInterfaceName)
		if err != nil {
			return err
		}
		for _, warning := range warnings {
			log.Warn().Msg(warning)
		}
		circ = sub
	}
	circ.BuildAdjacentLists()
	log.Info().Str("module", circ.Name()).Msg(circ.Stats())

	var parts = verify.PartitionsFromScratch(circ)
	if conf.InitialPartitionPath != "" {
		parts, err = verify.PartitionsFromFile(circ, conf.InitialPartitionPath)
		if err != nil {
			return err
		}
	}
	log.Info().Msg(verify.PartitionInfo(circ, parts, conf.InterestingNames))

	driver := verify.NewDriver(circ, conf, log)
	alerts, err := driver.AlertSignals()
	if err != nil {
		return err
	}
	faultable := trace.ComputeFaultableSignals(circ, trace.FaultFilter{
		IncludedPrefixes: conf.FIncludedPrefix,
		ExcludedPrefixes: conf.FExcludedPrefix,
		ExcludedSignals:  conf.FExcludedSignals,
		ExcludeInputs:    conf.ExcludeInputs,
	})

	if conf.Procedure != config.Proc2 {
		log.Info().Msg("running procedure 1: build partitions")
		parts, err = driver.BuildPartitions(parts, alerts, faultable)
		if err != nil {
			return err
		}
		log.Info().Msg(verify.PartitionInfo(circ, parts, conf.InterestingNames))
	}

	if conf.Procedure != config.Proc1 {
		log.Info().Msg("running procedure 2: check output integrity")
		witnesses, err := driver.CheckOutputIntegrity(parts, alerts, faultable)
		if err != nil {
			return err
		}
		if len(witnesses) == 0 {
			log.Info().Msg("no exploitable attack on primary outputs")
		} else {
			log.Info().Int("count", len(witnesses)).Msg("exploitable attacks found")
		}
	}
	return nil
}
