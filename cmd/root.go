package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/eventlog"
	"github.com/fogsim/fogsim/sim/scenario"
	"github.com/fogsim/fogsim/sim/trace"
)

var (
	scenarioPath string  // YAML scenario file
	horizon      float64 // Simulation horizon, overrides the scenario
	seed         int64   // Master seed, overrides the scenario
	logLevel     string  // Log verbosity level
	resultsDir   string  // Directory for run.yaml and the CSV logs, overrides the scenario
	traceLevel   string  // Trace verbosity, overrides the scenario
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "fogsim",
	Short: "Discrete-event simulator for fog and edge computing",
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadScenario reads --scenario and applies the flags the user set explicitly.
func loadScenario(cmd *cobra.Command) (*scenario.Scenario, error) {
	if scenarioPath == "" {
		return nil, fmt.Errorf("--scenario is required")
	}
	sc, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("horizon") {
		sc.Horizon = horizon
	}
	if cmd.Flags().Changed("seed") {
		sc.Seed = seed
	}
	if cmd.Flags().Changed("results") {
		sc.Results = resultsDir
	}
	if cmd.Flags().Changed("trace") {
		sc.Trace = traceLevel
	}
	return sc, nil
}

// runCmd executes the simulation described by the scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		sc, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("Unable to load scenario: %v", err)
		}
		logrus.Infof("Starting simulation of %s with seed=%d, horizon=%.3f", scenarioPath, sc.Seed, sc.Horizon)
		startTime := time.Now()

		s, err := scenario.Build(sc)
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		if err := s.Run(sc.Horizon); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		s.Report().Print()
		if s.Trace != nil {
			printTraceSummary(cmd.OutOrStdout(), trace.Summarize(s.Trace))
		}
		if sc.Results != "" {
			if err := saveResults(s, sc); err != nil {
				logrus.Fatalf("Unable to save results: %v", err)
			}
			logrus.Infof("Results written to %s", sc.Results)
		}

		logrus.Infof("Simulation complete in %s (%d events).", time.Since(startTime), s.Dispatched())
	},
}

// saveResults writes the run header and the event, transmission and failure logs.
func saveResults(s *sim.Simulator, sc *scenario.Scenario) error {
	header := eventlog.NewRunHeader(sc.Seed, sc.Horizon)
	header.Scenario = scenarioPath
	header.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	header.Counters = s.Metrics.Counters()
	return s.Log.Write(sc.Results, header)
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a scenario file for errors",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		sc, err := loadScenario(cmd)
		if err != nil {
			logrus.Fatalf("Unable to load scenario: %v", err)
		}
		topo, err := sc.Check()
		if err != nil {
			logrus.Fatalf("Invalid scenario: %v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d applications, %d nodes, %d links)\n",
			scenarioPath, len(sc.Applications), topo.Len(), len(topo.Links()))
	},
}

// summarizeCmd reloads the logs of a finished run and prints statistics
var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Print statistics from the logs of a finished run",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		if resultsDir == "" {
			logrus.Fatalf("--results is required")
		}
		log, header, err := eventlog.Load(resultsDir)
		if err != nil {
			logrus.Fatalf("Unable to load results: %v", err)
		}
		printLogSummary(cmd.OutOrStdout(), header, eventlog.Summarize(log, header.Horizon))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVar(&scenarioPath, "scenario", "", "Path to the YAML scenario file")
		c.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon (overrides the scenario)")
		c.Flags().Int64Var(&seed, "seed", 0, "Master seed (overrides the scenario)")
		c.Flags().StringVar(&resultsDir, "results", "", "Directory for run.yaml and the CSV logs (overrides the scenario)")
		c.Flags().StringVar(&traceLevel, "trace", "", "Trace level: none, decisions, deliveries (overrides the scenario)")
	}
	summarizeCmd.Flags().StringVar(&resultsDir, "results", "", "Directory written by a previous run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(summarizeCmd)
}
