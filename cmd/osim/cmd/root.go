// Package cmd provides the command-line interface of osim.
package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/osim/monitoring"
	"github.com/sarchlab/osim/scheduling"
	"github.com/sarchlab/osim/shell"
	"github.com/sarchlab/osim/simulation"
)

// rootCmd starts the shell when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "osim",
	Short: "A shell whose scripts run as simulated processes.",
	Long: "osim reads commands from the terminal or from standard input. " +
		"Scripts started with run and exec become processes that are " +
		"scheduled with FCFS, SJF, RR, AGING or MT and paged in and out " +
		"of a small frame store.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := readConfig(cmd.Flags())
		if err != nil {
			return err
		}

		return runShell(c, os.Stdin, os.Stdout)
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := loadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}

	registerFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func runShell(c config, in *os.File, out io.Writer) error {
	policy, err := scheduling.ParsePolicy(c.runPolicy)
	if err != nil {
		return err
	}

	b := simulation.MakeBuilder().
		WithFrameStoreSize(c.frameStoreSize).
		WithBackingStoreDir(c.backingStore).
		WithRunPolicy(policy).
		WithEviction(c.eviction).
		WithSeed(c.seed).
		WithThreadsPerProcess(c.threads).
		WithQuantum(c.quantum).
		WithOutput(out)

	if c.logFile != "" {
		f, err := os.Create(c.logFile)
		if err != nil {
			return err
		}

		atexit.Register(func() { _ = f.Close() })
		b = b.WithLogger(log.New(f, "", log.Lmicroseconds))
	}

	if c.traceDB != "" {
		b = b.WithTraceDB(c.traceDB)
	}

	if c.monitor {
		b = b.WithMonitoring().WithMonitorPort(c.monitorPort)
	}

	sim := b.Build()
	defer func() {
		if c.stats {
			fmt.Fprint(os.Stderr, sim.Stats())
		}

		if err := sim.Terminate(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}()

	if c.openBrowser && sim.MonitorURL() != "" {
		if err := monitoring.OpenInBrowser(sim.MonitorURL()); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}

	sh := shell.MakeBuilder().
		WithMachine(sim).
		WithOutput(out).
		WithVariableStoreSize(c.varStoreSize).
		Build("Shell")
	sim.RegisterExecutor(sh)

	sh.PrintBanner()

	if !shell.IsTerminal(in.Fd()) {
		return sh.Serve(shell.NewBatchReader(in))
	}

	reader, err := shell.NewPromptReader(in, out)
	if err != nil {
		return err
	}
	defer reader.Close()

	return sh.Serve(reader)
}
