package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/sarchlab/osim/scheduling"
	"github.com/sarchlab/osim/shell"
	"github.com/sarchlab/osim/simulation"
	"github.com/sarchlab/osim/threading"
)

// Environment variables that change flag defaults.
const (
	EnvFrameStoreSize = "OSIM_FRAME_STORE_SIZE"
	EnvVarStoreSize   = "OSIM_VAR_STORE_SIZE"
	EnvBackingStore   = "OSIM_BACKING_STORE"
	EnvRunPolicy      = "OSIM_RUN_POLICY"
	EnvEviction       = "OSIM_EVICTION"
	EnvThreads        = "OSIM_THREADS"
	EnvTraceDB        = "OSIM_TRACE_DB"
	EnvMonitorPort    = "OSIM_MONITOR_PORT"
)

type config struct {
	frameStoreSize int
	varStoreSize   int
	backingStore   string
	runPolicy      string
	eviction       string
	seed           int64
	threads        int
	quantum        int
	logFile        string
	traceDB        string
	monitor        bool
	monitorPort    int
	openBrowser    bool
	stats          bool
}

// loadEnvFile reads variables from the .env file, if there is one, without
// overriding the ones already set.
func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring %s=%q: not a number\n", key, v)
		return def
	}

	return n
}

func registerFlags(flags *pflag.FlagSet) {
	flags.Int("frame-store-size", envInt(EnvFrameStoreSize, simulation.DefaultFrameStoreSize),
		"Lines of physical memory, split into frames of 3 lines")
	flags.Int("var-store-size", envInt(EnvVarStoreSize, shell.DefaultVariableStoreSize),
		"Number of shell variables that can be set")
	flags.String("backing-store", envString(EnvBackingStore, simulation.DefaultBackingStoreDir),
		"Directory holding script copies; emptied at start")
	flags.String("run-policy", envString(EnvRunPolicy, scheduling.FCFS.String()),
		"Policy used by the run command")
	flags.String("eviction", envString(EnvEviction, simulation.EvictionLRU),
		"Victim selection, lru or random")
	flags.Int64("seed", 0, "Seed of the random eviction policy")
	flags.Int("threads", envInt(EnvThreads, threading.DefaultThreadsPerProcess),
		"Threads per process under the MT policy")
	flags.Int("quantum", scheduling.DefaultQuantum, "Round-robin quantum in instructions")
	flags.String("log-file", "", "Write a log of paging and scheduling activity")
	flags.String("trace-db", envString(EnvTraceDB, ""),
		"Record traces into this SQLite database (.sqlite3 is appended)")
	flags.Bool("monitor", false, "Serve the monitoring API")
	flags.Int("monitor-port", envInt(EnvMonitorPort, 0), "Port of the monitoring API")
	flags.Bool("open-browser", false, "Open the monitoring API in a browser")
	flags.Bool("stats", false, "Print paging and scheduling counters at exit")
}

func readConfig(flags *pflag.FlagSet) (config, error) {
	var (
		c    config
		errs []error
	)

	get := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	var err error

	c.frameStoreSize, err = flags.GetInt("frame-store-size")
	get(err)
	c.varStoreSize, err = flags.GetInt("var-store-size")
	get(err)
	c.backingStore, err = flags.GetString("backing-store")
	get(err)
	c.runPolicy, err = flags.GetString("run-policy")
	get(err)
	c.eviction, err = flags.GetString("eviction")
	get(err)
	c.seed, err = flags.GetInt64("seed")
	get(err)
	c.threads, err = flags.GetInt("threads")
	get(err)
	c.quantum, err = flags.GetInt("quantum")
	get(err)
	c.logFile, err = flags.GetString("log-file")
	get(err)
	c.traceDB, err = flags.GetString("trace-db")
	get(err)
	c.monitor, err = flags.GetBool("monitor")
	get(err)
	c.monitorPort, err = flags.GetInt("monitor-port")
	get(err)
	c.openBrowser, err = flags.GetBool("open-browser")
	get(err)
	c.stats, err = flags.GetBool("stats")
	get(err)

	if len(errs) > 0 {
		return c, errs[0]
	}

	return c, c.validate()
}

func (c config) validate() error {
	if _, err := scheduling.ParsePolicy(c.runPolicy); err != nil {
		return err
	}

	if c.eviction != simulation.EvictionLRU && c.eviction != simulation.EvictionRandom {
		return fmt.Errorf("unknown eviction policy %q", c.eviction)
	}

	if c.frameStoreSize < 3 {
		return fmt.Errorf("frame store size %d cannot hold a page", c.frameStoreSize)
	}

	if c.varStoreSize <= 0 {
		return fmt.Errorf("variable store size must be positive")
	}

	if c.threads <= 0 {
		return fmt.Errorf("thread count must be positive")
	}

	if c.quantum <= 0 {
		return fmt.Errorf("quantum must be positive")
	}

	if c.monitorPort != 0 && !c.monitor {
		return fmt.Errorf("--monitor-port needs --monitor")
	}

	return nil
}
