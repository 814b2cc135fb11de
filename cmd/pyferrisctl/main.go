// Command pyferrisctl inspects a pyferris checkpoint directory, prints
// the worker count and chunk size defaults of its own process, and
// simulates load-balancer strategies. It has no connection to a live
// scheduler (pyferris is an embedded library, not a server): only its
// checkpoint subcommands read state shared with an embedding process,
// through the files on disk.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	pyferris "github.com/DVNghiem/pyferris-go"
)

var (
	version = "0.1.0"
	logger  = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	rootCmd = &cobra.Command{
		Use:   "pyferrisctl",
		Short: "Inspect pyferris worker configuration and checkpoint state",
		Long: `pyferrisctl is a CLI tool for inspecting a pyferris-based application's
configuration and on-disk checkpoint history.

It reads the checkpoint directory an embedding process writes, without
itself running any tasks. The config command prints this process's own
defaults (worker count and chunk size are process-wide in-memory
settings, not stored on disk).`,
		Version: version,
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(checkpointCmd)
	rootCmd.AddCommand(clusterCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective worker count and chunk size",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("worker_count: %d\n", pyferris.GetWorkerCount())
		fmt.Printf("chunk_size:   %d\n", pyferris.GetChunkSize())
	},
}

var checkpointDir string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect saved checkpoints",
}

func init() {
	checkpointCmd.PersistentFlags().StringVar(&checkpointDir, "dir", "./checkpoints", "checkpoint directory")
	checkpointCmd.AddCommand(checkpointListCmd)
	checkpointCmd.AddCommand(checkpointStatsCmd)
}

var checkpointListCmd = &cobra.Command{
	Use:   "list [operation-id]",
	Short: "List checkpoints, optionally filtered by operation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op := ""
		if len(args) == 1 {
			op = args[0]
		}
		mgr := pyferris.NewCheckpointManager(checkpointDir, 0)
		checkpoints, err := mgr.List(op)
		if err != nil {
			return err
		}
		if len(checkpoints) == 0 {
			fmt.Println("no checkpoints found")
			return nil
		}
		for _, ck := range checkpoints {
			fmt.Printf("%-40s %-20s progress=%.1f%%\n", ck.ID, ck.Operation, ck.Progress*100)
		}
		return nil
	},
}

var checkpointStatsCmd = &cobra.Command{
	Use:   "stats <operation-id>",
	Short: "Show retention/progress statistics for an operation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := pyferris.NewCheckpointManager(checkpointDir, 0)
		stats, err := mgr.Stats(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("count:        %d\n", stats.Count)
		fmt.Printf("latest_id:    %s\n", stats.LatestID)
		fmt.Printf("max_progress: %.1f%%\n", stats.MaxProgress*100)
		return nil
	},
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster registry helpers (in-process only; nothing is persisted)",
	Long: `cluster commands operate on a fresh, empty ClusterManager for each
invocation since pyferris keeps no on-disk cluster state — use these to
sanity-check load-balancing strategy output against ad-hoc node specs.`,
}

func init() {
	clusterCmd.AddCommand(clusterSimulateCmd)
}

var clusterStrategy string

var clusterSimulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a round of the selected strategy against three synthetic nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := pyferris.NewClusterManager()
		specs := []struct {
			id    string
			addr  string
			cores int
			load  float64
		}{
			{"node-a", "127.0.0.1:9001", 4, 0.1},
			{"node-b", "127.0.0.1:9002", 8, 0.6},
			{"node-c", "127.0.0.1:9003", 16, 0.3},
		}
		for _, s := range specs {
			if _, err := mgr.AddNode(s.id, s.addr, pyferris.NodeCapabilities{CPUCores: s.cores}); err != nil {
				return err
			}
			mgr.UpdateNodeLoad(s.id, s.load, pyferris.NodeActive)
		}

		lb := pyferris.NewLoadBalancer(pyferris.LoadBalancingStrategy(clusterStrategy))
		node, ok := lb.SelectNode(mgr.ActiveNodes(), pyferris.Requirements{})
		if !ok {
			fmt.Println("no eligible node")
			return nil
		}
		fmt.Printf("selected: %s (load=%.2f, cores=%d)\n", node.ID, node.Load, node.Capabilities.CPUCores)
		return nil
	},
}

func init() {
	clusterSimulateCmd.Flags().StringVar(&clusterStrategy, "strategy", string(pyferris.StrategyRoundRobin), "round_robin|least_loaded|weighted|capability")
}
