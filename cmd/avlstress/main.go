// Command avlstress runs randomized insert and remove rounds on the
// intrusive AVL tree and checks the whole tree after every step.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benz9527/xavl/stress"
)

// Set by -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the randomized AVL tree rounds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := stress.LoadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			report, err := runStress(cmd.Context(), cfg)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s %s: %d rounds, %d inserts, max height %d, %s\n",
					report.ID, report.Status, report.Rounds, report.Inserts, report.MaxHeight, report.Duration)
			}
			return err
		},
	}

	rootCmd := &cobra.Command{
		Use:   "avlstress",
		Short: "AVL tree stress and verification tool",
		Long: `avlstress inserts random key sets into empty trees and removes them in
another random order, checking heights, balance factors, order and the
traversals after every step.

Commands:
  run       Run the rounds (default)
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./xavl.yaml)")
	stress.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avlstress %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}
