package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "fleetyard.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fy",
		Short: "Fleetyard: shared equipment pickup, return and charge compliance",
		Long: `Fleetyard records who has which forklift or reach truck, enforces the
charge-cycle rules at pickup and return, and reports charging compliance.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newPickupCmd())
	cmd.AddCommand(newTakeoverCmd())
	cmd.AddCommand(newReturnCmd())
	cmd.AddCommand(newDashboardCmd())
	cmd.AddCommand(newOperatorsCmd())
	cmd.AddCommand(newFleetCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newSnapshotsCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fy %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
