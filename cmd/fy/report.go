package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/fleetyard/internal/analytics"
	"github.com/zulandar/fleetyard/internal/models"
)

// reportFlags are shared by the read-only analytics commands.
type reportFlags struct {
	configPath string
	days       int
	asJSON     bool
}

func (f *reportFlags) register(cmd *cobra.Command, withDays bool) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to Fleetyard config file")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
	if withDays {
		cmd.Flags().IntVarP(&f.days, "days", "d", 0, "window in days (default: analytics.default_days)")
	}
}

func (f *reportFlags) window() analytics.Window {
	return analytics.Window{Days: f.days}
}

func newDashboardCmd() *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show fleet-wide charge compliance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, &f)
		},
	}
	f.register(cmd, true)
	return cmd
}

func runDashboard(cmd *cobra.Command, f *reportFlags) error {
	svc, err := openServices(f.configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	d, err := svc.analytics.Dashboard(context.Background(), f.window())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, d)
	}

	fmt.Fprintf(out, "Fleet dashboard (last %d days)\n\n", d.WindowDays)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "In use:\t%d\n", d.InUse)
	fmt.Fprintf(w, "Charging:\t%d (%d complete)\n", d.Charging, d.ChargeComplete)
	fmt.Fprintf(w, "Parked:\t%d\n", d.Parked)
	fmt.Fprintln(w, "\t")
	fmt.Fprintf(w, "Cycles:\t%d (%d completed)\n", d.TotalCycles, d.CompletedCycles)
	fmt.Fprintf(w, "Charge returns:\t%d\n", d.ChargedCycles)
	fmt.Fprintf(w, "Park returns:\t%d\n", d.ParkedCycles)
	fmt.Fprintf(w, "Takeovers:\t%d\n", d.Takeovers)
	fmt.Fprintf(w, "Early pickups:\t%d\n", d.EarlyPickups)
	fmt.Fprintf(w, "Unnecessary charges:\t%d\n", d.UnnecessaryCharges)
	fmt.Fprintf(w, "Critical battery ignored:\t%d\n", d.CriticalIgnored)
	fmt.Fprintf(w, "Charge compliance:\t%s (%d of %d)\n",
		formatPct(d.Compliance.Rate), d.Compliance.Compliant, d.Compliance.Evaluated)
	return w.Flush()
}

func newOperatorsCmd() *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "operators",
		Short: "Rate operators by charging behaviour",
		Long:  "Lists every operator with cycles in the window, worst rating first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperators(cmd, &f)
		},
	}
	f.register(cmd, true)
	return cmd
}

func runOperators(cmd *cobra.Command, f *reportFlags) error {
	svc, err := openServices(f.configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	stats, err := svc.analytics.OperatorStats(context.Background(), f.window())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, stats)
	}
	if len(stats) == 0 {
		fmt.Fprintln(out, "No cycles in window.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATOR\tRATING\tSCORE\tCYCLES\tCHARGE\tUNNEC\tEARLY\tCRITICAL\tFORGOT")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%d\t%d\n",
			s.Name, s.Rating, s.Score, s.Cycles,
			formatPct(s.ChargeRate), formatPct(s.UnnecessaryRate), formatPct(s.EarlyRate),
			s.CriticalIgnored, s.ForgotReturn)
	}
	return w.Flush()
}

func newFleetCmd() *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Show every vehicle and its charge status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFleet(cmd, &f)
		},
	}
	f.register(cmd, false)
	return cmd
}

func runFleet(cmd *cobra.Command, f *reportFlags) error {
	svc, err := openServices(f.configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	fleet, err := svc.analytics.Fleet(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, fleet)
	}
	if len(fleet) == 0 {
		fmt.Fprintln(out, "No vehicles registered.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tSTATUS\tLOCATION\tCHARGE\tOPERATOR\tBATTERY\tREADY IN")
	for _, e := range fleet {
		loc := e.Location
		if loc == "" {
			loc = "-"
		}
		op := e.OperatorName
		if op == "" {
			op = "-"
		}
		ready := "-"
		if e.RemainingChargeMinutes != nil {
			ready = formatMinutes(*e.RemainingChargeMinutes)
		}
		battery := "-"
		if e.BatteryPct != nil {
			battery = strconv.Itoa(*e.BatteryPct) + "%"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Code, e.Status, loc, e.ChargeStatus, op, battery, ready)
	}
	return w.Flush()
}

func newHistoryCmd() *cobra.Command {
	var (
		f          reportFlags
		vehicleID  uint
		operatorID uint
		status     string
		page       int
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List cycles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := analytics.HistoryQuery{
				Window: f.window(),
				Filter: analytics.Filter{
					VehicleID:  vehicleID,
					OperatorID: operatorID,
					Status:     models.CycleStatus(status),
				},
				Page:  page,
				Limit: limit,
			}
			return runHistory(cmd, &f, q)
		},
	}
	f.register(cmd, true)
	cmd.Flags().UintVar(&vehicleID, "vehicle", 0, "only this vehicle")
	cmd.Flags().UintVar(&operatorID, "operator", 0, "only this operator")
	cmd.Flags().StringVar(&status, "status", "", "only cycles in this status")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", analytics.DefaultLimit, "cycles per page")
	return cmd
}

func runHistory(cmd *cobra.Command, f *reportFlags, q analytics.HistoryQuery) error {
	if q.Filter.Status != "" && !q.Filter.Status.Valid() {
		return fmt.Errorf("invalid status %q", q.Filter.Status)
	}
	svc, err := openServices(f.configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	h, err := svc.analytics.History(context.Background(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, h)
	}
	if len(h.Cycles) == 0 {
		fmt.Fprintln(out, "No cycles found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVEHICLE\tOPERATOR\tSTATUS\tPICKUP\tBATT\tRETURN\tTYPE\tBATT")
	for _, c := range h.Cycles {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
			c.ID, c.VehicleCode, c.OperatorName, c.Status,
			formatTime(&c.PickupTime), c.PickupBatteryPct,
			formatTime(c.ReturnTime), orDash(c.ReturnType), orDash(c.ReturnBatteryPct))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nPage %d, %d of %d cycles in the last %d days\n", h.Page, len(h.Cycles), h.Total, h.Days)
	return nil
}

func newSnapshotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Store and list compliance snapshots",
	}
	cmd.AddCommand(newSnapshotsTakeCmd())
	cmd.AddCommand(newSnapshotsListCmd())
	return cmd
}

func newSnapshotsTakeCmd() *cobra.Command {
	var f reportFlags
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Store a compliance snapshot now",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(f.configPath, cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			snap, err := svc.analytics.Snapshot(context.Background(), f.window())
			if err != nil {
				return err
			}
			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), snap)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %d stored: compliance %s over %d days\n",
				snap.ID, formatPct(snap.ComplianceRate), snap.WindowDays)
			return nil
		},
	}
	f.register(cmd, true)
	return cmd
}

func newSnapshotsListCmd() *cobra.Command {
	var (
		f     reportFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices(f.configPath, cmd.ErrOrStderr(), nil)
			if err != nil {
				return err
			}
			snaps, err := svc.analytics.Snapshots(context.Background(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if f.asJSON {
				return writeJSON(out, snaps)
			}
			if len(snaps) == 0 {
				fmt.Fprintln(out, "No snapshots stored.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTAKEN\tDAYS\tCYCLES\tCOMPLIANCE\tSAMPLE")
			for _, s := range snaps {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%d\n",
					s.ID, formatTime(&s.TakenAt), s.WindowDays, s.TotalCycles,
					formatPct(s.ComplianceRate), s.ComplianceSample)
			}
			return w.Flush()
		},
	}
	f.register(cmd, false)
	cmd.Flags().IntVar(&limit, "limit", 20, "number of snapshots")
	return cmd
}
