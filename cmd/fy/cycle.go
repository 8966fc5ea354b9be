package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/fleetyard/internal/cycle"
	"github.com/zulandar/fleetyard/internal/models"
)

func newPickupCmd() *cobra.Command {
	var (
		configPath string
		vehicleID  uint
		operatorID uint
		battery    int
		reason     string
	)

	cmd := &cobra.Command{
		Use:   "pickup",
		Short: "Check a vehicle out to an operator",
		Long: `Starts a usage cycle. A vehicle still on the charger can only be taken
before its charge completes when --reason is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPickup(cmd, configPath, cycle.PickupRequest{
				VehicleID:   vehicleID,
				OperatorID:  operatorID,
				BatteryPct:  battery,
				EarlyReason: reason,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Fleetyard config file")
	cmd.Flags().UintVar(&vehicleID, "vehicle", 0, "vehicle id (required)")
	cmd.Flags().UintVar(&operatorID, "operator", 0, "operator id (required)")
	cmd.Flags().IntVar(&battery, "battery", 0, "battery level in percent (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the vehicle is needed before its charge completes")
	for _, f := range []string{"vehicle", "operator", "battery"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func runPickup(cmd *cobra.Command, configPath string, req cycle.PickupRequest) error {
	svc, err := openServices(configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	res, err := svc.engine.Pickup(context.Background(), req)
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cycle %d started: vehicle %d with operator %d at %d%%\n",
		res.Cycle.ID, res.Cycle.VehicleID, res.Cycle.OperatorID, res.Cycle.PickupBatteryPct)
	if res.Closed != nil {
		fmt.Fprintf(out, "Closed previous cycle %d (%s)\n", res.Closed.ID, res.Closed.Status)
	}
	if res.Cycle.EarlyPickup {
		fmt.Fprintln(out, "Recorded as early pickup")
	}
	return nil
}

func newTakeoverCmd() *cobra.Command {
	var (
		configPath string
		vehicleID  uint
		operatorID uint
		battery    int
	)

	cmd := &cobra.Command{
		Use:   "takeover",
		Short: "Take a vehicle someone forgot to return",
		Long:  "Force-closes another operator's in-use cycle and starts one for you.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTakeover(cmd, configPath, cycle.TakeoverRequest{
				VehicleID:  vehicleID,
				OperatorID: operatorID,
				BatteryPct: battery,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Fleetyard config file")
	cmd.Flags().UintVar(&vehicleID, "vehicle", 0, "vehicle id (required)")
	cmd.Flags().UintVar(&operatorID, "operator", 0, "operator id (required)")
	cmd.Flags().IntVar(&battery, "battery", 0, "battery level in percent (required)")
	for _, f := range []string{"vehicle", "operator", "battery"} {
		cmd.MarkFlagRequired(f)
	}
	return cmd
}

func runTakeover(cmd *cobra.Command, configPath string, req cycle.TakeoverRequest) error {
	svc, err := openServices(configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	res, err := svc.engine.Takeover(context.Background(), req)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cycle %d started: took vehicle %d over from operator %d (cycle %d closed)\n",
		res.Cycle.ID, res.Cycle.VehicleID, res.Closed.OperatorID, res.Closed.ID)
	return nil
}

func newReturnCmd() *cobra.Command {
	var (
		configPath string
		operatorID uint
		battery    int
		returnType string
		locationID uint
	)

	cmd := &cobra.Command{
		Use:   "return <cycle-id>",
		Short: "Return a vehicle to the charger or park it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid cycle id %q", args[0])
			}
			req := cycle.ReturnRequest{
				CycleID:    uint(id),
				BatteryPct: battery,
				ReturnType: models.ReturnType(returnType),
				OperatorID: operatorID,
			}
			if cmd.Flags().Changed("location") {
				req.LocationID = &locationID
			}
			return runReturn(cmd, configPath, req)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Fleetyard config file")
	cmd.Flags().UintVar(&operatorID, "operator", 0, "operator returning the vehicle (default: who picked it up)")
	cmd.Flags().IntVar(&battery, "battery", 0, "battery level in percent (required)")
	cmd.Flags().StringVar(&returnType, "type", string(models.ReturnCharge), "charge or park")
	cmd.Flags().UintVar(&locationID, "location", 0, "location id (required for park)")
	cmd.MarkFlagRequired("battery")
	return cmd
}

func runReturn(cmd *cobra.Command, configPath string, req cycle.ReturnRequest) error {
	svc, err := openServices(configPath, cmd.ErrOrStderr(), nil)
	if err != nil {
		return err
	}
	res, err := svc.engine.Return(context.Background(), req)
	if err != nil {
		return describe(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cycle %d returned: %s at %d%%\n", res.Cycle.ID, res.Cycle.Status, req.BatteryPct)
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "WARNING: %s\n", w)
	}
	return nil
}

// describe turns a domain rejection into the message an operator acts on.
func describe(err error) error {
	de, ok := cycle.AsDomain(err)
	if !ok {
		return err
	}
	var b strings.Builder
	b.WriteString(de.Message)
	switch de.Kind {
	case cycle.KindResourceBusy:
		if de.HolderName != "" {
			fmt.Fprintf(&b, " (ask %s to return it, or use takeover)", de.HolderName)
		}
	case cycle.KindInsufficientCharge:
		fmt.Fprintf(&b, " (ready in %s, or pass --reason)", formatMinutes(de.RemainingMinutes))
	}
	return fmt.Errorf("%s: %s", de.Kind, b.String())
}
