package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/zulandar/fleetyard/internal/analytics"
	"github.com/zulandar/fleetyard/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Fleetyard HTTP API",
		Long: `Serves pickup, takeover and return for kiosks and handhelds, plus the
compliance analytics. When analytics.snapshot_schedule is set, a compliance
snapshot is stored on that cron schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Fleetyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	svc, err := openServices(configPath, cmd.ErrOrStderr(), prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = svc.cfg.Server.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	if schedule := svc.cfg.Analytics.SnapshotSchedule; schedule != "" {
		c, err := svc.analytics.ScheduleSnapshots(schedule, analytics.Window{})
		if err != nil {
			return err
		}
		c.Start()
		defer c.Stop()
		svc.log.WithField("schedule", schedule).Info("compliance snapshots scheduled")
	}

	return server.Start(ctx, server.StartOpts{
		Engine:    svc.engine,
		Analytics: svc.analytics,
		Port:      port,
		Out:       cmd.OutOrStdout(),
		Log:       svc.log,
		JWTSecret: svc.cfg.Server.JWTSecret,
	})
}
