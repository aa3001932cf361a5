package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/navi/cmd/navi/runtime"

	"github.com/harunnryd/navi/internal/daemon"
	"github.com/harunnryd/navi/internal/daemon/components"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the check-in and reflection loops",
	Long:  `Starts Navi as a long-running service. It runs the enabled loops on their schedules, serves chat adapters and exposes a health endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		instance, _ := cmd.Flags().GetString("instance")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(instance, cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}

		rt, err := runtime.NewRuntimeBuilder().
			WithContext(context.Background()).
			WithConfig(cfg).
			WithOptions(runtime.Options{IncludeNull: true}).
			Build()
		if err != nil {
			return fmt.Errorf("failed to initialize runtime: %w", err)
		}
		defer rt.Stop()

		storeComp := components.NewStoreComponent(rt.Users, rt.Registry)
		oracleComp := components.NewOracleComponent(rt.Router)
		adaptersComp := components.NewAdaptersComponent(rt.AdapterMgr)

		daemonMgr.AddComponent(storeComp)
		daemonMgr.AddComponent(oracleComp)
		daemonMgr.AddComponent(adaptersComp)

		httpDeps := []string{storeComp.Name(), oracleComp.Name(), adaptersComp.Name()}
		if cfg.Scheduler.Checkin.Enabled {
			comp := components.NewLoopComponent(rt.Checkin)
			daemonMgr.AddComponent(comp)
			httpDeps = append(httpDeps, comp.Name())
		}
		if cfg.Scheduler.Reflection.Enabled {
			comp := components.NewLoopComponent(rt.Reflection)
			daemonMgr.AddComponent(comp)
			httpDeps = append(httpDeps, comp.Name())
		}
		if len(httpDeps) == 3 {
			slog.Warn("Both loops are disabled; the daemon will only serve adapters and health")
		}

		daemonMgr.AddComponent(components.NewHTTPServerComponentWithDependencies(daemonMgr, &cfg.Server, httpDeps))

		slog.Info("Navi daemon starting up...", "port", cfg.Server.Port, "instance", instance,
			"checkin", cfg.Scheduler.Checkin.Schedule, "reflection", cfg.Scheduler.Reflection.Schedule)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			// Cancellation via signal/context is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Navi daemon stopped gracefully", "instance", instance)
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Navi daemon stopped gracefully", "instance", instance)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().String("instance", "default", "Instance name reported by the health endpoint")
}
