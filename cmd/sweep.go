package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
	"capaflow/internal/usecase/capa"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark past-due action items overdue, once or on a cron schedule",
	RunE: withApp(func(cmd *cobra.Command, deps appDeps) error {
		ctx := cmd.Context()
		cfg := deps.app.Config.Sweep

		once, _ := cmd.Flags().GetBool("once")
		if once {
			result, err := deps.svc.SweepOverdue(ctx)
			if err != nil {
				logging.Error(ctx, "overdue sweep failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "sweep overdue items")
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"scanned": result.Scanned, "marked": result.Marked, "failed": result.Failed})
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "sweep finished: scanned=%d marked=%d failed=%d\n", result.Scanned, result.Marked, result.Failed); err != nil {
				return errs.Wrap(err, "write sweep output")
			}
			return nil
		}

		schedule := cfg.Schedule
		if cmd.Flags().Changed("schedule") {
			schedule = stringFlag(cmd, "schedule")
		}
		metricsAddr := cfg.MetricsAddr
		if cmd.Flags().Changed("metrics-addr") {
			metricsAddr = stringFlag(cmd, "metrics-addr")
		}

		location, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return errs.Wrapf(err, "load sweep timezone %q", cfg.Timezone)
		}
		scheduler, err := capa.NewSweepScheduler(deps.svc, schedule, location)
		if err != nil {
			return errs.Wrap(err, "build sweep scheduler")
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		var server *http.Server
		serveErr := make(chan error, 1)
		if addr := strings.TrimSpace(metricsAddr); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", deps.metrics.Handler())
			server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

			go func() {
				logging.Info(ctx, "metrics server started", slog.String("addr", addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()
		}

		runErr := make(chan error, 1)
		go func() { runErr <- scheduler.Run(ctx) }()

		select {
		case err = <-runErr:
		case err = <-serveErr:
			logging.Error(ctx, "metrics server failed", slog.Any("err", errs.Loggable(err)))
			stop()
			<-runErr
			err = errs.Wrap(err, "serve metrics")
		}

		if server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
				logging.Warn(ctx, "metrics server shutdown failed", slog.Any("err", errs.Loggable(shutdownErr)))
			}
		}
		logging.Info(ctx, "sweep scheduler stopped")
		return err
	}),
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().Bool("once", false, "Run a single sweep and exit")
	sweepCmd.Flags().String("schedule", "", "Cron expression overriding sweep.schedule")
	sweepCmd.Flags().String("metrics-addr", "", "Prometheus listen address overriding sweep.metrics_addr (empty disables)")
}
