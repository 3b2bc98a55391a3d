package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"capaflow/internal/bootstrap"
	"capaflow/internal/bootstrap/logging"
	"capaflow/internal/errs"
	"capaflow/internal/infrastructure/metrics"
	"capaflow/internal/usecase/capa"
)

type appDeps struct {
	app     *bootstrap.App
	svc     *capa.Service
	metrics *metrics.Prometheus
}

// withApp starts the fx graph, switches to the configured logger, makes sure
// the schema exists and hands the wired service to run.
func withApp(run func(cmd *cobra.Command, deps appDeps) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var deps appDeps
		fxApp := fx.New(
			bootstrap.Module,
			fx.NopLogger,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&deps.app, &deps.svc, &deps.metrics),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		logger, err := logging.New(cmd.ErrOrStderr(), deps.app.Config.Log.Format, deps.app.Config.Log.Level)
		if err != nil {
			return errs.Wrap(err, "configure logger")
		}
		ctx = logging.WithLogger(ctx, logger)
		cmd.SetContext(ctx)

		if err := deps.app.InitSchema(ctx); err != nil {
			return errs.Wrap(err, "ensure schema")
		}

		if err := run(cmd, deps); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
