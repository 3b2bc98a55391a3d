package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"capaflow/internal/bootstrap/config"
	"capaflow/internal/bootstrap/database"
	"capaflow/internal/bootstrap/logging"
	cacheinfra "capaflow/internal/infrastructure/cache"
	"capaflow/internal/infrastructure/metrics"
	sqliterepo "capaflow/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "capaflow/internal/infrastructure/persistence/sqlite/uow"
	"capaflow/internal/ports"
	"capaflow/internal/usecase/capa"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewCAPARepository,
			fx.As(new(ports.CAPARepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(metrics.NewPrometheus),
	fx.Provide(func(m *metrics.Prometheus) ports.WorkflowMetrics { return m }),
	fx.Provide(func() ports.Clock { return ports.SystemClock{} }),
	fx.Provide(capa.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}
