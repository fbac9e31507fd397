package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/agency-hub/internal/api/http"
	"github.com/spec-kit/agency-hub/internal/api/http/handlers"
	"github.com/spec-kit/agency-hub/internal/auth"
	"github.com/spec-kit/agency-hub/internal/cache"
	"github.com/spec-kit/agency-hub/internal/clock"
	"github.com/spec-kit/agency-hub/internal/config"
	"github.com/spec-kit/agency-hub/internal/domain"
	"github.com/spec-kit/agency-hub/internal/events"
	"github.com/spec-kit/agency-hub/internal/observability"
	"github.com/spec-kit/agency-hub/internal/persistence"
	"github.com/spec-kit/agency-hub/internal/repository"
	"github.com/spec-kit/agency-hub/internal/service"
	"github.com/spec-kit/agency-hub/internal/state"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type stores struct {
	entries repository.TimeEntryRepository
	members repository.TeamMemberRepository
	pingers map[string]handlers.Pinger
	closers []func()
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := auth.ValidatePermissionTable(); err != nil {
		return fmt.Errorf("permission table: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		for i := len(st.closers) - 1; i >= 0; i-- {
			st.closers[i]()
		}
	}()

	stateContainer := state.Container(state.NewMemory())
	if cfg.State.Driver == config.StateDriverRedis {
		rd := persistence.NewRedis(ctx, cfg.Redis, logger)
		st.closers = append(st.closers, rd.Close)
		st.pingers["redis"] = rd
		stateContainer = state.NewRedis(rd.Client, cfg.State.KeyPrefix, logger)
	}

	sysClock := clock.System()
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()
	metrics.Subscribe(dispatcher)

	recorder := service.NewRecorder(service.RecorderDependencies{
		Store:      st.entries,
		Clock:      sysClock,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	timerService := service.NewTimerService(service.TimerDependencies{
		State:        stateContainer,
		Recorder:     recorder,
		Clock:        sysClock,
		Dispatcher:   dispatcher,
		Logger:       logger,
		TickInterval: cfg.Timer.TickInterval(),
	})
	defer timerService.Close()

	entryService := service.NewTimeEntryService(service.TimeEntryDependencies{
		Entries:    st.entries,
		Summaries:  cache.New[string, domain.TimeSummary](cfg.Cache.MaxSize, cfg.Cache.MaxAge(), sysClock),
		Dispatcher: dispatcher,
		Clock:      sysClock,
		Logger:     logger,
	})
	teamService := service.NewTeamService(cfg.Auth, service.TeamDependencies{
		Members:    st.members,
		Clock:      sysClock,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	if _, err := teamService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminName, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPass); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, st.pingers),
		Auth:           handlers.NewAuthHandler(teamService),
		Timer:          handlers.NewTimerHandler(timerService),
		TimeEntries:    handlers.NewTimeEntriesHandler(entryService),
		Team:           handlers.NewTeamHandler(teamService),
		AuthMiddleware: auth.NewAuthMiddleware(teamService.TokenManager(), st.members),
		Metrics:        metrics,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()),
			zap.String("storage", cfg.Storage.Driver), zap.String("state", cfg.State.Driver))
		errCh <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case <-waitForShutdown(ctx, logger):
	}

	return gracefulShutdown(app, timerService.Close, shutdownTimeout)
}

// gracefulShutdown ends long-lived timer streams before draining connections;
// fiber's shutdown otherwise waits on them indefinitely.
func gracefulShutdown(app *fiber.App, closeStreams func(), timeout time.Duration) error {
	closeStreams()
	return app.ShutdownWithTimeout(timeout)
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	st := &stores{pingers: map[string]handlers.Pinger{}}

	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.entries = repository.NewTimeEntryRepository(pg.Pool)
		st.members = repository.NewTeamMemberRepository(pg.Pool)
		st.pingers["postgres"] = pg
		st.closers = append(st.closers, pg.Close)
	case config.StorageDriverSQLite:
		lite, err := repository.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLite.Path))
		st.entries = lite.TimeEntries()
		st.members = lite.TeamMembers()
		st.pingers["sqlite"] = lite
		st.closers = append(st.closers, func() { _ = lite.Close() })
	default:
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := repository.NewMemory()
		st.entries = mem.TimeEntries()
		st.members = mem.TeamMembers()
	}
	return st, nil
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}
	}()
	return done
}
