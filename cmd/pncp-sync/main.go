package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wilsonmesquita03/licitahub-sub000/internal/config"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/notify"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/progress"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/reconciler"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pipeline/resolver"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/pncp"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/scheduler"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/server"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/store/postgres"
	redispkg "github.com/wilsonmesquita03/licitahub-sub000/internal/store/redis"
	"github.com/wilsonmesquita03/licitahub-sub000/internal/tracing"
)

func resolveStreamBackend(cfg *config.Config, logger *slog.Logger) (redispkg.MessageTransport, error) {
	if !cfg.Redis.StreamEnabled {
		return redispkg.NewInMemoryStream(), nil
	}
	backend, err := redispkg.NewStream(strings.TrimSpace(cfg.Redis.URL))
	if err != nil {
		return nil, err
	}
	logger.Info("redis stream transport enabled", "redis_url", cfg.Redis.URL)
	return backend, nil
}

func resolveMailer(cfg *config.Config, logger *slog.Logger) notify.Mailer {
	if cfg.Notify.MailerURL == "" {
		logger.Warn("no mailer url configured, notifications go to the log only")
		return notify.NewLogMailer(logger)
	}
	return notify.NewHTTPMailer(cfg.Notify.MailerURL)
}

func main() {
	logLevel := slog.LevelInfo
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting pncp-sync",
		"pncp_base_url", cfg.PNCP.BaseURL,
		"page_size", cfg.Pipeline.PageSize,
		"schedule_interval", cfg.Pipeline.ScheduleInterval.String(),
		"server_port", cfg.Server.Port,
		"redis_stream", cfg.Redis.StreamEnabled,
	)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName: "pncp-sync",
		Endpoint:    tracingEndpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Enabled {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	db, err := postgres.New(postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("connected to database")

	if cfg.DB.MigrationsDir != "" {
		if err := db.RunMigrations(cfg.DB.MigrationsDir); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied", "dir", cfg.DB.MigrationsDir)
	}

	streamBackend, err := resolveStreamBackend(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize stream transport", "error", err, "redis_url", cfg.Redis.URL)
		os.Exit(1)
	}
	defer streamBackend.Close()

	client := pncp.NewClient(cfg.PNCP.BaseURL, cfg.PNCP.Timeout, logger)
	if cfg.PNCP.RateLimitRPS > 0 {
		client.SetRateLimiter(rate.NewLimiter(rate.Limit(cfg.PNCP.RateLimitRPS), cfg.PNCP.RateLimitBurst))
	}

	pageResolver := resolver.New(
		postgres.NewOrganizationalUnitRepo(db),
		postgres.NewContractingEntityRepo(db),
		postgres.NewLegalBasisRepo(db),
		logger,
	)
	pageReconciler := reconciler.New(
		postgres.NewTenderRepo(db),
		postgres.NewFollowerRepo(db),
		streamBackend,
		logger,
	)
	tracker := progress.New(postgres.NewSyncProgressRepo(db), logger)

	syncer := pipeline.NewSyncer(client, pageResolver, pageReconciler, tracker, pipeline.Config{
		PageSize:         cfg.Pipeline.PageSize,
		RetryMaxAttempts: cfg.Pipeline.RetryMaxAttempts,
		BackoffInitial:   cfg.Pipeline.BackoffInitial,
		BackoffMax:       cfg.Pipeline.BackoffMax,
		SafetyMargin:     cfg.Pipeline.BudgetSafetyMargin,
	}, logger)

	templates, err := notify.LoadTemplates(cfg.Notify.TemplateManifest)
	if err != nil {
		logger.Error("failed to load notification templates", "error", err)
		os.Exit(1)
	}
	notifier := notify.NewNotifier(streamBackend, resolveMailer(cfg, logger), templates, cfg.Notify.Workers, logger)

	guard := &pipeline.RunGuard{}
	httpServer := server.New(syncer, guard, cfg.Pipeline.HTTPBudget, cfg.Server.Port, logger)
	sched := scheduler.New(syncer, guard, cfg.Pipeline.ScheduleInterval, cfg.Pipeline.ScheduleBudget, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return httpServer.Run(gCtx)
	})
	g.Go(func() error {
		err := sched.Run(gCtx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return notifier.Run(gCtx)
	})
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("pncp-sync exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("pncp-sync shut down gracefully")
}
