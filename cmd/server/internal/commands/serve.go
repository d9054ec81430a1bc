package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/osteovet/platform/internal/billing"
	"github.com/osteovet/platform/internal/config"
	"github.com/osteovet/platform/internal/evolution"
	"github.com/osteovet/platform/internal/logger"
	"github.com/osteovet/platform/internal/mailer"
	"github.com/osteovet/platform/internal/server"
	"github.com/osteovet/platform/internal/store"
	memorystore "github.com/osteovet/platform/internal/store/memory"
	postgresstore "github.com/osteovet/platform/internal/store/postgres"
	"github.com/osteovet/platform/internal/trial"
	"github.com/osteovet/platform/internal/vulgarize"
)

type ServeCmd struct {
	Config string `help:"path to the YAML config file" default:"" env:"OSTEOVET_CONFIG"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting backend")

	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	if cfg.Auth.Secret == "" || cfg.Billing.WebhookSecret == "" {
		log.Warn().Msg("Running without auth or webhook secrets, signed requests cannot be verified")
	}

	var (
		orgs         store.OrganizationStore
		observations store.ObservationStore
		tasks        store.TrialTaskStore
	)

	switch cfg.Store.Kind {
	case "postgres":
		pool, err := postgresstore.NewPool(ctx, &postgresstore.PoolConfig{
			ConnString:  cfg.Store.Postgres.URL,
			AutoMigrate: cfg.Store.Postgres.AutoMigrate,
		})
		if err != nil {
			return fmt.Errorf("failed to create postgres pool: %w", err)
		}
		defer pool.Close()

		orgs = postgresstore.NewOrganizationStore(pool)
		observations = postgresstore.NewObservationStore(pool)
		tasks = postgresstore.NewTrialTaskStore(pool)
		log.Info().Msg("Using PostgreSQL stores")

	default:
		orgs = memorystore.NewOrganizationStore()
		observations = memorystore.NewObservationStore()
		tasks = memorystore.NewTrialTaskStore()
		log.Warn().Msg("Using in-memory stores, data will not survive a restart")
	}

	var sender mailer.Mailer
	if cfg.Mailer.BaseURL != "" {
		sender, err = mailer.NewHTTPAPIMailer(cfg.Mailer.BaseURL, cfg.Mailer.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create mailer: %w", err)
		}
	} else {
		log.Warn().Msg("No mailer configured, lifecycle emails will be captured in memory only")
		sender = mailer.NewCaptureMailer()
	}

	orchestrator := trial.NewOrchestrator(orgs, tasks, sender, trial.Config{
		FromAddress: cfg.Mailer.FromAddress,
		UpgradeURL:  cfg.Trial.UpgradeURL,
		CancelURL:   cfg.Trial.CancelURL,
	})

	var trialWindows billing.TrialWindowSource
	if cfg.Billing.BaseURL != "" {
		client, err := billing.NewClient(cfg.Billing.BaseURL, cfg.Billing.APIKey)
		if err != nil {
			return fmt.Errorf("failed to create billing client: %w", err)
		}
		trialWindows = client
	}

	var summarizer server.Summarizer
	if cfg.Vulgarize.APIKey != "" {
		vulgarizer, err := vulgarize.New(ctx, cfg.Vulgarize.APIKey, cfg.Vulgarize.Model)
		if err != nil {
			return fmt.Errorf("failed to create vulgarizer: %w", err)
		}
		summarizer = vulgarizer
	}

	srv, err := server.New(
		server.Config{
			AuthSecret:    []byte(cfg.Auth.Secret),
			WebhookSecret: []byte(cfg.Billing.WebhookSecret),
			CORSOrigins:   cfg.Server.CORSOrigins,
		},
		evolution.NewComparator(observations),
		orchestrator,
		trialWindows,
		orgs,
		observations,
		summarizer,
	)
	if err != nil {
		return err
	}

	runner := trial.NewRunner(tasks, orchestrator, trial.RunnerConfig{
		PollInterval:      cfg.Trial.PollInterval,
		VisibilityTimeout: cfg.Trial.VisibilityTimeout,
	})
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Trial runner stopped")
		}
	}()

	httpServer := configureHTTPServer(cfg.Server.Listen, srv.Handler(log))

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Listen).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
