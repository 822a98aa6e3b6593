// Package server builds the application's dependencies and runs the
// HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linkforge/trafficgate/internal/api"
	"github.com/linkforge/trafficgate/internal/challenge"
	"github.com/linkforge/trafficgate/internal/clock/system"
	"github.com/linkforge/trafficgate/internal/config"
	"github.com/linkforge/trafficgate/internal/events"
	eventsMemory "github.com/linkforge/trafficgate/internal/events/memory"
	eventsPubsub "github.com/linkforge/trafficgate/internal/events/pubsub"
	"github.com/linkforge/trafficgate/internal/gate"
	"github.com/linkforge/trafficgate/internal/links"
	"github.com/linkforge/trafficgate/internal/logging"
	"github.com/linkforge/trafficgate/internal/pow"
	"github.com/linkforge/trafficgate/internal/rdns"
)

// App contains the application's long-lived dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	store     links.Store
	publisher events.Publisher
}

// Build creates the application's dependencies from configuration.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logger.Info("building application dependencies")

	store, err := setupLinkStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	publisher, err := setupPublisher(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	clock := system.New()
	powEngine := pow.NewEngine(cfg.Gate.Secret, cfg.Gate.Difficulty, cfg.SessionTTL(), clock)

	classifier, err := gate.NewClassifier(gate.ClassifierConfig{
		BotTokens:       cfg.Gate.BotTokens,
		HeadlessTokens:  cfg.Gate.HeadlessTokens,
		WebviewTokens:   cfg.Gate.WebviewTokens,
		CrawlerClaims:   claimNames(cfg.Gate.CrawlerClaims),
		DatacenterCIDRs: cfg.Gate.DatacenterCIDRs,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("classifier init failed: %w", err)
	}

	crawlerVerifier := rdns.New(
		net.DefaultResolver,
		cfg.RDNSTimeout(),
		cfg.Gate.CrawlerClaims,
		logger.Named("rdns"),
	)

	policy := gate.NewEngine(gate.PolicyConfig{
		ExemptPaths:     cfg.Gate.ExemptPaths,
		PreviewCrawlers: cfg.Gate.PreviewCrawlers,
		SafePath:        cfg.Gate.SafePath,
		ChallengeScore:  cfg.Gate.ChallengeScore,
		BlockScore:      cfg.Gate.BlockScore,
	}, powEngine, crawlerVerifier)

	gatekeeper := gate.NewGatekeeper(
		classifier,
		policy,
		publisher,
		clock,
		logger.Named("gate"),
		cfg.Server.TrustProxyHeader,
	)

	challengeHandler := challenge.NewHandler(
		powEngine,
		cfg.Gate.CookieSecure,
		cfg.Server.TrustProxyHeader,
		logger.Named("challenge"),
	)

	apiServer := api.NewServer(gatekeeper, challengeHandler, store, logger.Named("api"))

	return &App{
		cfg:       cfg,
		logger:    logger,
		apiServer: apiServer,
		store:     store,
		publisher: publisher,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	a.Close()
	return nil
}

// Close gracefully shuts down the application's services.
func (a *App) Close() {
	a.store.Close()
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("publisher close failed", zap.Error(err))
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func setupLinkStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (links.Store, error) {
	if cfg.Links.DSN != "" {
		logger.Info("using postgres link store", zap.String("table", cfg.Links.Table))
		store, err := links.NewPostgresStore(ctx, links.PostgresConfig{
			DSN:   cfg.Links.DSN,
			Table: cfg.Links.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("link store init failed: %w", err)
		}
		return store, nil
	}
	logger.Info("using in-memory link store", zap.Int("links", len(cfg.Links.Static)))
	return links.NewMemoryStore(cfg.Links.Static), nil
}

func setupPublisher(ctx context.Context, cfg config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.Events.ProjectID == "" || cfg.Events.TopicName == "" {
		logger.Info("no Pub/Sub topic configured, using in-memory event publisher")
		return eventsMemory.New(), nil
	}
	publisher, err := eventsPubsub.New(ctx, cfg.Events.ProjectID, cfg.Events.TopicName)
	if err != nil {
		return nil, fmt.Errorf("event publisher init failed: %w", err)
	}
	logger.Info("Pub/Sub event publisher initialized",
		zap.String("project", cfg.Events.ProjectID),
		zap.String("topic", cfg.Events.TopicName),
	)
	return publisher, nil
}

func claimNames(claims map[string][]string) []string {
	names := make([]string, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	return names
}
