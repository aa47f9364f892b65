package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/watchsec/commnode/internal/api"
	mw "github.com/watchsec/commnode/internal/api/middleware"
	"github.com/watchsec/commnode/internal/config"
	"github.com/watchsec/commnode/internal/core"
	"github.com/watchsec/commnode/internal/db"
	"github.com/watchsec/commnode/internal/logging"
	"github.com/watchsec/commnode/internal/metrics"
	"github.com/watchsec/commnode/internal/notify"
	"github.com/watchsec/commnode/internal/platform"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) >= 2 && os.Args[1] == "create-api-key" {
		createAPIKey(os.Args[2:])
		return
	}

	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.DSN()); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("communication node stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DSN(), db.PoolOptions{
		MinConns:       cfg.DBMinConnections,
		MaxConns:       cfg.DBMaxConnections,
		ConnectTimeout: cfg.DatabaseTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := metrics.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool); err != nil {
		return fmt.Errorf("register pool metrics: %w", err)
	}

	runner := core.NewRunner(core.NewConnPool(pool),
		core.WithMaxAttempts(cfg.RetryMaxAttempts),
		core.WithDelay(cfg.RetryDelay),
		core.WithLogger(logger),
		core.WithMetrics(metrics.StoreRetries, metrics.StoreFailures),
	)
	services := core.NewServices(pool, runner)

	notifier := notify.New(newDialer(cfg),
		notify.WithLogger(logger.With().Str("component", "notifier").Logger()),
		notify.WithMetrics(metrics.Notifications),
	)
	notifier.Start(ctx)
	defer notifier.Close()

	// Deferred after the pool so it is flushed first, once the servers have stopped.
	auditLogger := mw.NewAuditLogger(pool, logger)
	defer auditLogger.Close()

	srv := api.NewServer(logger, pool, services, notifier, auditLogger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPListenAddr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	servers := []*http.Server{httpServer}
	if cfg.MetricsListenAddr != "" {
		servers = append(servers, metrics.NewServer(cfg.MetricsListenAddr, pool.Ping))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(func() error {
			logger.Info().Str("addr", s.Addr).Msg("starting server")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s: %w", s.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, s := range servers {
			if err := s.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Str("addr", s.Addr).Msg("server shutdown")
			}
		}
		return nil
	})

	return g.Wait()
}

// newDialer returns the notification transport selected by the
// configuration, or nil when notifications are disabled.
func newDialer(cfg *config.Config) notify.Dialer {
	switch cfg.NotifyTransport {
	case config.TransportWebSocket:
		return &notify.WebSocketDialer{URL: cfg.NotifyURL, Secret: cfg.NotifySecret}
	case config.TransportMQTT:
		return &notify.MQTTDialer{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}
	}
	return nil
}

func createAPIKey(args []string) {
	fs := flag.NewFlagSet("create-api-key", flag.ExitOnError)
	level := fs.Int("level", -1, "Access level of the key (required, see table below)")
	description := fs.String("description", "", "What the key is for")
	fs.Parse(args)

	printAccessRights()

	if !knownLevel(*level) {
		fmt.Fprintln(os.Stderr, "error: --level must be one of the levels above")
		fmt.Fprintln(os.Stderr, "usage: commnode create-api-key --level <level> [--description <text>]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DSN(), db.PoolOptions{ConnectTimeout: cfg.DatabaseTimeout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	var desc *string
	if *description != "" {
		desc = description
	}
	secret := platform.NewSecret()
	id, err := core.NewCredentialService(pool).Insert(ctx, secret, *level, desc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key created successfully.\n\n")
	fmt.Printf("  ID:     %d\n", id)
	fmt.Printf("  Level:  %d\n", *level)
	fmt.Printf("  Key:    %s\n\n", secret)
	fmt.Printf("Save this key, it will not be shown again.\n")
}

func printAccessRights() {
	fmt.Println("Access levels:")
	for _, r := range core.AccessRights {
		fmt.Printf("  %d  %s\n", r.Level, r.Description)
	}
	fmt.Println()
}

func knownLevel(level int) bool {
	for _, r := range core.AccessRights {
		if r.Level == level {
			return true
		}
	}
	return false
}
