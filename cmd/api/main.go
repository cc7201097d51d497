package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/valarieck/waconcierge/internal/ai"
	"github.com/valarieck/waconcierge/internal/api/router"
	"github.com/valarieck/waconcierge/internal/channel"
	appconfig "github.com/valarieck/waconcierge/internal/config"
	"github.com/valarieck/waconcierge/internal/engine"
	"github.com/valarieck/waconcierge/internal/http/handlers"
	"github.com/valarieck/waconcierge/internal/lookup"
	"github.com/valarieck/waconcierge/internal/menu"
	"github.com/valarieck/waconcierge/internal/observability/metrics"
	"github.com/valarieck/waconcierge/internal/session"
	"github.com/valarieck/waconcierge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting waconcierge gateway",
		"env", cfg.Env,
		"port", cfg.Port,
		"menu_family", cfg.MenuFamily,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := buildSessionStore(cfg, logger)
	conversationMetrics := metrics.NewConversationMetrics(nil)

	// An unconfigured lookup backend still gets a client; it answers every
	// search with the not-configured failure instead of crashing the flow.
	searcher := lookup.NewClient(cfg.LookupAPIURL, cfg.LookupAPIToken, cfg.LookupTimeout, logger)
	if cfg.LookupAPIURL == "" {
		logger.Warn("lookup backend not configured, searches will fail politely")
	}

	var asker engine.Asker
	var aiClient *ai.Client
	if cfg.AIAPIURL != "" {
		aiClient = ai.NewClient(cfg.AIAPIURL, cfg.AIAPISecret, cfg.AITimeout, cfg.AIRetries, cfg.AIRetryBaseWait, logger)
		asker = aiClient
	}

	eng := engine.New(store, searcher, asker, engineConfig(cfg), conversationMetrics, logger)

	sweeper := session.NewSweeper(store, cfg.SweepInterval, logger)
	sweeper.OnSweep(conversationMetrics.ObserveSessionExpirations)
	go sweeper.Run(ctx)

	history := channel.NewHistory(cfg.HistoryLimit)

	var bridge *channel.Bridge
	if cfg.BridgeWSURL != "" {
		bridge = channel.NewBridge(cfg.BridgeWSURL, cfg.BridgeReconnectDelay, eng, history, logger)
		go bridge.Run(ctx)
	} else {
		logger.Warn("bridge not configured, running management API only")
	}

	var bridgeIface handlers.Bridge
	if bridge != nil {
		bridgeIface = bridge
	}
	var aiHealth handlers.AIHealthChecker
	if aiClient != nil {
		aiHealth = aiClient
	}
	gateway := handlers.NewGatewayHandler(eng, bridgeIface, aiHealth, history, logger)

	r := router.New(&router.Config{
		Gateway:         gateway,
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildSessionStore picks Redis when configured, in-memory otherwise.
func buildSessionStore(cfg *appconfig.Config, logger *logging.Logger) session.Store {
	if cfg.RedisAddr == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis unreachable, falling back to in-memory sessions", "addr", cfg.RedisAddr, "error", err)
		return session.NewMemoryStore()
	}

	logger.Info("using redis session store", "addr", cfg.RedisAddr)
	return session.NewRedisStore(client)
}

// engineConfig maps the environment configuration onto one menu family.
func engineConfig(cfg *appconfig.Config) engine.Config {
	if cfg.MenuFamily == menu.FamilyFixed {
		return engine.Config{
			Registry:    menu.FixedTree(),
			Family:      menu.FamilyFixed,
			Timeout:     cfg.MenuTimeout,
			AIAutoReply: cfg.AIAutoReply,
		}
	}

	kinds := make(map[session.State]lookup.Kind, len(cfg.SearchKinds))
	for _, k := range cfg.SearchKinds {
		switch lookup.Kind(k) {
		case lookup.KindName:
			kinds[session.StateAwaitingName] = lookup.KindName
		case lookup.KindID:
			kinds[session.StateAwaitingID] = lookup.KindID
		case lookup.KindPlate:
			kinds[session.StateAwaitingPlate] = lookup.KindPlate
		}
	}

	return engine.Config{
		Registry:    menu.LookupMenu(),
		Family:      menu.FamilyLookup,
		Timeout:     cfg.LookupMenuTimeout,
		SearchKinds: kinds,
		ExitTokens:  []string{"0", "salir"},
		AIAutoReply: cfg.AIAutoReply,
	}
}
