package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/CedoySch/PhysicsLT2.2/internal/api"
	"github.com/CedoySch/PhysicsLT2.2/internal/auth"
	"github.com/CedoySch/PhysicsLT2.2/internal/cache"
	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/config"
	"github.com/CedoySch/PhysicsLT2.2/internal/health"
	"github.com/CedoySch/PhysicsLT2.2/internal/stream"
	"github.com/CedoySch/PhysicsLT2.2/web"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(os.Getenv("PROJECTILE_CONFIG"))
	if err != nil {
		logger.Error("invalid configuration file", "error", err)
		os.Exit(1)
	}
	applyLogLevel(logger, level, cfg.Log)

	addr := cfg.HTTP.Addr
	if v := os.Getenv("PROJECTILE_HTTP_ADDR"); v != "" {
		addr = v
	}

	authCfg, err := loadAuthConfig(logger, cfg.Auth)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	chartCfg := loadChartConfig(logger, cfg.Chart)
	renderer := chart.NewRenderer(chartCfg)
	readiness := &health.Readiness{}

	renderCache := cache.New(loadCacheConfig(logger, cfg.Cache), logger)
	sessions := stream.NewHandler(renderer, loadSessionConfig(logger, cfg.Session, cfg.HTTP.TrustProxy), logger)

	srv := api.NewServer(addr, logger, authCfg, api.Deps{
		Renderer:  renderer,
		Cache:     renderCache,
		Sessions:  sessions,
		Readiness: readiness,
		Web:       web.Content,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start cache sweeper.
	go renderCache.Start(ctx)

	// The first gonum render loads fonts; report ready only after it.
	go func() {
		start := time.Now()
		if err := renderer.WarmUp(); err != nil {
			logger.Error("chart renderer warm-up failed", "error", err)
			return
		}
		readiness.MarkReady()
		logger.Info("chart renderer ready", "duration_ms", time.Since(start).Milliseconds())
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func applyLogLevel(logger *slog.Logger, level *slog.LevelVar, fileCfg config.LogConfig) {
	name := fileCfg.Level
	if v := os.Getenv("PROJECTILE_LOG_LEVEL"); v != "" {
		name = v
	}
	l, err := config.ParseLevel(name)
	if err != nil {
		logger.Warn("invalid PROJECTILE_LOG_LEVEL value, using info", "value", name)
	}
	level.Set(l)
}

func loadAuthConfig(logger *slog.Logger, fileCfg config.AuthConfig) (auth.Config, error) {
	cfg := auth.Config{Enabled: fileCfg.Enabled, Token: fileCfg.Token}

	enabledStr := os.Getenv("PROJECTILE_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("PROJECTILE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if v := os.Getenv("PROJECTILE_AUTH_TOKEN"); v != "" {
		cfg.Token = v
	}

	if cfg.Enabled {
		if cfg.Token == "" {
			return cfg, errors.New("PROJECTILE_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadChartConfig(logger *slog.Logger, fileCfg config.ChartConfig) chart.Config {
	cfg := chart.Config{
		WidthPx:  fileCfg.WidthPx,
		HeightPx: fileCfg.HeightPx,
		DPI:      fileCfg.DPI,
	}

	if v := os.Getenv("PROJECTILE_CHART_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_CHART_WIDTH value, using default", "value", v, "default", cfg.WidthPx)
		} else {
			cfg.WidthPx = n
		}
	}

	if v := os.Getenv("PROJECTILE_CHART_HEIGHT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_CHART_HEIGHT value, using default", "value", v, "default", cfg.HeightPx)
		} else {
			cfg.HeightPx = n
		}
	}

	if v := os.Getenv("PROJECTILE_CHART_DPI"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_CHART_DPI value, using default", "value", v, "default", cfg.DPI)
		} else {
			cfg.DPI = n
		}
	}

	logger.Info("chart config",
		"width_px", cfg.WidthPx,
		"height_px", cfg.HeightPx,
		"dpi", cfg.DPI,
	)

	return cfg
}

func loadCacheConfig(logger *slog.Logger, fileCfg config.CacheConfig) cache.Config {
	cfg := cache.Config{
		TTL:           fileCfg.TTL,
		MaxEntries:    fileCfg.MaxEntries,
		SweepInterval: fileCfg.SweepInterval,
	}

	if v := os.Getenv("PROJECTILE_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_CACHE_TTL value, using default", "value", v, "default", cfg.TTL.Seconds())
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("PROJECTILE_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_CACHE_MAX_ENTRIES value, using default", "value", v, "default", cfg.MaxEntries)
		} else {
			cfg.MaxEntries = n
		}
	}

	if v := os.Getenv("PROJECTILE_CACHE_SWEEP_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_CACHE_SWEEP_INTERVAL value, using default", "value", v, "default", cfg.SweepInterval.Seconds())
		} else {
			cfg.SweepInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("cache config",
		"ttl_seconds", cfg.TTL.Seconds(),
		"max_entries", cfg.MaxEntries,
		"sweep_interval_seconds", cfg.SweepInterval.Seconds(),
	)

	return cfg
}

func loadSessionConfig(logger *slog.Logger, fileCfg config.SessionConfig, trustProxy bool) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: fileCfg.MaxConcurrentPerIP,
		MaxTotal:           fileCfg.MaxTotal,
		PingInterval:       fileCfg.PingInterval,
		WriteTimeout:       fileCfg.WriteTimeout,
		ReadLimit:          fileCfg.ReadLimit,
		TrustProxy:         trustProxy,
	}

	if v := os.Getenv("PROJECTILE_SESSION_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_SESSION_MAX_CONCURRENT value, using default", "value", v, "default", cfg.MaxConcurrentPerIP)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("PROJECTILE_SESSION_PING_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid PROJECTILE_SESSION_PING_INTERVAL value, using default", "value", v, "default", cfg.PingInterval.Seconds())
		} else {
			cfg.PingInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("PROJECTILE_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid PROJECTILE_TRUST_PROXY value, using default", "value", v, "default", cfg.TrustProxy)
		} else {
			cfg.TrustProxy = b
		}
	}

	logger.Info("session config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"ping_interval_seconds", cfg.PingInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
