// swarmd is the swarm coordination server. It exposes the agent registry,
// task orchestration, handoff, consensus and collaboration APIs over HTTP,
// publishes domain events to Redis and runs the background liveness and
// expiry sweeps.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hivechat/swarm/api/handlers"
	"github.com/hivechat/swarm/config"
	"github.com/hivechat/swarm/internal/broadcast"
	"github.com/hivechat/swarm/internal/directory"
	"github.com/hivechat/swarm/internal/metrics"
	"github.com/hivechat/swarm/internal/server"
	"github.com/hivechat/swarm/internal/storage"
	"github.com/hivechat/swarm/internal/tlsutil"
	"github.com/hivechat/swarm/swarm"
	"github.com/hivechat/swarm/swarm/sweep"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.NewLoader().
		WithConfigPath(configPath).
		WithEnvPrefix("SWARM").
		WithValidator(func(c *config.Config) error { return c.Validate() }).
		Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	store, err := storage.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	var emitter broadcast.Emitter = broadcast.NopEmitter{}
	var agentDir *directory.Resolver
	if cfg.Redis.Addr != "" {
		opts := &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		if cfg.Redis.TLS {
			opts.TLSConfig = tlsutil.ClientConfig()
		}
		rdb := redis.NewClient(opts)
		emitter = broadcast.NewRedisEmitter(rdb, cfg.Redis.ChannelPrefix, logger)
		agentDir = directory.New(store, rdb, 30*time.Second, logger)
	}

	collector := metrics.NewCollector()
	settings := config.NewStore(cfg, configPath, logger)

	core, err := swarm.New(swarm.Options{
		Storage:   store,
		Settings:  settings,
		Emitter:   emitter,
		Directory: agentDir,
		Collector: collector,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("wire services: %w", err)
	}
	defer core.Stop()

	if err := core.StartSweeps(sweep.New(logger, time.Minute)); err != nil {
		return fmt.Errorf("start sweeps: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if configPath != "" {
		go settings.Watch(ctx, 10*time.Second)
	}

	api := handlers.NewAPI(core, settings, logger)
	var handler http.Handler = api.Routes()
	handler = withRateLimit(handler, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	handler = withLogging(handler, logger, collector)
	handler = withRequestContext(handler)
	handler = withRecovery(handler, logger)

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	srvCfg.ReadTimeout = cfg.Server.ReadTimeout
	srvCfg.WriteTimeout = cfg.Server.WriteTimeout
	srvCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	srvCfg.TLSCertFile = cfg.Server.TLSCertFile
	srvCfg.TLSKeyFile = cfg.Server.TLSKeyFile

	srv := server.NewManager(handler, srvCfg, logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if cfg.Server.MetricsPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", collector.Handler())
		metricsCfg := server.DefaultConfig()
		metricsCfg.Addr = fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		metricsSrv := server.NewManager(metricsMux, metricsCfg, logger)
		if err := metricsSrv.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsSrv.Shutdown(context.Background()) }()
	}

	srv.WaitForShutdown()
	return nil
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
