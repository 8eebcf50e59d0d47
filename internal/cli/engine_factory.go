package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aretw0/glaucoscan"
	"github.com/aretw0/glaucoscan/internal/config"
	"github.com/aretw0/glaucoscan/pkg/adapters/file"
	"github.com/aretw0/glaucoscan/pkg/adapters/memory"
	"github.com/aretw0/glaucoscan/pkg/adapters/redis"
	"github.com/aretw0/glaucoscan/pkg/observability"
	"github.com/aretw0/glaucoscan/pkg/persistence/middleware"
	"github.com/aretw0/glaucoscan/pkg/ports"
	"github.com/aretw0/glaucoscan/pkg/session"
	"github.com/aretw0/glaucoscan/pkg/upload"
)

// Runtime is a fully wired engine plus the resources it owns.
type Runtime struct {
	Engine   *glaucoscan.Engine
	Store    ports.StateStore
	Registry *prometheus.Registry
	Logger   *slog.Logger

	closers []func() error
}

// Close stops the engine and releases the store.
func (r *Runtime) Close() error {
	errs := []error{r.Engine.Close()}
	for _, c := range r.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// OpenStore builds the configured StateStore with its middleware chain.
// The locker is nil unless the driver supports distributed locks.
func OpenStore(ctx context.Context, cfg *config.Config) (ports.StateStore, ports.DistributedLocker, func() error, error) {
	var (
		base    ports.StateStore
		locker  ports.DistributedLocker
		closeFn = func() error { return nil }
	)

	switch cfg.Store.Driver {
	case config.DriverMemory:
		base = memory.NewStore()
	case config.DriverFile:
		base = file.New(cfg.Store.Path)
	case config.DriverRedis:
		rs := redis.New(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB,
			redis.WithPrefix(cfg.Store.Prefix),
			redis.WithTTL(cfg.Store.TTL),
		)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, nil, nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Store.RedisAddr, err)
		}
		base = rs
		locker = redis.NewLocker(rs.Client(), rs.Prefix()+"lock:")
		closeFn = rs.Close
	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var mws []middleware.Middleware
	if len(cfg.RedactPatterns) > 0 {
		if err := middleware.CompilePatterns(cfg.RedactPatterns); err != nil {
			_ = closeFn()
			return nil, nil, nil, fmt.Errorf("invalid redact pattern: %w", err)
		}
		mws = append(mws, middleware.NewPIIMiddleware(cfg.RedactPatterns))
	}
	if cfg.EncryptionKey != "" {
		key, err := middleware.ParseKey(cfg.EncryptionKey)
		if err != nil {
			_ = closeFn()
			return nil, nil, nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}))
	}

	return middleware.Chain(base, mws...), locker, closeFn, nil
}

// Build wires an engine from the configuration.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	store, locker, closeStore, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(locker))
	}

	metrics := observability.NewMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	engine := glaucoscan.New(
		glaucoscan.WithLogger(logger),
		glaucoscan.WithSessionManager(session.NewManager(store, sessionOpts...)),
		glaucoscan.WithAnalysisDelay(cfg.AnalysisDelay),
		glaucoscan.WithUploadHandler(upload.NewHandler(
			upload.WithMaxBytes(cfg.MaxUploadBytes),
			upload.WithStrictContent(cfg.StrictContentType),
			upload.WithLogger(logger),
		)),
		glaucoscan.WithLifecycleHooks(observability.Combine(
			observability.LoggingHooks(logger),
			metrics.Hooks(),
		)),
	)
	reg.MustRegister(observability.NewPendingTasksGauge(engine.PendingTasks))

	logger.Debug("Engine wired",
		"store", cfg.Store.Driver,
		"encrypted", cfg.EncryptionKey != "",
		"redact_patterns", len(cfg.RedactPatterns),
		"analysis_delay", cfg.AnalysisDelay,
	)

	return &Runtime{
		Engine:   engine,
		Store:    store,
		Registry: reg,
		Logger:   logger,
		closers:  []func() error{closeStore},
	}, nil
}
