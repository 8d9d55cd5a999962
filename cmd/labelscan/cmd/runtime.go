package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/cache"
	"github.com/MeKo-Tech/labelscan/internal/config"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/recognizer/tesseract"
	"github.com/MeKo-Tech/labelscan/internal/scan"
	"github.com/redis/go-redis/v9"
)

const redisDialTimeout = 5 * time.Second

// newBackend creates the recognition backend. Tests replace it.
var newBackend = func(cfg tesseract.Config) (recognizer.Backend, error) {
	b, err := tesseract.New(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// runtime is the wired recognition stack for one command invocation.
type runtime struct {
	engine   *recognizer.Engine
	pipeline *pipeline.Pipeline
	service  *scan.Service
	redis    *redis.Client
}

// newRuntime wires backend, engine, cache, pipeline and scan service from cfg.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	tcfg := cfg.ToTesseractConfig()
	backend, err := newBackend(tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recognition backend: %w", err)
	}
	rt := &runtime{engine: recognizer.NewEngine(backend, tcfg.Mode())}

	store, err := rt.cacheStore(ctx, cfg.Cache)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	c := cache.New[pipeline.Result](store, cache.WithName("recognition"), cache.WithTTL(cfg.Cache.TTL))

	rt.pipeline, err = pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithCache(c).
		Build(rt.engine)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	rt.service = scan.NewService(rt.pipeline, scan.WithLogger(slog.Default()))
	slog.Debug("Recognition stack ready", "backend", tcfg.Mode(), "cache", cfg.Cache.Backend,
		"languages", cfg.Languages(), "pipeline_version", cfg.Recognition.PipelineVersion)
	return rt, nil
}

func (rt *runtime) cacheStore(ctx context.Context, cc config.CacheConfig) (cache.Store[pipeline.Result], error) {
	if cc.Backend != config.CacheBackendRedis {
		return cache.NewMemoryStore[pipeline.Result](), nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	client, err := cache.DialRedis(dialCtx, cc.RedisURL)
	if err != nil {
		return nil, err
	}
	rt.redis = client
	return cache.NewRedisStore[pipeline.Result](client, cc.KeyPrefix), nil
}

// Close releases the engine and the redis connection.
func (rt *runtime) Close() error {
	var firstErr error
	if rt.engine != nil {
		firstErr = rt.engine.Close()
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
