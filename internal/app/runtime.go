package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/config"
	"pageblocks/api/internal/export"
	"pageblocks/api/internal/history"
	"pageblocks/api/internal/live"
	"pageblocks/api/internal/refs"
	"pageblocks/api/internal/schema"
	"pageblocks/api/internal/search"
	"pageblocks/api/internal/store"
)

// Runtime is a Service wired to the backends named in the configuration.
type Runtime struct {
	Service *Service
	Store   store.Store
	Hub     *live.Hub

	closers []func() error
}

// Close releases the backends in reverse order of opening.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// OpenOption adjusts the collaborators of the Service built by Open.
type OpenOption func(rt *Runtime, deps *Deps)

// WithSequentialWrites promotes with a separate create and patch instead of
// one transaction.
func WithSequentialWrites() OpenOption {
	return func(rt *Runtime, deps *Deps) {
		deps.Writer = store.NewSequential(rt.Store)
	}
}

// Open connects every configured backend. Optional backends left empty in cfg
// are skipped; a configured backend that cannot be reached is an error.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger, opts ...OpenOption) (*Runtime, error) {
	rt := &Runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	registry := schema.Default()
	if strings.TrimSpace(cfg.SchemaGlob) != "" {
		loaded, err := schema.Load(cfg.SchemaGlob)
		if err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
		registry = loaded
	}

	if cfg.UseMemoryStore() {
		log.Warn().Msg("using in-memory document store, data is lost on restart")
		rt.Store = store.NewMemoryStore()
	} else {
		pg, closeDB, err := store.OpenPostgres(ctx, cfg.DatabaseURL, cfg.MigrationsDir)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, closeDB)
		rt.Store = pg
	}

	var cache refs.Cache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCache, err := refs.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		rt.closers = append(rt.closers, redisCache.Close)
		cache = redisCache
		log.Info().Msg("caching reference counts in redis")
	}
	counter := refs.NewCounter(rt.Store, cache, cfg.RefCountTTL, log)

	var engine search.Engine
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, log)
		rt.closers = append(rt.closers, func() error { meiliClient.Close(); return nil })
		engine = meiliClient
	}
	searchService := search.NewService(engine, search.NewStoreSearch(rt.Store), log)

	var revisions historyLog
	if strings.TrimSpace(cfg.HistoryDir) != "" {
		if err := os.MkdirAll(cfg.HistoryDir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		revisions = history.New(cfg.HistoryDir)
	}

	var exporter *export.Service
	if strings.TrimSpace(cfg.ExportEndpoint) != "" {
		client, err := export.NewMinioClient(export.Config{
			Endpoint:  cfg.ExportEndpoint,
			AccessKey: cfg.ExportAccessKey,
			SecretKey: cfg.ExportSecretKey,
			Bucket:    cfg.ExportBucket,
			UseSSL:    cfg.ExportUseSSL,
		})
		if err != nil {
			return nil, err
		}
		exporter = export.NewService(rt.Store, client, cfg.ExportBucket)
	}

	rt.Hub = live.NewHub(cfg.CORSOrigin, log)
	rt.closers = append(rt.closers, func() error { rt.Hub.Close(); return nil })

	deps := Deps{
		Registry: registry,
		Counter:  counter,
		Search:   searchService,
		History:  revisions,
		Hub:      rt.Hub,
		Exporter: exporter,
		Logger:   log,
	}
	for _, opt := range opts {
		opt(rt, &deps)
	}
	rt.Service = New(cfg, rt.Store, deps)
	ok = true
	return rt, nil
}
