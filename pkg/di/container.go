package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"calma/backend/ai"
	"calma/backend/internal/art"
	"calma/backend/internal/catalog"
	"calma/backend/internal/games"
	"calma/backend/internal/profile"
	"calma/backend/internal/store"
	"calma/backend/internal/ws"
	"calma/backend/pkg/cache"
	"calma/backend/pkg/config"
	"calma/backend/pkg/health"
	"calma/backend/pkg/logger"
	"calma/backend/pkg/secrets"
	"calma/backend/shared/observability"
)

// Container holds all the dependencies for the application
type Container struct {
	Config         *config.Config
	Logger         *logger.Logger
	Catalog        *catalog.Catalog
	Store          store.KV
	Metrics        *observability.Instruments
	MetricsHandler http.Handler
	Secrets        *secrets.VaultManager
	Profiles       *profile.Service
	Companion      *ai.Companion
	Live           ai.Live
	Games          *games.Service
	Studio         *art.Studio
	Hub            *ws.Hub
	Health         *health.Checker
	DailyCache     *cache.Cache
	GameCache      *cache.Cache

	closers []func() error
}

// Option overrides a part of the container before it is wired.
type Option func(*options)

type options struct {
	gen  ai.Generator
	live ai.Live
	kv   store.KV
}

// WithProvider replaces the remote AI provider.
func WithProvider(gen ai.Generator, live ai.Live) Option {
	return func(o *options) {
		o.gen = gen
		o.live = live
	}
}

// WithStore replaces the configured store backend.
func WithStore(kv store.KV) Option {
	return func(o *options) { o.kv = kv }
}

// New creates a new dependency injection container
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Container, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.Discard()
	}

	c := &Container{Config: cfg, Logger: log, Catalog: catalog.Default()}

	mp, handler, err := observability.SetupMetrics("calma-backend")
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func() error { return mp.Shutdown(context.Background()) })
	c.MetricsHandler = handler
	if c.Metrics, err = observability.NewInstruments(mp); err != nil {
		c.Close()
		return nil, err
	}

	c.Secrets, err = secrets.NewVaultManager(secrets.VaultConfig{
		Enabled:   cfg.Secrets.VaultEnabled,
		Address:   cfg.Secrets.VaultAddr,
		Token:     cfg.Secrets.VaultToken,
		Namespace: cfg.Secrets.VaultNamespace,
		Mount:     cfg.Secrets.VaultMount,
		Path:      cfg.Secrets.VaultPath,
		Timeout:   5 * time.Second,
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize secrets: %w", err)
	}
	c.closers = append(c.closers, func() error { c.Secrets.Close(); return nil })

	if o.kv != nil {
		c.Store = o.kv
	} else {
		kv, closeStore, err := store.Open(cfg, log)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
		}
		c.Store = kv
		c.closers = append(c.closers, closeStore)
	}

	gen, live := o.gen, o.live
	if gen == nil {
		if gen, live, err = c.provider(ctx); err != nil {
			c.Close()
			return nil, err
		}
	}
	c.Live = live
	c.Companion = ai.NewCompanion(gen, ai.CompanionConfig{
		Timeout:        cfg.AI.Timeout,
		MaxAttempts:    cfg.AI.MaxAttempts,
		RetryBaseDelay: cfg.AI.RetryBaseDelay,
		RetryMaxDelay:  cfg.AI.RetryMaxDelay,
	}, c.Metrics, log)

	c.Profiles = profile.NewService(
		profile.NewRepository(c.Store, cfg.Store.KeyPrefix, log),
		c.Catalog, c.Metrics, log,
		profile.Options{
			HistoryLimit:     cfg.Features.MoodHistoryLimit,
			TranscriptWindow: cfg.Voice.TranscriptWindow,
		},
	)

	c.DailyCache = cache.New(cache.Options{
		TTL:         24 * time.Hour,
		MaxItems:    cfg.Cache.MaxSize,
		PurgeWindow: cfg.Cache.PurgeWindow,
	})
	c.GameCache = cache.New(cache.Options{
		TTL:         cfg.Cache.TTL,
		MaxItems:    cfg.Cache.MaxSize,
		PurgeWindow: cfg.Cache.PurgeWindow,
	})
	c.closers = append(c.closers,
		func() error { c.DailyCache.Close(); return nil },
		func() error { c.GameCache.Close(); return nil },
	)

	c.Games = games.NewService(c.Companion, c.Profiles, c.Catalog, c.GameCache, log,
		games.Options{SessionTTL: cfg.Cache.TTL})
	c.Studio = art.NewStudio(c.Companion, c.Profiles, c.Catalog, log)

	c.Hub = ws.NewHub(ws.Deps{
		Live:      c.Live,
		Companion: c.Companion,
		Profiles:  c.Profiles,
		Catalog:   c.Catalog,
		Voice: ws.VoiceSettings{
			InputSampleRate:  cfg.Voice.InputSampleRate,
			OutputSampleRate: cfg.Voice.OutputSampleRate,
			FrameSize:        cfg.Voice.FrameSize,
			TranscriptWindow: cfg.Voice.TranscriptWindow,
			Voice:            cfg.AI.Voice,
		},
		Metrics: c.Metrics,
		Logger:  log,
	})

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterStoreCheck(cfg.Store.Backend, c.Store.Ping)
	c.Health.RegisterBreakerCheck("ai", c.Companion.Breaker())

	return c, nil
}

// provider builds the configured remote AI provider. The API key is looked
// up in Vault first and falls back to the environment.
func (c *Container) provider(ctx context.Context) (ai.Generator, ai.Live, error) {
	cfg := c.Config
	switch cfg.AI.Provider {
	case "", "gemini":
		key := c.Secrets.GetSecretWithDefault(ctx, cfg.Secrets.APIKeyName, cfg.AI.APIKey)
		g, err := ai.NewGemini(ctx, ai.GeminiConfig{
			APIKey:      key,
			TextModel:   cfg.AI.TextModel,
			SpeechModel: cfg.AI.SpeechModel,
			ImageModel:  cfg.AI.ImageModel,
			LiveModel:   cfg.AI.LiveModel,
			Voice:       cfg.AI.Voice,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil

	case "openai":
		key := c.Secrets.GetSecretWithDefault(ctx, "openai_api_key", cfg.AI.OpenAIKey)
		o, err := ai.NewOpenAI(ai.OpenAIConfig{APIKey: key, Model: cfg.AI.OpenAIModel})
		if err != nil {
			return nil, nil, err
		}
		return o, o, nil
	}
	return nil, nil, fmt.Errorf("unknown AI provider %q", cfg.AI.Provider)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
