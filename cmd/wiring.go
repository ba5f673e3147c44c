package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/embedding"
	"github.com/spigell/resume-fit/internal/feedback"
	"github.com/spigell/resume-fit/internal/feedback/gemini"
	"github.com/spigell/resume-fit/internal/keywords"
	"github.com/spigell/resume-fit/internal/metrics"
	"github.com/spigell/resume-fit/internal/secrets"
	"github.com/spigell/resume-fit/internal/store"
)

// engine bundles the analyzer with the pieces commands need to inspect or
// release.
type engine struct {
	analyzer *compat.Analyzer
	provider *embedding.Provider
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	closers  []func() error
}

func (e *engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i]())
	}
	return errors.Join(errs...)
}

func buildEngine(ctx context.Context, config *Config, logger *zap.Logger) (*engine, error) {
	if config.Engine == nil {
		config.Engine = &EngineConfig{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	e := &engine{registry: reg, metrics: m}

	lazy, err := newEncoder(ctx, config.Embedding, logger)
	if err != nil {
		return nil, err
	}

	cache, closeCache, err := newCache(config.Cache, lazy.Model(), logger)
	if err != nil {
		return nil, err
	}
	if closeCache != nil {
		e.closers = append(e.closers, closeCache)
	}

	e.provider = embedding.NewProvider(lazy, embedding.Config{
		MaxChars:     config.Engine.MaxChars,
		ChunkWords:   config.Engine.ChunkWords,
		ChunkOverlap: config.Engine.ChunkOverlap,
		Workers:      config.Embedding.Workers,
	},
		embedding.WithCache(cache),
		embedding.WithMetrics(m),
		embedding.WithLogger(logger),
	)
	e.closers = append(e.closers, e.provider.Close)

	e.analyzer = compat.NewAnalyzer(e.provider, newExtractor(config.Keywords, logger),
		compat.WithTimeout(config.Engine.Timeout),
		compat.WithMetrics(m),
		compat.WithLogger(logger),
	)

	return e, nil
}

// newEncoder returns a lazily loaded encoder so that commands which never
// embed anything do not pay for model loading.
func newEncoder(ctx context.Context, cfg *EmbeddingConfig, logger *zap.Logger) (*embedding.Lazy, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))

	switch provider {
	case "", "fastembed":
		model := cfg.Model
		if model == "" {
			model = embedding.DefaultFastEmbedModel
		}
		return embedding.NewLazy("fastembed", model, func(context.Context) (embedding.Encoder, error) {
			return embedding.NewFastEmbed(embedding.FastEmbedConfig{Model: model, CacheDir: cfg.CacheDir})
		}, logger), nil
	case "gemini", "openai":
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: provider + " embedding api key",
		Env:  "EMBEDDING_API_KEY",
		File: cfg.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set embedding.api-key-file or EMBEDDING_API_KEY)", err)
	}

	model := cfg.Model
	if provider == "gemini" {
		if model == "" {
			model = embedding.DefaultGeminiModel
		}
		return embedding.NewLazy(provider, model, func(loadCtx context.Context) (embedding.Encoder, error) {
			return embedding.NewGemini(loadCtx, apiKey, model)
		}, logger), nil
	}

	if model == "" {
		model = embedding.DefaultOpenAIModel
	}
	return embedding.NewLazy(provider, model, func(context.Context) (embedding.Encoder, error) {
		return embedding.NewOpenAI(apiKey, cfg.BaseURL, model)
	}, logger), nil
}

func newCache(cfg *CacheConfig, model string, logger *zap.Logger) (embedding.Cache, func() error, error) {
	if cfg == nil {
		cfg = &CacheConfig{}
	}
	size := cfg.Size
	if size <= 0 {
		size = embedding.DefaultCacheSize
	}
	memory := embedding.NewMemoryCache(size, cfg.TTL)

	if cfg.Redis == nil || cfg.Redis.Addr == "" {
		return memory, nil, nil
	}

	password, err := secrets.Load(secrets.Source{
		Name: "redis password",
		Env:  "REDIS_PASSWORD",
		File: cfg.Redis.PasswordFile,
	})
	if err != nil {
		// Password-less Redis is common in development.
		logger.Debug("redis password not configured", zap.Error(err))
		password = ""
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = app + ":embedding:" + model + ":"
	}

	redisCache := embedding.NewRedisCache(embedding.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
		Prefix:   prefix,
	}, logger)

	logger.Info("using redis as second-level embedding cache", zap.String("addr", cfg.Redis.Addr))
	return embedding.Chain{memory, redisCache}, redisCache.Close, nil
}

func newExtractor(cfg *KeywordsConfig, logger *zap.Logger) *keywords.Extractor {
	linguistic := true
	table := keywords.DefaultSynonyms
	if cfg != nil {
		linguistic = cfg.Linguistic
		if len(cfg.Synonyms) > 0 {
			table = make(map[string][]string, len(keywords.DefaultSynonyms)+len(cfg.Synonyms))
			for k, v := range keywords.DefaultSynonyms {
				table[k] = v
			}
			for k, v := range cfg.Synonyms {
				table[k] = append(table[k], v...)
			}
		}
	}

	strategy := keywords.SelectStrategy(linguistic, func() (keywords.Parser, error) {
		return keywords.NewProseParser(), nil
	}, logger)

	return keywords.NewExtractor(strategy, keywords.NewSynonyms(table), logger)
}

func newStore(ctx context.Context, cfg *StoreConfig) (store.Store, error) {
	if cfg == nil {
		cfg = &StoreConfig{}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = "analyses.json"
		}
		fs, err := store.NewFileStore(path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "postgres":
		dsn, err := secrets.Load(secrets.Source{
			Name: "postgres dsn",
			Env:  "DB_URL",
			File: cfg.DSNFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set store.dsn-file or DB_URL)", err)
		}
		pg, err := store.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func newFeedbackWriter(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*feedback.Writer, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("ai feedback is disabled (set ai.enabled)")
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		Env:  "GEMINI_API_KEY",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return feedback.NewWriter(generator, logger, cfg.Gemini.MaxLogLength), nil
}
