// Package embedding turns documents into fixed-dimension, L2-normalized
// vectors using a pluggable text-embedding model.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/spigell/resume-fit/internal/logger"
	"github.com/spigell/resume-fit/internal/metrics"
	"github.com/spigell/resume-fit/internal/textproc"
)

var (
	// ErrUnavailable is returned when the model cannot be loaded or produces
	// an unusable vector.
	ErrUnavailable = errors.New("embedding model unavailable")
	// ErrEmptyInput is returned when nothing is left of the text after
	// preprocessing.
	ErrEmptyInput = errors.New("text is empty after preprocessing")
	// ErrEmbeddingFailed is returned when a loaded model fails to encode.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// Vector is an L2-normalized embedding.
type Vector []float32

// Encoder is a text-embedding model.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
	Close() error
}

type Config struct {
	MaxChars     int
	ChunkWords   int
	ChunkOverlap int
	// Workers bounds the number of concurrent model calls.
	Workers int
}

func (c Config) withDefaults() Config {
	if c.MaxChars <= 0 {
		c.MaxChars = textproc.DefaultMaxChars
	}
	if c.ChunkWords <= 0 {
		c.ChunkWords = textproc.DefaultChunkWords
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = textproc.DefaultChunkOverlap
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// Provider computes document embeddings, chunking long texts and caching
// results by content hash.
type Provider struct {
	encoder *Lazy
	cache   Cache
	sem     *semaphore.Weighted
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

type Option func(*Provider)

func WithCache(c Cache) Option {
	return func(p *Provider) { p.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Provider) { p.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewProvider(encoder *Lazy, cfg Config, opts ...Option) *Provider {
	cfg = cfg.withDefaults()
	p := &Provider{
		encoder: encoder,
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.cache == nil {
		p.cache = NewMemoryCache(DefaultCacheSize, 0)
	}
	return p
}

// Key returns the cache key of a preprocessed text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the normalized embedding of text. Texts longer than one
// chunk are embedded chunk by chunk and averaged.
func (p *Provider) Embed(ctx context.Context, text string) (Vector, error) {
	clean := textproc.Preprocess(text, p.cfg.MaxChars)
	if strings.TrimSpace(clean) == "" {
		return nil, ErrEmptyInput
	}

	key := Key(clean)
	if v, ok := p.cache.Get(ctx, key); ok {
		p.metrics.CacheHit()
		return slices.Clone(v), nil
	}
	p.metrics.CacheMiss()

	enc, err := p.encoder.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chunks := textproc.Texts(clean, p.cfg.ChunkWords, p.cfg.ChunkOverlap)
	parts := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			v, err := p.encode(gctx, enc, chunk)
			if err != nil {
				return err
			}
			parts[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vec, err := meanNormalized(parts)
	if err != nil {
		return nil, err
	}

	p.cache.Add(ctx, key, vec)
	p.metrics.ObserveEmbedding(time.Since(start), len(chunks))

	logger.WithCommonFields(p.logger, p.encoder.Provider(), enc.Model()).Debug("computed embedding",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", len(vec)),
		zap.Duration("took", time.Since(start)),
	)

	return slices.Clone(vec), nil
}

type encodeResult struct {
	vec []float32
	err error
}

// encode runs one model call under the worker semaphore. The caller returns
// as soon as ctx is done; the model call itself runs to completion in the
// background and releases its slot when it finishes.
func (p *Provider) encode(ctx context.Context, enc Encoder, text string) ([]float32, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	done := make(chan encodeResult, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := enc.Encode(ctx, text)
		done <- encodeResult{vec: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		switch {
		case res.err == nil && len(res.vec) == 0:
			return nil, fmt.Errorf("%w: model returned an empty vector", ErrEmbeddingFailed)
		case res.err == nil:
			return res.vec, nil
		case errors.Is(res.err, context.Canceled), errors.Is(res.err, context.DeadlineExceeded),
			errors.Is(res.err, ErrUnavailable), errors.Is(res.err, ErrEmbeddingFailed):
			return nil, res.err
		default:
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, res.err)
		}
	}
}

// meanNormalized averages the chunk vectors component-wise and scales the
// result to unit length.
func meanNormalized(parts [][]float32) (Vector, error) {
	dim := len(parts[0])
	sum := make([]float64, dim)
	for _, v := range parts {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: chunk dimensions differ (%d != %d)", ErrEmbeddingFailed, len(v), dim)
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	var norm float64
	for i := range sum {
		sum[i] /= float64(len(parts))
		norm += sum[i] * sum[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, fmt.Errorf("%w: embedding has zero norm", ErrUnavailable)
	}

	out := make(Vector, dim)
	for i, x := range sum {
		out[i] = float32(x / norm)
	}
	return out, nil
}

// Stats describes the provider state.
type Stats struct {
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Loaded       bool   `json:"loaded"`
	Dimension    int    `json:"dimension"`
	CacheEntries int    `json:"cache_entries"`
	MaxChars     int    `json:"max_chars"`
	ChunkWords   int    `json:"chunk_words"`
	ChunkOverlap int    `json:"chunk_overlap"`
	Workers      int    `json:"workers"`
}

func (p *Provider) Stats() Stats {
	s := Stats{
		Provider:     p.encoder.Provider(),
		Model:        p.encoder.Model(),
		CacheEntries: -1,
		MaxChars:     p.cfg.MaxChars,
		ChunkWords:   p.cfg.ChunkWords,
		ChunkOverlap: p.cfg.ChunkOverlap,
		Workers:      p.cfg.Workers,
	}
	if enc, ok := p.encoder.Loaded(); ok {
		s.Loaded = true
		s.Model = enc.Model()
		s.Dimension = enc.Dimension()
	}
	if sz, ok := p.cache.(Sizer); ok {
		s.CacheEntries = sz.Len()
	}
	return s
}

// ClearCache drops every cached embedding.
func (p *Provider) ClearCache(ctx context.Context) {
	p.cache.Purge(ctx)
	p.logger.Info("embedding cache cleared")
}

func (p *Provider) Close() error {
	return p.encoder.Close()
}
