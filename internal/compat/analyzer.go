// Package compat merges semantic similarity and keyword overlap into a single
// resume/job compatibility report.
package compat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/resume-fit/internal/embedding"
	"github.com/spigell/resume-fit/internal/keywords"
	"github.com/spigell/resume-fit/internal/metrics"
	"github.com/spigell/resume-fit/internal/similarity"
)

const DefaultTimeout = 60 * time.Second

var (
	// ErrAnalysisFailed wraps any failure that is not one of the typed
	// errors passed through by Analyze.
	ErrAnalysisFailed = errors.New("analysis failed")
	// ErrAnalysisTimeout is returned when the analysis deadline expires.
	ErrAnalysisTimeout = errors.New("analysis timed out")
	// ErrInvalidInput is returned for empty documents.
	ErrInvalidInput = errors.New("invalid input")
)

type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Vector, error)
}

type KeywordExtractor interface {
	Extract(text string) []string
}

// Result is the outcome of one analysis. It is not retained by the analyzer.
type Result struct {
	MatchScore         float64               `json:"match_score"`
	MatchedKeywords    []string              `json:"matched_keywords"`
	MissingKeywords    []string              `json:"missing_keywords"`
	SemanticSimilarity float64               `json:"semantic_similarity"`
	KeywordCoverage    float64               `json:"keyword_coverage"`
	Confidence         similarity.Confidence `json:"confidence"`
	Quality            similarity.Quality    `json:"quality"`
	Description        string                `json:"description"`
	ProcessingTime     float64               `json:"processing_time"`
}

type Analyzer struct {
	embedder  Embedder
	extractor KeywordExtractor
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Option func(*Analyzer)

// WithTimeout bounds every analysis. Non-positive values select DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewAnalyzer(embedder Embedder, extractor KeywordExtractor, opts ...Option) *Analyzer {
	a := &Analyzer{
		embedder:  embedder,
		extractor: extractor,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scores resumeText against jobText. It returns either a complete
// result or an error, never both.
func (a *Analyzer) Analyze(ctx context.Context, resumeText, jobText string) (*Result, error) {
	start := time.Now()

	res, err := a.analyze(ctx, resumeText, jobText)
	elapsed := time.Since(start)
	if err != nil {
		err = a.classify(ctx, err)
		a.metrics.ObserveAnalysis(outcome(err), elapsed)
		a.logger.Warn("analysis failed", zap.Error(err), zap.Duration("took", elapsed))
		return nil, err
	}

	res.ProcessingTime = elapsed.Seconds()
	a.metrics.ObserveAnalysis("success", elapsed)
	a.logger.Info("analysis completed",
		zap.Float64("match_score", res.MatchScore),
		zap.Float64("keyword_coverage", res.KeywordCoverage),
		zap.Int("matched", len(res.MatchedKeywords)),
		zap.Int("missing", len(res.MissingKeywords)),
		zap.Duration("took", elapsed),
	)

	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, resumeText, jobText string) (*Result, error) {
	if strings.TrimSpace(resumeText) == "" {
		return nil, fmt.Errorf("%w: resume text is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(jobText) == "" {
		return nil, fmt.Errorf("%w: job description is empty", ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var resumeVec, jobVec embedding.Vector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := a.embedder.Embed(gctx, resumeText)
		if err != nil {
			return fmt.Errorf("embed resume: %w", err)
		}
		resumeVec = v
		return nil
	})
	g.Go(func() error {
		v, err := a.embedder.Embed(gctx, jobText)
		if err != nil {
			return fmt.Errorf("embed job description: %w", err)
		}
		jobVec = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	score, err := similarity.Score(resumeVec, jobVec)
	if err != nil {
		return nil, err
	}

	resumeKeywords := a.extractor.Extract(resumeText)
	jobKeywords := a.extractor.Extract(jobText)

	matched, missing := keywords.Match(resumeKeywords, jobKeywords)
	missing = keywords.PrioritizeMissing(missing, jobText)
	coverage := keywords.Coverage(matched, jobKeywords)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Result{
		MatchScore:         score.Percentage,
		MatchedKeywords:    matched,
		MissingKeywords:    missing,
		SemanticSimilarity: score.Raw,
		KeywordCoverage:    coverage,
		Confidence:         score.Confidence,
		Quality:            score.Quality,
		Description:        score.Description,
	}, nil
}

// classify maps an internal failure onto the errors callers can act on.
func (a *Analyzer) classify(parent context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s: %w", ErrAnalysisTimeout, a.timeout, err)
	case errors.Is(err, context.Canceled) && parent.Err() != nil:
		return fmt.Errorf("analysis canceled: %w", parent.Err())
	case errors.Is(err, embedding.ErrEmptyInput):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, similarity.ErrInvalidVector):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAnalysisTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

// Stats describes the analyzer configuration and the state of its
// collaborators.
type Stats struct {
	Timeout      string           `json:"timeout"`
	KeywordMode  string           `json:"keyword_mode,omitempty"`
	SynonymTerms int              `json:"synonym_terms,omitempty"`
	Embedding    *embedding.Stats `json:"embedding,omitempty"`
}

func (a *Analyzer) Stats() Stats {
	s := Stats{Timeout: a.timeout.String()}
	if p, ok := a.embedder.(interface{ Stats() embedding.Stats }); ok {
		es := p.Stats()
		s.Embedding = &es
	}
	if ex, ok := a.extractor.(interface{ Mode() string }); ok {
		s.KeywordMode = ex.Mode()
	}
	if ex, ok := a.extractor.(interface{ SynonymCount() int }); ok {
		s.SynonymTerms = ex.SynonymCount()
	}
	return s
}
