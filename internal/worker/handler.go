// Package worker runs analyses requested over RabbitMQ.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/document"
	"github.com/spigell/resume-fit/internal/embedding"
	"github.com/spigell/resume-fit/internal/feedback"
	"github.com/spigell/resume-fit/internal/metrics"
	"github.com/spigell/resume-fit/internal/store"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Error kinds reported with failed updates.
const (
	KindInvalidRequest = "invalid_request"
	KindInvalidInput   = "invalid_input"
	KindResume         = "resume"
	KindTimeout        = "timeout"
	KindUnavailable    = "unavailable"
	KindAnalysis       = "analysis"
	KindStore          = "store"
)

// Request is the message body consumed from the analysis queue. The resume
// is given either inline in ResumeText or as an object key in ResumeKey.
type Request struct {
	ID             uuid.UUID `json:"id"`
	JobTitle       string    `json:"job_title"`
	JobDescription string    `json:"job_description"`
	ResumeText     string    `json:"resume_text,omitempty"`
	ResumeKey      string    `json:"resume_key,omitempty"`
	ResumeMime     string    `json:"resume_mime,omitempty"`
	Feedback       bool      `json:"feedback,omitempty"`
}

type Update struct {
	RequestID  uuid.UUID `json:"request_id"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	MatchScore *float64  `json:"match_score,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type Analyzer interface {
	Analyze(ctx context.Context, resumeText, jobText string) (*compat.Result, error)
}

type FeedbackWriter interface {
	Write(ctx context.Context, in feedback.Input) (*feedback.Feedback, error)
}

type ResumeFetcher interface {
	Fetch(ctx context.Context, key, mimeType string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, u Update) error
}

type Handler struct {
	analyzer  Analyzer
	publisher Publisher
	feedback  FeedbackWriter
	store     store.Store
	fetcher   ResumeFetcher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Handler)

func WithFeedback(w FeedbackWriter) Option { return func(h *Handler) { h.feedback = w } }

func WithStore(s store.Store) Option { return func(h *Handler) { h.store = s } }

func WithFetcher(f ResumeFetcher) Option { return func(h *Handler) { h.fetcher = f } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

func NewHandler(analyzer Analyzer, publisher Publisher, opts ...Option) *Handler {
	h := &Handler{
		analyzer:  analyzer,
		publisher: publisher,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type failure struct {
	kind string
	err  error
}

func (f *failure) Error() string { return fmt.Sprintf("%s: %v", f.kind, f.err) }

func (f *failure) Unwrap() error { return f.err }

// Handle processes one message body. Every outcome is published as a status
// update; the returned error is for logging only and the message should be
// acknowledged either way.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		h.fail(ctx, uuid.Nil, &failure{kind: KindInvalidRequest, err: err})
		return fmt.Errorf("decode request: %w", err)
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	log := h.logger.With(zap.String("request_id", req.ID.String()))
	log.Info("processing analysis request")
	h.publish(ctx, Update{RequestID: req.ID, Status: StatusProcessing, Message: "analysis started"})

	res, fb, err := h.process(ctx, log, &req)
	if err != nil {
		var f *failure
		if !errors.As(err, &f) {
			f = &failure{kind: KindAnalysis, err: err}
		}
		h.fail(ctx, req.ID, f)
		return err
	}

	if h.store != nil {
		record := store.NewRecord(req.JobTitle, req.JobDescription, resumeSource(&req), res)
		record.ID = req.ID
		record.Feedback = fb
		if err := h.store.Save(ctx, record); err != nil {
			f := &failure{kind: KindStore, err: err}
			h.fail(ctx, req.ID, f)
			return f
		}
	}

	score := res.MatchScore
	h.publish(ctx, Update{
		RequestID:  req.ID,
		Status:     StatusCompleted,
		Message:    "analysis completed",
		MatchScore: &score,
	})
	h.metrics.Message(string(StatusCompleted))
	log.Info("analysis request completed", zap.Float64("match_score", score))
	return nil
}

func (h *Handler) process(ctx context.Context, log *zap.Logger, req *Request) (*compat.Result, *feedback.Feedback, error) {
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, nil, &failure{kind: KindInvalidInput, err: errors.New("job description is empty")}
	}

	resume, err := h.resumeText(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	res, err := h.analyzer.Analyze(ctx, resume, req.JobDescription)
	if err != nil {
		return nil, nil, &failure{kind: errorKind(err), err: err}
	}

	if !req.Feedback || h.feedback == nil {
		return res, nil, nil
	}

	fb, err := h.feedback.Write(ctx, feedback.Input{
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		ResumeText:     resume,
		Result:         res,
	})
	if err != nil {
		log.Warn("feedback generation failed, continuing without it", zap.Error(err))
		return res, nil, nil
	}
	return res, fb, nil
}

func (h *Handler) resumeText(ctx context.Context, req *Request) (string, error) {
	if text := strings.TrimSpace(req.ResumeText); text != "" {
		return text, nil
	}
	if req.ResumeKey == "" {
		return "", &failure{kind: KindInvalidInput, err: errors.New("request has neither resume text nor resume key")}
	}
	if h.fetcher == nil {
		return "", &failure{kind: KindResume, err: errors.New("resume storage is not configured")}
	}

	text, err := h.fetcher.Fetch(ctx, req.ResumeKey, req.ResumeMime)
	if err != nil {
		kind := KindResume
		if errors.Is(err, document.ErrUnsupported) || errors.Is(err, document.ErrNoText) {
			kind = KindInvalidInput
		}
		return "", &failure{kind: kind, err: fmt.Errorf("fetch resume %s: %w", req.ResumeKey, err)}
	}
	return text, nil
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, compat.ErrAnalysisTimeout):
		return KindTimeout
	case errors.Is(err, compat.ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, embedding.ErrUnavailable):
		return KindUnavailable
	default:
		return KindAnalysis
	}
}

func (h *Handler) fail(ctx context.Context, id uuid.UUID, f *failure) {
	h.logger.Error("analysis request failed",
		zap.String("request_id", id.String()),
		zap.String("kind", f.kind),
		zap.Error(f.err),
	)
	h.publish(ctx, Update{
		RequestID: id,
		Status:    StatusFailed,
		Message:   f.err.Error(),
		ErrorKind: f.kind,
	})
	h.metrics.Message(string(StatusFailed))
}

func (h *Handler) publish(ctx context.Context, u Update) {
	if h.publisher == nil {
		return
	}
	u.Timestamp = h.now().UTC()
	if err := h.publisher.Publish(ctx, u); err != nil {
		h.logger.Warn("failed to publish status update",
			zap.String("request_id", u.RequestID.String()),
			zap.String("status", string(u.Status)),
			zap.Error(err),
		)
	}
}

func resumeSource(req *Request) string {
	if req.ResumeKey != "" {
		return req.ResumeKey
	}
	return "inline"
}
