// Package feedback turns a compatibility result into narrative advice written
// by a language model.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/resume-fit/internal/compat"
	"github.com/spigell/resume-fit/internal/utils"
)

//go:embed system.md
var systemPrompt string

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength = 200

	maxPromptKeywords  = 15
	maxJobExcerpt      = 500
	maxResumeExcerpt   = 1500
	maxFallbackKeyword = 5
)

var ErrMalformedResponse = errors.New("malformed feedback response")

type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

type Improvement struct {
	Category       string `json:"category" mapstructure:"category"`
	Priority       string `json:"priority" mapstructure:"priority"`
	Recommendation string `json:"recommendation" mapstructure:"recommendation"`
	Impact         string `json:"impact" mapstructure:"impact"`
}

type KeywordAnalysis struct {
	Critical    []string `json:"critical_missing" mapstructure:"critical_missing"`
	Suggestions string   `json:"suggestions" mapstructure:"suggestions"`
}

type Feedback struct {
	OverallAssessment        string          `json:"overall_assessment" mapstructure:"overall_assessment"`
	MatchScoreInterpretation string          `json:"match_score_interpretation" mapstructure:"match_score_interpretation"`
	Strengths                []string        `json:"strengths" mapstructure:"strengths"`
	Improvements             []Improvement   `json:"priority_improvements" mapstructure:"priority_improvements"`
	MissingKeywords          KeywordAnalysis `json:"missing_keywords_analysis" mapstructure:"missing_keywords_analysis"`
	ATSTips                  []string        `json:"ats_optimization_tips" mapstructure:"ats_optimization_tips"`
	// Degraded is set when the model answer could not be parsed and the
	// feedback only points at Raw.
	Degraded bool   `json:"degraded,omitempty" mapstructure:"-"`
	Raw      string `json:"raw_response,omitempty" mapstructure:"-"`
}

type Input struct {
	JobTitle       string
	JobDescription string
	ResumeText     string
	Result         *compat.Result
}

type Writer struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewWriter(generator Generator, logger *zap.Logger, maxLogLength int) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Writer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Write asks the generator for feedback on in. When the full prompt fails the
// shorter fallback prompt is tried once. An answer that cannot be parsed
// yields degraded feedback carrying the raw text.
func (w *Writer) Write(ctx context.Context, in Input) (*Feedback, error) {
	if in.Result == nil {
		return nil, fmt.Errorf("compatibility result is required")
	}
	if w.generator == nil {
		return nil, fmt.Errorf("feedback generator is not configured")
	}

	prompt := buildPrompt(in)
	w.logger.Debug("feedback request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, w.maxLogLen)),
	)

	raw, err := w.generator.GenerateContent(ctx, systemPrompt, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generate feedback: %w", err)
		}
		w.logger.Warn("full feedback prompt failed, trying the short one", zap.Error(err))

		raw, err = w.generator.GenerateContent(ctx, systemPrompt, buildFallbackPrompt(in))
		if err != nil {
			return nil, fmt.Errorf("generate feedback: %w", err)
		}
	}

	w.logger.Debug("feedback response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, w.maxLogLen)),
	)

	fb, err := Parse(raw)
	if err != nil {
		w.logger.Warn("could not parse feedback, returning raw answer", zap.Error(err))
		return degraded(raw), nil
	}
	return fb, nil
}

func buildPrompt(in Input) string {
	res := in.Result

	title := strings.TrimSpace(in.JobTitle)
	if title == "" {
		title = "not specified"
	}

	resume := strings.TrimSpace(in.ResumeText)
	if resume == "" {
		resume = "not provided"
	} else {
		resume = utils.TruncateForLog(resume, maxResumeExcerpt)
	}

	replacer := strings.NewReplacer(
		"{{JOB_TITLE}}", title,
		"{{MATCH_SCORE}}", strconv.FormatFloat(res.MatchScore, 'f', 1, 64),
		"{{SEMANTIC_SIMILARITY}}", strconv.FormatFloat(res.SemanticSimilarity, 'f', 3, 64),
		"{{KEYWORD_COVERAGE}}", strconv.FormatFloat(res.KeywordCoverage, 'f', 1, 64),
		"{{QUALITY}}", string(res.Quality),
		"{{CONFIDENCE}}", string(res.Confidence),
		"{{MATCHED_COUNT}}", strconv.Itoa(len(res.MatchedKeywords)),
		"{{MATCHED_KEYWORDS}}", joinKeywords(res.MatchedKeywords, maxPromptKeywords),
		"{{MISSING_COUNT}}", strconv.Itoa(len(res.MissingKeywords)),
		"{{MISSING_KEYWORDS}}", joinKeywords(res.MissingKeywords, maxPromptKeywords),
		"{{JOB_DESCRIPTION}}", utils.TruncateForLog(in.JobDescription, maxJobExcerpt),
		"{{RESUME}}", resume,
	)
	return replacer.Replace(promptTemplate)
}

func buildFallbackPrompt(in Input) string {
	return fmt.Sprintf(`Review a resume that matches a job posting at %.1f%%.
Missing keywords: %s.

Answer with JSON only, under 1000 characters, with these keys:
overall_assessment (short summary), strengths (top 3),
priority_improvements (top 3, each with category, priority, recommendation, impact),
ats_optimization_tips (3 tips).`,
		in.Result.MatchScore, joinKeywords(in.Result.MissingKeywords, maxFallbackKeyword))
}

func joinKeywords(kw []string, limit int) string {
	if len(kw) == 0 {
		return "none"
	}
	if len(kw) > limit {
		kw = kw[:limit]
	}
	return strings.Join(kw, ", ")
}

// Parse decodes a model answer into Feedback. Code fences and text around the
// JSON object are tolerated, as are strings in place of lists and plain
// string improvements.
func Parse(raw string) (*Feedback, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	for _, field := range []string{"overall_assessment", "strengths", "priority_improvements"} {
		if _, ok := data[field]; !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, field)
		}
	}

	if list, ok := data["overall_assessment"].([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		data["overall_assessment"] = strings.Join(parts, ". ")
	}
	for _, field := range []string{"strengths", "ats_optimization_tips"} {
		if s, ok := data[field].(string); ok {
			data[field] = []any{s}
		}
	}
	data["priority_improvements"] = normalizeImprovements(data["priority_improvements"])
	if _, ok := data["missing_keywords_analysis"].(map[string]any); !ok {
		delete(data, "missing_keywords_analysis")
	}

	var fb Feedback
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &fb,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	fb.Raw = raw
	return &fb, nil
}

func normalizeImprovements(v any) []map[string]any {
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case nil:
		return nil
	default:
		items = []any{val}
	}

	result := make([]map[string]any, 0, len(items))
	for _, item := range items {
		imp := map[string]any{
			"category":       "General",
			"priority":       "Medium",
			"recommendation": "",
			"impact":         "Will improve resume quality",
		}

		switch val := item.(type) {
		case map[string]any:
			for key, field := range val {
				if s := strings.TrimSpace(fmt.Sprint(field)); field != nil && s != "" {
					imp[key] = s
				}
			}
		case string:
			imp["recommendation"] = val
		default:
			continue
		}

		imp["priority"] = normalizePriority(fmt.Sprint(imp["priority"]))
		if imp["recommendation"] == "" {
			continue
		}
		result = append(result, imp)
	}
	return result
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "critical":
		return "Critical"
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}
	return raw
}

func degraded(raw string) *Feedback {
	return &Feedback{
		OverallAssessment:        "The feedback could not be parsed. Review the raw response.",
		MatchScoreInterpretation: "The analysis completed but the model answer was not valid JSON.",
		MissingKeywords:          KeywordAnalysis{Suggestions: "See the raw response."},
		Degraded:                 true,
		Raw:                      raw,
	}
}
