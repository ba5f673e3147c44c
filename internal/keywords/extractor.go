package keywords

import (
	"go.uber.org/zap"
)

// Extractor turns free text into an ordered, deduplicated keyword list.
type Extractor struct {
	strategy Strategy
	synonyms *Synonyms
	logger   *zap.Logger
}

func NewExtractor(strategy Strategy, synonyms *Synonyms, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strategy == nil {
		strategy = NewLexical()
	}
	return &Extractor{
		strategy: strategy,
		synonyms: synonyms,
		logger:   logger,
	}
}

// Mode names the active extraction strategy.
func (e *Extractor) Mode() string {
	return e.strategy.Name()
}

// SynonymCount returns the number of terms known to the synonym table.
func (e *Extractor) SynonymCount() int {
	return e.synonyms.Size()
}

// Extract returns the keywords of text, longest first. A strategy failure
// degrades to lexical extraction instead of failing the caller.
func (e *Extractor) Extract(text string) []string {
	candidates, err := e.strategy.Candidates(text)
	if err != nil {
		e.logger.Warn("keyword strategy failed, using lexical fallback",
			zap.String("strategy", e.strategy.Name()),
			zap.Error(err),
		)
		candidates, _ = Lexical{}.Candidates(text)
	}

	valid := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if kw := Normalize(c); Valid(kw) {
			valid = append(valid, kw)
		}
	}

	keywords := e.synonyms.Expand(valid)
	Sort(keywords)

	e.logger.Debug("extracted keywords",
		zap.String("strategy", e.strategy.Name()),
		zap.Int("candidates", len(valid)),
		zap.Int("expanded", len(keywords)),
		zap.Int("text_length", len(text)),
	)

	return keywords
}
