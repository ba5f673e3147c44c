package keywords

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

const lexicalLimit = 20

// Strategy produces raw keyword candidates from text.
type Strategy interface {
	Name() string
	Candidates(text string) ([]string, error)
}

var entityLabels = newSet("ORG", "PRODUCT", "SKILL", "TECH")

// Linguistic extracts noun phrases, selected entities and content words with
// a linguistic parser.
type Linguistic struct {
	parser Parser
}

func NewLinguistic(parser Parser) *Linguistic {
	return &Linguistic{parser: parser}
}

func (l *Linguistic) Name() string { return "linguistic" }

func (l *Linguistic) Candidates(text string) ([]string, error) {
	doc, err := l.parser.Parse(text)
	if err != nil {
		return nil, err
	}

	candidates := newSet()

	for _, chunk := range doc.NounChunks {
		if chunk.Head.POS != PosNoun && chunk.Head.POS != PosPropNoun {
			continue
		}
		if IsStopWord(strings.ToLower(chunk.Head.Text)) {
			continue
		}
		if kw := Normalize(chunk.Text); Valid(kw) {
			candidates.add(kw)
		}
	}

	for _, ent := range doc.Entities {
		if !entityLabels.has(ent.Label) {
			continue
		}
		if kw := Normalize(ent.Text); Valid(kw) {
			candidates.add(kw)
		}
	}

	for _, tok := range doc.Tokens {
		switch tok.POS {
		case PosNoun, PosPropNoun, PosAdjective:
		default:
			continue
		}
		if IsStopWord(strings.ToLower(tok.Text)) || isPunct(tok.Text) {
			continue
		}
		if kw := Normalize(tok.Text); Valid(kw) {
			candidates.add(kw)
		}
	}

	return candidates.sorted(), nil
}

// Lexical is the fallback used when no linguistic model is available. It
// keeps whole ASCII alphabetic words of three or more letters.
type Lexical struct{}

func NewLexical() *Lexical { return &Lexical{} }

func (Lexical) Name() string { return "lexical" }

func (Lexical) Candidates(text string) ([]string, error) {
	seen := newSet()
	keywords := make([]string, 0, lexicalLimit)

	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !isWordRune(r) }) {
		if len(word) < 3 || !isASCIILetters(word) {
			continue
		}
		if lexicalStopWords.has(word) || seen.has(word) || !Valid(word) {
			continue
		}
		seen.add(word)
		keywords = append(keywords, word)
		if len(keywords) == lexicalLimit {
			break
		}
	}

	return keywords, nil
}

// SelectStrategy returns the linguistic strategy when enabled and its parser
// can be constructed, and the lexical strategy otherwise.
func SelectStrategy(linguistic bool, newParser func() (Parser, error), logger *zap.Logger) Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !linguistic || newParser == nil {
		logger.Info("keyword extraction uses lexical strategy")
		return NewLexical()
	}

	parser, err := newParser()
	if err != nil {
		logger.Warn("linguistic model unavailable, falling back to lexical keyword extraction", zap.Error(err))
		return NewLexical()
	}

	return NewLinguistic(parser)
}

func isASCIILetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}

func isPunct(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}
