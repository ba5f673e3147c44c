package keywords

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		expect string
	}{
		{input: "  Node.JS  ", expect: "node.js"},
		{input: "C++ / C#", expect: "c c"},
		{input: "Front-End\tDevelopment", expect: "front-end development"},
		{input: "  (Kubernetes!)  ", expect: "kubernetes"},
		{input: "machine_learning", expect: "machine_learning"},
		{input: "Ünïcode   Wörds", expect: "ünïcode wörds"},
		{input: "a ! b", expect: "a b"},
	}

	for _, tt := range tests {
		got := Normalize(tt.input)
		assert.Equal(t, tt.expect, got, "input=%q", tt.input)
		assert.Equal(t, got, Normalize(got), "normalize must be idempotent for %q", tt.input)
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.False(t, Valid("a"))
	assert.True(t, Valid("go"))
	assert.True(t, Valid(strings.Repeat("x", 50)))
	assert.False(t, Valid(strings.Repeat("x", 51)))
	assert.True(t, Valid("ää"))
}

func TestSynonymsSymmetric(t *testing.T) {
	t.Parallel()

	syn := NewSynonyms(DefaultSynonyms)

	fromCanonical := syn.Expand([]string{"javascript"})
	assert.Contains(t, fromCanonical, "js")
	assert.Contains(t, fromCanonical, "ecmascript")

	fromSynonym := syn.Expand([]string{"js"})
	assert.Contains(t, fromSynonym, "javascript")
	assert.Contains(t, fromSynonym, "ecmascript")

	assert.ElementsMatch(t, fromCanonical, fromSynonym)
}

func TestSynonymsIdempotent(t *testing.T) {
	t.Parallel()

	syn := NewSynonyms(DefaultSynonyms)
	once := syn.Expand([]string{"ml", "docker"})
	twice := syn.Expand(once)
	assert.Equal(t, once, twice)
	assert.Contains(t, once, "artificial intelligence")
	assert.Contains(t, once, "machine learning")
	assert.Contains(t, once, "docker")
}

func TestSynonymsMergesOverlappingGroups(t *testing.T) {
	t.Parallel()

	table := map[string][]string{
		"artificial intelligence": {"ai", "machine learning", "ml"},
		"ml":                      {"mlops"},
	}
	syn := NewSynonyms(table)

	once := syn.Expand([]string{"ai"})
	assert.Equal(t, []string{"ai", "artificial intelligence", "machine learning", "ml", "mlops"}, once)
	assert.Equal(t, once, syn.Expand(once))
	assert.Equal(t, once, syn.Expand([]string{"mlops"}))
}

func TestSynonymsNilTable(t *testing.T) {
	t.Parallel()

	var syn *Synonyms
	assert.Equal(t, []string{"go", "rust"}, syn.Expand([]string{"rust", "go", "go"}))
	assert.Zero(t, syn.Size())
}

func TestSort(t *testing.T) {
	t.Parallel()

	kws := []string{"go", "kubernetes", "api", "rest api", "aws"}
	Sort(kws)
	assert.Equal(t, []string{"kubernetes", "rest api", "api", "aws", "go"}, kws)
}

func TestLexicalCandidates(t *testing.T) {
	t.Parallel()

	got, err := Lexical{}.Candidates("The Go developer and the DEVELOPER use Docker, k8s and go_lang in 2024.")
	require.NoError(t, err)
	assert.Equal(t, []string{"developer", "docker"}, got)
}

func TestLexicalCandidatesCap(t *testing.T) {
	t.Parallel()

	words := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		words = append(words, "word"+string(rune('a'+i%26))+string(rune('a'+i/26)))
	}

	got, err := Lexical{}.Candidates(strings.Join(words, " "))
	require.NoError(t, err)
	assert.Len(t, got, 20)
	assert.Equal(t, words[0], got[0])
}

type fakeParser struct {
	doc *Document
	err error
}

func (f fakeParser) Parse(string) (*Document, error) {
	return f.doc, f.err
}

func TestLinguisticCandidates(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Tokens: []Token{
			{Text: "Senior", POS: PosAdjective},
			{Text: "Go", POS: PosPropNoun},
			{Text: "developer", POS: PosNoun},
			{Text: "with", POS: PosOther},
			{Text: "experience", POS: PosNoun},
			{Text: ",", POS: PosPunct},
			{Text: "Kubernetes", POS: PosPropNoun},
			{Text: "-", POS: PosNoun},
		},
		NounChunks: []Span{
			{Text: "Senior Go developer", Head: Token{Text: "developer", POS: PosNoun}},
			{Text: "strong experience", Head: Token{Text: "experience", POS: PosNoun}},
			{Text: "it", Head: Token{Text: "it", POS: PosOther}},
		},
		Entities: []Entity{
			{Text: "Google Cloud", Label: "ORG"},
			{Text: "Berlin", Label: "GPE"},
		},
	}

	got, err := NewLinguistic(fakeParser{doc: doc}).Candidates("ignored")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"senior go developer",
		"google cloud",
		"senior",
		"go",
		"developer",
		"kubernetes",
	}, got)
}

func TestExtractor(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Tokens: []Token{
			{Text: "JavaScript", POS: PosPropNoun},
			{Text: "REST", POS: PosPropNoun},
			{Text: "API", POS: PosPropNoun},
		},
		NounChunks: []Span{
			{Text: "REST API", Head: Token{Text: "API", POS: PosPropNoun}},
		},
	}

	ex := NewExtractor(NewLinguistic(fakeParser{doc: doc}), NewSynonyms(DefaultSynonyms), nil)
	got := ex.Extract("JavaScript REST API")

	assert.Equal(t, "linguistic", ex.Mode())
	assert.Equal(t, []string{
		"application programming interface",
		"ecmascript",
		"javascript",
		"rest api",
		"apis",
		"rest",
		"api",
		"js",
	}, got)
}

func TestExtractorFallsBackOnParserError(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	ex := NewExtractor(NewLinguistic(fakeParser{err: errors.New("model crashed")}), nil, zap.New(core))

	got := ex.Extract("Docker and Kubernetes")
	assert.Equal(t, []string{"kubernetes", "docker"}, got)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "linguistic", logs.All()[0].ContextMap()["strategy"])
}

func TestSelectStrategy(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	logger := zap.New(core)

	s := SelectStrategy(true, func() (Parser, error) { return nil, errors.New("no model") }, logger)
	assert.Equal(t, "lexical", s.Name())
	assert.Equal(t, 1, logs.Len())

	s = SelectStrategy(true, func() (Parser, error) { return fakeParser{}, nil }, logger)
	assert.Equal(t, "linguistic", s.Name())

	s = SelectStrategy(false, nil, logger)
	assert.Equal(t, "lexical", s.Name())
}

func TestNounChunks(t *testing.T) {
	t.Parallel()

	tokens := []Token{
		{Text: "the", POS: PosOther},
		{Text: "distributed", POS: PosAdjective},
		{Text: "systems", POS: PosNoun},
		{Text: "and", POS: PosOther},
		{Text: "fast", POS: PosAdjective},
		{Text: "and", POS: PosOther},
		{Text: "Go", POS: PosPropNoun},
		{Text: "services", POS: PosNoun},
		{Text: "reliable", POS: PosAdjective},
	}

	spans := nounChunks(tokens)
	require.Len(t, spans, 2)
	assert.Equal(t, "distributed systems", spans[0].Text)
	assert.Equal(t, "systems", spans[0].Head.Text)
	assert.Equal(t, "Go services", spans[1].Text)
}

func TestProseParser(t *testing.T) {
	t.Parallel()

	doc, err := NewProseParser().Parse("We are hiring a backend engineer who knows PostgreSQL and Kubernetes.")
	require.NoError(t, err)
	require.NotEmpty(t, doc.Tokens)

	var nouns int
	for _, tok := range doc.Tokens {
		if tok.POS == PosNoun || tok.POS == PosPropNoun {
			nouns++
		}
	}
	assert.Positive(t, nouns)
}

func TestMatch(t *testing.T) {
	t.Parallel()

	matched, missing := Match([]string{"python", "api"}, []string{"python", "docker", "apis"})
	assert.Equal(t, []string{"apis", "python"}, matched)
	assert.Equal(t, []string{"docker"}, missing)
}

func TestMatchShortKeywordsNeedExactMatch(t *testing.T) {
	t.Parallel()

	matched, missing := Match([]string{"golang"}, []string{"go", "lang", "Golang "})
	assert.Equal(t, []string{"golang", "lang"}, matched)
	assert.Equal(t, []string{"go"}, missing)
}

func TestMatchEmpty(t *testing.T) {
	t.Parallel()

	matched, missing := Match(nil, nil)
	assert.Empty(t, matched)
	assert.Empty(t, missing)

	matched, missing = Match([]string{"!!!"}, []string{"docker"})
	assert.Empty(t, matched)
	assert.Equal(t, []string{"docker"}, missing)
}

func TestPrioritizeMissing(t *testing.T) {
	t.Parallel()

	job := "Docker, docker everywhere. Terraform once. Kubernetes and DOCKER. kubernetes"
	got := PrioritizeMissing([]string{"terraform", "kubernetes", "ansible", "docker", "aws"}, job)
	assert.Equal(t, []string{"docker", "kubernetes", "terraform", "ansible", "aws"}, got)
}

func TestCoverage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50.0, Coverage([]string{"a", "b"}, []string{"a", "b", "c", "d"}))
	assert.Equal(t, 0.0, Coverage([]string{"a"}, nil))
	assert.Equal(t, 100.0, Coverage([]string{"a", "b", "c"}, []string{"a"}))
}
