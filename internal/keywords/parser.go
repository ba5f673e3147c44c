package keywords

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// POS is a coarse part-of-speech class.
type POS string

const (
	PosNoun      POS = "NOUN"
	PosPropNoun  POS = "PROPN"
	PosAdjective POS = "ADJ"
	PosPunct     POS = "PUNCT"
	PosOther     POS = "X"
)

type Token struct {
	Text string
	POS  POS
}

// Span is a noun phrase. Head is its syntactic root.
type Span struct {
	Text string
	Head Token
}

type Entity struct {
	Text  string
	Label string
}

// Document is the linguistic analysis of a piece of text.
type Document struct {
	Tokens     []Token
	NounChunks []Span
	Entities   []Entity
}

// Parser is a linguistic model able to tag, chunk and recognize entities.
type Parser interface {
	Parse(text string) (*Document, error)
}

// ProseParser tags text with the prose averaged perceptron and derives noun
// chunks from runs of adjectives and nouns. The bundled prose NER model only
// labels PERSON and GPE entities, so with this parser the linguistic strategy
// gets no entity candidates; skills still come through noun chunks and
// content words. Parsers backed by a model with ORG/PRODUCT/SKILL/TECH
// labels contribute entities as well.
type ProseParser struct{}

func NewProseParser() *ProseParser {
	return &ProseParser{}
}

func (p *ProseParser) Parse(text string) (*Document, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	tokens := make([]Token, 0, len(doc.Tokens()))
	for _, tok := range doc.Tokens() {
		tokens = append(tokens, Token{Text: tok.Text, POS: coarsePOS(tok.Tag)})
	}

	entities := make([]Entity, 0, len(doc.Entities()))
	for _, ent := range doc.Entities() {
		entities = append(entities, Entity{Text: ent.Text, Label: ent.Label})
	}

	return &Document{
		Tokens:     tokens,
		NounChunks: nounChunks(tokens),
		Entities:   entities,
	}, nil
}

// coarsePOS maps Penn Treebank tags onto the coarse classes.
func coarsePOS(tag string) POS {
	switch {
	case tag == "NNP" || tag == "NNPS":
		return PosPropNoun
	case strings.HasPrefix(tag, "NN"):
		return PosNoun
	case strings.HasPrefix(tag, "JJ"):
		return PosAdjective
	}

	switch tag {
	case ".", ",", ":", "(", ")", "``", "''", "\"", "#", "$", "-LRB-", "-RRB-", "SYM":
		return PosPunct
	}
	return PosOther
}

// nounChunks returns maximal runs of adjectives and nouns that end in a noun.
func nounChunks(tokens []Token) []Span {
	var (
		spans []Span
		run   []Token
	)

	flush := func() {
		for len(run) > 0 && run[len(run)-1].POS == PosAdjective {
			run = run[:len(run)-1]
		}
		if len(run) > 0 {
			words := make([]string, len(run))
			for i, t := range run {
				words[i] = t.Text
			}
			spans = append(spans, Span{Text: strings.Join(words, " "), Head: run[len(run)-1]})
		}
		run = run[:0]
	}

	for _, tok := range tokens {
		switch tok.POS {
		case PosNoun, PosPropNoun, PosAdjective:
			run = append(run, tok)
		default:
			flush()
		}
	}
	flush()

	return spans
}
