package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "text-embedding-004"

type geminiEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini embeds text with the Gemini API.
type Gemini struct {
	models    geminiEmbedder
	model     string
	dimension atomic.Int64
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultGeminiModel
	}

	return &Gemini{models: client.Models, model: model}, nil
}

func (g *Gemini) Encode(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.models.EmbedContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("%w: gemini api returned no embeddings", ErrEmbeddingFailed)
	}

	values := resp.Embeddings[0].Values
	g.dimension.Store(int64(len(values)))
	return values, nil
}

// Dimension is known after the first successful call.
func (g *Gemini) Dimension() int { return int(g.dimension.Load()) }

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Close() error { return nil }
