package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = "text-embedding-3-small"

var openAIDimensions = map[string]int{
	"text-embedding-3-large": 3072,
	"text-embedding-3-small": 1536,
	"text-embedding-ada-002": 1536,
}

type openAIEmbedder interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAI embeds text with an OpenAI compatible embeddings endpoint.
type OpenAI struct {
	client    openAIEmbedder
	model     string
	dimension int
}

// NewOpenAI creates an encoder. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &OpenAI{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		dimension: openAIDimensions[model],
	}, nil
}

func (o *OpenAI) Encode(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(o.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response empty", ErrEmbeddingFailed)
	}

	out := make([]float32, len(resp.Data[0].Embedding))
	copy(out, resp.Data[0].Embedding)
	return out, nil
}

func (o *OpenAI) Dimension() int { return o.dimension }

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Close() error { return nil }
