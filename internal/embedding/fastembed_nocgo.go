//go:build !cgo

package embedding

import (
	"context"
	"fmt"
)

const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbed is unavailable in binaries built without cgo.
type FastEmbed struct{}

func NewFastEmbed(FastEmbedConfig) (*FastEmbed, error) {
	return nil, fmt.Errorf("%w: fastembed requires a cgo build, use the gemini or openai provider", ErrUnavailable)
}

func (*FastEmbed) Encode(context.Context, string) ([]float32, error) {
	return nil, ErrUnavailable
}

func (*FastEmbed) Dimension() int { return 0 }

func (*FastEmbed) Model() string { return DefaultFastEmbedModel }

func (*FastEmbed) Close() error { return nil }
