//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

type FastEmbedConfig struct {
	// Model accepts Hugging Face names such as
	// sentence-transformers/all-MiniLM-L6-v2 or fastembed model ids.
	Model string
	// CacheDir holds downloaded ONNX models.
	CacheDir string
	// MaxLength is the maximum number of tokens per chunk.
	MaxLength int
}

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
}

var fastEmbedDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
}

// FastEmbed runs a local ONNX sentence-embedding model.
type FastEmbed struct {
	mu        sync.RWMutex
	model     *fastembed.FlagEmbedding
	name      string
	dimension int
}

// NewFastEmbed loads the model, downloading it into CacheDir on first use.
func NewFastEmbed(cfg FastEmbedConfig) (*FastEmbed, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultFastEmbedModel
	}

	model, ok := fastEmbedModels[cfg.Model]
	if !ok {
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := fastEmbedDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported fastembed model %q", ErrUnavailable, cfg.Model)
		}
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}

	showProgress := false
	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: initializing fastembed: %w", ErrUnavailable, err)
	}

	return &FastEmbed{
		model:     flag,
		name:      cfg.Model,
		dimension: fastEmbedDimensions[model],
	}, nil
}

func (f *FastEmbed) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.model == nil {
		return nil, fmt.Errorf("%w: model closed", ErrUnavailable)
	}

	out, err := f.model.PassageEmbed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingFailed)
	}
	return out[0], nil
}

func (f *FastEmbed) Dimension() int { return f.dimension }

func (f *FastEmbed) Model() string { return f.name }

func (f *FastEmbed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.model == nil {
		return nil
	}
	err := f.model.Destroy()
	f.model = nil
	return err
}
