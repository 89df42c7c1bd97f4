package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by embedding providers.
var (
	ErrInvalidConfig   = errors.New("embeddings: invalid configuration")
	ErrEmptyInput      = errors.New("embeddings: empty input")
	ErrEmbeddingFailed = errors.New("embeddings: embedding generation failed")
)

// DefaultDimension is the dimension of the default model and of the hash
// fallback provider.
const DefaultDimension = 384

// Provider generates fixed-dimension embeddings for text.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates an embedding for a single lookup text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig selects and configures an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed" or "hash". Empty defaults to fastembed with a
	// hash fallback when the ONNX runtime is unavailable.
	Provider string
	// Model is the embedding model name (fastembed only).
	Model string
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
}

// NewProvider creates an embedding provider from the configuration. With no
// explicit provider it prefers fastembed and silently degrades to the hash
// provider, so strategy memory works on builds without the ONNX runtime.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "fastembed":
		return NewFastEmbedProvider(FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
	case "hash":
		return NewHashProvider(DefaultDimension), nil
	case "":
		p, err := NewFastEmbedProvider(FastEmbedConfig{Model: cfg.Model, CacheDir: cfg.CacheDir})
		if err != nil {
			return NewHashProvider(DefaultDimension), nil
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
