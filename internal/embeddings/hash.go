package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// HashProvider is a deterministic feature-hashing embedder. Each token is
// hashed into a handful of vector positions with signed weights and the
// result is L2-normalized, so identical texts embed identically and texts
// sharing tokens land near each other in cosine space. It needs no model
// download and no CGO.
type HashProvider struct {
	dimension int
}

// slotsPerToken is how many vector positions each token contributes to.
const slotsPerToken = 4

// NewHashProvider creates a hash embedder with the given dimension.
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &HashProvider{dimension: dimension}
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *HashProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = p.embed(text)
	}
	return out, nil
}

// EmbedQuery generates an embedding for a single lookup text.
func (p *HashProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return p.embed(text), nil
}

// Dimension returns the embedding dimension.
func (p *HashProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op; the hash provider holds no resources.
func (p *HashProvider) Close() error {
	return nil
}

func (p *HashProvider) embed(text string) []float32 {
	vec := make([]float32, p.dimension)
	for _, token := range tokenize(text) {
		sum := sha256.Sum256([]byte(token))
		for slot := 0; slot < slotsPerToken; slot++ {
			v := binary.BigEndian.Uint64(sum[slot*8 : slot*8+8])
			idx := int(v % uint64(p.dimension))
			if v&(1<<63) != 0 {
				vec[idx]--
			} else {
				vec[idx]++
			}
		}
	}
	normalize(vec)
	return vec
}

// tokenize splits on non-alphanumeric runes and lowercases, so messages that
// differ only in punctuation or casing share features.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
