// Package retrieval supplies advisory context documents for plan steps.
package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int
}

// LocalEmbedder generates embeddings locally with feature hashing.
// It needs no external service, which keeps retrieval working offline;
// scores are coarse but stable for identical text.
type LocalEmbedder struct {
	dims int
}

// NewLocalEmbedder creates a new local embedder.
func NewLocalEmbedder(dims int) *LocalEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &LocalEmbedder{dims: dims}
}

// Embed generates an embedding using a hash-based approach.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	embedding := make([]float32, e.dims)
	if len(tokens) == 0 {
		return embedding, nil
	}

	tf := make(map[string]int)
	for _, token := range tokens {
		tf[token]++
	}

	for token, count := range tf {
		h1 := hashString(token, 0)
		h2 := hashString(token, 1)

		weight := float32(1.0 + math.Log(float64(count)))

		sign := func(h uint64) float32 {
			if h&1 == 0 {
				return 1
			}
			return -1
		}

		embedding[int(h1%uint64(e.dims))] += sign(h1) * weight
		embedding[int(h2%uint64(e.dims))] += sign(h2) * weight * 0.5
	}

	normalize(embedding)
	return embedding, nil
}

// Dimensions returns the embedding dimension.
func (e *LocalEmbedder) Dimensions() int {
	return e.dims
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(text string) []string {
	matches := tokenRe.FindAllString(strings.ToLower(text), -1)

	var tokens []string
	for _, m := range matches {
		if len(m) >= 2 {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

func hashString(s string, seed uint64) uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(seed)})
	h.Write([]byte(s))
	return h.Sum64()
}

func normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i := range v {
		v[i] /= norm
	}
}
