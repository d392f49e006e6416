package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Document is one retrieved context item with a relevance score.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Searcher is the retrieval contract the executor depends on. A failed
// or timed-out search degrades to no context; it never blocks a step.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

type entry struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Vector    []float32         `json:"vector"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

// VectorStore implements Searcher over a file-backed cosine-similarity
// index. Entries live in memory; the JSON index is rewritten on change.
type VectorStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	embedder  Embedder
	dbPath    string
	indexFile string
	dirty     bool
}

// NewVectorStore opens (or creates) a store at dbPath.
func NewVectorStore(dbPath string, embedder Embedder) (*VectorStore, error) {
	if embedder == nil {
		embedder = NewLocalEmbedder(256)
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("create vector dir: %w", err)
	}

	s := &VectorStore{
		entries:   make(map[string]entry),
		embedder:  embedder,
		dbPath:    dbPath,
		indexFile: filepath.Join(dbPath, "index.json"),
	}

	// Missing or corrupt index means an empty store, not an error.
	if data, err := os.ReadFile(s.indexFile); err == nil {
		var loaded []entry
		if json.Unmarshal(data, &loaded) == nil {
			for _, e := range loaded {
				s.entries[e.ID] = e
			}
		}
	}

	return s, nil
}

// Add indexes a document.
func (s *VectorStore) Add(ctx context.Context, text string, metadata map[string]string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{
		ID:        generateID(text),
		Text:      text,
		Vector:    vec,
		Metadata:  metadata,
		CreatedAt: time.Now().Unix(),
	}
	s.entries[e.ID] = e
	s.dirty = true
	return s.persist()
}

// Search finds the topK most similar documents to the query.
func (s *VectorStore) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = 5
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.Vector) == 0 {
			continue
		}
		docs = append(docs, Document{
			ID:       e.ID,
			Content:  e.Text,
			Score:    cosineSimilarity(qvec, e.Vector),
			Metadata: e.Metadata,
		})
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})

	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// Count returns total indexed documents.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close flushes the index to disk.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

func (s *VectorStore) persist() error {
	if !s.dirty {
		return nil
	}

	all := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		all = append(all, e)
	}

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp := s.indexFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := os.Rename(tmp, s.indexFile); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}

	s.dirty = false
	return nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float32
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (sqrt32(normA) * sqrt32(normB))
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 10; i++ {
		z = z - (z*z-x)/(2*z)
	}
	return z
}

func generateID(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:8])
}
