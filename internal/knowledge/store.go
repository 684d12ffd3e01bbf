// Package knowledge holds the card fact corpus and serves grounding lookups.
//
// The corpus is small (tens of chunks), fixed at startup, and every reply must
// be traceable to it, so the store keeps all chunk embeddings in process and
// scores queries by cosine similarity. The store is immutable after Load and
// safe for concurrent readers.
package knowledge

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

//go:embed corpus.json
var defaultCorpus []byte

var (
	// ErrEmptyCorpus indicates the store was loaded with no usable records.
	ErrEmptyCorpus = errors.New("empty knowledge corpus")

	// ErrEmbedding indicates the embedding backend failed.
	ErrEmbedding = errors.New("embedding failed")
)

// Record is one corpus entry before embedding.
type Record struct {
	ID      string `json:"id"`
	Section string `json:"section"`
	Topic   string `json:"topic"`
	Text    string `json:"text"`
}

// Chunk is an embedded corpus entry held by the store.
type Chunk struct {
	ID        string
	Section   string
	Topic     string
	Text      string
	Embedding []float32
}

// Result pairs a chunk with its similarity score for one query.
type Result struct {
	Chunk Chunk
	Score float64
}

// Embedder converts texts to embedding vectors. Implemented by the genai
// backend in production and by deterministic fakes in tests.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the in-memory embedding index over the card corpus.
type Store struct {
	chunks   []Chunk
	embedder Embedder
}

// DefaultCorpus returns the embedded card fact records.
// Panics on a malformed embedded file; that is a build defect, not a runtime
// condition.
func DefaultCorpus() []Record {
	var records []Record
	if err := json.Unmarshal(defaultCorpus, &records); err != nil {
		panic(fmt.Sprintf("BUG: embedded corpus.json is malformed: %v", err))
	}
	return records
}

// Load embeds all records and builds the store. The service cannot answer
// anything without a corpus, so an empty or unembeddable corpus is fatal to
// the caller: Load returns an error and the process should not start.
func Load(ctx context.Context, embedder Embedder, records []Record) (*Store, error) {
	if embedder == nil {
		return nil, errors.New("knowledge: embedder is nil")
	}

	var valid []Record
	texts := make([]string, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		valid = append(valid, r)
		texts = append(texts, r.Text)
	}
	if len(valid) == 0 {
		return nil, ErrEmptyCorpus
	}

	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding corpus: %v", ErrEmbedding, err)
	}
	if len(embeddings) != len(valid) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d records",
			ErrEmbedding, len(embeddings), len(valid))
	}

	chunks := make([]Chunk, len(valid))
	for i, r := range valid {
		if len(embeddings[i]) == 0 {
			return nil, fmt.Errorf("%w: record %q has empty embedding", ErrEmbedding, r.ID)
		}
		chunks[i] = Chunk{
			ID:        r.ID,
			Section:   r.Section,
			Topic:     r.Topic,
			Text:      r.Text,
			Embedding: embeddings[i],
		}
	}

	return &Store{chunks: chunks, embedder: embedder}, nil
}

// Len reports the number of chunks in the store.
func (s *Store) Len() int {
	return len(s.chunks)
}

// Search embeds the query and returns up to topK chunks scoring at least
// minScore, ordered by descending similarity. Ties keep corpus insertion
// order, so identical queries always return identical results. An empty
// slice means the query has no grounding and the caller must refuse to
// answer rather than let the model improvise.
func (s *Store) Search(ctx context.Context, query string, topK int, minScore float64) ([]Result, error) {
	if topK <= 0 {
		return nil, nil
	}

	embeddings, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrEmbedding, err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for one query", ErrEmbedding, len(embeddings))
	}
	queryVec := embeddings[0]

	var results []Result
	for _, c := range s.chunks {
		score := cosineSimilarity(queryVec, c.Embedding)
		if score >= minScore {
			results = append(results, Result{Chunk: c, Score: score})
		}
	}

	// SliceStable keeps insertion order for equal scores.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ByTopic returns all chunks whose topic matches, in insertion order. Used
// for intent-conditioned lookups (a fees question always gets the fee chunks)
// without paying for an embedding call.
func (s *Store) ByTopic(topic string) []Chunk {
	topic = strings.ToLower(topic)
	var out []Chunk
	for _, c := range s.chunks {
		if strings.ToLower(c.Topic) == topic {
			out = append(out, c)
		}
	}
	return out
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Zero when either vector has zero norm or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
