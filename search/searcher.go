package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/embed"
	"github.com/poiesic/vecsync/storage"
)

// DefaultMinSimilarity is the similarity floor applied to semantic matches.
const DefaultMinSimilarity = 0.60

// verbatimBoost is added to a result's score when every filtered query word
// appears in the row content.
const verbatimBoost = 0.3

// Searcher provides semantic and keyword search over destination rows.
type Searcher struct {
	destination   storage.DestinationRepository
	embedder      embed.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinSimilarity overrides the similarity floor for semantic matches.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// NewSearcher creates a new searcher over the destination.
func NewSearcher(destination storage.DestinationRepository, embedder embed.Embedder, opts ...Option) (*Searcher, error) {
	if destination == nil {
		return nil, ErrDestinationRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		destination:   destination,
		embedder:      embedder,
		minSimilarity: DefaultMinSimilarity,
		logger:        slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for destination rows similar to the query.
// Returns up to maxHits results, ranked by relevance score. Rows containing
// every filtered query word verbatim are boosted above pure semantic hits.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	// Stored vectors are unit length; normalizing the query makes the
	// dot-product scores cosine similarities.
	vector := embed.NormalizeVector(embedding)

	results, err := s.destination.FindSimilar(ctx, vector, s.minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar rows", "err", err)
		return nil, err
	}

	for _, result := range results {
		if containsAllQueryWords(result.Row.Content, query) {
			result.Score += verbatimBoost
		}
	}

	// Sort by score descending
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}

	return results, nil
}

// MatchKeyword returns destination rows whose derived search text contains
// the keyword token. Matching is exact on tokens, not substrings.
func (s *Searcher) MatchKeyword(ctx context.Context, keyword string, maxHits int) ([]*core.DestinationRow, error) {
	rows, err := s.destination.MatchKeyword(ctx, keyword, maxHits)
	if err != nil {
		s.logger.Error("error matching keyword", "keyword", keyword, "err", err)
		return nil, err
	}
	return rows, nil
}
