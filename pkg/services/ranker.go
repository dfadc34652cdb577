package services

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/schema"
)

// Ranker selects the tables most relevant to a question, so the query
// prompt carries a focused schema excerpt instead of the whole catalog.
type Ranker interface {
	Rank(ctx context.Context, question string, descriptors []schema.Descriptor, topK int) []schema.Descriptor
}

type ranker struct {
	client llm.Client
	logger *zap.Logger
}

// NewRanker creates a Ranker that scores tables by embedding similarity,
// falling back to lexical overlap when the provider has no embeddings.
func NewRanker(client llm.Client, logger *zap.Logger) Ranker {
	return &ranker{
		client: client,
		logger: logger.Named("ranker"),
	}
}

var _ Ranker = (*ranker)(nil)

func (r *ranker) Rank(ctx context.Context, question string, descriptors []schema.Descriptor, topK int) []schema.Descriptor {
	if topK <= 0 || topK >= len(descriptors) {
		return descriptors
	}

	scores, err := r.embeddingScores(ctx, question, descriptors)
	if err != nil {
		r.logger.Debug("embedding ranking unavailable, using lexical overlap", zap.Error(err))
		scores = lexicalScores(question, descriptors)
	}

	type scored struct {
		descriptor schema.Descriptor
		score      float64
		position   int
	}
	ranked := make([]scored, len(descriptors))
	for i, d := range descriptors {
		ranked[i] = scored{descriptor: d, score: scores[i], position: i}
	}
	// Stable on catalog order so equal scores keep a deterministic excerpt.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	top := ranked[:topK]
	// Present the excerpt in catalog order, not score order.
	sort.Slice(top, func(i, j int) bool {
		return top[i].position < top[j].position
	})

	result := make([]schema.Descriptor, topK)
	for i, s := range top {
		result[i] = s.descriptor
	}
	return result
}

func (r *ranker) embeddingScores(ctx context.Context, question string, descriptors []schema.Descriptor) ([]float64, error) {
	inputs := make([]string, 0, len(descriptors)+1)
	inputs = append(inputs, question)
	for _, d := range descriptors {
		inputs = append(inputs, d.PromptText())
	}

	embeddings, err := r.client.CreateEmbeddings(ctx, inputs)
	if err != nil {
		return nil, err
	}

	questionVec := embeddings[0]
	scores := make([]float64, len(descriptors))
	for i := range descriptors {
		scores[i] = cosineSimilarity(questionVec, embeddings[i+1])
	}
	return scores, nil
}

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

var wordPattern = regexp.MustCompile(`[a-z0-9_]+`)

// lexicalScores counts how many question words appear in each table's name
// or columns, matching singular and plural forms loosely by prefix.
func lexicalScores(question string, descriptors []schema.Descriptor) []float64 {
	words := wordPattern.FindAllString(strings.ToLower(question), -1)

	scores := make([]float64, len(descriptors))
	for i, d := range descriptors {
		vocabulary := append([]string{d.Table, d.Entity()}, d.ColumnNames()...)
		for _, word := range words {
			if len(word) < 3 {
				continue
			}
			for _, term := range vocabulary {
				term = strings.ToLower(term)
				if strings.HasPrefix(term, word) || strings.HasPrefix(word, term) {
					scores[i]++
					break
				}
			}
		}
	}
	return scores
}
