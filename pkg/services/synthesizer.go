package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/prompts"
)

// Synthesizer phrases query results as a prose answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, querySummary string, result *ResultSet) (string, error)
}

type synthesizer struct {
	client    llm.Client
	pool      *llm.WorkerPool
	chunkSize int
	logger    *zap.Logger
}

func NewSynthesizer(client llm.Client, pool *llm.WorkerPool, chunkSize int, logger *zap.Logger) Synthesizer {
	if chunkSize <= 0 {
		chunkSize = 10
	}
	return &synthesizer{
		client:    client,
		pool:      pool,
		chunkSize: chunkSize,
		logger:    logger.Named("synthesizer"),
	}
}

var _ Synthesizer = (*synthesizer)(nil)

func (s *synthesizer) Synthesize(ctx context.Context, question, querySummary string, result *ResultSet) (string, error) {
	if len(result.Rows) == 0 {
		return "I didn't find any matching data for that question.", nil
	}

	rendered := renderRows(result.Columns, result.Rows)
	chunks := chunkStrings(rendered, s.chunkSize)

	parts, err := s.describeChunks(ctx, question, querySummary, result.Columns, chunks)
	if err != nil {
		// The data came back fine; a phrasing failure should not lose it.
		s.logger.Warn("synthesis failed, returning plain listing", zap.Error(err))
		parts = []string{plainListing(result.Columns, rendered)}
	}

	answer := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if note := s.completenessNote(result, answer); note != "" {
		answer += "\n\n" + note
	}
	if result.Truncated {
		answer += fmt.Sprintf("\n\n(Showing the first %d rows; refine the question to narrow the results.)", len(result.Rows))
	}
	return answer, nil
}

func (s *synthesizer) describeChunks(ctx context.Context, question, querySummary string, columns []string, chunks [][]string) ([]string, error) {
	if len(chunks) == 1 {
		part, err := s.describeChunk(ctx, question, querySummary, columns, chunks[0], 0, 1)
		if err != nil {
			return nil, err
		}
		return []string{part}, nil
	}

	items := make([]func(ctx context.Context) (string, error), len(chunks))
	for i, chunk := range chunks {
		i, chunk := i, chunk
		items[i] = func(ctx context.Context) (string, error) {
			return s.describeChunk(ctx, question, querySummary, columns, chunk, i, len(chunks))
		}
	}

	results := llm.Process(ctx, s.pool, items)
	parts := make([]string, len(results))
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("chunk %d: %w", r.Index, r.Err)
		}
		parts[r.Index] = r.Result
	}
	return parts, nil
}

func (s *synthesizer) describeChunk(ctx context.Context, question, querySummary string, columns, rows []string, chunk, total int) (string, error) {
	prompt := prompts.BuildSynthesisPrompt(question, querySummary, columns, rows, chunk, total)

	response, err := s.client.Complete(ctx, llm.CompletionRequest{
		Turns: []models.ConversationTurn{
			{Role: models.ChatRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llm.Sanitize(response)), nil
}

// completenessNote checks the answer actually mentions the rows it claims
// to describe. It samples the most name-like column; when values are
// missing the answer gets an explicit caveat instead of silently reading
// as complete.
func (s *synthesizer) completenessNote(result *ResultSet, answer string) string {
	col := nameColumn(result.Columns)
	if col < 0 {
		return ""
	}

	lowerAnswer := strings.ToLower(answer)
	missing := 0
	for _, row := range result.Rows {
		value, ok := row[col].(string)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if !strings.Contains(lowerAnswer, strings.ToLower(value)) {
			missing++
		}
	}
	if missing == 0 {
		return ""
	}

	s.logger.Warn("answer does not mention all rows",
		zap.Int("missing", missing),
		zap.Int("total", len(result.Rows)))
	return fmt.Sprintf("(Note: %d of %d result rows may not be covered above.)", missing, len(result.Rows))
}

// nameColumn picks the column whose values identify rows in prose.
func nameColumn(columns []string) int {
	for _, candidate := range []string{"name", "title", "email", "username"} {
		for i, col := range columns {
			if strings.EqualFold(col, candidate) {
				return i
			}
		}
	}
	return -1
}

func renderRows(columns []string, rows [][]any) []string {
	rendered := make([]string, len(rows))
	for i, row := range rows {
		pairs := make([]string, 0, len(columns))
		for j, col := range columns {
			if j < len(row) {
				pairs = append(pairs, fmt.Sprintf("%s=%v", col, row[j]))
			}
		}
		rendered[i] = strings.Join(pairs, ", ")
	}
	return rendered
}

func plainListing(columns []string, rendered []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is what the query returned (%s):\n", strings.Join(columns, ", "))
	for _, row := range rendered {
		b.WriteString("- " + row + "\n")
	}
	return strings.TrimSpace(b.String())
}

func chunkStrings(items []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
