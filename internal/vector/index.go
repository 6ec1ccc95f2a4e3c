package vector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/surrealdb/surrealdb.go"

	"github.com/jamisonl/Reverie/internal/metrics"
)

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores conversation turns as embedded documents and answers
// nearest-neighbor queries scoped to a thread.
//
// Indexing is best-effort: writes report success as a bool and queries
// return an empty slice on failure, so an index outage never aborts
// message handling.
type Index struct {
	client  *Client
	table   string
	embed   Embedder
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewIndex creates an index over the given table. Embedding and
// storage calls are timed on the collector.
func NewIndex(client *Client, table string, embed Embedder, coll *metrics.Collector, logger *slog.Logger) *Index {
	if coll == nil {
		coll = metrics.NewCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{client: client, table: table, embed: embed, metrics: coll, logger: logger}
}

// embedText runs the embedder under the embedding metric.
func (ix *Index) embedText(ctx context.Context, text string) ([]float32, error) {
	var embedding []float32
	err := ix.metrics.Observe(metrics.OpEmbedding, func() error {
		var embErr error
		embedding, embErr = ix.embed.Embed(ctx, text)
		return embErr
	})
	return embedding, err
}

// match is a query result row with its KNN distance.
type match struct {
	Content    string  `json:"content"`
	ThreadID   string  `json:"thread_id"`
	AuthorID   string  `json:"author_id"`
	AuthorName string  `json:"author_name"`
	IsBot      bool    `json:"is_bot"`
	Timestamp  int64   `json:"timestamp"`
	Distance   float64 `json:"distance"`
}

// Upsert embeds and stores a turn, overwriting any document with the
// same ID. Returns false on failure instead of an error.
func (ix *Index) Upsert(ctx context.Context, turn Turn) bool {
	embedding, err := ix.embedText(ctx, turn.Content)
	if err != nil {
		ix.logger.Error("failed to embed turn", "id", turn.ID, "error", err)
		return false
	}

	sql := fmt.Sprintf(`
		UPSERT type::record("%s", $id) CONTENT {
			content: $content,
			embedding: $embedding,
			thread_id: $thread_id,
			author_id: $author_id,
			author_name: $author_name,
			is_bot: $is_bot,
			timestamp: $timestamp
		}
	`, ix.table)

	err = ix.metrics.Observe(metrics.OpIndexUpsert, func() error {
		_, qErr := surrealdb.Query[any](ctx, ix.client.DB(), sql, map[string]any{
			"id":          turn.ID,
			"content":     turn.Content,
			"embedding":   embedding,
			"thread_id":   turn.ThreadID,
			"author_id":   turn.AuthorID,
			"author_name": turn.AuthorName,
			"is_bot":      turn.IsBot,
			"timestamp":   turn.Timestamp,
		})
		return qErr
	})
	if err != nil {
		ix.logger.Error("failed to upsert turn", "id", turn.ID, "thread", turn.ThreadID, "error", err)
		return false
	}
	return true
}

// Query runs a nearest-neighbor search restricted to one thread and
// returns up to limit raw ranked results. Similarity is derived from
// cosine distance as 1 - d/2, clamped to [0,1]; threshold filtering is
// the caller's concern. Failures yield an empty slice.
func (ix *Index) Query(ctx context.Context, text, threadID string, limit int) []Result {
	if limit <= 0 {
		return nil
	}

	embedding, err := ix.embedText(ctx, text)
	if err != nil {
		ix.logger.Error("failed to embed query", "thread", threadID, "error", err)
		return nil
	}

	// HNSW KNN with ef=40 for recall; thread filter is exact-match
	sql := fmt.Sprintf(`
		SELECT content, thread_id, author_id, author_name, is_bot, timestamp,
		       vector::distance::knn() AS distance
		FROM %s
		WHERE embedding <|%d,40|> $emb AND thread_id = $thread
		ORDER BY distance ASC
	`, ix.table, limit)

	var results *[]surrealdb.QueryResult[[]match]
	err = ix.metrics.Observe(metrics.OpIndexQuery, func() error {
		var qErr error
		results, qErr = surrealdb.Query[[]match](ctx, ix.client.DB(), sql, map[string]any{
			"emb":    embedding,
			"thread": threadID,
		})
		return qErr
	})
	if err != nil {
		ix.logger.Error("similarity query failed", "thread", threadID, "error", err)
		return nil
	}
	if results == nil || len(*results) == 0 {
		return nil
	}

	matches := (*results)[0].Result
	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		out = append(out, Result{
			Content: m.Content,
			Author:  m.AuthorName,
			Meta: Meta{
				Timestamp:  m.Timestamp,
				ThreadID:   m.ThreadID,
				AuthorID:   m.AuthorID,
				AuthorName: m.AuthorName,
				IsBot:      m.IsBot,
			},
			Similarity: similarityFromDistance(m.Distance),
		})
	}
	return out
}

// Clear deletes every document for a thread. Idempotent; returns false
// only on storage failure.
func (ix *Index) Clear(ctx context.Context, threadID string) bool {
	sql := fmt.Sprintf(`DELETE %s WHERE thread_id = $thread`, ix.table)
	_, err := surrealdb.Query[any](ctx, ix.client.DB(), sql, map[string]any{
		"thread": threadID,
	})
	if err != nil {
		ix.logger.Error("failed to clear thread history", "thread", threadID, "error", err)
		return false
	}
	ix.logger.Info("cleared thread history", "thread", threadID)
	return true
}

// Count returns the number of documents stored for a thread.
func (ix *Index) Count(ctx context.Context, threadID string) (int, error) {
	sql := fmt.Sprintf(`SELECT count() AS c FROM %s WHERE thread_id = $thread GROUP ALL`, ix.table)
	results, err := surrealdb.Query[[]struct {
		C int `json:"c"`
	}](ctx, ix.client.DB(), sql, map[string]any{"thread": threadID})
	if err != nil {
		return 0, fmt.Errorf("count thread documents: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].C, nil
}

// similarityFromDistance maps a cosine distance in [0,2] onto [0,1].
func similarityFromDistance(d float64) float64 {
	s := 1 - d/2
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
