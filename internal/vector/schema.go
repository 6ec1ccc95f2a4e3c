package vector

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"
)

// schemaSQL returns schema initialization SQL for a turn table.
// The HNSW dimension must match the embedder's output dimension.
func schemaSQL(table string, dimension int) string {
	return fmt.Sprintf(`
		DEFINE TABLE IF NOT EXISTS %[1]s SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS content ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS embedding ON %[1]s TYPE array<float>;
		DEFINE FIELD IF NOT EXISTS thread_id ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS author_id ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS author_name ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS is_bot ON %[1]s TYPE bool DEFAULT false;
		DEFINE FIELD IF NOT EXISTS timestamp ON %[1]s TYPE int;

		DEFINE INDEX IF NOT EXISTS %[1]s_thread ON %[1]s FIELDS thread_id;
		DEFINE INDEX IF NOT EXISTS %[1]s_embedding ON %[1]s FIELDS embedding HNSW DIMENSION %[2]d DIST COSINE TYPE F32;
	`, table, dimension)
}

// InitSchema creates the turn table and its indexes.
func (c *Client) InitSchema(ctx context.Context, table string, dimension int) error {
	c.logger.Info("initializing vector schema", "table", table, "dimension", dimension)
	if _, err := surrealdb.Query[any](ctx, c.db, schemaSQL(table, dimension), nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
