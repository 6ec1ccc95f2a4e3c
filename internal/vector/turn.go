// Package vector provides the SurrealDB-backed similarity index over
// conversation turns.
package vector

// Turn is one recorded message event, immutable once stored.
type Turn struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"` // ms since epoch
	ThreadID   string `json:"thread_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	IsBot      bool   `json:"is_bot"`
}

// Meta mirrors a stored turn's attributes on a query result.
type Meta struct {
	Timestamp  int64  `json:"timestamp"`
	ThreadID   string `json:"thread_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	IsBot      bool   `json:"is_bot"`
}

// Result is one ranked similarity match.
type Result struct {
	Content    string
	Author     string
	Meta       Meta
	Similarity float64
}
