package core

import "context"

// Document is one retrieved snippet with provenance.
type Document struct {
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Retriever looks up documents relevant to a query. Retrieval failures are
// advisory: callers log and continue without context rather than failing
// the node.
type Retriever interface {
	Retrieve(ctx context.Context, query, method string, limit int) ([]Document, error)
}
