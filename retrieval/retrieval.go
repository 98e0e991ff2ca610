// Package retrieval supplies document context to doc-aware agents. The
// in-memory keyword index covers tests and demos; production deployments
// plug in their own core.Retriever.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// DefaultLimit is the number of documents fetched when a caller passes a
// non-positive limit.
const DefaultLimit = 3

// Noop is a Retriever that never finds anything.
type Noop struct{}

// Retrieve implements core.Retriever.
func (Noop) Retrieve(_ context.Context, _, _ string, _ int) ([]core.Document, error) {
	return nil, nil
}

// KeywordIndex is a process-local core.Retriever implementation scoring
// documents by case-insensitive term overlap with the query.
//
// Concurrency: protected by RWMutex.
// Scoring: fraction of query terms present in the document. Suitable only
// for tests and demos; swap for a vector index for production retrieval.
type KeywordIndex struct {
	mu   sync.RWMutex
	docs []core.Document
}

// NewKeywordIndex creates an empty keyword index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{}
}

// Add appends a document to the index.
func (k *KeywordIndex) Add(doc core.Document) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.docs = append(k.docs, doc)
}

// Retrieve implements core.Retriever. The search method is accepted for
// interface compatibility but does not change the ranking here.
func (k *KeywordIndex) Retrieve(ctx context.Context, query, _ string, limit int) ([]core.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	k.mu.RLock()
	defer k.mu.RUnlock()

	type scored struct {
		doc   core.Document
		score float64
	}
	var hits []scored
	for _, doc := range k.docs {
		haystack := strings.ToLower(doc.Title + " " + doc.Content)
		matched := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		d := doc
		d.Score = float64(matched) / float64(len(terms))
		hits = append(hits, scored{doc: d, score: d.Score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]core.Document, len(hits))
	for i, h := range hits {
		out[i] = h.doc
	}
	return out, nil
}

// FormatContext renders retrieved documents as a prompt block. An empty
// result renders as an empty string so callers can append unconditionally.
func FormatContext(docs []core.Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("=== RELEVANT DOCUMENTS ===\n")
	for i, d := range docs {
		title := d.Title
		if title == "" {
			title = fmt.Sprintf("Document %d", i+1)
		}
		fmt.Fprintf(&b, "\n[%d] %s\n%s\n", i+1, title, d.Content)
	}
	b.WriteString("\n=== END DOCUMENTS ===")
	return b.String()
}
