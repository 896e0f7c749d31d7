// Package search finds shareable documents by title, through Meilisearch when
// it is reachable and through the document store otherwise.
package search

import (
	"time"

	"pageblocks/api/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	BlockType string `json:"blockType"`
}

// Query describes a search request.
type Query struct {
	Text      string
	BlockType string // empty = all block types
	Limit     int
	Offset    int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return 20
	}
	if q.Limit > 100 {
		return 100
	}
	return q.Limit
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

// Searcher can execute a title search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push shareable documents into a search index.
type Indexer interface {
	IndexShareable(r Record) error
	IndexShareables(records []Record) error
	DeleteShareable(id string) error
}

// Engine is a search backend that also maintains its own index.
type Engine interface {
	Searcher
	Indexer
}

// Record is the data we index for a shareable document.
type Record struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	BlockType string `json:"blockType"`
	UpdatedAt int64  `json:"updatedAt"`
}

// RecordFor builds the index record of a shareable document. Drafts index
// under their published id.
func RecordFor(doc store.Document) Record {
	r := Record{ID: store.PublishedID(doc.ID()), Title: doc.Title()}
	if items, ok := doc["content"].([]any); ok && len(items) > 0 {
		if block, ok := items[0].(map[string]any); ok {
			r.BlockType, _ = block["_type"].(string)
		}
	}
	if raw, ok := doc["_updatedAt"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			r.UpdatedAt = ts.Unix()
		}
	}
	return r
}
