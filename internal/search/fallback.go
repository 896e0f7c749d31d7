package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pageblocks/api/internal/schema"
	"pageblocks/api/internal/store"
)

// TitleSearcher is the part of the document store used when Meilisearch is
// not available.
type TitleSearcher interface {
	SearchTitles(ctx context.Context, q store.TitleQuery) ([]store.Document, error)
}

// StoreSearch implements Searcher with the store's own title search.
type StoreSearch struct {
	store   TitleSearcher
	timeout time.Duration
}

func NewStoreSearch(s TitleSearcher) *StoreSearch {
	return &StoreSearch{store: s, timeout: 5 * time.Second}
}

// Healthy is always true; the store being down takes the whole API down.
func (s *StoreSearch) Healthy() bool {
	return true
}

func (s *StoreSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// over-fetch so block type filtering and offsets still fill a page
	docs, err := s.store.SearchTitles(ctx, store.TitleQuery{
		Type:  schema.ShareableType,
		Text:  q.Text,
		Limit: 100,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("store title search: %w", err)
	}

	all := make([]Result, 0, len(docs))
	for _, doc := range docs {
		r := RecordFor(doc)
		if q.BlockType != "" && r.BlockType != q.BlockType {
			continue
		}
		all = append(all, Result{ID: r.ID, Title: r.Title, Snippet: r.Title, BlockType: r.BlockType})
	}

	total := len(all)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := start + q.limit()
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
