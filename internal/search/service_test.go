package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageblocks/api/internal/store"
)

type fakeEngine struct {
	mu      sync.Mutex
	healthy bool
	err     error
	results []Result
	indexed []Record
}

func (f *fakeEngine) Healthy() bool { return f.healthy }

func (f *fakeEngine) Search(Query) ([]Result, int, error) {
	return f.results, len(f.results), f.err
}

func (f *fakeEngine) IndexShareable(r Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, r)
	return nil
}

func (f *fakeEngine) IndexShareables(records []Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, records...)
	return nil
}

func (f *fakeEngine) DeleteShareable(string) error { return nil }

func (f *fakeEngine) indexedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.indexed)
}

func seedShareables(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	for i, title := range []string{"Pricing table", "Intro", "Pricing footer"} {
		blockType := "textBlock"
		if i == 2 {
			blockType = "ctaBlock"
		}
		_, err := s.Create(context.Background(), store.Document{
			"_type":   "reusablePageBlock",
			"title":   title,
			"content": []any{map[string]any{"_key": "a", "_type": blockType}},
		})
		require.NoError(t, err)
	}
	return s
}

func TestServiceFallsBackToStore(t *testing.T) {
	s := seedShareables(t)
	engine := &fakeEngine{healthy: true, err: errors.New("timeout")}
	svc := NewService(engine, NewStoreSearch(s), zerolog.Nop())

	resp := svc.Search(Query{Text: "pricing"})
	assert.Equal(t, "store", resp.Engine)
	assert.Equal(t, 2, resp.Total)

	filtered := svc.Search(Query{Text: "pricing", BlockType: "ctaBlock"})
	require.Len(t, filtered.Results, 1)
	assert.Equal(t, "Pricing footer", filtered.Results[0].Title)
	assert.Equal(t, "ctaBlock", filtered.Results[0].BlockType)
}

func TestServiceUsesHealthyEngine(t *testing.T) {
	engine := &fakeEngine{healthy: true, results: []Result{{ID: "x", Title: "From meili"}}}
	svc := NewService(engine, NewStoreSearch(store.NewMemoryStore()), zerolog.Nop())

	resp := svc.Search(Query{Text: "meili"})
	assert.Equal(t, "meilisearch", resp.Engine)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "From meili", resp.Results[0].Title)
}

func TestServiceEmptyQuery(t *testing.T) {
	svc := NewService(nil, NewStoreSearch(seedShareables(t)), zerolog.Nop())
	resp := svc.Search(Query{Text: "  "})
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestReindexAllAndIndexDocument(t *testing.T) {
	s := seedShareables(t)
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, NewStoreSearch(s), zerolog.Nop())

	n, err := svc.ReindexAll(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	svc.IndexDocument(store.Document{"_id": "page1", "_type": "page", "title": "Not indexed"})
	svc.IndexDocument(store.Document{"_id": "drafts.s1", "_type": "reusablePageBlock", "title": "Indexed"})
	assert.Eventually(t, func() bool { return engine.indexedCount() == 4 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "s1", engine.indexed[3].ID)
}

func TestRecordFor(t *testing.T) {
	r := RecordFor(store.Document{
		"_id":        "drafts.s1",
		"_type":      "reusablePageBlock",
		"title":      "Hero",
		"_updatedAt": "2024-05-01T10:00:00Z",
		"content":    []any{map[string]any{"_type": "imageBlock"}},
	})
	assert.Equal(t, Record{ID: "s1", Title: "Hero", BlockType: "imageBlock", UpdatedAt: 1714557600}, r)
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"id":         json.RawMessage(`"s1"`),
		"title":      json.RawMessage(`"Pricing table"`),
		"blockType":  json.RawMessage(`"textBlock"`),
		"_formatted": json.RawMessage(`{"title":"<mark>Pricing</mark> table","updatedAt":"1"}`),
	}
	got := hitToResult(hit)
	assert.Equal(t, Result{ID: "s1", Title: "Pricing table", Snippet: "<mark>Pricing</mark> table", BlockType: "textBlock"}, got)
}
