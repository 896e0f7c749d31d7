package refs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/store"
)

type fakeSource struct {
	ids   map[string][]string
	err   error
	calls int
}

func (f *fakeSource) ReferencingIDs(_ context.Context, id string) ([]string, error) {
	f.calls++
	return f.ids[id], f.err
}

func TestCountDistinctReferrers(t *testing.T) {
	src := &fakeSource{ids: map[string][]string{
		"shareable1": {"docA", "docB", "drafts.docB"},
	}}
	c := NewCounter(src, nil, time.Minute, zerolog.Nop())

	got, err := c.Count(context.Background(), "shareable1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Known || got.N != 2 {
		t.Fatalf("Count() = %+v, want known 2", got)
	}

	drafted, err := c.Count(context.Background(), "drafts.shareable1")
	if err != nil {
		t.Fatal(err)
	}
	if drafted.N != 2 {
		t.Fatalf("draft id should count the published document, got %+v", drafted)
	}
	if src.calls != 1 {
		t.Fatalf("expected one store query, got %d", src.calls)
	}
}

func TestCountUnknownAndZero(t *testing.T) {
	src := &fakeSource{}
	c := NewCounter(src, nil, time.Minute, zerolog.Nop())

	unknown, err := c.Count(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if unknown.Known {
		t.Fatalf("empty id must be unknown, got %+v", unknown)
	}
	if src.calls != 0 {
		t.Fatal("empty id must not query the store")
	}

	zero, err := c.Count(context.Background(), "lonely")
	if err != nil {
		t.Fatal(err)
	}
	if !zero.Known || zero.N != 0 {
		t.Fatalf("unreferenced document should count 0, got %+v", zero)
	}
}

func TestRevalidateRefreshes(t *testing.T) {
	src := &fakeSource{ids: map[string][]string{"s": {"docA"}}}
	c := NewCounter(src, nil, time.Hour, zerolog.Nop())
	ctx := context.Background()

	if got, _ := c.Count(ctx, "s"); got.N != 1 {
		t.Fatalf("initial count %d", got.N)
	}
	src.ids["s"] = []string{"docA", "docC"}
	if got, _ := c.Count(ctx, "s"); got.N != 1 {
		t.Fatalf("cached count should be stale until revalidated, got %d", got.N)
	}
	if got, _ := c.Revalidate(ctx, "s"); got.N != 2 {
		t.Fatalf("revalidated count %d", got.N)
	}

	c.Invalidate(ctx, "drafts.s")
	src.ids["s"] = nil
	if got, _ := c.Count(ctx, "s"); got.N != 0 {
		t.Fatalf("count after invalidate %d", got.N)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cache.Set(ctx, "s", Count{Known: true, N: 4}, 30*time.Second)
	if got, ok, _ := cache.Get(ctx, "s"); !ok || got.N != 4 {
		t.Fatalf("fresh entry = %+v, %v", got, ok)
	}
	now = now.Add(31 * time.Second)
	if _, ok, _ := cache.Get(ctx, "s"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestCountStoreError(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	c := NewCounter(src, nil, time.Minute, zerolog.Nop())
	if _, err := c.Count(context.Background(), "s"); err == nil {
		t.Fatal("expected store error")
	}
}

func TestCountAgainstMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	ref := map[string]any{"_type": "reference", "_ref": "shareable1", "_key": "a"}
	for _, id := range []string{"docA", "docB"} {
		if _, err := s.Create(ctx, store.Document{"_id": id, "_type": "page", "content": []any{ref}}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := NewCounter(s, nil, time.Minute, zerolog.Nop()).Count(ctx, "shareable1")
	if err != nil {
		t.Fatal(err)
	}
	if got.N != 2 {
		t.Fatalf("Count() = %d, want 2", got.N)
	}
}
