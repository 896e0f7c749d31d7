package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

func seedPage(t *testing.T, s *MemoryStore, id string, content ...any) Document {
	t.Helper()
	doc, err := s.Create(context.Background(), Document{"_id": id, "_type": "page", "title": id, "content": content})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return doc
}

func TestMemoryCreateStampsSystemFields(t *testing.T) {
	s := NewMemoryStore()
	doc := seedPage(t, s, "doc1")
	if doc.Rev() == "" {
		t.Fatal("expected revision")
	}
	if doc["_createdAt"] == nil || doc["_updatedAt"] == nil {
		t.Fatal("expected timestamps")
	}

	if _, err := s.Create(context.Background(), Document{"_id": "doc1", "_type": "page"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.Create(context.Background(), Document{"_id": "doc2"}); !errors.Is(err, ErrMissingType) {
		t.Fatalf("expected ErrMissingType, got %v", err)
	}

	generated, err := s.Create(context.Background(), Document{"_type": "page"})
	if err != nil {
		t.Fatalf("create without id: %v", err)
	}
	if generated.ID() == "" {
		t.Fatal("expected generated id")
	}
}

func TestMemoryPatchChangesRevision(t *testing.T) {
	s := NewMemoryStore()
	before := seedPage(t, s, "doc1")

	after, err := s.Patch(context.Background(), NewPatch("doc1").IfRevision(before.Rev()).SetValue("title", "Renamed"))
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if after.Title() != "Renamed" || after.Rev() == before.Rev() {
		t.Fatalf("unexpected patched doc %#v", after)
	}

	_, err = s.Patch(context.Background(), NewPatch("doc1").IfRevision(before.Rev()).SetValue("title", "Again"))
	if !errors.Is(err, ErrRevisionMismatch) {
		t.Fatalf("expected ErrRevisionMismatch, got %v", err)
	}
	if _, err := s.Patch(context.Background(), NewPatch("missing").SetValue("title", "x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Patch(context.Background(), NewPatch("doc1").SetValue("_type", "x")); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected read-only path error, got %v", err)
	}
}

func TestMemoryTransactionAllOrNothing(t *testing.T) {
	s := NewMemoryStore()
	seedPage(t, s, "doc1", map[string]any{"_key": "a", "_type": "textBlock", "title": "Hello"})
	before, _ := s.GetDocument(context.Background(), "doc1")

	_, err := s.Transaction(context.Background(), Transaction{Mutations: []Mutation{
		Create(Document{"_id": "shareable1", "_type": "reusablePageBlock"}),
		PatchMutation(NewPatch("doc1").SetValue(`content[_key=="a"].nested[_key=="zz"].x`, 1)),
	}})
	if !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("expected ErrPathNotFound, got %v", err)
	}

	if _, err := s.GetDocument(context.Background(), "shareable1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("shareable1 must not exist, got %v", err)
	}
	after, _ := s.GetDocument(context.Background(), "doc1")
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("doc1 changed on failed transaction:\nbefore %#v\nafter  %#v", before, after)
	}
}

func TestMemoryReferencingIDs(t *testing.T) {
	s := NewMemoryStore()
	ref := map[string]any{"_type": "reference", "_ref": "shareable1", "_key": "a"}
	seedPage(t, s, "docA", ref)
	seedPage(t, s, "docB", ref)
	seedPage(t, s, "drafts.docB", ref)
	seedPage(t, s, "docC")

	ids, err := s.ReferencingIDs(context.Background(), "shareable1")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"docA", "docB", "drafts.docB"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}

	if _, err := s.Patch(context.Background(), NewPatch("docA").UnsetPath(KeyedPath("content", "a"))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Transaction(context.Background(), Transaction{Mutations: []Mutation{Delete("docB")}}); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.ReferencingIDs(context.Background(), "shareable1")
	if want := []string{"drafts.docB"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids after edits = %v, want %v", ids, want)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	seedPage(t, s, "doc1", map[string]any{"_key": "a", "title": "Hello"})

	doc, _ := s.GetDocument(context.Background(), "doc1")
	doc["content"].([]any)[0].(map[string]any)["title"] = "Mutated"

	again, _ := s.GetDocument(context.Background(), "doc1")
	if v, _ := Get(again, `content[_key=="a"].title`); v != "Hello" {
		t.Fatalf("store leaked internal state, title = %v", v)
	}
}

func TestMemoryConcurrentPatchesSerialize(t *testing.T) {
	s := NewMemoryStore()
	seedPage(t, s, "doc1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i))
			_, err := s.Patch(context.Background(), NewPatch("doc1").SetValue(KeyedPath("content", key), map[string]any{"_key": key}))
			if err != nil {
				t.Errorf("patch %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	doc, _ := s.GetDocument(context.Background(), "doc1")
	if got := len(doc["content"].([]any)); got != 20 {
		t.Fatalf("expected 20 items, got %d", got)
	}
}

func TestSearchTitles(t *testing.T) {
	s := NewMemoryStore()
	for _, title := range []string{"Pricing banner", "Intro", "Footer pricing"} {
		if _, err := s.Create(context.Background(), Document{"_type": "reusablePageBlock", "title": title}); err != nil {
			t.Fatal(err)
		}
	}
	seedPage(t, s, "pricing-page")

	hits, err := s.SearchTitles(context.Background(), TitleQuery{Type: "reusablePageBlock", Text: "PRICING"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}

func TestMutationJSON(t *testing.T) {
	m := PatchMutation(NewPatch("doc1").SetValue(KeyedPath("content", "a"), map[string]any{"_ref": "x"}))
	raw, err := m.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	var decoded Mutation
	if err := decoded.UnmarshalJSON(raw); err != nil {
		t.Fatal(err)
	}
	if decoded.Kind != OpPatch || decoded.TargetID() != "doc1" {
		t.Fatalf("decoded = %#v", decoded)
	}
	if err := decoded.UnmarshalJSON([]byte(`{"explode":{}}`)); err == nil {
		t.Fatal("expected unknown mutation error")
	}
}

func TestReferencesAndDraftIDs(t *testing.T) {
	doc := Document{"content": []any{
		map[string]any{"_ref": "x"},
		map[string]any{"nested": map[string]any{"_ref": "y"}},
		map[string]any{"_ref": "x"},
	}}
	if got := References(doc); len(got) != 2 {
		t.Fatalf("References() = %v", got)
	}
	if PublishedID("drafts.abc") != "abc" || DraftID("abc") != "drafts.abc" || DraftID("drafts.abc") != "drafts.abc" {
		t.Fatal("draft id helpers broken")
	}
	if !IsDraft("drafts.abc") || IsDraft("abc") {
		t.Fatal("IsDraft broken")
	}
}
