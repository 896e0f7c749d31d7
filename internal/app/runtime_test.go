package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/config"
)

func TestOpenMemoryRuntime(t *testing.T) {
	cfg := config.Config{StoreBackend: "memory", CORSOrigin: "*", HistoryDir: filepath.Join(t.TempDir(), "history")}
	rt, err := Open(context.Background(), cfg, zerolog.Nop(), WithSequentialWrites())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rt.Close()

	if err := rt.Service.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	outcome, err := rt.Service.Promote(context.Background(), "home", PromoteInput{
		Field: "content",
		Value: map[string]any{"_key": "cta", "_type": "ctaBlock", "heading": "Start a free trial", "buttonText": "Sign up"},
	})
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if outcome.Atomic {
		t.Fatal("expected a sequential promotion")
	}
	if outcome.Title != "Start a free trial" {
		t.Fatalf("unexpected title %q", outcome.Title)
	}

	commits, err := rt.Service.History(outcome.NewID, 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(commits) != 1 {
		t.Fatalf("expected one revision, got %d", len(commits))
	}
}

func TestOpenRejectsBadSchemaGlob(t *testing.T) {
	cfg := config.Config{StoreBackend: "memory", SchemaGlob: filepath.Join(t.TempDir(), "*.yaml")}
	if _, err := Open(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected an error when the schema glob matches nothing")
	}
}
