package search

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/schema"
	"pageblocks/api/internal/store"
)

// Lister loads every stored document of a type, used for full reindexing.
type Lister interface {
	ListDocuments(ctx context.Context, opts store.ListOptions) ([]store.Document, error)
}

// Service is the facade that tries Meilisearch first and falls back to the store.
type Service struct {
	engine   Engine
	fallback Searcher
	log      zerolog.Logger
}

// NewService creates a search service. engine may be nil if Meilisearch is not configured.
func NewService(engine Engine, fallback Searcher, log zerolog.Logger) *Service {
	return &Service{engine: engine, fallback: fallback, log: log}
}

func (s *Service) engineReady() bool {
	return s.engine != nil && s.engine.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to the store.
func (s *Service) Search(q Query) Response {
	if s.engineReady() {
		results, total, err := s.engine.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "meilisearch"}
		}
		s.log.Warn().Err(err).Msg("meilisearch error, falling back to store search")
	}

	results, total, err := s.fallback.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("store search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Engine: "store"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Engine: "store"}
}

// IndexDocument indexes a shareable document (fire-and-forget). Other
// document types are ignored.
func (s *Service) IndexDocument(doc store.Document) {
	if doc.Type() != schema.ShareableType || !s.engineReady() {
		return
	}
	record := RecordFor(doc)
	go func() {
		if err := s.engine.IndexShareable(record); err != nil {
			s.log.Warn().Err(err).Str("id", record.ID).Msg("index shareable")
		}
	}()
}

// DeleteDocument removes a shareable document from the index (fire-and-forget).
func (s *Service) DeleteDocument(id string) {
	if !s.engineReady() {
		return
	}
	id = store.PublishedID(id)
	go func() {
		if err := s.engine.DeleteShareable(id); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("delete shareable from index")
		}
	}()
}

// ReindexAll pushes every stored shareable document to Meilisearch and
// returns how many were sent.
func (s *Service) ReindexAll(ctx context.Context, lister Lister) (int, error) {
	if !s.engineReady() {
		return 0, nil
	}
	docs, err := lister.ListDocuments(ctx, store.ListOptions{Type: schema.ShareableType})
	if err != nil {
		return 0, fmt.Errorf("reindex load: %w", err)
	}
	records := make([]Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, RecordFor(doc))
	}
	if err := s.engine.IndexShareables(records); err != nil {
		return 0, fmt.Errorf("reindex shareables: %w", err)
	}
	return len(records), nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
