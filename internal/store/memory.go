package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps documents in process. Transactions are applied to a staged
// copy under the write lock and swapped in only when every mutation succeeds.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
	// target id -> referring document ids
	refs map[string]map[string]struct{}
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]Document),
		refs: make(map[string]map[string]struct{}),
		now:  time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) GetDocument(_ context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, doc Document) (Document, error) {
	result, err := s.Transaction(ctx, Transaction{Mutations: []Mutation{Create(doc)}})
	if err != nil {
		return nil, err
	}
	return firstDocument(result, errors.New("create returned no document"))
}

func (s *MemoryStore) Patch(ctx context.Context, patch *Patch) (Document, error) {
	result, err := s.Transaction(ctx, Transaction{Mutations: []Mutation{PatchMutation(patch)}})
	if err != nil {
		return nil, err
	}
	return firstDocument(result, fmt.Errorf("%w: %s", ErrNotFound, patch.ID))
}

func (s *MemoryStore) Transaction(ctx context.Context, tx Transaction) (TransactionResult, error) {
	if len(tx.Mutations) == 0 {
		return TransactionResult{}, errors.New("transaction has no mutations")
	}
	if err := ctx.Err(); err != nil {
		return TransactionResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := newApplier(ctx, s.now(), func(_ context.Context, id string) (Document, error) {
		doc, ok := s.docs[id]
		if !ok {
			return nil, ErrNotFound
		}
		return doc, nil
	})
	results, err := a.applyAll(tx.Mutations)
	if err != nil {
		return TransactionResult{}, err
	}

	txID := tx.ID
	if txID == "" {
		txID = uuid.NewString()
	}
	out := TransactionResult{TransactionID: txID, Results: results}
	for _, c := range a.changes() {
		s.dropRefs(c.id)
		if c.doc == nil {
			delete(s.docs, c.id)
			continue
		}
		s.docs[c.id] = c.doc
		for _, target := range References(c.doc) {
			if s.refs[target] == nil {
				s.refs[target] = make(map[string]struct{})
			}
			s.refs[target][c.id] = struct{}{}
		}
		out.Documents = append(out.Documents, c.doc.Clone())
	}
	return out, nil
}

func (s *MemoryStore) dropRefs(sourceID string) {
	for target, sources := range s.refs {
		delete(sources, sourceID)
		if len(sources) == 0 {
			delete(s.refs, target)
		}
	}
}

func (s *MemoryStore) ReferencingIDs(_ context.Context, targetID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.refs[targetID]))
	for id := range s.refs[targetID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, opts ListOptions) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id, doc := range s.docs {
		if opts.Type != "" && doc.Type() != opts.Type {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if opts.Limit > 0 && len(ids) > opts.Limit {
		ids = ids[:opts.Limit]
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.docs[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) SearchTitles(ctx context.Context, q TitleQuery) ([]Document, error) {
	all, err := s.ListDocuments(ctx, ListOptions{Type: q.Type})
	if err != nil {
		return nil, err
	}
	var out []Document
	for _, doc := range all {
		if !q.matches(doc) {
			continue
		}
		out = append(out, doc)
		if len(out) == q.limit() {
			break
		}
	}
	return out, nil
}
