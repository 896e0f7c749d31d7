package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type loadFunc func(ctx context.Context, id string) (Document, error)

type stagedDoc struct {
	doc     Document
	existed bool
	dirty   bool
}

// applier runs mutations against a staged view of the documents they touch.
// Nothing is visible outside the applier until the caller persists changes().
type applier struct {
	ctx    context.Context
	now    time.Time
	load   loadFunc
	staged map[string]*stagedDoc
	order  []string
}

type change struct {
	id      string
	doc     Document
	existed bool
}

func newApplier(ctx context.Context, now time.Time, load loadFunc) *applier {
	return &applier{
		ctx:    ctx,
		now:    now,
		load:   load,
		staged: make(map[string]*stagedDoc),
	}
}

func (a *applier) get(id string) (*stagedDoc, error) {
	if s, ok := a.staged[id]; ok {
		return s, nil
	}
	doc, err := a.load(a.ctx, id)
	var s *stagedDoc
	switch {
	case errors.Is(err, ErrNotFound):
		s = &stagedDoc{}
	case err != nil:
		return nil, err
	default:
		s = &stagedDoc{doc: doc.Clone(), existed: true}
	}
	a.staged[id] = s
	a.order = append(a.order, id)
	return s, nil
}

func (a *applier) applyAll(mutations []Mutation) ([]MutationResult, error) {
	results := make([]MutationResult, 0, len(mutations))
	for i, m := range mutations {
		result, err := a.apply(m)
		if err != nil {
			return nil, fmt.Errorf("mutation %d (%s): %w", i, m.Kind, err)
		}
		results = append(results, result)
	}
	return results, nil
}

func (a *applier) apply(m Mutation) (MutationResult, error) {
	switch m.Kind {
	case OpCreate, OpCreateIfNotExists, OpCreateOrReplace:
		return a.applyCreate(m)
	case OpPatch:
		return a.applyPatch(m.Patch)
	case OpDelete:
		if err := validateID(m.DeleteID); err != nil {
			return MutationResult{}, err
		}
		s, err := a.get(m.DeleteID)
		if err != nil {
			return MutationResult{}, err
		}
		if s.doc != nil {
			s.doc = nil
			s.dirty = true
		}
		return MutationResult{ID: m.DeleteID, Operation: OpDelete}, nil
	default:
		return MutationResult{}, fmt.Errorf("unsupported mutation %q", m.Kind)
	}
}

func (a *applier) applyCreate(m Mutation) (MutationResult, error) {
	if m.Document == nil {
		return MutationResult{}, errors.New("document body is required")
	}
	doc, err := normalizeDocument(m.Document)
	if err != nil {
		return MutationResult{}, err
	}
	if doc.ID() == "" && m.Kind == OpCreate {
		doc["_id"] = uuid.NewString()
	}
	id := doc.ID()
	if err := validateID(id); err != nil {
		return MutationResult{}, err
	}
	if doc.Type() == "" {
		return MutationResult{}, ErrMissingType
	}

	s, err := a.get(id)
	if err != nil {
		return MutationResult{}, err
	}
	created := a.now
	if s.doc != nil {
		switch m.Kind {
		case OpCreate:
			return MutationResult{}, fmt.Errorf("%w: %s", ErrConflict, id)
		case OpCreateIfNotExists:
			return MutationResult{ID: id, Operation: m.Kind}, nil
		}
		created = createdAt(s.doc, a.now)
	}

	delete(doc, "_rev")
	stamp(doc, created, a.now)
	s.doc = doc
	s.dirty = true
	return MutationResult{ID: id, Operation: m.Kind}, nil
}

func (a *applier) applyPatch(p *Patch) (MutationResult, error) {
	if p == nil {
		return MutationResult{}, errors.New("patch body is required")
	}
	if err := validateID(p.ID); err != nil {
		return MutationResult{}, err
	}
	s, err := a.get(p.ID)
	if err != nil {
		return MutationResult{}, err
	}
	if s.doc == nil {
		return MutationResult{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	if p.IfRevisionID != "" && p.IfRevisionID != s.doc.Rev() {
		return MutationResult{}, fmt.Errorf("%w: %s is at %s", ErrRevisionMismatch, p.ID, s.doc.Rev())
	}

	doc := s.doc
	for _, raw := range sortedPaths(p.SetIfMissing) {
		if err := a.set(doc, raw, p.SetIfMissing[raw], true); err != nil {
			return MutationResult{}, err
		}
	}
	for _, raw := range sortedPaths(p.Set) {
		if err := a.set(doc, raw, p.Set[raw], false); err != nil {
			return MutationResult{}, err
		}
	}
	for _, raw := range p.Unset {
		path, err := writablePath(raw)
		if err != nil {
			return MutationResult{}, err
		}
		unsetPath(doc, path)
	}

	stamp(doc, createdAt(doc, a.now), a.now)
	s.dirty = true
	return MutationResult{ID: p.ID, Operation: OpPatch}, nil
}

func (a *applier) set(doc Document, raw string, value any, onlyIfMissing bool) error {
	path, err := writablePath(raw)
	if err != nil {
		return err
	}
	plain, err := Normalize(value)
	if err != nil {
		return fmt.Errorf("encode value for %s: %w", raw, err)
	}
	return setPath(doc, path, plain, onlyIfMissing)
}

func writablePath(raw string) (Path, error) {
	path, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}
	switch path[0].field {
	case "_id", "_type", "_rev", "_createdAt", "_updatedAt":
		return nil, fmt.Errorf("%w: %s is read-only", ErrInvalidPath, path[0].field)
	}
	return path, nil
}

func (a *applier) changes() []change {
	var out []change
	for _, id := range a.order {
		s := a.staged[id]
		if !s.dirty {
			continue
		}
		out = append(out, change{id: id, doc: s.doc, existed: s.existed})
	}
	return out
}

func normalizeDocument(doc Document) (Document, error) {
	plain, err := Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	obj, ok := plain.(map[string]any)
	if !ok {
		return nil, errors.New("document must be a JSON object")
	}
	return Document(obj), nil
}
