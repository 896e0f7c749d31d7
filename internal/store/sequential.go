package store

import "context"

// Sequential exposes single-document writes of a store without its transaction
// primitive, mirroring document APIs that can only create and patch one at a time.
type Sequential struct {
	inner Store
}

func NewSequential(inner Store) *Sequential {
	return &Sequential{inner: inner}
}

func (s *Sequential) GetDocument(ctx context.Context, id string) (Document, error) {
	return s.inner.GetDocument(ctx, id)
}

func (s *Sequential) Create(ctx context.Context, doc Document) (Document, error) {
	return s.inner.Create(ctx, doc)
}

func (s *Sequential) Patch(ctx context.Context, patch *Patch) (Document, error) {
	return s.inner.Patch(ctx, patch)
}

func (s *Sequential) ReferencingIDs(ctx context.Context, targetID string) ([]string, error) {
	return s.inner.ReferencingIDs(ctx, targetID)
}
