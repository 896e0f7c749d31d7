package store

import (
	"context"
	"strings"
)

// Store is the document database the promotion workflow runs against.
type Store interface {
	GetDocument(ctx context.Context, id string) (Document, error)
	Create(ctx context.Context, doc Document) (Document, error)
	Patch(ctx context.Context, patch *Patch) (Document, error)
	Transaction(ctx context.Context, tx Transaction) (TransactionResult, error)
	ReferencingIDs(ctx context.Context, targetID string) ([]string, error)
	ListDocuments(ctx context.Context, opts ListOptions) ([]Document, error)
	SearchTitles(ctx context.Context, q TitleQuery) ([]Document, error)
	Ping(ctx context.Context) error
}

type ListOptions struct {
	Type  string
	Limit int
}

type TitleQuery struct {
	Type  string
	Text  string
	Limit int
}

func (q TitleQuery) limit() int {
	if q.Limit <= 0 || q.Limit > 100 {
		return 20
	}
	return q.Limit
}

func (q TitleQuery) matches(doc Document) bool {
	if q.Type != "" && doc.Type() != q.Type {
		return false
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))
	if text == "" {
		return true
	}
	return strings.Contains(strings.ToLower(doc.Title()), text)
}

func firstDocument(result TransactionResult, fallback error) (Document, error) {
	if len(result.Documents) == 0 {
		return nil, fallback
	}
	return result.Documents[0], nil
}
