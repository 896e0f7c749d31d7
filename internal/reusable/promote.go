package reusable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pageblocks/api/internal/schema"
	"pageblocks/api/internal/store"
)

// TransactionTag marks store transactions written by a promotion.
const TransactionTag = "transform-to-reusable-block"

var (
	ErrNoDocumentID    = errors.New("no document id found")
	ErrNoField         = errors.New("no field given for the block")
	ErrBlockNotFound   = errors.New("block not found")
	ErrNotKeyed        = errors.New("block has no _key")
	ErrKeyMismatch     = errors.New("block _key does not match the requested key")
	ErrAlreadyReusable = errors.New("block is already reusable")
	ErrNotPromotable   = errors.New("block type cannot be made reusable")
	ErrSourceNotFound  = errors.New("source document not found")
)

// StoreError wraps a write the document store refused. OrphanID is set when a
// shareable document was created but the source document could not be patched.
type StoreError struct {
	Op       string
	OrphanID string
	Err      error
}

func (e *StoreError) Error() string {
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Writer is the part of the document store a promotion needs.
type Writer interface {
	GetDocument(ctx context.Context, id string) (store.Document, error)
	Create(ctx context.Context, doc store.Document) (store.Document, error)
	Patch(ctx context.Context, patch *store.Patch) (store.Document, error)
}

// Transactor is implemented by stores that can commit several mutations atomically.
type Transactor interface {
	Transaction(ctx context.Context, tx store.Transaction) (store.TransactionResult, error)
}

type Validator interface {
	Validate(doc map[string]any) error
}

type Request struct {
	DocumentID string
	// Field is the composite field holding the block, e.g. "content".
	Field string
	Key   string
	Value map[string]any
}

type Reference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
	Key  string `json:"_key"`
}

func (r Reference) Value() map[string]any {
	return map[string]any{"_type": r.Type, "_ref": r.Ref, "_key": r.Key}
}

// Navigation describes the "open the new document" action offered after a promotion.
type Navigation struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	ParentID      string `json:"parentId"`
	ParentRefPath string `json:"parentRefPath"`
}

type Result struct {
	NewID         string       `json:"newId"`
	Committed     bool         `json:"committed"`
	Atomic        bool         `json:"atomic"`
	TransactionID string       `json:"transactionId,omitempty"`
	Title         string       `json:"title"`
	Reference     Reference    `json:"reference"`
	Patch         *store.Patch `json:"patch"`
	Navigate      Navigation   `json:"navigate"`

	// Documents holds the stored bodies written by the promotion.
	Documents []store.Document `json:"-"`
}

type Promoter struct {
	store     Writer
	registry  *schema.Registry
	validator Validator
	newID     func() string
	log       zerolog.Logger
}

type Option func(*Promoter)

func WithValidator(v Validator) Option {
	return func(p *Promoter) { p.validator = v }
}

// WithSchema rejects values whose type is not flagged reusable and validates
// the new shareable document against the registry.
func WithSchema(r *schema.Registry) Option {
	return func(p *Promoter) {
		p.registry = r
		p.validator = r
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(p *Promoter) { p.newID = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Promoter) { p.log = log }
}

func NewPromoter(s Writer, opts ...Option) *Promoter {
	p := &Promoter{
		store: s,
		newID: uuid.NewString,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Promote copies req.Value into a new shareable document and replaces the keyed
// array item in the source document with a reference to it. Both writes are
// submitted in one transaction when the store supports it. The keyed item must
// exist in the stored source document, and the source must not itself be a
// shareable document.
func (p *Promoter) Promote(ctx context.Context, req Request, title TitleFunc) (Result, error) {
	key, err := checkRequest(req)
	if err != nil {
		return Result{}, err
	}
	if p.registry != nil {
		typeName, _ := req.Value["_type"].(string)
		t, _ := p.registry.Lookup(typeName)
		if !IsPromotable(t, 1) {
			return Result{}, fmt.Errorf("%w: %q", ErrNotPromotable, typeName)
		}
	}
	source, err := p.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceNotFound, req.DocumentID)
		}
		return Result{}, &StoreError{Op: "read", Err: err}
	}
	if source.Type() == schema.ShareableType {
		return Result{}, fmt.Errorf("%w: %s is a %s", ErrAlreadyReusable, req.DocumentID, schema.ShareableType)
	}
	path := store.KeyedPath(req.Field, key)
	stored, err := store.Get(source, path)
	if errors.Is(err, store.ErrPathNotFound) {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, path)
	}
	if err != nil {
		return Result{}, err
	}
	item, ok := stored.(map[string]any)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrBlockNotFound, path)
	}
	if IsPromoted(item) {
		return Result{}, ErrAlreadyReusable
	}

	if title == nil {
		title = DeriveTitle
	}
	newID := p.newID()
	result := Result{
		NewID:     newID,
		Title:     title(req.Value),
		Reference: Reference{Type: schema.ReferenceType, Ref: newID, Key: key},
	}

	shareable := store.Document{
		"_id":     newID,
		"_type":   schema.ShareableType,
		"title":   result.Title,
		"content": []any{store.DeepCopy(req.Value)},
	}
	if p.validator != nil {
		if err := p.validator.Validate(shareable); err != nil {
			return result, err
		}
	}

	result.Patch = store.NewPatch(req.DocumentID).SetValue(path, result.Reference.Value())
	result.Navigate = Navigation{
		ID:            newID,
		Type:          schema.ShareableType,
		ParentID:      req.DocumentID,
		ParentRefPath: path,
	}

	log := p.log.With().
		Str("document_id", req.DocumentID).
		Str("key", key).
		Str("new_id", newID).
		Logger()

	if tx, ok := p.store.(Transactor); ok {
		committed, err := tx.Transaction(ctx, store.Transaction{
			Tag: TransactionTag,
			Mutations: []store.Mutation{
				store.Create(shareable),
				store.PatchMutation(result.Patch),
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("promotion transaction rejected")
			return result, &StoreError{Op: "transaction", Err: err}
		}
		result.Committed = true
		result.Atomic = true
		result.TransactionID = committed.TransactionID
		result.Documents = committed.Documents
		log.Info().Str("transaction_id", committed.TransactionID).Msg("block promoted")
		return result, nil
	}

	log.Warn().Msg("store has no transactions, promoting with separate create and patch")
	created, err := p.store.Create(ctx, shareable)
	if err != nil {
		log.Error().Err(err).Msg("create shareable document rejected")
		return result, &StoreError{Op: "create", Err: err}
	}
	patched, err := p.store.Patch(ctx, result.Patch)
	if err != nil {
		log.Error().Err(err).Str("orphan_id", newID).Msg("patch rejected after create, shareable document left unreferenced")
		return result, &StoreError{Op: "patch", OrphanID: newID, Err: err}
	}
	result.Committed = true
	result.Documents = []store.Document{created, patched}
	log.Info().Msg("block promoted")
	return result, nil
}

func checkRequest(req Request) (string, error) {
	if strings.TrimSpace(req.DocumentID) == "" {
		return "", ErrNoDocumentID
	}
	if strings.TrimSpace(req.Field) == "" {
		return "", ErrNoField
	}
	if req.Value == nil {
		return "", ErrBlockNotFound
	}
	key, _ := req.Value["_key"].(string)
	if key == "" {
		return "", ErrNotKeyed
	}
	if req.Key != "" && req.Key != key {
		return "", fmt.Errorf("%w: got %q, block has %q", ErrKeyMismatch, req.Key, key)
	}
	if IsPromoted(req.Value) {
		return "", ErrAlreadyReusable
	}
	return key, nil
}
