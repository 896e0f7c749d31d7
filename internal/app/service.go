package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pageblocks/api/internal/config"
	"pageblocks/api/internal/export"
	"pageblocks/api/internal/history"
	"pageblocks/api/internal/live"
	"pageblocks/api/internal/refs"
	"pageblocks/api/internal/reusable"
	"pageblocks/api/internal/schema"
	"pageblocks/api/internal/search"
	"pageblocks/api/internal/store"
)

// historyAuthor signs the revisions written by the API itself.
const historyAuthor = "Page Blocks Studio"

type PromoteInput struct {
	Field string         `json:"field"`
	Key   string         `json:"key"`
	Value map[string]any `json:"value"`
	Title string         `json:"title,omitempty"`
}

type PromoteOutcome struct {
	reusable.Result
	State        reusable.ActionState  `json:"state"`
	Notification reusable.Notification `json:"notification"`
}

type ReferenceSummary struct {
	ID       string `json:"id"`
	Known    bool   `json:"known"`
	Count    int    `json:"count"`
	Subtitle string `json:"subtitle"`
}

type BlockDecoration struct {
	Field      string              `json:"field"`
	Key        string              `json:"key"`
	Path       string              `json:"path"`
	BlockType  string              `json:"blockType"`
	Depth      int                 `json:"depth"`
	Decoration reusable.Decoration `json:"decoration"`
}

type DocumentDecorations struct {
	ID     string            `json:"id"`
	Type   string            `json:"type"`
	Blocks []BlockDecoration `json:"blocks"`
}

type historyLog interface {
	Record(doc store.Document, message, author string) (history.CommitInfo, error)
	History(documentID string, limit int) ([]history.CommitInfo, error)
	At(documentID, hash string) (store.Document, error)
}

type publisher interface {
	Publish(e live.Event)
}

// Deps carries the optional collaborators of a Service. Nil fields fall back
// to in-process defaults or disable the feature.
type Deps struct {
	Registry *schema.Registry
	Counter  *refs.Counter
	Search   *search.Service
	History  historyLog
	Hub      publisher
	Exporter *export.Service
	// Writer overrides the store used for promotion writes.
	Writer reusable.Writer
	Logger zerolog.Logger
}

type Service struct {
	cfg      config.Config
	store    store.Store
	registry *schema.Registry
	promoter *reusable.Promoter
	tracker  *reusable.Tracker
	counter  *refs.Counter
	search   *search.Service
	history  historyLog
	hub      publisher
	exporter *export.Service
	log      zerolog.Logger
}

func New(cfg config.Config, dataStore store.Store, deps Deps) *Service {
	registry := deps.Registry
	if registry == nil {
		registry = schema.Default()
	}
	counter := deps.Counter
	if counter == nil {
		counter = refs.NewCounter(dataStore, nil, cfg.RefCountTTL, deps.Logger)
	}
	searchService := deps.Search
	if searchService == nil {
		searchService = search.NewService(nil, search.NewStoreSearch(dataStore), deps.Logger)
	}
	writer := deps.Writer
	if writer == nil {
		writer = dataStore
	}
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		registry: registry,
		promoter: reusable.NewPromoter(writer, reusable.WithSchema(registry), reusable.WithLogger(deps.Logger)),
		tracker:  reusable.NewTracker(),
		counter:  counter,
		search:   searchService,
		history:  deps.History,
		hub:      deps.Hub,
		exporter: deps.Exporter,
		log:      deps.Logger,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Bootstrap seeds a demo page with one block of every reusable type when the
// store is empty.
func (s *Service) Bootstrap(ctx context.Context) error {
	existing, err := s.store.ListDocuments(ctx, store.ListOptions{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	home := store.Document{
		"_id":   "home",
		"_type": "page",
		"title": "Home",
		"slug":  map[string]any{"_type": "slug", "current": "home"},
		"content": []any{
			map[string]any{"_key": "intro", "_type": "textBlock", "heading": "Welcome", "title": "Intro"},
			map[string]any{"_key": "cta", "_type": "ctaBlock", "heading": "Start a free trial", "buttonText": "Sign up"},
			map[string]any{"_key": "features", "_type": "featuresGrid", "heading": "Why teams switch"},
		},
	}
	result, err := s.store.Transaction(ctx, store.Transaction{
		Tag:       "bootstrap",
		Mutations: []store.Mutation{store.CreateIfNotExists(home)},
	})
	if err != nil {
		return err
	}
	s.afterCommit(result.TransactionID, "bootstrap", result.Documents, nil)
	return nil
}

// Promote turns a keyed block of documentID into a shareable document. Only
// one promotion per block may be pending; once submitted the store call is
// not cancelled with the request.
func (s *Service) Promote(ctx context.Context, documentID string, input PromoteInput) (PromoteOutcome, error) {
	documentID = strings.TrimSpace(documentID)
	input.Field = strings.TrimSpace(input.Field)
	key := strings.TrimSpace(input.Key)
	if key == "" && input.Value != nil {
		key, _ = input.Value["_key"].(string)
	}

	if documentID != "" && key != "" {
		if !s.tracker.Begin(documentID, key) {
			return PromoteOutcome{}, domainError(http.StatusConflict, "PROMOTION_PENDING", "A promotion of this block is already in progress", map[string]any{"documentId": documentID, "key": key})
		}
	}

	titleFn := reusable.TitleFromSchema(s.registry)
	if title := strings.TrimSpace(input.Title); title != "" {
		titleFn = func(map[string]any) string { return title }
	}

	result, err := s.promoter.Promote(context.WithoutCancel(ctx), reusable.Request{
		DocumentID: documentID,
		Field:      input.Field,
		Key:        key,
		Value:      input.Value,
	}, titleFn)

	var state reusable.ActionState
	if documentID != "" && key != "" {
		state = s.tracker.Finish(documentID, key, result.NewID, err)
	}
	if err != nil {
		s.log.Error().Err(err).Str("document_id", documentID).Str("key", key).Msg("promotion failed")
		status, code, message, details := mapError(err)
		return PromoteOutcome{}, domainError(status, code, message, map[string]any{
			"detail":       details,
			"state":        state,
			"notification": reusable.ErrorNotification(err),
		})
	}

	s.afterCommit(result.TransactionID, reusable.TransactionTag, result.Documents, nil)
	return PromoteOutcome{Result: result, State: state, Notification: reusable.SuccessNotification()}, nil
}

func (s *Service) PromotionState(documentID, key string) reusable.ActionState {
	return s.tracker.State(strings.TrimSpace(documentID), strings.TrimSpace(key))
}

// afterCommit fans committed documents out to the cache, index, history and
// listeners. previousTargets are the references the documents held before the
// transaction. Each step is best effort.
func (s *Service) afterCommit(transactionID, tag string, docs []store.Document, previousTargets []string) {
	if len(docs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ids := make([]string, 0, len(docs))
	targets := append([]string(nil), previousTargets...)
	for _, doc := range docs {
		ids = append(ids, doc.ID())
		targets = append(targets, store.References(doc)...)
		s.search.IndexDocument(doc)
		if s.history != nil {
			message := tag
			if transactionID != "" {
				message = tag + "\n\ntransaction: " + transactionID
			}
			if _, err := s.history.Record(doc, message, historyAuthor); err != nil {
				s.log.Warn().Err(err).Str("document_id", doc.ID()).Msg("history record failed")
			}
		}
	}
	s.counter.Invalidate(ctx, targets...)
	if s.hub != nil {
		s.hub.Publish(live.Event{TransactionID: transactionID, Tag: tag, DocumentIDs: ids})
	}
}

// References counts the documents using id. revalidate bypasses the cache.
// The target itself need not be stored: a deleted or draft-only shareable can
// still have referrers.
func (s *Service) References(ctx context.Context, id string, revalidate bool) (ReferenceSummary, error) {
	id = strings.TrimSpace(id)
	summary := ReferenceSummary{ID: store.PublishedID(id)}
	if id == "" {
		summary.Subtitle = reusable.Subtitle("", false, 0)
		return summary, nil
	}

	var (
		count refs.Count
		err   error
	)
	if revalidate {
		count, err = s.counter.Revalidate(ctx, id)
	} else {
		count, err = s.counter.Count(ctx, id)
	}
	if err != nil {
		return ReferenceSummary{}, err
	}

	summary.Known = count.Known
	summary.Count = count.N
	doc, found, err := s.target(ctx, id)
	if err != nil {
		return ReferenceSummary{}, err
	}
	if !found {
		summary.Subtitle = reusable.MissingSubtitle(count.Known, count.N)
		return summary, nil
	}
	summary.Subtitle = reusable.Subtitle(search.RecordFor(doc).BlockType, count.Known, count.N)
	return summary, nil
}

// target loads the draft of a shareable, falling back to its published body.
func (s *Service) target(ctx context.Context, id string) (store.Document, bool, error) {
	published := store.PublishedID(id)
	for _, candidate := range []string{store.DraftID(published), published} {
		doc, err := s.store.GetDocument(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return doc, true, nil
	}
	return nil, false, nil
}

// Decorations lists every keyed block in the document with the decoration the
// editor should render next to it.
func (s *Service) Decorations(ctx context.Context, id string) (DocumentDecorations, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DocumentDecorations{}, reusable.ErrNoDocumentID
	}
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return DocumentDecorations{}, err
	}
	out := DocumentDecorations{ID: doc.ID(), Type: doc.Type(), Blocks: []BlockDecoration{}}
	for _, field := range sortedKeys(doc) {
		if strings.HasPrefix(field, "_") {
			continue
		}
		out.Blocks = s.collectBlocks(out.Blocks, doc.Type(), field, doc[field], 1)
	}
	return out, nil
}

func (s *Service) collectBlocks(out []BlockDecoration, documentType, path string, value any, depth int) []BlockDecoration {
	items, ok := value.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		key, _ := block["_key"].(string)
		if key == "" {
			continue
		}
		blockType, _ := block["_type"].(string)
		t, _ := s.registry.Lookup(blockType)
		decoration := reusable.Decorate(documentType, t, depth)
		if reusable.IsPromoted(block) {
			decoration = reusable.Decoration{Kind: reusable.DecorationNone}
		}
		itemPath := store.KeyedPath(path, key)
		out = append(out, BlockDecoration{
			Field:      path,
			Key:        key,
			Path:       itemPath,
			BlockType:  blockType,
			Depth:      depth,
			Decoration: decoration,
		})
		for _, field := range sortedKeys(block) {
			if strings.HasPrefix(field, "_") {
				continue
			}
			out = s.collectBlocks(out, documentType, itemPath+"."+field, block[field], depth+1)
		}
	}
	return out
}

func (s *Service) History(id string, limit int) ([]history.CommitInfo, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.history.History(strings.TrimSpace(id), limit)
}

func (s *Service) Revision(id, hash string) (store.Document, error) {
	if s.history == nil {
		return nil, domainError(http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE", "Revision history is not configured", nil)
	}
	return s.history.At(strings.TrimSpace(id), strings.TrimSpace(hash))
}

func (s *Service) Search(q search.Query) search.Response {
	return s.search.Search(q)
}

// Reindex pushes every shareable document into the search engine.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	return s.search.ReindexAll(ctx, s.store)
}

func (s *Service) Export(ctx context.Context, req export.Request) (export.Result, error) {
	if s.exporter == nil {
		return export.Result{}, export.ErrNotConfigured
	}
	return s.exporter.Export(ctx, req)
}

// Import writes docs with createOrReplace in a single transaction.
func (s *Service) Import(ctx context.Context, docs []store.Document) (store.TransactionResult, error) {
	if len(docs) == 0 {
		return store.TransactionResult{}, domainError(http.StatusBadRequest, "INVALID_REQUEST", "No documents to import", nil)
	}
	mutations := make([]store.Mutation, 0, len(docs))
	var previousTargets []string
	for _, doc := range docs {
		if err := s.registry.Validate(doc); err != nil && !errors.Is(err, schema.ErrUnknownType) {
			return store.TransactionResult{}, err
		}
		mutations = append(mutations, store.CreateOrReplace(doc))
		if doc.ID() == "" {
			continue
		}
		existing, err := s.store.GetDocument(ctx, doc.ID())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return store.TransactionResult{}, err
		}
		if err == nil {
			previousTargets = append(previousTargets, store.References(existing)...)
		}
	}
	result, err := s.store.Transaction(ctx, store.Transaction{Tag: "import", Mutations: mutations})
	if err != nil {
		return store.TransactionResult{}, err
	}
	s.afterCommit(result.TransactionID, "import", result.Documents, previousTargets)
	return result, nil
}
