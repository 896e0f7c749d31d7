package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanDocument(row *sql.Row, id string) (Document, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load document %s: %w", id, err)
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return doc, nil
}

func getDocument(ctx context.Context, q queryRower, id string, lock bool) (Document, error) {
	query := `SELECT body FROM documents WHERE id=$1`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanDocument(q.QueryRowContext(ctx, query, id), id)
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (Document, error) {
	return getDocument(ctx, s.db, id, false)
}

func (s *PostgresStore) Create(ctx context.Context, doc Document) (Document, error) {
	result, err := s.Transaction(ctx, Transaction{Mutations: []Mutation{Create(doc)}})
	if err != nil {
		return nil, err
	}
	return firstDocument(result, errors.New("create returned no document"))
}

func (s *PostgresStore) Patch(ctx context.Context, patch *Patch) (Document, error) {
	result, err := s.Transaction(ctx, Transaction{Mutations: []Mutation{PatchMutation(patch)}})
	if err != nil {
		return nil, err
	}
	return firstDocument(result, fmt.Errorf("%w: %s", ErrNotFound, patch.ID))
}

// Transaction locks every document it reads, applies all mutations in memory and
// writes the results back in one database transaction.
func (s *PostgresStore) Transaction(ctx context.Context, tx Transaction) (TransactionResult, error) {
	if len(tx.Mutations) == 0 {
		return TransactionResult{}, errors.New("transaction has no mutations")
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return TransactionResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	now := s.now()
	a := newApplier(ctx, now, func(ctx context.Context, id string) (Document, error) {
		return getDocument(ctx, sqlTx, id, true)
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
		if err := writeChange(ctx, sqlTx, c, now); err != nil {
			return TransactionResult{}, err
		}
		if c.doc != nil {
			out.Documents = append(out.Documents, c.doc.Clone())
		}
	}

	documentIDs, err := json.Marshal(tx.DocumentIDs())
	if err != nil {
		return TransactionResult{}, fmt.Errorf("encode transaction ids: %w", err)
	}
	if _, err := sqlTx.ExecContext(ctx, `
		INSERT INTO transactions (id, tag, document_ids, mutation_count, created_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
	`, txID, tx.Tag, string(documentIDs), len(tx.Mutations), now); err != nil {
		return TransactionResult{}, mapWriteError(fmt.Errorf("record transaction: %w", err), txID)
	}

	if err := sqlTx.Commit(); err != nil {
		return TransactionResult{}, fmt.Errorf("commit transaction: %w", err)
	}
	return out, nil
}

func writeChange(ctx context.Context, tx *sql.Tx, c change, now time.Time) error {
	if c.doc == nil {
		if !c.existed {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, c.id); err != nil {
			return fmt.Errorf("delete document %s: %w", c.id, err)
		}
		return nil
	}

	body, err := json.Marshal(c.doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", c.id, err)
	}
	if c.existed {
		_, err = tx.ExecContext(ctx, `
			UPDATE documents SET doc_type=$2, rev=$3, body=$4::jsonb, updated_at=$5
			WHERE id=$1
		`, c.id, c.doc.Type(), c.doc.Rev(), string(body), now)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (id, doc_type, rev, body, created_at, updated_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $5)
		`, c.id, c.doc.Type(), c.doc.Rev(), string(body), now)
	}
	if err != nil {
		return mapWriteError(fmt.Errorf("write document %s: %w", c.id, err), c.id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_refs WHERE source_id=$1`, c.id); err != nil {
		return fmt.Errorf("clear references of %s: %w", c.id, err)
	}
	for _, target := range References(c.doc) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_refs (source_id, target_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, c.id, target); err != nil {
			return fmt.Errorf("record reference %s -> %s: %w", c.id, target, err)
		}
	}
	return nil
}

func mapWriteError(err error, id string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, id)
	}
	return err
}

func (s *PostgresStore) ReferencingIDs(ctx context.Context, targetID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id FROM document_refs WHERE target_id=$1 ORDER BY source_id
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) ListDocuments(ctx context.Context, opts ListOptions) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM documents
		WHERE ($1 = '' OR doc_type = $1)
		ORDER BY id
		LIMIT NULLIF($2::int, 0)
	`, opts.Type, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return scanDocuments(rows)
}

func (s *PostgresStore) SearchTitles(ctx context.Context, q TitleQuery) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM documents
		WHERE ($1 = '' OR doc_type = $1)
		  AND (title_fts @@ plainto_tsquery('simple', $2) OR body->>'title' ILIKE '%' || $2 || '%')
		ORDER BY ts_rank(title_fts, plainto_tsquery('simple', $2)) DESC, id
		LIMIT $3
	`, q.Type, q.Text, q.limit())
	if err != nil {
		return nil, fmt.Errorf("search titles: %w", err)
	}
	return scanDocuments(rows)
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	out := make([]Document, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var doc Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
