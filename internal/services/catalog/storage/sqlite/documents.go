package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/tellingsounds/lama/internal/platform/storage/sqlitemigrate"
	"github.com/tellingsounds/lama/internal/services/catalog/domain/document"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
	"github.com/tellingsounds/lama/internal/services/catalog/storage/sqlite/migrations"
)

// fieldName guards field names interpolated into JSON paths.
var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func fieldPath(field string) (string, error) {
	if !fieldName.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return "$." + field, nil
}

// GetDocument loads a document by id, or storage.ErrNotFound.
func (s *Store) GetDocument(ctx context.Context, id string) (document.Document, error) {
	var kind, body string
	err := s.q.QueryRowContext(ctx, `SELECT kind, body FROM documents WHERE id = ?`, id).Scan(&kind, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return document.Decode(document.Kind(kind), []byte(body))
}

// DocumentExists reports whether any document has id.
func (s *Store) DocumentExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check document %s: %w", id, err)
	}
	return true, nil
}

// ListDocuments returns every document of kind ordered by id.
func (s *Store) ListDocuments(ctx context.Context, kind document.Kind) ([]document.Document, error) {
	return s.queryDocuments(ctx, `SELECT kind, body FROM documents WHERE kind = ? ORDER BY id`, string(kind))
}

// FindDocuments returns documents of kind whose field equals value, or
// contains it when the field is an array.
func (s *Store) FindDocuments(ctx context.Context, kind document.Kind, field, value string) ([]document.Document, error) {
	path, err := fieldPath(field)
	if err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx, `SELECT kind, body FROM documents
WHERE kind = ? AND EXISTS (SELECT 1 FROM json_each(documents.body, ?) WHERE json_each.value = ?)
ORDER BY id`, string(kind), path, value)
}

// CountDocuments counts what FindDocuments would return.
func (s *Store) CountDocuments(ctx context.Context, kind document.Kind, field, value string) (int, error) {
	path, err := fieldPath(field)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents
WHERE kind = ? AND EXISTS (SELECT 1 FROM json_each(documents.body, ?) WHERE json_each.value = ?)`,
		string(kind), path, value).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s by %s: %w", kind, field, err)
	}
	return n, nil
}

// InsertDocument stores a new document; storage.ErrAlreadyExists on id collision.
func (s *Store) InsertDocument(ctx context.Context, doc document.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Kind(), err)
	}
	_, err = s.q.ExecContext(ctx, `INSERT INTO documents (id, kind, body) VALUES (?, ?, ?)`,
		doc.DocumentID(), string(doc.Kind()), string(body))
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("document %s: %w", doc.DocumentID(), storage.ErrAlreadyExists)
		}
		return fmt.Errorf("insert document %s: %w", doc.DocumentID(), err)
	}
	return nil
}

// PutDocument replaces an existing document; storage.ErrNotFound if absent.
func (s *Store) PutDocument(ctx context.Context, doc document.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", doc.Kind(), err)
	}
	res, err := s.q.ExecContext(ctx, `UPDATE documents SET kind = ?, body = ? WHERE id = ?`,
		string(doc.Kind()), string(body), doc.DocumentID())
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.DocumentID(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put document %s: %w", doc.DocumentID(), err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteDocument removes id; missing ids are ignored.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// SetDocumentField writes value at field on one document of kind, or on all
// of them when id is empty.
func (s *Store) SetDocumentField(ctx context.Context, kind document.Kind, id, field string, value json.RawMessage) (int64, error) {
	path, err := fieldPath(field)
	if err != nil {
		return 0, err
	}
	if !json.Valid(value) {
		return 0, fmt.Errorf("field %s: value is not valid JSON", field)
	}
	query := `UPDATE documents SET body = json_set(body, ?, json(?)) WHERE kind = ?`
	args := []any{path, string(value), string(kind)}
	if id != "" {
		query += ` AND id = ?`
		args = append(args, id)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("set %s.%s: %w", kind, field, err)
	}
	return res.RowsAffected()
}

// ClearDocuments deletes every document.
func (s *Store) ClearDocuments(ctx context.Context) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	return nil
}

// InTx runs fn with a transactional view of the projection.
func (s *Store) InTx(ctx context.Context, fn func(storage.DocumentStore) error) error {
	return s.runTx(ctx, func(tx *Store) error { return fn(tx) })
}

// Reset drops the projection schema and recreates it empty.
func (s *Store) Reset(ctx context.Context) error {
	return s.runTx(ctx, func(tx *Store) error {
		if _, err := tx.q.ExecContext(ctx, `DROP TABLE IF EXISTS documents`); err != nil {
			return fmt.Errorf("drop documents: %w", err)
		}
		if err := sqlitemigrate.ExecSchema(ctx, tx.q, migrations.ProjectionsFS, "projections"); err != nil {
			return fmt.Errorf("recreate schema: %w", err)
		}
		return nil
	})
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]document.Document, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []document.Document
	for rows.Next() {
		var kind, body string
		if err := rows.Scan(&kind, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := document.Decode(document.Kind(kind), []byte(body))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}
