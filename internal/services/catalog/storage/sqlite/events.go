package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tellingsounds/lama/internal/services/catalog/domain/event"
	"github.com/tellingsounds/lama/internal/services/catalog/storage"
)

const eventColumns = `id, timestamp, type, version, actor_id, subject_id, data, previous_data`

// AppendEvent persists evt. A non-zero ID is kept, otherwise one is assigned.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(evt.Type)) == "" {
		return event.Event{}, event.ErrTypeRequired
	}
	if evt.Timestamp.IsZero() {
		return event.Event{}, fmt.Errorf("event timestamp is required")
	}
	evt.Timestamp = fromMillis(toMillis(evt.Timestamp))

	id, err := insertEvent(ctx, s.q, evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	evt.ID = id
	return evt, nil
}

func insertEvent(ctx context.Context, q querier, evt event.Event) (int64, error) {
	var id any
	if evt.ID > 0 {
		id = evt.ID
	}
	var previous any
	if evt.PreviousData != nil {
		previous = string(evt.PreviousData)
	}
	data := string(evt.Data)
	if data == "" {
		data = "{}"
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, toMillis(evt.Timestamp), string(evt.Type), evt.Version, evt.ActorID, evt.SubjectID, data, previous,
	)
	if err != nil {
		if isConstraintError(err) {
			return 0, fmt.Errorf("event %d: %w", evt.ID, storage.ErrAlreadyExists)
		}
		return 0, err
	}
	return res.LastInsertId()
}

// ListEvents pages events in (timestamp, id) order strictly after cursor.
func (s *Store) ListEvents(ctx context.Context, after event.Cursor, limit int) ([]event.Event, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	query := `SELECT ` + eventColumns + ` FROM events`
	args := []any{}
	if !after.IsZero() {
		ts := toMillis(after.Timestamp)
		query += ` WHERE timestamp > ? OR (timestamp = ? AND id > ?)`
		args = append(args, ts, ts, after.ID)
	}
	query += ` ORDER BY timestamp, id LIMIT ?`
	args = append(args, limit)
	return s.queryEvents(ctx, query, args...)
}

// ListEventsByType returns events of the given types in log order.
// An empty subjectID matches every subject.
func (s *Store) ListEventsByType(ctx context.Context, types []event.Type, subjectID string) ([]event.Event, error) {
	if len(types) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(types))
	args := make([]any, 0, len(types)+1)
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}
	query := `SELECT ` + eventColumns + ` FROM events WHERE type IN (` + strings.Join(placeholders, ", ") + `)`
	if subjectID != "" {
		query += ` AND subject_id = ?`
		args = append(args, subjectID)
	}
	query += ` ORDER BY timestamp, id`
	return s.queryEvents(ctx, query, args...)
}

// ReplaceEvents swaps the whole log for events in one transaction.
func (s *Store) ReplaceEvents(ctx context.Context, events []event.Event) error {
	return s.runTx(ctx, func(tx *Store) error {
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM events`); err != nil {
			return fmt.Errorf("clear events: %w", err)
		}
		for _, evt := range events {
			if evt.Timestamp.IsZero() {
				return fmt.Errorf("event %d: timestamp is required", evt.ID)
			}
			if _, err := insertEvent(ctx, tx.q, evt); err != nil {
				return fmt.Errorf("insert event %d: %w", evt.ID, err)
			}
		}
		return nil
	})
}

// LatestEvent returns the last event in log order, or storage.ErrNotFound.
func (s *Store) LatestEvent(ctx context.Context) (event.Event, error) {
	return s.queryOneEvent(ctx, `SELECT `+eventColumns+` FROM events ORDER BY timestamp DESC, id DESC LIMIT 1`)
}

// LatestEventOfType returns the last event of typ, or storage.ErrNotFound.
func (s *Store) LatestEventOfType(ctx context.Context, typ event.Type) (event.Event, error) {
	return s.queryOneEvent(ctx,
		`SELECT `+eventColumns+` FROM events WHERE type = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, string(typ))
}

// CountEvents returns the number of events in the log.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func (s *Store) queryOneEvent(ctx context.Context, query string, args ...any) (event.Event, error) {
	evt, err := scanEvent(s.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event: %w", err)
	}
	return evt, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (event.Event, error) {
	var (
		evt      event.Event
		ts       int64
		typ      string
		data     string
		previous sql.NullString
	)
	if err := row.Scan(&evt.ID, &ts, &typ, &evt.Version, &evt.ActorID, &evt.SubjectID, &data, &previous); err != nil {
		return event.Event{}, err
	}
	evt.Timestamp = fromMillis(ts)
	evt.Type = event.Type(typ)
	evt.Data = []byte(data)
	if previous.Valid {
		evt.PreviousData = []byte(previous.String)
	}
	return evt, nil
}
