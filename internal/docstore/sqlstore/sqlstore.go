// Package sqlstore implements docstore.Store on a single SQL table through
// sqlx. PostgreSQL keeps fields as JSONB; SQLite keeps them as JSON text.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"recipeshare/internal/docstore"
)

// Store is a docstore.Store backed by a documents table.
type Store struct {
	db    *sqlx.DB
	d     dialect
	clock docstore.Clock
}

// New wraps db, picking the SQL dialect from its driver name, and creates the
// documents table when it does not exist.
func New(ctx context.Context, db *sqlx.DB) (*Store, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, d: d}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// WithClock replaces the time source used for server timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.clock.Now = now
	return s
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.d.name, err)
		}
	}
	return nil
}

type row struct {
	ID         string `db:"id"`
	Fields     []byte `db:"fields"`
	TimeFields []byte `db:"time_fields"`
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := docstore.ValidateCollection(q.Collection); err != nil {
		return nil, err
	}

	var (
		where   = []string{"collection = ?"}
		args    = []any{q.Collection}
		orderBy []string
		idDir   = docstore.Asc
	)
	exprs := make([]string, 0, len(q.OrderBy))
	for _, o := range q.OrderBy {
		if err := validField(o.Field); err != nil {
			return nil, err
		}
		expr := s.d.field(o.Field)
		exprs = append(exprs, expr)
		orderBy = append(orderBy, expr+" "+o.Dir.String())
		idDir = o.Dir
	}
	orderBy = append(orderBy, s.d.id+" "+idDir.String())

	if q.StartAfter != nil {
		cond, condArgs, err := s.after(q.OrderBy, exprs, idDir, *q.StartAfter)
		if err != nil {
			return nil, err
		}
		where = append(where, cond)
		args = append(args, condArgs...)
	}

	query := "SELECT id, fields, time_fields FROM documents WHERE " +
		strings.Join(where, " AND ") + " ORDER BY " + strings.Join(orderBy, ", ")
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		fields, err := decodeFields(r.Fields, r.TimeFields)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		docs = append(docs, docstore.Document{ID: r.ID, Path: docstore.Join(q.Collection, r.ID), Fields: fields})
	}
	return docs, nil
}

// after builds the keyset condition selecting rows strictly after cursor:
// (e1 op v1) OR (e1 = v1 AND e2 op v2) OR ... OR (all equal AND id op cursor.ID).
func (s *Store) after(orders []docstore.Order, exprs []string, idDir docstore.Direction, cursor docstore.Document) (string, []any, error) {
	op := func(dir docstore.Direction) string {
		if dir == docstore.Desc {
			return "<"
		}
		return ">"
	}

	vals := make([]any, len(orders))
	for i, o := range orders {
		v, ok := cursor.Fields[o.Field]
		if !ok || v == nil {
			return "", nil, fmt.Errorf("cursor %s has no value for %q", cursor.ID, o.Field)
		}
		arg, err := s.d.arg(cursorValue(v))
		if err != nil {
			return "", nil, fmt.Errorf("cursor field %q: %w", o.Field, err)
		}
		vals[i] = arg
	}

	var (
		terms []string
		args  []any
	)
	for i := 0; i <= len(orders); i++ {
		var parts []string
		for j := 0; j < i; j++ {
			parts = append(parts, exprs[j]+" = "+s.d.param)
			args = append(args, vals[j])
		}
		if i < len(orders) {
			parts = append(parts, exprs[i]+" "+op(orders[i].Dir)+" "+s.d.param)
			args = append(args, vals[i])
		} else {
			parts = append(parts, s.d.id+" "+op(idDir)+" ?")
			args = append(args, cursor.ID)
		}
		terms = append(terms, "("+strings.Join(parts, " AND ")+")")
	}
	return "(" + strings.Join(terms, " OR ") + ")", args, nil
}

func (s *Store) Get(ctx context.Context, path string) (docstore.Document, error) {
	coll, id, err := docstore.SplitDocPath(path)
	if err != nil {
		return docstore.Document{}, err
	}

	var r row
	err = s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT id, fields, time_fields FROM documents WHERE path = ?`), path)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	fields, err := decodeFields(r.Fields, r.TimeFields)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	return docstore.Document{ID: id, Path: docstore.Join(coll, id), Fields: fields}, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return "", err
	}
	stored, err := docstore.Apply(nil, fields, s.clock.Next())
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	data, timeFields, err := encodeFields(stored)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}

	id := docstore.NewID()
	query := `INSERT INTO documents (path, collection, id, fields, time_fields) VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query),
		docstore.Join(collection, id), collection, id, string(data), string(timeFields))
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return id, nil
}

// Update resolves write sentinels in a read-modify-write transaction.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := docstore.SplitDocPath(path); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s: begin: %w", path, err)
	}
	defer tx.Rollback()

	var r row
	err = tx.GetContext(ctx, &r, tx.Rebind(`SELECT id, fields, time_fields FROM documents WHERE path = ?`+s.d.lock), path)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update %s: read: %w", path, err)
	}

	current, err := decodeFields(r.Fields, r.TimeFields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	updated, err := docstore.Apply(current, fields, s.clock.Next())
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	data, timeFields, err := encodeFields(updated)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE documents SET fields = ?, time_fields = ? WHERE path = ?`),
		string(data), string(timeFields), path)
	if err != nil {
		return fmt.Errorf("update %s: write: %w", path, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update %s: commit: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := docstore.SplitDocPath(path); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM documents WHERE path = ?`), path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, collection string) (int64, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}
	var n int64
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM documents WHERE collection = ?`), collection); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
