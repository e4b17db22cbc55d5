package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const notifyChannel = "docstore_changes"

var tracer = otel.Tracer("tripmate/docstore")

// PostgresStore keeps documents as JSONB rows and propagates changes between
// processes with LISTEN/NOTIFY on the collection path.
type PostgresStore struct {
	pool   *pgxpool.Pool
	hub    *hub
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPostgresStore starts the change listener and returns a ready store.
// The documents table must already exist.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) *PostgresStore {
	ctx, cancel := context.WithCancel(ctx)
	s := &PostgresStore{
		pool:   pool,
		hub:    newHub(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(ctx)
	return s
}

func (s *PostgresStore) listen(ctx context.Context) {
	defer close(s.done)
	backoff := 500 * time.Millisecond
	for ctx.Err() == nil {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("docstore listener disconnected", "error", err, "retry_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 10*time.Second)
	}
}

func (s *PostgresStore) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.notify(n.Payload)
	}
}

func startSpan(ctx context.Context, op, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "docstore."+op, trace.WithAttributes(attribute.String("docstore.path", path)))
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *PostgresStore) Add(ctx context.Context, collection string, data map[string]any) (id string, err error) {
	ctx, span := startSpan(ctx, "Add", collection)
	defer func() { endSpan(span, err) }()

	if err := validateCollection(collection); err != nil {
		return "", err
	}
	raw, err := encodeData(data)
	if err != nil {
		return "", err
	}
	id = uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
		collection, id, raw); err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	s.publish(ctx, collection)
	return id, nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, data map[string]any) (err error) {
	ctx, span := startSpan(ctx, "Set", path)
	defer func() { endSpan(span, err) }()

	collection, id, err := SplitDocPath(path)
	if err != nil {
		return err
	}
	raw, err := encodeData(data)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, version = documents.version + 1, updated_at = clock_timestamp()`,
		collection, id, raw); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]any, preconds ...Precondition) (err error) {
	ctx, span := startSpan(ctx, "Update", path)
	defer func() { endSpan(span, err) }()

	collection, id, err := SplitDocPath(path)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	defer tx.Rollback(ctx)

	var (
		raw     []byte
		version int64
	)
	err = tx.QueryRow(ctx,
		`SELECT data, version FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := checkPreconditions(version, preconds); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := applyUpdate(data, fields); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	updated, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE documents SET data = $3::jsonb, version = version + 1, updated_at = clock_timestamp()
		WHERE collection = $1 AND id = $2`,
		collection, id, string(updated)); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, collection); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	s.hub.notify(collection)
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, path string) (err error) {
	ctx, span := startSpan(ctx, "Delete", path)
	defer func() { endSpan(span, err) }()

	collection, id, err := SplitDocPath(path)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if tag.RowsAffected() > 0 {
		s.publish(ctx, collection)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (doc *Document, err error) {
	ctx, span := startSpan(ctx, "Get", path)
	defer func() { endSpan(span, err) }()

	collection, id, err := SplitDocPath(path)
	if err != nil {
		return nil, err
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, data, version, created_at, updated_at
		FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	doc, err = scanDoc(row, collection)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return doc, nil
}

func (s *PostgresStore) Query(ctx context.Context, q Query) (docs []*Document, err error) {
	ctx, span := startSpan(ctx, "Query", q.Collection)
	defer func() { endSpan(span, err) }()

	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}

	var (
		sb   strings.Builder
		args = []any{q.Collection}
	)
	sb.WriteString(`SELECT id, data, version, created_at, updated_at FROM documents WHERE collection = $1`)
	for _, f := range q.Filters {
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		args = append(args, f.Field, string(val))
		fmt.Fprintf(&sb, ` AND data -> $%d::text = $%d::jsonb`, len(args)-1, len(args))
	}

	// Creation-time ordering is pushed down to the index; any other sort key is
	// evaluated in process against the filtered rows.
	byCreated := q.OrderBy == "" || q.OrderBy == FieldCreatedAt
	if byCreated {
		dir, cmp := "ASC", ">"
		if q.Direction == Desc {
			dir, cmp = "DESC", "<"
		}
		if q.StartAfter != nil {
			args = append(args, q.StartAfter.CreateTime, q.StartAfter.ID)
			fmt.Fprintf(&sb, ` AND (created_at, id) %s ($%d, $%d)`, cmp, len(args)-1, len(args))
		}
		if q.StartAt != nil {
			args = append(args, q.StartAt.CreateTime, q.StartAt.ID)
			fmt.Fprintf(&sb, ` AND (created_at, id) %s= ($%d, $%d)`, cmp, len(args)-1, len(args))
		}
		fmt.Fprintf(&sb, ` ORDER BY created_at %s, id %s`, dir, dir)
		if q.Limit > 0 {
			args = append(args, q.Limit)
			fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
		}
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDoc(rows, q.Collection)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Collection, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	if !byCreated {
		docs = runQuery(docs, Query{OrderBy: q.OrderBy, Direction: q.Direction, StartAfter: q.StartAfter, StartAt: q.StartAt, Limit: q.Limit})
	}
	return docs, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context, q Query, fn func([]*Document)) (Unsubscribe, error) {
	if err := validateCollection(q.Collection); err != nil {
		return nil, err
	}
	last := ""
	first := true
	return s.hub.watch(ctx, q.Collection, func(ctx context.Context, alive func() bool) {
		docs, err := s.Query(ctx, q)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("docstore subscription query failed", "collection", q.Collection, "error", err)
			}
			return
		}
		if !alive() {
			return
		}
		if fp := fingerprint(docs); first || fp != last {
			first, last = false, fp
			fn(docs)
		}
	}), nil
}

func (s *PostgresStore) SubscribeDocument(ctx context.Context, path string, fn func(*Document)) (Unsubscribe, error) {
	collection, _, err := SplitDocPath(path)
	if err != nil {
		return nil, err
	}
	last := ""
	first := true
	return s.hub.watch(ctx, collection, func(ctx context.Context, alive func() bool) {
		doc, err := s.Get(ctx, path)
		var docs []*Document
		switch {
		case err == nil:
			docs = []*Document{doc}
		case errors.Is(err, ErrNotFound):
			doc = nil
		default:
			if ctx.Err() == nil {
				slog.Error("docstore document subscription failed", "path", path, "error", err)
			}
			return
		}
		if !alive() {
			return
		}
		if fp := fingerprint(docs); first || fp != last {
			first, last = false, fp
			fn(doc)
		}
	}), nil
}

// Close stops the listener and every subscription. The pool is owned by the caller.
func (s *PostgresStore) Close() error {
	s.cancel()
	<-s.done
	s.hub.closeAll()
	return nil
}

// publish tells other processes and local watchers that collection changed.
func (s *PostgresStore) publish(ctx context.Context, collection string) {
	if _, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, collection); err != nil {
		slog.Warn("docstore notify failed", "collection", collection, "error", err)
	}
	s.hub.notify(collection)
}

func encodeData(data map[string]any) (string, error) {
	norm, err := normalizeMap(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(norm)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func scanDoc(row pgx.Row, collection string) (*Document, error) {
	var (
		d   Document
		raw []byte
	)
	if err := row.Scan(&d.ID, &raw, &d.Version, &d.CreateTime, &d.UpdateTime); err != nil {
		return nil, err
	}
	d.Path = Join(collection, d.ID)
	d.Data = map[string]any{}
	if err := json.Unmarshal(raw, &d.Data); err != nil {
		return nil, err
	}
	d.CreateTime = d.CreateTime.UTC()
	d.UpdateTime = d.UpdateTime.UTC()
	return &d, nil
}
