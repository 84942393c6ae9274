package source

import (
	"context"
	"database/sql"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vertices (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	properties TEXT NOT NULL DEFAULT '{}',
	metadata   TEXT NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS edges (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	head_id    TEXT NOT NULL,
	tail_id    TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS edges_head ON edges (head_id);
CREATE INDEX IF NOT EXISTS edges_tail ON edges (tail_id);
`

// SQLite is a dataset in a SQLite database. Properties and metadata are
// stored as JSON text.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens path, creating the schema if needed.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInternal, err, "open %s", path)
	}
	// One connection keeps :memory: databases alive and writes serialised.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, gerrors.Wrap(gerrors.ErrCodeInternal, err, "create schema in %s", path)
	}
	return &SQLite{db: db, path: path}, nil
}

// Load reads every vertex and edge.
func (s *SQLite) Load(ctx context.Context) (graph.Batch, error) {
	var b graph.Batch

	rows, err := s.db.QueryContext(ctx, `SELECT id, label, properties, metadata FROM vertices ORDER BY rowid`)
	if err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeInternal, err, "query vertices")
	}
	for rows.Next() {
		var v graph.VertexRecord
		var id, props, meta string
		if err := rows.Scan(&id, &v.Label, &props, &meta); err != nil {
			rows.Close()
			return b, gerrors.Wrap(gerrors.ErrCodeInternal, err, "scan vertex")
		}
		v.ID = graph.ID(id)
		if err := decodeColumns(props, &v.Properties, meta, &v.Metadata); err != nil {
			rows.Close()
			return b, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "vertex %s", id)
		}
		b.Vertices = append(b.Vertices, v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeInternal, err, "read vertices")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, label, head_id, tail_id, properties FROM edges ORDER BY rowid`)
	if err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeInternal, err, "query edges")
	}
	defer rows.Close()
	for rows.Next() {
		var e graph.EdgeRecord
		var id, head, tail, props string
		if err := rows.Scan(&id, &e.Label, &head, &tail, &props); err != nil {
			return b, gerrors.Wrap(gerrors.ErrCodeInternal, err, "scan edge")
		}
		e.ID, e.Head, e.Tail = graph.ID(id), graph.ID(head), graph.ID(tail)
		if err := decodeColumns(props, &e.Properties, "", nil); err != nil {
			return b, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "edge %s", id)
		}
		b.Edges = append(b.Edges, e)
	}
	if err := rows.Err(); err != nil {
		return b, gerrors.Wrap(gerrors.ErrCodeInternal, err, "read edges")
	}
	return b, nil
}

func decodeColumns(props string, p *graph.Properties, meta string, m *map[string]any) error {
	if props != "" {
		if err := json.Unmarshal([]byte(props), p); err != nil {
			return err
		}
	}
	if m != nil && meta != "" {
		return json.Unmarshal([]byte(meta), m)
	}
	return nil
}

// Import writes a whole batch in one transaction, replacing rows with the
// same ids.
func (s *SQLite) Import(ctx context.Context, b graph.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "begin import")
	}
	defer tx.Rollback()

	for _, v := range b.Vertices {
		props, err := marshalOr(v.Properties)
		if err != nil {
			return err
		}
		meta, err := marshalOr(v.Metadata)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO vertices (id, label, properties, metadata) VALUES (?, ?, ?, ?)`,
			v.ID.String(), v.Label, props, meta); err != nil {
			return gerrors.Wrap(gerrors.ErrCodeInternal, err, "insert vertex %s", v.ID)
		}
	}
	for _, e := range b.Edges {
		if err := putEdge(ctx, tx, e); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "commit import")
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putEdge(ctx context.Context, db execer, e graph.EdgeRecord) error {
	props, err := marshalOr(e.Properties)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO edges (id, label, head_id, tail_id, properties) VALUES (?, ?, ?, ?, ?)`,
		e.ID.String(), e.Label, e.Head.String(), e.Tail.String(), props); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "insert edge %s", e.ID)
	}
	return nil
}

func marshalOr[T any](v T) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "encode column")
	}
	if string(data) == "null" {
		return "{}", nil
	}
	return string(data), nil
}

// PutEdge implements Writer.
func (s *SQLite) PutEdge(ctx context.Context, e graph.EdgeRecord) error {
	return putEdge(ctx, s.db, e)
}

// DeleteVertex implements Writer. Incident edges go with the vertex.
func (s *SQLite) DeleteVertex(ctx context.Context, id graph.ID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "begin delete")
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE head_id = ? OR tail_id = ?`, id.String(), id.String()); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "delete edges of %s", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vertices WHERE id = ?`, id.String()); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "delete vertex %s", id)
	}
	if err := tx.Commit(); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "commit delete")
	}
	return nil
}

// DeleteEdge implements Writer.
func (s *SQLite) DeleteEdge(ctx context.Context, id graph.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id.String()); err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "delete edge %s", id)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

var (
	_ Source = (*SQLite)(nil)
	_ Writer = (*SQLite)(nil)
)
