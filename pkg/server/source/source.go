// Package source loads the datasets served by the reference backend.
//
// A dataset is one [graph.Batch] holding the whole graph. Sources are
// addressed by URL:
//
//	file:///data/graph.json    JSON or YAML, by extension
//	sqlite:///data/graph.db    tables vertices and edges
//	mongodb://host:27017/db    collections vertices and edges
//
// A bare path is treated as a file. Sources that can persist edits
// implement [Writer]; sources that can report external changes implement
// [Watcher].
package source

import (
	"context"
	"net/url"
	"strings"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// Source loads a dataset.
type Source interface {
	Load(ctx context.Context) (graph.Batch, error)
	Close() error
}

// Writer persists edits made through the backend API.
type Writer interface {
	PutEdge(ctx context.Context, e graph.EdgeRecord) error
	DeleteVertex(ctx context.Context, id graph.ID) error
	DeleteEdge(ctx context.Context, id graph.ID) error
}

// Watcher calls onChange whenever the underlying data changes, until ctx
// ends.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

// Open opens the source addressed by raw.
func Open(ctx context.Context, raw string) (Source, error) {
	if !strings.Contains(raw, "://") {
		return NewFile(raw), nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "source %q", raw)
	}
	switch u.Scheme {
	case "file":
		return NewFile(u.Host + u.Path), nil
	case "sqlite":
		return OpenSQLite(ctx, u.Host+u.Path)
	case "mongodb", "mongodb+srv":
		return OpenMongo(ctx, raw)
	}
	return nil, gerrors.New(gerrors.ErrCodeUnsupported, "unsupported source scheme %q", u.Scheme)
}
