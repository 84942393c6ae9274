package io

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// CodecFor picks the codec from a file extension.
func CodecFor(path string) (Codec, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", gerrors.New(gerrors.ErrCodeUnsupported, "%s: want a .json, .yaml or .yml file", path)
}

// Read decodes one batch from r. It does not validate it.
func Read(r io.Reader, c Codec) (graph.Batch, error) {
	var b graph.Batch
	var err error
	switch c {
	case JSON:
		err = json.NewDecoder(r).Decode(&b)
	case YAML:
		err = yaml.NewDecoder(r).Decode(&b)
		if err == io.EOF {
			err = nil
		}
	default:
		return graph.Batch{}, gerrors.New(gerrors.ErrCodeUnsupported, "unknown codec %q", c)
	}
	if err != nil {
		return graph.Batch{}, gerrors.Wrap(gerrors.ErrCodeInvalidInput, err, "decode")
	}
	return b, nil
}

// ReadFile decodes and validates the batch stored at path. A missing file
// is NOT_FOUND.
func ReadFile(path string) (graph.Batch, error) {
	c, err := CodecFor(path)
	if err != nil {
		return graph.Batch{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return graph.Batch{}, gerrors.Wrap(gerrors.ErrCodeNotFound, err, "dataset %s", path)
		}
		return graph.Batch{}, gerrors.Wrap(gerrors.ErrCodeInternal, err, "open %s", path)
	}
	defer f.Close()

	b, err := Read(f, c)
	if err != nil {
		return graph.Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(b); err != nil {
		return graph.Batch{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Validate checks that ids are present and unique and that every edge
// joins two vertices of b.
func Validate(b graph.Batch) error {
	vertices := make(map[graph.ID]bool, len(b.Vertices))
	for i, v := range b.Vertices {
		if v.ID.IsZero() {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "vertex %d has no id", i)
		}
		if vertices[v.ID] {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "duplicate vertex %s", v.ID)
		}
		vertices[v.ID] = true
	}
	edges := make(map[graph.ID]bool, len(b.Edges))
	for i, e := range b.Edges {
		if e.ID.IsZero() {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "edge %d has no id", i)
		}
		if edges[e.ID] {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "duplicate edge %s", e.ID)
		}
		edges[e.ID] = true
		if !vertices[e.Head] || !vertices[e.Tail] {
			return gerrors.New(gerrors.ErrCodeInvalidInput, "edge %s joins unknown vertices %s -> %s", e.ID, e.Head, e.Tail)
		}
	}
	return nil
}
