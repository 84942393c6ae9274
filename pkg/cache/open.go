package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Backends accepted by [Open].
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Options select and configure a cache backend.
type Options struct {
	Backend   string
	Dir       string // file backend; defaults to [DefaultDir]
	RedisURL  string // redis backend
	KeyPrefix string // redis backend
}

// DefaultDir returns ~/.cache/graphlens, honouring XDG_CACHE_HOME.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "graphlens"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "graphlens"), nil
}

// Open builds the cache described by opts.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return NewNullCache(), nil
	case BackendFile:
		dir := opts.Dir
		if dir == "" {
			d, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return NewFileCache(dir)
	case BackendRedis:
		prefix := opts.KeyPrefix
		if prefix == "" {
			prefix = "graphlens:"
		}
		return NewRedisCache(ctx, opts.RedisURL, prefix)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
}
