package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

// exercise runs the shared contract against any Cache.
func exercise(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "missing"); hit || err != nil {
		t.Fatalf("Get(missing) = %v, %v", hit, err)
	}
	if err := c.Set(ctx, "expand:1", []byte(`{"vertices":[]}`), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "expand:1")
	if err != nil || !hit || string(data) != `{"vertices":[]}` {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, "expand:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "expand:1"); hit {
		t.Error("entry survived Delete")
	}
	if err := c.Delete(ctx, "expand:1"); err != nil {
		t.Errorf("Delete of a missing key: %v", err)
	}

	cl, ok := c.(Clearer)
	if !ok {
		return
	}
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := cl.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Errorf("%s survived Clear", k)
		}
	}
}

func TestFileCache(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, c)
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("expired entry: hit=%v err=%v", hit, err)
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry not removed from disk")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v", hit, err)
	}
}

func TestRedisCache(t *testing.T) {
	srv := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+srv.Addr(), "test:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	exercise(t, c)

	if err := c.Set(context.Background(), "ttl", []byte("x"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if !srv.Exists("test:ttl") {
		t.Error("key not stored under prefix")
	}
	srv.FastForward(2 * time.Minute)
	if _, hit, _ := c.Get(context.Background(), "ttl"); hit {
		t.Error("entry survived its TTL")
	}
}

func TestRedisCacheClearKeepsOtherPrefixes(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()
	if err := srv.Set("other:key", "keep"); err != nil {
		t.Fatal(err)
	}
	c, err := NewRedisCache(ctx, "redis://"+srv.Addr(), "graphlens:")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	if err := c.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if !srv.Exists("other:key") {
		t.Error("Clear removed a foreign key")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	c, err := Open(ctx, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*NullCache); !ok {
		t.Errorf("default backend = %T, want *NullCache", c)
	}

	dir := t.TempDir()
	c, err = Open(ctx, Options{Backend: BackendFile, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if fc, ok := c.(*FileCache); !ok || fc.Dir() != dir {
		t.Errorf("file backend = %T", c)
	}

	if _, err := Open(ctx, Options{Backend: "memcached"}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("unknown backend error = %v", err)
	}
}

func TestDefaultDirHonoursXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != "/tmp/xdg/graphlens" {
		t.Errorf("DefaultDir = %s", dir)
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length = %d, want 64", len(h1))
	}
}

func TestKeyers(t *testing.T) {
	k := NewDefaultKeyer()
	if k.ExpandKey("/vertices", "1") == k.ExpandKey("/vertices", "2") {
		t.Error("different ids share an expand key")
	}
	if k.ExpandKey("/vertices", "1") == k.ExpandKey("/expand", "1") {
		t.Error("different endpoints share an expand key")
	}
	if !strings.HasPrefix(k.ExpandKey("/v", "1"), "expand:") {
		t.Error("expand key not namespaced")
	}

	a := NewBackendKeyer("http://a.example:8080/vertices/1")
	b := NewBackendKeyer("http://b.example:8080/vertices/1")
	if a.ExpandKey("/vertices", "1") == b.ExpandKey("/vertices", "1") {
		t.Error("different backends share keys")
	}
	if !strings.HasPrefix(a.ExpandKey("/vertices", "1"), "http://a.example:8080|expand:") {
		t.Errorf("unexpected scoped key %s", a.ExpandKey("/vertices", "1"))
	}

	scoped := NewScopedKeyer(nil, "p:")
	if !strings.HasPrefix(scoped.ExpandKey("/v", "x"), "p:expand:") {
		t.Error("nil inner keyer not defaulted")
	}
}
