package cache

import (
	"net/url"
	"strings"
)

// Keyer derives cache keys for backend requests.
type Keyer interface {
	// ExpandKey is the key for the expansion of vertex id at endpoint.
	ExpandKey(endpoint, id string) string
}

// DefaultKeyer namespaces keys by request kind.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) ExpandKey(endpoint, id string) string {
	return "expand:" + Hash([]byte(endpoint+"\x00"+id))
}

// ScopedKeyer prefixes another keyer's keys, so explorers pointed at
// different backends never read each other's entries.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// NewBackendKeyer scopes keys by the scheme and host of baseURL.
func NewBackendKeyer(baseURL string) Keyer {
	prefix := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		prefix = u.Scheme + "://" + u.Host
	}
	return NewScopedKeyer(nil, strings.TrimSuffix(prefix, "/")+"|")
}

func (k *ScopedKeyer) ExpandKey(endpoint, id string) string {
	return k.prefix + k.inner.ExpandKey(endpoint, id)
}
