// Package backend is the HTTP client for a graph backend.
//
// A backend serves the bootstrap page payload, per-vertex expansions, edge
// edits, deletes and filter matches. [Client] speaks that protocol and
// optionally answers repeated expansions from a [cache.Cache].
package backend

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/graphlens/pkg/cache"
	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
	"github.com/matzehuels/graphlens/pkg/httputil"
	"github.com/matzehuels/graphlens/pkg/observability"
)

// Default endpoints, relative to the page URL's origin.
const (
	DefaultExpandEndpoint = "/vertices"
	DefaultFilterEndpoint = "/filter"

	createEdgePath = "/vertices/createEdge"
	updateEdgePath = "/vertices/updateEdge"
	listPath       = "/vertices/list"
)

// Config locates a backend.
type Config struct {
	// PageURL serves the bootstrap payload.
	PageURL string
	// ExpandEndpoint is joined with a vertex id to expand it.
	ExpandEndpoint string
	// FilterEndpoint answers filter sequences.
	FilterEndpoint string
}

// Client talks to one backend.
type Client struct {
	http   *httputil.Client
	cache  cache.Cache
	keyer  cache.Keyer
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time

	// mutated is set by the first successful edit; later expansions skip
	// cache reads since any cached neighbourhood may predate the edit.
	mutated atomic.Bool

	page   *url.URL
	expand *url.URL
	filter *url.URL
}

// Option configures a Client.
type Option func(*Client)

// WithCache answers expansions from c; entries live for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) { cl.cache, cl.ttl = c, ttl }
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(h *httputil.Client) Option {
	return func(cl *Client) { cl.http = h }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// WithClock sets the clock used for cache-busting.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// New returns a client for cfg. Relative endpoints resolve against the
// page URL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := gerrors.ValidateURL(cfg.PageURL); err != nil {
		return nil, err
	}
	page, err := url.Parse(cfg.PageURL)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidConfig, err, "page url")
	}
	if cfg.ExpandEndpoint == "" {
		cfg.ExpandEndpoint = DefaultExpandEndpoint
	}
	if cfg.FilterEndpoint == "" {
		cfg.FilterEndpoint = DefaultFilterEndpoint
	}

	c := &Client{
		http:   httputil.NewClient(),
		cache:  cache.NewNullCache(),
		logger: log.Default(),
		now:    time.Now,
		page:   page,
	}
	if c.expand, err = page.Parse(cfg.ExpandEndpoint); err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidConfig, err, "expand endpoint")
	}
	if c.filter, err = page.Parse(cfg.FilterEndpoint); err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidConfig, err, "filter endpoint")
	}
	for _, o := range opts {
		o(c)
	}
	c.keyer = cache.NewBackendKeyer(page.String())
	return c, nil
}

// Bootstrap fetches the page payload. The request carries a cache-busting
// __cb parameter and is never cached.
func (c *Client) Bootstrap(ctx context.Context) (graph.Batch, error) {
	u := *c.page
	q := u.Query()
	q.Set("__cb", strconv.FormatInt(c.now().UnixMilli(), 10))
	u.RawQuery = q.Encode()

	var b graph.Batch
	if err := c.http.GetJSON(ctx, u.String(), &b); err != nil {
		return graph.Batch{}, wrap(err, "bootstrap %s", c.page)
	}
	return b, nil
}

// Expand fetches the neighbourhood of id. Responses are cached; after an
// edit through this client, reads bypass the cache and refresh it.
func (c *Client) Expand(ctx context.Context, id graph.ID) (graph.Batch, error) {
	if err := gerrors.ValidateID(id.String()); err != nil {
		return graph.Batch{}, err
	}
	rawURL := c.join(c.expand, id.String())
	key := c.keyer.ExpandKey(c.expand.String(), id.String())
	hooks := observability.Cache()

	var b graph.Batch
	if !c.mutated.Load() {
		if data, ok, err := c.cache.Get(ctx, key); err != nil {
			c.logger.Debug("cache read failed", "key", key, "err", err)
		} else if ok {
			if err := httputil.Decode(data, &b); err == nil {
				hooks.OnCacheHit(ctx, "expand")
				return b, nil
			}
			c.evict(ctx, key)
		}
	}
	hooks.OnCacheMiss(ctx, "expand")

	data, err := c.http.Get(ctx, rawURL)
	if err != nil {
		return graph.Batch{}, wrap(err, "expand %s", id)
	}
	if err := httputil.Decode(data, &b); err != nil {
		return graph.Batch{}, wrap(err, "expand %s", id)
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Debug("cache write failed", "key", key, "err", err)
	} else {
		hooks.OnCacheSet(ctx, "expand", len(data))
	}
	return b, nil
}

type createEdgeRequest struct {
	From graph.ID `json:"from"`
	To   graph.ID `json:"to"`
}

type createEdgeResponse struct {
	Success bool             `json:"success"`
	Edge    graph.EdgeRecord `json:"edge"`
}

// CreateEdge asks the backend for a new edge from one vertex to another.
func (c *Client) CreateEdge(ctx context.Context, from, to graph.ID) (graph.EdgeRecord, error) {
	var resp createEdgeResponse
	err := c.http.PostJSON(ctx, c.resolve(createEdgePath), createEdgeRequest{From: from, To: to}, &resp)
	if err != nil {
		return graph.EdgeRecord{}, err
	}
	if !resp.Success {
		return graph.EdgeRecord{}, gerrors.New(gerrors.ErrCodeRejected, "create edge %s -> %s", from, to)
	}
	c.invalidate(ctx, from, to)
	return resp.Edge, nil
}

type updateEdgeRequest struct {
	EdgeID  graph.ID `json:"edgeId"`
	NewDest graph.ID `json:"newDestNodeId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// UpdateEdge retargets an edge to a new destination vertex.
func (c *Client) UpdateEdge(ctx context.Context, edgeID, newDest graph.ID) error {
	var resp successResponse
	err := c.http.PostJSON(ctx, c.resolve(updateEdgePath), updateEdgeRequest{EdgeID: edgeID, NewDest: newDest}, &resp)
	if err != nil {
		return err
	}
	if !resp.Success {
		return gerrors.New(gerrors.ErrCodeRejected, "update edge %s", edgeID)
	}
	c.invalidate(ctx, newDest)
	return nil
}

// Delete removes a vertex or edge on the backend.
func (c *Client) Delete(ctx context.Context, t graph.EntityType, id graph.ID) error {
	if err := gerrors.ValidateID(id.String()); err != nil {
		return err
	}
	var kind string
	switch t {
	case graph.VertexType:
		kind = "Vertex"
	case graph.EdgeType:
		kind = "Edge"
	default:
		return gerrors.New(gerrors.ErrCodeInvalidInput, "unknown entity type %q", t)
	}
	var resp successResponse
	if err := c.http.GetJSON(ctx, c.resolve("/vertices/delete"+kind+"/"+id.String()), &resp); err != nil {
		return err
	}
	if !resp.Success {
		return gerrors.New(gerrors.ErrCodeRejected, "delete %s %s", t, id)
	}
	if t == graph.VertexType {
		c.invalidate(ctx, id)
	} else {
		c.invalidate(ctx)
	}
	return nil
}

// Filter implements [filter.Matcher].
func (c *Client) Filter(ctx context.Context, encoded string) (filter.Matches, error) {
	u := *c.filter
	u.Path = strings.TrimSuffix(u.Path, "/") + "/"
	u.RawQuery = url.Values{"filter": {encoded}}.Encode()

	var m filter.Matches
	if err := c.http.GetJSON(ctx, u.String(), &m); err != nil {
		return filter.Matches{}, err
	}
	return m, nil
}

// Summary is one entry of the backend's vertex list.
type Summary struct {
	ID    graph.ID `json:"id"`
	Name  string   `json:"name"`
	Label string   `json:"label"`
}

// List returns the backend's vertex list, used to pick edge destinations.
func (c *Client) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	if err := c.http.GetJSON(ctx, c.resolve(listPath), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// invalidate drops the cached expansions of ids and stops cache reads for
// the rest of the session. Neighbours of a deleted vertex and endpoints of
// an edited edge are not always known here, so their entries are refreshed
// by the next expansion instead.
func (c *Client) invalidate(ctx context.Context, ids ...graph.ID) {
	c.mutated.Store(true)
	for _, id := range ids {
		c.evict(ctx, c.keyer.ExpandKey(c.expand.String(), id.String()))
	}
}

func (c *Client) evict(ctx context.Context, key string) {
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Debug("cache delete failed", "key", key, "err", err)
	}
}

func (c *Client) resolve(path string) string {
	return c.page.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) join(base *url.URL, segment string) string {
	u := *base
	u.RawQuery = ""
	u.RawPath = ""
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + segment
	return u.String()
}

// wrap keeps the code of a transport error; context errors become TIMEOUT.
func wrap(err error, format string, args ...any) error {
	code := gerrors.GetCode(err)
	switch {
	case code != "":
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = gerrors.ErrCodeTimeout
	default:
		code = gerrors.ErrCodeNetwork
	}
	return gerrors.Wrap(code, err, format, args...)
}
