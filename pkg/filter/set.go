package filter

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// maxConcurrent bounds concurrent filter requests.
const maxConcurrent = 4

// Match is one matching entity as returned by the backend.
type Match struct {
	ID    graph.ID `json:"id"`
	Label string   `json:"label,omitempty"`
}

// Matches lists the entities matching a sequence, by type.
type Matches struct {
	Vertices []Match `json:"vertices"`
	Edges    []Match `json:"edges"`
}

// Result is the outcome of evaluating one sequence. A failed evaluation
// has nil Matches and a non-nil Err; it marks the sequence invalid without
// affecting the others.
type Result struct {
	Name    string
	Matches *Matches
	Err     error
}

// Valid reports whether the evaluation succeeded.
func (r Result) Valid() bool { return r.Err == nil && r.Matches != nil }

// Matcher fetches the matches for one encoded sequence.
type Matcher interface {
	Filter(ctx context.Context, encoded string) (Matches, error)
}

// Set stores sequences by name. Safe for concurrent use.
type Set struct {
	mu   sync.Mutex
	seqs map[string]*Sequence
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{seqs: make(map[string]*Sequence)}
}

// Put stores seq under its name, replacing any sequence of that name.
func (s *Set) Put(seq *Sequence) error {
	if seq.Name == "" {
		return gerrors.New(gerrors.ErrCodeInvalidFilter, "filter sequence needs a name")
	}
	if len(seq.Filters) == 0 {
		return gerrors.New(gerrors.ErrCodeInvalidFilter, "filter sequence %q is empty", seq.Name)
	}
	s.mu.Lock()
	s.seqs[seq.Name] = seq
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the named sequence.
func (s *Set) Get(name string) (*Sequence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.seqs[name]
	if !ok {
		return nil, false
	}
	return seq.Clone(), true
}

// Delete removes the named sequence.
func (s *Set) Delete(name string) {
	s.mu.Lock()
	delete(s.seqs, name)
	s.mu.Unlock()
}

// Names lists the stored sequence names, sorted.
func (s *Set) Names() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.seqs))
	for n := range s.seqs {
		names = append(names, n)
	}
	s.mu.Unlock()
	slices.Sort(names)
	return names
}

// Evaluate fetches the matches of every stored sequence concurrently and
// records each result on its sequence. Results are returned in name order.
// Per-sequence failures are reported in the results; the returned error is
// only set when ctx ends first.
func (s *Set) Evaluate(ctx context.Context, m Matcher) ([]Result, error) {
	names := s.Names()
	results := make([]Result, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, name := range names {
		seq, ok := s.Get(name)
		if !ok {
			results[i] = Result{Name: name, Err: gerrors.New(gerrors.ErrCodeNotFound, "filter %q removed", name)}
			continue
		}
		g.Go(func() error {
			results[i] = evaluate(gctx, m, seq)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}

	s.mu.Lock()
	for _, r := range results {
		// Someone may have deleted the sequence while the request ran.
		if seq, ok := s.seqs[r.Name]; ok {
			seq.Result = &r
		}
	}
	s.mu.Unlock()
	return results, nil
}

// EvaluateOne evaluates a single sequence without storing it.
func EvaluateOne(ctx context.Context, m Matcher, seq *Sequence) Result {
	return evaluate(ctx, m, seq)
}

func evaluate(ctx context.Context, m Matcher, seq *Sequence) Result {
	enc, err := seq.Encode()
	if err != nil {
		return Result{Name: seq.Name, Err: gerrors.Wrap(gerrors.ErrCodeInvalidFilter, err, "encode %q", seq.Name)}
	}
	matches, err := m.Filter(ctx, enc)
	if err != nil {
		return Result{Name: seq.Name, Err: err}
	}
	return Result{Name: seq.Name, Matches: &matches}
}

// Lookup resolves materialized entities.
type Lookup interface {
	Vertex(id graph.ID) (*graph.Vertex, bool)
	Edge(id graph.ID) (*graph.Edge, bool)
}

// Highlight lists the materialized entities matched by the named
// sequence's last successful result. Matches that are not materialized are
// skipped.
func (s *Set) Highlight(name string, l Lookup) []graph.EntityRef {
	s.mu.Lock()
	seq, ok := s.seqs[name]
	var res *Result
	if ok {
		res = seq.Result
	}
	s.mu.Unlock()
	if res == nil || !res.Valid() {
		return nil
	}

	var out []graph.EntityRef
	for _, m := range res.Matches.Vertices {
		if _, ok := l.Vertex(m.ID); ok {
			out = append(out, graph.EntityRef{Type: graph.VertexType, ID: m.ID})
		}
	}
	for _, m := range res.Matches.Edges {
		if _, ok := l.Edge(m.ID); ok {
			out = append(out, graph.EntityRef{Type: graph.EdgeType, ID: m.ID})
		}
	}
	return out
}
