// Package filter holds user-defined filter sequences and evaluates them
// against a backend.
//
// A [Sequence] is an ordered list of filter expressions joined by AND/OR
// links. The backend decides what an expression means; this package only
// keeps the sequence well-formed, ships it in its wire form and maps the
// returned matches back onto the materialized graph.
package filter

import (
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
)

// Link types joining two filters.
const (
	And = "AND"
	Or  = "OR"
)

// DefaultColor highlights matches of a sequence created without a colour.
const DefaultColor = "blue"

// Sequence is a named, coloured chain of filters. Links[i] joins
// Filters[i] and Filters[i+1].
type Sequence struct {
	ID      string
	Name    string
	Color   string
	Filters []string
	Links   []string
	Result  *Result
}

// NewSequence returns an empty sequence with a fresh id.
func NewSequence(name, color string) *Sequence {
	if color == "" {
		color = DefaultColor
	}
	return &Sequence{ID: "cf-" + uuid.NewString(), Name: name, Color: color}
}

// Add appends filter joined by link. An empty link means AND; the link of
// the first filter is ignored.
func (s *Sequence) Add(filter, link string) error {
	if filter == "" {
		return gerrors.New(gerrors.ErrCodeInvalidFilter, "empty filter")
	}
	link = strings.ToUpper(link)
	if link == "" {
		link = And
	}
	if err := gerrors.ValidateLinkType(link); err != nil {
		return err
	}
	s.Filters = append(s.Filters, filter)
	if len(s.Filters) > 1 {
		s.Links = append(s.Links, link)
	}
	return nil
}

// Remove drops the first occurrence of filter along with the link that
// attached it, and clears the result.
func (s *Sequence) Remove(filter string) error {
	if filter == "" {
		return gerrors.New(gerrors.ErrCodeInvalidFilter, "empty filter")
	}
	i := slices.Index(s.Filters, filter)
	if i < 0 {
		return gerrors.New(gerrors.ErrCodeNotFound, "filter %q not in sequence %q", filter, s.Name)
	}
	s.Filters = slices.Delete(s.Filters, i, i+1)
	switch {
	case len(s.Filters) == 0:
		s.Links = nil
	case len(s.Links) > 0:
		j := max(i-1, 0)
		s.Links = slices.Delete(s.Links, j, j+1)
	}
	s.Result = nil
	return nil
}

// ForEach calls fn for every filter with the link that precedes it; the
// first filter gets "".
func (s *Sequence) ForEach(fn func(filter, link string)) {
	for i, f := range s.Filters {
		link := ""
		if i > 0 {
			link = s.Links[i-1]
		}
		fn(f, link)
	}
}

// Term is one serialised filter: the expression and its preceding link,
// nil for the first.
type Term struct {
	Filter string
	Link   *string
}

// MarshalJSON encodes a term as a two-element array.
func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{t.Filter, t.Link})
}

// UnmarshalJSON decodes a two-element array.
func (t *Term) UnmarshalJSON(b []byte) error {
	var pair []*string
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) == 0 || pair[0] == nil {
		return gerrors.New(gerrors.ErrCodeInvalidFilter, "filter term needs an expression")
	}
	t.Filter = *pair[0]
	t.Link = nil
	if len(pair) > 1 {
		t.Link = pair[1]
	}
	return nil
}

// Serialize returns the wire form of the sequence.
func (s *Sequence) Serialize() []Term {
	out := make([]Term, 0, len(s.Filters))
	s.ForEach(func(f, link string) {
		t := Term{Filter: f}
		if link != "" {
			t.Link = &link
		}
		out = append(out, t)
	})
	return out
}

// Encode returns the JSON text sent in the filter query parameter.
func (s *Sequence) Encode() (string, error) {
	b, err := json.Marshal(s.Serialize())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Clone returns a deep copy that shares nothing with s.
func (s *Sequence) Clone() *Sequence {
	c := *s
	c.Filters = slices.Clone(s.Filters)
	c.Links = slices.Clone(s.Links)
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	return &c
}
