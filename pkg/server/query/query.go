// Package query parses and evaluates the filter expressions served by the
// reference backend.
//
// An expression compares one field of an entity with a value:
//
//	label = host
//	name != "db primary"
//	prop.port = 8080
//	name ~ "^web-[0-9]+$"
//
// Fields are id, label, name and prop.<key>. The operators are = and !=,
// which compare string forms, and ~, which matches a regular expression.
// Values containing anything but letters, digits, '_' and '-' are quoted.
package query

import (
	"fmt"
	"regexp"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
)

// Operators.
const (
	OpEqual    = "="
	OpNotEqual = "!="
	OpMatch    = "~"
)

type expr struct {
	Field string `@Ident`
	Key   string `( "." @Ident )?`
	Op    string `@Op`
	Value string `@(String | Number | Ident)`
}

var (
	exprLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "String", Pattern: `"(\\.|[^"\\])*"|'[^']*'`},
		{Name: "Number", Pattern: `[-+]?\d+(\.\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_\-]*`},
		{Name: "Op", Pattern: `!=|=|~`},
		{Name: "Punct", Pattern: `\.`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	exprParser = participle.MustBuild[expr](
		participle.Lexer(exprLexer),
		participle.Elide("Whitespace"),
		participle.Unquote("String"),
	)
)

// Query is one parsed expression.
type Query struct {
	Field string
	Key   string // property key for prop.<key>
	Op    string
	Value string

	re *regexp.Regexp
}

// Parse parses one expression.
func Parse(s string) (*Query, error) {
	e, err := exprParser.ParseString("", s)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.ErrCodeInvalidFilter, err, "parse %q", s)
	}
	q := &Query{Field: e.Field, Key: e.Key, Op: e.Op, Value: e.Value}

	switch {
	case q.Field == "prop" && q.Key == "":
		return nil, gerrors.New(gerrors.ErrCodeInvalidFilter, "%q: prop needs a key, as in prop.name", s)
	case q.Field == "prop":
	case q.Key != "":
		return nil, gerrors.New(gerrors.ErrCodeInvalidFilter, "%q: only prop takes a key", s)
	case q.Field != "id" && q.Field != "label" && q.Field != "name":
		return nil, gerrors.New(gerrors.ErrCodeInvalidFilter, "%q: unknown field %q", s, q.Field)
	}

	if q.Op == OpMatch {
		re, err := regexp.Compile(q.Value)
		if err != nil {
			return nil, gerrors.Wrap(gerrors.ErrCodeInvalidFilter, err, "%q: bad pattern", s)
		}
		q.re = re
	}
	return q, nil
}

// String renders the expression back in canonical form.
func (q *Query) String() string {
	field := q.Field
	if q.Key != "" {
		field += "." + q.Key
	}
	return fmt.Sprintf("%s %s %q", field, q.Op, q.Value)
}

// Entity is what a query inspects.
type Entity struct {
	ID         graph.ID
	Label      string
	Properties graph.Properties
}

// Match reports whether e satisfies the query. A missing property never
// matches, whatever the operator.
func (q *Query) Match(e Entity) bool {
	var got string
	switch q.Field {
	case "id":
		got = e.ID.String()
	case "label":
		got = e.Label
	case "name":
		got = e.ID.String()
		if n, ok := e.Properties["name"]; ok {
			got = fmt.Sprint(n)
		}
	case "prop":
		v, ok := e.Properties[q.Key]
		if !ok {
			return false
		}
		got = fmt.Sprint(v)
	}

	switch q.Op {
	case OpEqual:
		return got == q.Value
	case OpNotEqual:
		return got != q.Value
	case OpMatch:
		return q.re.MatchString(got)
	}
	return false
}

// Chain is a filter sequence: queries joined left to right by AND or OR.
type Chain struct {
	queries []*Query
	links   []string
}

// Compile parses every term of a serialised filter sequence. The first
// term's link is ignored; a missing link on a later term means AND.
func Compile(terms []filter.Term) (*Chain, error) {
	if len(terms) == 0 {
		return nil, gerrors.New(gerrors.ErrCodeInvalidFilter, "empty filter sequence")
	}
	c := &Chain{}
	for i, t := range terms {
		q, err := Parse(t.Filter)
		if err != nil {
			return nil, err
		}
		c.queries = append(c.queries, q)
		if i == 0 {
			continue
		}
		link := filter.And
		if t.Link != nil {
			link = *t.Link
		}
		if err := gerrors.ValidateLinkType(link); err != nil {
			return nil, err
		}
		c.links = append(c.links, link)
	}
	return c, nil
}

// Match folds the chain over e without precedence: a AND b OR c is
// (a AND b) OR c.
func (c *Chain) Match(e Entity) bool {
	ok := c.queries[0].Match(e)
	for i, q := range c.queries[1:] {
		if c.links[i] == filter.Or {
			ok = ok || q.Match(e)
		} else {
			ok = ok && q.Match(e)
		}
	}
	return ok
}
