package query

import (
	"testing"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/filter"
	"github.com/matzehuels/graphlens/pkg/graph"
)

var web = Entity{ID: "2", Label: "host", Properties: graph.Properties{"name": "web-1", "port": float64(8080)}}

func TestParseAndMatch(t *testing.T) {
	tests := []struct {
		expr string
		want bool
	}{
		{"label = host", true},
		{"label=host", true},
		{"label != host", false},
		{"id = 2", true},
		{`name = "web-1"`, true},
		{"name = web-1", true},
		{"name ~ '^web-[0-9]+$'", true},
		{`name ~ "^db"`, false},
		{"prop.port = 8080", true},
		{"prop.port != 8080", false},
		{"prop.missing = x", false},
		{"prop.missing != x", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			q, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := q.Match(web); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNameDefaultsToID(t *testing.T) {
	q, err := Parse("name = 7")
	if err != nil {
		t.Fatal(err)
	}
	if !q.Match(Entity{ID: "7"}) {
		t.Error("unnamed entity did not match its id")
	}
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"label",
		"label == host",
		"colour = red",
		"prop = x",
		"label.x = y",
		"name ~ '('",
	} {
		if _, err := Parse(expr); !gerrors.Is(err, gerrors.ErrCodeInvalidFilter) {
			t.Errorf("Parse(%q) error = %v, want INVALID_FILTER", expr, err)
		}
	}
}

func TestString(t *testing.T) {
	q, err := Parse("prop.port=8080")
	if err != nil {
		t.Fatal(err)
	}
	if got := q.String(); got != `prop.port = "8080"` {
		t.Errorf("String() = %s", got)
	}
}

func TestChain(t *testing.T) {
	or := filter.Or
	bad := "XOR"
	db := Entity{ID: "3", Label: "db"}

	tests := []struct {
		name  string
		terms []filter.Term
		web   bool
		db    bool
	}{
		{"single", []filter.Term{{Filter: "label = host"}}, true, false},
		{"default and", []filter.Term{{Filter: "label = host"}, {Filter: "id = 3"}}, false, false},
		{"or", []filter.Term{{Filter: "label = host"}, {Filter: "id = 3", Link: &or}}, true, true},
		{"left to right", []filter.Term{{Filter: "label = db"}, {Filter: "id = 2", Link: &or}, {Filter: "label = db"}}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(tt.terms)
			if err != nil {
				t.Fatal(err)
			}
			if got := c.Match(web); got != tt.web {
				t.Errorf("Match(web) = %v, want %v", got, tt.web)
			}
			if got := c.Match(db); got != tt.db {
				t.Errorf("Match(db) = %v, want %v", got, tt.db)
			}
		})
	}

	if _, err := Compile(nil); !gerrors.Is(err, gerrors.ErrCodeInvalidFilter) {
		t.Errorf("Compile(nil) error = %v", err)
	}
	if _, err := Compile([]filter.Term{{Filter: "id = 1"}, {Filter: "id = 2", Link: &bad}}); !gerrors.Is(err, gerrors.ErrCodeInvalidFilter) {
		t.Errorf("Compile(XOR) error = %v", err)
	}
}
