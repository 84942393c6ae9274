package graph

import (
	"fmt"
	"math"
	"strconv"
)

// Category10 is the default ten-colour label palette.
var Category10 = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// EdgeColor is the colour of every edge.
const EdgeColor = "#555"

// CenterColor highlights the centre vertex unless configured otherwise.
const CenterColor = "#FFDF00"

// Palette assigns colours to labels in first-sight order, cycling through
// its colour list. A label keeps its colour for the life of the palette.
// A Palette is owned by one Store and is not safe for concurrent use.
type Palette struct {
	colors   []string
	assigned map[string]string
}

// NewPalette returns a palette cycling through colors, or [Category10]
// when colors is empty.
func NewPalette(colors []string) *Palette {
	if len(colors) == 0 {
		colors = Category10
	}
	return &Palette{colors: colors, assigned: make(map[string]string)}
}

// Color returns the colour for label, assigning the next one on first use.
func (p *Palette) Color(label string) string {
	if c, ok := p.assigned[label]; ok {
		return c
	}
	c := p.colors[len(p.assigned)%len(p.colors)]
	p.assigned[label] = c
	return c
}

// Lighten scales each RGB component of a #rrggbb colour by (1+amount),
// clamped to [0,255]. Negative amounts darken. Malformed input is returned
// unchanged.
func Lighten(hex string, amount float64) string {
	if len(hex) != 7 || hex[0] != '#' {
		return hex
	}
	out := "#"
	for i := 0; i < 3; i++ {
		c, err := strconv.ParseUint(hex[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return hex
		}
		v := math.Round(math.Min(math.Max(0, float64(c)*(1+amount)), 255))
		out += fmt.Sprintf("%02x", int(v))
	}
	return out
}
