// Package layout positions materialized vertices.
//
// The [Adapter] owns the placement policy: pinned vertices stay where they
// are, the root stays centred until the user moves it, and in bounded mode
// vertices are kept inside the canvas. How positions evolve between those
// constraints is up to a pluggable [Simulation]; [Force] is the default.
package layout

import (
	"math"

	"github.com/matzehuels/graphlens/pkg/graph"
)

// MaxRadius caps the drawn radius of a vertex.
const MaxRadius = 40.0

// Radius sizes a vertex by its larger degree.
func Radius(v *graph.Vertex) float64 {
	return math.Min(5+float64(v.Degree())*0.4, MaxRadius)
}

// Policy is enforced after every simulation step.
type Policy struct {
	Width   float64
	Height  float64
	Bounded bool

	// DisablePin turns Pin and Unpin into no-ops.
	DisablePin bool
}

// Center returns the canvas centre.
func (p Policy) Center() (x, y float64) { return p.Width / 2, p.Height / 2 }

// TickObserver is notified after every tick.
type TickObserver interface {
	OnTick(vertices []*graph.Vertex)
}

// TickFunc adapts a function to TickObserver.
type TickFunc func(vertices []*graph.Vertex)

// OnTick implements TickObserver.
func (f TickFunc) OnTick(vertices []*graph.Vertex) { f(vertices) }

// Adapter drives a Simulation over shared vertex pointers and applies the
// policy on every tick. Callers serialise access.
type Adapter struct {
	sim       Simulation
	policy    Policy
	root      graph.ID
	observers []TickObserver
	placed    int
}

// NewAdapter returns an adapter for the graph centred on root. A nil sim
// uses [NewForce].
func NewAdapter(root graph.ID, policy Policy, sim Simulation) *Adapter {
	if sim == nil {
		sim = NewForce()
	}
	return &Adapter{sim: sim, policy: policy, root: root}
}

// Policy returns the adapter's policy.
func (a *Adapter) Policy() Policy { return a.policy }

// Observe registers a tick observer.
func (a *Adapter) Observe(o TickObserver) { a.observers = append(a.observers, o) }

// Restart reheats the simulation after membership changed.
func (a *Adapter) Restart() { a.sim.Reheat() }

// Tick advances the simulation once and enforces the policy. It reports
// whether the simulation is still running.
func (a *Adapter) Tick(vertices []*graph.Vertex, links []Link) bool {
	type pos struct{ x, y, px, py float64 }
	pinned := make(map[*graph.Vertex]pos)
	for _, v := range vertices {
		if v.Fixed {
			pinned[v] = pos{v.X, v.Y, v.PX, v.PY}
		}
	}

	running := a.sim.Step(vertices, links)

	cx, cy := a.policy.Center()
	for _, v := range vertices {
		if p, ok := pinned[v]; ok {
			v.X, v.Y, v.PX, v.PY = p.x, p.y, p.px, p.py
		}
		if v.ID == a.root && v.Clean {
			v.X, v.Y, v.PX, v.PY = cx, cy, cx, cy
			continue
		}
		if a.policy.Bounded && !v.Fixed {
			r := Radius(v)
			v.X = clamp(v.X, r, a.policy.Width-r)
			v.Y = clamp(v.Y, r, a.policy.Height-r)
		}
	}

	for _, o := range a.observers {
		o.OnTick(vertices)
	}
	return running
}

func clamp(x, lo, hi float64) float64 {
	if hi < lo {
		return (lo + hi) / 2
	}
	return math.Max(lo, math.Min(hi, x))
}

// PlaceRoot fixes the root at the centre in its clean state.
func (a *Adapter) PlaceRoot(v *graph.Vertex) {
	cx, cy := a.policy.Center()
	v.X, v.Y, v.PX, v.PY = cx, cy, cx, cy
	v.Fixed = true
	v.Clean = true
}

// Place seeds newly merged vertices on a small spiral around their
// provenance parent so that the first ticks start from distinct points.
func (a *Adapter) Place(vs []*graph.Vertex, lookup func(graph.ID) (*graph.Vertex, bool)) {
	const golden = 2.399963229728653
	cx, cy := a.policy.Center()
	for _, v := range vs {
		ox, oy := cx, cy
		if p, ok := lookup(v.Parent); ok && v.HasParent() {
			ox, oy = p.X, p.Y
		}
		a.placed++
		angle := float64(a.placed) * golden
		dist := 30 + 2*math.Sqrt(float64(a.placed))
		v.X = ox + dist*math.Cos(angle)
		v.Y = oy + dist*math.Sin(angle)
		v.PX, v.PY = v.X, v.Y
	}
}

// Pin fixes v in place. Moving the root this way ends its clean state.
func (a *Adapter) Pin(v *graph.Vertex) {
	if a.policy.DisablePin {
		return
	}
	a.unclean(v)
	v.Fixed = true
	v.PX, v.PY = v.X, v.Y
}

// Unpin releases v to the simulation.
func (a *Adapter) Unpin(v *graph.Vertex) {
	if a.policy.DisablePin {
		return
	}
	a.unclean(v)
	v.Fixed = false
}

// PinAll pins every vertex.
func (a *Adapter) PinAll(vs []*graph.Vertex) {
	for _, v := range vs {
		a.Pin(v)
	}
}

// Drag moves v by (dx, dy) and pins it, as a pointer drag would.
func (a *Adapter) Drag(v *graph.Vertex, dx, dy float64) {
	a.unclean(v)
	v.X += dx
	v.Y += dy
	v.PX, v.PY = v.X, v.Y
	if !a.policy.DisablePin {
		v.Fixed = true
	}
}

func (a *Adapter) unclean(v *graph.Vertex) {
	if v.ID == a.root {
		v.Clean = false
	}
}

// Segment returns the line drawn for an edge: from the source centre to the
// rim of the target, so arrow heads stay visible.
func Segment(src, dst *graph.Vertex) (x1, y1, x2, y2 float64) {
	dx, dy := dst.X-src.X, dst.Y-src.Y
	d := math.Hypot(dx, dy)
	if d == 0 {
		return src.X, src.Y, dst.X, dst.Y
	}
	r := Radius(dst)
	return src.X, src.Y, dst.X - dx*r/d, dst.Y - dy*r/d
}
