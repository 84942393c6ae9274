package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/graphlens/pkg/graph"
)

// Force defaults.
const (
	DefaultCharge   = -300.0
	DefaultFriction = 0.9
	DefaultTheta    = 0.8

	alphaStart = 0.1
	alphaDecay = 0.99
	alphaMin   = 0.005
)

// Link is an edge as the simulation sees it.
type Link struct {
	Source *graph.Vertex
	Target *graph.Vertex
}

// LinkDistance is the rest length of a spring: 60 plus four times the larger
// endpoint radius.
func LinkDistance(l Link) float64 {
	return 60 + 4*max(Radius(l.Source), Radius(l.Target))
}

// Simulation moves vertices in place. Step advances one tick and reports
// whether the simulation is still running; Reheat restarts a cooled one.
type Simulation interface {
	Step(vertices []*graph.Vertex, links []Link) bool
	Reheat()
}

// Force is a position-Verlet force simulation: springs along links,
// Barnes-Hut approximated repulsion between all vertices, velocity damping
// by friction. It cools down geometrically and stops below a threshold.
type Force struct {
	Charge   float64
	Friction float64
	Theta    float64

	alpha float64
}

// NewForce returns a Force with default parameters, already hot.
func NewForce() *Force {
	return &Force{
		Charge:   DefaultCharge,
		Friction: DefaultFriction,
		Theta:    DefaultTheta,
		alpha:    alphaStart,
	}
}

// Alpha returns the current temperature.
func (f *Force) Alpha() float64 { return f.alpha }

// Reheat implements Simulation.
func (f *Force) Reheat() { f.alpha = alphaStart }

// Step implements Simulation.
func (f *Force) Step(vertices []*graph.Vertex, links []Link) bool {
	if f.alpha < alphaMin {
		f.alpha = 0
		return false
	}

	for _, l := range links {
		s, t := l.Source, l.Target
		dx, dy := t.X-s.X, t.Y-s.Y
		d := math.Hypot(dx, dy)
		if d == 0 {
			continue
		}
		k := f.alpha * (d - LinkDistance(l)) / d
		dx, dy = dx*k, dy*k
		ws, wt := weight(s), weight(t)
		share := ws / (ws + wt)
		t.X -= dx * share
		t.Y -= dy * share
		s.X += dx * (1 - share)
		s.Y += dy * (1 - share)
	}

	if f.Charge != 0 && len(vertices) > 1 {
		f.repel(vertices)
	}

	for _, v := range vertices {
		if v.Fixed {
			v.X, v.Y = v.PX, v.PY
			continue
		}
		x, y := v.X, v.Y
		v.X -= (v.PX - x) * f.Friction
		v.Y -= (v.PY - y) * f.Friction
		v.PX, v.PY = x, y
	}

	f.alpha *= alphaDecay
	return true
}

// repel nudges each vertex's previous position so that the Verlet step
// moves it away from the others. The push falls off with distance.
func (f *Force) repel(vertices []*graph.Vertex) {
	particles := make([]barneshut.Particle2, len(vertices))
	for i, v := range vertices {
		particles[i] = particle{v}
	}
	strength := -f.Charge * f.alpha
	theta := f.Theta
	plane, err := barneshut.NewPlane(particles)
	if err != nil {
		plane = &barneshut.Plane{Particles: particles}
		theta = 0
	}
	for _, p := range particles {
		push := r2.Scale(strength, plane.ForceOn(p, theta, repulsion))
		v := p.(particle).v
		v.PX -= push.X
		v.PY -= push.Y
	}
}

// repulsion is a 1/d force pointing away from the other particle.
func repulsion(_, _ barneshut.Particle2, m1, m2 float64, v r2.Vec) r2.Vec {
	d2 := v.X*v.X + v.Y*v.Y
	if d2 == 0 {
		return r2.Vec{}
	}
	return r2.Scale(-(m1*m2)/d2, v)
}

type particle struct{ v *graph.Vertex }

func (p particle) Coord2() r2.Vec { return r2.Vec{X: p.v.X, Y: p.v.Y} }
func (p particle) Mass() float64  { return 1 }

// weight favours moving the lighter end of a spring.
func weight(v *graph.Vertex) float64 {
	return float64(1 + len(v.VisibleEdges))
}
