// Package render draws the shown part of an exploration with Graphviz.
//
// [ToDOT] turns the shown vertices and visible edges of a store into DOT.
// Vertices keep their palette colours and the centre is drawn with a heavy
// outline. With [Options.Positions] set, the force layout's coordinates are
// pinned and the graph is laid out by neato, so the drawing matches what an
// interactive session showed; otherwise dot lays it out from scratch.
//
//	dot := render.ToDOT(store, render.Options{Positions: true})
//	svg, err := render.Render(ctx, dot, render.FormatSVG, render.Engine(opts))
package render
