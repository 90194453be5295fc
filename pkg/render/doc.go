// Package render turns a computed layout into a picture.
//
// The layout already fixes every node centre, so rendering never asks
// Graphviz to place anything. [DOT] writes each node with a pinned position
// (pos="x,y!" with inputscale=72, so one layout unit is one point times
// [Options.Scale]) and [Render] hands the document to the neato engine of
// go-graphviz, which only routes the straight edges and draws.
//
// Supported formats are DOT text, SVG and PNG:
//
//	g, _ := graph.ReadGraphFile("input.json")
//	l, _ := graph.ReadLayoutFile("layout.json")
//	_ = g.Apply(l)
//	svg, err := render.Render(ctx, g, render.Options{Format: render.FormatSVG, Scale: 1})
package render
