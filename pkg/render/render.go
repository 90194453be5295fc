package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/fm3/pkg/graph"
)

// Output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Formats lists every supported output format.
var Formats = []string{FormatSVG, FormatPNG, FormatDOT}

// DefaultNodeSize is the box side, in layout units, drawn for nodes without
// a size.
const DefaultNodeSize = 20

// ErrUnsupportedFormat is returned by [Render] for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Options configures rendering.
type Options struct {
	Format string  // one of Formats; empty means SVG
	Scale  float64 // points per layout unit; zero or less means 1
	Labels bool    // draw node labels
}

func (o Options) scale() float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

// Render draws g at the node positions it carries.
func Render(ctx context.Context, g graph.Graph, opts Options) ([]byte, error) {
	switch opts.Format {
	case FormatDOT:
		return []byte(DOT(g, opts)), nil
	case FormatSVG, "":
		svg, err := renderGraphviz(ctx, DOT(g, opts), graphviz.SVG)
		if err != nil {
			return nil, err
		}
		return normalizeViewBox(svg), nil
	case FormatPNG:
		return renderGraphviz(ctx, DOT(g, opts), graphviz.PNG)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}
}

func renderGraphviz(ctx context.Context, dot string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.-]+)\s+([0-9.-]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the Graphviz svg header with one that has a
// zero-based viewBox and matching pixel size.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
