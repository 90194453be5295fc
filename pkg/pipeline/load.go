package pipeline

import (
	stderrors "errors"
	"io"
	"io/fs"
	"os"

	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/graph"
)

// LoadGraph reads a graph file. "-" reads standard input.
func LoadGraph(path string) (graph.Graph, error) {
	if path == "-" {
		return ParseGraph(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return graph.Graph{}, fileError(err, path)
	}
	defer f.Close()
	g, err := ParseGraph(f)
	if err != nil {
		return graph.Graph{}, errors.Wrap(errors.ErrCodeInvalidGraph, stderrors.Unwrap(err), "parse %s", path)
	}
	return g, nil
}

// ParseGraph decodes a JSON graph and checks that it converts to a layout
// input.
func ParseGraph(r io.Reader) (graph.Graph, error) {
	g, err := graph.ReadGraph(r)
	if err != nil {
		return graph.Graph{}, errors.Wrap(errors.ErrCodeInvalidGraph, err, "parse graph")
	}
	if _, err := graph.ToMultigraph(g); err != nil {
		return graph.Graph{}, errors.Wrap(errors.ErrCodeInvalidGraph, err, "parse graph")
	}
	return g, nil
}

// LoadLayout reads a layout file written by a previous run.
func LoadLayout(path string) (graph.Layout, error) {
	l, err := graph.ReadLayoutFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return graph.Layout{}, fileError(err, path)
		}
		return graph.Layout{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", path)
	}
	return l, nil
}

func fileError(err error, path string) error {
	if stderrors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
	}
	return errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
}
