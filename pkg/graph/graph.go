package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// =============================================================================
// Graph Serialization API
// =============================================================================

// MarshalGraph converts a graph to indented JSON bytes.
func MarshalGraph(g Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalGraph deserializes JSON bytes to a Graph.
func UnmarshalGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("decode: %w", err)
	}
	return g, nil
}

// WriteGraphFile writes a graph to a JSON file.
// The file is created with 0644 permissions.
func WriteGraphFile(g Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}

// WriteGraph writes a graph as JSON to an io.Writer.
func WriteGraph(g Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadGraphFile reads a JSON file and returns the decoded graph.
func ReadGraphFile(path string) (Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}

// ReadGraph decodes a JSON graph from an io.Reader. Unknown fields are
// rejected so that misspelled attributes do not silently fall back to zero.
func ReadGraph(r io.Reader) (Graph, error) {
	var g Graph
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("decode: %w", err)
	}
	return g, nil
}
