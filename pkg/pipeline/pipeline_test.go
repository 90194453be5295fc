package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/fm3/pkg/cache"
	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/force"
	"github.com/matzehuels/fm3/pkg/graph"
	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/observability"
)

// memCache is an in-memory cache.Cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	c.sets++
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

var _ cache.Cache = (*memCache)(nil)

func quietLogger() *log.Logger { return log.New(&bytes.Buffer{}) }

func square() graph.Graph {
	return graph.Graph{
		Nodes: []graph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []graph.Edge{
			{From: "a", To: "b"},
			{From: "b", To: "c"},
			{From: "c", To: "d"},
			{From: "d", To: "a"},
		},
	}
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"svg", false},
		{"png", false},
		{"dot", false},
		{"pdf", true},
		{"SVG", true}, // case-sensitive
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, errors.ErrCodeInvalidFormat) {
			t.Errorf("ValidateFormat(%q) code = %v, want INVALID_FORMAT", tt.format, errors.GetCode(err))
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		code   errors.Code
	}{
		{"defaults", func(*Options) {}, ""},
		{"unknown enum", func(o *Options) { o.Layout.RepulsiveForces = "magic" }, errors.ErrCodeInvalidConfig},
		{"bad format", func(o *Options) { o.Formats = []string{"svg", "gif"} }, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Layout: layout.DefaultOptions()}
			tt.modify(&opts)
			if got := errors.GetCode(opts.Validate()); got != tt.code {
				t.Errorf("Validate() code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestValidateGraphLimits(t *testing.T) {
	opts := Options{MaxVertices: 3}
	if err := opts.ValidateGraph(square()); !errors.Is(err, errors.ErrCodeTooLarge) {
		t.Errorf("ValidateGraph() = %v, want TOO_LARGE", err)
	}
	opts = Options{MaxVertices: 4, MaxEdges: 3}
	if err := opts.ValidateGraph(square()); !errors.Is(err, errors.ErrCodeTooLarge) {
		t.Errorf("ValidateGraph() = %v, want TOO_LARGE for edges", err)
	}
	if err := (&Options{}).ValidateGraph(square()); err != nil {
		t.Errorf("ValidateGraph() without limits = %v", err)
	}
}

func TestRenderOptionsDefaults(t *testing.T) {
	opts := Options{Labels: true}
	ro := opts.RenderOptions("svg")
	if ro.Scale != DefaultScale || !ro.Labels || ro.Format != "svg" {
		t.Errorf("RenderOptions() = %+v", ro)
	}
	if k := opts.RenderKeyOpts("png"); k.Format != "png" || k.Scale != DefaultScale {
		t.Errorf("RenderKeyOpts() = %+v", k)
	}
}

func TestExecuteCachesLayout(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	r := NewRunner(c, nil, quietLogger())
	opts := Options{Layout: layout.DefaultOptions()}

	first, err := r.Execute(ctx, square(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.CacheInfo.LayoutHit {
		t.Error("first run should miss the cache")
	}
	if len(first.Layout.Positions) != 4 {
		t.Fatalf("positions = %d, want 4", len(first.Layout.Positions))
	}
	if first.Layout.RunID != first.RunID {
		t.Errorf("Layout.RunID = %s, want %s", first.Layout.RunID, first.RunID)
	}
	if first.Artifacts != nil {
		t.Error("no formats requested, artifacts should be nil")
	}

	second, err := r.Execute(ctx, square(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !second.CacheInfo.LayoutHit {
		t.Error("second run should hit the cache")
	}
	if second.RunID == first.RunID {
		t.Error("each run should get a fresh RunID")
	}
	if second.Layout.RunID != second.RunID {
		t.Errorf("cached Layout.RunID = %s, want current run %s", second.Layout.RunID, second.RunID)
	}
	if diff := cmp.Diff(first.Layout.Positions, second.Layout.Positions); diff != "" {
		t.Errorf("cached positions differ (-first +second):\n%s", diff)
	}
	if first.GraphHash != second.GraphHash || len(first.GraphHash) != 64 {
		t.Errorf("GraphHash = %q / %q", first.GraphHash, second.GraphHash)
	}

	opts.Refresh = true
	third, err := r.Execute(ctx, square(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.LayoutHit {
		t.Error("Refresh should bypass the cache")
	}
}

func TestExecuteDifferentOptionsMiss(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newMemCache(), nil, quietLogger())
	opts := Options{Layout: layout.DefaultOptions()}
	if _, err := r.Execute(ctx, square(), opts); err != nil {
		t.Fatal(err)
	}
	opts.Layout.Seed = 9
	res, err := r.Execute(ctx, square(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheInfo.LayoutHit {
		t.Error("changed seed should miss the cache")
	}
}

func TestTimeSeededLayoutNotCached(t *testing.T) {
	c := newMemCache()
	r := NewRunner(c, nil, quietLogger())
	opts := Options{Layout: layout.DefaultOptions()}
	opts.Layout.InitialPlacementForces = force.PlacementRandomTime

	if _, err := r.Layout(context.Background(), square(), opts); err != nil {
		t.Fatal(err)
	}
	if c.sets != 0 {
		t.Errorf("cache sets = %d, want 0 for time-seeded placement", c.sets)
	}
}

func TestExecuteRendersDOT(t *testing.T) {
	ctx := context.Background()
	r := NewRunner(newMemCache(), nil, quietLogger())
	opts := Options{Layout: layout.DefaultOptions(), Formats: []string{"dot"}, Labels: true}

	res, err := r.Execute(ctx, square(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	dot := string(res.Artifacts["dot"])
	if !strings.Contains(dot, `"a" -- "b";`) {
		t.Errorf("dot artifact missing edge:\n%s", dot)
	}
	if res.CacheInfo.RenderHit {
		t.Error("first render should miss")
	}

	res, err = r.Execute(ctx, square(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.CacheInfo.RenderHit {
		t.Error("second render should hit")
	}
}

func TestRenderLayoutMismatch(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	l := graph.Layout{Positions: []graph.Position{{ID: "zzz"}}}
	_, err := r.Render(context.Background(), square(), l, Options{Formats: []string{"dot"}})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Render() = %v, want INVALID_INPUT", err)
	}
}

func TestRenderDoesNotMutateGraph(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	g := square()
	l := graph.Layout{Positions: []graph.Position{{ID: "a", X: 5, Y: 6}}}
	if _, err := r.Render(context.Background(), g, l, Options{Formats: []string{"dot"}}); err != nil {
		t.Fatal(err)
	}
	if g.Nodes[0].X != 0 {
		t.Error("Render should not write positions into the caller's graph")
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRunner(nil, nil, quietLogger())
	_, err := r.Execute(ctx, square(), Options{Layout: layout.DefaultOptions()})
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Errorf("Execute() = %v, want CANCELLED", err)
	}
}

func TestExecuteInvalidGraph(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	g := graph.Graph{Nodes: []graph.Node{{ID: "a"}}, Edges: []graph.Edge{{From: "a", To: "b"}}}
	_, err := r.Execute(context.Background(), g, Options{Layout: layout.DefaultOptions()})
	if !errors.Is(err, errors.ErrCodeInvalidGraph) {
		t.Errorf("Execute() = %v, want INVALID_GRAPH", err)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu       sync.Mutex
	starts   int
	levels   int
	complete int
}

func (h *recordingHooks) OnLayoutStart(context.Context, string, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts++
}

func (h *recordingHooks) OnLevelComplete(context.Context, string, int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.levels++
}

func (h *recordingHooks) OnLayoutComplete(context.Context, string, time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.complete++
}

func TestHooksAndProgress(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	var events int
	opts := Options{Layout: layout.DefaultOptions()}
	opts.Layout.Progress = func(layout.Event) { events++ }

	r := NewRunner(nil, nil, quietLogger())
	if _, err := r.Execute(context.Background(), square(), opts); err != nil {
		t.Fatal(err)
	}
	if hooks.starts != 1 || hooks.complete != 1 {
		t.Errorf("hooks start/complete = %d/%d, want 1/1", hooks.starts, hooks.complete)
	}
	if hooks.levels == 0 || hooks.levels != events {
		t.Errorf("level hooks = %d, progress events = %d, want equal and > 0", hooks.levels, events)
	}
}

func TestParseGraph(t *testing.T) {
	tests := []struct {
		name string
		data string
		code errors.Code
	}{
		{"valid", `{"nodes": [{"id": "a"}], "edges": []}`, ""},
		{"bad json", `{"nodes": [`, errors.ErrCodeInvalidGraph},
		{"unknown field", `{"nodes": [{"id": "a", "size": 3}]}`, errors.ErrCodeInvalidGraph},
		{"dangling edge", `{"nodes": [{"id": "a"}], "edges": [{"from": "a", "to": "b"}]}`, errors.ErrCodeInvalidGraph},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseGraph(strings.NewReader(tt.data))
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("ParseGraph() code = %q, want %q (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestLoadGraphAndLayout(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadGraph(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("LoadGraph(missing) = %v, want FILE_NOT_FOUND", err)
	}
	if _, err := LoadLayout(filepath.Join(dir, "missing.json")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("LoadLayout(missing) = %v, want FILE_NOT_FOUND", err)
	}

	path := filepath.Join(dir, "g.json")
	if err := graph.WriteGraphFile(square(), path); err != nil {
		t.Fatal(err)
	}
	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(g.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(g.Nodes))
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGraph(bad); !errors.Is(err, errors.ErrCodeInvalidGraph) {
		t.Errorf("LoadGraph(bad) = %v, want INVALID_GRAPH", err)
	}
	if _, err := LoadLayout(bad); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("LoadLayout(bad) = %v, want INVALID_INPUT", err)
	}
}
