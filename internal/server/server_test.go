package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/fm3/pkg/cache"
	"github.com/matzehuels/fm3/pkg/errors"
	"github.com/matzehuels/fm3/pkg/observability"
	"github.com/matzehuels/fm3/pkg/pipeline"
)

const triangle = `{
	"graph": {
		"nodes": [{"id": "a"}, {"id": "b"}, {"id": "c"}],
		"edges": [{"from": "a", "to": "b"}, {"from": "b", "to": "c"}, {"from": "c", "to": "a"}]
	},
	"layout": {"seed": 3}
}`

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
	ts := httptest.NewServer(New(runner, cfg, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeErrorCode(t *testing.T, resp *http.Response) errors.Code {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestLayout(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp := post(t, ts.URL+"/v1/layout", triangle)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.RunID == "" || resp.Header.Get("X-Run-ID") != body.RunID {
		t.Errorf("RunID = %q, header %q", body.RunID, resp.Header.Get("X-Run-ID"))
	}
	if len(body.Layout.Positions) != 3 {
		t.Errorf("positions = %d, want 3", len(body.Layout.Positions))
	}
	if len(body.Artifacts) != 0 {
		t.Errorf("artifacts = %v, want none without formats", body.Artifacts)
	}
}

func TestLayoutWithFormats(t *testing.T) {
	ts := newTestServer(t, Config{})
	body := strings.Replace(triangle, `"layout": {"seed": 3}`, `"layout": {"seed": 3}, "formats": ["dot"], "labels": true`, 1)
	resp := post(t, ts.URL+"/v1/layout", body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.Artifacts["dot"], "graph G {") {
		t.Errorf("dot artifact = %q", out.Artifacts["dot"])
	}
}

func TestRender(t *testing.T) {
	ts := newTestServer(t, Config{})
	resp := post(t, ts.URL+"/v1/render/dot", triangle)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/vnd.graphviz" {
		t.Errorf("Content-Type = %q, want text/vnd.graphviz", ct)
	}
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t, Config{MaxVertices: 2, MaxBodySize: 4096})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   errors.Code
	}{
		{"malformed", "/v1/layout", `{"graph":`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown field", "/v1/layout", `{"grahp": {}}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"client limit", "/v1/layout", `{"max_vertices": 1}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"unknown enum", "/v1/layout", `{"layout": {"force_model": "springy"}}`, http.StatusBadRequest, errors.ErrCodeInvalidConfig},
		{"bad format", "/v1/render/pdf", triangle, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"unknown vertex", "/v1/layout", `{"graph": {"nodes": [{"id": "a"}], "edges": [{"from": "a", "to": "x"}]}}`, http.StatusBadRequest, errors.ErrCodeInvalidGraph},
		{"too many vertices", "/v1/layout", triangle, http.StatusRequestEntityTooLarge, errors.ErrCodeTooLarge},
		{"body too large", "/v1/layout", `{"graph": {"nodes": [` + strings.Repeat(`{"id": "n"},`, 1000) + `{"id": "z"}]}}`, http.StatusRequestEntityTooLarge, errors.ErrCodeTooLarge},
		{"no route", "/v2/layout", triangle, http.StatusNotFound, errors.ErrCodeFileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if code := decodeErrorCode(t, resp); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidPath, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeUnavailable, "x"), http.StatusServiceUnavailable},
		{errors.Wrap(errors.ErrCodeCancelled, context.Canceled, "x"), statusClientClosedRequest},
		{errors.Wrap(errors.ErrCodeCancelled, context.DeadlineExceeded, "x"), http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New(errors.ErrCodeInternal, "x"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

type recordingHooks struct {
	observability.NoopServerHooks
	mu     sync.Mutex
	routes []string
	status []int
}

func (h *recordingHooks) OnResponse(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, method+" "+route)
	h.status = append(h.status, status)
}

func TestServerHooks(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetServerHooks(hooks)
	t.Cleanup(observability.Reset)

	ts := newTestServer(t, Config{})
	resp := post(t, ts.URL+"/v1/render/dot", triangle)
	_, _ = io.ReadAll(resp.Body)

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.routes) != 1 {
		t.Fatalf("routes = %v, want one", hooks.routes)
	}
	if hooks.routes[0] != "POST /v1/render/{format}" || hooks.status[0] != http.StatusOK {
		t.Errorf("hook = %s %d, want POST /v1/render/{format} 200", hooks.routes[0], hooks.status[0])
	}
}

func TestListenAndServeShutdown(t *testing.T) {
	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
	srv := New(runner, Config{Addr: "127.0.0.1:0"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}
}

func TestDecodeClampsIterations(t *testing.T) {
	s := New(pipeline.NewRunner(cache.NewNullCache(), nil, nil), Config{MaxIterations: 1000}, nil)
	tests := []struct {
		name                   string
		layout                 string
		fixed, factor, fineTun int
	}{
		{"defaults kept", `{}`, 30, 10, 20},
		{"fixed", `{"fixed_iterations": 3000000}`, 1000, 1, 20},
		{"factor", `{"fixed_iterations": 100, "max_iter_factor": 500}`, 100, 10, 20},
		{"fine tuning", `{"fine_tuning_iterations": 99999}`, 30, 10, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"graph": {"nodes": [{"id": "a"}]}, "layout": ` + tt.layout + `}`
			r := httptest.NewRequest(http.MethodPost, "/v1/layout", strings.NewReader(body))
			req, err := s.decode(r)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			lo := req.Layout
			if lo.FixedIterations != tt.fixed || lo.MaxIterFactor != tt.factor || lo.FineTuningIterations != tt.fineTun {
				t.Errorf("iterations = (%d, %d, %d), want (%d, %d, %d)",
					lo.FixedIterations, lo.MaxIterFactor, lo.FineTuningIterations, tt.fixed, tt.factor, tt.fineTun)
			}
		})
	}
}

func TestTimeoutInterruptsLayout(t *testing.T) {
	ts := newTestServer(t, Config{Timeout: 100 * time.Millisecond, MaxIterations: 1 << 30})
	body := strings.Replace(triangle, `"layout": {"seed": 3}`,
		`"layout": {"seed": 3, "stop_criterion": "fixed_iterations", "fixed_iterations": 300000000}`, 1)

	start := time.Now()
	resp := post(t, ts.URL+"/v1/layout", body)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", resp.StatusCode)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("request took %v, want prompt timeout", elapsed)
	}
}
