package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/fm3/pkg/buildinfo"
	"github.com/matzehuels/fm3/pkg/graph"
	"github.com/matzehuels/fm3/pkg/layout"
	"github.com/matzehuels/fm3/pkg/pipeline"
	"github.com/matzehuels/fm3/pkg/render"
)

// =============================================================================
// Request / Response Types
// =============================================================================

// Request is the body of both POST endpoints.
type Request struct {
	Graph graph.Graph `json:"graph"`
	pipeline.Options
}

// LayoutResponse is the body returned by POST /v1/layout.
type LayoutResponse struct {
	RunID     string            `json:"run_id"`
	Layout    graph.Layout      `json:"layout"`
	Artifacts map[string]string `json:"artifacts,omitempty"`
	Cache     CacheStatus       `json:"cache"`
	Timing    Timing            `json:"timing"`
}

// CacheStatus reports which stages were served from the cache.
type CacheStatus struct {
	Layout bool `json:"layout"`
	Render bool `json:"render"`
}

// Timing reports stage durations in milliseconds.
type Timing struct {
	LayoutMS float64 `json:"layout_ms"`
	RenderMS float64 `json:"render_ms"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildinfo.CurrentVersion(),
	})
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	req, err := s.decode(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.runner.Execute(r.Context(), req.Graph, req.Options)
	if err != nil {
		s.logError(r, err)
		writeError(w, err)
		return
	}

	resp := LayoutResponse{
		RunID:  res.RunID,
		Layout: res.Layout,
		Cache:  CacheStatus{Layout: res.CacheInfo.LayoutHit, Render: res.CacheInfo.RenderHit},
		Timing: Timing{
			LayoutMS: float64(res.Stats.LayoutTime.Microseconds()) / 1000,
			RenderMS: float64(res.Stats.RenderTime.Microseconds()) / 1000,
		},
	}
	if len(res.Artifacts) > 0 {
		resp.Artifacts = make(map[string]string, len(res.Artifacts))
		for format, data := range res.Artifacts {
			resp.Artifacts[format] = encodeArtifact(format, data)
		}
	}
	w.Header().Set("X-Run-ID", res.RunID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(format); err != nil {
		writeError(w, err)
		return
	}
	req, err := s.decode(r)
	if err != nil {
		writeError(w, err)
		return
	}
	req.Formats = []string{format}

	res, err := s.runner.Execute(r.Context(), req.Graph, req.Options)
	if err != nil {
		s.logError(r, err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("X-Run-ID", res.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Artifacts[format])
}

// decode reads a request body on top of the default options and applies the
// server's limits, which clients cannot override.
func (s *Server) decode(r *http.Request) (Request, error) {
	req := Request{Options: pipeline.Options{Layout: layout.DefaultOptions()}}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, decodeError(err)
	}
	req.MaxVertices = s.cfg.MaxVertices
	req.MaxEdges = s.cfg.MaxEdges
	req.Logger = s.logger
	clampIterations(&req.Layout, s.cfg.MaxIterations)
	return req, nil
}

// clampIterations bounds the iteration knobs of opts so that no level runs
// more than limit main or fine-tuning iterations.
func clampIterations(opts *layout.Options, limit int) {
	opts.FixedIterations = min(opts.FixedIterations, limit)
	opts.FineTuningIterations = min(opts.FineTuningIterations, limit)
	if opts.FixedIterations > 0 {
		opts.MaxIterFactor = min(opts.MaxIterFactor, max(limit/opts.FixedIterations, 1))
	}
}

func (s *Server) logError(r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		return
	}
	s.logger.Debug("request rejected", "path", r.URL.Path, "err", err)
}

// encodeArtifact returns text formats as is and binary formats as base64.
func encodeArtifact(format string, data []byte) string {
	if format == render.FormatPNG {
		return base64.StdEncoding.EncodeToString(data)
	}
	return string(data)
}

func contentType(format string) string {
	switch format {
	case render.FormatSVG:
		return "image/svg+xml"
	case render.FormatPNG:
		return "image/png"
	default:
		return "text/vnd.graphviz"
	}
}
