// Package server exposes the flow engine over HTTP, server-sent events and
// the Model Context Protocol.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/flowrun/flowrun/internal/flow"
	"github.com/flowrun/flowrun/internal/format"
	"github.com/flowrun/flowrun/internal/history"
	"github.com/flowrun/flowrun/internal/logging"
)

const (
	maxRequestBody  = 1 << 20
	shutdownTimeout = 10 * time.Second
)

// RunRequest is the body of run and stream requests.
type RunRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// RunResponse carries the run record and the formatted final output.
type RunResponse struct {
	Output  any                    `json:"output,omitempty"`
	Context *flow.ExecutionContext `json:"context"`
	Error   string                 `json:"error,omitempty"`
}

type FlowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Steps       int    `json:"steps"`
	Disabled    bool   `json:"disabled,omitempty"`
	Location    string `json:"location,omitempty"`
}

type Server struct {
	flows   *flow.Service
	history history.Service
	mcp     *mcpserver.MCPServer
	mux     *http.ServeMux
}

type Option func(*Server)

// WithHistory serves recorded runs under /runs.
func WithHistory(h history.Service) Option {
	return func(s *Server) { s.history = h }
}

// WithMCP mounts the MCP server at /mcp using the streamable HTTP transport.
func WithMCP(m *mcpserver.MCPServer) Option {
	return func(s *Server) { s.mcp = m }
}

func New(flows *flow.Service, opts ...Option) *Server {
	s := &Server{flows: flows, mux: http.NewServeMux()}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /flows", s.handleListFlows)
	s.mux.HandleFunc("GET /flows/{id}", s.handleGetFlow)
	s.mux.HandleFunc("POST /flows/{id}/run", s.handleRun)
	s.mux.HandleFunc("POST /flows/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /flows/{id}/stream", s.handleStream)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /logs", s.handleLogs)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.history != nil {
		s.mux.HandleFunc("GET /runs", s.handleListRuns)
		s.mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
		s.mux.HandleFunc("DELETE /runs/{id}", s.handleDeleteRun)
	}
	if s.mcp != nil {
		s.mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcp))
	}
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logging.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.flows.Flows().Filter(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]FlowSummary, 0, len(flows))
	for _, f := range flows {
		out = append(out, summarize(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.flows.GetFlow(r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id := r.PathValue("id")
	ectx, err := s.flows.Run(r.Context(), req.Query, id, req.Context)
	if err != nil && ectx == nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp := RunResponse{Context: ectx}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	if last, ok := ectx.LastResult(); ok {
		spec := format.Spec{}
		if f, ferr := s.flows.GetFlow(id); ferr == nil {
			spec = f.Output
		}
		if v := r.URL.Query().Get("format"); v != "" {
			parsed, perr := format.Parse(v)
			if perr != nil {
				writeError(w, http.StatusBadRequest, perr)
				return
			}
			spec.Format = parsed
		}
		resp.Output = format.Format(last.Output, spec)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs := logging.List()
	if level := r.URL.Query().Get("level"); level != "" {
		filtered := logs[:0]
		for _, l := range logs {
			if l.Level == level {
				filtered = append(filtered, l)
			}
		}
		logs = filtered
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.history.List(r.Context(), r.URL.Query().Get("flow"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeRunRequest(w http.ResponseWriter, r *http.Request) (RunRequest, error) {
	var req RunRequest
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("q")
		return req, nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		return req, errors.New("invalid request body: " + err.Error())
	}
	return req, nil
}

func summarize(f flow.Flow) FlowSummary {
	return FlowSummary{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Steps:       len(f.Steps),
		Disabled:    f.Disabled,
		Location:    f.Location,
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flow.ErrFlowNotFound), errors.Is(err, history.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, flow.ErrFlowDisabled):
		return http.StatusConflict
	case errors.Is(err, flow.ErrStepLimitExceeded), errors.Is(err, flow.ErrStepNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, flow.ErrRunCancelled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
