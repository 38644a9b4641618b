// Package server exposes a calltrail process over HTTP: its snapshots for
// fleet peers, the record endpoint, local and fleet queries, and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/doeshing/calltrail/internal/application/introspection"
	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/infrastructure/fleet"
	"github.com/doeshing/calltrail/internal/ports"
)

// maxRecordBody bounds a POST /v1/calls payload.
const maxRecordBody = 4 << 20

// Introspector is what the HTTP surface needs from the application.
type Introspector interface {
	Record(ctx context.Context, inv domain.Invocation) (domain.Record, error)
	RecentToolCalls(q domain.HistoryQuery) (introspection.ToolCallsReport, error)
	UsageStats() (introspection.UsageReport, error)
	InspectToolCalls(ctx context.Context, connectionID string, q domain.HistoryQuery) (introspection.ToolCallsReport, error)
	InspectUsageStats(ctx context.Context, connectionID string) (introspection.UsageReport, error)
	UsageSnapshot() (domain.ServerUsage, error)
	HistorySnapshot() (domain.ServerHistory, error)
}

// RequestCounter observes served requests.
type RequestCounter interface {
	HTTPRequest(method, path string, code int)
}

// Options configures a Server.
type Options struct {
	Service           Introspector
	Metrics           http.Handler
	Requests          RequestCounter
	Logger            ports.Logger
	DefaultConnection string
}

// Server is the HTTP surface of `calltrail serve`.
type Server struct {
	opts Options
	mux  *http.ServeMux
}

// New registers every route.
func New(opts Options) *Server {
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET "+fleet.UsageSnapshotPath, s.handleUsageSnapshot)
	s.mux.HandleFunc("GET "+fleet.HistorySnapshotPath, s.handleHistorySnapshot)
	s.mux.HandleFunc("POST "+fleet.RecordPath, s.handleRecord)
	s.mux.HandleFunc("GET "+fleet.RecordPath, s.handleCalls)
	s.mux.HandleFunc("GET /v1/usage", s.handleUsage)
	s.mux.HandleFunc("GET /v1/fleet/calls", s.handleFleetCalls)
	s.mux.HandleFunc("GET /v1/fleet/usage", s.handleFleetUsage)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics)
	}
	return s
}

// Handler returns the root handler with request accounting.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		if s.opts.Requests != nil {
			_, pattern := s.mux.Handler(r)
			if pattern == "" {
				pattern = "unmatched"
			}
			s.opts.Requests.HTTPRequest(r.Method, pattern, rec.status)
		}
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.info("http server listening", map[string]interface{}{"addr": listener.Addr().String()})

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsageSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.opts.Service.UsageSnapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistorySnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.opts.Service.HistorySnapshot()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var inv domain.Invocation
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRecordBody))
	if err := dec.Decode(&inv); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", domain.ErrInvalidInvocation, err))
		return
	}
	rec, err := s.opts.Service.Record(r.Context(), inv)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.opts.Service.RecentToolCalls(q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUsage(w http.ResponseWriter, _ *http.Request) {
	report, err := s.opts.Service.UsageStats()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFleetCalls(w http.ResponseWriter, r *http.Request) {
	q, err := parseHistoryQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	report, err := s.opts.Service.InspectToolCalls(r.Context(), s.connection(r), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleFleetUsage(w http.ResponseWriter, r *http.Request) {
	report, err := s.opts.Service.InspectUsageStats(r.Context(), s.connection(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) connection(r *http.Request) string {
	if id := r.URL.Query().Get("connection"); id != "" {
		return id
	}
	return s.opts.DefaultConnection
}

func parseHistoryQuery(r *http.Request) (domain.HistoryQuery, error) {
	values := r.URL.Query()
	q := domain.DefaultHistoryQuery()
	q.ToolName = values.Get("tool_name")
	q.Since = values.Get("since")
	if raw := values.Get("max_results"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: max_results %q is not an integer", domain.ErrInvalidFilter, raw)
		}
		q.MaxResults = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, fmt.Errorf("%w: offset %q is not an integer", domain.ErrInvalidFilter, raw)
		}
		q.Offset = n
	}
	return q, nil
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError && s.opts.Logger != nil {
		s.opts.Logger.Error("request failed", err, nil)
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidFilter),
		errors.Is(err, domain.ErrInvalidInvocation),
		errors.Is(err, domain.ErrMissingConnection):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownConnection):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) info(msg string, fields map[string]interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Info(msg, fields)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
