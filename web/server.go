// ABOUTME: Dashboard HTTP server exposing the session to browsers via a chi router.
// ABOUTME: Serves the page, JSON state, a snapshot event stream, run start, kernel control and the report.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/mop/config"
	"github.com/2389-research/mop/kernel"
	"github.com/2389-research/mop/project"
	"github.com/2389-research/mop/render"
	"github.com/2389-research/mop/session"
	"github.com/2389-research/mop/stream"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:2390"

const (
	maxProblemBytes = 64 << 10
	exportMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Kernel is the administrative control channel the dashboard drives.
type Kernel interface {
	session.Stopper
	session.Resetter
	History(ctx context.Context) ([]kernel.Event, error)
	Export(ctx context.Context) ([]byte, error)
}

var _ Kernel = (*kernel.Channel)(nil)

// ServerConfig holds the configuration for the dashboard server.
type ServerConfig struct {
	Addr      string
	Session   *session.Session
	Transport stream.Transport
	Kernel    Kernel
	Catalog   config.Config
	Projector *project.Projector
	Logger    *slog.Logger
	Now       func() time.Time
}

// Server is the dashboard HTTP server.
type Server struct {
	addr      string
	session   *session.Session
	transport stream.Transport
	kernel    Kernel
	catalog   config.Config
	projector *project.Projector
	templates *TemplateEngine
	router    chi.Router
	logger    *slog.Logger
	now       func() time.Time

	// Runs started over HTTP outlive their request; they end with the server.
	ctx    context.Context
	cancel context.CancelFunc
	runs   sync.WaitGroup
}

// NewServer creates a dashboard server from cfg.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Session == nil {
		return nil, errors.New("session must not be nil")
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Projector == nil {
		cfg.Projector = project.New(cfg.Catalog.CardAgents(), nil)
	}

	tmpl, err := NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("initializing templates: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:      cfg.Addr,
		session:   cfg.Session,
		transport: cfg.Transport,
		kernel:    cfg.Kernel,
		catalog:   cfg.Catalog,
		projector: cfg.Projector,
		templates: tmpl,
		logger:    cfg.Logger.With("component", "web"),
		now:       cfg.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP implements http.Handler by delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Open event streams end with ctx.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Close cancels runs started over HTTP and waits for them to finish.
func (s *Server) Close() {
	s.cancel()
	s.runs.Wait()
}

// buildRouter constructs the chi router with all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/events", s.handleEvents)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/cancel", s.handleCancel)
	r.Get("/report", s.handleReport)

	r.Route("/kernel", func(r chi.Router) {
		r.Post("/stop", s.handleKernelStop)
		r.Post("/reset", s.handleKernelReset)
		r.Get("/history", s.handleKernelHistory)
		r.Get("/history/export", s.handleKernelExport)
	})

	return r
}

func (s *Server) state() StateView {
	return buildState(s.session.Snapshot(), s.catalog, s.projector, s.now())
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:   "Multi-agent analysis",
		Agents:  cardAgents(s.catalog),
		State:   s.state(),
		BackURL: s.catalog.BackURL,
	}
	if id := s.catalog.FinalAgent(); id != "" {
		a := s.catalog.Agent(id)
		data.Final = &a
	}
	if err := s.templates.Render(w, "dashboard.html", data); err != nil {
		s.logger.Error("render dashboard", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

// handleEvents streams snapshots as SSE "snapshot" events. The subscription
// delivers the current snapshot first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	updates, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeSnapshot(w, snap); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeSnapshot(w io.Writer, snap session.Snapshot) error {
	data, err := json.Marshal(buildState(snap, s.catalog, s.projector, s.now()))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
	return err
}

// handleAnalyze starts a run of the submitted problem. The run continues
// after the request returns.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	problem, err := readProblem(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id, done, err := s.session.Go(s.ctx, s.transport, problem)
	if errors.Is(err, session.ErrRunActive) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		res := <-done
		if res.Err != nil {
			s.logger.Warn("run failed", "run_id", id, "error", res.Err)
		}
	}()

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": id, "status": "started"})
}

// readProblem accepts a JSON body {"problem": "..."} or a form field.
func readProblem(w http.ResponseWriter, r *http.Request) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProblemBytes)

	var problem string
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body struct {
			Problem string `json:"problem"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("invalid request body: %w", err)
		}
		problem = body.Problem
	} else {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("invalid form: %w", err)
		}
		problem = r.PostFormValue("problem")
	}

	problem = strings.TrimSpace(problem)
	if problem == "" {
		return "", errors.New("problem must not be empty")
	}
	return problem, nil
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Cancel(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func (s *Server) handleKernelStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireKernel(w) {
		return
	}
	if err := s.session.Stop(r.Context(), s.kernel); err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleKernelReset(w http.ResponseWriter, r *http.Request) {
	if !s.requireKernel(w) {
		return
	}
	if err := s.session.Reset(r.Context(), s.kernel); err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// historyEntry is a stop event with its display fields.
type historyEntry struct {
	kernel.Event
	When  string `json:"when"`
	Label string `json:"label"`
}

func (s *Server) handleKernelHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireKernel(w) {
		return
	}
	events, err := s.kernel.History(r.Context())
	if err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}
	entries := make([]historyEntry, 0, len(events))
	for _, e := range events {
		entries = append(entries, historyEntry{Event: e, When: e.When(), Label: e.Label()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (s *Server) handleKernelExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireKernel(w) {
		return
	}
	data, err := s.kernel.Export(r.Context())
	if err != nil {
		writeError(w, upstreamStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", exportMediaType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": kernel.ExportFileName(s.now())}))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleReport renders the current run as an HTML page, or as markdown when
// format=md is requested.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep := render.FromSnapshot(s.session.Snapshot(), s.catalog, s.projector, s.now())

	if f := r.URL.Query().Get("format"); f == "md" || f == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, rep.Markdown())
		return
	}

	page, err := rep.HTMLPage()
	if err != nil {
		s.logger.Error("render report", "error", err)
		http.Error(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page)
}

func (s *Server) requireKernel(w http.ResponseWriter) bool {
	if s.kernel == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("kernel control is not configured"))
		return false
	}
	return true
}

// upstreamStatus maps a failed call to the analysis server onto a gateway
// status.
func upstreamStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// wantsJSON returns true if the request prefers JSON over HTML based on
// the Accept header. Defaults to JSON when no Accept header is set or when
// Accept contains */* (wildcard).
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	if strings.Contains(accept, "text/html") {
		return false
	}
	return strings.Contains(accept, "application/json") || strings.Contains(accept, "*/*")
}
