// Package web serves the duplicate finder as a small HTML application.
//
// Every scan request is independent and stateless: the form posts a root
// path (and equivalence mode), one scan runs on the request's context, and
// the result renders as HTML. net/http serves connections concurrently, so
// a long scan never blocks other clients. Cancelling the request (client
// disconnect) aborts the scan between units.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ivoronin/mediadupes/internal/config"
	"github.com/ivoronin/mediadupes/internal/engine"
	"github.com/ivoronin/mediadupes/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the HTML front end. It never enables the digest cache or
// progress output; scans triggered over HTTP are always stateless.
type Server struct {
	cfg  config.Config
	log  *zap.Logger
	tmpl *template.Template

	registry     *prometheus.Registry
	scansTotal   prometheus.Counter
	scanFailures prometheus.Counter
	scanSeconds  prometheus.Histogram
}

// New creates a Server with its own metrics registry, so multiple servers
// (and tests) never collide on metric registration.
func New(cfg config.Config, log *zap.Logger) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"ibytes": func(n int64) string { return humanize.IBytes(uint64(n)) },
		"hex64":  func(v uint64) string { return fmt.Sprintf("%016x", v) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		log:      log,
		tmpl:     tmpl,
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediadupes_scans_total",
			Help: "Completed scan requests.",
		}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mediadupes_scan_failures_total",
			Help: "Scan requests aborted by cancellation or bad input.",
		}),
		scanSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediadupes_scan_duration_seconds",
			Help:    "Wall-clock scan duration.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	s.registry.MustRegister(s.scansTotal, s.scanFailures, s.scanSeconds)
	return s, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/scan", s.handleScan).Methods("POST")
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// indexView feeds the form template.
type indexView struct {
	Message string
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.render(w, "index.html", indexView{})
}

// resultsView feeds the results template; sizes are pre-humanized so the
// template stays declarative.
type resultsView struct {
	Root           string
	Mode           string
	ElapsedSeconds float64
	Candidates     int
	Hashed         int
	FileGroups     []types.FileGroup
	DirGroups      []types.DirectoryGroup
	Notes          []types.ErrorNote
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.scanFailures.Inc()
		s.render(w, "index.html", indexView{Message: "Malformed form submission."})
		return
	}

	path := r.PostFormValue("path")
	if path == "" {
		s.scanFailures.Inc()
		s.render(w, "index.html", indexView{Message: "Please provide a path."})
		return
	}

	// The web form defaults to structural comparison (identical layout and
	// content), matching what users expect from "duplicate folders".
	mode := types.ModeStructural
	if m := r.PostFormValue("mode"); m != "" {
		var err error
		mode, err = types.ParseDirectoryMode(m)
		if err != nil {
			s.scanFailures.Inc()
			s.render(w, "index.html", indexView{Message: err.Error()})
			return
		}
	}

	cfg := s.cfg
	cfg.DirectoryMode = mode

	s.log.Info("scan requested", zap.String("path", path), zap.String("mode", string(mode)))
	start := time.Now()
	res, err := engine.New(cfg, nil, false).Scan(r.Context(), path)
	if err != nil {
		// Only cancellation reaches here; the client is gone.
		s.scanFailures.Inc()
		s.log.Warn("scan aborted", zap.String("path", path), zap.Error(err))
		return
	}
	s.scansTotal.Inc()
	s.scanSeconds.Observe(time.Since(start).Seconds())
	s.log.Info("scan finished",
		zap.String("path", path),
		zap.Int("file_groups", len(res.FileGroups)),
		zap.Int("dir_groups", len(res.DirGroups)),
		zap.Int("notes", len(res.Notes)),
		zap.Duration("elapsed", res.Elapsed))

	s.render(w, "results.html", resultsView{
		Root:           res.Root,
		Mode:           string(mode),
		ElapsedSeconds: res.Elapsed.Seconds(),
		Candidates:     res.CandidateFiles,
		Hashed:         res.HashedFiles,
		FileGroups:     res.FileGroups,
		DirGroups:      res.DirGroups,
		Notes:          res.Notes,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("render failed", zap.String("template", name), zap.Error(err))
	}
}
