// Package server exposes the upload endpoint, the template and export
// downloads, health and metrics over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"roster/ingest"
	"roster/store"
)

type Ingester interface {
	Ingest(ctx context.Context, data []byte) (ingest.Result, error)
}

// Directory is the read side of the people store used by export.
type Directory interface {
	Search(ctx context.Context, f store.Filter) ([]store.Entry, int64, error)
}

type History interface {
	RecordUpload(ctx context.Context, up *store.Upload) error
}

type Options struct {
	Ingester       Ingester
	People         Directory
	History        History
	Aliases        ingest.AliasTable
	MaxUploadBytes int64
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

type Server struct {
	ing       Ingester
	people    Directory
	history   History
	aliases   ingest.AliasTable
	maxUpload int64
	origins   []string
	log       logrus.FieldLogger
}

func New(opts Options) (*Server, error) {
	if opts.Ingester == nil || opts.People == nil || opts.History == nil {
		return nil, errors.New("server: ingester, people and history are required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if len(opts.Aliases) == 0 {
		opts.Aliases = ingest.DefaultAliases()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Server{
		ing:       opts.Ingester,
		people:    opts.People,
		history:   opts.History,
		aliases:   opts.Aliases,
		maxUpload: opts.MaxUploadBytes,
		origins:   opts.AllowedOrigins,
		log:       opts.Log,
	}, nil
}

func (s *Server) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	api.HandleFunc("/template", s.handleTemplate).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(withLogging(s.log))
	s.Register(r)
	r.NotFoundHandler = withLogging(s.log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = WriteError(w, http.StatusNotFound, "Not found")
	}))
	r.MethodNotAllowedHandler = withLogging(s.log)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}))
	return r
}

// Handler is the router wrapped with gzip and, when origins are configured,
// CORS.
func (s *Server) Handler() http.Handler {
	h := gziphandler.GzipHandler(s.Router())
	if len(s.origins) == 0 {
		return h
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "Content-Disposition"},
	}).Handler(h)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
