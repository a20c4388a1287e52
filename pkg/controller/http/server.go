package http

import (
	"context"
	"net/http"
	"time"

	"github.com/DevTable/BitBucket-api/pkg/domain/interfaces"
	"github.com/DevTable/BitBucket-api/pkg/utils/async"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
)

// config holds internal HTTP server configuration
type config struct {
	addr        string
	fs          afero.Fs
	archiveJobs bool
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithFS sets the filesystem the archive use case writes to. It must match
// the one given to the use case.
func WithFS(fs afero.Fs) Option {
	return func(c *config) {
		c.fs = fs
	}
}

// WithArchiveJobs enables the asynchronous archive endpoint. The archive use
// case must have a store.
func WithArchiveJobs() Option {
	return func(c *config) {
		c.archiveJobs = true
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
	jobs *async.Runner
}

// Shutdown stops accepting requests and waits for running archive jobs
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.Server.Shutdown(ctx); err != nil {
		return err
	}
	return s.jobs.Wait(ctx)
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	archiveUC interfaces.ArchiveUseCase,
	repositoryUC interfaces.RepositoryUseCase,
	opts ...Option,
) (*Server, error) {
	cfg := &config{
		addr: "localhost:8080",
		fs:   afero.NewOsFs(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)

	router.Get("/health", handleHealth)

	jobs := &async.Runner{}
	archive := &archiveHandler{
		archiveUC: archiveUC,
		fs:        cfg.fs,
		jobs:      cfg.archiveJobs,
		runner:    jobs,
	}
	repository := &repositoryHandler{repositoryUC: repositoryUC}

	router.Route("/repositories/{slug}", func(r chi.Router) {
		r.Get("/", repository.handleGet)
		r.Get("/archive", archive.handleDownload)
		r.Post("/archive/jobs", archive.handleJob)
	})

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
		jobs: jobs,
	}

	return server, nil
}
