// Package server exposes the layout engine over HTTP.
//
// # Endpoints
//
//	GET  /healthz     liveness and build info
//	POST /v1/layout   balance a collection, returns layout.Layout
//	POST /v1/window   balance and window a collection, returns layout.Window
//	GET  /v1/stream   websocket: one live coordinator per connection
//
// Errors are JSON objects of the form
//
//	{"error": {"code": "INVALID_CONFIG", "message": "max_columns must be >= 1, got 0"}}
//
// with the HTTP status derived from the code (see [StatusFor]).
//
// Layout requests share the pipeline cache under the "api:" key scope.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/matzehuels/masonry/pkg/buildinfo"
	"github.com/matzehuels/masonry/pkg/cache"
	"github.com/matzehuels/masonry/pkg/core/masonry"
	"github.com/matzehuels/masonry/pkg/errors"
	"github.com/matzehuels/masonry/pkg/observability"
	"github.com/matzehuels/masonry/pkg/pipeline"
	"github.com/matzehuels/masonry/pkg/source"
	"github.com/matzehuels/masonry/pkg/viewport"
)

const (
	// maxBodyBytes bounds request bodies.
	maxBodyBytes = 8 << 20

	shutdownTimeout = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	Addr string

	// RateLimit is the sustained request rate per second across all
	// clients; 0 disables limiting.
	RateLimit float64
	RateBurst int

	// Layout defaults for requests that leave fields unset, and for stream
	// sessions.
	Layout    masonry.Config
	Buffer    int
	Threshold float64

	// Source seeds stream sessions. Nil disables /v1/stream.
	Source   source.Source
	PageSize int
}

// DefaultConfig returns a config listening on :8080 with engine defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		Layout:    masonry.DefaultConfig(),
		Buffer:    viewport.DefaultBuffer,
		Threshold: viewport.DefaultThreshold,
		PageSize:  source.DefaultPageSize,
	}
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	runner   *pipeline.Runner
	logger   *log.Logger
	router   chi.Router
	limiter  *rate.Limiter
	upgrader websocket.Upgrader

	srcMu sync.RWMutex
	src   source.Source

	baseCtx  context.Context
	cancel   context.CancelFunc
	sessions atomic.Int64
	wg       sync.WaitGroup
}

// New builds a server around runner. The runner's keyer is wrapped so API
// layouts are cached apart from CLI ones; runner itself is not modified.
func New(cfg Config, runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	cfg.Layout = cfg.Layout.WithDefaults()
	if cfg.PageSize <= 0 {
		cfg.PageSize = source.DefaultPageSize
	}

	scoped := *runner
	scoped.Keyer = cache.NewScopedKeyer(runner.Keyer, "api:")
	scoped.Logger = logger

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		src:     cfg.Source,
		runner:  &scoped,
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
		},
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(serverHeader)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/layout", s.handleLayout)
		r.Post("/window", s.handleWindow)
		r.Get("/stream", s.handleStream)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, errors.New(errors.ErrCodeNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: apiError{
			Code:    errors.ErrCodeInvalidInput,
			Message: fmt.Sprintf("method %s not allowed on %s", r.Method, r.URL.Path),
		}})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Source returns the source new stream sessions page from.
func (s *Server) Source() source.Source {
	s.srcMu.RLock()
	defer s.srcMu.RUnlock()
	return s.src
}

// SetSource replaces the source for new stream sessions and returns the
// previous one. Open sessions keep paging from the source they started with.
func (s *Server) SetSource(src source.Source) source.Source {
	s.srcMu.Lock()
	defer s.srcMu.Unlock()
	prev := s.src
	s.src = src
	return prev
}

// Sessions returns the number of open stream sessions.
func (s *Server) Sessions() int { return int(s.sessions.Load()) }

// Start binds cfg.Addr and serves until ctx is cancelled, then shuts down
// gracefully and closes open stream sessions. It returns nil on a clean
// shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}
	srv.RegisterOnShutdown(s.cancel)

	s.logger.Info("server listening", "addr", ln.Addr().String(), "version", buildinfo.Version)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutCtx)
		s.wg.Wait()
		s.logger.Info("server stopped")
		return err
	case err := <-errCh:
		s.cancel()
		s.wg.Wait()
		return err
	}
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, status, elapsed)

		logFn := s.logger.Info
		if status >= http.StatusInternalServerError {
			logFn = s.logger.Error
		}
		logFn("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, errors.New(errors.ErrCodeRateLimited, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func serverHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", buildinfo.ServerHeader())
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Responses
// =============================================================================

type apiError struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidPhoto,
		errors.ErrCodeInvalidSource, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeSourceExhausted:
		return http.StatusGone
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError converts any error to its wire form. Errors without a code are
// reported as INTERNAL_ERROR.
func toAPIError(err error) apiError {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return apiError{Code: code, Message: errors.UserMessage(err)}
}

func writeError(w http.ResponseWriter, err error) {
	e := toAPIError(err)
	writeJSON(w, StatusFor(e.Code), errorBody{Error: e})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
