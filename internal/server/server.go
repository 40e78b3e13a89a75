package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"bookhook/internal/booking"
	"bookhook/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 30 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware
	RequestTimeout = 30 * time.Second

	healthCheckTimeout = 2 * time.Second
)

// DeliveryLog records the outcome of every inbound delivery
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, record *booking.DeliveryRecord) (string, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Settings configures the intake endpoint
type Settings struct {
	// Path is the webhook route, e.g. "/webhook"
	Path string

	Secret string

	// MaxSkew bounds the age of a signature; zero disables the check
	MaxSkew time.Duration
}

// Server represents the HTTP server
type Server struct {
	Settings   Settings
	Dispatcher *webhook.Dispatcher
	Deliveries DeliveryLog // optional
	Health     Pinger      // optional
	Logger     *slog.Logger

	now func() time.Time

	mu         sync.Mutex
	httpServer *http.Server
}

// NewServer creates a new server instance
func NewServer(settings Settings, dispatcher *webhook.Dispatcher, logger *slog.Logger) *Server {
	if settings.Path == "" {
		settings.Path = "/webhook"
	}

	return &Server{
		Settings:   settings,
		Dispatcher: dispatcher,
		Logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Routes
	r.Get("/health", s.HandleHealth)
	r.Post(s.Settings.Path, s.HandleWebhook)

	return r
}

// logRequests logs one line per request after it completes
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.Logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
				"duration_ms", time.Since(start).Milliseconds())
		}()

		next.ServeHTTP(ww, r)
	})
}

// Start listens on addr and serves until Shutdown is called
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.Logger.Info("server_listening", "addr", addr, "webhook_path", s.Settings.Path)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight deliveries
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
