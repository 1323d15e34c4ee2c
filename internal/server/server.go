// Package server exposes accounts and receipts as a local JSON API for the
// UI shell.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/metrics"
	"github.com/zombor/receipt-keeper/internal/receipt"
	"github.com/zombor/receipt-keeper/internal/store"
)

// maxUploadSize caps multipart uploads; phone photos run to tens of MB.
const maxUploadSize = int64(50 << 20)

// HealthChecker reports on the backing store.
type HealthChecker interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Receipts *receipt.Service
	Accounts *auth.Service
	Sessions *auth.Sessions
	Health   HealthChecker
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server handles HTTP requests for accounts and receipts
type Server struct {
	Deps
	mux *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(deps Deps) *Server {
	return NewServerWithMux(deps, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(deps Deps, mux *http.ServeMux) *Server {
	s := &Server{Deps: deps, mux: mux}
	s.registerRoutes()
	return s
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.requireSession(s.handleLogout))
	s.mux.HandleFunc("GET /api/auth/me", s.requireSession(s.handleMe))

	s.mux.HandleFunc("POST /api/recovery/email", s.handleRecoveryEmail)
	s.mux.HandleFunc("POST /api/recovery/answer", s.handleRecoveryAnswer)
	s.mux.HandleFunc("POST /api/recovery/password", s.handleRecoveryPassword)

	s.mux.HandleFunc("POST /api/receipts/scan", s.requireSession(s.handleScanReceipt))
	s.mux.HandleFunc("GET /api/receipts/stores", s.requireSession(s.handleListStores))
	s.mux.HandleFunc("GET /api/receipts/{id}/image", s.requireSession(s.handleGetReceiptImage))
	s.mux.HandleFunc("DELETE /api/receipts/{id}", s.requireSession(s.handleDeleteReceipt))
	s.mux.HandleFunc("GET /api/receipts", s.requireSession(s.handleListReceipts))
	s.mux.HandleFunc("POST /api/receipts", s.requireSession(s.handleSaveReceipt))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Start serves on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP answers CORS preflights, routes the request, and records its
// latency.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	setCORSHeaders(rec)
	if r.Method == http.MethodOptions {
		rec.WriteHeader(http.StatusNoContent)
	} else {
		s.mux.ServeHTTP(rec, r)
	}

	if s.Metrics != nil {
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.Metrics.RequestDuration.
			WithLabelValues(route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
