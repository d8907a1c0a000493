package receipt

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Server handles HTTP requests for fuel transactions
type Server struct {
	service    *Service
	basicAuth  BasicAuth
	mux        *http.ServeMux
	httpServer *http.Server
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(credentials[0]), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(credentials[1]), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Fuel Receipts"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/receipts/scan", s.requireAuth(s.handleScanReceipt))

	s.mux.HandleFunc("GET /api/transactions/{id}/receipt", s.requireAuth(s.handleGetReceiptFile))
	s.mux.HandleFunc("GET /api/transactions/{id}", s.requireAuth(s.handleGetTransaction))
	s.mux.HandleFunc("PATCH /api/transactions/{id}", s.requireAuth(s.handleCorrectTransaction))
	s.mux.HandleFunc("DELETE /api/transactions/{id}", s.requireAuth(s.handleDeleteTransaction))
	s.mux.HandleFunc("GET /api/transactions", s.requireAuth(s.handleListTransactions))
	s.mux.HandleFunc("POST /api/transactions", s.requireAuth(s.handleCreateTransaction))

	// Receipt image URLs for local storage point here
	s.mux.HandleFunc("GET /files/{name}", s.requireAuth(s.handleGetFile))
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones to finish
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
