package expense

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server handles HTTP requests for expenses
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
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
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(next http.Handler) http.Handler {
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
			w.Header().Set("WWW-Authenticate", `Basic realm="Expense Scanner"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/expenses/{id}/file", s.requireAuth(s.handleGetExpenseFile))
	s.mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	s.mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	s.mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleUploadReceipt))

	s.mux.HandleFunc("POST /api/users", s.requireAuth(s.handleRegisterUser))

	s.mux.HandleFunc("GET /api/summary/daily", s.requireAuth(s.handleDailySummary))
	s.mux.HandleFunc("GET /api/summary/monthly", s.requireAuth(s.handleMonthlySummary))
	s.mux.HandleFunc("GET /api/export.csv", s.requireAuth(s.handleExportCSV))
}

// EnableMetrics serves gatherer at /metrics and counts requests on reg
func (s *Server) EnableMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) http.Handler {
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "expense_scanner",
		Name:      "http_requests_total",
		Help:      "HTTP requests by status code and method.",
	}, []string{"code", "method"})
	reg.MustRegister(requests)
	return promhttp.InstrumentHandlerCounter(requests, s)
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.mux)
}

// Start serves HTTP on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string, handler http.Handler) error {
	if handler == nil {
		handler = s.Handler()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ServeHTTP implements http.Handler with CORS handling
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
