package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expenseflow/internal/log"
	"expenseflow/internal/middleware/identity"
	"expenseflow/internal/middleware/ratelimit"
	"expenseflow/internal/middleware/security"
	"expenseflow/internal/middleware/trace"
	"expenseflow/internal/services"
)

// Deps are the services the API exposes. Ready is polled by /readyz.
type Deps struct {
	Users      *services.UserService
	Categories *services.CategoryService
	Expenses   *services.ExpenseService
	Reports    *services.ReportService
	Transfer   *services.TransferService
	Ready      func(ctx context.Context) error
}

// Options tune the middleware chain.
type Options struct {
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	logger   *log.Logger

	shutdownOnce sync.Once
}

// NewServer wires the routes and middleware. Every /api route requires the
// proxy identity headers.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := log.Default(log.ComponentHTTP)
	detector := security.NewDetector()
	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		logger:   logger,
	}

	api := http.NewServeMux()
	s.routes(api)

	var apiHandler http.Handler = api
	apiHandler = s.limiter.Middleware(s.rateLimitKey, func(w http.ResponseWriter, r *http.Request) {
		log.Default(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		writeError(w, r, errTooManyRequests)
	})(apiHandler)
	apiHandler = identity.Middleware(deps.Users, writeError)(apiHandler)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/api/", apiHandler)

	var handler http.Handler = root
	handler = s.tracer.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/user", s.handleAuthUser)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("GET /api/expenses/{id}/history", s.handleExpenseHistory)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("POST /api/expenses/{id}/approve", s.handleApproveExpense)
	mux.HandleFunc("POST /api/expenses/{id}/reject", s.handleRejectExpense)
	mux.HandleFunc("POST /api/expenses/{id}/resubmit", s.handleResubmitExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}/status", s.handleSetExpenseStatus)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/users", s.handleListUsers)
	mux.HandleFunc("PATCH /api/users/{id}/role", s.handleSetUserRole)

	mux.HandleFunc("GET /api/reports/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/by-category", s.handleReportByCategory)
	mux.HandleFunc("GET /api/reports/by-month", s.handleReportByMonth)
	mux.HandleFunc("GET /api/reports/by-quarter", s.handleReportByQuarter)
	mux.HandleFunc("GET /api/reports/by-day", s.handleReportByDay)
	mux.HandleFunc("GET /api/reports/by-status", s.handleReportByStatus)
	mux.HandleFunc("GET /api/reports/stats", s.handleReportStats)

	mux.HandleFunc("GET /api/export", s.handleExport)
	mux.HandleFunc("POST /api/export/sheets", s.handleExportSheets)
	mux.HandleFunc("POST /api/import", s.handleImport)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Message: "Not found"})
	})
}

// rateLimitKey buckets authenticated callers by user and everyone else by IP.
func (s *Server) rateLimitKey(r *http.Request) string {
	if a, ok := identity.ActorFrom(r.Context()); ok {
		return "user:" + a.ID
	}
	return "ip:" + s.detector.ExtractClientIP(r)
}

// Shutdown stops the limiter cleanup loop and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
