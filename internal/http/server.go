// Package http exposes the canteen over a JSON API plus a server-rendered
// report page.
package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"canteen/internal/auth"
	"canteen/internal/cache"
	"canteen/internal/log"
	"canteen/internal/middleware/ratelimit"
	"canteen/internal/middleware/security"
	"canteen/internal/middleware/trace"
	"canteen/internal/services"
	appweb "canteen/web"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Auth     *services.AuthService
	Orders   *services.OrderService
	Foods    *services.FoodService
	Expenses *services.ExpenseService
	Reports  *services.ReportService

	Issuer *auth.Issuer
	Users  auth.UserLookup
	Store  Pinger

	// ReportCache is optional and only feeds /metrics.
	ReportCache interface{ Stats() cache.Stats }

	Logger             *log.Logger
	RateLimitPerMinute int
	TrustProxy         bool
}

type appMetrics struct {
	started       time.Time
	ordersPlaced  atomic.Int64
	ordersCleared atomic.Int64
	reportsServed atomic.Int64
}

type Server struct {
	http.Server

	deps      Deps
	logger    *log.Logger
	templates *template.Template

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector
	metrics  *appMetrics

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and builds the route table.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.NewDefault()
	}

	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector(deps.TrustProxy, deps.Logger)
	s := &Server{
		deps:      deps,
		logger:    deps.Logger.WithComponent(log.ComponentHTTP),
		templates: tmpl,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		tracer:    trace.NewMiddleware(detector.ClientIP),
		detector:  detector,
		metrics:   &appMetrics{started: time.Now()},
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err == nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	}

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/token/refresh", s.handleRefresh)

	mux.Handle("GET /api/users", authenticated(s.handleListUsers))

	mux.Handle("GET /api/foods", authenticated(s.handleListFoods))
	mux.Handle("POST /api/foods", authenticated(s.handleCreateFood))
	mux.Handle("GET /api/foods/{id}", authenticated(s.handleGetFood))
	mux.Handle("PUT /api/foods/{id}", authenticated(s.handleUpdateFood))
	mux.Handle("DELETE /api/foods/{id}", authenticated(s.handleDeleteFood))

	mux.Handle("GET /api/orders", authenticated(s.handleListOrders))
	mux.Handle("POST /api/orders", authenticated(s.handleCreateOrder))
	mux.Handle("GET /api/orders/{id}", authenticated(s.handleGetOrder))
	mux.Handle("DELETE /api/orders/{id}", authenticated(s.handleDeleteOrder))
	mux.Handle("PUT /api/orders/{id}/clear", authenticated(s.handleClearOrder))

	mux.Handle("GET /api/student-dues", authenticated(s.handleStudentDues))

	mux.Handle("GET /api/expenses", authenticated(s.handleListExpenses))
	mux.Handle("POST /api/expenses", authenticated(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/{id}", authenticated(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", authenticated(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", authenticated(s.handleDeleteExpense))

	mux.Handle("GET /api/reports", authenticated(s.handleReportJSON))
	mux.Handle("GET /admin/reports", authenticated(s.handleReportPage))

	// wrapped innermost first
	var h http.Handler = mux
	h = auth.Middleware(s.deps.Issuer, s.deps.Users)(h)
	h = s.limiter.Middleware(s.detector.ClientIP)(h)
	h = security.NoStore(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(s.deps.Logger)(h)
	return h
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the rate limiter sweep. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// ListenAndServe treats a graceful shutdown as a clean exit.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr, log.FieldOperation, log.OpStartup)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
