// Package http exposes the ledger services as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/unrolled/render"

	"harambee/internal/cache"
	"harambee/internal/log"
	"harambee/internal/middleware/ratelimit"
	"harambee/internal/middleware/security"
	"harambee/internal/middleware/trace"
	"harambee/internal/services"
)

// Options tunes the server. Zero values select the defaults.
type Options struct {
	Logger *log.Logger
	// Location interprets timestamps sent without a zone.
	Location *time.Location

	RateLimitPerMinute int
	TrustedProxies     []string

	// Ready reports whether the backing store can serve requests.
	Ready func(ctx context.Context) error

	// Caches are cleaned periodically while the server runs.
	Caches          []cache.Cleaner
	CleanupInterval time.Duration
}

type Server struct {
	http.Server

	services *services.Services
	render   *render.Render
	logger   *log.Logger
	location *time.Location
	ready    func(ctx context.Context) error

	ips     *security.ClientIPResolver
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	caches  *cache.Manager

	stopBackground context.CancelFunc
	background     sync.WaitGroup
	shutdownOnce   sync.Once
}

// NewServer wires the router and starts the limiter and cache cleanup
// loops. Shutdown stops them.
func NewServer(addr string, svc *services.Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = 5 * time.Minute
	}

	ips := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := ips.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		services: svc,
		render:   newRenderer(),
		logger:   logger,
		location: opts.Location,
		ready:    opts.Ready,
		ips:      ips,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:   trace.NewMiddleware(logger, ips.ExtractClientIP),
		caches:   cache.NewManager(logger),
	}
	for _, c := range opts.Caches {
		s.caches.Register(c)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel
	s.background.Add(2)
	go func() {
		defer s.background.Done()
		s.limiter.Run(ctx, opts.CleanupInterval)
	}()
	go func() {
		defer s.background.Done()
		s.caches.Run(ctx, opts.CleanupInterval)
	}()

	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	// A subrouter with middleware answers for its own misses.
	api.NotFoundHandler = r.NotFoundHandler
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.Use(s.limiter.Middleware(s.ips.ExtractClientIP, s.handleRateLimited))

	api.HandleFunc("/notifications/parse", s.handleParseNotifications).Methods(http.MethodPost)
	api.HandleFunc("/notifications/commit", s.handleCommitNotifications).Methods(http.MethodPost)

	api.HandleFunc("/pledges", s.handleListPledges).Methods(http.MethodGet)
	api.HandleFunc("/pledges", s.handleCreatePledge).Methods(http.MethodPost)
	api.HandleFunc("/pledges/{id}", s.handleGetPledge).Methods(http.MethodGet)
	api.HandleFunc("/pledges/{id}", s.handleUpdatePledge).Methods(http.MethodPut)
	api.HandleFunc("/pledges/{id}", s.handleDeletePledge).Methods(http.MethodDelete)
	api.HandleFunc("/pledges/{id}/payments", s.handlePledgePayment).Methods(http.MethodPost)

	api.HandleFunc("/payments", s.handleCashPayment).Methods(http.MethodPost)
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)

	api.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/expenses/{id}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/phases", s.handleListPhases).Methods(http.MethodGet)
	api.HandleFunc("/phases", s.handleCreatePhase).Methods(http.MethodPost)
	api.HandleFunc("/phases/{id}", s.handleDeletePhase).Methods(http.MethodDelete)

	api.HandleFunc("/departments", s.handleListDepartments).Methods(http.MethodGet)
	api.HandleFunc("/departments", s.handleRegisterDepartment).Methods(http.MethodPost)
	api.HandleFunc("/departments/reset", s.handleResetDepartments).Methods(http.MethodPost)

	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/ledger", s.handleLedger).Methods(http.MethodGet)

	// Outermost first: every response carries a request ID and the
	// security headers, including 404s and rate limit rejections.
	var h http.Handler = r
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// Shutdown stops the background loops and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		s.background.Wait()
		shutdownErr = s.Server.Shutdown(ctx)
		s.logger.Info("HTTP server stopped",
			log.FieldOperation, log.OpShutdown,
			"requests_served", s.tracer.TotalRequests())
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.render.Text(w, http.StatusOK, "ok")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).Warn("Readiness check failed", log.FieldError, err)
			s.render.Text(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	s.render.Text(w, http.StatusOK, "ready")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.respond().Status(http.StatusNotFound).Error(w, "not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respond().Status(http.StatusMethodNotAllowed).Error(w, "method not allowed")
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.respond().Status(http.StatusTooManyRequests).Error(w, "rate limit exceeded, try again later")
}
