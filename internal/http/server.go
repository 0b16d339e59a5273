package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"mycontrol/internal/auth"
	"mycontrol/internal/log"
	"mycontrol/internal/middleware/ratelimit"
	"mycontrol/internal/middleware/security"
	"mycontrol/internal/middleware/trace"
	"mycontrol/internal/services"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 10 * time.Second

// Options tune the middleware chain.
type Options struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
	RateLimit       ratelimit.Config
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Transactions *services.TransactionService
	Summaries    *services.SummaryService
	Auth         *auth.Service
	Tokens       *auth.TokenManager
	// Ready reports whether the backing store is reachable. Nil means ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

type Server struct {
	http.Server
	deps        Deps
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		deps:        deps,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
		detector:    security.NewDetector(),
		started:     time.Now(),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/forgot-password", s.handleForgotPassword).Methods(http.MethodPost)

	// Protected routes live on the root router so a method mismatch on a
	// known path still answers 405.
	authed := func(h http.Handler) http.Handler { return s.requireAuth(h) }
	r.Handle("/categories", authed(http.HandlerFunc(s.handleCategories))).Methods(http.MethodGet)

	tx := component(log.ComponentTransaction)
	r.Handle("/transactions", authed(tx(s.handleCreateTransaction))).Methods(http.MethodPost)
	r.Handle("/transactions", authed(tx(s.handleListTransactions))).Methods(http.MethodGet)
	r.Handle("/transactions/{id:[0-9]+}", authed(tx(s.handleGetTransaction))).Methods(http.MethodGet)
	r.Handle("/transactions/{id:[0-9]+}", authed(tx(s.handleUpdateTransaction))).Methods(http.MethodPatch)
	r.Handle("/transactions/{id:[0-9]+}", authed(tx(s.handleDeleteTransaction))).Methods(http.MethodDelete)
	r.Handle("/transactions/{id:[0-9]+}/mark-as-paid", authed(tx(s.handleMarkPaid))).Methods(http.MethodPatch)

	summary := component(log.ComponentSummary)
	r.Handle("/dashboard/summary", authed(summary(s.handleSummary))).Methods(http.MethodGet)
	r.Handle("/dashboard/categories-by-month", authed(summary(s.handleCategoriesByMonth))).Methods(http.MethodGet)
	r.Handle("/dashboard/work-income", authed(summary(s.handleWorkIncome))).Methods(http.MethodGet)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	cors := security.NewCORS(security.CORSConfig{
		AllowedOrigins: opts.AllowedOrigins,
		AllowAll:       opts.AllowAllOrigins,
	})
	tracer := trace.NewMiddleware(s.logger, s.detector.ClientIP)
	limit := s.rateLimiter.Middleware(s.detector.ClientIP, s.rateLimited,
		http.MethodPost, http.MethodPatch, http.MethodDelete)

	// Outermost first: every request gets an ID and a log line, preflight
	// requests are answered before rate limiting and auth.
	var h http.Handler = r
	h = limit(h)
	h = s.detector.Middleware(h)
	h = cors.Middleware(h)
	h = headers.Middleware(h)
	h = tracer.Middleware(h)
	s.Handler = h

	return s
}

// component tags the request logger of the wrapped handlers.
func component(name string) func(http.HandlerFunc) http.Handler {
	mw := log.ComponentMiddleware(name)
	return func(h http.HandlerFunc) http.Handler {
		return mw(h)
	}
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
