package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
)

// Options configures the router and server.
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
}

// Server is the API HTTP server.
type Server struct {
	http.Server
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer builds the router and wraps it in an http.Server with
// conservative timeouts.
func NewServer(h *Handler, opts Options) (*Server, error) {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	router, err := NewRouter(h, limiter, opts)
	if err != nil {
		return nil, err
	}
	return &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		limiter: limiter,
	}, nil
}

// RateLimiter exposes the limiter so its idle clients can be swept.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.limiter
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// NewRouter creates a new router with all routes configured. Writes are
// rate limited per client IP.
func NewRouter(h *Handler, limiter *ratelimit.Limiter, opts Options) (*chi.Mux, error) {
	proxies := opts.TrustedProxies
	if len(proxies) == 0 {
		proxies = security.DefaultTrustedProxies
	}
	ips, err := security.NewClientIPResolver(proxies)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	origins := opts.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(log.Middleware(logger.WithComponent(log.ComponentHTTP)))
	r.Use(trace.NewMiddleware(ips.ClientIP).Handler)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.Get("/healthz", h.Health)
	r.Get("/readyz", h.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware(ips.ClientIP, rateLimited, http.MethodPost, http.MethodPut))

		r.Route("/recurrence", func(r chi.Router) {
			r.Get("/window", h.Window)
			r.Get("/next", h.Next)
			r.Get("/anchor", h.Anchor)
		})

		r.Get("/categories", h.Categories)
		r.Get("/accounts", h.Accounts)

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Post("/", h.CreateBudget)
			r.Get("/form", h.NewBudgetForm)
			r.Get("/{id}", h.GetBudget)
			r.Put("/{id}", h.UpdateBudget)
			r.Get("/{id}/form", h.EditBudgetForm)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", h.ListRecurring)
			r.Post("/", h.CreateRecurring)
			r.Get("/form", h.NewRecurringForm)
			r.Get("/{id}", h.GetRecurring)
			r.Put("/{id}", h.UpdateRecurring)
			r.Get("/{id}/form", h.EditRecurringForm)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r, nil
}
