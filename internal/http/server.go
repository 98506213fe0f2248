package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"tracker/internal/core"
	"tracker/internal/ledger"
	applog "tracker/internal/log"
	"tracker/internal/middleware/ratelimit"
	"tracker/internal/middleware/security"
	"tracker/internal/middleware/trace"
	"tracker/internal/services"
)

// SyncController is the part of the sync dispatcher the API exposes.
type SyncController interface {
	Stats() services.SyncStats
	Failed() []*core.SyncError
	RetryFailed() int
}

// Options configures NewServer. Zero values get defaults.
type Options struct {
	Sync               SyncController
	AllowedOrigins     []string
	RateLimitPerMinute int
	// ReloadTimeout bounds POST /api/reload.
	ReloadTimeout time.Duration
	Clock         func() time.Time
	Logger        *applog.Logger
}

type Server struct {
	http.Server
	ledger   *ledger.Ledger
	sync     SyncController
	hub      *Hub
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	upgrader websocket.Upgrader
	now      func() time.Time
	reloadTO time.Duration
	log      *applog.Logger

	unsubscribe  func()
	shutdownOnce sync.Once
}

// NewServer wires the API routes for l and starts the snapshot feed.
func NewServer(addr string, l *ledger.Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = &applog.Logger{Logger: slog.Default()}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		ledger:   l,
		sync:     opts.Sync,
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		now:      opts.Clock,
		reloadTO: opts.ReloadTimeout,
		log:      opts.Logger.WithComponent(applog.ComponentHTTP),
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}

	s.hub = NewHub(func() ([]byte, error) { return encodeSnapshot(l.Snapshot()) })
	s.hub.Start()
	s.unsubscribe = l.Subscribe(s.hub.Broadcast)

	s.Addr = addr
	s.Handler = s.routes(opts.AllowedOrigins)
	s.ReadHeaderTimeout = 10 * time.Second
	return s
}

func (s *Server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", trace.RequestIDHeader},
		ExposedHeaders:   []string{trace.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/ws", s.hub.ServeWS(&s.upgrader))

	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", s.handleLedger)
		r.Put("/preferences", s.handlePreferences)
		r.Post("/reload", s.handleReload)

		r.Route("/categories", func(r chi.Router) {
			r.Post("/", s.handleCreateCategory)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetCategory)
				r.Put("/", s.handleUpdateCategory)
				r.Delete("/", s.handleDeleteCategory)
				r.Get("/transactions", s.handleCategoryTransactions)
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTransaction)
				r.Put("/", s.handleUpdateTransaction)
				r.Delete("/", s.handleDeleteTransaction)
			})
		})

		r.Route("/charts", func(r chi.Router) {
			r.Get("/monthly", s.handleMonthlyChart)
			r.Get("/categories", s.handleCategoryChart)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/stats", s.handleSyncStats)
			r.Post("/retry", s.handleSyncRetry)
		})
	})

	return r
}

// originChecker accepts websocket upgrades from the CORS origins. Requests
// without an Origin header (non-browser clients) are accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports 503 until the first successful reload.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ledger.IsLoaded() {
		ErrorResponse(http.StatusServiceUnavailable, "ledger not loaded").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown stops the snapshot feed, the limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.hub.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
