package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"channah-support-chat/internal/api/middleware"
	"channah-support-chat/internal/queue"
	authservice "channah-support-chat/internal/service/auth"
	conversationservice "channah-support-chat/internal/service/conversation"
	"channah-support-chat/internal/websocket"
	"channah-support-chat/pkg/logger"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type RouteRegistrar func(r chi.Router, s *APIServer)

// Options carries the collaborators an APIServer serves.
type Options struct {
	ListenAddr    string
	Queue         *queue.RequestQueueManager
	Auth          *authservice.Service
	Conversations *conversationservice.Service
	Websocket     *websocket.Handler
	Publisher     *websocket.Publisher
	Logger        *logger.Logger

	CORSOrigins       []string
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// HealthChecks are run by the health route, keyed by dependency name.
	HealthChecks map[string]func(ctx context.Context) error

	// Registry defaults to the prometheus default registry.
	Registry *prometheus.Registry
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	auth                *authservice.Service
	conversations       *conversationservice.Service
	handler             *websocket.Handler
	publisher           *websocket.Publisher
	log                 *logger.Logger
	corsOrigins         []string
	rateLimit           middleware.Middleware
	healthChecks        map[string]func(ctx context.Context) error
	routeRegistrars     []RouteRegistrar
	metrics             *metrics
}

func NewAPIServer(opts Options, registrars ...RouteRegistrar) *APIServer {
	var (
		reg      prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		reg, gatherer = opts.Registry, opts.Registry
	}

	return &APIServer{
		listenAddr:          opts.ListenAddr,
		requestQueueManager: opts.Queue,
		auth:                opts.Auth,
		conversations:       opts.Conversations,
		handler:             opts.Websocket,
		publisher:           opts.Publisher,
		log:                 logger.OrGlobal(opts.Logger).Named("api"),
		corsOrigins:         opts.CORSOrigins,
		rateLimit:           middleware.RateLimit(opts.RateLimitRequests, opts.RateLimitWindow),
		healthChecks:        opts.HealthChecks,
		routeRegistrars:     registrars,
		metrics:             newMetrics(reg, gatherer, opts.ListenAddr, opts.Queue),
	}
}

// Router builds the full HTTP handler: shared middleware, registered routes
// and /metrics.
func (s *APIServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metrics.instrument)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(s.corsOrigins)))
	r.Use(middleware.Std(middleware.Logging(s.log)))

	for _, reg := range s.routeRegistrars {
		reg(r, s)
	}

	r.Method(http.MethodGet, "/metrics", s.metrics.metricsHandler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusNotFound, ApiError{Error: "Not found."})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusMethodNotAllowed, ApiError{Error: "Method not allowed."})
	})
	return r
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.listenAddr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.requestQueueManager.Shutdown()
	return nil
}

func (s *APIServer) Auth() *authservice.Service {
	return s.auth
}

func (s *APIServer) Conversations() *conversationservice.Service {
	return s.conversations
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}

func (s *APIServer) Publisher() *websocket.Publisher {
	return s.publisher
}

func (s *APIServer) Logger() *logger.Logger {
	return s.log
}

// RateLimit returns the per-identity limiter configured for this server.
func (s *APIServer) RateLimit() middleware.Middleware {
	return s.rateLimit
}

func (s *APIServer) HealthChecks() map[string]func(ctx context.Context) error {
	return s.healthChecks
}
