// Package server wires the relay together: the webhook gateway, the
// responder and its two outbound clients, behind a chi router.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/teilomillet/zooly/config"
	"github.com/teilomillet/zooly/errors"
	"github.com/teilomillet/zooly/server/circuitbreaker"
	"github.com/teilomillet/zooly/server/handlers"
	"github.com/teilomillet/zooly/server/line"
	"github.com/teilomillet/zooly/server/metrics"
	"github.com/teilomillet/zooly/server/middleware"
	"github.com/teilomillet/zooly/server/processing"
	"github.com/teilomillet/zooly/server/provider"
	"github.com/teilomillet/zooly/server/webhook"
	"go.uber.org/zap"
)

const defaultShutdownTimeout = 30 * time.Second

// RouterOptions describes the routes the relay serves.
type RouterOptions struct {
	CallbackPath string
	Callback     http.Handler
	Persona      config.PersonaConfig

	// Metrics is optional. MetricsPath is only mounted when both are set.
	Metrics     *metrics.Metrics
	MetricsPath string

	Logger *zap.Logger
}

// Router handles HTTP routing
type Router struct {
	router chi.Router
}

// NewRouter creates the router with the full middleware stack.
func NewRouter(opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = errors.DefaultLogger
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	if opts.Metrics != nil {
		r.Use(middleware.PrometheusMetrics(opts.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(req.Context()), req.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "Method not allowed", errors.BadRequestError, http.StatusMethodNotAllowed)
	})

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health(opts.Persona))
	r.Method(http.MethodPost, opts.CallbackPath, opts.Callback)
	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.Method(http.MethodGet, opts.MetricsPath, opts.Metrics.Handler())
	}

	return &Router{router: r}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	router          *Router
	logger          *zap.Logger
	shutdownTimeout time.Duration

	// tokens is loaded in the background by Serve; nil when disabled.
	tokens      *processing.TiktokenCounter
	tokensModel string
}

// NewServer builds every component from cfg. The persona preset is resolved
// and the configuration validated again, so missing secrets are refused here
// even when cfg was built by hand.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = errors.DefaultLogger
	}
	if err := cfg.Persona.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics()
	}

	gateway, err := webhook.NewGateway(cfg.LINE.ChannelSecret, logger.Named("webhook"), m)
	if err != nil {
		return nil, err
	}

	var breaker *circuitbreaker.CircuitBreaker
	if cfg.CircuitBreaker.Enabled {
		var registry prometheus.Registerer
		if m != nil {
			registry = m.Registry()
		}
		breaker = circuitbreaker.NewCircuitBreaker("completion", circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
			Interval:         cfg.CircuitBreaker.Interval,
			ResetTimeout:     cfg.CircuitBreaker.Timeout,
			HalfOpenRequests: cfg.CircuitBreaker.MaxRequests,
		}, logger.Named("circuitbreaker"), registry)
	}

	completer := provider.NewOpenAIProvider(provider.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	}, breaker, logger.Named("provider"))

	replier, err := line.NewReplier(line.Config{
		ChannelAccessToken: cfg.LINE.ChannelAccessToken,
		Endpoint:           cfg.LINE.Endpoint,
	}, logger.Named("line"))
	if err != nil {
		return nil, errors.NewConfigurationError("create reply client", nil, err)
	}

	responder := processing.NewResponder(cfg.Persona, completer, replier, logger.Named("responder"), m)
	responder.SetCompletionTimeout(cfg.LLM.Timeout)
	responder.SetReplyTimeout(cfg.LINE.Timeout)
	var tokens *processing.TiktokenCounter
	if cfg.LLM.CountTokens {
		tokens = processing.NewTiktokenCounter()
		responder.SetTokenCounter(tokens)
	}

	callback := handlers.NewCallbackHandler(gateway, responder, cfg.Server.MaxBodyBytes, logger.Named("callback"))
	callback.SetEventBudget(responder.EventBudget())

	router := NewRouter(RouterOptions{
		CallbackPath: cfg.LINE.CallbackPath,
		Callback:     callback,
		Persona:      cfg.Persona,
		Metrics:      m,
		MetricsPath:  cfg.Metrics.Path,
		Logger:       logger,
	})

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		router:          router,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
		tokens:          tokens,
		tokensModel:     cfg.Persona.Model,
	}, nil
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured port and blocks until ctx is done or the
// server fails.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully so in-flight deliveries can still send their reply.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.tokens != nil {
		go s.loadTokenEncoding()
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server", zap.Duration("timeout", s.shutdownTimeout))
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// loadTokenEncoding fetches the BPE file once. Until it succeeds, prompt
// token accounting is skipped and deliveries are unaffected.
func (s *Server) loadTokenEncoding() {
	start := time.Now()
	if err := s.tokens.Load(s.tokensModel); err != nil {
		s.logger.Warn("Token encoding unavailable, prompt token accounting disabled",
			zap.String("model", s.tokensModel),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Token encoding loaded",
		zap.String("model", s.tokensModel),
		zap.Duration("duration", time.Since(start)),
	)
}
