// ABOUTME: Agent service HTTP server wiring auth, history, responders and HR lookups
// ABOUTME: Owns the listener lifecycle with graceful shutdown on context cancellation

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/secure-agent/internal/agent"
	"github.com/2389/secure-agent/internal/auth"
	"github.com/2389/secure-agent/internal/config"
	"github.com/2389/secure-agent/internal/hr"
	"github.com/2389/secure-agent/internal/store"
)

// historyLimit caps how many past exchanges are replayed to the responder.
const historyLimit = 20

// Server is the agent service.
type Server struct {
	config     *config.Config
	logger     *slog.Logger
	verifier   auth.TokenVerifier
	responder  agent.Responder
	history    store.HistoryStore
	directory  *hr.Directory
	keys       *auth.JWKS
	httpServer *http.Server
}

// Option overrides a component built from config.
type Option func(*Server)

// WithVerifier sets the token verifier.
func WithVerifier(v auth.TokenVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithResponder sets the query responder.
func WithResponder(r agent.Responder) Option {
	return func(s *Server) { s.responder = r }
}

// WithHistory sets the history store.
func WithHistory(h store.HistoryStore) Option {
	return func(s *Server) { s.history = h }
}

// New builds a server from cfg. Components not supplied through opts are
// constructed from configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:    cfg,
		logger:    logger.With("component", "server"),
		directory: hr.NewDirectory(cfg.HR.DaysOff),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.verifier == nil {
		v, keys, err := newVerifier(cfg.Auth, logger)
		if err != nil {
			return nil, fmt.Errorf("creating token verifier: %w", err)
		}
		s.verifier = v
		s.keys = keys
	}

	if s.responder == nil {
		s.responder = newResponder(cfg.LLM)
	}

	if s.history == nil {
		h, err := newHistory(cfg.Database, logger)
		if err != nil {
			s.closeKeys()
			return nil, fmt.Errorf("opening history store: %w", err)
		}
		s.history = h
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

func newVerifier(cfg config.AuthConfig, logger *slog.Logger) (*auth.JWTVerifier, *auth.JWKS, error) {
	vc := auth.VerifierConfig{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		ClientID: cfg.ClientID,
	}
	if cfg.JWTSecret != "" {
		vc.Secret = []byte(cfg.JWTSecret)
	}
	var keys *auth.JWKS
	if cfg.JWKSURL != "" {
		// Refreshes run until Shutdown closes the key source.
		k, err := auth.NewJWKS(context.Background(), cfg.JWKSURL, auth.WithJWKSLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		keys = k
		vc.Keys = keys
	}
	v, err := auth.NewJWTVerifier(vc)
	if err != nil {
		if keys != nil {
			keys.Close()
		}
		return nil, nil, err
	}
	return v, keys, nil
}

func newResponder(cfg config.LLMConfig) agent.Responder {
	if cfg.Provider == config.ProviderAnthropic {
		return agent.NewClaudeResponder(agent.ClaudeConfig{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			MaxTokens:    cfg.MaxTokens,
			SystemPrompt: cfg.SystemPrompt,
		})
	}
	return agent.EchoResponder{}
}

func newHistory(cfg config.DatabaseConfig, logger *slog.Logger) (store.HistoryStore, error) {
	if cfg.Path == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewSQLiteStore(cfg.Path, logger)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	protected := auth.Middleware(s.verifier, s.logger)
	officeOnly := func(h http.HandlerFunc) http.Handler {
		return protected(auth.RequireRole(hr.OfficeManagementRole)(h))
	}

	mux.Handle("POST /query", protected(http.HandlerFunc(s.handleQuery)))
	mux.Handle("POST /reset", protected(http.HandlerFunc(s.handleReset)))
	mux.Handle("POST /daysOff", protected(http.HandlerFunc(s.handleDaysOff)))
	mux.Handle("POST /daysOffFor", officeOnly(s.handleDaysOffFor))
	mux.HandleFunc("GET /health", s.handleHealth)

	return requestLogger(s.logger, withCORS(s.config.CORS.Origins, mux))
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until the context is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The caller's context is already canceled; shut down with a fresh one.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func (s *Server) closeKeys() {
	if s.keys != nil {
		s.keys.Close()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server, closes the history store and stops key
// refreshes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", s.history.Close())
	s.closeKeys()

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
