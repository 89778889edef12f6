package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/stakepilot/stakepilot/internal/logging"
	"github.com/stakepilot/stakepilot/internal/metrics"
	"github.com/stakepilot/stakepilot/internal/orchestrator"
	"github.com/stakepilot/stakepilot/internal/util"
)

// ChainInfo describes the session the server fronts. Supported is false when
// the configured chain has no known contract deployment; read and write
// endpoints then refuse loudly instead of serving empty zeros.
type ChainInfo struct {
	ChainID        int64  `json:"chain_id"`
	ChainName      string `json:"chain_name"`
	Supported      bool   `json:"supported"`
	Account        string `json:"account"`
	TokenAddress   string `json:"token_address"`
	StakingAddress string `json:"staking_address"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// DefaultServerConfig returns a loopback-only server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:        "127.0.0.1:8456",
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Server exposes the staking session over HTTP: the derived view, session
// status, operation submission, a WebSocket event stream and Prometheus
// metrics.
type Server struct {
	cfg       ServerConfig
	info      ChainInfo
	orch      *orchestrator.Orchestrator // nil when the chain is unsupported
	collector *metrics.Collector

	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// NewServer creates a Server. orch may be nil for an unsupported chain; the
// server then serves status only and rejects everything else.
func NewServer(cfg ServerConfig, info ChainInfo, orch *orchestrator.Orchestrator, collector *metrics.Collector) *Server {
	return &Server{
		cfg:       cfg,
		info:      info,
		orch:      orch,
		collector: collector,
	}
}

// Routes builds the handler tree. Exposed so tests can drive the mux
// without a listener.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/view", s.withLogging(s.handleView))
	mux.HandleFunc("/v1/status", s.withLogging(s.handleStatus))
	mux.HandleFunc("/v1/op/", s.withLogging(s.handleOp))
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)

	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}
	return mux
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("api server already running")
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
	s.running = true

	util.SafeGoWithName("api-server", func() {
		logging.Info("api server listening", "addr", s.cfg.ListenAddr, logging.Component("api"))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("api server failed", logging.Err(err), logging.Component("api"))
		}
	})
	return nil
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// withLogging logs each request at debug level.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)
		logging.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
			logging.Component("api"))
	}
}
