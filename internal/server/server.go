// Package server exposes the workspace daemon over HTTP: snapshot
// delivery, websocket filesystem sessions, health, and metrics.
package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codeblock-sh/codeblock/internal/config"
	"github.com/codeblock-sh/codeblock/internal/logging"
	"github.com/codeblock-sh/codeblock/internal/monitoring"
	"github.com/codeblock-sh/codeblock/internal/snapshot"
	"github.com/codeblock-sh/codeblock/internal/store"
)

// Server wires the host, snapshot blob, and HTTP surface together.
type Server struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	host    *store.Host
	router  *gin.Engine
	httpSrv *http.Server

	snapshotBlob []byte
	startedAt    time.Time
}

// New builds a server from configuration. The workspace snapshot is read
// once at startup; sessions mount it over their own connections.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	metrics := monitoring.NewMetrics()

	host := store.NewHost(logger.Logger).WithMetrics(metrics)
	host.Start()

	blob, err := os.ReadFile(cfg.Snapshot.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		logger.Warn("no snapshot at configured path, serving an empty workspace",
			zap.String("path", cfg.Snapshot.Path))
		blob, err = snapshot.Pack(&snapshot.Snapshot{})
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		host:         host,
		snapshotBlob: blob,
		startedAt:    time.Now(),
	}
	metrics.SnapshotBytes.Set(float64(len(blob)))
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	if !s.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	if s.cfg.RateLimit.Enabled {
		router.Use(globalRateLimit(s.cfg.RateLimit.RequestsPerSecond, s.cfg.RateLimit.Burst))
	}

	ws := NewWSHandler(s.host, s.metrics, s.logger.Logger)

	router.GET("/health", s.handleHealth)
	router.GET("/snapshot", s.handleSnapshot)
	router.GET("/ws", ws.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"uptime":  time.Since(s.startedAt).String(),
		"service": "workspaced",
	})
}

// handleSnapshot serves the packed workspace image a booting session
// feeds to mount.
func (s *Server) handleSnapshot(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/octet-stream", s.snapshotBlob)
}

// Run serves HTTP until the context is canceled, then drains.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.trackUptime(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.host.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)
	s.host.Close()
	return err
}

func (s *Server) trackUptime(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UpdateUptime()
		}
	}
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler { return s.router }
