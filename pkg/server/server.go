package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanisideup/fxrates/pkg/config"
	"github.com/sanisideup/fxrates/pkg/country"
	"github.com/sanisideup/fxrates/pkg/logger"
	"github.com/sanisideup/fxrates/pkg/metrics"
	"github.com/sanisideup/fxrates/pkg/refresh"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server
type Options struct {
	Config    *config.Config
	Fetcher   refresh.Fetcher
	Countries *country.Table
	Logger    *zap.Logger
	Registry  *prometheus.Registry // metrics registry; a fresh one is created when nil
}

// Server exposes rate views over HTTP
type Server struct {
	cfg       *config.Config
	countries *country.Table
	views     *Registry
	logger    *zap.Logger
	engine    *gin.Engine
}

// New builds the server and its routes
func New(opts Options) *Server {
	log := logger.OrNop(opts.Logger)

	countries := opts.Countries
	if countries == nil {
		countries = country.Default()
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	rec := metrics.NewRecorder(reg)

	s := &Server{
		cfg:       opts.Config,
		countries: countries,
		views:     NewRegistry(opts.Fetcher, opts.Config.ViewIdleTimeout(), log, rec),
		logger:    log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(configureCORS(opts.Config.CORSAllowedOrigins))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/countries", s.handleListCountries)

		api.POST("/views", s.handleCreateView)
		api.GET("/views/:id", s.handleGetView)
		api.PUT("/views/:id/from", s.handleSelectFrom)
		api.PUT("/views/:id/to", s.handleSelectTo)
		api.PUT("/views/:id/amount", s.handleSetAmount)
		api.POST("/views/:id/retry", s.handleRetry)
		api.DELETE("/views/:id", s.handleDeleteView)
	}

	s.engine = router
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Views returns the view registry
func (s *Server) Views() *Registry {
	return s.views
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	reaperCtx, stopReaper := context.WithCancel(ctx)
	defer stopReaper()
	go s.views.RunReaper(reaperCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.views.CloseAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.views.CloseAll()
	if err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// configureCORS returns a configured CORS middleware
func configureCORS(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	allowed := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}

	if len(allowed) == 0 || (len(allowed) == 1 && allowed[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowed
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}

	return cors.New(corsConfig)
}

// requestLogger logs one line per request
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
