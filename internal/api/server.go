// Package api exposes the tiering pipeline over a REST interface, for
// callers that would rather not speak MCP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tierdx/tierdx/internal/assess"
	"github.com/tierdx/tierdx/internal/config"
	"github.com/tierdx/tierdx/internal/domain"
	"github.com/tierdx/tierdx/internal/middleware"
	"github.com/tierdx/tierdx/internal/validate"
	"github.com/tierdx/tierdx/internal/wiring"
)

// Server is the REST front end to the assessment pipeline and validator.
type Server struct {
	cfg       *domain.Config
	router    *gin.Engine
	server    *http.Server
	pipeline  *assess.Pipeline
	validator *validate.Validator
	logger    *logrus.Logger
}

// NewServer builds a Server, wiring the assessment pipeline and
// validator from configManager's configuration.
func NewServer(configManager *config.Manager) *Server {
	cfg := configManager.GetConfig()
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tables := config.DefaultTables()
	pipeline := wiring.Build(cfg, tables, logger)
	validator := wiring.BuildValidator(cfg, tables, logger)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())

	server := &Server{
		cfg:       cfg,
		router:    router,
		pipeline:  pipeline,
		validator: validator,
		logger:    logger,
	}
	server.setupRoutes()
	return server
}

// Start starts the HTTP server and blocks until ctx is canceled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listening: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/classify", s.handleClassify)
		v1.POST("/validate", s.handleValidate)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type classifyRequest struct {
	Gene      string `json:"gene" binding:"required"`
	Variant   string `json:"variant" binding:"required"`
	TumorType string `json:"tumor_type"`
}

// handleClassify runs one variant through the assessment pipeline.
func (s *Server) handleClassify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assessment, err := s.pipeline.Run(c.Request.Context(), domain.VariantInput{
		Gene:      req.Gene,
		Variant:   req.Variant,
		TumorType: req.TumorType,
	})
	if err != nil {
		var rejected *domain.RejectedVariantError
		if asRejected(err, &rejected) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": rejected.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, assessment)
}

// handleValidate runs a labeled batch from the request body through the
// validator and returns the resulting accuracy report.
func (s *Server) handleValidate(c *gin.Context) {
	var cases []domain.ValidationCase
	if err := c.ShouldBindJSON(&cases); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := s.validator.Run(c.Request.Context(), cases)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func asRejected(err error, target **domain.RejectedVariantError) bool {
	rejected, ok := err.(*domain.RejectedVariantError)
	if !ok {
		return false
	}
	*target = rejected
	return true
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
