// Package http provides the playbook HTTP API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tom2tomtomtom/Playbook/internal/answer"
	"github.com/tom2tomtomtom/Playbook/internal/chunker"
	"github.com/tom2tomtomtom/Playbook/internal/index"
	"github.com/tom2tomtomtom/Playbook/internal/logging"
)

// Documents is the index surface the API drives.
type Documents interface {
	AddDocument(ctx context.Context, documentID string, chunks []chunker.Chunk, info index.DocumentInfo) (*index.DocumentRecord, error)
	DeleteDocument(ctx context.Context, documentID string) error
	ListDocuments(ctx context.Context, page, pageSize int) (*index.DocumentList, error)
	GetDocumentInfo(ctx context.Context, documentID string) (*index.DocumentRecord, bool, error)
	Statistics(ctx context.Context) (*index.Statistics, error)
	Health(ctx context.Context) error
}

// Answerer answers questions and summarizes documents.
type Answerer interface {
	Answer(ctx context.Context, q answer.Question) (*answer.Envelope, error)
	Summarize(ctx context.Context, documentID string) (*answer.Summary, error)
	Usage() *answer.UsageTracker
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// Version is reported by /health and /api/v1/statistics.
	Version string

	// MaxUploadBytes caps multipart uploads. Default: 50MB.
	MaxUploadBytes int64

	// AllowedExtensions lists lowercase extensions without the dot.
	// Default: pdf, pptx, docx.
	AllowedExtensions []string

	// MetricsPath serves prometheus metrics when Registry is set.
	MetricsPath string
	Registry    *prometheus.Registry
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 50 << 20
	}
	if len(c.AllowedExtensions) == 0 {
		c.AllowedExtensions = []string{"pdf", "pptx", "docx"}
	}
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
}

// Server provides HTTP endpoints for playbook.
type Server struct {
	echo     *echo.Echo
	docs     Documents
	answers  Answerer
	splitter *chunker.Splitter
	logger   *zap.Logger
	config   *Config
}

// NewServer creates a new HTTP server.
func NewServer(docs Documents, answers Answerer, splitter *chunker.Splitter, logger *zap.Logger, cfg *Config) (*Server, error) {
	if docs == nil {
		return nil, fmt.Errorf("documents cannot be nil")
	}
	if answers == nil {
		return nil, fmt.Errorf("answerer cannot be nil")
	}
	if splitter == nil {
		return nil, fmt.Errorf("splitter cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		docs:     docs,
		answers:  answers,
		splitter: splitter,
		logger:   logger,
		config:   cfg,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			if !logging.ValidID(id) {
				return
			}
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), id)))
		},
	}))
	var reg prometheus.Registerer
	if cfg.Registry != nil {
		reg = cfg.Registry
	}
	e.Use(newRequestMetrics(reg).middleware)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Resolve the status before logging; echo writes it afterwards.
				c.Error(err)
			}

			fields := append(logging.ContextFields(c.Request().Context()),
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			logger.Info("http request", fields...)
			return nil
		}
	})

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	if s.config.Registry != nil {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")

	// Multipart overhead rides on top of the file limit.
	limit := fmt.Sprintf("%dK", (s.config.MaxUploadBytes+(1<<20))/1024)
	v1.POST("/documents", s.handleUpload, middleware.BodyLimit(limit))
	v1.POST("/documents/units", s.handleIngestUnits, middleware.BodyLimit(limit))
	v1.GET("/documents", s.handleListDocuments)
	v1.GET("/documents/:id", s.handleGetDocument)
	v1.DELETE("/documents/:id", s.handleDeleteDocument)
	v1.GET("/documents/:id/summary", s.handleSummary)
	v1.POST("/ask", s.handleAsk)
	v1.GET("/statistics", s.handleStatistics)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
