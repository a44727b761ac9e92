// Package api exposes the inventory engine over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/roach88/stockline/internal/engine"
	"github.com/roach88/stockline/internal/report"
)

// IdempotencyHeader carries the request key for line and delete requests.
const IdempotencyHeader = "Idempotency-Key"

// Server routes HTTP requests to the engine and the reporter.
type Server struct {
	engine  *engine.Engine
	reports *report.Reporter
	logger  *zap.Logger
	service string
	router  *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceName sets the service name reported on server spans.
func WithServiceName(name string) Option {
	return func(s *Server) {
		if name != "" {
			s.service = name
		}
	}
}

// New builds a Server with all routes registered.
func New(e *engine.Engine, opts ...Option) *Server {
	s := &Server{
		engine:  e,
		reports: report.New(e.Store()),
		logger:  zap.NewNop(),
		service: "stockline",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("api")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(s.service))
	r.Use(s.accessLog())
	s.routes(r)
	s.router = r
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)

	r.POST("/categories", s.createCategory)
	r.PATCH("/categories/:id", s.renameCategory)
	r.DELETE("/categories/:id", s.deleteCategory)
	r.POST("/counterparties", s.createCounterparty)
	r.PATCH("/counterparties/:id", s.updateCounterparty)
	r.DELETE("/counterparties/:id", s.deleteCounterparty)
	r.GET("/counterparties/:id/history", s.historyHandler((*report.Reporter).History))
	r.GET("/customers/:id/history", s.historyHandler((*report.Reporter).CustomerHistory))
	r.GET("/suppliers/:id/history", s.historyHandler((*report.Reporter).SupplierHistory))

	r.POST("/items", s.createItem)
	r.GET("/items", s.listItems)
	r.GET("/items/:id", s.getItem)
	r.PATCH("/items/:id", s.updateItem)

	r.POST("/documents", s.createDocument)
	r.GET("/documents/:id", s.getDocument)
	r.DELETE("/documents/:id", s.deleteDocument)
	r.POST("/documents/:id/lines", s.addLine)
	r.PATCH("/documents/:id/lines/:item", s.updateLine)
	r.DELETE("/documents/:id/lines/:item", s.removeLine)

	r.GET("/alerts", s.listAlerts)
	r.GET("/journal", s.listJournal)
	r.POST("/reconcile", s.reconcile)
	r.GET("/audit", s.audit)
	r.GET("/reports/stock-value", s.stockValue)
	r.GET("/reports/available", s.availableItems)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
