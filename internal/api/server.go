package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/flosla/services/registration/config"
	"example.com/flosla/services/registration/internal/api/handlers"
	"example.com/flosla/services/registration/internal/api/middleware"
	"example.com/flosla/services/registration/internal/metrics"
	"example.com/flosla/services/registration/internal/services"
)

// Services bundles the dependencies the HTTP layer needs
type Services struct {
	Payments      *services.PaymentService
	Registrations *services.RegistrationService
	Events        *services.EventService
	Receipts      *services.ReceiptService
	Admins        *services.AdminService
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	metrics    *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, svcs Services, metricsCollector *metrics.Metrics) *Server {
	server := &Server{
		config:   cfg,
		services: svcs,
		metrics:  metricsCollector,
	}

	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      server.router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	api := router.Group("/api")

	paymentHandler := handlers.NewPaymentHandler(s.services.Payments, s.config.Paystack, s.metrics)
	paymentHandler.RegisterRoutes(api)

	eventHandler := handlers.NewEventHandler(s.services.Events, s.services.Registrations)
	eventHandler.RegisterRoutes(api)

	receiptHandler := handlers.NewReceiptHandler(s.services.Receipts)
	receiptHandler.RegisterRoutes(api)

	adminHandler := handlers.NewAdminHandler(s.services.Admins, s.services.Registrations, s.services.Events)
	adminHandler.RegisterRoutes(api)

	metricsHandler := handlers.NewMetricsHandler(s.metrics)
	metricsHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Router exposes the configured router, used by handler tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
