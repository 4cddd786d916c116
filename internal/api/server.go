package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classfit/internal/cache"
	"classfit/internal/config"
	"classfit/internal/database"
	"classfit/internal/external"
	"classfit/internal/handlers"
	"classfit/internal/logger"
	"classfit/internal/messaging"
	"classfit/internal/middleware"
	"classfit/internal/repository"
	"classfit/internal/search"
	"classfit/internal/service"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	cache    *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	cacheClient, err := cache.NewValkeyClient(cfg.Cache)
	if err != nil {
		// The schedule cache is an accelerator, not a dependency.
		logger.Get().Warn("Valkey unavailable, serving schedule from Postgres", "error", err)
		cacheClient = nil
	}

	esClient, err := search.NewElasticsearchClient(cfg.Search)
	if err != nil {
		logger.Get().Warn("Elasticsearch unavailable, text search disabled", "error", err)
		esClient = nil
	}

	billingClient := external.NewBillingClient(cfg.Billing)

	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, natsClient, cacheClient, esClient, billingClient, cfg)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		cache:    cacheClient,
		services: services,
		repos:    repos,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	api := s.router.Group("/api")
	api.Use(middleware.OrgID())
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListBookings)
			bookings.PATCH("/cancel", h.CancelBooking)
			bookings.PATCH("/checkin", h.CheckInBooking)
			bookings.PATCH("/noshow", h.NoShowBooking)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("", h.ListSessions)
			sessions.GET("/:id", h.GetSession)
			sessions.GET("/:id/waitlist", h.GetSessionWaitlist)
			sessions.GET("/:id/options", h.GetBookingOptions)
			sessions.PATCH("/start", h.StartSession)
			sessions.PATCH("/complete", h.CompleteSession)
			sessions.PATCH("/cancel", h.CancelSession)
		}

		balances := api.Group("/balances")
		{
			balances.POST("/grant", h.GrantBalance)
			balances.GET("", h.ListBalances)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"service":  "classfit-api",
		"database": dbHealth,
	})
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
