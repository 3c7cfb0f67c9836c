package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"matchserver/database"
	"matchserver/embeddings"
	"matchserver/internal/config"
	"matchserver/matching"
	"matchserver/server/handlers"
	"matchserver/server/middleware"
)

// Server HTTP сервер сопоставления заказов
type Server struct {
	config     *config.Config
	httpServer *http.Server

	httpHandler    http.Handler
	handlerOnce    sync.Once
	handlerInitErr error

	matchHandler     *handlers.MatchHandler
	productsHandler  *handlers.ProductsHandler
	clientsHandler   *handlers.ClientsHandler
	ordersHandler    *handlers.OrdersHandler
	analyticsHandler *handlers.AnalyticsHandler
}

// New создает сервер поверх сервиса сопоставления и репозиториев.
// Индекс может быть nil, тогда очистка кэша его не перестраивает.
func New(
	cfg *config.Config,
	matcher *matching.Service,
	products *database.ProductsRepo,
	clients *database.ClientsRepo,
	mappings *database.MappingsRepo,
	orders *database.OrdersRepo,
	index *embeddings.Index,
) *Server {
	return &Server{
		config:           cfg,
		matchHandler:     handlers.NewMatchHandler(matcher),
		productsHandler:  handlers.NewProductsHandler(products, matcher),
		clientsHandler:   handlers.NewClientsHandler(clients, mappings, products, matcher),
		ordersHandler:    handlers.NewOrdersHandler(orders, clients, products, matcher),
		analyticsHandler: handlers.NewAnalyticsHandler(matcher, products, index, cfg.MatcherConfig()),
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("🚀 Сервер запускается на порту %s", s.config.Port)
	log.Printf("API доступно по адресу: http://localhost%s/api", s.httpServer.Addr)
	log.Printf("Swagger UI: http://localhost%s/swagger/index.html", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("не удалось запустить HTTP сервер на %s: %w", s.httpServer.Addr, err)
	}

	return nil
}

func (s *Server) ensureHTTPHandler() (http.Handler, error) {
	s.handlerOnce.Do(func() {
		s.httpHandler = s.buildHTTPHandler()
	})

	if s.handlerInitErr != nil {
		return nil, s.handlerInitErr
	}
	if s.httpHandler == nil {
		return nil, fmt.Errorf("httpHandler is nil")
	}

	return s.httpHandler, nil
}

func (s *Server) buildHTTPHandler() http.Handler {
	// Режим Gin: release для продакшена, переопределяется через GIN_MODE
	if ginMode := os.Getenv("GIN_MODE"); ginMode == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.GzipMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.RecoveryMiddleware())

	handlers.RegisterSwaggerRoutes(router)
	s.registerRoutes(router)

	return router
}

// registerRoutes регистрирует маршруты API
func (s *Server) registerRoutes(router *gin.Engine) {
	// Health check endpoint - простой эндпоинт без зависимостей
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "matchserver",
			"time":    time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")

	// Match API
	matchAPI := api.Group("/match")
	{
		matchAPI.POST("", s.matchHandler.HandleMatch)
		matchAPI.POST("/batch", s.matchHandler.HandleMatchBatch)
	}

	// Products API
	productsAPI := api.Group("/products")
	{
		productsAPI.GET("", s.productsHandler.HandleList)
		productsAPI.POST("", s.productsHandler.HandleCreate)
		productsAPI.GET("/search", s.productsHandler.HandleSearch)
		productsAPI.POST("/upload", s.productsHandler.HandleUpload)
		productsAPI.GET("/:id", s.productsHandler.HandleGet)
		productsAPI.PUT("/:id", s.productsHandler.HandleUpdate)
		productsAPI.DELETE("/:id", s.productsHandler.HandleDelete)
	}

	// Clients API
	clientsAPI := api.Group("/clients")
	{
		clientsAPI.GET("", s.clientsHandler.HandleList)
		clientsAPI.POST("", s.clientsHandler.HandleCreate)
		clientsAPI.GET("/:id", s.clientsHandler.HandleGet)
		clientsAPI.PUT("/:id", s.clientsHandler.HandleUpdate)
		clientsAPI.DELETE("/:id", s.clientsHandler.HandleDelete)
		clientsAPI.GET("/:id/mappings", s.clientsHandler.HandleMappings)
	}

	// Orders API
	ordersAPI := api.Group("/orders")
	{
		ordersAPI.GET("", s.ordersHandler.HandleList)
		ordersAPI.POST("/upload", s.ordersHandler.HandleUpload)
		ordersAPI.GET("/:id", s.ordersHandler.HandleGet)
		ordersAPI.POST("/:id/export", s.ordersHandler.HandleExport)
		ordersAPI.POST("/:id/confirm", s.ordersHandler.HandleConfirm)
		ordersAPI.PUT("/:id/items/:item_id/mapping", s.ordersHandler.HandleUpdateItemMapping)
	}

	// Analytics API
	analyticsAPI := api.Group("/analytics/matching")
	{
		analyticsAPI.GET("/stats", s.analyticsHandler.HandleStats)
		analyticsAPI.POST("/stats/reset", s.analyticsHandler.HandleResetStats)
		analyticsAPI.GET("/levels", s.analyticsHandler.HandleLevels)
	}
	api.POST("/cache/clear", s.analyticsHandler.HandleClearCache)
}

// ServeHTTP реализует http.Handler для тестов и вспомогательных утилит
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, err := s.ensureHTTPHandler()
	if err != nil {
		http.Error(w, "server is not initialized", http.StatusInternalServerError)
		return
	}

	handler.ServeHTTP(w, r)
}

// Shutdown останавливает HTTP сервер gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	log.Println("Останавливаем HTTP сервер...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}

	log.Println("✓ Сервер остановлен")
	return nil
}
