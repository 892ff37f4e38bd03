package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"post-ingest-pipeline/config"
	"post-ingest-pipeline/database"
	"post-ingest-pipeline/handlers"
	"post-ingest-pipeline/metrics"
	"post-ingest-pipeline/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	if cfg.WebhookSecret == "" {
		log.Println("WARNING: WEBHOOK_SECRET not set, webhook endpoint is unauthenticated")
	}

	metrics.Register()

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize WebSocket hub for dashboard activity
	hub := service.NewHub()
	go hub.Run()

	// Initialize service
	pipelineService := service.NewService(cfg, db, hub)
	if err := pipelineService.Start(); err != nil {
		log.Fatalf("Failed to start pipeline service: %v", err)
	}

	// Initialize handlers
	h := handlers.NewHandlers(pipelineService, cfg)
	wsHandler := handlers.NewWebSocketHandler(hub)

	// Setup HTTP server
	router := gin.Default()

	api := router.Group("/api/v1")
	{
		api.POST("/webhooks/scraper", h.ScraperWebhook)
		api.POST("/ingest/fetch-results", h.FetchResults)
		api.GET("/analyze/preview", h.AnalyzePreview)
		api.POST("/analyzed", h.RecordAnalyzed)
		api.GET("/trends", h.Trends)
		api.GET("/stats", h.Stats)
		api.GET("/thresholds", h.Thresholds)
		api.POST("/thresholds/reload", h.ReloadThresholds)
		api.GET("/health", h.HealthCheck)
		api.GET("/ws", wsHandler.Listen)
	}

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	pipelineService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
