package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"apartment-valuation-service/internal/adapters/primary/http/handlers"
	"apartment-valuation-service/internal/adapters/primary/http/middleware"
	"apartment-valuation-service/internal/app"
	"apartment-valuation-service/internal/config"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app.InitLogger(cfg)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer a.Close()

	// Promotions from the CLI or other replicas drop the cached model
	go a.Watch(ctx)

	// Primary Adapter (HTTP Handlers)
	h := handlers.New(a.Estimator, a.Baseline, a.Generator, a.Processor, a.Trainer, a.Promotion, a.Models)

	// Setup router
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), gin.Recovery(), middleware.CORS(cfg.CORS.AllowOrigins))

	api := router.Group("/api/v1/valuation")
	h.RegisterRoutes(api)

	router.GET("/healthz", func(c *gin.Context) {
		if err := a.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Infof("starting server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced shutdown: %v", err)
	}
	a.Estimator.Wait()

	log.Info("server stopped")
}
