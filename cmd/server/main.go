package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Drakaniia/vibe-kanban/internal/api"
	"github.com/Drakaniia/vibe-kanban/internal/approvals"
	"github.com/Drakaniia/vibe-kanban/internal/common/config"
	"github.com/Drakaniia/vibe-kanban/internal/common/logger"
	"github.com/Drakaniia/vibe-kanban/internal/events/bus"
	"github.com/Drakaniia/vibe-kanban/internal/executors/registry"
	"github.com/Drakaniia/vibe-kanban/internal/sessions"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("Starting executor service...")

	// 3. Connect the event bus. An empty NATS URL selects the in-memory bus.
	var eventBus bus.EventBus
	if cfg.NATS.URL != "" {
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			log.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		eventBus = natsBus
		log.Info("Connected to NATS event bus", zap.String("url", cfg.NATS.URL))
	} else {
		eventBus = bus.NewMemoryEventBus(log)
		log.Info("Using in-memory event bus")
	}
	defer eventBus.Close()

	// 4. Build the executor registry from configured profiles
	reg, err := registry.New(cfg.Executors, log)
	if err != nil {
		log.Fatal("Failed to build executor registry", zap.Error(err))
	}
	log.Info("Loaded executor registry",
		zap.Strings("profiles", reg.List()),
		zap.String("default", reg.DefaultName()))

	// 5. Route tool-use permission requests through the approval service.
	// Yolo profiles bypass it.
	approvalSvc := approvals.NewService(eventBus, log, cfg.Executors.ApprovalTimeoutDuration())
	reg.UseApprovals(approvalSvc)

	// 6. Initialize the session manager
	sessionMgr := sessions.NewManager(reg, eventBus, log)

	// 7. Setup HTTP server with Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	api.SetupRoutes(v1, reg, sessionMgr, approvalSvc, eventBus, log)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 8. Start server in goroutine
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// 9. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down executor service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Executor service stopped")
}
