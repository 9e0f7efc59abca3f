package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"brigade/internal/api"
	"brigade/internal/config"
	"brigade/internal/costing"
	"brigade/internal/database"
	"brigade/internal/eta"
	"brigade/internal/inventory"
	"brigade/internal/lifecycle"
	"brigade/internal/logger"
)

var configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	db, err := database.Open(&cfg.DB)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ledger := inventory.NewLedger(db)
	etaEngine := eta.NewEngine(db)
	costEngine := costing.NewEngine(db)
	manager := lifecycle.NewManager(db, ledger, etaEngine, costEngine, lifecycle.Options{
		StrictTransitions: cfg.Lifecycle.StrictTransitions,
	})

	server := api.NewServer(cfg.Registry(), manager, ledger, log)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router,
	}

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics.Port, log)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
	}()

	log.Info("starting kitchen server",
		zap.Int("port", cfg.Server.Port),
		zap.Int("tenants", len(cfg.Tenants)),
		zap.Bool("strict_transitions", cfg.Lifecycle.StrictTransitions))

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}
}

func startMetricsServer(port int, log *zap.Logger) {
	metricsRouter := gin.New()
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info("starting metrics server", zap.Int("port", port))
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), metricsRouter); err != nil {
		log.Error("metrics server error", zap.Error(err))
	}
}
