package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/config"
	"github.com/siddharthiitian/Flight-Amedus/handlers"
	"github.com/siddharthiitian/Flight-Amedus/logger"
	"github.com/siddharthiitian/Flight-Amedus/services"
	"github.com/siddharthiitian/Flight-Amedus/tracing"
)

func main() {
	// Load .env / .env.local / keys.env, then the process environment
	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("❌ %v (set them in the environment or a .env file)", err)
		}
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Set Gin mode
	release := cfg.GinMode == gin.ReleaseMode
	if release {
		gin.SetMode(gin.ReleaseMode)
	}

	lg, err := logger.New(cfg.LogLevel, release)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer lg.Sync()

	shutdownTracing, err := tracing.Init(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		lg.Warn("⚠️ tracing disabled", zap.Error(err))
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	// Initialize Amadeus client; a bad key should be visible at startup
	amadeus := services.NewAmadeusClient(cfg.Amadeus, cfg.DefaultCurrency, lg)
	warmCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := amadeus.Warm(warmCtx); err != nil {
		lg.Warn("⚠️ Amadeus token request failed, searches will report it", zap.String("env", cfg.Amadeus.Env), zap.Error(err))
	} else {
		lg.Info("✅ Amadeus authenticated", zap.String("env", cfg.Amadeus.Env), zap.Time("token_expires_at", amadeus.Tokens().Expiry()))
	}
	cancel()

	// Initialize itinerary generator
	generator := services.NewItineraryGenerator(services.NewChatClient(lg), cfg.MaxReprompts, cfg.DefaultCurrency, lg)

	r := handlers.NewRouter(handlers.New(cfg, amadeus, generator, lg))

	lg.Info("🚀 AI travel planner starting",
		zap.String("port", cfg.Port),
		zap.String("provider", cfg.DefaultProvider),
		zap.String("amadeus_env", cfg.Amadeus.Env),
	)
	if err := r.Run(":" + cfg.Port); err != nil {
		lg.Fatal("Failed to start server", zap.Error(err))
	}
}
