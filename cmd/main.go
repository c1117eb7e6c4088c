package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"curation-service/internal/catalog"
	"curation-service/internal/config"
	"curation-service/internal/dedup"
	"curation-service/internal/events"
	"curation-service/internal/ledger"
	"curation-service/internal/lifecycle"
	"curation-service/internal/moderation"
	"curation-service/internal/pipeline"
	"curation-service/internal/quality"
	"curation-service/internal/repository"
	"curation-service/internal/scheduler"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repository
	curationRepo := repository.NewCurationRepository(db, redisClient)

	// Initialize event publisher only if NATS_URL is set
	var eventsPublisher *events.Publisher
	if cfg.NATSURL != "" {
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer func() {
		if eventsPublisher != nil {
			eventsPublisher.Close()
		}
	}()

	// Initialize curation components
	scorer, err := quality.NewScorer(quality.DefaultWeights(), cfg.InvalidPricePenalty)
	if err != nil {
		log.Fatal("Failed to initialize quality scorer:", err)
	}
	screener := moderation.NewScreener(nil)
	resolver := dedup.NewResolver(dedup.ResolverConfig{
		FuzzyMatchFloor:         cfg.FuzzyMatchFloor,
		ClusterMinSimilarity:    cfg.ClusterMinSimilarity,
		ClusterMinSize:          cfg.ClusterMinSize,
		ClusterMaxIterations:    cfg.ClusterMaxIterations,
		CrossMerchantPriceDelta: cfg.CrossMerchantPriceDelta,
		DuplicateScoreDiscount:  cfg.DuplicateScoreDiscount,
		Shards:                  cfg.WorkerCount,
	}, logger)
	tracker := lifecycle.NewTracker(lifecycle.Thresholds{
		StaleDays:     cfg.StaleThresholdDays,
		VeryStaleDays: cfg.VeryStaleThresholdDays,
	}, cfg.MinQualityScore)
	assembler := catalog.NewAssembler(cfg.MinQualityScore, cfg.HighQualityThreshold, cfg.PriceBandBreakpoints, cfg.CategoryCatalogCap, logger)
	issueLedger := ledger.New(curationRepo, logger)

	curationPipeline := pipeline.New(curationRepo, scorer, screener, resolver, tracker, assembler, issueLedger, eventsPublisher, cfg, logger)

	// Run one curation pass at startup so the catalog view is warm
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Minute)
	if _, err := curationPipeline.RunCuration(startupCtx); err != nil {
		log.Printf("WARNING: Startup curation pass failed: %v", err)
	}
	startupCancel()

	// Start the periodic full re-evaluation
	curationScheduler := scheduler.New(curationPipeline, cfg.ReevalCronSpec, logger)
	if err := curationScheduler.Start(); err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}
	defer curationScheduler.Stop()

	logger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"reevalCron":  cfg.ReevalCronSpec,
	}).Info("Curation service started")

	// Block until shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down curation service")
}
