package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"curation-service/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// NATS (optional, event publishing disabled when empty)
	NATSURL string

	// Environment
	Environment string

	// Quality scoring
	MinQualityScore      float64
	HighQualityThreshold float64
	InvalidPricePenalty  float64

	// Deduplication
	FuzzyMatchFloor         float64
	ClusterMinSimilarity    float64
	ClusterMinSize          int
	ClusterMaxIterations    int
	CrossMerchantPriceDelta float64
	DuplicateScoreDiscount  float64

	// Lifecycle
	StaleThresholdDays     int
	VeryStaleThresholdDays int

	// Catalog assembly
	PriceBandBreakpoints []float64
	CategoryCatalogCap   int

	// Pipeline
	ChunkSize        int
	WorkerCount      int
	ReevalCronSpec   string
	CatalogExportDir string
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))

	minQuality := getEnvFloat("MIN_QUALITY_SCORE", 0.3)
	highQuality := getEnvFloat("HIGH_QUALITY_THRESHOLD", 0.8)
	pricePenalty := getEnvFloat("INVALID_PRICE_PENALTY", 0.5)

	fuzzyFloor := getEnvFloat("FUZZY_MATCH_FLOOR", 0.65)
	clusterMinSim := getEnvFloat("CLUSTER_MIN_SIMILARITY", 0.70)
	clusterMinSize, _ := strconv.Atoi(getEnv("CLUSTER_MIN_SIZE", "2"))
	clusterMaxIter, _ := strconv.Atoi(getEnv("CLUSTER_MAX_ITERATIONS", "10000"))
	priceDelta := getEnvFloat("CROSS_MERCHANT_PRICE_DELTA", 0.05)
	dupDiscount := getEnvFloat("DUPLICATE_SCORE_DISCOUNT", 0.5)

	staleDays, _ := strconv.Atoi(getEnv("STALE_THRESHOLD_DAYS", "90"))
	veryStaleDays, _ := strconv.Atoi(getEnv("VERY_STALE_THRESHOLD_DAYS", "180"))

	catalogCap, _ := strconv.Atoi(getEnv("CATEGORY_CATALOG_CAP", "10000"))
	chunkSize, _ := strconv.Atoi(getEnv("CHUNK_SIZE", "1000"))
	workerCount, _ := strconv.Atoi(getEnv("WORKER_COUNT", "8"))

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "catalog_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		NATSURL:  os.Getenv("NATS_URL"),

		Environment: getEnv("ENVIRONMENT", "development"),

		MinQualityScore:      minQuality,
		HighQualityThreshold: highQuality,
		InvalidPricePenalty:  pricePenalty,

		FuzzyMatchFloor:         fuzzyFloor,
		ClusterMinSimilarity:    clusterMinSim,
		ClusterMinSize:          clusterMinSize,
		ClusterMaxIterations:    clusterMaxIter,
		CrossMerchantPriceDelta: priceDelta,
		DuplicateScoreDiscount:  dupDiscount,

		StaleThresholdDays:     staleDays,
		VeryStaleThresholdDays: veryStaleDays,

		PriceBandBreakpoints: getEnvFloats("PRICE_BAND_BREAKPOINTS", []float64{20, 75, 250}),
		CategoryCatalogCap:   catalogCap,

		ChunkSize:        chunkSize,
		WorkerCount:      workerCount,
		ReevalCronSpec:   getEnv("REEVAL_CRON", "0 3 * * *"),
		CatalogExportDir: getEnv("CATALOG_EXPORT_DIR", "exports"),
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Auto-migrate models to keep schema up to date.
	// Adds missing columns but never drops existing ones.
	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.DuplicateLink{},
		&models.QualityIssue{},
		&models.IngestionLog{},
	); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvFloats parses a comma-separated list of floats, e.g. "20,75,250"
func getEnvFloats(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}
