package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Port        string
	BindAddress string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisHost   string
	RedisPort   string
	JWTSecret   string

	// Text analysis service
	AnalysisURL        string
	AnalysisTimeout    time.Duration
	RoleCheckTimeout   time.Duration
	AnalysisMaxRetries int
	AnalysisCacheTTL   time.Duration

	// Game defaults, used when content config leaves them unset
	DefaultTurnSeconds int
	DefaultTurnCycles  int
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		BindAddress: getEnv("BIND_ADDRESS", "localhost"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "lingoquest"),
		DBPassword:  getEnv("DB_PASSWORD", "lingoquest123"),
		DBName:      getEnv("DB_NAME", "lingoquest"),
		RedisHost:   getEnv("REDIS_HOST", "localhost"),
		RedisPort:   getEnv("REDIS_PORT", "6379"),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		AnalysisURL:        getEnv("ANALYSIS_URL", "http://localhost:9090"),
		AnalysisTimeout:    getEnvDuration("ANALYSIS_TIMEOUT", 8*time.Second),
		RoleCheckTimeout:   getEnvDuration("ROLE_CHECK_TIMEOUT", 1500*time.Millisecond),
		AnalysisMaxRetries: getEnvInt("ANALYSIS_MAX_RETRIES", 2),
		AnalysisCacheTTL:   getEnvDuration("ANALYSIS_CACHE_TTL", 120*time.Second),

		DefaultTurnSeconds: getEnvInt("DEFAULT_TURN_SECONDS", 60),
		DefaultTurnCycles:  getEnvInt("DEFAULT_TURN_CYCLES", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

func InitRedis(cfg *Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: "", // no password set
		DB:       0,  // use default DB
	})

	return client
}
