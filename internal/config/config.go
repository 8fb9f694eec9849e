package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config 应用配置，来自 .env 与环境变量
type Config struct {
	Port          string
	GinMode       string
	LogLevel      string
	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDB       string
	SessionSecret string
	JWTSecret     string
	JWTTTL        time.Duration
	EtcdEndpoints []string
	CORSOrigins   []string
	CacheSize     int
	CacheTTL      time.Duration
	SnowflakeNode int64
	RepairHour    int
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GinMode:       getEnv("GIN_MODE", "debug"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:   getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=campuslink port=5432 sslmode=disable TimeZone=UTC"),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "campuslink"),
		SessionSecret: getEnv("SESSION_SECRET", "secret_key_change_me"),
		JWTSecret:     getEnv("JWT_SECRET", "jwt_secret_change_me"),
		JWTTTL:        getEnvAsDuration("JWT_TTL", 24*time.Hour),
		EtcdEndpoints: getEnvAsList("ETCD_ENDPOINTS"),
		CORSOrigins:   getEnvAsList("CORS_ORIGINS"),
		CacheSize:     getEnvAsInt("CACHE_SIZE", 500),
		CacheTTL:      getEnvAsDuration("CACHE_TTL", time.Minute),
		SnowflakeNode: int64(getEnvAsInt("SNOWFLAKE_NODE", 1)),
		RepairHour:    getEnvAsInt("REPAIR_HOUR", 3),
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("SNOWFLAKE_NODE must be within 0-1023, got %d", c.SnowflakeNode)
	}
	if c.RepairHour < 0 || c.RepairHour > 23 {
		return fmt.Errorf("REPAIR_HOUR must be within 0-23, got %d", c.RepairHour)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE must be positive, got %d", c.CacheSize)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultVal int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
