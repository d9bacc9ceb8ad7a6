package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type Config struct {
	HTTPPort        string
	DBPath          string
	MigrationsPath  string
	StoreBackend    string
	MongoURI        string
	MongoDBName     string
	RedisAddr       string
	RedisPassword   string
	CatalogSource   string
	CatalogURL      string
	KafkaBrokers    []string
	RestoreUID      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	ToastTTL        time.Duration
	LogLevel        string
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DBPath:          getEnv("DB_PATH", "./storefront.db"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		StoreBackend:    getEnv("STORE_BACKEND", "memory"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "cartdb"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		CatalogSource:   getEnv("CATALOG_SOURCE", "sqlite"),
		CatalogURL:      getEnv("CATALOG_URL", "https://fakestoreapi.com/products"),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		RestoreUID:      getEnv("RESTORE_UID", ""),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: 10 * time.Second,
		ToastTTL:        getDuration("TOAST_TTL", 3*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// bindFlags lets command-line flags override the environment.
func (c *Config) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.HTTPPort, "port", c.HTTPPort, "HTTP listen port")
	f.StringVar(&c.DBPath, "db", c.DBPath, "path to SQLite database")
	f.StringVar(&c.MigrationsPath, "migrations", c.MigrationsPath, "path to migration files")
	f.StringVar(&c.StoreBackend, "store", c.StoreBackend, "cart store backend (memory|mongo)")
	f.StringVar(&c.MongoURI, "mongo-uri", c.MongoURI, "MongoDB connection URI")
	f.StringVar(&c.MongoDBName, "mongo-db", c.MongoDBName, "MongoDB database name")
	f.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "Redis address for the change feed and catalog cache")
	f.StringVar(&c.CatalogSource, "catalog", c.CatalogSource, "catalog source (sqlite|http)")
	f.StringVar(&c.CatalogURL, "catalog-url", c.CatalogURL, "product listing URL for the http catalog")
	f.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka brokers for checkout events")
	f.StringVar(&c.RestoreUID, "restore-uid", c.RestoreUID, "account UID whose session is resumed on start")
	f.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "per-request timeout")
	f.DurationVar(&c.ToastTTL, "toast-ttl", c.ToastTTL, "notification display time")
	f.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug|info|warn|error)")
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case "memory":
	case "mongo":
		if c.RedisAddr == "" {
			return fmt.Errorf("mongo store requires REDIS_ADDR for change notifications")
		}
	default:
		return fmt.Errorf("invalid store backend %q: must be memory or mongo", c.StoreBackend)
	}

	switch c.CatalogSource {
	case "sqlite", "http":
	default:
		return fmt.Errorf("invalid catalog source %q: must be sqlite or http", c.CatalogSource)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
