package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// HTTP
	HTTPAddr    string
	MetricsAddr string

	// Redis fan-out; empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisLatestTTL time.Duration
	// WSRelay feeds WebSocket clients from Redis PubSub instead of the local store.
	WSRelay bool

	// Indicators
	SMAPeriod int
	EMAPeriod int

	// Generator (comma-separated ids, e.g. "DEMO,ALT")
	SeriesIDs         string
	GeneratorInterval time.Duration
	GeneratorSeed     int64
	PreloadPoints     int

	RingCapacity int
	LogLevel     string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0, 0),
		RedisLatestTTL: time.Duration(getEnvInt("REDIS_LATEST_TTL_SEC", 1800, 1)) * time.Second,
		WSRelay:        getEnvBool("WS_RELAY", false),

		// Defaults of the original analysis service.
		SMAPeriod: getEnvInt("SMA_PERIOD", 20, 1),
		EMAPeriod: getEnvInt("EMA_PERIOD", 50, 1),

		SeriesIDs:         getEnv("SERIES_IDS", "DEMO"),
		GeneratorInterval: time.Duration(getEnvInt("GENERATOR_INTERVAL_MS", 1000, 0)) * time.Millisecond,
		GeneratorSeed:     int64(getEnvInt("GENERATOR_SEED", 0, 0)),
		PreloadPoints:     getEnvInt("PRELOAD_POINTS", 0, 0),

		RingCapacity: getEnvInt("RING_CAPACITY", 1024, 2),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

// ParseSeriesIDs splits SeriesIDs on commas, trimming blanks and dropping
// duplicates. Order is preserved.
func (c *Config) ParseSeriesIDs() []string {
	parts := strings.Split(c.SeriesIDs, ",")
	ids := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		ids = append(ids, p)
	}
	return ids
}

// Seed returns GeneratorSeed, or a time-based seed when it is 0.
func (c *Config) Seed() int64 {
	if c.GeneratorSeed != 0 {
		return c.GeneratorSeed
	}
	return time.Now().UnixNano()
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt parses key as an int >= floor, falling back on absence or error.
func getEnvInt(key string, fallback, floor int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < floor {
		log.Printf("[config] invalid %s=%q (want integer >= %d), using %d", key, v, floor, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid %s=%q (want bool), using %v", key, v, fallback)
		return fallback
	}
	return b
}
