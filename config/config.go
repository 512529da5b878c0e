// Package config loads the environment-driven process configuration and
// the YAML source catalog driving discovery and extraction.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
)

// Config represents the process-level application configuration
type Config struct {
	// Redis configuration (optional persistence collaborator)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration (optional shared HTTP cache backend)
	MemcacheAddr string

	// HTTP client configuration
	RequestTimeout    time.Duration
	CacheTTL          time.Duration
	RequestsPerSecond float64

	// Environment
	Environment string
}

// LoadConfig loads the process configuration from environment variables
// with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	streamCount, _ := strconv.Atoi(getEnv("REDIS_STREAM_COUNT", "1"))
	streamMaxLength, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "500"))
	timeoutSec, _ := strconv.Atoi(getEnv("REQUEST_TIMEOUT_SECONDS", "30"))
	cacheTTLSec, _ := strconv.Atoi(getEnv("CACHE_TTL_SECONDS", "300"))
	rps, _ := strconv.ParseFloat(getEnv("REQUESTS_PER_SECOND", "2.0"), 64)

	return &Config{
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "grants"),
		RedisStreamCount:     streamCount,
		RedisStreamMaxLength: streamMaxLength,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RequestTimeout:       time.Duration(timeoutSec) * time.Second,
		CacheTTL:             time.Duration(cacheTTLSec) * time.Second,
		RequestsPerSecond:    rps,
		Environment:          getEnv("SCRAPER_ENVIRONMENT", "development"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// missingVars collects unset required variables during one interpolation pass
type interpolationError struct {
	missing []string
}

func (e *interpolationError) Error() string {
	return fmt.Sprintf("missing required environment variables: %v", e.missing)
}

// InterpolateEnv substitutes ${VAR} and ${VAR:-default} placeholders.
// A bare ${VAR} with the variable unset is a load error; the :- form
// warns and substitutes the default (possibly empty).
func InterpolateEnv(text string, warn func(varName string)) (string, error) {
	var missing []string

	result := envVarRe.ReplaceAllStringFunc(text, func(match string) string {
		expr := match[2 : len(match)-1]
		if name, def, ok := splitDefault(expr); ok {
			if value, set := os.LookupEnv(name); set {
				return value
			}
			if warn != nil {
				warn(name)
			}
			return def
		}
		if value, set := os.LookupEnv(expr); set {
			return value
		}
		missing = append(missing, expr)
		return ""
	})

	if len(missing) > 0 {
		return "", &interpolationError{missing: missing}
	}
	return result, nil
}

func splitDefault(expr string) (name, def string, ok bool) {
	for i := 0; i+1 < len(expr); i++ {
		if expr[i] == ':' && expr[i+1] == '-' {
			return expr[:i], expr[i+2:], true
		}
	}
	return expr, "", false
}
