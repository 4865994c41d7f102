package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
}

type Config struct {
	Addr     string
	LogLevel string

	RegistryURL string
	Referer     string
	UserAgent   string
	Cookie      string

	GridSize       int
	PageSize       int
	MaxPages       int
	CallsPerMinute int
	PageDelay      time.Duration

	LookupCacheSize int

	Cache CacheCfg
}

func FromEnv() Config {
	gridSize := getint("GRID_SIZE", 3)
	if gridSize < 1 {
		gridSize = 3
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		RegistryURL: getenv("REGISTRY_URL", "https://catastro.crimpr.net"),
		Referer:     getenv("REGISTRY_REFERER", "https://catastro.crimpr.net/cdprpc/"),
		UserAgent: getenv("REGISTRY_USER_AGENT",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"),
		Cookie: getenv("REGISTRY_COOKIE", ""),

		GridSize:       gridSize,
		PageSize:       getint("PAGE_SIZE", 100),
		MaxPages:       getint("MAX_PAGES", 10),
		CallsPerMinute: getint("CALLS_PER_MINUTE", 30),
		PageDelay:      getduration("PAGE_DELAY", time.Second),

		LookupCacheSize: getint("LOOKUP_CACHE_SIZE", 128),

		Cache: CacheCfg{
			Enabled:   getbool("PAGE_CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("PAGE_CACHE_TTL", 15*time.Minute),
			OpTimeout: getduration("PAGE_CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
