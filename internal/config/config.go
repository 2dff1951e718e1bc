package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration, read once from the environment.
// Business parameters (commission rates, timezone, warehouse display names)
// are not here: those live in the remote Config table, see Params.
type Config struct {
	Port            string
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLShort   time.Duration
	CacheTTLMedium  time.Duration
	CacheTTLLong    time.Duration
	LogLevel        string
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Port:            getEnv("PORT", "8080"),
		SpreadsheetID:   os.Getenv("SPREADSHEET_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		CredentialsJSON: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		CacheTTLShort:   envSeconds("CACHE_TTL_SHORT_SECONDS", 30),
		CacheTTLMedium:  envSeconds("CACHE_TTL_MEDIUM_SECONDS", 300),
		CacheTTLLong:    envSeconds("CACHE_TTL_LONG_SECONDS", 1800),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envSeconds(key string, fallback int) time.Duration {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
