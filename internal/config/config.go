package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// DefaultRequestDelayMS follows the crates.io crawler policy of at most
	// one request per second, with a little headroom.
	DefaultRequestDelayMS = 1100

	defaultIndexURL  = "https://github.com/rust-lang/crates.io-index"
	defaultAPIURL    = "https://crates.io"
	defaultUserAgent = "bugbot9000/1.0 (https://github.com/timschmidt/bugbot9000)"
)

type Config struct {
	Port               string
	DBDriver           string
	DBConnectionString string
	OutputDir          string
	IndexURL           string
	IndexDir           string
	APIBaseURL         string
	APIToken           string
	UserAgent          string
	RequestDelay       time.Duration
}

func Load() (*Config, error) {
	port := getEnv("PORT", "8080")
	dbDriver := getEnv("BUGBOT_DB_DRIVER", "sqlite3")
	dbConnStr := getEnv("BUGBOT_DB_DSN", "bugbot.sqlite")
	outputDir := getEnv("BUGBOT_OUTPUT_DIR", "repos")
	indexURL := getEnv("BUGBOT_INDEX_URL", defaultIndexURL)
	indexDir := getEnv("BUGBOT_INDEX_DIR", ".crates-index")
	apiBaseURL := getEnv("BUGBOT_API_URL", defaultAPIURL)
	apiToken := getEnv("BUGBOT_API_TOKEN", "")
	userAgent := getEnv("BUGBOT_USER_AGENT", defaultUserAgent)

	delayMS, err := strconv.Atoi(getEnv("BUGBOT_DELAY_MS", strconv.Itoa(DefaultRequestDelayMS)))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:               port,
		DBDriver:           dbDriver,
		DBConnectionString: dbConnStr,
		OutputDir:          outputDir,
		IndexURL:           indexURL,
		IndexDir:           indexDir,
		APIBaseURL:         apiBaseURL,
		APIToken:           apiToken,
		UserAgent:          userAgent,
		RequestDelay:       time.Duration(delayMS) * time.Millisecond,
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
