// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

const devAuthSecret = "dev_auth_key_for_testing_purposes_only_"

// Config holds process configuration.
type Config struct {
	Port      string
	DataDir   string
	LogDir    string
	LogMode   string
	DebugMode bool

	StoreBackend string
	SQLitePath   string
	IndexPath    string // empty means an in-memory index

	GeneratorURL     string
	GeneratorTimeout time.Duration

	AuthSecret string // empty outside debug mode means a random per-process key
	TokenTTL   time.Duration
	UsersFile  string

	RedisAddr    string
	RedisChannel string
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	dataDir := getEnvPath("DATA_DIR", "data")

	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		DataDir:   dataDir,
		LogDir:    getEnvPath("LOG_DIR", "logs"),
		LogMode:   getEnv("LOG_MODE", "development"),
		DebugMode: getEnvBool("DEBUG_MODE", true),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		SQLitePath:   getEnv("SQLITE_PATH", filepath.Join(dataDir, "bookflow.db")),
		IndexPath:    getEnvAllowEmpty("INDEX_PATH", filepath.Join(dataDir, "bleve")),

		GeneratorURL:     strings.TrimRight(getEnv("GENERATOR_URL", ""), "/"),
		GeneratorTimeout: getEnvDuration("GENERATOR_TIMEOUT", 15*time.Minute),

		AuthSecret: getEnv("AUTH_SECRET_KEY", ""),
		TokenTTL:   getEnvDuration("TOKEN_TTL", 24*time.Hour),
		UsersFile:  getEnv("USERS_FILE", ""),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "bookflow:chapters"),
	}

	if cfg.AuthSecret == "" && cfg.DebugMode {
		cfg.AuthSecret = devAuthSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and required settings.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, file or sqlite)", c.StoreBackend)
	}
	if c.GeneratorTimeout <= 0 {
		return fmt.Errorf("GENERATOR_TIMEOUT must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// UsesDevSecret reports whether the fixed development signing key is in use.
func (c *Config) UsesDevSecret() bool {
	return c.AuthSecret == devAuthSecret
}

// LogFile is the path of the process log file.
func (c *Config) LogFile() string {
	return filepath.Join(c.LogDir, "bookflow.log")
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAllowEmpty distinguishes an unset variable from one set to "".
func getEnvAllowEmpty(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

// getEnvPath returns a directory path, creating it if missing.
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}

	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		fmt.Printf("warning: invalid duration %s=%q, using %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
