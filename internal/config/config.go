package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	AdminJWTSecret string

	// Channel bridge (WhatsApp socket bridge)
	BridgeWSURL          string
	BridgeReconnectDelay time.Duration
	HistoryLimit         int

	// Generative AI backend
	AIAPIURL        string
	AIAPISecret     string
	AITimeout       time.Duration
	AIRetries       int
	AIRetryBaseWait time.Duration
	AIAutoReply     bool

	// Person/vehicle lookup backend
	LookupAPIURL   string
	LookupAPIToken string
	LookupTimeout  time.Duration

	// Conversation engine
	MenuFamily        string
	MenuTimeout       time.Duration
	LookupMenuTimeout time.Duration
	SearchKinds       []string
	SweepInterval     time.Duration

	// Session store backend (in-memory when RedisAddr empty)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		BridgeWSURL:          getEnv("BRIDGE_WS_URL", ""),
		BridgeReconnectDelay: getEnvAsDuration("BRIDGE_RECONNECT_DELAY", 3*time.Second),
		HistoryLimit:         getEnvAsInt("HISTORY_LIMIT", 500),

		AIAPIURL:        getEnv("AI_API_URL", ""),
		AIAPISecret:     getEnv("AI_API_SECRET", ""),
		AITimeout:       getEnvAsDuration("AI_TIMEOUT", 30*time.Second),
		AIRetries:       getEnvAsInt("AI_RETRIES", 2),
		AIRetryBaseWait: getEnvAsDuration("AI_RETRY_BASE_WAIT", time.Second),
		AIAutoReply:     getEnvAsBool("AI_AUTO_REPLY", false),

		LookupAPIURL:   getEnv("LOOKUP_API_URL", ""),
		LookupAPIToken: getEnv("LOOKUP_API_TOKEN", ""),
		LookupTimeout:  getEnvAsDuration("LOOKUP_TIMEOUT", 15*time.Second),

		MenuFamily:        strings.ToLower(strings.TrimSpace(getEnv("MENU_FAMILY", "lookup"))),
		MenuTimeout:       getEnvAsDuration("MENU_TIMEOUT", time.Minute),
		LookupMenuTimeout: getEnvAsDuration("LOOKUP_MENU_TIMEOUT", 2*time.Minute),
		SearchKinds:       getEnvAsList("SEARCH_KINDS", []string{"nombres", "cedula", "placa"}),
		SweepInterval:     getEnvAsDuration("SESSION_SWEEP_INTERVAL", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
