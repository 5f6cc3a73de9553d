package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config is the client configuration, loaded from the environment.
type Config struct {
	Environment string
	LogLevel    slog.Level

	// Generator provider: "gemini" or "ollama".
	Provider string

	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string

	OllamaURL   string
	OllamaModel string

	// RedisAddr selects the Redis-backed session store when set;
	// otherwise sessions persist to a file under SaveDir.
	RedisAddr string
	SaveDir   string
	SaveSlot  string

	// ScenarioPath overrides the built-in world when set.
	ScenarioPath string
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		Provider: getEnv("VERIDIA_PROVIDER", "gemini"),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiImageModel: getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),

		OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel: getEnv("OLLAMA_MODEL", "llama3.1"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		SaveDir:   getEnv("VERIDIA_SAVE_DIR", defaultSaveDir()),
		SaveSlot:  getEnv("VERIDIA_SAVE_SLOT", "adventure"),

		ScenarioPath: getEnv("VERIDIA_SCENARIO", ""),
	}
}

func defaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.veridia"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
