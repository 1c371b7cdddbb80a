package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// AI
	LiteLLMURL       string
	ModelID          string
	ExtractionModel  string
	OpenRouterAPIKey string

	// Knowledge extraction
	ExtractionWorkers    int
	ExtractionQueueDepth int
	UnderstandTimeout    time.Duration
	ContextMaxNodes      int
	HistoryWindow        int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		Neo4jURI:         getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:        getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:    getEnv("NEO4J_PASSWORD", "password"),
		LiteLLMURL:       getEnv("LITELLM_URL", "http://localhost:4000"),
		ModelID:          getEnv("MODEL_ID", "anthropic/claude-sonnet-4-5"),
		ExtractionModel:  getEnv("EXTRACTION_MODEL_ID", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),

		ExtractionWorkers:    getEnvInt("EXTRACTION_WORKERS", 2),
		ExtractionQueueDepth: getEnvInt("EXTRACTION_QUEUE_DEPTH", 64),
		UnderstandTimeout:    getEnvDuration("UNDERSTAND_TIMEOUT", 30*time.Second),
		ContextMaxNodes:      getEnvInt("CONTEXT_MAX_NODES", 20),
		HistoryWindow:        getEnvInt("HISTORY_WINDOW", 10),
	}

	// The extraction pipeline shares the chat model unless overridden
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = cfg.ModelID
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return fmt.Errorf("NEO4J_URI is required")
	}
	if c.Neo4jUser == "" {
		return fmt.Errorf("NEO4J_USER is required")
	}
	if c.Neo4jPassword == "" {
		return fmt.Errorf("NEO4J_PASSWORD is required")
	}
	if c.LiteLLMURL == "" {
		return fmt.Errorf("LITELLM_URL is required")
	}
	if c.ModelID == "" {
		return fmt.Errorf("MODEL_ID is required")
	}
	if c.ExtractionWorkers < 1 {
		return fmt.Errorf("EXTRACTION_WORKERS must be at least 1")
	}
	if c.ExtractionQueueDepth < 1 {
		return fmt.Errorf("EXTRACTION_QUEUE_DEPTH must be at least 1")
	}
	if c.ContextMaxNodes < 1 {
		return fmt.Errorf("CONTEXT_MAX_NODES must be at least 1")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
