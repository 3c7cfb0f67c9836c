package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"matchserver/matching"
)

// Config конфигурация сервера
type Config struct {
	// Сервер
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// База данных
	DatabasePath string

	// Пороги сопоставления
	FuzzyThreshold      float64
	ConfidenceExactSku  float64
	ConfidenceExactName float64
	ConfidenceFuzzySku  float64
	ConfidenceFuzzyName float64
	ConfidenceML        float64
	MinConfidenceAuto   float64

	// LLM-сопоставление
	EnableMLMatching bool
	OpenRouterAPIKey string
	LLMModel         string
	GroqAPIKey       string
	GroqModel        string
	LLMTimeout       time.Duration

	// Эмбеддинги
	EmbeddingsURL     string
	EmbeddingsModel   string
	EmbeddingsAPIKey  string
	EmbeddingsTimeout time.Duration
}

// LoadConfig загружает конфигурацию из переменных окружения
func LoadConfig() (*Config, error) {
	config := &Config{
		// Сервер
		Port:            getEnv("SERVER_PORT", "9999"),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),

		// База данных
		DatabasePath: getEnv("DATABASE_PATH", "./data/matchserver.db"),

		// Пороги сопоставления
		FuzzyThreshold:      getEnvFloat("FUZZY_THRESHOLD", 70),
		ConfidenceExactSku:  getEnvFloat("CONFIDENCE_EXACT_SKU", 100),
		ConfidenceExactName: getEnvFloat("CONFIDENCE_EXACT_NAME", 95),
		ConfidenceFuzzySku:  getEnvFloat("CONFIDENCE_FUZZY_SKU", 90),
		ConfidenceFuzzyName: getEnvFloat("CONFIDENCE_FUZZY_NAME", 80),
		ConfidenceML:        getEnvFloat("CONFIDENCE_ML", 70),
		MinConfidenceAuto:   getEnvFloat("MIN_CONFIDENCE_AUTO", 80),

		// LLM-сопоставление
		EnableMLMatching: getEnv("ENABLE_ML_MATCHING", "false") == "true",
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		LLMModel:         getEnv("LLM_MODEL", "google/gemini-2.0-flash-001"),
		GroqAPIKey:       os.Getenv("GROQ_API_KEY"),
		GroqModel:        getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		LLMTimeout:       getEnvDuration("LLM_TIMEOUT", 15*time.Second),

		// Эмбеддинги
		EmbeddingsURL:     getEnv("EMBEDDINGS_URL", "https://openrouter.ai/api/v1"),
		EmbeddingsModel:   getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingsAPIKey:  os.Getenv("EMBEDDINGS_API_KEY"),
		EmbeddingsTimeout: getEnvDuration("EMBEDDINGS_TIMEOUT", 30*time.Second),
	}

	// Эмбеддинги по умолчанию ходят через OpenRouter с тем же ключом
	if config.EmbeddingsAPIKey == "" {
		config.EmbeddingsAPIKey = config.OpenRouterAPIKey
	}

	// Валидация
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// MatcherConfig возвращает пороги для конвейера сопоставления
func (c *Config) MatcherConfig() matching.Config {
	return matching.Config{
		FuzzyThreshold:      c.FuzzyThreshold,
		ConfidenceExactSku:  c.ConfidenceExactSku,
		ConfidenceExactName: c.ConfidenceExactName,
		ConfidenceFuzzySku:  c.ConfidenceFuzzySku,
		ConfidenceFuzzyName: c.ConfidenceFuzzyName,
		ConfidenceML:        c.ConfidenceML,
		MinConfidenceAuto:   c.MinConfidenceAuto,
		EnableMLMatching:    c.EnableMLMatching,
		LLMTimeout:          c.LLMTimeout,
	}
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvFloat получает переменную окружения как float64 или возвращает значение по умолчанию
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvDuration получает переменную окружения как Duration или возвращает значение по умолчанию
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
