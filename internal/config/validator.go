package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	var errors []string

	// Валидация порта
	if c.Port == "" {
		errors = append(errors, "port is required")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("invalid port: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("port must be between 1 and 65535, got %d", port))
		}
	}

	// Валидация пути к базе данных
	if c.DatabasePath == "" {
		errors = append(errors, "database path is required")
	}

	// Валидация порогов сопоставления
	thresholds := map[string]float64{
		"fuzzy threshold":       c.FuzzyThreshold,
		"exact sku confidence":  c.ConfidenceExactSku,
		"exact name confidence": c.ConfidenceExactName,
		"fuzzy sku confidence":  c.ConfidenceFuzzySku,
		"fuzzy name confidence": c.ConfidenceFuzzyName,
		"ml confidence":         c.ConfidenceML,
		"min auto confidence":   c.MinConfidenceAuto,
	}
	for name, value := range thresholds {
		if value < 0 || value > 100 {
			errors = append(errors, fmt.Sprintf("%s must be between 0 and 100, got %g", name, value))
		}
	}

	// Валидация LLM конфигурации
	if c.LLMModel == "" {
		errors = append(errors, "llm model is required")
	}
	if c.EnableMLMatching && c.OpenRouterAPIKey == "" && c.GroqAPIKey == "" {
		errors = append(errors, "ml matching is enabled but no llm api key is configured")
	}

	// Валидация таймаутов
	if c.LLMTimeout < time.Second {
		errors = append(errors, "llm timeout must be at least 1 second")
	}
	if c.EmbeddingsTimeout < time.Second {
		errors = append(errors, "embeddings timeout must be at least 1 second")
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, "shutdown timeout must be at least 1 second")
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// GetDefaults возвращает конфигурацию со значениями по умолчанию
func GetDefaults() *Config {
	return &Config{
		Port:                "9999",
		ReadTimeout:         15 * time.Second,
		WriteTimeout:        60 * time.Second,
		ShutdownTimeout:     10 * time.Second,
		DatabasePath:        "./data/matchserver.db",
		FuzzyThreshold:      70,
		ConfidenceExactSku:  100,
		ConfidenceExactName: 95,
		ConfidenceFuzzySku:  90,
		ConfidenceFuzzyName: 80,
		ConfidenceML:        70,
		MinConfidenceAuto:   80,
		EnableMLMatching:    false,
		LLMModel:            "google/gemini-2.0-flash-001",
		GroqModel:           "llama-3.3-70b-versatile",
		LLMTimeout:          15 * time.Second,
		EmbeddingsURL:       "https://openrouter.ai/api/v1",
		EmbeddingsModel:     "text-embedding-3-small",
		EmbeddingsTimeout:   30 * time.Second,
	}
}
