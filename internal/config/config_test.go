package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("ожидался порт 9999, получен %s", cfg.Port)
	}
	if cfg.FuzzyThreshold != 70 {
		t.Errorf("ожидался порог 70, получен %g", cfg.FuzzyThreshold)
	}
	if cfg.MinConfidenceAuto != 80 {
		t.Errorf("ожидался min_confidence_auto 80, получен %g", cfg.MinConfidenceAuto)
	}
	if cfg.EnableMLMatching {
		t.Error("LLM-сопоставление должно быть выключено по умолчанию")
	}
	if cfg.LLMTimeout != 15*time.Second {
		t.Errorf("ожидался таймаут 15s, получен %v", cfg.LLMTimeout)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("FUZZY_THRESHOLD", "65.5")
	t.Setenv("ENABLE_ML_MATCHING", "true")
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("LLM_TIMEOUT", "20s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("ожидался порт 8080, получен %s", cfg.Port)
	}
	if cfg.FuzzyThreshold != 65.5 {
		t.Errorf("ожидался порог 65.5, получен %g", cfg.FuzzyThreshold)
	}
	if !cfg.EnableMLMatching {
		t.Error("LLM-сопоставление должно быть включено")
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Errorf("ожидался таймаут 20s, получен %v", cfg.LLMTimeout)
	}
	if cfg.EmbeddingsAPIKey != "test-key" {
		t.Errorf("ключ эмбеддингов должен наследоваться от OpenRouter, получен %q", cfg.EmbeddingsAPIKey)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError string
	}{
		{"Valid defaults", func(c *Config) {}, ""},
		{"Empty port", func(c *Config) { c.Port = "" }, "port is required"},
		{"Non-numeric port", func(c *Config) { c.Port = "abc" }, "invalid port"},
		{"Port out of range", func(c *Config) { c.Port = "70000" }, "between 1 and 65535"},
		{"Empty database path", func(c *Config) { c.DatabasePath = "" }, "database path is required"},
		{"Threshold above 100", func(c *Config) { c.FuzzyThreshold = 150 }, "between 0 and 100"},
		{"Negative confidence", func(c *Config) { c.ConfidenceML = -5 }, "between 0 and 100"},
		{"Empty llm model", func(c *Config) { c.LLMModel = "" }, "llm model is required"},
		{"ML without keys", func(c *Config) { c.EnableMLMatching = true }, "no llm api key"},
		{"Tiny llm timeout", func(c *Config) { c.LLMTimeout = 100 * time.Millisecond }, "llm timeout"},
		{"Tiny shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, ожидался nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ожидалась ошибка %q, получен nil", tt.wantError)
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("ожидалась ошибка %q, получена %q", tt.wantError, err.Error())
			}
		})
	}
}

func TestMatcherConfig(t *testing.T) {
	cfg := GetDefaults()
	cfg.FuzzyThreshold = 60
	cfg.ConfidenceExactSku = 99
	cfg.EnableMLMatching = true
	cfg.LLMTimeout = 25 * time.Second

	mc := cfg.MatcherConfig()

	if mc.FuzzyThreshold != 60 {
		t.Errorf("ожидался порог 60, получен %g", mc.FuzzyThreshold)
	}
	if mc.ConfidenceExactSku != 99 {
		t.Errorf("ожидалась уверенность 99, получена %g", mc.ConfidenceExactSku)
	}
	if !mc.EnableMLMatching {
		t.Error("флаг LLM-сопоставления должен переноситься")
	}
	if mc.LLMTimeout != 25*time.Second {
		t.Errorf("ожидался таймаут 25s, получен %v", mc.LLMTimeout)
	}
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT_VALUE", "42.5")
	if got := getEnvFloat("TEST_FLOAT_VALUE", 10); got != 42.5 {
		t.Errorf("ожидалось 42.5, получено %g", got)
	}

	t.Setenv("TEST_FLOAT_VALUE", "not-a-number")
	if got := getEnvFloat("TEST_FLOAT_VALUE", 10); got != 10 {
		t.Errorf("ожидалось значение по умолчанию 10, получено %g", got)
	}

	if got := getEnvFloat("TEST_FLOAT_MISSING", 7); got != 7 {
		t.Errorf("ожидалось значение по умолчанию 7, получено %g", got)
	}
}
