package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// Параметры генерации для задач сопоставления: низкая температура,
// короткий JSON-ответ.
const (
	chatTemperature = 0.1
	chatMaxTokens   = 1024
)

// OpenRouterClient клиент для работы с OpenRouter API
type OpenRouterClient struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	retryConfig RetryConfig
}

var _ ChatClient = (*OpenRouterClient)(nil)

// NewOpenRouterClient создает новый клиент OpenRouter
func NewOpenRouterClient(apiKey, model string, timeout time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		baseURL:     "https://openrouter.ai/api/v1",
		apiKey:      apiKey,
		model:       model,
		httpClient:  newPooledHTTPClient(timeout),
		retryConfig: DefaultRetryConfig(),
	}
}

// Model возвращает имя модели клиента
func (c *OpenRouterClient) Model() string {
	return c.model
}

// ChatCompletion выполняет запрос к OpenRouter API для получения ответа от модели.
// Поддерживает retry с экспоненциальной задержкой для ошибок rate limit и 5xx.
func (c *OpenRouterClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("openrouter api key is not configured")
	}

	url := fmt.Sprintf("%s/chat/completions", c.baseURL)

	jsonData, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: chatTemperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	delay := c.retryConfig.InitialDelay

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[OpenRouter] Retry attempt %d/%d for ChatCompletion after %v", attempt, c.retryConfig.MaxRetries, delay)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("context cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.retryConfig.BackoffMultiplier)
			if delay > c.retryConfig.MaxDelay {
				delay = c.retryConfig.MaxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		req.Header.Set("HTTP-Referer", "https://github.com/your-repo") // OpenRouter требует HTTP-Referer
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Printf("[OpenRouter] Request failed (attempt %d/%d): %v", attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", string(body))
			log.Printf("[OpenRouter] Rate limit exceeded (attempt %d/%d), retry after %v",
				attempt+1, c.retryConfig.MaxRetries+1, delay)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var errorResp struct {
				Error *struct {
					Message string `json:"message"`
					Type    string `json:"type"`
				} `json:"error,omitempty"`
			}
			json.Unmarshal(body, &errorResp)

			errorMsg := string(body)
			if errorResp.Error != nil {
				errorMsg = errorResp.Error.Message
				// Quota exceeded не временная ошибка, повторы бессмысленны.
				if strings.Contains(strings.ToLower(errorMsg), "quota") ||
					strings.Contains(strings.ToLower(errorResp.Error.Type), "quota") {
					return "", fmt.Errorf("quota exceeded: %s (type: %s)", errorMsg, errorResp.Error.Type)
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, errorMsg)

			if resp.StatusCode >= 500 && attempt < c.retryConfig.MaxRetries {
				log.Printf("[OpenRouter] Server error %d (attempt %d/%d), will retry",
					resp.StatusCode, attempt+1, c.retryConfig.MaxRetries+1)
				continue
			}
			return "", lastErr
		}

		var response chatResponse
		if err := json.Unmarshal(body, &response); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			log.Printf("[OpenRouter] Failed to decode response (attempt %d/%d): %v",
				attempt+1, c.retryConfig.MaxRetries+1, lastErr)
			continue
		}

		return response.content()
	}

	return "", fmt.Errorf("all retry attempts failed: %w", lastErr)
}
