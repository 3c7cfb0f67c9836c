package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// RetryConfig конфигурация повторных попыток
type RetryConfig struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig возвращает конфигурацию повторных попыток по умолчанию
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Message сообщение диалога с чат-моделью
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient выполняет один запрос к чат-модели и возвращает текст ответа
type ChatClient interface {
	ChatCompletion(ctx context.Context, messages []Message) (string, error)
}

// newPooledHTTPClient создает HTTP клиент с пулом соединений
func newPooledHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 5,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// parseRetryAfter парсит заголовок Retry-After из ответа
func parseRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
		return seconds
	}
	return 0
}

// chatRequest тело запроса OpenAI-совместимого chat/completions API
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// chatResponse ответ OpenAI-совместимого chat/completions API
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (r *chatResponse) content() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("API error: %s (type: %s)", r.Error.Message, r.Error.Type)
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return r.Choices[0].Message.Content, nil
}
