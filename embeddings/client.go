package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// Параметры повторных попыток и батчирования.
const (
	maxRetries        = 3
	initialDelay      = 500 * time.Millisecond
	maxDelay          = 10 * time.Second
	backoffMultiplier = 2.0
	batchSize         = 64
)

// Client клиент OpenAI-совместимого API эмбеддингов. Векторы
// нормализуются к единичной длине сразу при получении, поэтому
// косинусное сходство дальше считается скалярным произведением.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient создает клиент эмбеддингов с пулом соединений и
// ограничителем частоты запросов.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
		DisableCompression:  false,
		MaxIdleConnsPerHost: 5,
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed кодирует тексты в единичные векторы. Тексты отправляются
// батчами, порядок результата совпадает с порядком входа.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedBatch выполняет один запрос к API с повторными попытками
// для rate limit и ошибок сервера.
func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/embeddings", c.baseURL)

	jsonData, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	delay := initialDelay

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			log.Printf("[Embeddings] Retry attempt %d/%d after %v", attempt, maxRetries, delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * backoffMultiplier)
			if delay > maxDelay {
				delay = maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			log.Printf("[Embeddings] Request failed (attempt %d/%d): %v", attempt+1, maxRetries+1, lastErr)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := parseRetryAfter(resp); retryAfter > 0 {
				delay = retryAfter
			}
			lastErr = fmt.Errorf("rate limit exceeded (429): %s", string(body))
			log.Printf("[Embeddings] Rate limit exceeded (attempt %d/%d), retry after %v", attempt+1, maxRetries+1, delay)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d: %s", resp.StatusCode, string(body))
			log.Printf("[Embeddings] Server error %d (attempt %d/%d), will retry", resp.StatusCode, attempt+1, maxRetries+1)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}

		var embResp embeddingResponse
		if err := json.Unmarshal(body, &embResp); err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			log.Printf("[Embeddings] Failed to decode response (attempt %d/%d): %v", attempt+1, maxRetries+1, lastErr)
			continue
		}
		if embResp.Error != nil {
			return nil, fmt.Errorf("API error: %s (type: %s)", embResp.Error.Message, embResp.Error.Type)
		}
		if len(embResp.Data) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Data))
		}

		// API не гарантирует порядок элементов, восстанавливаем по index.
		sort.Slice(embResp.Data, func(i, j int) bool { return embResp.Data[i].Index < embResp.Data[j].Index })

		vectors := make([][]float32, len(embResp.Data))
		for i, d := range embResp.Data {
			vectors[i] = normalizeVector(d.Embedding)
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("all retry attempts failed: %w", lastErr)
}

// parseRetryAfter парсит заголовок Retry-After из ответа.
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

// normalizeVector приводит вектор к единичной длине. Нулевой вектор
// возвращается как есть.
func normalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
