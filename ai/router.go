package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Provider именованный провайдер чат-модели для маршрутизатора
type Provider struct {
	Name   string
	Client ChatClient
}

// RouterClient перебирает провайдеров по порядку до первого успешного
// ответа. Основной провайдер бесплатный и жестко ограничен по частоте,
// запасной подхватывает его отказы.
type RouterClient struct {
	providers []Provider
}

var _ ChatClient = (*RouterClient)(nil)

// NewRouterClient создает маршрутизатор поверх списка провайдеров.
// Провайдеры с nil-клиентом пропускаются.
func NewRouterClient(providers ...Provider) *RouterClient {
	return &RouterClient{providers: providers}
}

// ChatCompletion пробует провайдеров по очереди и возвращает первый
// успешный ответ
func (c *RouterClient) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	var errs []error
	for i, p := range c.providers {
		if p.Client == nil {
			continue
		}
		if i > 0 {
			log.Printf("⚠ Переключение на резервного провайдера %s", p.Name)
		}
		content, err := p.Client.ChatCompletion(ctx, messages)
		if err == nil {
			return content, nil
		}
		log.Printf("✗ Провайдер %s недоступен: %v", p.Name, err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))

		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no llm providers configured")
	}
	return "", fmt.Errorf("all llm providers failed: %w", errors.Join(errs...))
}
