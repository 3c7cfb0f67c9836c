package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"matchserver/matching"
)

// Каталог в промпте ограничен, чтобы не выйти за контекст модели.
const maxPromptProducts = 3000

// matchSystemPrompt инструкция модели: словарь сокращений клиентов,
// форматы каталога и жесткие правила валидации размеров и типов.
const matchSystemPrompt = `Ты помощник по сопоставлению сантехнических товаров (канализация, ППР, водопровод).
Найди ЛУЧШЕЕ совпадение из каталога для запроса клиента.

СОКРАЩЕНИЯ КЛИЕНТОВ:
- "ПП" / "ППР" = полипропилен
- "арм." = армированная (труба армированная стекловолокном)
- "ред." = ПЕРЕХОДНИК (тройник ред. 40*25*40 = тройник переходник 40-25-40)
- "НР" = наружная резьба, "ВР" = внутренняя резьба
- "американка" = муфта разъемная
- "90*40*90" = размеры через * (вместо ×)
- "PN25 40*6,7" = труба PN25 диаметр 40 толщина стенки 6.7
- "компенсирующая петля" = компенсатор

СИНОНИМЫ (одно и то же):
- колено/угол/угольник = отвод
- американка = муфта разъемная
- ред./ред = переходник
- опора/держатель/стойка для труб = клипсы (крепёж)
- хомут с защёлкой = клипсы

ФОРМАТЫ КАТАЛОГА (ВАЖНО!):
- "Муфта разъемная ППР ЭКО с нар. рез. белый 32x1"" = Муфта НР 32×1" (американка с наружной резьбой)
- "Муфта разъемная ППР ЭКО с вн. рез. белый 32x1"" = Муфта ВР 32×1" (американка с внутренней резьбой)
- "Тройник переходник ППР белый 40-25-40" = Тройник ред. 40*25*40
- "Муфта переходник ППР ВН/ВН белый 40-32" = Муфта ред. 40*32

РАЗМЕРЫ С РЕЗЬБОЙ (КРИТИЧНО!):
- "32*1" = 32мм × 1 дюйм резьбы (НЕ два размера фитинга!)
- "25*3/4" = 25мм × 3/4 дюйма резьбы
- "20*1/2" = 20мм × 1/2 дюйма резьбы
Если клиент пишет "Муфта НР 32*1" - ищи "Муфта разъемная с нар. рез. 32x1""!

КРИТИЧНЫЕ ПРАВИЛА:
1. РАЗМЕРЫ (110, 50, 32, 40 мм) - ВСЕГДА должны совпадать!
2. "колено/угол" = отвод
3. "переход" = переходник
4. "ред." = переходник (НЕ обычный фитинг!)
5. Углы: 45°, 67°, 87°, 90°
6. "НР/ВР" с размером через * = комбинированная муфта с резьбой
7. Если размер НЕ совпадает - confidence < 70
8. СТРОГО РАЗЛИЧАЙ: "Муфта" != "Отвод" (Confidence 0 если перепутал!)
9. СТРОГО РАЗЛИЧАЙ: "Наружная" (НР) != "Внутренняя" (ВР) резьба!
10. "Отвод 90" и "Отвод 45" - разные товары!

Ответь ТОЛЬКО JSON объектом со следующими полями:
{
  "sku": "артикул (string или null)",
  "name": "название (string или null)",
  "confidence": число от 0 до 100
}

Если товар НЕ найден, верни:
{"sku": null, "name": null, "confidence": 0}`

// Matcher подбирает товар каталога по свободной формулировке клиента
// через чат-модель
type Matcher struct {
	client ChatClient
}

var _ matching.LLMMatcher = (*Matcher)(nil)

// NewMatcher создает матчер поверх чат-клиента
func NewMatcher(client ChatClient) *Matcher {
	return &Matcher{client: client}
}

// Match отправляет запрос и кандидатов модели и разбирает ее ответ.
// nil без ошибки означает отказ модели от подбора.
func (m *Matcher) Match(ctx context.Context, query string, candidates []matching.Product) (*matching.Suggestion, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, nil
	}

	catalog := formatCatalog(candidates)
	if catalog == "" {
		return nil, nil
	}

	userPrompt := fmt.Sprintf("КАТАЛОГ ТОВАРОВ:\n%s\n\nЗАПРОС КЛИЕНТА: %s\nНайди лучший товар из каталога.", catalog, query)

	start := time.Now()
	content, err := m.client.ChatCompletion(ctx, []Message{
		{Role: "system", Content: matchSystemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	suggestion, err := parseSuggestion(content)
	if err != nil {
		return nil, fmt.Errorf("parse llm answer: %w", err)
	}
	if suggestion == nil {
		log.Printf("LLM match (%.2fs): %q → не найдено", time.Since(start).Seconds(), query)
		return nil, nil
	}

	log.Printf("LLM match (%.2fs): %q → %s (%.0f%%)", time.Since(start).Seconds(), query, suggestion.SKU, suggestion.Confidence)
	return suggestion, nil
}

// formatCatalog собирает компактный список кандидатов для промпта:
// по строке "артикул - название" на товар.
func formatCatalog(candidates []matching.Product) string {
	var b strings.Builder
	count := 0
	for _, p := range candidates {
		if p.SKU == "" || p.Name == "" {
			continue
		}
		if count >= maxPromptProducts {
			break
		}
		if count > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.SKU)
		b.WriteString(" - ")
		b.WriteString(p.Name)
		count++
	}
	return b.String()
}

// parseSuggestion разбирает JSON-ответ модели. Markdown-ограждения
// вычищаются, confidence приводится к числу и зажимается в 0-100.
func parseSuggestion(content string) (*matching.Suggestion, error) {
	clean := strings.TrimSpace(content)
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var raw struct {
		SKU        any `json:"sku"`
		Name       any `json:"name"`
		Confidence any `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(clean), &raw); err != nil {
		return nil, fmt.Errorf("invalid json %q: %w", clean, err)
	}

	sku := asString(raw.SKU)
	if sku == "" {
		return nil, nil
	}

	confidence := asFloat(raw.Confidence)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return &matching.Suggestion{
		SKU:        sku,
		Name:       asString(raw.Name),
		Confidence: confidence,
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asFloat приводит значение confidence к числу: модели возвращают
// то число, то строку.
func asFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
	}
	return 0
}
