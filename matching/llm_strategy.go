package matching

import (
	"context"
	"log"
	"time"

	"matchserver/extractors"
)

// Параметры отбора кандидатов для LLM: топ семантического поиска либо
// первые товары каталога, когда индекс недоступен.
const (
	llmCandidateTopK     = 20
	llmCandidateMinScore = 0.1
	llmFallbackPoolSize  = 50
	llmRejectConfidence  = 10
	llmReviewConfidence  = 85
)

// LLMStrategy - последний рубеж: свободную формулировку разбирает LLM,
// выбирая из короткого списка кандидатов. Ответ проходит валидацию:
// галлюцинации, несовпадение критичного типа и направления резьбы
// отбрасываются.
type LLMStrategy struct {
	cfg     Config
	matcher LLMMatcher
	index   EmbeddingIndex
}

var _ Strategy = (*LLMStrategy)(nil)

// NewLLMStrategy создает LLM-стратегию; matcher может быть nil, тогда
// стратегия всегда отвечает nil.
func NewLLMStrategy(cfg Config, matcher LLMMatcher, index EmbeddingIndex) *LLMStrategy {
	return &LLMStrategy{cfg: cfg, matcher: matcher, index: index}
}

func (s *LLMStrategy) Name() string { return "llm" }

func (s *LLMStrategy) Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult {
	if s.matcher == nil {
		return nil
	}
	query := req.ClientName
	if query == "" {
		query = req.ClientSKU
	}
	if query == "" {
		return nil
	}

	candidates := s.collectCandidates(ctx, query, products)
	if len(candidates) == 0 {
		return nil
	}

	timeout := s.cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	llmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	suggestion, err := s.matcher.Match(llmCtx, query, candidates)
	if err != nil {
		log.Printf("⚠ LLM недоступна: %v", err)
		return nil
	}
	if suggestion == nil || suggestion.SKU == "" {
		return nil
	}

	var product *Product
	for i := range products {
		if products[i].SKU == suggestion.SKU {
			product = &products[i]
			break
		}
	}
	if product == nil {
		log.Printf("⚠ LLM галлюцинация: артикула %q нет в каталоге", suggestion.SKU)
		return nil
	}

	confidence := min(max(suggestion.Confidence, 0), 100)

	// Несовпадение критичного типа товара обнуляет уверенность:
	// отвод вместо муфты хуже, чем отсутствие ответа.
	clientType := extractors.ExtractProductType(query)
	productType := extractors.ExtractProductType(product.Name)
	if clientType != "" && productType != "" && clientType != productType && criticalTypes[clientType] {
		log.Printf("✗ LLM перепутала тип: запрос %q, ответ %q", clientType, productType)
		confidence = 0
	}

	clientThread := extractors.ExtractThreadDirection(query)
	productThread := extractors.ExtractThreadDirection(product.Name)
	if clientThread != "" && productThread != "" && clientThread != productThread {
		log.Printf("✗ LLM перепутала резьбу: запрос %q, ответ %q", clientThread, productThread)
		confidence = 0
	}

	if confidence <= llmRejectConfidence {
		return nil
	}
	return resultFor(*product, confidence, MatchLLM, confidence < llmReviewConfidence)
}

// collectCandidates сужает каталог до короткого списка: топ
// семантического поиска, при его недоступности - первые товары каталога.
func (s *LLMStrategy) collectCandidates(ctx context.Context, query string, products []Product) []Product {
	if s.index != nil {
		hits, err := s.index.Search(ctx, query, llmCandidateTopK, llmCandidateMinScore)
		if err != nil {
			log.Printf("⚠ семантический отбор кандидатов не удался: %v", err)
		} else if len(hits) > 0 {
			byID := make(map[string]Product, len(products))
			for _, p := range products {
				byID[p.ID] = p
			}
			var candidates []Product
			for _, h := range hits {
				if p, ok := byID[h.ProductID]; ok {
					candidates = append(candidates, p)
				}
			}
			if len(candidates) > 0 {
				return candidates
			}
		}
	}
	if len(products) > llmFallbackPoolSize {
		return products[:llmFallbackPoolSize]
	}
	return products
}
