package matching

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"unicode/utf8"
)

// Service прогоняет позиции заказов через каскад стратегий сопоставления.
// Каталог загружается один раз и кэшируется, маппинги кэшируются
// отдельно по каждому клиенту.
type Service struct {
	cfg        Config
	catalog    CatalogRepo
	mappings   MappingRepo
	strategies []Strategy
	stats      *Stats

	catalogMu     sync.Mutex
	products      []Product
	productsReady bool

	clientsMu sync.Mutex
	clients   map[string]*clientMappings
}

// clientMappings - кэш подтвержденных маппингов одного клиента.
// Лок на запись гарантирует единственную загрузку из базы.
type clientMappings struct {
	mu     sync.Mutex
	loaded bool
	data   map[string]Mapping
}

// NewService собирает сервис с полным каскадом стратегий.
// index и llm могут быть nil, тогда соответствующие стратегии
// работают в ограниченном режиме или пропускаются.
func NewService(cfg Config, catalog CatalogRepo, mappings MappingRepo, index EmbeddingIndex, llm LLMMatcher) *Service {
	return &Service{
		cfg:      cfg,
		catalog:  catalog,
		mappings: mappings,
		strategies: []Strategy{
			&ExactSkuStrategy{cfg: cfg},
			&ExactNameStrategy{cfg: cfg},
			&CachedMappingStrategy{cfg: cfg},
			&FuzzySkuStrategy{cfg: cfg},
			NewHybridStrategy(cfg, index),
			NewLLMStrategy(cfg, llm, index),
		},
		stats:   NewStats(),
		clients: make(map[string]*clientMappings),
	}
}

// MatchItem сопоставляет одну позицию с каталогом. Успешные точные
// совпадения автоматически сохраняются как маппинги клиента.
func (s *Service) MatchItem(ctx context.Context, req MatchRequest) (MatchResult, error) {
	res, _, err := s.matchOne(ctx, req, true)
	return res, err
}

// MatchOrderItems сопоставляет позиции заказа по порядку.
func (s *Service) MatchOrderItems(ctx context.Context, clientID string, items []OrderItem, autoSave bool) ([]ItemMatch, error) {
	results := make([]ItemMatch, 0, len(items))
	for _, item := range items {
		req := MatchRequest{
			ClientID:   clientID,
			ClientSKU:  item.ClientSKU,
			ClientName: item.ClientName,
		}
		res, saved, err := s.matchOne(ctx, req, autoSave)
		if err != nil {
			return nil, err
		}
		results = append(results, ItemMatch{Item: item, Result: res, AutoSaved: saved})
	}
	return results, nil
}

func (s *Service) matchOne(ctx context.Context, req MatchRequest, autoSave bool) (MatchResult, bool, error) {
	// Эвристика перепутанных колонок: длинная строка с пробелами
	// в поле артикула почти наверняка является названием.
	if req.ClientName == "" && utf8.RuneCountInString(req.ClientSKU) > 10 && strings.ContainsAny(req.ClientSKU, " \t") {
		req.ClientName = req.ClientSKU
		req.ClientSKU = ""
	}

	if req.ClientSKU == "" && req.ClientName == "" {
		res := notFoundResult()
		s.stats.Record(res)
		return res, false, nil
	}

	products, err := s.loadProducts(ctx)
	if err != nil {
		return MatchResult{}, false, err
	}

	mappings := map[string]Mapping{}
	if req.ClientID != "" {
		mappings = s.loadMappings(ctx, req.ClientID)
	}

	var result *MatchResult
	for _, strat := range s.strategies {
		if r := strat.Match(ctx, req, products, mappings); r != nil {
			log.Printf("✓ [%s] %q → %s (%.0f%%)", strat.Name(), requestLabel(req), r.ProductSKU, r.Confidence)
			result = r
			break
		}
	}
	if result == nil {
		res := notFoundResult()
		log.Printf("✗ не найдено: %q", requestLabel(req))
		s.stats.Record(res)
		return res, false, nil
	}

	s.stats.Record(*result)

	saved := false
	if autoSave {
		saved = s.autoSave(ctx, req, *result)
	}
	return *result, saved, nil
}

// loadProducts отдает кэшированный каталог, загружая его при первом
// обращении. Конкурирующие вызовы ждут на локе единственную загрузку.
func (s *Service) loadProducts(ctx context.Context) ([]Product, error) {
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()

	if s.productsReady {
		return s.products, nil
	}
	products, err := s.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	s.products = products
	s.productsReady = true
	log.Printf("✓ каталог загружен: %d товаров", len(products))
	return s.products, nil
}

// loadMappings отдает подтвержденные маппинги клиента из кэша.
// Ошибка загрузки дает пустой набор на текущий вызов и не кэшируется,
// следующий запрос попробует снова.
func (s *Service) loadMappings(ctx context.Context, clientID string) map[string]Mapping {
	s.clientsMu.Lock()
	entry, ok := s.clients[clientID]
	if !ok {
		entry = &clientMappings{}
		s.clients[clientID] = entry
	}
	s.clientsMu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.loaded {
		return entry.data
	}
	data, err := s.mappings.ListVerified(ctx, clientID)
	if err != nil {
		log.Printf("⚠ маппинги клиента %s недоступны: %v", clientID, err)
		return map[string]Mapping{}
	}
	if data == nil {
		data = map[string]Mapping{}
	}
	entry.data = data
	entry.loaded = true
	return entry.data
}

// autoSave сохраняет точное совпадение как маппинг клиента. Сбой
// записи не влияет на результат сопоставления.
func (s *Service) autoSave(ctx context.Context, req MatchRequest, res MatchResult) bool {
	if !s.autoSaveEligible(req, res) {
		return false
	}
	m := Mapping{
		ClientID:   req.ClientID,
		ClientSKU:  req.ClientSKU,
		ClientName: req.ClientName,
		ProductID:  res.ProductID,
		Confidence: res.Confidence,
		MatchType:  res.MatchType,
		Verified:   false,
	}
	if err := s.mappings.Upsert(ctx, m); err != nil {
		log.Printf("⚠ автосохранение маппинга %s → %s не удалось: %v", req.ClientSKU, res.ProductSKU, err)
		return false
	}
	s.invalidateClient(req.ClientID)
	return true
}

func (s *Service) autoSaveEligible(req MatchRequest, res MatchResult) bool {
	switch res.MatchType {
	case MatchExactSku, MatchExactName, MatchCachedMapping:
	default:
		return false
	}
	return res.Confidence >= s.cfg.ConfidenceExactName &&
		res.ProductID != "" &&
		req.ClientSKU != "" &&
		req.ClientID != ""
}

// SaveMapping записывает маппинг и сбрасывает кэш клиента.
func (s *Service) SaveMapping(ctx context.Context, m Mapping) error {
	if err := s.mappings.Upsert(ctx, m); err != nil {
		return err
	}
	s.invalidateClient(m.ClientID)
	return nil
}

// ClearCache сбрасывает кэш каталога и всех клиентских маппингов.
func (s *Service) ClearCache() {
	s.catalogMu.Lock()
	s.products = nil
	s.productsReady = false
	s.catalogMu.Unlock()

	s.clientsMu.Lock()
	s.clients = make(map[string]*clientMappings)
	s.clientsMu.Unlock()

	log.Printf("✓ кэш каталога и маппингов сброшен")
}

// GetStats возвращает снимок счетчиков сопоставления.
func (s *Service) GetStats() StatsSnapshot {
	return s.stats.Snapshot()
}

// ResetStats обнуляет счетчики сопоставления.
func (s *Service) ResetStats() {
	s.stats.Reset()
}

func (s *Service) invalidateClient(clientID string) {
	s.clientsMu.Lock()
	delete(s.clients, clientID)
	s.clientsMu.Unlock()
}

func notFoundResult() MatchResult {
	return MatchResult{
		MatchType:   MatchNotFound,
		Confidence:  0,
		NeedsReview: true,
		PackQty:     1,
	}
}

func requestLabel(req MatchRequest) string {
	if req.ClientName != "" {
		return req.ClientName
	}
	return req.ClientSKU
}
