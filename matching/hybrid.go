package matching

import (
	"context"
	"log"
	"slices"
	"strings"

	"matchserver/extractors"
	"matchserver/normalization"
)

// Параметры семантического префильтра и усиления.
const (
	semanticPoolSize = 50
	semanticMinScore = 0.4
	semanticBoostSim = 0.85
	semanticBoostMin = 40
)

// queryAttributes - атрибуты, извлеченные из сырой клиентской строки
// один раз перед перебором кандидатов.
type queryAttributes struct {
	pipeSize    extractors.PipeSize
	hasPipeSize bool
	fittingSize []int
	threadSize  extractors.ThreadSize
	hasThread   bool
	category    string
	productType string
	angle       int
	hasAngle    bool
	color       string
	clampMM     int
	hasClamp    bool
	eco         bool
	detachable  bool
	reducer     bool
	threadDir   string
}

func extractQueryAttributes(name string) queryAttributes {
	q := queryAttributes{
		fittingSize: extractors.ExtractFittingSize(name),
		category:    extractors.DetectClientCategory(name),
		productType: extractors.ExtractProductType(name),
		color:       extractors.ExtractColor(name),
		eco:         extractors.IsEco(name),
		detachable:  extractors.IsDetachable(name),
		reducer:     extractors.IsReducer(name),
		threadDir:   extractors.ExtractThreadDirection(name),
	}
	q.pipeSize, q.hasPipeSize = extractors.ExtractPipeSize(name)
	q.threadSize, q.hasThread = extractors.ExtractThreadSize(name)
	q.angle, q.hasAngle = extractors.ExtractAngle(name)
	q.clampMM, q.hasClamp = extractors.ExtractClampMM(name)
	return q
}

// HybridStrategy сочетает fuzzy-сравнение нормализованных названий
// с жесткими фильтрами по атрибутам: размер, резьба, цвет, категория,
// тип товара, угол. Семантический индекс, когда доступен, сужает пул
// кандидатов и усиливает оценку близких по смыслу товаров.
type HybridStrategy struct {
	cfg   Config
	index EmbeddingIndex
}

var _ Strategy = (*HybridStrategy)(nil)

// NewHybridStrategy создает гибридную стратегию; index может быть nil,
// тогда пул кандидатов - весь каталог.
func NewHybridStrategy(cfg Config, index EmbeddingIndex) *HybridStrategy {
	return &HybridStrategy{cfg: cfg, index: index}
}

func (s *HybridStrategy) Name() string { return "hybrid" }

func (s *HybridStrategy) Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult {
	if req.ClientName == "" {
		return nil
	}
	normName := normalization.NormalizeName(req.ClientName)
	q := extractQueryAttributes(req.ClientName)

	pool, semScores := s.semanticPool(ctx, req.ClientName, products)

	var matches []candidate
	for i := range pool {
		p := pool[i]

		if q.hasPipeSize {
			if ps, ok := extractors.ExtractPipeSize(p.Name); ok && ps != q.pipeSize {
				continue
			}
		}
		// Резьбовой размер строгий: товар без резьбы не подходит под
		// запрос с резьбой, высокая fuzzy-оценка это не перекрывает.
		if q.hasThread {
			ts, ok := extractors.ExtractThreadSize(p.Name)
			if !ok || ts != q.threadSize {
				continue
			}
		}
		if len(q.fittingSize) > 0 {
			if pf := extractors.ExtractFittingSize(p.Name); pf != nil {
				normClient := extractors.NormalizeEqualSizes(q.fittingSize)
				normProduct := extractors.NormalizeEqualSizes(pf)
				if len(normClient) == 1 {
					if normProduct[0] != normClient[0] {
						continue
					}
				} else if !slices.Equal(normProduct, normClient) {
					continue
				}
			}
		}
		if q.color != "" && colorConflicts(q.color, p) {
			continue
		}

		prodNorm := normalization.NormalizeName(p.Name)
		score := (normalization.TokenSortRatio(normName, prodNorm) +
			normalization.TokenSetRatio(normName, prodNorm)) / 2

		// Сильное семантическое сходство вытягивает кандидата, когда
		// fuzzy-оценку сбивают шумовые слова: бренд, обрывки артикулов.
		if sim, ok := semScores[p.ID]; ok && sim >= semanticBoostSim && score > semanticBoostMin {
			if boosted := sim * 100; boosted > score {
				score = boosted
			}
		}

		if score >= s.cfg.FuzzyThreshold {
			matches = append(matches, candidate{product: p, score: score})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	matches, ok := s.postFilter(matches, q)
	if !ok {
		return nil
	}

	best := matches[0]
	for _, c := range matches[1:] {
		if c.score > best.score {
			best = c
		}
	}
	score := min(best.score, 100)
	return resultFor(best.product, score, MatchFuzzyName, score < 90)
}

// semanticPool спрашивает у индекса ближайшие товары и пересекает их
// с каталогом. При сбое или пустом ответе пул - весь каталог.
func (s *HybridStrategy) semanticPool(ctx context.Context, query string, products []Product) ([]Product, map[string]float64) {
	semScores := map[string]float64{}
	if !s.cfg.EnableMLMatching || s.index == nil {
		return products, semScores
	}
	hits, err := s.index.Search(ctx, query, semanticPoolSize, semanticMinScore)
	if err != nil {
		log.Printf("⚠ семантический поиск недоступен, полный перебор каталога: %v", err)
		return products, semScores
	}
	if len(hits) == 0 {
		return products, semScores
	}
	byID := make(map[string]float64, len(hits))
	for _, h := range hits {
		byID[h.ProductID] = h.Similarity
	}
	var pool []Product
	for _, p := range products {
		if sim, ok := byID[p.ID]; ok {
			pool = append(pool, p)
			semScores[p.ID] = sim
		}
	}
	if len(pool) == 0 {
		return products, map[string]float64{}
	}
	return pool, semScores
}

// colorConflicts отклоняет товар по цвету: явное несовпадение цветов
// либо противоречие цвета префиксу артикула. Белый исключает серую
// канализацию 202*, серый - белый водопровод 403*, рыжий - и то и другое.
func colorConflicts(clientColor string, p Product) bool {
	if prodColor := extractors.ExtractColor(p.Name); prodColor != "" && prodColor != clientColor {
		return true
	}
	switch clientColor {
	case extractors.ColorWhite:
		return strings.HasPrefix(p.SKU, "202")
	case extractors.ColorGray:
		return strings.HasPrefix(p.SKU, "403")
	case extractors.ColorRed:
		return strings.HasPrefix(p.SKU, "202") || strings.HasPrefix(p.SKU, "403")
	}
	return false
}

// postFilter последовательно сужает кандидатов; каждый фильтр
// пропускается, если опустошил бы набор. Исключение: критичный тип
// товара без совпадений обнуляет результат.
func (s *HybridStrategy) postFilter(matches []candidate, q queryAttributes) ([]candidate, bool) {
	if q.productType != "" {
		var filtered []candidate
		for _, c := range matches {
			if extractors.ExtractProductType(c.product.Name) == q.productType {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		} else if criticalTypes[q.productType] {
			log.Printf("✗ критичный тип %q не найден среди кандидатов", q.productType)
			return nil, false
		}
	}

	if q.hasAngle {
		target := extractors.NormalizeAngle(q.angle)
		var filtered []candidate
		for _, c := range matches {
			if a, ok := extractors.ExtractAngle(c.product.Name); ok && a == target {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}

	effective := q.category
	if effective == "" {
		effective = extractors.CategorySewer
	}
	if catFiltered := filterByCategory(matches, effective); len(catFiltered) > 0 {
		matches = catFiltered
	}

	if q.threadDir != "" {
		var filtered []candidate
		for _, c := range matches {
			if extractors.ExtractThreadDirection(c.product.Name) == q.threadDir {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}

	if q.hasClamp && len(matches) > 1 {
		var filtered []candidate
		for _, c := range matches {
			if extractors.ClampFitsMM(c.product.Name, q.clampMM) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}

	if q.detachable {
		var filtered []candidate
		for _, c := range matches {
			if extractors.IsDetachable(c.product.Name) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}
	if q.reducer {
		var filtered []candidate
		for _, c := range matches {
			if extractors.IsReducer(c.product.Name) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}

	// Клиент не просил эко-версию: при нескольких кандидатах эко уходит.
	if !q.eco && len(matches) > 1 {
		var filtered []candidate
		for _, c := range matches {
			if !extractors.IsEco(c.product.Name) {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			matches = filtered
		}
	}

	return matches, true
}
