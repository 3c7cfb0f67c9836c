package matching

import (
	"context"
	"strings"

	"matchserver/extractors"
	"matchserver/normalization"
)

// ExactSkuStrategy ищет точное совпадение нормализованного артикула.
// Дополнительно пробует артикул, извлеченный из начала названия:
// клиенты часто пишут "202051110R Отвод ПП 110" одной строкой.
type ExactSkuStrategy struct {
	cfg Config
}

var _ Strategy = (*ExactSkuStrategy)(nil)

func (s *ExactSkuStrategy) Name() string { return "exact_sku" }

func (s *ExactSkuStrategy) Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult {
	normSKU := normalization.NormalizeSKU(req.ClientSKU)

	extractedSKU := ""
	if req.ClientName != "" {
		if extracted := normalization.ExtractSKUFromText(req.ClientName); extracted != "" {
			extractedSKU = normalization.NormalizeSKU(extracted)
		}
	}
	if normSKU == "" && extractedSKU == "" {
		return nil
	}

	for i := range products {
		prodSKU := normalization.NormalizeSKU(products[i].SKU)
		if (normSKU != "" && prodSKU == normSKU) || (extractedSKU != "" && prodSKU == extractedSKU) {
			return resultFor(products[i], s.cfg.ConfidenceExactSku, MatchExactSku, false)
		}
	}
	return nil
}

// ExactNameStrategy ищет точное совпадение нормализованного названия.
// Кандидат с противоречащим цветом отклоняется: белая (prestige) и серая
// (канализация 202*) линейки различаются только цветом при равных
// нормализованных названиях.
type ExactNameStrategy struct {
	cfg Config
}

var _ Strategy = (*ExactNameStrategy)(nil)

func (s *ExactNameStrategy) Name() string { return "exact_name" }

func (s *ExactNameStrategy) Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult {
	if req.ClientName == "" {
		return nil
	}
	normName := normalization.NormalizeName(req.ClientName)
	if normName == "" {
		return nil
	}

	clientColor := extractors.ExtractColor(req.ClientName)

	for i := range products {
		p := products[i]
		if normalization.NormalizeName(p.Name) != normName {
			continue
		}
		if clientColor != "" {
			prodColor := extractors.ExtractColor(p.Name)
			if prodColor != "" && prodColor != clientColor {
				continue
			}
			if clientColor == extractors.ColorWhite && strings.HasPrefix(p.SKU, "202") {
				continue
			}
			if clientColor == extractors.ColorGray && strings.HasPrefix(p.SKU, "403") {
				continue
			}
		}
		return resultFor(p, s.cfg.ConfidenceExactName, MatchExactName, false)
	}
	return nil
}

// CachedMappingStrategy отдает ранее подтвержденное сопоставление
// по нормализованному артикулу клиента.
type CachedMappingStrategy struct {
	cfg Config
}

var _ Strategy = (*CachedMappingStrategy)(nil)

func (s *CachedMappingStrategy) Name() string { return "cached_mapping" }

func (s *CachedMappingStrategy) Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult {
	normSKU := normalization.NormalizeSKU(req.ClientSKU)
	if normSKU == "" {
		return nil
	}
	mapping, ok := mappings[normSKU]
	if !ok {
		return nil
	}
	for i := range products {
		if products[i].ID == mapping.ProductID {
			// Подтвержденный маппинг равносилен точному совпадению.
			return resultFor(products[i], s.cfg.ConfidenceExactSku, MatchCachedMapping, false)
		}
	}
	return nil
}
