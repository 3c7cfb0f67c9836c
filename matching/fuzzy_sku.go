package matching

import (
	"context"

	"matchserver/normalization"
)

// Пороги fuzzy-сопоставления артикулов: ниже 90 совпадение не считается,
// ниже 95 результат уходит на ручную проверку.
const (
	fuzzySkuMinRatio    = 90
	fuzzySkuReviewRatio = 95
)

// FuzzySkuStrategy ловит опечатки и вариации записи артикула:
// лишние символы, перепутанные суффиксы.
type FuzzySkuStrategy struct {
	cfg Config
}

var _ Strategy = (*FuzzySkuStrategy)(nil)

func (s *FuzzySkuStrategy) Name() string { return "fuzzy_sku" }

func (s *FuzzySkuStrategy) Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult {
	normSKU := normalization.NormalizeSKU(req.ClientSKU)

	// Запасной вариант: артикул из начала названия.
	if normSKU == "" && req.ClientName != "" {
		if extracted := normalization.ExtractSKUFromText(req.ClientName); extracted != "" {
			normSKU = normalization.NormalizeSKU(extracted)
		}
	}
	if normSKU == "" {
		return nil
	}

	var best *Product
	bestRatio := 0.0
	for i := range products {
		ratio := normalization.Ratio(normSKU, normalization.NormalizeSKU(products[i].SKU))
		if ratio > bestRatio && ratio >= fuzzySkuMinRatio {
			bestRatio = ratio
			best = &products[i]
		}
	}
	if best == nil {
		return nil
	}
	confidence := s.cfg.ConfidenceFuzzySku * bestRatio / 100
	return resultFor(*best, confidence, MatchFuzzySku, bestRatio < fuzzySkuReviewRatio)
}
