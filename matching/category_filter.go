package matching

import (
	"strings"

	"matchserver/extractors"
)

// candidate - товар с оценкой внутри гибридной стратегии.
type candidate struct {
	product Product
	score   float64
}

// filterByCategory сужает кандидатов по категории запроса. Для всех
// категорий, кроме sewer, пустой результат правила откатывается к
// исходному набору. Для sewer отката внутри фильтра нет: белый или
// рифленый аналог хуже отсутствия ответа, пустой набор возвращается
// как есть и решение остается за вызывающей стороной.
func filterByCategory(matches []candidate, category string) []candidate {
	if len(matches) == 0 {
		return matches
	}

	keep := func(pred func(p Product) bool) []candidate {
		var out []candidate
		for _, c := range matches {
			if pred(c.product) {
				out = append(out, c)
			}
		}
		return out
	}

	var filtered []candidate
	switch category {
	case extractors.CategoryPert:
		filtered = keep(func(p Product) bool {
			return strings.HasPrefix(p.SKU, "501") || strings.Contains(strings.ToLower(p.Name), "pert")
		})

	case extractors.CategoryPnd:
		filtered = keep(func(p Product) bool {
			return strings.HasPrefix(p.SKU, "704") || strings.Contains(strings.ToLower(p.Name), "компресс")
		})

	case extractors.CategoryPrestige:
		filtered = keep(func(p Product) bool {
			return strings.Contains(strings.ToLower(p.Category), "малошум") ||
				strings.Contains(strings.ToLower(p.Name), "prestige")
		})

	case extractors.CategoryOutdoor:
		filtered = keep(func(p Product) bool {
			name := strings.ToLower(p.Name)
			return strings.HasPrefix(p.SKU, "303") || strings.HasPrefix(p.SKU, "604") ||
				strings.Contains(strings.ToLower(p.Category), "наружн") ||
				strings.Contains(name, "нар.кан") || strings.Contains(name, "рифлен")
		})

	case extractors.CategoryPpr:
		filtered = keep(func(p Product) bool {
			return strings.Contains(strings.ToLower(p.Category), "ппр") ||
				strings.Contains(strings.ToLower(p.Name), "ппр")
		})

	case extractors.CategorySewer:
		return keep(func(p Product) bool {
			name := strings.ToLower(p.Name)
			return strings.HasPrefix(p.SKU, "202") ||
				(strings.Contains(name, "серый") && !strings.Contains(name, "рифлен"))
		})

	default:
		if sku202 := keep(func(p Product) bool { return strings.HasPrefix(p.SKU, "202") }); len(sku202) > 0 {
			return sku202
		}
		filtered = keep(func(p Product) bool {
			cat := strings.ToLower(p.Category)
			if strings.Contains(cat, "канализац") &&
				!strings.Contains(cat, "малошум") && !strings.Contains(cat, "наружн") {
				return true
			}
			return strings.Contains(strings.ToLower(p.Name), "серый")
		})
	}

	if len(filtered) == 0 {
		return matches
	}
	return filtered
}
