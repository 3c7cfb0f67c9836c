package matching

import (
	"context"
	"errors"
)

// ErrCatalogUnavailable - каталог не загрузился, сопоставление невозможно.
// Единственная ошибка, которую сервис отдает наружу.
var ErrCatalogUnavailable = errors.New("каталог товаров недоступен")

// Strategy - один способ сопоставления. Стратегии опрашиваются строго
// по порядку, первый ненулевой результат становится итоговым. Сбои
// внешних систем стратегия гасит внутри и возвращает nil.
type Strategy interface {
	Name() string
	Match(ctx context.Context, req MatchRequest, products []Product, mappings map[string]Mapping) *MatchResult
}
