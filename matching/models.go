package matching

import "context"

// Типы совпадений, закрытый набор.
const (
	MatchExactSku      = "exact_sku"
	MatchExactName     = "exact_name"
	MatchCachedMapping = "cached_mapping"
	MatchFuzzySku      = "fuzzy_sku"
	MatchFuzzyName     = "fuzzy_name"
	MatchLLM           = "llm_match"
	MatchNotFound      = "not_found"
)

// Product - товар каталога поставщика.
type Product struct {
	ID       string  `json:"id"`
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price,omitempty"`
	PackQty  int     `json:"pack_qty,omitempty"`
}

// Mapping - выученное сопоставление позиции клиента с товаром каталога.
type Mapping struct {
	ID         string  `json:"id"`
	ClientID   string  `json:"client_id"`
	ClientSKU  string  `json:"client_sku"`
	ClientName string  `json:"client_name,omitempty"`
	ProductID  string  `json:"product_id"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"match_type,omitempty"`
	Verified   bool    `json:"verified"`
}

// MatchRequest - входная позиция заказа: артикул и название в записи клиента.
type MatchRequest struct {
	ClientID   string `json:"client_id,omitempty"`
	ClientSKU  string `json:"client_sku"`
	ClientName string `json:"client_name"`
}

// MatchResult - результат сопоставления одной позиции.
type MatchResult struct {
	ProductID   string  `json:"product_id,omitempty"`
	ProductSKU  string  `json:"product_sku,omitempty"`
	ProductName string  `json:"product_name,omitempty"`
	Confidence  float64 `json:"confidence"`
	MatchType   string  `json:"match_type"`
	NeedsReview bool    `json:"needs_review"`
	PackQty     int     `json:"pack_qty"`
}

// OrderItem - позиция заказа для пакетного сопоставления.
type OrderItem struct {
	ClientSKU  string  `json:"client_sku"`
	ClientName string  `json:"client_name"`
	Qty        float64 `json:"qty"`
}

// ItemMatch - позиция заказа вместе с результатом сопоставления.
type ItemMatch struct {
	Item      OrderItem   `json:"item"`
	Result    MatchResult `json:"result"`
	AutoSaved bool        `json:"auto_saved"`
}

// CatalogRepo отдает каталог товаров. Результат ListAll кэшируется
// сервисом на все время жизни процесса.
type CatalogRepo interface {
	ListAll(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
}

// MappingRepo хранит выученные сопоставления. Ключ карты ListVerified -
// нормализованный артикул клиента.
type MappingRepo interface {
	ListVerified(ctx context.Context, clientID string) (map[string]Mapping, error)
	Upsert(ctx context.Context, m Mapping) error
}

// EmbeddingHit - найденный семантическим индексом товар.
type EmbeddingHit struct {
	ProductID  string
	Similarity float64
}

// EmbeddingIndex - семантический поиск по каталогу. Сбои возвращаются
// ошибкой, вызывающая сторона продолжает работу без индекса.
type EmbeddingIndex interface {
	Search(ctx context.Context, query string, topK int, minScore float64) ([]EmbeddingHit, error)
}

// Suggestion - предложение LLM: артикул каталога и уверенность 0-100.
type Suggestion struct {
	SKU        string
	Name       string
	Confidence float64
}

// LLMMatcher подбирает товар по свободной формулировке среди кандидатов.
// nil-предложение означает отказ от подбора.
type LLMMatcher interface {
	Match(ctx context.Context, query string, candidates []Product) (*Suggestion, error)
}

// packQty возвращает кратность упаковки товара, минимум 1.
func packQty(p Product) int {
	if p.PackQty < 1 {
		return 1
	}
	return p.PackQty
}

// resultFor собирает результат сопоставления по товару каталога.
func resultFor(p Product, confidence float64, matchType string, needsReview bool) *MatchResult {
	return &MatchResult{
		ProductID:   p.ID,
		ProductSKU:  p.SKU,
		ProductName: p.Name,
		Confidence:  confidence,
		MatchType:   matchType,
		NeedsReview: needsReview,
		PackQty:     packQty(p),
	}
}
