package embeddings

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"matchserver/extractors"
	"matchserver/matching"
	"matchserver/normalization"
)

// Encoder кодирует тексты в единичные векторы.
type Encoder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Index семантический индекс каталога в памяти. Все векторы единичной
// длины, поиск - линейный проход со скалярным произведением; на
// каталоге в тысячу позиций этого достаточно.
type Index struct {
	enc Encoder

	mu    sync.RWMutex
	ids   []string
	vecs  [][]float32
	ready bool
}

var _ matching.EmbeddingIndex = (*Index)(nil)

// NewIndex создает пустой индекс поверх кодировщика.
func NewIndex(enc Encoder) *Index {
	return &Index{enc: enc}
}

// Build кодирует каталог и замещает содержимое индекса. Товары с
// пустым текстом эмбеддинга пропускаются. При ошибке кодирования
// прежнее содержимое индекса сохраняется.
func (ix *Index) Build(ctx context.Context, products []matching.Product) error {
	ids := make([]string, 0, len(products))
	texts := make([]string, 0, len(products))
	for _, p := range products {
		text := extractors.EmbeddingText(p.Name, p.Category)
		if text == "" {
			continue
		}
		ids = append(ids, p.ID)
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		log.Printf("⚠ каталог пуст, семантический индекс не построен")
		return nil
	}

	vecs, err := ix.enc.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	ix.mu.Lock()
	ix.ids = ids
	ix.vecs = vecs
	ix.ready = true
	ix.mu.Unlock()

	log.Printf("✓ Семантический индекс построен: %d товаров", len(ids))
	return nil
}

// Ready сообщает, построен ли индекс.
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.ready
}

// Len возвращает число проиндексированных товаров.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Search возвращает товары, семантически ближайшие к запросу, по
// убыванию сходства. Непостроенный индекс и пустой запрос дают пустой
// результат без ошибки.
func (ix *Index) Search(ctx context.Context, query string, topK int, minScore float64) ([]matching.EmbeddingHit, error) {
	ix.mu.RLock()
	ready := ix.ready
	ids := ix.ids
	vecs := ix.vecs
	ix.mu.RUnlock()

	if !ready || topK <= 0 {
		return nil, nil
	}

	normQuery := normalization.NormalizeName(query)
	if normQuery == "" {
		return nil, nil
	}

	qvecs, err := ix.enc.Embed(ctx, []string{normQuery})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	if len(qvecs) != 1 {
		return nil, fmt.Errorf("expected 1 query vector, got %d", len(qvecs))
	}
	qvec := qvecs[0]

	hits := make([]matching.EmbeddingHit, 0, topK)
	for i, vec := range vecs {
		sim := dot(qvec, vec)
		if sim >= minScore {
			hits = append(hits, matching.EmbeddingHit{ProductID: ids[i], Similarity: sim})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// dot скалярное произведение; для единичных векторов равно косинусу.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
