package matching

import (
	"context"
	"errors"
	"math"
	"testing"

	"matchserver/extractors"
)

type fakeIndex struct {
	hits     []EmbeddingHit
	err      error
	calls    int
	gotQuery string
	gotTopK  int
	gotMin   float64
}

var _ EmbeddingIndex = (*fakeIndex)(nil)

func (f *fakeIndex) Search(_ context.Context, query string, topK int, minScore float64) ([]EmbeddingHit, error) {
	f.calls++
	f.gotQuery = query
	f.gotTopK = topK
	f.gotMin = minScore
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func TestHybridStrategyClampInchName(t *testing.T) {
	products := []Product{
		{ID: "cl1", SKU: "1400041107", Name: `Хомут в комплекте 4" (107-115)`, Category: "Крепеж", PackQty: 1},
		{ID: "tr1", SKU: "2020011102", Name: "Труба ПП 110х2000 серая", Category: "Канализация внутренняя"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	// Миллиметровый хомут находит дюймовый аналог в каталоге.
	got := s.Match(context.Background(), MatchRequest{ClientName: "Хомут 110"}, products, nil)
	if got == nil {
		t.Fatal("Match() = nil, ожидался дюймовый хомут")
	}
	if got.ProductID != "cl1" {
		t.Fatalf("ProductID = %q, ожидался cl1", got.ProductID)
	}
	if got.MatchType != MatchFuzzyName {
		t.Errorf("MatchType = %q, ожидался %q", got.MatchType, MatchFuzzyName)
	}
	if got.Confidence < 90 || got.Confidence > 92 {
		t.Errorf("Confidence = %.2f, ожидалась около 91.3", got.Confidence)
	}
	if got.NeedsReview {
		t.Error("NeedsReview = true, ожидался false при оценке выше 90")
	}
}

func TestHybridStrategyCategoryRouting(t *testing.T) {
	products := []Product{
		{ID: "out1", SKU: "3030451100", Name: "Отвод нар.кан. 110/45", Category: "Канализация наружная"},
		{ID: "sew1", SKU: "2020451100", Name: "Отвод 110/45 серый", Category: "Канализация внутренняя"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	t.Run("серый уходит во внутреннюю канализацию", func(t *testing.T) {
		got := s.Match(context.Background(), MatchRequest{ClientName: "Отвод серый 110/45"}, products, nil)
		if got == nil || got.ProductID != "sew1" {
			t.Fatalf("Match() = %+v, ожидался sew1", got)
		}
		if got.Confidence != 100 || got.NeedsReview {
			t.Errorf("Confidence = %v, NeedsReview = %v, ожидались 100 и false", got.Confidence, got.NeedsReview)
		}
	})

	t.Run("маркер нар.кан уходит в наружную", func(t *testing.T) {
		got := s.Match(context.Background(), MatchRequest{ClientName: "Отвод нар.кан. 110/45"}, products, nil)
		if got == nil || got.ProductID != "out1" {
			t.Fatalf("Match() = %+v, ожидался out1", got)
		}
	})
}

func TestHybridStrategyThreadSizeGate(t *testing.T) {
	products := []Product{
		{ID: "th1", SKU: "1012632", Name: `Муфта комбинированная НР 32×1"`, Category: "ППР фитинги"},
		{ID: "pl1", SKU: "1010032", Name: "Муфта ППР 32", Category: "ППР фитинги"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	got := s.Match(context.Background(), MatchRequest{ClientName: `Муфта НР 32×1"`}, products, nil)
	if got == nil {
		t.Fatal("Match() = nil, ожидалась резьбовая муфта")
	}
	if got.ProductID != "th1" {
		t.Fatalf("ProductID = %q, ожидался th1: товар без резьбы не подходит", got.ProductID)
	}
	if got.Confidence < 75 || got.Confidence >= 90 {
		t.Errorf("Confidence = %.2f, ожидалась около 81", got.Confidence)
	}
	if !got.NeedsReview {
		t.Error("NeedsReview = false, ожидался true при оценке ниже 90")
	}

	// Без резьбового кандидата запрос с резьбой не матчится вовсе.
	if got := s.Match(context.Background(), MatchRequest{ClientName: `Муфта НР 32×1"`}, products[1:], nil); got != nil {
		t.Errorf("Match() = %+v, ожидался nil для каталога без резьбы", got)
	}
}

func TestHybridStrategyFittingSizeGate(t *testing.T) {
	products := []Product{
		{ID: "k1", SKU: "2025550050", Name: "Крестовина 50/50/50 87°"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	if got := s.Match(context.Background(), MatchRequest{ClientName: "Крестовина 110"}, products, nil); got != nil {
		t.Errorf("Match() = %+v, ожидался nil: диаметры 110 и 50 несовместимы", got)
	}
}

func TestHybridStrategyCriticalTypeEliminatesAll(t *testing.T) {
	products := []Product{
		{ID: "o1", SKU: "2020871100", Name: "Отвод канализационный 110 серый с уплотнительным кольцом"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	// Названия близки, но муфта не может стать отводом.
	got := s.Match(context.Background(), MatchRequest{ClientName: "Муфта канализационная 110 серая с уплотнительным кольцом"}, products, nil)
	if got != nil {
		t.Errorf("Match() = %+v, ожидался nil при несовпадении критичного типа", got)
	}
}

func TestHybridStrategyAngleNormalization(t *testing.T) {
	products := []Product{
		{ID: "a45", SKU: "2020451100", Name: "Отвод ПП 110/45° серый"},
		{ID: "a87", SKU: "2020871100", Name: "Отвод ПП 110/87° серый"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	// Запрошенные 90° приводятся к каталожным 87°; оценки кандидатов
	// равны, решает фильтр по углу.
	got := s.Match(context.Background(), MatchRequest{ClientName: "Отвод полипропилен 110 90 серый"}, products, nil)
	if got == nil || got.ProductID != "a87" {
		t.Fatalf("Match() = %+v, ожидался a87", got)
	}
	if got.NeedsReview {
		t.Error("NeedsReview = true, ожидался false")
	}
}

func TestHybridStrategyClampRangeSelection(t *testing.T) {
	products := []Product{
		{ID: "c34", SKU: "1400034026", Name: `Хомут в комплекте 3/4" (26-30)`},
		{ID: "c38", SKU: "1400150047", Name: `Хомут в комплекте 1 1/2" (47-51)`},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	got := s.Match(context.Background(), MatchRequest{ClientName: "Хомут 50"}, products, nil)
	if got == nil || got.ProductID != "c38" {
		t.Fatalf("Match() = %+v, ожидался c38: 50 мм попадает в диапазон 47-51", got)
	}
	if got.Confidence < 93 || got.Confidence > 95 {
		t.Errorf("Confidence = %.2f, ожидалась около 94.2", got.Confidence)
	}
}

func TestHybridStrategyEcoVariants(t *testing.T) {
	products := []Product{
		{ID: "e1", SKU: "2020150503", Name: "Труба ПП 50х1500 (2.2) серая"},
		{ID: "e2", SKU: "2020050503", Name: "Труба ПП 50х1500 (2.7) серая"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	t.Run("без эко в запросе побеждает обычная серия", func(t *testing.T) {
		got := s.Match(context.Background(), MatchRequest{ClientName: "Труба ПП 50х1500 серая"}, products, nil)
		if got == nil || got.ProductID != "e2" {
			t.Fatalf("Match() = %+v, ожидался e2", got)
		}
	})

	t.Run("эко в запросе сохраняет эко-серию", func(t *testing.T) {
		got := s.Match(context.Background(), MatchRequest{ClientName: "Труба ПП эко 50х1500 серая"}, products, nil)
		if got == nil || got.ProductID != "e1" {
			t.Fatalf("Match() = %+v, ожидался e1", got)
		}
	})
}

func TestHybridStrategyDetachablePreference(t *testing.T) {
	products := []Product{
		{ID: "d2", SKU: "1010032", Name: "Муфта ППР 32"},
		{ID: "d1", SKU: "1011232", Name: "Муфта ППР разъемная 32 с накидной гайкой"},
	}
	s := NewHybridStrategy(DefaultConfig(), nil)

	// Короткое название набирает больше, но разъемность обязательна.
	got := s.Match(context.Background(), MatchRequest{ClientName: "Муфта ППР разъемная 32"}, products, nil)
	if got == nil || got.ProductID != "d1" {
		t.Fatalf("Match() = %+v, ожидался d1", got)
	}
	if !got.NeedsReview {
		t.Error("NeedsReview = false, ожидался true при оценке ниже 90")
	}
}

func TestHybridStrategySemanticBoost(t *testing.T) {
	products := []Product{
		{ID: "b1", SKU: "2020011102", Name: "Труба ПП 110х2000 серая", Category: "Канализация внутренняя"},
	}
	query := "гост 32414 2013 канализационная труба 110 на 2000 политэк серая раструбная с кольцом"

	t.Run("без индекса шумное название не добирает порог", func(t *testing.T) {
		s := NewHybridStrategy(DefaultConfig(), nil)
		if got := s.Match(context.Background(), MatchRequest{ClientName: query}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil", got)
		}
	})

	t.Run("семантическое сходство вытягивает оценку", func(t *testing.T) {
		idx := &fakeIndex{hits: []EmbeddingHit{{ProductID: "b1", Similarity: 0.875}}}
		s := NewHybridStrategy(DefaultConfig(), idx)

		got := s.Match(context.Background(), MatchRequest{ClientName: query}, products, nil)
		if got == nil || got.ProductID != "b1" {
			t.Fatalf("Match() = %+v, ожидался b1", got)
		}
		if math.Abs(got.Confidence-87.5) > 0.001 {
			t.Errorf("Confidence = %.3f, ожидалась 87.5 от семантики", got.Confidence)
		}
		if !got.NeedsReview {
			t.Error("NeedsReview = false, ожидался true")
		}
		if idx.gotQuery != query {
			t.Errorf("в индекс ушел запрос %q, ожидался сырой текст клиента", idx.gotQuery)
		}
		if idx.gotTopK != semanticPoolSize || idx.gotMin != semanticMinScore {
			t.Errorf("параметры поиска topK=%d minScore=%v, ожидались %d и %v",
				idx.gotTopK, idx.gotMin, semanticPoolSize, semanticMinScore)
		}
	})
}

func TestHybridStrategySemanticPoolFallbacks(t *testing.T) {
	products := []Product{
		{ID: "p1", SKU: "2021100", Name: "Отвод 110"},
		{ID: "p2", SKU: "2021150", Name: "Отвод 50"},
	}
	ctx := context.Background()

	t.Run("семантика выключена", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EnableMLMatching = false
		idx := &fakeIndex{hits: []EmbeddingHit{{ProductID: "p1", Similarity: 0.9}}}
		s := NewHybridStrategy(cfg, idx)

		pool, scores := s.semanticPool(ctx, "отвод", products)
		if len(pool) != 2 || len(scores) != 0 {
			t.Errorf("pool = %d, scores = %d, ожидался полный каталог без оценок", len(pool), len(scores))
		}
		if idx.calls != 0 {
			t.Errorf("индекс вызван %d раз, ожидался 0", idx.calls)
		}
	})

	t.Run("ошибка индекса", func(t *testing.T) {
		idx := &fakeIndex{err: errors.New("нет соединения")}
		s := NewHybridStrategy(DefaultConfig(), idx)

		pool, scores := s.semanticPool(ctx, "отвод", products)
		if len(pool) != 2 || len(scores) != 0 {
			t.Errorf("pool = %d, scores = %d, ожидался откат к полному каталогу", len(pool), len(scores))
		}
	})

	t.Run("пустой ответ индекса", func(t *testing.T) {
		s := NewHybridStrategy(DefaultConfig(), &fakeIndex{})
		pool, _ := s.semanticPool(ctx, "отвод", products)
		if len(pool) != 2 {
			t.Errorf("pool = %d, ожидался полный каталог", len(pool))
		}
	})

	t.Run("индекс вернул неизвестные товары", func(t *testing.T) {
		idx := &fakeIndex{hits: []EmbeddingHit{{ProductID: "призрак", Similarity: 0.9}}}
		s := NewHybridStrategy(DefaultConfig(), idx)

		pool, scores := s.semanticPool(ctx, "отвод", products)
		if len(pool) != 2 || len(scores) != 0 {
			t.Errorf("pool = %d, scores = %d, ожидался откат к полному каталогу", len(pool), len(scores))
		}
	})

	t.Run("пул сужается до найденного", func(t *testing.T) {
		idx := &fakeIndex{hits: []EmbeddingHit{{ProductID: "p2", Similarity: 0.7}}}
		s := NewHybridStrategy(DefaultConfig(), idx)

		pool, scores := s.semanticPool(ctx, "отвод", products)
		if len(pool) != 1 || pool[0].ID != "p2" {
			t.Fatalf("pool = %+v, ожидался только p2", pool)
		}
		if scores["p2"] != 0.7 {
			t.Errorf("scores[p2] = %v, ожидалась 0.7", scores["p2"])
		}
	})
}

func TestHybridStrategyEmptyName(t *testing.T) {
	s := NewHybridStrategy(DefaultConfig(), nil)
	if got := s.Match(context.Background(), MatchRequest{ClientSKU: "2021100"}, []Product{{ID: "p1", SKU: "2021100", Name: "Отвод 110"}}, nil); got != nil {
		t.Errorf("Match() = %+v, ожидался nil без названия", got)
	}
}

func TestPostFilterThreadDirection(t *testing.T) {
	s := NewHybridStrategy(DefaultConfig(), nil)
	in := candidates(
		Product{ID: "outer", Name: "Кран шаровой 32 н/р"},
		Product{ID: "inner", Name: "Кран шаровой 32 в/р"},
	)

	got, ok := s.postFilter(in, queryAttributes{threadDir: extractors.ThreadInner})
	if !ok || len(got) != 1 || got[0].product.ID != "inner" {
		t.Fatalf("postFilter() = %v, ожидался только inner", ids(got))
	}

	// Если направление не находится ни у кого, набор не трогается.
	got, ok = s.postFilter(in[:1], queryAttributes{threadDir: extractors.ThreadInner})
	if !ok || len(got) != 1 || got[0].product.ID != "outer" {
		t.Fatalf("postFilter() = %v, ожидался исходный набор", ids(got))
	}
}

func TestPostFilterReducer(t *testing.T) {
	s := NewHybridStrategy(DefaultConfig(), nil)
	in := candidates(
		Product{ID: "plain", Name: "Муфта 50"},
		Product{ID: "red", Name: "Муфта переходная 50х32"},
	)

	got, ok := s.postFilter(in, queryAttributes{reducer: true})
	if !ok || len(got) != 1 || got[0].product.ID != "red" {
		t.Fatalf("postFilter() = %v, ожидался только переходной", ids(got))
	}
}

func TestPostFilterClampKeepsWhenAllMiss(t *testing.T) {
	s := NewHybridStrategy(DefaultConfig(), nil)
	in := candidates(
		Product{ID: "c1", Name: `Хомут в комплекте 1 1/2" (47-51)`},
		Product{ID: "c2", Name: `Хомут в комплекте 3/4" (26-30)`},
	)

	got, ok := s.postFilter(in, queryAttributes{hasClamp: true, clampMM: 50})
	if !ok || len(got) != 1 || got[0].product.ID != "c1" {
		t.Fatalf("postFilter() = %v, ожидался только c1", ids(got))
	}

	// Диаметр вне всех диапазонов не опустошает набор.
	got, ok = s.postFilter(in, queryAttributes{hasClamp: true, clampMM: 180})
	if !ok || len(got) != 2 {
		t.Fatalf("postFilter() = %v, ожидался нетронутый набор", ids(got))
	}
}

func TestPostFilterCriticalTypes(t *testing.T) {
	s := NewHybridStrategy(DefaultConfig(), nil)

	// Критичный тип без совпадений обнуляет результат.
	got, ok := s.postFilter(candidates(Product{ID: "o1", SKU: "2021100", Name: "Отвод 110"}), queryAttributes{productType: "муфта"})
	if ok || got != nil {
		t.Fatalf("postFilter() = %v, ok = %v, ожидались nil и false", ids(got), ok)
	}

	// Некритичный тип при пустом пересечении оставляет набор как есть.
	got, ok = s.postFilter(candidates(Product{ID: "t1", SKU: "2020011102", Name: "Труба ПП 110х2000 серая"}), queryAttributes{productType: "клипса"})
	if !ok || len(got) != 1 {
		t.Fatalf("postFilter() = %v, ok = %v, ожидался исходный набор", ids(got), ok)
	}
}

func TestColorConflicts(t *testing.T) {
	tests := []struct {
		name        string
		clientColor string
		product     Product
		want        bool
	}{
		{"разные цвета в названиях", extractors.ColorWhite, Product{SKU: "9990001", Name: "Отвод 110 серый"}, true},
		{"белый против серой линейки 202", extractors.ColorWhite, Product{SKU: "2021100", Name: "Отвод 110"}, true},
		{"белый и белая линейка", extractors.ColorWhite, Product{SKU: "4031100", Name: "Отвод 110"}, false},
		{"серый против белой линейки 403", extractors.ColorGray, Product{SKU: "4031100", Name: "Отвод 110"}, true},
		{"серый и серая линейка", extractors.ColorGray, Product{SKU: "2021100", Name: "Отвод 110"}, false},
		{"рыжий против внутренней канализации", extractors.ColorRed, Product{SKU: "2021100", Name: "Отвод 110"}, true},
		{"рыжий против белой линейки", extractors.ColorRed, Product{SKU: "4031100", Name: "Отвод 110"}, true},
		{"рыжий и наружная линейка", extractors.ColorRed, Product{SKU: "3031100", Name: "Труба рыжая 110"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := colorConflicts(tt.clientColor, tt.product); got != tt.want {
				t.Errorf("colorConflicts(%q, %q) = %v, ожидалось %v", tt.clientColor, tt.product.Name, got, tt.want)
			}
		})
	}
}
