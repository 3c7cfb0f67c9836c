package matching

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type stubMatcher struct {
	suggestion  *Suggestion
	err         error
	calls       int
	gotQuery    string
	gotCands    []Product
	hadDeadline bool
}

var _ LLMMatcher = (*stubMatcher)(nil)

func (m *stubMatcher) Match(ctx context.Context, query string, candidates []Product) (*Suggestion, error) {
	m.calls++
	m.gotQuery = query
	m.gotCands = candidates
	_, m.hadDeadline = ctx.Deadline()
	return m.suggestion, m.err
}

func llmProducts() []Product {
	return []Product{
		{ID: "p1", SKU: "101999", Name: "Кран шаровой 32", PackQty: 5},
		{ID: "p2", SKU: "101998", Name: "Кран шаровой 32 н/р"},
		{ID: "p3", SKU: "2020871100", Name: "Отвод ПП 110х87"},
	}
}

func TestLLMStrategyAcceptsSuggestion(t *testing.T) {
	m := &stubMatcher{suggestion: &Suggestion{SKU: "101999", Name: "Кран шаровой 32", Confidence: 88}}
	s := NewLLMStrategy(DefaultConfig(), m, nil)

	got := s.Match(context.Background(), MatchRequest{ClientName: "кран шар. 32 латунь"}, llmProducts(), nil)
	if got == nil {
		t.Fatal("Match() = nil, ожидалось совпадение от LLM")
	}
	if got.ProductID != "p1" || got.MatchType != MatchLLM {
		t.Errorf("результат %+v, ожидался p1 с типом %s", got, MatchLLM)
	}
	if got.Confidence != 88 {
		t.Errorf("Confidence = %v, ожидалась 88", got.Confidence)
	}
	if got.NeedsReview {
		t.Error("NeedsReview = true, ожидался false при уверенности 88")
	}
	if got.PackQty != 5 {
		t.Errorf("PackQty = %d, ожидался 5", got.PackQty)
	}
	if m.gotQuery != "кран шар. 32 латунь" {
		t.Errorf("запрос к LLM %q, ожидалось название клиента", m.gotQuery)
	}
	if !m.hadDeadline {
		t.Error("контекст LLM без дедлайна, ожидался таймаут")
	}
}

func TestLLMStrategyQueryFallsBackToSku(t *testing.T) {
	m := &stubMatcher{suggestion: &Suggestion{SKU: "101999", Confidence: 90}}
	s := NewLLMStrategy(DefaultConfig(), m, nil)

	s.Match(context.Background(), MatchRequest{ClientSKU: "КРН-32"}, llmProducts(), nil)
	if m.gotQuery != "КРН-32" {
		t.Errorf("запрос к LLM %q, ожидался артикул клиента", m.gotQuery)
	}
}

func TestLLMStrategyNilPaths(t *testing.T) {
	products := llmProducts()

	t.Run("без матчера", func(t *testing.T) {
		s := NewLLMStrategy(DefaultConfig(), nil, nil)
		if got := s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil", got)
		}
	})

	t.Run("пустой запрос", func(t *testing.T) {
		m := &stubMatcher{suggestion: &Suggestion{SKU: "101999", Confidence: 90}}
		s := NewLLMStrategy(DefaultConfig(), m, nil)
		if got := s.Match(context.Background(), MatchRequest{}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil", got)
		}
		if m.calls != 0 {
			t.Errorf("LLM вызвана %d раз, ожидался 0", m.calls)
		}
	})

	t.Run("ошибка LLM", func(t *testing.T) {
		m := &stubMatcher{err: errors.New("таймаут")}
		s := NewLLMStrategy(DefaultConfig(), m, nil)
		if got := s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil", got)
		}
	})

	t.Run("пустой ответ", func(t *testing.T) {
		s := NewLLMStrategy(DefaultConfig(), &stubMatcher{}, nil)
		if got := s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil", got)
		}
	})

	t.Run("ответ без артикула", func(t *testing.T) {
		m := &stubMatcher{suggestion: &Suggestion{Name: "Кран шаровой 32", Confidence: 90}}
		s := NewLLMStrategy(DefaultConfig(), m, nil)
		if got := s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil", got)
		}
	})

	t.Run("галлюцинация артикула", func(t *testing.T) {
		m := &stubMatcher{suggestion: &Suggestion{SKU: "000000", Confidence: 99}}
		s := NewLLMStrategy(DefaultConfig(), m, nil)
		if got := s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil); got != nil {
			t.Errorf("Match() = %+v, ожидался nil для артикула вне каталога", got)
		}
	})
}

func TestLLMStrategyConfidenceBounds(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		wantNil    bool
		wantConf   float64
		wantReview bool
	}{
		{"выше 100 обрезается", 150, false, 100, false},
		{"на границе ревью", 85, false, 85, false},
		{"ниже границы ревью", 84, false, 84, true},
		{"чуть выше отсечки", 11, false, 11, true},
		{"на отсечке отбрасывается", 10, true, 0, false},
		{"отрицательная отбрасывается", -5, true, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stubMatcher{suggestion: &Suggestion{SKU: "101999", Confidence: tt.confidence}}
			s := NewLLMStrategy(DefaultConfig(), m, nil)

			got := s.Match(context.Background(), MatchRequest{ClientName: "кран шаровой"}, llmProducts(), nil)
			if tt.wantNil {
				if got != nil {
					t.Fatalf("Match() = %+v, ожидался nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Match() = nil, ожидалось совпадение")
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, ожидалась %v", got.Confidence, tt.wantConf)
			}
			if got.NeedsReview != tt.wantReview {
				t.Errorf("NeedsReview = %v, ожидалось %v", got.NeedsReview, tt.wantReview)
			}
		})
	}
}

func TestLLMStrategyRejectsCriticalTypeMismatch(t *testing.T) {
	// LLM уверенно предлагает отвод на запрос муфты.
	m := &stubMatcher{suggestion: &Suggestion{SKU: "2020871100", Confidence: 95}}
	s := NewLLMStrategy(DefaultConfig(), m, nil)

	if got := s.Match(context.Background(), MatchRequest{ClientName: "Муфта 110"}, llmProducts(), nil); got != nil {
		t.Errorf("Match() = %+v, ожидался nil при подмене типа", got)
	}
}

func TestLLMStrategyRejectsThreadMismatch(t *testing.T) {
	// Тип совпадает, направление резьбы нет.
	m := &stubMatcher{suggestion: &Suggestion{SKU: "101998", Confidence: 95}}
	s := NewLLMStrategy(DefaultConfig(), m, nil)

	if got := s.Match(context.Background(), MatchRequest{ClientName: "Кран 32 в/р"}, llmProducts(), nil); got != nil {
		t.Errorf("Match() = %+v, ожидался nil при несовпадении резьбы", got)
	}
}

func TestLLMStrategyCandidates(t *testing.T) {
	products := llmProducts()

	t.Run("кандидаты в порядке выдачи индекса", func(t *testing.T) {
		idx := &fakeIndex{hits: []EmbeddingHit{
			{ProductID: "p3", Similarity: 0.9},
			{ProductID: "p1", Similarity: 0.8},
		}}
		m := &stubMatcher{suggestion: &Suggestion{SKU: "101999", Confidence: 90}}
		s := NewLLMStrategy(DefaultConfig(), m, idx)

		s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil)
		if len(m.gotCands) != 2 || m.gotCands[0].ID != "p3" || m.gotCands[1].ID != "p1" {
			t.Fatalf("кандидаты %+v, ожидались p3, p1", m.gotCands)
		}
		if idx.gotTopK != llmCandidateTopK || idx.gotMin != llmCandidateMinScore {
			t.Errorf("параметры поиска topK=%d minScore=%v, ожидались %d и %v",
				idx.gotTopK, idx.gotMin, llmCandidateTopK, llmCandidateMinScore)
		}
	})

	t.Run("ошибка индекса не мешает запросу", func(t *testing.T) {
		idx := &fakeIndex{err: errors.New("нет соединения")}
		m := &stubMatcher{suggestion: &Suggestion{SKU: "101999", Confidence: 90}}
		s := NewLLMStrategy(DefaultConfig(), m, idx)

		got := s.Match(context.Background(), MatchRequest{ClientName: "кран"}, products, nil)
		if got == nil || got.ProductID != "p1" {
			t.Fatalf("Match() = %+v, ожидался p1 через полный пул", got)
		}
		if len(m.gotCands) != len(products) {
			t.Errorf("кандидатов %d, ожидался весь каталог", len(m.gotCands))
		}
	})

	t.Run("большой каталог обрезается", func(t *testing.T) {
		var big []Product
		for i := 0; i < 120; i++ {
			big = append(big, Product{ID: fmt.Sprintf("g%d", i), SKU: fmt.Sprintf("9%06d", i), Name: "Клипса 16"})
		}
		m := &stubMatcher{suggestion: &Suggestion{SKU: big[0].SKU, Confidence: 90}}
		s := NewLLMStrategy(DefaultConfig(), m, nil)

		s.Match(context.Background(), MatchRequest{ClientName: "клипса"}, big, nil)
		if len(m.gotCands) != llmFallbackPoolSize {
			t.Errorf("кандидатов %d, ожидалось %d", len(m.gotCands), llmFallbackPoolSize)
		}
	})
}
