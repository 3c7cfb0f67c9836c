package normalization

import "testing"

// TestDamerauLevenshteinDistance проверяет расстояние с транспозициями
func TestDamerauLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		s1   string
		s2   string
		want int
	}{
		{
			name: "одинаковые строки",
			s1:   "тройник",
			s2:   "тройник",
			want: 0,
		},
		{
			name: "одна замена",
			s1:   "тройгик",
			s2:   "тройник",
			want: 1,
		},
		{
			name: "транспозиция за одну операцию",
			s1:   "муфат",
			s2:   "муфта",
			want: 1,
		},
		{
			name: "вставка",
			s1:   "отвод",
			s2:   "отввод",
			want: 1,
		},
		{
			name: "пустая строка",
			s1:   "",
			s2:   "кран",
			want: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DamerauLevenshteinDistance(tt.s1, tt.s2)
			if got != tt.want {
				t.Errorf("DamerauLevenshteinDistance(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.want)
			}
			if back := DamerauLevenshteinDistance(tt.s2, tt.s1); back != got {
				t.Errorf("расстояние несимметрично: %d и %d", got, back)
			}
		})
	}
}

// TestTrigramSimilarity проверяет триграммную схожесть
func TestTrigramSimilarity(t *testing.T) {
	if got := TrigramSimilarity("тройник", "тройник"); got != 1 {
		t.Errorf("TrigramSimilarity одинаковых строк = %v, want 1", got)
	}
	if got := TrigramSimilarity("кран", "щуп"); got != 0 {
		t.Errorf("TrigramSimilarity непохожих строк = %v, want 0", got)
	}
	got := TrigramSimilarity("наружний", "наружный")
	if got <= 0.3 || got >= 1 {
		t.Errorf("TrigramSimilarity для опечатки = %v, want в (0.3, 1)", got)
	}
}

// TestTypoSimilarity проверяет покрытие запроса с поправкой на опечатки
func TestTypoSimilarity(t *testing.T) {
	tests := []struct {
		name  string
		query string
		text  string
		min   float64
		max   float64
	}{
		{
			name:  "опечатка внутри слова",
			query: "тройгик",
			text:  "Тройник ПП 110х110х87",
			min:   0.8,
			max:   1,
		},
		{
			name:  "перестановка букв",
			query: "муфат переходная",
			text:  "Муфта переходная 110/50",
			min:   0.85,
			max:   1,
		},
		{
			name:  "числа сравниваются строго",
			query: "труба 110",
			text:  "Труба ПП 160",
			min:   0.45,
			max:   0.55,
		},
		{
			name:  "короткие слова сравниваются строго",
			query: "пп",
			text:  "ПНД труба",
			min:   0,
			max:   0,
		},
		{
			name:  "чужой запрос",
			query: "смеситель кухонный",
			text:  "Отвод канализационный 110",
			min:   0,
			max:   0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TypoSimilarity(tt.query, tt.text)
			if got < tt.min || got > tt.max {
				t.Errorf("TypoSimilarity(%q, %q) = %v, want в [%v, %v]", tt.query, tt.text, got, tt.min, tt.max)
			}
		})
	}

	if got := TypoSimilarity("", "труба"); got != 0 {
		t.Errorf("TypoSimilarity пустого запроса = %v, want 0", got)
	}
}
