package matching

import (
	"testing"

	"matchserver/extractors"
)

func candidates(products ...Product) []candidate {
	out := make([]candidate, 0, len(products))
	for _, p := range products {
		out = append(out, candidate{product: p, score: 80})
	}
	return out
}

func ids(matches []candidate) []string {
	out := make([]string, 0, len(matches))
	for _, c := range matches {
		out = append(out, c.product.ID)
	}
	return out
}

func TestFilterByCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		in       []Product
		want     []string
	}{
		{
			"pert по префиксу и названию",
			extractors.CategoryPert,
			[]Product{
				{ID: "a", SKU: "5011632", Name: "Труба 16х2.0"},
				{ID: "b", SKU: "9990001", Name: "Труба PERT 16х2.0"},
				{ID: "c", SKU: "1011632", Name: "Труба ППР 16"},
			},
			[]string{"a", "b"},
		},
		{
			"пнд по префиксу и компрессионным фитингам",
			extractors.CategoryPnd,
			[]Product{
				{ID: "a", SKU: "7043201", Name: "Муфта 32"},
				{ID: "b", SKU: "9990002", Name: "Муфта компрессионная 32"},
				{ID: "c", SKU: "2020032", Name: "Муфта 32"},
			},
			[]string{"a", "b"},
		},
		{
			"малошумная по категории и prestige в названии",
			extractors.CategoryPrestige,
			[]Product{
				{ID: "a", SKU: "4031100", Name: "Отвод 110", Category: "Канализация малошумная"},
				{ID: "b", SKU: "9990003", Name: "Отвод Prestige 110"},
				{ID: "c", SKU: "2021100", Name: "Отвод 110", Category: "Канализация внутренняя"},
			},
			[]string{"a", "b"},
		},
		{
			"наружная по префиксам и маркерам",
			extractors.CategoryOutdoor,
			[]Product{
				{ID: "a", SKU: "3031100", Name: "Отвод 110/45"},
				{ID: "b", SKU: "6041100", Name: "Колодец 315"},
				{ID: "c", SKU: "9990004", Name: "Отвод нар.кан. 110/45"},
				{ID: "d", SKU: "9990005", Name: "Труба рифленая 110"},
				{ID: "e", SKU: "2021100", Name: "Отвод 110", Category: "Канализация внутренняя"},
			},
			[]string{"a", "b", "c", "d"},
		},
		{
			"ппр по категории или названию",
			extractors.CategoryPpr,
			[]Product{
				{ID: "a", SKU: "1013202", Name: "Муфта 32", Category: "ППР фитинги"},
				{ID: "b", SKU: "9990006", Name: "Муфта ППР 32"},
				{ID: "c", SKU: "2020032", Name: "Муфта 32", Category: "Канализация внутренняя"},
			},
			[]string{"a", "b"},
		},
		{
			"внутренняя канализация по префиксу и серому цвету",
			extractors.CategorySewer,
			[]Product{
				{ID: "a", SKU: "2021100", Name: "Отвод 110"},
				{ID: "b", SKU: "9990007", Name: "Отвод 110 серый"},
				{ID: "c", SKU: "3031100", Name: "Труба серый рифленая 110"},
				{ID: "d", SKU: "4031100", Name: "Отвод 110 белый"},
			},
			[]string{"a", "b"},
		},
		{
			"для внутренней канализации пустой результат не откатывается",
			extractors.CategorySewer,
			[]Product{
				{ID: "a", SKU: "1013202", Name: "Муфта ППР 32"},
				{ID: "b", SKU: "4031100", Name: "Отвод 110 белый"},
			},
			nil,
		},
		{
			"остальные категории откатываются к исходному набору",
			extractors.CategoryPert,
			[]Product{
				{ID: "a", SKU: "2021100", Name: "Отвод 110"},
				{ID: "b", SKU: "4031100", Name: "Отвод 110"},
			},
			[]string{"a", "b"},
		},
		{
			"без категории приоритет у префикса 202",
			"",
			[]Product{
				{ID: "a", SKU: "4031100", Name: "Отвод 110"},
				{ID: "b", SKU: "2021100", Name: "Отвод 110"},
			},
			[]string{"b"},
		},
		{
			"без категории и без 202 решают категория и цвет",
			"",
			[]Product{
				{ID: "a", SKU: "9990008", Name: "Отвод 110", Category: "Канализация внутренняя"},
				{ID: "b", SKU: "9990009", Name: "Отвод 110", Category: "Канализация малошумная"},
				{ID: "c", SKU: "9990010", Name: "Патрубок 110 серый", Category: ""},
			},
			[]string{"a", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterByCategory(candidates(tt.in...), tt.category)
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("filterByCategory() = %v, ожидалось %v", gotIDs, tt.want)
			}
			for i := range tt.want {
				if gotIDs[i] != tt.want[i] {
					t.Fatalf("filterByCategory() = %v, ожидалось %v", gotIDs, tt.want)
				}
			}
		})
	}

	t.Run("пустой вход", func(t *testing.T) {
		if got := filterByCategory(nil, extractors.CategorySewer); len(got) != 0 {
			t.Errorf("filterByCategory(nil) = %v, ожидался пустой результат", got)
		}
	})
}
