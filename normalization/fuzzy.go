package normalization

import (
	"sort"
	"strings"
)

// Ratio считает схожесть строк в диапазоне [0, 100] по расстоянию
// редактирования со вставками и удалениями (замена = вставка + удаление).
func Ratio(s1, s2 string) float64 {
	if s1 == s2 {
		return 100
	}
	r1 := []rune(s1)
	r2 := []rune(s2)
	total := len(r1) + len(r2)
	if total == 0 {
		return 100
	}
	return 200 * float64(lcsLength(r1, r2)) / float64(total)
}

// TokenSortRatio сравнивает строки после сортировки слов:
// "отвод пп 110" и "пп отвод 110" получают 100.
func TokenSortRatio(s1, s2 string) float64 {
	return Ratio(sortedTokens(s1), sortedTokens(s2))
}

// TokenSetRatio сравнивает множества слов: общая часть обеих строк
// сопоставляется с каждой строкой целиком, берется максимум. Устойчив
// к лишним словам в одной из строк.
func TokenSetRatio(s1, s2 string) float64 {
	set1 := tokenSet(s1)
	set2 := tokenSet(s2)

	var common, diff1, diff2 []string
	for t := range set1 {
		if set2[t] {
			common = append(common, t)
		} else {
			diff1 = append(diff1, t)
		}
	}
	for t := range set2 {
		if !set1[t] {
			diff2 = append(diff2, t)
		}
	}
	sort.Strings(common)
	sort.Strings(diff1)
	sort.Strings(diff2)

	base := strings.Join(common, " ")
	combined1 := joinNonEmpty(base, strings.Join(diff1, " "))
	combined2 := joinNonEmpty(base, strings.Join(diff2, " "))

	best := Ratio(base, combined1)
	if r := Ratio(base, combined2); r > best {
		best = r
	}
	if r := Ratio(combined1, combined2); r > best {
		best = r
	}
	return best
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + " " + b
}

// lcsLength - длина наибольшей общей подпоследовательности.
func lcsLength(a, b []rune) int {
	if len(b) > len(a) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
