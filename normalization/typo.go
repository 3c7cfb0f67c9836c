package normalization

import (
	"strings"
	"unicode"
)

// Метрики опечаток дополняют поиск по основам слов: стеммер сводит
// словоформы, но бессилен против опечатки внутри слова. "тройгик"
// вместо "тройник" ловится только посимвольным сравнением.

// TrigramSimilarity считает схожесть строк как индекс Жаккара
// множеств триграмм, диапазон [0, 1].
func TrigramSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	g1 := trigrams(s1)
	g2 := trigrams(s2)
	if len(g1) == 0 && len(g2) == 0 {
		return 1
	}
	if len(g1) == 0 || len(g2) == 0 {
		return 0
	}
	intersection := 0
	for g := range g1 {
		if g2[g] {
			intersection++
		}
	}
	union := len(g1) + len(g2) - intersection
	return float64(intersection) / float64(union)
}

// trigrams возвращает множество триграмм строки. Строка короче трех
// рун дает одну грамму из себя целиком.
func trigrams(s string) map[string]bool {
	runes := []rune(strings.ToLower(strings.TrimSpace(s)))
	grams := make(map[string]bool)
	if len(runes) < 3 {
		if len(runes) > 0 {
			grams[string(runes)] = true
		}
		return grams
	}
	for i := 0; i+3 <= len(runes); i++ {
		grams[string(runes[i:i+3])] = true
	}
	return grams
}

// DamerauLevenshteinDistance - расстояние редактирования с учетом
// транспозиций: перестановка соседних символов стоит одну операцию,
// как и в опечатках, откуда она и берется.
func DamerauLevenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	matrix := make([][]int, len(r1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(r2)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(r2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(r1); i++ {
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			d := min(matrix[i-1][j]+1, matrix[i][j-1]+1, matrix[i-1][j-1]+cost)
			if i > 1 && j > 1 && r1[i-1] == r2[j-2] && r1[i-2] == r2[j-1] {
				d = min(d, matrix[i-2][j-2]+cost)
			}
			matrix[i][j] = d
		}
	}
	return matrix[len(r1)][len(r2)]
}

// DamerauLevenshteinSimilarity нормирует расстояние редактирования
// к диапазону [0, 1].
func DamerauLevenshteinSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1
	}
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(DamerauLevenshteinDistance(s1, s2))/float64(maxLen)
}

// TypoSimilarity оценивает покрытие слов запроса словами текста с
// поправкой на опечатки, диапазон [0, 1]. Каждому слову запроса
// подбирается ближайшее слово текста по максимуму триграммной схожести
// и схожести Дамерау-Левенштейна, оценка - среднее по словам запроса.
// Числа и слова короче трех рун сравниваются строго: 110 не "похоже"
// на 160, а ПП - на ПНД.
func TypoSimilarity(query, text string) float64 {
	queryTokens := typoTokens(query)
	if len(queryTokens) == 0 {
		return 0
	}
	textTokens := typoTokens(text)
	if len(textTokens) == 0 {
		return 0
	}

	var sum float64
	for _, qt := range queryTokens {
		best := 0.0
		for _, tt := range textTokens {
			if sim := typoTokenSimilarity(qt, tt); sim > best {
				best = sim
			}
		}
		sum += best
	}
	return sum / float64(len(queryTokens))
}

func typoTokenSimilarity(a, b string) float64 {
	if isDigits(a) || isDigits(b) || len([]rune(a)) < 3 || len([]rune(b)) < 3 {
		if a == b {
			return 1
		}
		return 0
	}
	sim := DamerauLevenshteinSimilarity(a, b)
	if tri := TrigramSimilarity(a, b); tri > sim {
		sim = tri
	}
	return sim
}

// typoTokens разбивает текст на слова: разделитель - любой символ,
// кроме букв и цифр.
func typoTokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
