package algorithms

import (
	"strings"
	"unicode"
)

// TokenSearch считает схожесть текстов по пересечению основ слов.
// Словоформы сводятся стеммером, так "муфта переходная" находит
// "муфту переходную". Используется ручным поиском по каталогу.
type TokenSearch struct {
	stemmer        *RussianStemmer
	minTokenLength int
}

// NewTokenSearch создает поиск со стеммером и минимальной длиной токена 2
func NewTokenSearch() *TokenSearch {
	return &TokenSearch{
		stemmer:        NewRussianStemmer(),
		minTokenLength: 2,
	}
}

// Similarity возвращает индекс Жаккара по основам слов двух текстов, 0..1.
// Числовые токены сравниваются как есть: размеры вроде 110 или 32x25
// должны совпадать точно, а не по основе.
func (ts *TokenSearch) Similarity(query, text string) float64 {
	queryTokens := ts.Tokenize(query)
	textTokens := ts.Tokenize(text)

	if len(queryTokens) == 0 && len(textTokens) == 0 {
		return 1.0
	}
	if len(queryTokens) == 0 || len(textTokens) == 0 {
		return 0.0
	}

	set := make(map[string]bool, len(queryTokens))
	for _, token := range queryTokens {
		set[token] = true
	}

	common := 0
	union := len(set)
	seen := make(map[string]bool, len(textTokens))
	for _, token := range textTokens {
		if seen[token] {
			continue
		}
		seen[token] = true
		if set[token] {
			common++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0.0
	}
	return float64(common) / float64(union)
}

// Contains сообщает, входят ли все токены запроса в текст.
// Частичный запрос "муфта 110" находит "Муфта соединительная 110 мм".
func (ts *TokenSearch) Contains(query, text string) bool {
	queryTokens := ts.Tokenize(query)
	if len(queryTokens) == 0 {
		return false
	}

	set := make(map[string]bool)
	for _, token := range ts.Tokenize(text) {
		set[token] = true
	}

	for _, token := range queryTokens {
		if !set[token] {
			return false
		}
	}
	return true
}

// Tokenize разбивает текст на стеммированные токены. Разделитель -
// любой символ, кроме букв и цифр. Токены короче минимальной длины
// отбрасываются, кроме чисто числовых: одиночная цифра размера значима.
func (ts *TokenSearch) Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if isNumeric(field) {
			tokens = append(tokens, field)
			continue
		}
		if len([]rune(field)) < ts.minTokenLength {
			continue
		}
		tokens = append(tokens, ts.stemmer.Stem(field))
	}
	return tokens
}

func isNumeric(s string) bool {
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
