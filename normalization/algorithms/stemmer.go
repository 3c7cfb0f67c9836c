package algorithms

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// RussianStemmer приводит русские слова к основе алгоритмом Snowball.
// Основы кэшируются, кэш безопасен для конкурентного доступа.
type RussianStemmer struct {
	cache map[string]string
	mu    sync.RWMutex
}

// NewRussianStemmer создает стеммер с пустым кэшем
func NewRussianStemmer() *RussianStemmer {
	return &RussianStemmer{cache: make(map[string]string)}
}

// Stem возвращает основу слова: "муфтой" -> "муфт", "трубы" -> "труб".
// Для слов, которые Snowball не берет, возвращается слово в нижнем регистре.
func (s *RussianStemmer) Stem(word string) string {
	normalized := strings.ToLower(strings.TrimSpace(word))
	if normalized == "" {
		return ""
	}

	s.mu.RLock()
	cached, found := s.cache[normalized]
	s.mu.RUnlock()
	if found {
		return cached
	}

	stemmed, err := snowball.Stem(normalized, "russian", true)
	if err != nil {
		stemmed = normalized
	}

	s.mu.Lock()
	s.cache[normalized] = stemmed
	s.mu.Unlock()

	return stemmed
}

// StemTokens возвращает основы списка слов
func (s *RussianStemmer) StemTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return []string{}
	}

	stemmed := make([]string, len(tokens))
	for i, token := range tokens {
		stemmed[i] = s.Stem(token)
	}
	return stemmed
}

// CacheSize возвращает число закэшированных основ
func (s *RussianStemmer) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
