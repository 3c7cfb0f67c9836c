package matching

import "time"

// Config - пороги и веса уверенности конвейера сопоставления.
type Config struct {
	// FuzzyThreshold - минимальная оценка кандидата в гибридной стратегии.
	FuzzyThreshold float64

	ConfidenceExactSku  float64
	ConfidenceExactName float64
	ConfidenceFuzzySku  float64
	ConfidenceFuzzyName float64
	ConfidenceML        float64

	// MinConfidenceAuto - порог автоматического принятия без проверки.
	MinConfidenceAuto float64

	// EnableMLMatching включает семантический префильтр в гибридной
	// стратегии; при выключении гибрид сканирует весь каталог.
	EnableMLMatching bool

	// LLMTimeout - бюджет одного обращения к LLM.
	LLMTimeout time.Duration
}

// DefaultConfig возвращает пороги по умолчанию.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:      70,
		ConfidenceExactSku:  100,
		ConfidenceExactName: 95,
		ConfidenceFuzzySku:  90,
		ConfidenceFuzzyName: 80,
		ConfidenceML:        70,
		MinConfidenceAuto:   80,
		EnableMLMatching:    true,
		LLMTimeout:          15 * time.Second,
	}
}

// Критичные типы товаров: несовпадение типа не перекрывается высокой
// fuzzy-оценкой. Новый тип добавляется и сюда, и в таблицу маркеров
// пакета extractors.
var criticalTypes = map[string]bool{
	"кран":       true,
	"муфта":      true,
	"отвод":      true,
	"тройник":    true,
	"переходник": true,
	"заглушка":   true,
	"ревизия":    true,
	"крестовина": true,
}
