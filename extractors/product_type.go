package extractors

import (
	"strings"

	"matchserver/normalization"
)

// Категории каталога.
const (
	CategoryPert     = "pert"
	CategoryPnd      = "pnd"
	CategoryPrestige = "prestige"
	CategoryOutdoor  = "outdoor"
	CategorySewer    = "sewer"
	CategoryPpr      = "ppr"
)

// typeMarker - маркер типа товара в названии. Порядок проверки важен:
// "крестовин" раньше "тройник", "переход" раньше "отвод".
type typeMarker struct {
	marker string
	ptype  string
}

var productTypeMarkers = []typeMarker{
	{"крестовин", "крестовина"},
	{"тройник", "тройник"},
	{"переход", "переходник"},
	{"ред", "переходник"},
	{"разъемн", "муфта"},
	{"отвод", "отвод"},
	{"колено", "отвод"},
	{"угол", "отвод"},
	{"муфт", "муфта"},
	{"заглуш", "заглушка"},
	{"ревизи", "ревизия"},
	{"патруб", "патрубок"},
	{"опор", "клипса"},
	{"клипс", "клипса"},
	{"труб", "труба"},
	{"хомут", "хомут"},
	{"кран", "кран"},
	{"фильтр", "фильтр"},
	{"клапан", "клапан"},
	{"сифон", "сифон"},
}

// Подсказки категорий в клиентских формулировках.
var clientCategoryHints = map[string][]string{
	CategoryPert:     {"pert", "pe-rt", "термостойк"},
	CategoryPnd:      {"пнд", "hdpe", "компресс", "цанг"},
	CategoryPrestige: {"малошум", "prestige"},
	CategoryOutdoor:  {"нар кан", "нар.кан", "наружн", "рыж"},
	CategoryPpr:      {"ппр", "ppr", "водопровод", "отоплен", " пп ", "армир", "стекловолок", "в/р", "н/р"},
}

var sewerMarkers = []string{"кан", "канализац", "сантех"}

// ExtractProductType определяет тип товара по первому маркеру в названии.
func ExtractProductType(name string) string {
	nameLower := strings.ToLower(name)
	for _, tm := range productTypeMarkers {
		if strings.Contains(nameLower, tm.marker) {
			return tm.ptype
		}
	}
	return ""
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// DetectClientCategory определяет категорию каталога по клиентской
// формулировке. Порядок правил важен: pert и pnd распознаются раньше
// общих канализационных признаков.
func DetectClientCategory(clientName string) string {
	name := strings.ToLower(clientName)

	isSewer := containsAny(name, sewerMarkers)
	isGray := strings.Contains(name, "сер")

	if containsAny(name, clientCategoryHints[CategoryPert]) {
		return CategoryPert
	}
	if containsAny(name, clientCategoryHints[CategoryPnd]) {
		return CategoryPnd
	}
	if containsAny(name, clientCategoryHints[CategoryPrestige]) {
		return CategoryPrestige
	}
	// Белая канализация - это линейка Prestige.
	if isSewer && strings.Contains(name, "бел") {
		return CategoryPrestige
	}
	if containsAny(name, clientCategoryHints[CategoryOutdoor]) {
		return CategoryOutdoor
	}
	if isGray || isSewer {
		return CategorySewer
	}
	if containsAny(name, clientCategoryHints[CategoryPpr]) {
		return CategoryPpr
	}
	if strings.Contains(name, "бел") && !isSewer {
		return CategoryPpr
	}
	return ""
}

// EmbeddingText готовит текст для эмбеддинга: тип товара дублируется
// для усиления веса, ключевые слова категории добавляются к
// нормализованному названию.
func EmbeddingText(name, category string) string {
	if name == "" {
		return ""
	}
	var parts []string
	if ptype := ExtractProductType(name); ptype != "" {
		parts = append(parts, ptype, ptype)
	}
	if category != "" {
		cat := strings.ToLower(category)
		switch {
		case strings.Contains(cat, "малошум"):
			parts = append(parts, "малошумная", "белая", "prestige")
		case strings.Contains(cat, "наружн"):
			parts = append(parts, "наружная", "оранжевая", "рыжая")
		case strings.Contains(cat, "канализац"):
			parts = append(parts, "серая", "внутренняя")
		case strings.Contains(cat, "ппр"), strings.Contains(cat, "полипроп"):
			parts = append(parts, "ппр", "полипропилен", "водопровод")
		}
	}
	parts = append(parts, normalization.NormalizeName(name))
	return strings.Join(parts, " ")
}
