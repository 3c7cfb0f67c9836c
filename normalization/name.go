package normalization

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Синонимы материалов: сокращения приводим к полной форме.
var materialSynonyms = map[string]string{
	"пп":    "полипропилен",
	"pp":    "полипропилен",
	"ппр":   "полипропилен",
	"ppr":   "полипропилен",
	"пэ":    "полиэтилен",
	"pe":    "полиэтилен",
	"pert":  "полиэтилен",
	"pe-rt": "полиэтилен",
	"пвх":   "поливинилхлорид",
	"pvc":   "поливинилхлорид",
}

// Синонимы типов товаров и обозначений резьбы.
var productSynonyms = map[string]string{
	"колено":   "отвод",
	"угол":     "отвод",
	"угольник": "отвод",
	"elbow":    "отвод",
	"tee":      "тройник",
	"coupling": "муфта",
	"cap":      "заглушка",
	"plug":     "заглушка",
	"кан":      "канализационн",
	"нар кан":  "наружная канализация",
	"нар.кан":  "наружная канализация",
	"малошум":  "малошумная",
	"вн рез":   "внутренняя резьба",
	"вн.рез":   "внутренняя резьба",
	"нар рез":  "наружная резьба",
	"нар.рез":  "наружная резьба",
	"в р":      "внутренняя резьба",
	"в/р":      "внутренняя резьба",
	"н р":      "наружная резьба",
	"н/р":      "наружная резьба",
}

// pipeMMToInch сопоставляет диаметр трубы (мм) размеру хомута (дюймы).
var pipeMMToInch = map[int]string{
	15: `3/8"`, 16: `3/8"`, 19: `3/8"`,
	20: `1/2"`, 25: `1/2"`,
	26: `3/4"`, 30: `3/4"`,
	32: `1"`, 36: `1"`,
	40: `1 1/4"`, 46: `1 1/4"`,
	50: `1 1/2"`, 51: `1 1/2"`,
	63: `2"`, 65: `2"`,
	75: `2 1/2"`, 78: `2 1/2"`,
	90: `3"`, 92: `3"`,
	110: `4"`, 115: `4"`,
	140: `5"`, 142: `5"`,
	160: `6"`, 166: `6"`,
}

// wordBreak - граница слова для кириллицы: \b в RE2 понимает только ASCII.
const wordBreak = `[^0-9a-zа-яё]`

type synonymRule struct {
	re   *regexp.Regexp
	full string
}

// buildSynonymRules компилирует таблицу синонимов в правила замены,
// длинные сокращения первыми: "pe-rt" должен сработать раньше "pe".
func buildSynonymRules(table map[string]string, optionalDot bool) []synonymRule {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	rules := make([]synonymRule, 0, len(keys))
	for _, k := range keys {
		pattern := `(^|` + wordBreak + `)` + regexp.QuoteMeta(k)
		if optionalDot {
			pattern += `\.?`
		}
		pattern += `(` + wordBreak + `|$)`
		rules = append(rules, synonymRule{regexp.MustCompile(pattern), table[k]})
	}
	return rules
}

var (
	materialRules = buildSynonymRules(materialSynonyms, false)
	productRules  = buildSynonymRules(productSynonyms, true)

	packPiecesRe    = regexp.MustCompile(`\(уп\.?\s*\d+\s*шт\.?\)`)
	piecesRe        = regexp.MustCompile(`\(\d+\s*шт\)`)
	wallThicknessRe = regexp.MustCompile(`\(\d+\.\d+\)`)
	doubleSocketRe  = regexp.MustCompile(`\(двухраструбная\)`)
	repairRe        = regexp.MustCompile(`\(ремонтная\)`)
	connectiveRe    = regexp.MustCompile(`(^|` + wordBreak + `)соединительн[а-яё]*`)
	transitionRe    = regexp.MustCompile(`(^|` + wordBreak + `)переход(` + wordBreak + `|$)`)
	eccentricRe     = regexp.MustCompile(`(^|` + wordBreak + `)эксц\.?(` + wordBreak + `|$)`)
	compensatorRe   = regexp.MustCompile(`(^|` + wordBreak + `)компенсатор\s+кан[а-яё]*`)
	clampMMRe       = regexp.MustCompile(`(^|` + wordBreak + `)хомут\s+(\d+)(` + wordBreak + `|$)`)
	grayRe          = regexp.MustCompile(`(^|` + wordBreak + `)серый(` + wordBreak + `|$)`)
	whiteRe         = regexp.MustCompile(`(^|` + wordBreak + `)белый(` + wordBreak + `|$)`)
	sizePairRe      = regexp.MustCompile(`(\d+)\s*[-xхXХ*×]\s*(\d+)`)
	jkRe            = regexp.MustCompile(`(^|` + wordBreak + `)jk(` + wordBreak + `|$)`)
	jakkoRe         = regexp.MustCompile(`(^|` + wordBreak + `)jakko(` + wordBreak + `|$)`)
	quietRe         = regexp.MustCompile(`(^|` + wordBreak + `)малошумн[а-яё]*`)
	pnRe            = regexp.MustCompile(`(^|` + wordBreak + `)pn\s*-?\s*(\d+)`)
	punctRe         = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// expandSynonyms заменяет сокращения материалов и типов на полные формы.
func expandSynonyms(text string) string {
	result := text
	for _, rule := range materialRules {
		result = rule.re.ReplaceAllString(result, "${1}"+rule.full+"${2}")
	}
	for _, rule := range productRules {
		result = rule.re.ReplaceAllString(result, "${1}"+rule.full+"${2}")
	}
	return result
}

func convertClampMMToInch(match string) string {
	sub := clampMMRe.FindStringSubmatch(match)
	mm, _ := strconv.Atoi(sub[2])
	inch, ok := pipeMMToInch[mm]
	if !ok {
		inch = sub[2]
	}
	return sub[1] + "хомут в комплекте " + inch + sub[3]
}

// NormalizeName приводит название товара к канонической форме для сравнения.
func NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	result := strings.ToLower(name)
	result = norm.NFKC.String(result)
	result = strings.ReplaceAll(result, "ё", "е")
	result = expandSynonyms(result)
	// Упаковка (уп. 20 шт), (20 шт) вырезается, метраж (50 м) остается:
	// бухты разной длины - разные товары.
	result = packPiecesRe.ReplaceAllString(result, "")
	result = piecesRe.ReplaceAllString(result, "")
	// Толщина стенки в скобках: (2.7), (2.2).
	result = wallThicknessRe.ReplaceAllString(result, "")
	result = doubleSocketRe.ReplaceAllString(result, "")
	// "ремонтная" остается: ремонтная муфта - отдельный товар.
	result = repairRe.ReplaceAllString(result, "ремонтная")
	result = connectiveRe.ReplaceAllString(result, "${1}")
	result = transitionRe.ReplaceAllString(result, "${1}переходник${2}")
	result = eccentricRe.ReplaceAllString(result, "${1}${2}")
	result = compensatorRe.ReplaceAllString(result, "${1}патрубок компенсационный")
	// Хомут 110 → хомут 4" (конвертация мм в дюймы).
	result = clampMMRe.ReplaceAllStringFunc(result, convertClampMMToInch)
	// Цвет для сопоставления не важен.
	result = grayRe.ReplaceAllString(result, "${1}${2}")
	result = whiteRe.ReplaceAllString(result, "${1}${2}")
	// 110-2000, 110х50, 110*50, 110×50 → 110×50.
	result = sizePairRe.ReplaceAllString(result, "${1}×${2}")
	result = jkRe.ReplaceAllString(result, "${1}${2}")
	result = jakkoRe.ReplaceAllString(result, "${1}${2}")
	// Малошумная канализация во всех написаниях → prestige.
	result = quietRe.ReplaceAllString(result, "${1}prestige")
	// PN 10, PN-10, PN10 → pn10.
	result = pnRe.ReplaceAllString(result, "${1}pn${2}")
	result = strings.Join(strings.Fields(result), " ")
	result = punctRe.ReplaceAllString(result, " ")
	return strings.Join(strings.Fields(result), " ")
}
