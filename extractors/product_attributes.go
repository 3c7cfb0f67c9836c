package extractors

import (
	"regexp"
	"strconv"
	"strings"
)

// Цвета товаров, распознаваемые в названиях.
const (
	ColorWhite = "white"
	ColorGray  = "gray"
	ColorRed   = "red"
)

// Направления резьбы.
const (
	ThreadInner = "вн"
	ThreadOuter = "нар"
)

// PipeSize - размер трубы: диаметр и длина в миллиметрах.
type PipeSize struct {
	Diameter int
	Length   int
}

// ThreadSize - комбинированный размер резьбового фитинга: миллиметры и дюймы.
type ThreadSize struct {
	MM   int
	Inch string
}

// wb - граница слова для кириллицы: \b в RE2 понимает только ASCII.
const wb = `[^0-9a-zа-яё]`

var (
	pipeSizeRe = regexp.MustCompile(`(\d+)\s*[×xхXХ*\-]\s*(\d+)`)

	// Углы 45°, 67°, 87°, 90° вырезаются перед поиском размеров фитинга.
	angleDegreeRe     = regexp.MustCompile(`(^|` + wb + `)(?:45|67|87|90)\s*°`)
	fittingMultiRe    = regexp.MustCompile(`(?:^|` + wb + `)(\d{2,3})\s*[-/×xхXХ*]\s*(\d{2,3})(?:\s*[-/×xхXХ*]\s*(\d{2,3}))?(?:` + wb + `|$)`)
	boundedNumberRe   = regexp.MustCompile(`(?:^|` + wb + `)(\d{2,3})(?:` + wb + `|$)`)
	fittingTypeTokens = []string{"муфт", "заглуш", "ревизи", "крестовин", "тройник", "переход", "отвод", "сифон"}

	threadSizeRe = regexp.MustCompile(`(?:^|` + wb + `)(\d{2})\s*[×xхXХ*]\s*(\d+(?:\s+\d+/\d+|/\d+)?)\s*["″]`)
	threadSpaces = regexp.MustCompile(`\s+`)

	angleWordRe  = regexp.MustCompile(`(?:^|` + wb + `)(15|30|45|67|87|90)\s*[°градус]?`)
	angleSlashRe = regexp.MustCompile(`/\s*(15|30|45|67|87|90)(?:` + wb + `|$)`)

	clampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|` + wb + `)хомут\s+(?:в\s+комплекте\s+)?(\d+)`),
		regexp.MustCompile(`(?:^|` + wb + `)хомут\s+(?:для\s+)?(?:труб[а-яё]*\s+)?(\d+)`),
		regexp.MustCompile(`(?:^|` + wb + `)хомут\s*[∅dд]?\s*(\d+)`),
	}
	clampRangeRe = regexp.MustCompile(`\((\d+)-(\d+)\)`)
)

// Допустимые дюймовые типоразмеры резьбовых фитингов.
var knownInches = map[string]bool{
	"1/2": true, "3/4": true, "1": true, "1 1/4": true,
	"1 1/2": true, "2": true, "2 1/2": true, "3": true, "4": true,
}

// ExtractPipeSize извлекает диаметр и длину трубы из названия:
// "Труба ПП 110×2000" → (110, 2000). Валидация отсекает размеры фитингов.
func ExtractPipeSize(name string) (PipeSize, bool) {
	if name == "" {
		return PipeSize{}, false
	}
	m := pipeSizeRe.FindStringSubmatch(name)
	if m == nil {
		return PipeSize{}, false
	}
	diameter, _ := strconv.Atoi(m[1])
	length, _ := strconv.Atoi(m[2])
	if diameter < 16 || diameter > 400 || length < 100 || length > 6000 {
		return PipeSize{}, false
	}
	return PipeSize{Diameter: diameter, Length: length}, true
}

// ExtractFittingSize извлекает 1-3 размера фитинга из названия, игнорируя углы:
// "Переход 50×32" → [50 32], "Муфта ППР 32" → [32]. Возвращает nil, если
// размеры не найдены или выходят за пределы 25-200 мм.
func ExtractFittingSize(name string) []int {
	if name == "" {
		return nil
	}
	cleanName := angleDegreeRe.ReplaceAllString(name, "${1}")

	if m := fittingMultiRe.FindStringSubmatch(cleanName); m != nil {
		var sizes []int
		valid := true
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			n, _ := strconv.Atoi(g)
			if n < 25 || n > 200 {
				valid = false
				break
			}
			sizes = append(sizes, n)
		}
		if valid {
			return sizes
		}
	}

	// Одиночный размер считается только рядом с типом товара:
	// "Муфта 32", "Заглушка 110", но не "Труба 110".
	nameLower := strings.ToLower(cleanName)
	typed := false
	for _, tok := range fittingTypeTokens {
		if strings.Contains(nameLower, tok) {
			typed = true
			break
		}
	}
	if !typed {
		return nil
	}
	for _, n := range boundedNumbers(nameLower) {
		if n >= 25 && n <= 200 {
			return []int{n}
		}
	}
	return nil
}

// boundedNumbers находит все числа из 2-3 цифр, ограниченные границами слов.
// Поиск возобновляется с конца числа, чтобы соседнее число не теряло
// свой разделитель.
func boundedNumbers(s string) []int {
	var nums []int
	start := 0
	for start < len(s) {
		loc := boundedNumberRe.FindStringSubmatchIndex(s[start:])
		if loc == nil {
			break
		}
		n, _ := strconv.Atoi(s[start+loc[2] : start+loc[3]])
		nums = append(nums, n)
		start += loc[3]
	}
	return nums
}

// ExtractThreadSize извлекает комбинированный размер вида 32×1":
// миллиметры и дюймовую часть. Дюймовая часть сверяется с таблицей
// типоразмеров.
func ExtractThreadSize(name string) (ThreadSize, bool) {
	if name == "" {
		return ThreadSize{}, false
	}
	m := threadSizeRe.FindStringSubmatch(name)
	if m == nil {
		return ThreadSize{}, false
	}
	mm, _ := strconv.Atoi(m[1])
	inch := threadSpaces.ReplaceAllString(strings.TrimSpace(m[2]), " ")
	if !knownInches[inch] {
		return ThreadSize{}, false
	}
	return ThreadSize{MM: mm, Inch: inch}, true
}

// ExtractThreadDirection определяет направление резьбы по обозначениям
// в названии: внутренняя ("вн") или наружная ("нар"). Пустая строка -
// резьба не указана.
func ExtractThreadDirection(name string) string {
	nameLower := strings.ToLower(name)
	for _, tok := range []string{"в/р", "вн.рез", "вн. рез", "вн рез", "внутр", "(вр)", "вр)", " вр "} {
		if strings.Contains(nameLower, tok) {
			return ThreadInner
		}
	}
	for _, tok := range []string{"н/р", "нар.рез", "нар. рез", "нар рез", "наруж", "(нр)", "нр)", " нр "} {
		if strings.Contains(nameLower, tok) {
			return ThreadOuter
		}
	}
	return ""
}

// ExtractAngle извлекает угол отвода/тройника из названия.
func ExtractAngle(name string) (int, bool) {
	nameLower := strings.ToLower(name)
	if m := angleWordRe.FindStringSubmatch(nameLower); m != nil {
		angle, _ := strconv.Atoi(m[1])
		return angle, true
	}
	if m := angleSlashRe.FindStringSubmatch(nameLower); m != nil {
		angle, _ := strconv.Atoi(m[1])
		return angle, true
	}
	return 0, false
}

// NormalizeAngle приводит угол к каталожному обозначению: в каталоге
// прямые отводы маркируются 87°, клиенты пишут 90°.
func NormalizeAngle(angle int) int {
	if angle == 90 {
		return 87
	}
	return angle
}

// ExtractClampMM извлекает диаметр трубы из названия хомута, мм.
func ExtractClampMM(name string) (int, bool) {
	nameLower := strings.ToLower(name)
	if !strings.Contains(nameLower, "хомут") {
		return 0, false
	}
	for _, re := range clampPatterns {
		m := re.FindStringSubmatch(nameLower)
		if m == nil {
			continue
		}
		mm, _ := strconv.Atoi(m[1])
		if mm >= 15 && mm <= 200 {
			return mm, true
		}
	}
	return 0, false
}

// ClampFitsMM проверяет, что диапазон хомута "(107-115)" в названии
// товара накрывает целевой диаметр.
func ClampFitsMM(productName string, targetMM int) bool {
	m := clampRangeRe.FindStringSubmatch(productName)
	if m == nil {
		return false
	}
	mmMin, _ := strconv.Atoi(m[1])
	mmMax, _ := strconv.Atoi(m[2])
	return mmMin <= targetMM && targetMM <= mmMax
}

// IsEco определяет облегченную (эко) версию товара. Толщина (1.8) -
// штатная для малых диаметров, не эко.
func IsEco(name string) bool {
	nameLower := strings.ToLower(name)
	if strings.Contains(nameLower, "(1.8)") {
		return false
	}
	return strings.Contains(nameLower, "эко") ||
		strings.Contains(nameLower, "eko") ||
		strings.Contains(nameLower, "(2.2)")
}

// IsDetachable определяет разъемную муфту (американку).
func IsDetachable(name string) bool {
	nameLower := strings.ToLower(name)
	return strings.Contains(nameLower, "разъемн") || strings.Contains(nameLower, "американк")
}

// IsReducer определяет переходной фитинг.
func IsReducer(name string) bool {
	nameLower := strings.ToLower(name)
	return strings.Contains(nameLower, "переход") || strings.Contains(nameLower, "ред")
}

// ExtractColor определяет цвет товара по названию.
func ExtractColor(name string) string {
	nameLower := strings.ToLower(name)
	switch {
	case strings.Contains(nameLower, "бел"):
		return ColorWhite
	case strings.Contains(nameLower, "сер"):
		return ColorGray
	case strings.Contains(nameLower, "рыж"),
		strings.Contains(nameLower, "оранж"),
		strings.Contains(nameLower, "красн"):
		return ColorRed
	}
	return ""
}

// NormalizeEqualSizes сворачивает кортеж одинаковых размеров до одного
// элемента: (25, 25) → (25). Так "отвод 25-25" находит "отвод 25".
func NormalizeEqualSizes(sizes []int) []int {
	if len(sizes) < 2 {
		return sizes
	}
	for _, s := range sizes[1:] {
		if s != sizes[0] {
			return sizes
		}
	}
	return sizes[:1]
}
