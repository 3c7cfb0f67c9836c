package excel

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Дополнительные колонки каталожных файлов.
var (
	categoryColumns = []string{"категория", "category", "группа", "раздел"}
	priceColumns    = []string{"цена", "price", "стоимость"}
	packColumns     = []string{"упаковка", "кратность", "pack"}
)

// CatalogRow строка каталога поставщика из прайс-файла
type CatalogRow struct {
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Price      float64 `json:"price,omitempty"`
	PackQty    int     `json:"pack_qty"`
	ThreadType string  `json:"thread_type,omitempty"`
}

// ParseCatalog разбирает каталог стандартной табличной формы:
// заголовок в первой строке, колонки артикула и названия обязательны.
func ParseCatalog(data []byte, filename string) ([]CatalogRow, error) {
	var headers []string
	var rows []map[string]string
	var err error

	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		headers, rows, err = readCSV(data)
	} else {
		headers, rows, err = readExcel(data)
	}
	if err != nil {
		return nil, err
	}

	skuCol := findColumn(headers, skuColumns)
	nameCol := findColumn(headers, nameColumns)
	if skuCol == "" || nameCol == "" {
		return nil, fmt.Errorf("в файле не найдены колонки артикула и названия")
	}
	categoryCol := findColumn(headers, categoryColumns)
	priceCol := findColumn(headers, priceColumns)
	packCol := findColumn(headers, packColumns)

	var products []CatalogRow
	for _, row := range rows {
		sku := strings.TrimSpace(row[skuCol])
		name := strings.TrimSpace(row[nameCol])
		if sku == "" || name == "" {
			continue
		}

		pack := 0
		if packCol != "" {
			pack, _ = strconv.Atoi(strings.TrimSpace(row[packCol]))
		}
		if pack < 1 {
			pack = ExtractPackQty(name)
		}

		var price float64
		if priceCol != "" {
			price, _ = strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(row[priceCol], ",", ".")), 64)
		}

		products = append(products, CatalogRow{
			SKU:        sku,
			Name:       name,
			Category:   strings.TrimSpace(row[categoryCol]),
			Price:      price,
			PackQty:    pack,
			ThreadType: DetectThreadType(name),
		})
	}
	return products, nil
}

// Категории прайс-листа Jakko: листы книги названы номерами разделов.
var jakkoCategories = map[string]string{
	"1":  "Трубы ПЭ для воды",
	"2":  "Трубы PERT",
	"3":  "Трубы ППР",
	"4":  "Фитинги ППР",
	"5":  "Фитинги ППР с резьбой",
	"6":  "Запорная арматура ППР",
	"7":  "Трубы ПП малошумные",
	"8":  "Трубы канализационные ПП",
	"9":  "Трубы наружной канализации",
	"10": "Трубы рифлёные",
	"11": "Герметики и инструмент",
	"12": "Прочее",
}

// В прайсе Jakko первые четыре строки занимает шапка, заголовок
// таблицы в пятой.
const jakkoHeaderRow = 4

// IsJakkoFormat распознает фирменный прайс Jakko: книга с листом
// "Содержание" либо с листами, названными номерами разделов.
func IsJakkoFormat(data []byte) bool {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return false
	}
	defer f.Close()

	numeric := 0
	for _, name := range f.GetSheetList() {
		if name == "Содержание" {
			return true
		}
		if _, err := strconv.Atoi(name); err == nil {
			numeric++
		}
	}
	return numeric >= 3
}

// ParseJakkoCatalog разбирает прайс-лист Jakko: по листу на раздел,
// оглавление и бланк заказа пропускаются.
func ParseJakkoCatalog(data []byte) ([]CatalogRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open excel: %w", err)
	}
	defer f.Close()

	var products []CatalogRow
	for _, sheet := range f.GetSheetList() {
		if sheet == "Содержание" || sheet == "заказ" {
			continue
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		if len(rows) <= jakkoHeaderRow {
			continue
		}

		skuIdx, nameIdx := -1, -1
		for idx, val := range rows[jakkoHeaderRow] {
			v := strings.ToUpper(strings.TrimSpace(val))
			switch {
			case strings.Contains(v, "АРТИКУЛ"):
				skuIdx = idx
			case strings.Contains(v, "НОМЕНКЛАТУРА"):
				nameIdx = idx
			}
		}
		if skuIdx == -1 || nameIdx == -1 {
			continue
		}

		category := sheet
		if c, ok := jakkoCategories[sheet]; ok {
			category = c
		}

		for _, row := range rows[jakkoHeaderRow+1:] {
			if skuIdx >= len(row) || nameIdx >= len(row) {
				continue
			}
			sku := strings.TrimSpace(row[skuIdx])
			// Повторы заголовка встречаются внутри листа между подгруппами.
			if sku == "" || strings.EqualFold(sku, "АРТИКУЛ") {
				continue
			}
			name := strings.TrimSpace(strings.ReplaceAll(row[nameIdx], " ", " "))
			if name == "" {
				continue
			}

			products = append(products, CatalogRow{
				SKU:        sku,
				Name:       name,
				Category:   category,
				PackQty:    ExtractPackQty(name),
				ThreadType: DetectThreadType(name),
			})
		}
	}
	return products, nil
}

// Упаковка в названиях встречается в нескольких записях:
// "(уп 20 шт)", "(20 шт)", "100 шт/кор", "уп.20шт".
var packQtyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\(уп\.?\s*(\d+)\s*шт\.?\)`),
	regexp.MustCompile(`(?i)\((\d+)\s*шт\)`),
	regexp.MustCompile(`(?i)(\d+)\s*шт/кор`),
	regexp.MustCompile(`(?i)уп\.?\s*(\d+)\s*шт`),
}

// ExtractPackQty извлекает количество в упаковке из названия товара,
// минимум 1.
func ExtractPackQty(name string) int {
	if name == "" {
		return 1
	}
	for _, re := range packQtyPatterns {
		if m := re.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 1
}

// Типы резьбы в карточках каталога.
const (
	ThreadTypeInner = "внутренняя"
	ThreadTypeOuter = "наружная"
)

// DetectThreadType извлекает тип резьбы из названия товара.
func DetectThreadType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "вн.рез"), strings.Contains(lower, "вн рез"), strings.Contains(lower, "внутр"):
		return ThreadTypeInner
	case strings.Contains(lower, "нар.рез"), strings.Contains(lower, "нар рез"), strings.Contains(lower, "наруж"):
		return ThreadTypeOuter
	}
	return ""
}
