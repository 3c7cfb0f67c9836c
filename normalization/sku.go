package normalization

import (
	"regexp"
	"strings"
)

var (
	skuSeparatorsRe = regexp.MustCompile(`[\s\-\./_]+`)
	skuPrefixRe     = regexp.MustCompile(`^\s*([0-9][0-9A-Za-z\-\./_]{5,})(?:\s|$)`)
)

// NormalizeSKU приводит артикул к канонической форме для сравнения:
// верхний регистр, без пробелов, дефисов, точек, слэшей и ведущих нулей.
func NormalizeSKU(sku string) string {
	if sku == "" {
		return ""
	}
	result := strings.ToUpper(sku)
	result = skuSeparatorsRe.ReplaceAllString(result, "")
	result = strings.TrimLeft(result, "0")
	if result == "" {
		return "0"
	}
	return result
}

// ExtractSKUFromText выделяет артикул из начала строки названия.
// Клиенты часто пишут "202051110R Отвод ПП 110" одной строкой:
// берем первый токен, если он начинается с цифры и похож на артикул.
func ExtractSKUFromText(text string) string {
	m := skuPrefixRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}
