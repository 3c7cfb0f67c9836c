package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// Синонимы заголовков в файлах клиентов. Каждый клиент называет
// колонки по-своему, ищем по вхождению подстроки.
var (
	skuColumns  = []string{"артикул", "sku", "код", "article", "code", "номер", "арт", "арт."}
	nameColumns = []string{"название", "наименование", "name", "товар", "product", "описание"}
	qtyColumns  = []string{"количество", "qty", "quantity", "кол-во", "кол", "шт", "count"}
)

// OrderLine позиция из файла заказа клиента
type OrderLine struct {
	ClientSKU  string  `json:"client_sku"`
	ClientName string  `json:"client_name"`
	Quantity   float64 `json:"quantity"`
}

// ParseOrderFile разбирает файл заказа клиента: CSV или Excel.
// Колонки распознаются по известным синонимам заголовков; файл без
// опознаваемых заголовков читается по первой колонке как артикулу.
func ParseOrderFile(data []byte, filename string) ([]OrderLine, error) {
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
	if len(rows) == 0 {
		return nil, nil
	}

	skuCol := findColumn(headers, skuColumns)
	nameCol := findColumn(headers, nameColumns)
	qtyCol := findColumn(headers, qtyColumns)

	if skuCol == "" && nameCol == "" && len(headers) > 0 {
		skuCol = headers[0]
	}

	var lines []OrderLine
	for _, row := range rows {
		sku := strings.TrimSpace(row[skuCol])
		name := strings.TrimSpace(row[nameCol])
		if sku == "" && name == "" {
			continue
		}
		if sku == "" {
			sku = truncateRunes(name, 50)
		}
		lines = append(lines, OrderLine{
			ClientSKU:  sku,
			ClientName: name,
			Quantity:   parseQty(row[qtyCol]),
		})
	}
	return lines, nil
}

// readCSV читает CSV с автоопределением кодировки и разделителя.
// Файлы из 1С обычно приходят в cp1251 с разделителем ";".
func readCSV(data []byte) ([]string, []map[string]string, error) {
	text, err := decodeText(data)
	if err != nil {
		return nil, nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	headers := normalizeHeaders(records[0])
	return headers, recordsToRows(headers, records[1:]), nil
}

// readExcel читает активный лист Excel-файла.
func readExcel(data []byte) ([]string, []map[string]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open excel: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = sheets[0]
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	headers := normalizeHeaders(records[0])
	return headers, recordsToRows(headers, records[1:]), nil
}

// decodeText приводит содержимое к UTF-8: BOM отрезается, не-UTF-8
// трактуется как cp1251.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode csv: %w", err)
	}
	return string(decoded), nil
}

// sniffDelimiter выбирает разделитель по первой строке файла.
func sniffDelimiter(text string) rune {
	line := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		line = text[:i]
	}
	delim, best := ',', strings.Count(line, ",")
	if n := strings.Count(line, ";"); n > best {
		delim, best = ';', n
	}
	if n := strings.Count(line, "\t"); n > best {
		delim = '\t'
	}
	return delim
}

// normalizeHeaders приводит заголовки к нижнему регистру; безымянные
// колонки получают позиционные имена.
func normalizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	for i, h := range record {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			h = fmt.Sprintf("col_%d", i)
		}
		headers[i] = h
	}
	return headers
}

func recordsToRows(headers []string, records [][]string) []map[string]string {
	var rows []map[string]string
	for _, record := range records {
		empty := true
		for _, v := range record {
			if strings.TrimSpace(v) != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, v := range record {
			if i < len(headers) {
				row[headers[i]] = v
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// findColumn ищет первую колонку, чей заголовок содержит один из
// известных синонимов.
func findColumn(headers, candidates []string) string {
	for _, h := range headers {
		for _, cand := range candidates {
			if strings.Contains(h, cand) {
				return h
			}
		}
	}
	return ""
}

// parseQty разбирает количество; запятая принимается как десятичный
// разделитель, нечисловое значение трактуется как одна штука.
func parseQty(raw string) float64 {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))
	if raw == "" {
		return 1
	}
	qty, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 1
	}
	return qty
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
