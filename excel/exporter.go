package excel

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExportItem строка выгрузки заказа: позиция клиента и подобранный
// товар поставщика
type ExportItem struct {
	ClientSKU   string
	ClientName  string
	Quantity    float64
	ProductSKU  string
	ProductName string
	PackQty     int
	Confidence  float64
	MatchType   string
	NeedsReview bool
}

// ExportOrder собирает Excel-файл заказа для загрузки в 1С: колонки
// клиента рядом с подобранными позициями каталога.
func ExportOrder(items []ExportItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Заказ"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	headers := []string{
		"Артикул клиента", "Название клиента", "Количество",
		"Артикул поставщика", "Название поставщика", "Упаковка",
		"Совпадение %", "Тип маппинга", "Требует проверки",
	}

	widths := make([]int, len(headers))
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
		widths[i] = utf8.RuneCountInString(header)
	}

	for rowIdx, item := range items {
		review := "Нет"
		if item.NeedsReview {
			review = "Да"
		}
		values := []any{
			item.ClientSKU, item.ClientName, item.Quantity,
			item.ProductSKU, item.ProductName, item.PackQty,
			item.Confidence, item.MatchType, review,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, v)
			if n := utf8.RuneCountInString(fmt.Sprint(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	// Ширина подстраивается под содержимое, очень длинные названия
	// не растягивают колонку бесконечно.
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, float64(min(w+2, 50)))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// RoundToPack округляет количество вверх до целых упаковок.
func RoundToPack(qty float64, packQty int) int {
	if packQty <= 1 {
		return int(math.Ceil(qty))
	}
	return int(math.Ceil(qty/float64(packQty))) * packQty
}
