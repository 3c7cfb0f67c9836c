package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"matchserver/database"
	"matchserver/excel"
	"matchserver/matching"
)

// maxOrderFileSize предел размера загружаемого файла заказа
const maxOrderFileSize = 20 << 20

// OrdersHandler обработчик заказов клиентов
type OrdersHandler struct {
	orders   *database.OrdersRepo
	clients  *database.ClientsRepo
	products *database.ProductsRepo
	matcher  *matching.Service
}

// NewOrdersHandler создает обработчик заказов
func NewOrdersHandler(orders *database.OrdersRepo, clients *database.ClientsRepo, products *database.ProductsRepo, matcher *matching.Service) *OrdersHandler {
	return &OrdersHandler{
		orders:   orders,
		clients:  clients,
		products: products,
		matcher:  matcher,
	}
}

// HandleUpload принимает файл заказа и сопоставляет его позиции
// @Summary Загрузить заказ
// @Description Разбирает файл заказа, прогоняет каждую позицию через каскад сопоставления и сохраняет заказ. Количество округляется вверх до кратности упаковки.
// @Tags orders
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Файл заказа (xlsx или csv)"
// @Param client_id formData string true "ID клиента"
// @Param order_number formData string false "Номер заказа клиента"
// @Success 200 {object} map[string]interface{} "Итоги обработки заказа"
// @Failure 400 {object} ErrorResponse "Нечитаемый файл или пустой заказ"
// @Failure 404 {object} ErrorResponse "Клиент не найден"
// @Router /api/orders/upload [post]
func (h *OrdersHandler) HandleUpload(c *gin.Context) {
	clientID := strings.TrimSpace(c.PostForm("client_id"))
	if clientID == "" {
		SendJSONError(c, http.StatusBadRequest, "Параметр client_id обязателен")
		return
	}

	if _, err := h.clients.Get(c.Request.Context(), clientID); err != nil {
		SendRepoError(c, err, "клиент не найден")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "Файл не передан")
		return
	}
	if fileHeader.Size > maxOrderFileSize {
		SendJSONError(c, http.StatusBadRequest, "Файл слишком большой")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "Не удалось открыть файл")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "Не удалось прочитать файл")
		return
	}

	lines, err := excel.ParseOrderFile(data, fileHeader.Filename)
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "Не удалось разобрать заказ: "+err.Error())
		return
	}
	if len(lines) == 0 {
		SendJSONError(c, http.StatusBadRequest, "Файл не содержит позиций")
		return
	}

	order, err := h.orders.Create(c.Request.Context(), database.Order{
		ClientID:     clientID,
		OrderNumber:  strings.TrimSpace(c.PostForm("order_number")),
		Source:       "upload",
		OriginalFile: fileHeader.Filename,
	})
	if err != nil {
		SendRepoError(c, err, "не удалось создать заказ")
		return
	}

	toMatch := make([]matching.OrderItem, 0, len(lines))
	for _, line := range lines {
		toMatch = append(toMatch, matching.OrderItem{
			ClientSKU:  line.ClientSKU,
			ClientName: line.ClientName,
			Qty:        line.Quantity,
		})
	}

	results, err := h.matcher.MatchOrderItems(c.Request.Context(), clientID, toMatch, true)
	if err != nil {
		SendRepoError(c, err, "не удалось сопоставить заказ")
		return
	}

	items := make([]database.OrderItem, 0, len(results))
	needsReview := 0
	autoMapped := 0
	for i, match := range results {
		res := match.Result
		item := database.OrderItem{
			ClientSKU:         lines[i].ClientSKU,
			ClientName:        lines[i].ClientName,
			Quantity:          lines[i].Quantity,
			OriginalQuantity:  lines[i].Quantity,
			MappingConfidence: res.Confidence,
			MappingType:       res.MatchType,
			NeedsReview:       res.NeedsReview,
		}
		if res.ProductID != "" {
			item.MappedProductID = res.ProductID
			item.Quantity = float64(excel.RoundToPack(lines[i].Quantity, res.PackQty))
		}
		if res.NeedsReview {
			needsReview++
		}
		if res.ProductID != "" && !res.NeedsReview {
			autoMapped++
		}
		items = append(items, item)
	}

	if err := h.orders.InsertItems(c.Request.Context(), order.ID, items); err != nil {
		SendRepoError(c, err, "не удалось сохранить позиции заказа")
		return
	}

	status := database.OrderStatusProcessed
	if needsReview > 0 {
		status = database.OrderStatusNeedsReview
	}
	if err := h.orders.UpdateStatus(c.Request.Context(), order.ID, status); err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	log.Printf("✓ Заказ %s обработан: %d позиций, %d автоматически, %d на проверку",
		order.ID, len(items), autoMapped, needsReview)

	SendJSONResponse(c, http.StatusOK, gin.H{
		"order_id":     order.ID,
		"total_items":  len(items),
		"auto_mapped":  autoMapped,
		"needs_review": needsReview,
		"status":       status,
	})
}

// HandleList возвращает заказы
// @Summary Список заказов
// @Tags orders
// @Produce json
// @Param client_id query string false "Фильтр по клиенту"
// @Param limit query int false "Максимум записей" default(50)
// @Success 200 {object} map[string]interface{} "Заказы"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/orders [get]
func (h *OrdersHandler) HandleList(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	orders, err := h.orders.List(c.Request.Context(), c.Query("client_id"), limit)
	if err != nil {
		SendRepoError(c, err, "не удалось получить заказы")
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"orders": orders,
		"total":  len(orders),
	})
}

// HandleGet возвращает заказ с позициями
// @Summary Получить заказ
// @Tags orders
// @Produce json
// @Param id path string true "ID заказа"
// @Success 200 {object} map[string]interface{} "Заказ с позициями"
// @Failure 404 {object} ErrorResponse "Заказ не найден"
// @Router /api/orders/:id [get]
func (h *OrdersHandler) HandleGet(c *gin.Context) {
	orderID := c.Param("id")
	order, err := h.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	items, err := h.orders.ListItems(c.Request.Context(), orderID)
	if err != nil {
		SendRepoError(c, err, "не удалось получить позиции заказа")
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// HandleExport выгружает заказ в Excel-файл для 1С
// @Summary Экспортировать заказ
// @Description Собирает Excel-файл заказа в формате поставщика и помечает заказ выгруженным
// @Tags orders
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "ID заказа"
// @Success 200 {file} binary "Excel-файл заказа"
// @Failure 404 {object} ErrorResponse "Заказ не найден"
// @Router /api/orders/:id/export [post]
func (h *OrdersHandler) HandleExport(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := h.orders.Get(c.Request.Context(), orderID); err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	items, err := h.orders.ListItems(c.Request.Context(), orderID)
	if err != nil {
		SendRepoError(c, err, "не удалось получить позиции заказа")
		return
	}

	exportItems := make([]excel.ExportItem, 0, len(items))
	for _, it := range items {
		exportItems = append(exportItems, excel.ExportItem{
			ClientSKU:   it.ClientSKU,
			ClientName:  it.ClientName,
			Quantity:    it.Quantity,
			ProductSKU:  it.ProductSKU,
			ProductName: it.ProductName,
			PackQty:     it.PackQty,
			Confidence:  it.MappingConfidence,
			MatchType:   it.MappingType,
			NeedsReview: it.NeedsReview,
		})
	}

	content, err := excel.ExportOrder(exportItems)
	if err != nil {
		SendRepoError(c, err, "не удалось сформировать файл")
		return
	}

	if err := h.orders.MarkExported(c.Request.Context(), orderID); err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	log.Printf("✓ Заказ %s выгружен: %d позиций", orderID, len(exportItems))

	filename := fmt.Sprintf("order_%s.xlsx", orderID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
}

// updateMappingRequest тело запроса ручного переназначения позиции
type updateMappingRequest struct {
	ProductID string `json:"product_id"`
}

// HandleUpdateItemMapping вручную переназначает товар позиции заказа.
// Исправление запоминается как подтвержденный маппинг клиента и
// применяется в следующих заказах.
// @Summary Переназначить позицию
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "ID заказа"
// @Param item_id path string true "ID позиции"
// @Param mapping body updateMappingRequest true "Новый товар"
// @Success 200 {object} database.OrderItem "Обновленная позиция"
// @Failure 400 {object} ErrorResponse "Некорректное тело запроса"
// @Failure 404 {object} ErrorResponse "Заказ, позиция или товар не найдены"
// @Router /api/orders/:id/items/:item_id/mapping [put]
func (h *OrdersHandler) HandleUpdateItemMapping(c *gin.Context) {
	var req updateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}
	if req.ProductID == "" {
		SendJSONError(c, http.StatusBadRequest, "Поле product_id обязательно")
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), req.ProductID)
	if err != nil {
		SendRepoError(c, err, "товар не найден")
		return
	}

	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	itemID := c.Param("item_id")
	item, err := h.orders.GetItem(c.Request.Context(), itemID)
	if err != nil || item.OrderID != order.ID {
		SendJSONError(c, http.StatusNotFound, "Позиция не найдена")
		return
	}

	if err := h.orders.UpdateItemMapping(c.Request.Context(), itemID, product.ID, 100, "manual"); err != nil {
		SendRepoError(c, err, "позиция не найдена")
		return
	}

	if item.ClientSKU != "" || item.ClientName != "" {
		err := h.matcher.SaveMapping(c.Request.Context(), matching.Mapping{
			ClientID:   order.ClientID,
			ClientSKU:  item.ClientSKU,
			ClientName: item.ClientName,
			ProductID:  product.ID,
			Confidence: 100,
			MatchType:  "manual",
			Verified:   true,
		})
		if err != nil {
			SendRepoError(c, err, "не удалось сохранить маппинг")
			return
		}
	}

	updated, err := h.orders.GetItem(c.Request.Context(), itemID)
	if err != nil {
		SendRepoError(c, err, "позиция не найдена")
		return
	}

	SendJSONResponse(c, http.StatusOK, updated)
}

// HandleConfirm подтверждает сопоставления заказа целиком.
// Все назначенные позиции запоминаются как проверенные маппинги.
// @Summary Подтвердить заказ
// @Tags orders
// @Produce json
// @Param id path string true "ID заказа"
// @Success 200 {object} map[string]interface{} "Число подтвержденных маппингов"
// @Failure 404 {object} ErrorResponse "Заказ не найден"
// @Router /api/orders/:id/confirm [post]
func (h *OrdersHandler) HandleConfirm(c *gin.Context) {
	orderID := c.Param("id")
	order, err := h.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	items, err := h.orders.ListItems(c.Request.Context(), orderID)
	if err != nil {
		SendRepoError(c, err, "не удалось получить позиции заказа")
		return
	}

	confirmed := 0
	for _, it := range items {
		if it.MappedProductID == "" || it.ClientSKU == "" {
			continue
		}
		err := h.matcher.SaveMapping(c.Request.Context(), matching.Mapping{
			ClientID:   order.ClientID,
			ClientSKU:  it.ClientSKU,
			ClientName: it.ClientName,
			ProductID:  it.MappedProductID,
			Confidence: it.MappingConfidence,
			MatchType:  it.MappingType,
			Verified:   true,
		})
		if err != nil {
			SendRepoError(c, err, "не удалось сохранить маппинг")
			return
		}
		confirmed++
	}

	if err := h.orders.MarkReviewed(c.Request.Context(), orderID); err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}
	if err := h.orders.UpdateStatus(c.Request.Context(), orderID, database.OrderStatusConfirmed); err != nil {
		SendRepoError(c, err, "заказ не найден")
		return
	}

	log.Printf("✓ Заказ %s подтвержден: %d маппингов сохранено", orderID, confirmed)

	SendJSONResponse(c, http.StatusOK, gin.H{
		"confirmed": confirmed,
		"status":    database.OrderStatusConfirmed,
	})
}
