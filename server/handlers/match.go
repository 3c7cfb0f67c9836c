package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matchserver/matching"
)

// MatchHandler обработчик сопоставления позиций с каталогом
type MatchHandler struct {
	matcher *matching.Service
}

// NewMatchHandler создает обработчик сопоставления
func NewMatchHandler(matcher *matching.Service) *MatchHandler {
	return &MatchHandler{matcher: matcher}
}

// batchMatchRequest тело пакетного запроса сопоставления
type batchMatchRequest struct {
	ClientID string               `json:"client_id"`
	Items    []matching.OrderItem `json:"items"`
	AutoSave *bool                `json:"auto_save"`
}

// HandleMatch сопоставляет одну позицию
// @Summary Сопоставить позицию с каталогом
// @Description Прогоняет артикул и название клиента через каскад стратегий сопоставления
// @Tags match
// @Accept json
// @Produce json
// @Param request body matching.MatchRequest true "Позиция клиента"
// @Success 200 {object} matching.MatchResult "Результат сопоставления"
// @Failure 400 {object} ErrorResponse "Пустая позиция"
// @Failure 503 {object} ErrorResponse "Каталог недоступен"
// @Router /api/match [post]
func (h *MatchHandler) HandleMatch(c *gin.Context) {
	var req matching.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}

	if req.ClientSKU == "" && req.ClientName == "" {
		SendJSONError(c, http.StatusBadRequest, "Укажите client_sku или client_name")
		return
	}

	result, err := h.matcher.MatchItem(c.Request.Context(), req)
	if err != nil {
		SendRepoError(c, err, "не удалось выполнить сопоставление")
		return
	}

	SendJSONResponse(c, http.StatusOK, result)
}

// HandleMatchBatch сопоставляет список позиций
// @Summary Пакетное сопоставление позиций
// @Description Сопоставляет позиции по порядку, опционально сохраняя точные совпадения как маппинги клиента
// @Tags match
// @Accept json
// @Produce json
// @Param request body batchMatchRequest true "Позиции клиента"
// @Success 200 {object} map[string]interface{} "Результаты сопоставления"
// @Failure 400 {object} ErrorResponse "Пустой список позиций"
// @Failure 503 {object} ErrorResponse "Каталог недоступен"
// @Router /api/match/batch [post]
func (h *MatchHandler) HandleMatchBatch(c *gin.Context) {
	var req batchMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}

	if len(req.Items) == 0 {
		SendJSONError(c, http.StatusBadRequest, "Список позиций пуст")
		return
	}

	// Автосохранение маппингов включено, если явно не выключено
	autoSave := req.AutoSave == nil || *req.AutoSave

	results, err := h.matcher.MatchOrderItems(c.Request.Context(), req.ClientID, req.Items, autoSave)
	if err != nil {
		SendRepoError(c, err, "не удалось выполнить сопоставление")
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}
