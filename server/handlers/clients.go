package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"matchserver/database"
	"matchserver/matching"
)

// ClientsHandler обработчик клиентов-заказчиков
type ClientsHandler struct {
	clients  *database.ClientsRepo
	mappings *database.MappingsRepo
	products *database.ProductsRepo
	matcher  *matching.Service
}

// NewClientsHandler создает обработчик клиентов
func NewClientsHandler(clients *database.ClientsRepo, mappings *database.MappingsRepo, products *database.ProductsRepo, matcher *matching.Service) *ClientsHandler {
	return &ClientsHandler{
		clients:  clients,
		mappings: mappings,
		products: products,
		matcher:  matcher,
	}
}

// HandleList возвращает всех клиентов
// @Summary Список клиентов
// @Tags clients
// @Produce json
// @Success 200 {object} map[string]interface{} "Клиенты"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/clients [get]
func (h *ClientsHandler) HandleList(c *gin.Context) {
	clients, err := h.clients.List(c.Request.Context())
	if err != nil {
		SendRepoError(c, err, "не удалось получить клиентов")
		return
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"clients": clients,
		"total":   len(clients),
	})
}

// HandleGet возвращает клиента по ID
// @Summary Получить клиента
// @Tags clients
// @Produce json
// @Param id path string true "ID клиента"
// @Success 200 {object} database.Client "Клиент"
// @Failure 404 {object} ErrorResponse "Клиент не найден"
// @Router /api/clients/:id [get]
func (h *ClientsHandler) HandleGet(c *gin.Context) {
	client, err := h.clients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		SendRepoError(c, err, "клиент не найден")
		return
	}

	SendJSONResponse(c, http.StatusOK, client)
}

// HandleCreate регистрирует нового клиента
// @Summary Создать клиента
// @Tags clients
// @Accept json
// @Produce json
// @Param client body database.Client true "Клиент"
// @Success 201 {object} database.Client "Созданный клиент"
// @Failure 400 {object} ErrorResponse "Некорректный клиент"
// @Router /api/clients [post]
func (h *ClientsHandler) HandleCreate(c *gin.Context) {
	var client database.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}

	if strings.TrimSpace(client.Name) == "" {
		SendJSONError(c, http.StatusBadRequest, "Поле name обязательно")
		return
	}

	created, err := h.clients.Create(c.Request.Context(), client)
	if err != nil {
		SendRepoError(c, err, "не удалось создать клиента")
		return
	}

	SendJSONResponse(c, http.StatusCreated, created)
}

// HandleUpdate обновляет данные клиента
// @Summary Обновить клиента
// @Tags clients
// @Accept json
// @Produce json
// @Param id path string true "ID клиента"
// @Param client body database.Client true "Клиент"
// @Success 200 {object} database.Client "Обновленный клиент"
// @Failure 404 {object} ErrorResponse "Клиент не найден"
// @Router /api/clients/:id [put]
func (h *ClientsHandler) HandleUpdate(c *gin.Context) {
	var client database.Client
	if err := c.ShouldBindJSON(&client); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}

	client.ID = c.Param("id")
	if err := h.clients.Update(c.Request.Context(), client); err != nil {
		SendRepoError(c, err, "клиент не найден")
		return
	}

	updated, err := h.clients.Get(c.Request.Context(), client.ID)
	if err != nil {
		SendRepoError(c, err, "клиент не найден")
		return
	}

	SendJSONResponse(c, http.StatusOK, updated)
}

// HandleDelete удаляет клиента вместе с маппингами и заказами
// @Summary Удалить клиента
// @Tags clients
// @Produce json
// @Param id path string true "ID клиента"
// @Success 200 {object} map[string]interface{} "Статус удаления"
// @Failure 404 {object} ErrorResponse "Клиент не найден"
// @Router /api/clients/:id [delete]
func (h *ClientsHandler) HandleDelete(c *gin.Context) {
	if err := h.clients.Delete(c.Request.Context(), c.Param("id")); err != nil {
		SendRepoError(c, err, "клиент не найден")
		return
	}

	h.matcher.ClearCache()
	SendJSONResponse(c, http.StatusOK, gin.H{"status": "deleted"})
}

// clientMapping маппинг клиента с данными товара
type clientMapping struct {
	matching.Mapping
	ProductSKU  string `json:"product_sku,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

// HandleMappings возвращает выученные маппинги клиента
// @Summary Маппинги клиента
// @Description Возвращает сопоставления артикулов клиента с товарами каталога
// @Tags clients
// @Produce json
// @Param id path string true "ID клиента"
// @Param verified_only query bool false "Только подтвержденные" default(false)
// @Success 200 {object} map[string]interface{} "Маппинги"
// @Failure 404 {object} ErrorResponse "Клиент не найден"
// @Router /api/clients/:id/mappings [get]
func (h *ClientsHandler) HandleMappings(c *gin.Context) {
	clientID := c.Param("id")
	if _, err := h.clients.Get(c.Request.Context(), clientID); err != nil {
		SendRepoError(c, err, "клиент не найден")
		return
	}

	verifiedOnly := c.Query("verified_only") == "true"
	mappings, err := h.mappings.ListByClient(c.Request.Context(), clientID, verifiedOnly)
	if err != nil {
		SendRepoError(c, err, "не удалось получить маппинги")
		return
	}

	products, err := h.products.ListAll(c.Request.Context())
	if err != nil {
		SendRepoError(c, err, "не удалось получить каталог")
		return
	}
	byID := make(map[string]matching.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	enriched := make([]clientMapping, 0, len(mappings))
	for _, m := range mappings {
		cm := clientMapping{Mapping: m}
		if p, ok := byID[m.ProductID]; ok {
			cm.ProductSKU = p.SKU
			cm.ProductName = p.Name
		}
		enriched = append(enriched, cm)
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"mappings": enriched,
		"total":    len(enriched),
	})
}
