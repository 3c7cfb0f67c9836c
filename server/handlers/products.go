package handlers

import (
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"matchserver/database"
	"matchserver/excel"
	"matchserver/matching"
	"matchserver/normalization"
	"matchserver/normalization/algorithms"
)

// maxCatalogFileSize предел размера загружаемого прайс-листа
const maxCatalogFileSize = 50 << 20

// ProductsHandler обработчик каталога товаров поставщика
type ProductsHandler struct {
	products *database.ProductsRepo
	matcher  *matching.Service
	search   *algorithms.TokenSearch
}

// NewProductsHandler создает обработчик каталога
func NewProductsHandler(products *database.ProductsRepo, matcher *matching.Service) *ProductsHandler {
	return &ProductsHandler{
		products: products,
		matcher:  matcher,
		search:   algorithms.NewTokenSearch(),
	}
}

// HandleList возвращает каталог товаров
// @Summary Список товаров каталога
// @Tags products
// @Produce json
// @Param limit query int false "Максимум записей" default(0)
// @Success 200 {object} map[string]interface{} "Каталог"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products [get]
func (h *ProductsHandler) HandleList(c *gin.Context) {
	products, err := h.products.ListAll(c.Request.Context())
	if err != nil {
		SendRepoError(c, err, "не удалось получить каталог")
		return
	}

	total := len(products)
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(products) {
			products = products[:limit]
		}
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"products": products,
		"total":    total,
	})
}

// HandleGet возвращает товар по ID
// @Summary Получить товар
// @Tags products
// @Produce json
// @Param id path string true "ID товара"
// @Success 200 {object} matching.Product "Товар"
// @Failure 404 {object} ErrorResponse "Товар не найден"
// @Router /api/products/:id [get]
func (h *ProductsHandler) HandleGet(c *gin.Context) {
	product, err := h.products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		SendRepoError(c, err, "товар не найден")
		return
	}

	SendJSONResponse(c, http.StatusOK, product)
}

// HandleCreate добавляет товар в каталог
// @Summary Добавить товар
// @Tags products
// @Accept json
// @Produce json
// @Param product body matching.Product true "Товар"
// @Success 201 {object} matching.Product "Созданный товар"
// @Failure 400 {object} ErrorResponse "Некорректный товар"
// @Router /api/products [post]
func (h *ProductsHandler) HandleCreate(c *gin.Context) {
	var product matching.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}

	if strings.TrimSpace(product.SKU) == "" || strings.TrimSpace(product.Name) == "" {
		SendJSONError(c, http.StatusBadRequest, "Поля sku и name обязательны")
		return
	}

	created, err := h.products.Create(c.Request.Context(), product)
	if err != nil {
		SendRepoError(c, err, "не удалось создать товар")
		return
	}

	h.matcher.ClearCache()
	SendJSONResponse(c, http.StatusCreated, created)
}

// HandleUpdate обновляет товар каталога
// @Summary Обновить товар
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "ID товара"
// @Param product body matching.Product true "Товар"
// @Success 200 {object} matching.Product "Обновленный товар"
// @Failure 404 {object} ErrorResponse "Товар не найден"
// @Router /api/products/:id [put]
func (h *ProductsHandler) HandleUpdate(c *gin.Context) {
	var product matching.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		SendJSONError(c, http.StatusBadRequest, "Некорректное тело запроса: "+err.Error())
		return
	}

	product.ID = c.Param("id")
	if strings.TrimSpace(product.SKU) == "" || strings.TrimSpace(product.Name) == "" {
		SendJSONError(c, http.StatusBadRequest, "Поля sku и name обязательны")
		return
	}

	if err := h.products.Update(c.Request.Context(), product); err != nil {
		SendRepoError(c, err, "товар не найден")
		return
	}

	updated, err := h.products.GetByID(c.Request.Context(), product.ID)
	if err != nil {
		SendRepoError(c, err, "товар не найден")
		return
	}

	h.matcher.ClearCache()
	SendJSONResponse(c, http.StatusOK, updated)
}

// HandleDelete удаляет товар каталога
// @Summary Удалить товар
// @Tags products
// @Produce json
// @Param id path string true "ID товара"
// @Success 200 {object} map[string]interface{} "Статус удаления"
// @Failure 404 {object} ErrorResponse "Товар не найден"
// @Router /api/products/:id [delete]
func (h *ProductsHandler) HandleDelete(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		SendRepoError(c, err, "товар не найден")
		return
	}

	h.matcher.ClearCache()
	SendJSONResponse(c, http.StatusOK, gin.H{"status": "deleted"})
}

// HandleUpload загружает прайс-лист каталога целиком
// @Summary Загрузить прайс-лист
// @Description Принимает xlsx или csv, формат прайс-листа Jakko определяется автоматически
// @Tags products
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Файл прайс-листа"
// @Success 200 {object} map[string]interface{} "Число загруженных товаров и формат"
// @Failure 400 {object} ErrorResponse "Нечитаемый файл"
// @Router /api/products/upload [post]
func (h *ProductsHandler) HandleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "Файл не передан")
		return
	}
	if fileHeader.Size > maxCatalogFileSize {
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

	var rows []excel.CatalogRow
	format := "standard"
	if strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") && excel.IsJakkoFormat(data) {
		format = "jakko"
		rows, err = excel.ParseJakkoCatalog(data)
	} else {
		rows, err = excel.ParseCatalog(data, fileHeader.Filename)
	}
	if err != nil {
		SendJSONError(c, http.StatusBadRequest, "Не удалось разобрать прайс-лист: "+err.Error())
		return
	}

	products := make([]matching.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, matching.Product{
			SKU:      row.SKU,
			Name:     row.Name,
			Category: row.Category,
			Price:    row.Price,
			PackQty:  row.PackQty,
		})
	}

	uploaded, err := h.products.BulkUpsert(c.Request.Context(), products)
	if err != nil {
		SendRepoError(c, err, "не удалось сохранить каталог")
		return
	}

	h.matcher.ClearCache()
	log.Printf("✓ Каталог загружен из %s: %d товаров (формат %s)", fileHeader.Filename, uploaded, format)

	SendJSONResponse(c, http.StatusOK, gin.H{
		"uploaded": uploaded,
		"format":   format,
	})
}

// productHit результат поиска по каталогу
type productHit struct {
	matching.Product
	Score float64 `json:"score"`
}

// HandleSearch ищет товары по артикулу или словам названия.
// Запрос стеммируется, словоформы совпадают: "муфты переходной"
// находит "Муфта переходная". Опечатки добираются триграммами.
// @Summary Поиск по каталогу
// @Tags products
// @Produce json
// @Param q query string true "Строка поиска"
// @Param limit query int false "Максимум результатов" default(20)
// @Success 200 {object} map[string]interface{} "Найденные товары"
// @Failure 400 {object} ErrorResponse "Пустой запрос"
// @Router /api/products/search [get]
func (h *ProductsHandler) HandleSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		SendJSONError(c, http.StatusBadRequest, "Параметр q обязателен")
		return
	}

	limit := 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	products, err := h.products.ListAll(c.Request.Context())
	if err != nil {
		SendRepoError(c, err, "не удалось получить каталог")
		return
	}

	skuQuery := normalization.NormalizeSKU(query)

	hits := make([]productHit, 0)
	for _, p := range products {
		score := h.search.Similarity(query, p.Name)
		if h.search.Contains(query, p.Name) && score < 0.8 {
			score = 0.8
		}
		if skuQuery != "" && strings.Contains(normalization.NormalizeSKU(p.SKU), skuQuery) {
			score = 1.0
		}
		if score < 0.3 {
			// Опечатку внутри слова стеммер не сводит: "тройгик" не
			// найдет "тройник". Триграммы и Дамерау-Левенштейн добирают
			// такие запросы с заниженной оценкой.
			if typo := normalization.TypoSimilarity(query, p.Name); typo >= 0.7 {
				score = typo * 0.75
			}
		}
		if score < 0.3 {
			continue
		}
		hits = append(hits, productHit{Product: p, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"results": hits,
		"total":   len(hits),
	})
}
