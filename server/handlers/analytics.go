package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"matchserver/database"
	"matchserver/embeddings"
	"matchserver/matching"
)

// AnalyticsHandler обработчик статистики и служебных операций
type AnalyticsHandler struct {
	matcher  *matching.Service
	products *database.ProductsRepo
	index    *embeddings.Index
	cfg      matching.Config
}

// NewAnalyticsHandler создает обработчик статистики
func NewAnalyticsHandler(matcher *matching.Service, products *database.ProductsRepo, index *embeddings.Index, cfg matching.Config) *AnalyticsHandler {
	return &AnalyticsHandler{
		matcher:  matcher,
		products: products,
		index:    index,
		cfg:      cfg,
	}
}

// HandleStats возвращает накопленную статистику сопоставления
// @Summary Статистика сопоставления
// @Description Счетчики с момента старта сервиса: всего запросов, разбивка по типам совпадений, средняя уверенность, доля найденных
// @Tags analytics
// @Produce json
// @Success 200 {object} matching.StatsSnapshot "Статистика"
// @Router /api/analytics/matching/stats [get]
func (h *AnalyticsHandler) HandleStats(c *gin.Context) {
	SendJSONResponse(c, http.StatusOK, h.matcher.GetStats())
}

// HandleResetStats обнуляет статистику сопоставления
// @Summary Сбросить статистику
// @Tags analytics
// @Produce json
// @Success 200 {object} map[string]interface{} "Статус сброса"
// @Router /api/analytics/matching/stats/reset [post]
func (h *AnalyticsHandler) HandleResetStats(c *gin.Context) {
	h.matcher.ResetStats()
	SendJSONResponse(c, http.StatusOK, gin.H{"status": "ok"})
}

// matchLevel описание ступени каскада сопоставления
type matchLevel struct {
	Level       int     `json:"level"`
	MatchType   string  `json:"match_type"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
}

// HandleLevels возвращает описание каскада сопоставления
// @Summary Уровни сопоставления
// @Description Ступени каскада в порядке применения с базовой уверенностью каждой
// @Tags analytics
// @Produce json
// @Success 200 {object} map[string]interface{} "Уровни каскада"
// @Router /api/analytics/matching/levels [get]
func (h *AnalyticsHandler) HandleLevels(c *gin.Context) {
	levels := []matchLevel{
		{
			Level:       1,
			MatchType:   matching.MatchExactSku,
			Name:        "Точный артикул",
			Confidence:  h.cfg.ConfidenceExactSku,
			Description: "Нормализованный артикул клиента совпал с артикулом каталога",
		},
		{
			Level:       2,
			MatchType:   matching.MatchExactName,
			Name:        "Точное название",
			Confidence:  h.cfg.ConfidenceExactName,
			Description: "Нормализованное название совпало с названием каталога",
		},
		{
			Level:       3,
			MatchType:   matching.MatchCachedMapping,
			Name:        "Выученный маппинг",
			Confidence:  0,
			Description: "Артикул найден среди подтвержденных маппингов клиента, уверенность берется из маппинга",
		},
		{
			Level:       4,
			MatchType:   matching.MatchFuzzySku,
			Name:        "Нечеткий артикул",
			Confidence:  h.cfg.ConfidenceFuzzySku,
			Description: "Артикул совпал с точностью до схожести строк выше порога",
		},
		{
			Level:       5,
			MatchType:   matching.MatchFuzzyName,
			Name:        "Гибридный поиск по названию",
			Confidence:  h.cfg.ConfidenceFuzzyName,
			Description: "Схожесть названий с учетом атрибутов, размеры и тип изделия обязаны совпадать",
		},
		{
			Level:       6,
			MatchType:   matching.MatchLLM,
			Name:        "LLM-подбор",
			Confidence:  h.cfg.ConfidenceML,
			Description: "Языковая модель выбирает товар из кандидатов семантического индекса",
		},
	}

	SendJSONResponse(c, http.StatusOK, gin.H{
		"levels": levels,
		"total":  len(levels),
	})
}

// HandleClearCache сбрасывает кэши сопоставления и перестраивает
// семантический индекс по текущему каталогу.
// @Summary Очистить кэши
// @Tags analytics
// @Produce json
// @Success 200 {object} map[string]interface{} "Статус очистки"
// @Failure 500 {object} ErrorResponse "Не удалось перестроить индекс"
// @Router /api/cache/clear [post]
func (h *AnalyticsHandler) HandleClearCache(c *gin.Context) {
	h.matcher.ClearCache()

	indexed := 0
	if h.index != nil {
		products, err := h.products.ListAll(c.Request.Context())
		if err != nil {
			SendRepoError(c, err, "не удалось получить каталог")
			return
		}
		if err := h.index.Build(c.Request.Context(), products); err != nil {
			SendJSONError(c, http.StatusInternalServerError, "Не удалось перестроить семантический индекс: "+err.Error())
			return
		}
		indexed = h.index.Len()
	}

	log.Printf("✓ Кэши сброшены, семантический индекс: %d товаров", indexed)

	SendJSONResponse(c, http.StatusOK, gin.H{
		"status":  "ok",
		"indexed": indexed,
	})
}
