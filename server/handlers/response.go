package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"matchserver/database"
	"matchserver/matching"
	apperrors "matchserver/server/errors"
	"matchserver/server/middleware"
)

// ErrorResponse структура JSON ошибки для Swagger документации
type ErrorResponse struct {
	Error   bool   `json:"error" example:"true"`
	Message string `json:"message" example:"товар не найден"`
}

// SendJSONResponse отправляет JSON ответ
func SendJSONResponse(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// SendJSONError отправляет JSON ошибку и логирует её
func SendJSONError(c *gin.Context, statusCode int, message string) {
	slog.Error("http error",
		"error", message,
		"status_code", statusCode,
		"request_id", middleware.GetRequestID(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	)

	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// SendAppError отправляет AppError с его HTTP статусом
func SendAppError(c *gin.Context, err *apperrors.AppError) {
	SendJSONError(c, err.StatusCode(), err.UserMessage())
}

// SendRepoError переводит ошибки хранилища и матчера в HTTP статусы:
// отсутствующая запись в 404, недоступный каталог в 503, прочее в 500
func SendRepoError(c *gin.Context, err error, notFoundMessage string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		SendJSONError(c, http.StatusNotFound, notFoundMessage)
	case errors.Is(err, matching.ErrCatalogUnavailable):
		SendJSONError(c, http.StatusServiceUnavailable, matching.ErrCatalogUnavailable.Error())
	default:
		appErr := apperrors.WrapError(err, notFoundMessage)
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
	}
}
