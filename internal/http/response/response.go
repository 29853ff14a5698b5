// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков. Пакет упрощает возврат
// успешных ответов, ошибок и сообщений валидации в едином формате.
package response

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/fonoapp/internal/models"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status: статус запроса ("OK" или "Error").
// Поле Error: текст ошибки (опционально, при неуспехе).
// Поле Data: данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse: структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK: значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError: значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s characters", err.Field(), err.Param()))
		case "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must contain at least %s items", err.Field(), err.Param()))
		case "uuid":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// Validate проверяет структуру и при ошибке сам пишет ответ 422.
// Возвращает false, если обработку запроса нужно прекратить.
func Validate(w http.ResponseWriter, r *http.Request, v *validator.Validate, req any) bool {
	err := v.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	w.WriteHeader(http.StatusUnprocessableEntity)
	if errors.As(err, &verrs) {
		render.JSON(w, r, ValidationError(verrs))
		return false
	}
	render.JSON(w, r, Error("invalid request"))
	return false
}

// StatusFor сопоставляет ошибку сервиса с HTTP‑статусом и сообщением для клиента.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrDownloadLimitReached):
		return http.StatusForbidden, "download limit reached"
	case errors.Is(err, models.ErrUnknownConsentType):
		return http.StatusBadRequest, "unknown consent type"
	case errors.Is(err, models.ErrConsentRequired):
		return http.StatusBadRequest, "consent is required and cannot be withdrawn"
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest, "unsupported export format"
	case errors.Is(err, models.ErrNoSubscription):
		return http.StatusNotFound, "no active subscription"
	case errors.Is(err, models.ErrAlreadySubscribed):
		return http.StatusConflict, "subscription already active"
	case errors.Is(err, models.ErrInvalidSignature):
		return http.StatusUnauthorized, "invalid signature"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// ServiceError пишет ответ с ошибкой сервиса.
func ServiceError(w http.ResponseWriter, r *http.Request, err error) int {
	status, msg := StatusFor(err)
	w.WriteHeader(status)
	render.JSON(w, r, Error(msg))
	return status
}
