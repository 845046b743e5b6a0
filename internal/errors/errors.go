// errors стандартизирует ответы HTTP-слоя справочника пользователей.
// Каждый ответ — конверт с продублированным кодом статуса:
//
//	{"status_code": 200, "data": ...}
//	{"status_code": 404, "error": "user not found", "request_id": "..."}
//
// На вход WriteError принимает ошибку сервисного слоя, а на выход даёт:
//   - корректный HTTP-статус;
//   - безопасное message без утечки деталей хранилища.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/users-directory/internal/service"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// HeaderRequestID — заголовок с идентификатором запроса.
const HeaderRequestID = "X-Request-Id"

// DataResponse — успешный ответ.
type DataResponse struct {
	StatusCode int `json:"status_code"`
	Data       any `json:"data"`
}

// ErrorResponse — ответ с ошибкой.
// RequestID прокидывается из X-Request-Id, если есть (для трассировки).
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	RequestID  string `json:"request_id,omitempty"`
}

// ToHTTP конвертирует ошибку сервиса в HTTP-статус и тело ответа.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500, чтобы не маскировать баг;
//   - дедлайн/отмена контекста -> 504/499 (проверяются раньше вида ошибки);
//   - InvalidArgument -> 400, AlreadyExists -> 400, NotFound -> 404;
//   - прочее -> 500 "internal error".
//
// Сообщение берётся из *service.Error клиентского вида (не ErrInternal),
// иначе — базовое для вида ошибки.
func ToHTTP(err error) (int, ErrorResponse) {
	status, msg := baseFromError(err)

	if status < http.StatusInternalServerError && !stderrors.Is(err, service.ErrInternal) {
		var svcErr *service.Error
		if stderrors.As(err, &svcErr) && svcErr.Message != "" {
			msg = svcErr.Message
		}
	}

	return status, ErrorResponse{StatusCode: status, Error: msg}
}

// baseFromError — базовый маппинг вида ошибки -> HTTP-статус/сообщение.
func baseFromError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal error"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline exceeded"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled"
	case stderrors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid argument"
	case stderrors.Is(err, service.ErrAlreadyExists):
		return http.StatusBadRequest, "already exists"
	case stderrors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)
	writeErrorResponse(w, r, status, resp)
}

// WriteMessage пишет ошибку с явным статусом (404/405 роутера и т.п.).
func WriteMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeErrorResponse(w, r, status, ErrorResponse{StatusCode: status, Error: msg})
}

// WriteJSON пишет успешный ответ в конверте {"status_code", "data"}.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataResponse{StatusCode: status, Data: data})
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, resp ErrorResponse) {
	if rid := r.Header.Get(HeaderRequestID); rid != "" {
		resp.RequestID = rid
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
