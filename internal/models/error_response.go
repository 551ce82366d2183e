package models

import "net/http"

// ErrorResponse описывает ошибку валидации с HTTP-кодом и сообщением.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Message    string `json:"reason"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{StatusCode: statusCode, Message: message}
}

// BadRequest - ошибка некорректного запроса.
func BadRequest(message string) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, message)
}

func (e *ErrorResponse) Error() string {
	return e.Message
}
