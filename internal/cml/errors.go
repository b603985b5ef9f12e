package cml

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound — запрошенный ресурс отсутствует в workspace.
var ErrNotFound = errors.New("not found")

// APIError — ошибка, возвращённая CML API.
type APIError struct {
	// StatusCode — HTTP-статус ответа.
	StatusCode int

	// Message — сообщение из тела ошибки (или пустое, если тело
	// не удалось разобрать).
	Message string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("CML API: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("CML API: HTTP %d", e.StatusCode)
}

// Unwrap отображает 404 на ErrNotFound для errors.Is.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// retryable возвращает true для ошибок, которые имеет смысл повторить:
// 429 и 5xx. Ошибки клиента (4xx) повторять бессмысленно.
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
