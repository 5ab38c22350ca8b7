package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисов; маппинг в HTTP-статусы живёт в handler
var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrAppNotFound          = errors.New("unknown app_id")
	ErrInstallNotFound      = errors.New("install_id not found")
	ErrKeyNotFound          = errors.New("ingestion key not found")
	ErrAppWorkspaceMismatch = errors.New("app does not belong to the caller's workspace")
	ErrUnknownProvider      = errors.New("provider must be meta or tiktok")
)

// ValidationError отсутствующее или некорректное поле запроса
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RowError ошибка строки пакетного импорта расходов; Row с единицы
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
