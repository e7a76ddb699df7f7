package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest         ErrorCode = "BAD_REQUEST"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeDuplicateSignature ErrorCode = "DUPLICATE_SIGNATURE"
	ErrCodeChainUnconfirmed   ErrorCode = "CHAIN_UNCONFIRMED"
	ErrCodeChainFailed        ErrorCode = "CHAIN_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError      ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с сентинелами ниже.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// Retryable сообщает, что исход операции неизвестен и разрешится сам:
// транзакция ещё не подтверждена или запрос упал на нашей стороне.
// Всё остальное означает «точно не выполнено».
func (e *AppError) Retryable() bool {
	switch e.Code {
	case ErrCodeChainUnconfirmed, ErrCodeInternal, ErrCodeDatabaseError:
		return true
	}
	return false
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeDuplicateSignature:
		return http.StatusConflict
	case ErrCodeChainUnconfirmed:
		return http.StatusTooEarly
	case ErrCodeChainFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для чужих ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsConflict(err error) bool {
	return CodeOf(err) == ErrCodeConflict
}

func IsDuplicateSignature(err error) bool {
	return CodeOf(err) == ErrCodeDuplicateSignature
}

var (
	ErrGigNotFound        = New(ErrCodeNotFound, "задание не найдено")
	ErrUserNotFound       = New(ErrCodeNotFound, "пользователь не найден")
	ErrDisputeNotFound    = New(ErrCodeNotFound, "спор не найден")
	ErrUnauthorized       = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden          = New(ErrCodeForbidden, "недостаточно прав")
	ErrDuplicateSignature = New(ErrCodeDuplicateSignature, "транзакция с этой подписью уже учтена")
	ErrDisputeExists      = New(ErrCodeConflict, "спор по заданию уже открыт")
	ErrChainUnconfirmed   = New(ErrCodeChainUnconfirmed, "транзакция ещё не подтверждена сетью")
	ErrChainFailed        = New(ErrCodeChainFailed, "транзакция завершилась ошибкой в сети")
)

// StateConflict описывает несовпадение текущего статуса с предусловием операции.
func StateConflict(op, current string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("операция %s недоступна в статусе %s", op, current))
}
