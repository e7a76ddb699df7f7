package api

import (
	"errors"
	"fmt"
)

// Коды ошибок сервера.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeDuplicateSignature = "DUPLICATE_SIGNATURE"
	CodeChainUnconfirmed   = "CHAIN_UNCONFIRMED"
	CodeChainFailed        = "CHAIN_FAILED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeDatabase           = "DATABASE_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
)

var (
	ErrValidation         = errors.New("api: некорректный запрос")
	ErrUnauthorized       = errors.New("api: требуется авторизация")
	ErrForbidden          = errors.New("api: недостаточно прав")
	ErrNotFound           = errors.New("api: не найдено")
	ErrConflict           = errors.New("api: операция недоступна в текущем статусе")
	ErrDuplicateSignature = errors.New("api: подпись уже учтена")
	ErrChainUnconfirmed   = errors.New("api: транзакция ещё не подтверждена")
	ErrChainFailed        = errors.New("api: транзакция завершилась ошибкой")
	ErrServer             = errors.New("api: ошибка сервера")
)

var sentinels = map[string]error{
	CodeValidation:         ErrValidation,
	CodeUnauthorized:       ErrUnauthorized,
	CodeForbidden:          ErrForbidden,
	CodeNotFound:           ErrNotFound,
	CodeConflict:           ErrConflict,
	CodeDuplicateSignature: ErrDuplicateSignature,
	CodeChainUnconfirmed:   ErrChainUnconfirmed,
	CodeChainFailed:        ErrChainFailed,
	CodeInternal:           ErrServer,
	CodeDatabase:           ErrServer,
}

// Error описывает ответ сервера с кодом ошибки. errors.Is сопоставляет его с сентинелами по коду.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Retryable  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("api: %d %s: %s", e.HTTPStatus, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return sentinels[e.Code]
}

// IsDuplicate сообщает, что подпись уже записана на сервере, повторять нечего.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateSignature)
}
