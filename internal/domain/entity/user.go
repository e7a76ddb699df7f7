package entity

import "github.com/google/uuid"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User содержит только то, что нужно для сборки транзакций. Профили ведёт другой сервис.
type User struct {
	ID            uuid.UUID `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	Role          string    `db:"role" json:"role"`
}

// Actor описывает исполнителя операции по данным токена.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
