package chain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

var (
	escrowSeed = []byte("escrow")
	userSeed   = []byte("user")
	configSeed = []byte("config")
)

// EscrowAddress вычисляет PDA ["escrow", gig_id(16 байт)] программы. Программа
// выводит тот же адрес сама, так что клиент, сервер и сеть совпадают без обмена.
func EscrowAddress(programID solana.PublicKey, gigID uuid.UUID) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{escrowSeed, gigID[:]}, programID)
	return addr, err
}

// UserAccountAddress вычисляет PDA учётной записи пользователя в программе.
func UserAccountAddress(programID, wallet solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{userSeed, wallet.Bytes()}, programID)
	return addr, err
}

func ConfigAddress(programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{configSeed}, programID)
	return addr, err
}
