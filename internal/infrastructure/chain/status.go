package chain

import (
	"github.com/gagliardetto/solana-go/rpc"
)

// SignatureStatus описывает статус подписи после нормализации ответа RPC.
type SignatureStatus string

const (
	StatusConfirmed SignatureStatus = "confirmed"
	StatusFinalized SignatureStatus = "finalized"
	StatusFailed    SignatureStatus = "failed"
	StatusNotFound  SignatureStatus = "not_found"
)

// Depth задаёт требуемую глубину подтверждения.
type Depth int

const (
	DepthConfirmed Depth = iota
	DepthFinalized
)

func DepthForNetwork(productionTier bool) Depth {
	if productionTier {
		return DepthFinalized
	}
	return DepthConfirmed
}

func (d Depth) String() string {
	if d == DepthFinalized {
		return "finalized"
	}
	return "confirmed"
}

// Satisfies сообщает, достаточна ли глубина: finalized удовлетворяет любой глубине, confirmed только DepthConfirmed.
func (s SignatureStatus) Satisfies(d Depth) bool {
	switch s {
	case StatusFinalized:
		return true
	case StatusConfirmed:
		return d == DepthConfirmed
	}
	return false
}

// IsSettled сообщает, что статус больше не изменится в худшую сторону.
func (s SignatureStatus) IsSettled() bool {
	return s == StatusFinalized || s == StatusFailed
}

// mapStatus сводит ответ getSignatureStatuses к четырём значениям.
// processed считается неподтверждённым: такой блок ещё может откатиться.
func mapStatus(res *rpc.SignatureStatusesResult) SignatureStatus {
	if res == nil {
		return StatusNotFound
	}
	if res.Err != nil {
		return StatusFailed
	}
	switch res.ConfirmationStatus {
	case rpc.ConfirmationStatusFinalized:
		return StatusFinalized
	case rpc.ConfirmationStatusConfirmed:
		return StatusConfirmed
	}
	return StatusNotFound
}
