package valueobject

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ignatzorin/gig-escrow-backend/internal/pkg/apperror"
)

// Lamports хранит сумму в минимальных единицах сети.
type Lamports int64

const (
	// BPSDenominator равен 100% в базисных пунктах.
	BPSDenominator = 10000
	MaxFeeBPS      = BPSDenominator
)

// FeeBreakdown раскладывает сумму, которую блокирует escrow.
type FeeBreakdown struct {
	Payment     Lamports `json:"payment"`
	FeeBPS      int      `json:"fee_bps"`
	Fee         Lamports `json:"fee"`
	TotalLocked Lamports `json:"total_locked"`
}

func NewLamports(amount int64) (Lamports, error) {
	if amount <= 0 {
		return 0, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	return Lamports(amount), nil
}

// ComputeFee считает floor(payment * feeBPS / 10000) в 128-битной целочисленной арифметике.
// Результат обязан совпадать с расчётом программы в сети.
func ComputeFee(payment Lamports, feeBPS int) (FeeBreakdown, error) {
	if payment <= 0 {
		return FeeBreakdown{}, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	if feeBPS < 0 || feeBPS > MaxFeeBPS {
		return FeeBreakdown{}, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("комиссия должна быть в диапазоне 0..%d bps", MaxFeeBPS))
	}

	hi, lo := bits.Mul64(uint64(payment), uint64(feeBPS))
	fee, _ := bits.Div64(hi, lo, BPSDenominator)

	if fee > math.MaxInt64-uint64(payment) {
		return FeeBreakdown{}, apperror.New(apperror.ErrCodeValidation, "сумма с комиссией выходит за допустимый диапазон")
	}

	return FeeBreakdown{
		Payment:     payment,
		FeeBPS:      feeBPS,
		Fee:         Lamports(fee),
		TotalLocked: payment + Lamports(fee),
	}, nil
}

// FromLocked восстанавливает раскладку по суммам, которые реально заблокированы
// в сети. FeeBPS здесь нижняя оценка: floor(fee * 10000 / payment).
func FromLocked(payment, fee Lamports) (FeeBreakdown, error) {
	if payment <= 0 || fee < 0 || fee > payment {
		return FeeBreakdown{}, apperror.New(apperror.ErrCodeValidation, "некорректные суммы блокировки")
	}
	if fee > math.MaxInt64-payment {
		return FeeBreakdown{}, apperror.New(apperror.ErrCodeValidation, "сумма с комиссией выходит за допустимый диапазон")
	}

	hi, lo := bits.Mul64(uint64(fee), BPSDenominator)
	bps, _ := bits.Div64(hi, lo, uint64(payment))

	return FeeBreakdown{
		Payment:     payment,
		FeeBPS:      int(bps),
		Fee:         fee,
		TotalLocked: payment + fee,
	}, nil
}
