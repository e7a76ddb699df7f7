package valueobject

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name      string
		payment   Lamports
		bps       int
		wantFee   Lamports
		wantTotal Lamports
	}{
		{"base rate", 1_000_000, 250, 25_000, 1_025_000},
		{"five sol job", 5_000_000, 250, 125_000, 5_125_000},
		{"zero fee", 1_000_000, 0, 0, 1_000_000},
		{"floor rounding", 399, 250, 9, 408},
		{"full fee", 7, BPSDenominator, 7, 14},
		{"one lamport", 1, 9999, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeFee(tt.payment, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFee, got.Fee)
			assert.Equal(t, tt.wantTotal, got.TotalLocked)
			assert.Equal(t, tt.payment, got.Payment)
		})
	}
}

func TestComputeFee_NoDriftNearMax(t *testing.T) {
	payments := []Lamports{
		math.MaxInt64 / 2,
		math.MaxInt64/2 + 12345,
		9_007_199_254_740_993, // 2^53 + 1, теряется во float64
		1 << 62,
	}
	for _, p := range payments {
		for _, bps := range []int{1, 250, 333, 5000} {
			want := new(big.Int).Mul(big.NewInt(int64(p)), big.NewInt(int64(bps)))
			want.Quo(want, big.NewInt(BPSDenominator))

			got, err := ComputeFee(p, bps)
			require.NoError(t, err)
			assert.Equalf(t, want.Int64(), int64(got.Fee), "payment=%d bps=%d", p, bps)
		}
	}
}

func TestComputeFee_Rejects(t *testing.T) {
	_, err := ComputeFee(0, 250)
	assert.Error(t, err)

	_, err = ComputeFee(-5, 250)
	assert.Error(t, err)

	_, err = ComputeFee(1000, -1)
	assert.Error(t, err)

	_, err = ComputeFee(1000, BPSDenominator+1)
	assert.Error(t, err)

	// total не влезает в int64
	_, err = ComputeFee(math.MaxInt64, 250)
	assert.Error(t, err)
}

func TestFromLocked(t *testing.T) {
	got, err := FromLocked(5_000_000, 125_000)
	require.NoError(t, err)
	assert.Equal(t, FeeBreakdown{Payment: 5_000_000, FeeBPS: 250, Fee: 125_000, TotalLocked: 5_125_000}, got)

	// комиссия не ложится ровно в bps: берётся нижняя оценка
	got, err = FromLocked(3, 1)
	require.NoError(t, err)
	assert.Equal(t, 3333, got.FeeBPS)
	assert.Equal(t, Lamports(4), got.TotalLocked)

	_, err = FromLocked(0, 0)
	assert.Error(t, err)
	_, err = FromLocked(1000, 1001)
	assert.Error(t, err)
	_, err = FromLocked(1000, -1)
	assert.Error(t, err)
	_, err = FromLocked(math.MaxInt64, 1)
	assert.Error(t, err)
}
