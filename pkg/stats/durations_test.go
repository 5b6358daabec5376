package stats

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func TestAverage(t *testing.T) {
	tests := []struct {
		name string
		in   []time.Duration
		want time.Duration
	}{
		{name: "single", in: []time.Duration{3 * time.Second}, want: 3 * time.Second},
		{name: "multiple", in: []time.Duration{3 * time.Second, 4 * time.Second, 5 * time.Second}, want: 4 * time.Second},
		{name: "sub-second", in: []time.Duration{3*time.Second + 1000, 5*time.Second + 1000}, want: 4*time.Second + 1000},
		{name: "sum beyond int64", in: []time.Duration{100000 * day, 100000 * day, 100000 * day}, want: 100000 * day},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Average(tt.in)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := Average(nil)
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), AverageOrZero(nil))
}

func TestStandardDeviation(t *testing.T) {
	_, ok := StandardDeviation([]time.Duration{3 * time.Second})
	assert.False(t, ok)

	sd, ok := StandardDeviation([]time.Duration{3 * time.Second, 4 * time.Second, 5 * time.Second})
	require.True(t, ok)
	assert.Equal(t, time.Second, sd)
}

func TestNanosecondConversion(t *testing.T) {
	assert.Equal(t, big.NewInt(1_000_000_000), Nanoseconds(time.Second))
	assert.Equal(t, time.Second, FromNanoseconds(big.NewInt(1_000_000_000)))

	thousandDays := new(big.Int).Mul(big.NewInt(864), new(big.Int).Exp(big.NewInt(10), big.NewInt(14), nil))
	assert.Equal(t, 0, thousandDays.Cmp(Nanoseconds(1000*day)))
	assert.Equal(t, 1000*day, FromNanoseconds(thousandDays))
}

func TestFloatSummaries(t *testing.T) {
	assert.Equal(t, 0.0, MeanFloat(nil))
	assert.InDelta(t, 2.0, MeanFloat([]float64{1, 2, 3}), 1e-12)

	_, ok := StdDevFloat([]float64{1})
	assert.False(t, ok)
	sd, ok := StdDevFloat([]float64{1, 2, 3})
	require.True(t, ok)
	assert.InDelta(t, 1.0, sd, 1e-12)
}
