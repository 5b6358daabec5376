package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHoeffdingSignificance(t *testing.T) {
	sqrt5 := math.Sqrt(5)
	tests := []struct {
		name           string
		f1, n1, f2, n2 int
		want           float64
	}{
		{name: "small supports", f1: 10, n1: 40, f2: 30, n2: 50, want: math.Exp(-49 / math.Pow(2+sqrt5, 2))},
		{name: "small supports swapped frequencies", f1: 30, n1: 40, f2: 10, n2: 50, want: math.Exp(-121 / math.Pow(2+sqrt5, 2))},
		{name: "large supports", f1: 10, n1: 400, f2: 30, n2: 500, want: math.Exp(49.0 / 10 * (4*sqrt5 - 9))},
		{name: "large supports swapped totals", f1: 10, n1: 500, f2: 30, n2: 400, want: math.Exp(121.0 / 10 * (4*sqrt5 - 9))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HoeffdingSignificance(tt.f1, tt.n1, tt.f2, tt.n2)
			assert.InEpsilon(t, tt.want, got, 0.001)
			assert.InEpsilon(t, tt.want, HoeffdingSimilarity(tt.f1, tt.n1, tt.f2, tt.n2), 0.001)
			assert.True(t, HoeffdingTest(tt.f1, tt.n1, tt.f2, tt.n2, tt.want*0.99))
			assert.False(t, HoeffdingTest(tt.f1, tt.n1, tt.f2, tt.n2, tt.want*1.01))
		})
	}
}

func TestHoeffding_missingEvidence(t *testing.T) {
	assert.True(t, HoeffdingTest(0, 0, 3, 5, 1))
	assert.True(t, HoeffdingTest(3, 5, 0, 0, 1))
	assert.Equal(t, 1.0, HoeffdingSimilarity(0, 0, 0, 0))
	assert.Equal(t, 0.0, HoeffdingSimilarity(0, 0, 1, 1))
	assert.Equal(t, 0.0, HoeffdingSimilarity(1, 1, 0, 0))
}

func TestHoeffdingSignificance_panicsOnInvalidArguments(t *testing.T) {
	assert.Panics(t, func() { HoeffdingSignificance(1, 0, 1, 1) })
	assert.Panics(t, func() { HoeffdingSignificance(2, 1, 1, 1) })
}

func TestFTest(t *testing.T) {
	tests := []struct {
		name                 string
		redAvg, redSupport   int
		blueAvg, blueSupport int
		want                 float64
	}{
		{name: "red slower, large red support", redAvg: 5, redSupport: 100, blueAvg: 1, blueSupport: 10, want: 109.0 / 9_800.0},
		{name: "red slower, large blue support", redAvg: 5, redSupport: 10, blueAvg: 1, blueSupport: 100, want: 2_180.0 / 305_809.0},
		{name: "red faster, large red support", redAvg: 1, redSupport: 100, blueAvg: 4, blueSupport: 10, want: 218.0 / 961.0},
		{name: "red faster, large blue support", redAvg: 1, redSupport: 10, blueAvg: 4, blueSupport: 100, want: 872_000.0 / 4_439_449.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio := float64(tt.redAvg) / float64(tt.blueAvg)
			assert.InEpsilon(t, tt.want, FTestRatioSignificance(ratio, tt.redSupport, tt.blueSupport), 0.001)

			red := time.Duration(tt.redAvg) * time.Second
			blue := time.Duration(tt.blueAvg) * time.Second
			assert.InEpsilon(t, tt.want, FTestSimilarity(red, tt.redSupport, blue, tt.blueSupport), 0.001)
			assert.False(t, FTest(red, tt.redSupport, blue, tt.blueSupport, tt.want*1.01))
			assert.True(t, FTest(red, tt.redSupport, blue, tt.blueSupport, tt.want*0.99))
		})
	}
}

func TestFTestSimilarity_insufficientEvidence(t *testing.T) {
	ten := 10 * time.Second
	assert.Equal(t, 1.0, FTestSimilarity(ten, 0, ten, 10))
	assert.Equal(t, 1.0, FTestSimilarity(ten, 10, ten, 0))
	assert.Equal(t, 1.0, FTestSimilarity(ten, 0, ten, 0))
	assert.Equal(t, 1.0, FTestSimilarity(0, 10, 0, 10))
}

func TestFTest_trivialThreshold(t *testing.T) {
	assert.True(t, FTest(time.Hour, 1, time.Second, 100, 1))
	assert.True(t, FTest(time.Hour, 100, time.Second, 2, 1))
	assert.False(t, FTest(time.Hour, 100, time.Second, 100, 0.5))
}

func TestFTestSignificance_zeroMeans(t *testing.T) {
	assert.True(t, math.IsInf(FTestSignificance(0, 10, 0, 10), 1))
	assert.True(t, FTest(0, 10, 0, 10, 1))
	assert.Equal(t, 0.0, FTestSignificance(time.Second, 10, 0, 10))
}
