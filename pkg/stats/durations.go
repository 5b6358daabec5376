package stats

import (
	"math"
	"math/big"
	"time"
)

// Nanoseconds converts d to an arbitrary-precision nanosecond count.
func Nanoseconds(d time.Duration) *big.Int {
	return big.NewInt(int64(d))
}

// FromNanoseconds converts a nanosecond count back to a duration. Values
// outside the duration range saturate.
func FromNanoseconds(ns *big.Int) time.Duration {
	if ns.IsInt64() {
		return time.Duration(ns.Int64())
	}
	if ns.Sign() < 0 {
		return time.Duration(-1 << 63)
	}
	return time.Duration(1<<63 - 1)
}

// SumNanoseconds sums ds without overflow.
func SumNanoseconds(ds []time.Duration) *big.Int {
	sum := new(big.Int)
	for _, d := range ds {
		sum.Add(sum, Nanoseconds(d))
	}
	return sum
}

// Average returns the integer mean of ds. ok is false for an empty slice.
func Average(ds []time.Duration) (avg time.Duration, ok bool) {
	if len(ds) == 0 {
		return 0, false
	}
	sum := SumNanoseconds(ds)
	sum.Quo(sum, big.NewInt(int64(len(ds))))
	return FromNanoseconds(sum), true
}

// AverageOrZero is Average with zero for an empty slice.
func AverageOrZero(ds []time.Duration) time.Duration {
	avg, _ := Average(ds)
	return avg
}

// StandardDeviation returns the sample standard deviation of ds, truncated to
// whole nanoseconds. ok is false for fewer than two samples.
func StandardDeviation(ds []time.Duration) (sd time.Duration, ok bool) {
	if len(ds) < 2 {
		return 0, false
	}
	mean, _ := Average(ds)
	m := Nanoseconds(mean)
	sum := new(big.Int)
	diff := new(big.Int)
	for _, d := range ds {
		diff.Sub(Nanoseconds(d), m)
		sum.Add(sum, diff.Mul(diff, diff))
	}
	sum.Quo(sum, big.NewInt(int64(len(ds)-1)))
	return FromNanoseconds(sum.Sqrt(sum)), true
}

// MeanFloat returns the arithmetic mean of xs, zero for an empty slice.
func MeanFloat(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDevFloat returns the sample standard deviation of xs; ok is false for
// fewer than two values.
func StdDevFloat(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	mean := MeanFloat(xs)
	var sum float64
	for _, x := range xs {
		sum += (x - mean) * (x - mean)
	}
	return math.Sqrt(sum / float64(len(xs)-1)), true
}
