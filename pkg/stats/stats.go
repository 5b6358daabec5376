// Package stats implements the statistical tests used to decide whether two
// states of a timed automaton are indistinguishable: a Hoeffding bound on
// transition frequencies and an F-test on mean sojourn times.
package stats

import (
	"fmt"
	"math"
	"time"
)

// Minimal supports for the F-test. Below these the test has too few degrees
// of freedom and reports compatibility.
const (
	MinRedSupport  = 2
	MinBlueSupport = 3
)

// HoeffdingSignificance returns the significance with which f1 of n1 and f2 of
// n2 observations can stem from the same distribution. Both totals must be
// positive and bound their frequencies.
func HoeffdingSignificance(f1, n1, f2, n2 int) float64 {
	if n1 <= 0 || n2 <= 0 || f1 > n1 || f2 > n2 || f1 < 0 || f2 < 0 {
		panic(fmt.Sprintf("stats: invalid hoeffding arguments f1=%d n1=%d f2=%d n2=%d", f1, n1, f2, n2))
	}
	fn1, fn2 := float64(n1), float64(n2)
	diff := math.Abs(float64(f1)/fn1 - float64(f2)/fn2)
	weight := math.Sqrt(1/fn1) + math.Sqrt(1/fn2)
	return math.Exp(-2 * math.Pow(diff/weight, 2))
}

// HoeffdingTest reports whether the two frequencies are compatible at
// significance epsilon. Missing evidence on either side is never a
// contradiction.
func HoeffdingTest(f1, n1, f2, n2 int, epsilon float64) bool {
	if n1 == 0 || n2 == 0 {
		return true
	}
	return HoeffdingSignificance(f1, n1, f2, n2) > epsilon
}

// HoeffdingSimilarity maps the Hoeffding significance to [0, 1], treating two
// empty observations as identical and one empty observation as disjoint.
func HoeffdingSimilarity(f1, n1, f2, n2 int) float64 {
	switch {
	case n1 == 0 && n2 == 0:
		return 1
	case n1 == 0 || n2 == 0:
		return 0
	default:
		return HoeffdingSignificance(f1, n1, f2, n2)
	}
}

// FTestRatioSignificance returns the F-test significance for the ratio of the
// red and blue mean sojourn times given their supports. Requires
// redSupport >= MinRedSupport and blueSupport >= MinBlueSupport.
func FTestRatioSignificance(ratio float64, redSupport, blueSupport int) float64 {
	if ratio < 0 || redSupport < MinRedSupport || blueSupport < MinBlueSupport {
		panic(fmt.Sprintf("stats: invalid f-test arguments ratio=%g nr=%d nb=%d", ratio, redSupport, blueSupport))
	}
	nr, nb := float64(redSupport), float64(blueSupport)
	mu := math.Pow(nb/(nb-1)-ratio, 2)
	rho := (nb * nb * (nr + nb - 1)) / (nr * math.Pow(nb-1, 2) * (nb - 2))
	return rho / mu
}

// FTestSignificance is FTestRatioSignificance over two mean durations. Two
// zero means are indistinguishable.
func FTestSignificance(redAvg time.Duration, redSupport int, blueAvg time.Duration, blueSupport int) float64 {
	if redAvg == 0 && blueAvg == 0 {
		return math.Inf(1)
	}
	return FTestRatioSignificance(float64(redAvg)/float64(blueAvg), redSupport, blueSupport)
}

// FTest reports whether two mean sojourn times are compatible at significance
// epsilon.
func FTest(redAvg time.Duration, redSupport int, blueAvg time.Duration, blueSupport int, epsilon float64) bool {
	if !enoughSupport(redSupport, blueSupport) {
		return true
	}
	return FTestSignificance(redAvg, redSupport, blueAvg, blueSupport) >= epsilon
}

// FTestSimilarity maps the F-test significance to [0, 1].
func FTestSimilarity(redAvg time.Duration, redSupport int, blueAvg time.Duration, blueSupport int) float64 {
	if !enoughSupport(redSupport, blueSupport) || (redAvg == 0 && blueAvg == 0) {
		return 1
	}
	return math.Min(FTestSignificance(redAvg, redSupport, blueAvg, blueSupport), 1)
}

func enoughSupport(red, blue int) bool {
	return red >= MinRedSupport && blue >= MinBlueSupport
}

// InUnitInterval reports whether v lies in [0, 1].
func InUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
