// Package linsolve solves square linear systems exactly over the rationals.
package linsolve

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrSingular is returned when a system has no unique solution.
var ErrSingular = errors.New("singular system")

// System is a dense n×n system A·x = b.
type System struct {
	n int
	a [][]*big.Rat
	b []*big.Rat
}

// NewSystem returns an all-zero system of dimension n.
func NewSystem(n int) *System {
	s := &System{n: n, a: make([][]*big.Rat, n), b: make([]*big.Rat, n)}
	for i := range s.a {
		s.a[i] = make([]*big.Rat, n)
		for j := range s.a[i] {
			s.a[i][j] = new(big.Rat)
		}
		s.b[i] = new(big.Rat)
	}
	return s
}

// Size returns the dimension.
func (s *System) Size() int { return s.n }

// Add adds v to coefficient (row, col).
func (s *System) Add(row, col int, v *big.Rat) {
	s.a[row][col].Add(s.a[row][col], v)
}

// AddConstant adds v to the right-hand side of row.
func (s *System) AddConstant(row int, v *big.Rat) {
	s.b[row].Add(s.b[row], v)
}

// Solve returns x with A·x = b using Gauss-Jordan elimination. The system is
// consumed.
func (s *System) Solve() ([]*big.Rat, error) {
	n := s.n
	tmp := new(big.Rat)
	for col := 0; col < n; col++ {
		pivot := -1
		for row := col; row < n; row++ {
			if s.a[row][col].Sign() != 0 {
				pivot = row
				break
			}
		}
		if pivot < 0 {
			return nil, fmt.Errorf("%w: no pivot in column %d", ErrSingular, col)
		}
		s.a[col], s.a[pivot] = s.a[pivot], s.a[col]
		s.b[col], s.b[pivot] = s.b[pivot], s.b[col]

		inv := new(big.Rat).Inv(s.a[col][col])
		for j := col; j < n; j++ {
			s.a[col][j].Mul(s.a[col][j], inv)
		}
		s.b[col].Mul(s.b[col], inv)

		for row := 0; row < n; row++ {
			if row == col {
				continue
			}
			factor := s.a[row][col]
			if factor.Sign() == 0 {
				continue
			}
			factor = new(big.Rat).Set(factor)
			for j := col; j < n; j++ {
				if s.a[col][j].Sign() == 0 {
					continue
				}
				s.a[row][j].Sub(s.a[row][j], tmp.Mul(factor, s.a[col][j]))
			}
			s.b[row].Sub(s.b[row], tmp.Mul(factor, s.b[col]))
		}
	}
	return s.b, nil
}
