package model

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch reports matrices whose dimensions cannot be combined, or
// a ragged matrix whose rows differ in width.
var ErrShapeMismatch = errors.New("shape mismatch")

// Matrix is a row-major sequence of equal-width vectors.
type Matrix [][]float32

// Rows returns the number of rows.
func (m Matrix) Rows() int { return len(m) }

// Cols returns the width of the first row, or 0 for an empty matrix.
func (m Matrix) Cols() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Validate checks that the matrix has at least one row and that every row
// has the same width.
func (m Matrix) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: matrix has no rows", ErrShapeMismatch)
	}
	d := len(m[0])
	for i, row := range m {
		if len(row) != d {
			return fmt.Errorf("%w: row %d has width %d, row 0 has width %d",
				ErrShapeMismatch, i, len(row), d)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float32(nil), row...)
	}
	return out
}
