package featurizer

import (
	"fmt"
	"strconv"

	"github.com/crimson-sun/densefeat/internal/model"
)

// Pooling selects how per-token vectors collapse into the summary vector.
type Pooling int

const (
	Mean Pooling = iota
	Max
)

// DefaultPooling is used when no pooling operation is configured.
const DefaultPooling = Mean

// ParsePooling resolves a configured pooling name. The empty string selects
// DefaultPooling.
func ParsePooling(s string) (Pooling, error) {
	switch s {
	case "", "mean":
		return Mean, nil
	case "max":
		return Max, nil
	default:
		return 0, &InvalidPoolingError{Value: s}
	}
}

func (p Pooling) String() string {
	switch p {
	case Mean:
		return "mean"
	case Max:
		return "max"
	default:
		return "Pooling(" + strconv.Itoa(int(p)) + ")"
	}
}

// Pool reduces vectors to a single 1×D row using op. Every row takes part,
// including all-zero rows for tokens without a known embedding.
func Pool(vectors model.Matrix, op Pooling) (model.Matrix, error) {
	if op != Mean && op != Max {
		return nil, &InvalidPoolingError{Value: op.String()}
	}
	if err := vectors.Validate(); err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	dim := vectors.Cols()
	out := make([]float32, dim)

	switch op {
	case Mean:
		// Accumulate in float64 so long sequences don't drift.
		sums := make([]float64, dim)
		for _, row := range vectors {
			for d, v := range row {
				sums[d] += float64(v)
			}
		}
		n := float64(len(vectors))
		for d := range out {
			out[d] = float32(sums[d] / n)
		}
	case Max:
		copy(out, vectors[0])
		for _, row := range vectors[1:] {
			for d, v := range row {
				// NaN wins wherever it appears.
				if v > out[d] || v != v {
					out[d] = v
				}
			}
		}
	}

	return model.Matrix{out}, nil
}
