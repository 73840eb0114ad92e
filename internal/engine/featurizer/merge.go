package featurizer

import (
	"fmt"

	"github.com/crimson-sun/densefeat/internal/model"
)

// Stack appends summary below tokens, giving an (N+1)×D matrix with the
// summary as the last row. Input rows are copied.
func Stack(tokens, summary model.Matrix) (model.Matrix, error) {
	if summary.Rows() != 1 {
		return nil, fmt.Errorf("stack: %w: summary has %d rows, want 1", ErrShapeMismatch, summary.Rows())
	}
	if tokens.Rows() > 0 && tokens.Cols() != summary.Cols() {
		return nil, fmt.Errorf("stack: %w: token width %d, summary width %d",
			ErrShapeMismatch, tokens.Cols(), summary.Cols())
	}

	out := make(model.Matrix, 0, tokens.Rows()+1)
	out = append(out, tokens.Clone()...)
	out = append(out, append([]float32(nil), summary[0]...))
	return out, nil
}

// Concat joins existing and stacked side by side: row i of the result is
// existing row i followed by stacked row i. Row counts must agree and
// existing must be rectangular.
func Concat(existing, stacked model.Matrix) (model.Matrix, error) {
	if existing.Rows() > 0 {
		if err := existing.Validate(); err != nil {
			return nil, fmt.Errorf("concat: existing features: %w", err)
		}
	}
	if existing.Rows() != stacked.Rows() {
		return nil, fmt.Errorf("concat: %w: existing features have %d rows, computed features have %d",
			ErrShapeMismatch, existing.Rows(), stacked.Rows())
	}

	out := make(model.Matrix, len(stacked))
	for i := range stacked {
		row := make([]float32, 0, len(existing[i])+len(stacked[i]))
		row = append(row, existing[i]...)
		row = append(row, stacked[i]...)
		out[i] = row
	}
	return out, nil
}

// Merge stacks tokens and summary, then concatenates the result onto
// existing when hasExisting is set.
func Merge(tokens, summary, existing model.Matrix, hasExisting bool) (model.Matrix, error) {
	stacked, err := Stack(tokens, summary)
	if err != nil {
		return nil, err
	}
	if !hasExisting {
		return stacked, nil
	}
	return Concat(existing, stacked)
}
