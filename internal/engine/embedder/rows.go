package embedder

import "github.com/crimson-sun/densefeat/internal/model"

// tokenRows slices flat encoder output [size * seqLen * dim] into one
// matrix per sample holding a row for each word piece. The [CLS] row, the
// [SEP] row and padding are dropped. A sample without pieces gets nil.
func tokenRows(hidden []float32, b batch, dim int64) []model.Matrix {
	out := make([]model.Matrix, b.size)
	for s := int64(0); s < b.size; s++ {
		n := int64(len(b.pieces[s]))
		if n == 0 {
			continue
		}

		// Piece i sits at position i+1, after [CLS].
		base := s * b.seqLen * dim
		m := make(model.Matrix, n)
		for i := int64(0); i < n; i++ {
			off := base + (i+1)*dim
			m[i] = append([]float32(nil), hidden[off:off+dim]...)
		}
		out[s] = m
	}
	return out
}
