package embedder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/crimson-sun/densefeat/internal/model"
)

const projectionTensor = "linear.weight"

// projection is a bias-free dense layer applied to every token row,
// mapping inDim to outDim.
type projection struct {
	weights []float32 // row-major [outDim, inDim]
	inDim   int
	outDim  int
}

type tensorMeta struct {
	Dtype       string `json:"dtype"`
	Shape       []int  `json:"shape"`
	DataOffsets [2]int `json:"data_offsets"`
}

// loadProjection reads the F32 "linear.weight" tensor from a safetensors
// file: an 8-byte little-endian header length, a JSON header, then data.
func loadProjection(path string) (*projection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("projection: %w", err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("projection: file too small: %d bytes", len(data))
	}

	headerLen := binary.LittleEndian.Uint64(data[:8])
	if headerLen > uint64(len(data)-8) {
		return nil, fmt.Errorf("projection: header length %d exceeds file size", headerLen)
	}
	body := data[8+headerLen:]

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:8+headerLen], &header); err != nil {
		return nil, fmt.Errorf("projection: failed to parse header: %w", err)
	}
	raw, ok := header[projectionTensor]
	if !ok {
		return nil, fmt.Errorf("projection: tensor %q not found in header", projectionTensor)
	}
	var meta tensorMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("projection: failed to parse tensor metadata: %w", err)
	}
	if meta.Dtype != "F32" {
		return nil, fmt.Errorf("projection: expected dtype F32, got %s", meta.Dtype)
	}
	if len(meta.Shape) != 2 || meta.Shape[0] <= 0 || meta.Shape[1] <= 0 {
		return nil, fmt.Errorf("projection: expected 2D tensor, got shape %v", meta.Shape)
	}

	outDim, inDim := meta.Shape[0], meta.Shape[1]
	start, end := meta.DataOffsets[0], meta.DataOffsets[1]
	if start < 0 || end > len(body) || end-start != outDim*inDim*4 {
		return nil, fmt.Errorf("projection: data range [%d:%d] does not hold shape %v", start, end, meta.Shape)
	}

	weights := make([]float32, outDim*inDim)
	for i := range weights {
		weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[start+4*i:]))
	}
	return &projection{weights: weights, inDim: inDim, outDim: outDim}, nil
}

// apply projects a single inDim vector.
func (p *projection) apply(vec []float32) []float32 {
	out := make([]float32, p.outDim)
	for i := range out {
		row := p.weights[i*p.inDim : (i+1)*p.inDim]
		var sum float32
		for j, w := range row {
			sum += w * vec[j]
		}
		out[i] = sum
	}
	return out
}

// applyRows projects every row of m.
func (p *projection) applyRows(m model.Matrix) model.Matrix {
	out := make(model.Matrix, len(m))
	for i, row := range m {
		out[i] = p.apply(row)
	}
	return out
}
