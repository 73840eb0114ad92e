package embedder

import (
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ortEnv guards the process-wide ONNX Runtime initialization.
var ortEnv struct {
	once sync.Once
	err  error
}

// initORT initializes the ONNX Runtime environment. Only the first call has
// any effect; later calls return its result.
func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// bertInputs are the encoder inputs, in the order they are fed.
var bertInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

// onnxSession runs a BERT-style encoder whose first output is the last
// hidden state [batch, seq, dim].
type onnxSession struct {
	session    *ort.DynamicAdvancedSession
	outputName string
	dim        int64
}

// newONNXSession loads the model at modelPath. An empty libPath resolves
// the runtime library next to the model.
func newONNXSession(modelPath, libPath string, threads int) (*onnxSession, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), "libonnxruntime.so")
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if err := checkInputs(inputs); err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 3 {
		return nil, fmt.Errorf("onnx: expected 3D hidden state output, got %v", dims)
	}
	if dims[2] <= 0 {
		return nil, fmt.Errorf("onnx: hidden size must be static, got %d", dims[2])
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if threads > 0 {
		opts.SetIntraOpNumThreads(threads)
	}
	opts.SetInterOpNumThreads(1)

	session, err := ort.NewDynamicAdvancedSession(modelPath, bertInputs, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &onnxSession{
		session:    session,
		outputName: outputs[0].Name,
		dim:        dims[2],
	}, nil
}

func checkInputs(inputs []ort.InputOutputInfo) error {
	have := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		have[in.Name] = true
	}
	for _, name := range bertInputs {
		if !have[name] {
			return fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	return nil
}

func (s *onnxSession) hiddenDim() int64 { return s.dim }

// hiddenStates runs the encoder over b and returns its output as a flat
// [size * seqLen * dim] slice owned by the caller.
func (s *onnxSession) hiddenStates(b batch) ([]float32, error) {
	shape := ort.NewShape(b.size, b.seqLen)

	var inputs []ort.Value
	defer func() {
		for _, v := range inputs {
			v.Destroy()
		}
	}()
	for i, data := range [][]int64{b.inputIDs, b.attentionMask, b.tokenTypeIDs} {
		t, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: failed to create %s tensor: %w", bertInputs[i], err)
		}
		inputs = append(inputs, t)
	}

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(b.size, b.seqLen, s.dim))
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := s.session.Run(inputs, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	// The tensor's backing memory goes away on Destroy.
	return append([]float32(nil), out.GetData()...), nil
}

func (s *onnxSession) close() error {
	return s.session.Destroy()
}
