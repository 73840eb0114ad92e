package densefeat

import (
	"os"
	"path/filepath"
)

type options struct {
	modelDir       string
	modelPath      string
	vocabPath      string
	projectionPath string
	runtimeLib     string
	pooling        string
	threads        int
	batchSize      int
}

// Option configures a Featurizer.
type Option func(*options)

// WithModelDir sets the directory containing model files.
// Expects: model_quantized.onnx, vocab.txt, and optionally
// 2_Dense/model.safetensors.
func WithModelDir(dir string) Option {
	return func(o *options) {
		o.modelDir = dir
	}
}

// WithModelPaths sets explicit paths for each model file. projection may be
// empty.
func WithModelPaths(model, vocab, projection string) Option {
	return func(o *options) {
		o.modelPath = model
		o.vocabPath = vocab
		o.projectionPath = projection
	}
}

// WithPooling sets the summary row operation: "mean" (default) or "max".
func WithPooling(op string) Option {
	return func(o *options) {
		o.pooling = op
	}
}

// WithRuntimeLibrary sets the ONNX Runtime shared library path.
func WithRuntimeLibrary(path string) Option {
	return func(o *options) {
		o.runtimeLib = path
	}
}

// WithThreads sets the encoder's intra-op thread count. Default: 4.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithBatchSize caps how many texts go into one encoder call. Default: 32.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

func defaultOptions() options {
	return options{
		pooling:   "mean",
		threads:   4,
		batchSize: 32,
	}
}

// resolvePaths determines the model, vocab, and projection file paths
// from the configured options. Explicit paths take precedence over modelDir.
// The projection under modelDir is used only if it exists.
func resolvePaths(o options) (model, vocab, projection string) {
	if o.modelPath != "" {
		return o.modelPath, o.vocabPath, o.projectionPath
	}
	dir := o.modelDir
	if dir == "" {
		dir = "models"
	}
	projection = filepath.Join(dir, "2_Dense", "model.safetensors")
	if _, err := os.Stat(projection); err != nil {
		projection = ""
	}
	return filepath.Join(dir, "model_quantized.onnx"), filepath.Join(dir, "vocab.txt"), projection
}
