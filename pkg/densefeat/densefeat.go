package densefeat

import (
	"fmt"

	"github.com/crimson-sun/densefeat/internal/engine"
	"github.com/crimson-sun/densefeat/internal/engine/embedder"
	"github.com/crimson-sun/densefeat/internal/engine/featurizer"
	"github.com/crimson-sun/densefeat/internal/model"
)

var (
	// ErrShapeMismatch reports matrices whose dimensions cannot be combined.
	ErrShapeMismatch = featurizer.ErrShapeMismatch

	// ErrInvalidConfiguration reports an unknown pooling operation.
	ErrInvalidConfiguration = featurizer.ErrInvalidConfiguration
)

// Featurizer runs the vectorizer and the pooled dense featurizer.
// Safe for concurrent use.
type Featurizer struct {
	engine     *engine.Engine
	vectorizer *embedder.Vectorizer
	pooling    string
}

// New creates a Featurizer, loading model files. The pooling operation is
// checked before any model file is touched. This is an expensive operation;
// create once, reuse across requests.
func New(opts ...Option) (*Featurizer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	feat, err := featurizer.New(o.pooling)
	if err != nil {
		return nil, fmt.Errorf("densefeat: %w", err)
	}

	modelPath, vocabPath, projPath := resolvePaths(o)
	vecOpts := []embedder.Option{
		embedder.WithThreads(o.threads),
		embedder.WithBatchSize(o.batchSize),
	}
	if projPath != "" {
		vecOpts = append(vecOpts, embedder.WithProjection(projPath))
	}
	if o.runtimeLib != "" {
		vecOpts = append(vecOpts, embedder.WithRuntimeLibrary(o.runtimeLib))
	}

	vec, err := embedder.New(modelPath, vocabPath, vecOpts...)
	if err != nil {
		return nil, fmt.Errorf("densefeat: %w", err)
	}

	eng, err := engine.New(vec, feat)
	if err != nil {
		vec.Close()
		return nil, fmt.Errorf("densefeat: %w", err)
	}
	return &Featurizer{engine: eng, vectorizer: vec, pooling: feat.Pooling().String()}, nil
}

// Pooling returns the configured pooling operation name.
func (f *Featurizer) Pooling() string { return f.pooling }

// Dim returns the width of the produced token vectors.
func (f *Featurizer) Dim() int { return f.vectorizer.Dim() }

// Featurize featurizes a single text.
func (f *Featurizer) Featurize(text string) (Result, error) {
	return f.FeaturizeInput(Input{Text: text})
}

// FeaturizeInput featurizes a message with optional response, intent, and
// upstream dense features.
func (f *Featurizer) FeaturizeInput(in Input) (Result, error) {
	msg := toMessage(in)
	err := f.engine.Process(msg)
	return fromMessage(msg), err
}

// FeaturizeBatch featurizes inputs with batched encoder calls. More
// efficient than calling FeaturizeInput in a loop. Results are always
// returned in input order; a failure on one input leaves the others intact
// and is reported in the joined error.
func (f *Featurizer) FeaturizeBatch(inputs []Input) ([]Result, error) {
	msgs := make([]*model.Message, len(inputs))
	for i, in := range inputs {
		msgs[i] = toMessage(in)
	}
	err := f.engine.Train(msgs)

	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		results[i] = fromMessage(msg)
	}
	return results, err
}

// Close releases model resources (ONNX runtime, memory).
// Must be called when the Featurizer is no longer needed.
func (f *Featurizer) Close() error {
	return f.vectorizer.Close()
}

// AppendPooled pools tokenVectors with the named operation, appends the
// summary as a final row, and concatenates the result to the right of
// existing when existing is non-nil. existing must have len(tokenVectors)+1
// rows.
func AppendPooled(tokenVectors, existing [][]float32, pooling string) ([][]float32, error) {
	op, err := featurizer.ParsePooling(pooling)
	if err != nil {
		return nil, fmt.Errorf("densefeat: %w", err)
	}
	summary, err := featurizer.Pool(tokenVectors, op)
	if err != nil {
		return nil, fmt.Errorf("densefeat: %w", err)
	}
	out, err := featurizer.Merge(tokenVectors, summary, existing, existing != nil)
	if err != nil {
		return nil, fmt.Errorf("densefeat: %w", err)
	}
	return out, nil
}

func toMessage(in Input) *model.Message {
	msg := model.NewMessage(in.Text)
	if in.Response != "" {
		msg.SetText(model.Response, in.Response)
	}
	if in.Intent != "" {
		msg.SetText(model.Intent, in.Intent)
	}
	if in.TextDenseFeatures != nil {
		msg.SetDenseFeatures(model.Text, model.Matrix(in.TextDenseFeatures).Clone())
	}
	if in.ResponseDenseFeatures != nil {
		msg.SetDenseFeatures(model.Response, model.Matrix(in.ResponseDenseFeatures).Clone())
	}
	return msg
}

func fromMessage(msg *model.Message) Result {
	res := Result{ID: msg.ID}
	res.Text = attributeFeatures(msg, model.Text)
	res.Response = attributeFeatures(msg, model.Response)
	res.IntentTokens, _ = msg.Tokens(model.Intent)
	return res
}

func attributeFeatures(msg *model.Message, a model.Attribute) Features {
	var f Features
	f.Tokens, _ = msg.Tokens(a)
	if dense, ok := msg.DenseFeatures(a); ok {
		f.Dense = dense
	}
	return f
}
