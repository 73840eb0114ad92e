package embedder

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crimson-sun/densefeat/internal/model"
)

// Name identifies the vectorizer in component listings and errors.
const Name = "wordpiece_vectorizer"

const defaultBatchSize = 32

// encoder turns a packed batch into hidden states [size * seqLen * dim].
type encoder interface {
	hiddenStates(b batch) ([]float32, error)
	hiddenDim() int64
	close() error
}

type options struct {
	projectionPath string
	libPath        string
	threads        int
	batchSize      int
}

// Option configures a Vectorizer.
type Option func(*options)

// WithProjection applies the safetensors dense layer at path to every
// token vector.
func WithProjection(path string) Option {
	return func(o *options) { o.projectionPath = path }
}

// WithRuntimeLibrary sets the ONNX Runtime shared library path. Default:
// libonnxruntime.so next to the model.
func WithRuntimeLibrary(path string) Option {
	return func(o *options) { o.libPath = path }
}

// WithThreads sets the encoder's intra-op thread count. Default: 4.
func WithThreads(n int) Option {
	return func(o *options) { o.threads = n }
}

// WithBatchSize caps how many texts go into one encoder call. Default: 32.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// Vectorizer tokenizes each attribute's text and produces one vector per
// word piece from the encoder's last hidden state.
type Vectorizer struct {
	tok       *tokenizer
	enc       encoder
	proj      *projection
	batchSize int
}

// New loads the vocabulary, the ONNX encoder and, if configured, the
// projection layer.
func New(modelPath, vocabPath string, opts ...Option) (*Vectorizer, error) {
	o := options{threads: 4, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}

	tok, err := newTokenizer(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	var proj *projection
	if o.projectionPath != "" {
		if proj, err = loadProjection(o.projectionPath); err != nil {
			return nil, fmt.Errorf("vectorizer: %w", err)
		}
	}

	sess, err := newONNXSession(modelPath, o.libPath, o.threads)
	if err != nil {
		return nil, fmt.Errorf("vectorizer: %w", err)
	}

	v, err := newVectorizer(tok, sess, proj, o.batchSize)
	if err != nil {
		sess.close()
		return nil, err
	}
	return v, nil
}

func newVectorizer(tok *tokenizer, enc encoder, proj *projection, batchSize int) (*Vectorizer, error) {
	if proj != nil && int64(proj.inDim) != enc.hiddenDim() {
		return nil, fmt.Errorf("vectorizer: encoder dim %d != projection input dim %d",
			enc.hiddenDim(), proj.inDim)
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Vectorizer{tok: tok, enc: enc, proj: proj, batchSize: batchSize}, nil
}

// Dim returns the width of the produced token vectors.
func (v *Vectorizer) Dim() int {
	if v.proj != nil {
		return v.proj.outDim
	}
	return int(v.enc.hiddenDim())
}

// Vectorize returns the word pieces of text and one vector per piece.
// Text without pieces yields nil for both.
func (v *Vectorizer) Vectorize(text string) ([]string, model.Matrix, error) {
	pieces, vecs, err := v.VectorizeBatch([]string{text})
	if err != nil {
		return nil, nil, err
	}
	return pieces[0], vecs[0], nil
}

// VectorizeBatch vectorizes texts in encoder calls of at most the
// configured batch size. Results are index-aligned with texts.
func (v *Vectorizer) VectorizeBatch(texts []string) ([][]string, []model.Matrix, error) {
	pieces := make([][]string, len(texts))
	vecs := make([]model.Matrix, len(texts))

	for lo := 0; lo < len(texts); lo += v.batchSize {
		hi := min(lo+v.batchSize, len(texts))

		b := v.tok.encodeBatch(texts[lo:hi])
		hidden, err := v.enc.hiddenStates(b)
		if err != nil {
			return nil, nil, fmt.Errorf("vectorizer: %w", err)
		}
		if want := b.size * b.seqLen * v.enc.hiddenDim(); int64(len(hidden)) != want {
			return nil, nil, fmt.Errorf("vectorizer: encoder returned %d values, want %d", len(hidden), want)
		}

		for i, m := range tokenRows(hidden, b, v.enc.hiddenDim()) {
			if m != nil && v.proj != nil {
				m = v.proj.applyRows(m)
			}
			pieces[lo+i] = b.pieces[i]
			vecs[lo+i] = m
		}
	}
	return pieces, vecs, nil
}

// Name returns the component name.
func (v *Vectorizer) Name() string { return Name }

// Provides lists the fields the vectorizer writes.
func (v *Vectorizer) Provides() []string {
	var keys []string
	for _, a := range model.Attributes {
		keys = append(keys, model.TokensKey(a))
	}
	for _, a := range model.DenseFeaturizableAttributes {
		keys = append(keys, model.TokenVectorsKey(a))
	}
	return keys
}

// Requires lists the raw text fields the vectorizer reads.
func (v *Vectorizer) Requires() []string {
	keys := make([]string, 0, len(model.DenseFeaturizableAttributes))
	for _, a := range model.DenseFeaturizableAttributes {
		keys = append(keys, model.TextKey(a))
	}
	return keys
}

// Process vectorizes a single message.
func (v *Vectorizer) Process(msg *model.Message) error {
	return v.Train([]*model.Message{msg})
}

// Train vectorizes every message, batching encoder calls per attribute.
// Attributes with empty text get no tokens and no vectors. An encoder
// failure for one attribute does not stop the others.
func (v *Vectorizer) Train(msgs []*model.Message) error {
	var errs []error
	for _, attr := range model.DenseFeaturizableAttributes {
		if err := v.vectorizeAttribute(msgs, attr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", attr, err))
		}
	}

	// Intent labels are tokenized only; "_" separates words in a label.
	for _, msg := range msgs {
		if intent := msg.Text(model.Intent); intent != "" {
			msg.SetTokens(model.Intent, v.tok.pieces(strings.ReplaceAll(intent, "_", " ")))
		}
	}
	return errors.Join(errs...)
}

func (v *Vectorizer) vectorizeAttribute(msgs []*model.Message, attr model.Attribute) error {
	var (
		targets []*model.Message
		texts   []string
	)
	for _, msg := range msgs {
		if text := msg.Text(attr); text != "" {
			targets = append(targets, msg)
			texts = append(texts, text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	pieces, vecs, err := v.VectorizeBatch(texts)
	if err != nil {
		return err
	}
	for i, msg := range targets {
		if vecs[i] == nil {
			slog.Debug("text has no word pieces", "message", msg.ID, "attribute", string(attr))
			continue
		}
		msg.SetTokens(attr, pieces[i])
		msg.SetTokenVectors(attr, vecs[i])
	}
	return nil
}

// Close releases the encoder.
func (v *Vectorizer) Close() error {
	return v.enc.close()
}
