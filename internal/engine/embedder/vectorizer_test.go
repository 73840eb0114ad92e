package embedder

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/crimson-sun/densefeat/internal/model"
)

// fakeEncoder emits hidden state id + d/10 at every position, so each token
// row is recognisable from its vocabulary ID.
type fakeEncoder struct {
	dim    int64
	calls  int
	err    error
	closed bool
}

func (f *fakeEncoder) hiddenStates(b batch) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float32, 0, b.size*b.seqLen*f.dim)
	for _, id := range b.inputIDs {
		for d := int64(0); d < f.dim; d++ {
			out = append(out, float32(id)+float32(d)/10)
		}
	}
	return out, nil
}

func (f *fakeEncoder) hiddenDim() int64 { return f.dim }

func (f *fakeEncoder) close() error {
	f.closed = true
	return nil
}

func newTestVectorizer(t *testing.T, enc *fakeEncoder, batchSize int) *Vectorizer {
	t.Helper()
	v, err := newVectorizer(tinyTokenizer(t), enc, nil, batchSize)
	if err != nil {
		t.Fatalf("newVectorizer: %v", err)
	}
	return v
}

func TestVectorize(t *testing.T) {
	v := newTestVectorizer(t, &fakeEncoder{dim: 2}, 0)

	pieces, vecs, err := v.Vectorize("book a table")
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if !reflect.DeepEqual(pieces, []string{"book", "a", "table"}) {
		t.Errorf("pieces = %v", pieces)
	}
	if vecs.Rows() != 3 || vecs.Cols() != 2 {
		t.Fatalf("expected 3x2 vectors, got %dx%d", vecs.Rows(), vecs.Cols())
	}
	// book=4, a=5, table=6; [CLS]=2 and [SEP]=3 must not appear.
	for i, id := range []float32{4, 5, 6} {
		if !closeEnough(vecs[i][0], id) || !closeEnough(vecs[i][1], id+0.1) {
			t.Errorf("row %d = %v, want [%v %v]", i, vecs[i], id, id+0.1)
		}
	}
	if v.Dim() != 2 {
		t.Errorf("Dim = %d, want 2", v.Dim())
	}
}

func TestVectorizeEmptyText(t *testing.T) {
	v := newTestVectorizer(t, &fakeEncoder{dim: 2}, 0)

	pieces, vecs, err := v.Vectorize("   ")
	if err != nil {
		t.Fatalf("Vectorize: %v", err)
	}
	if pieces != nil || vecs != nil {
		t.Errorf("expected nil pieces and vectors, got %v %v", pieces, vecs)
	}
}

func TestVectorizeBatchChunks(t *testing.T) {
	enc := &fakeEncoder{dim: 1}
	v := newTestVectorizer(t, enc, 2)

	texts := []string{"book", "a table", "two", "", "play"}
	pieces, vecs, err := v.VectorizeBatch(texts)
	if err != nil {
		t.Fatalf("VectorizeBatch: %v", err)
	}
	if enc.calls != 3 {
		t.Errorf("expected 3 encoder calls for 5 texts at batch size 2, got %d", enc.calls)
	}
	if len(pieces) != len(texts) || len(vecs) != len(texts) {
		t.Fatalf("results not aligned with input: %d/%d", len(pieces), len(vecs))
	}
	if vecs[1].Rows() != 2 || vecs[1][1][0] != 6 {
		t.Errorf("vecs[1] = %v, want [[5] [6]]", vecs[1])
	}
	if vecs[3] != nil {
		t.Errorf("empty text should have nil vectors, got %v", vecs[3])
	}
	if vecs[4].Rows() != 1 || vecs[4][0][0] != 9 {
		t.Errorf("vecs[4] = %v, want [[9]]", vecs[4])
	}
}

func TestVectorizeEncoderError(t *testing.T) {
	v := newTestVectorizer(t, &fakeEncoder{dim: 2, err: errors.New("boom")}, 0)
	if _, _, err := v.Vectorize("book"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected encoder error, got %v", err)
	}
}

func TestVectorizeWithProjection(t *testing.T) {
	path := writeSafetensors(t, "linear.weight", "F32", []int{1, 2}, []float32{1, 1})
	proj, err := loadProjection(path)
	if err != nil {
		t.Fatal(err)
	}
	v, err := newVectorizer(tinyTokenizer(t), &fakeEncoder{dim: 2}, proj, 0)
	if err != nil {
		t.Fatal(err)
	}

	_, vecs, err := v.Vectorize("book")
	if err != nil {
		t.Fatal(err)
	}
	if v.Dim() != 1 || vecs.Cols() != 1 || math.Abs(float64(vecs[0][0])-8.1) > 1e-4 {
		t.Errorf("projected vectors = %v, want [[8.1]]", vecs)
	}
}

func TestNewVectorizerDimMismatch(t *testing.T) {
	path := writeSafetensors(t, "linear.weight", "F32", []int{1, 3}, []float32{1, 1, 1})
	proj, err := loadProjection(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := newVectorizer(tinyTokenizer(t), &fakeEncoder{dim: 2}, proj, 0); err == nil {
		t.Error("expected error for encoder/projection dim mismatch")
	}
}

func TestVectorizerProcess(t *testing.T) {
	enc := &fakeEncoder{dim: 2}
	v := newTestVectorizer(t, enc, 0)

	msg := model.NewMessage("book a table")
	msg.SetText(model.Intent, "restaurant_search")
	if err := v.Process(msg); err != nil {
		t.Fatalf("Process: %v", err)
	}

	tokens, ok := msg.Tokens(model.Text)
	if !ok || len(tokens) != 3 {
		t.Errorf("text tokens = %v", tokens)
	}
	vecs, ok := msg.TokenVectors(model.Text)
	if !ok || vecs.Rows() != 3 {
		t.Errorf("text vectors = %v", vecs)
	}
	if _, ok := msg.TokenVectors(model.Response); ok {
		t.Error("response without text must not get vectors")
	}
	intent, _ := msg.Tokens(model.Intent)
	if !reflect.DeepEqual(intent, []string{"restaurant", "search"}) {
		t.Errorf("intent tokens = %v", intent)
	}
	if enc.calls != 1 {
		t.Errorf("expected one encoder call, got %d", enc.calls)
	}
}

func TestVectorizerTrainBatchesPerAttribute(t *testing.T) {
	enc := &fakeEncoder{dim: 1}
	v := newTestVectorizer(t, enc, 0)

	msgs := []*model.Message{model.NewMessage("book"), model.NewMessage("two"), model.NewMessage("")}
	msgs[1].SetText(model.Response, "a table")

	if err := v.Train(msgs); err != nil {
		t.Fatalf("Train: %v", err)
	}
	// One call for text, one for response.
	if enc.calls != 2 {
		t.Errorf("expected 2 encoder calls, got %d", enc.calls)
	}
	if _, ok := msgs[2].TokenVectors(model.Text); ok {
		t.Error("message without text must not get vectors")
	}
	resp, ok := msgs[1].TokenVectors(model.Response)
	if !ok || resp.Rows() != 2 {
		t.Errorf("response vectors = %v", resp)
	}
}

func TestVectorizerCapabilities(t *testing.T) {
	v := newTestVectorizer(t, &fakeEncoder{dim: 1}, 0)

	provides := strings.Join(v.Provides(), ",")
	for _, key := range []string{"tokens", "response_tokens", "intent_tokens", "token_vectors", "response_token_vectors"} {
		if !strings.Contains(","+provides+",", ","+key+",") {
			t.Errorf("Provides() = %v, missing %s", v.Provides(), key)
		}
	}
	if !reflect.DeepEqual(v.Requires(), []string{"text", "response"}) {
		t.Errorf("Requires() = %v", v.Requires())
	}
}

func TestVectorizerClose(t *testing.T) {
	enc := &fakeEncoder{dim: 1}
	v := newTestVectorizer(t, enc, 0)
	if err := v.Close(); err != nil {
		t.Fatal(err)
	}
	if !enc.closed {
		t.Error("Close did not release the encoder")
	}
}

func TestTokenRows(t *testing.T) {
	// Two samples, seqLen=4, dim=1.
	// Sample 0: [CLS] x y [SEP]; sample 1: [CLS] [SEP] pad pad.
	b := batch{
		size:   2,
		seqLen: 4,
		pieces: [][]string{{"x", "y"}, nil},
	}
	hidden := []float32{
		100, 1, 2, 200,
		100, 200, 0, 0,
	}

	rows := tokenRows(hidden, b, 1)
	if len(rows) != 2 {
		t.Fatalf("expected 2 matrices, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], model.Matrix{{1}, {2}}) {
		t.Errorf("rows[0] = %v, want [[1] [2]]", rows[0])
	}
	if rows[1] != nil {
		t.Errorf("rows[1] = %v, want nil", rows[1])
	}

	hidden[1] = 42
	if rows[0][0][0] != 1 {
		t.Error("tokenRows must copy out of the hidden buffer")
	}
}
