package featurizer

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/densefeat/internal/model"
)

func newMessage(vectors model.Matrix) *model.Message {
	msg := model.NewMessage("book a table")
	msg.SetTokens(model.Text, []string{"book", "a", "table"})
	msg.SetTokenVectors(model.Text, vectors)
	return msg
}

func TestNew(t *testing.T) {
	f, err := New("max")
	require.NoError(t, err)
	assert.Equal(t, Max, f.Pooling())

	f, err = New("")
	require.NoError(t, err)
	assert.Equal(t, Mean, f.Pooling())

	_, err = New("sum")
	require.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "sum")
}

func TestCapabilities(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	assert.Equal(t, []string{"text_dense_features", "response_dense_features"}, f.Provides())
	assert.Equal(t, []string{
		"token_vectors", "response_token_vectors",
		"tokens", "response_tokens",
	}, f.Requires())
}

func TestProcessMean(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	msg := newMessage(model.Matrix{{1, 0}, {3, 0}, {5, 4}})
	require.NoError(t, f.Process(msg))

	got, ok := msg.DenseFeatures(model.Text)
	require.True(t, ok)
	require.Equal(t, 4, got.Rows())
	assert.Equal(t, 2, got.Cols())
	assert.Equal(t, []float32{5, 4}, got[2])
	assert.InDelta(t, 3.0, got[3][0], 1e-6)
	assert.InDelta(t, 4.0/3.0, got[3][1], 1e-6)
}

func TestProcessMax(t *testing.T) {
	f, err := New("max")
	require.NoError(t, err)

	msg := newMessage(model.Matrix{{1, 0}, {3, 0}, {5, 4}})
	require.NoError(t, f.Process(msg))

	got, _ := msg.DenseFeatures(model.Text)
	assert.Equal(t, []float32{5, 4}, got[3])
}

func TestProcessMergesExisting(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	msg := newMessage(model.Matrix{{1, 0}, {3, 0}, {5, 4}})
	msg.SetDenseFeatures(model.Text, model.Matrix{{9}, {9}, {9}, {9}})

	require.NoError(t, f.Process(msg))

	got, _ := msg.DenseFeatures(model.Text)
	require.Equal(t, 4, got.Rows())
	require.Equal(t, 3, got.Cols())
	assert.Equal(t, []float32{9, 1, 0}, got[0])
	assert.Equal(t, []float32{9, 3, 0}, got[1])
	assert.Equal(t, []float32{9, 5, 4}, got[2])
	assert.Equal(t, float32(9), got[3][0])
	assert.InDelta(t, 3.0, got[3][1], 1e-6)
}

func TestProcessSkipsAbsentAttributes(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	msg := model.NewMessage("hi")
	msg.SetText(model.Response, "hello")
	msg.SetTokenVectors(model.Response, model.Matrix{{1, 1}})

	require.NoError(t, f.Process(msg))

	_, ok := msg.DenseFeatures(model.Text)
	assert.False(t, ok, "no features should be written without token vectors")
	resp, ok := msg.DenseFeatures(model.Response)
	require.True(t, ok)
	assert.Equal(t, model.Matrix{{1, 1}, {1, 1}}, resp)
}

func TestProcessIsolatesAttributeFailures(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	msg := newMessage(model.Matrix{{1, 0}, {3, 0}})
	// Existing text features have the wrong row count.
	msg.SetDenseFeatures(model.Text, model.Matrix{{9}})
	msg.SetTokenVectors(model.Response, model.Matrix{{2, 2}, {4, 4}})

	err = f.Process(msg)
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Contains(t, err.Error(), "text")

	text, _ := msg.DenseFeatures(model.Text)
	assert.Equal(t, model.Matrix{{9}}, text, "failed attribute keeps its previous features")

	resp, ok := msg.DenseFeatures(model.Response)
	require.True(t, ok)
	assert.Equal(t, 3, resp.Rows())
}

func TestProcessRaggedExisting(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	msg := newMessage(model.Matrix{{1, 0}, {3, 0}})
	existing := model.Matrix{{9}, {9, 9}, {}}
	msg.SetDenseFeatures(model.Text, existing)

	require.ErrorIs(t, f.Process(msg), ErrShapeMismatch)
	got, _ := msg.DenseFeatures(model.Text)
	assert.Equal(t, existing, got, "ragged upstream features are left untouched")
}

func TestProcessRaggedVectors(t *testing.T) {
	f, err := New("max")
	require.NoError(t, err)

	msg := newMessage(model.Matrix{{1, 0}, {3}})
	assert.ErrorIs(t, f.Process(msg), ErrShapeMismatch)
	_, ok := msg.DenseFeatures(model.Text)
	assert.False(t, ok)
}

func TestTrainContinuesPastFailures(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	good := newMessage(model.Matrix{{1, 2}})
	bad := newMessage(model.Matrix{{1, 2}, {3}})
	alsoGood := newMessage(model.Matrix{{3, 4}, {5, 6}})

	err = f.Train([]*model.Message{good, bad, alsoGood})
	require.Error(t, err)
	assert.Contains(t, err.Error(), bad.ID)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	for _, m := range []*model.Message{good, alsoGood} {
		_, ok := m.DenseFeatures(model.Text)
		assert.True(t, ok)
	}
}

func TestTrainAndProcessAgree(t *testing.T) {
	f, err := New("mean")
	require.NoError(t, err)

	vecs := model.Matrix{{0.25, 1}, {0.75, -1}, {2, 0}}
	a := newMessage(vecs.Clone())
	b := newMessage(vecs.Clone())

	require.NoError(t, f.Train([]*model.Message{a}))
	require.NoError(t, f.Process(b))

	fa, _ := a.DenseFeatures(model.Text)
	fb, _ := b.DenseFeatures(model.Text)
	assert.Equal(t, fa, fb)
}

func TestProcessConcurrentMessages(t *testing.T) {
	f, err := New("max")
	require.NoError(t, err)

	msgs := make([]*model.Message, 32)
	for i := range msgs {
		msgs[i] = newMessage(model.Matrix{{float32(i), 0}, {0, float32(i)}})
	}

	var wg sync.WaitGroup
	for _, m := range msgs {
		wg.Add(1)
		go func(m *model.Message) {
			defer wg.Done()
			assert.NoError(t, f.Process(m))
		}(m)
	}
	wg.Wait()

	for i, m := range msgs {
		got, ok := m.DenseFeatures(model.Text)
		require.True(t, ok)
		assert.Equal(t, []float32{float32(i), float32(i)}, got[2])
	}
}
