package featurizer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/densefeat/internal/model"
)

// Name identifies the featurizer in component listings and errors.
const Name = "pooled_dense_featurizer"

// Featurizer appends a pooled summary row to each attribute's per-token
// vectors and merges the result into the attribute's dense features.
// It holds no mutable state and is safe for concurrent use.
type Featurizer struct {
	pooling Pooling
}

// New creates a Featurizer for the named pooling operation ("mean" or
// "max"; "" means mean). An unknown name fails here rather than at first use.
func New(pooling string) (*Featurizer, error) {
	op, err := ParsePooling(pooling)
	if err != nil {
		return nil, fmt.Errorf("featurizer: %w", err)
	}
	return &Featurizer{pooling: op}, nil
}

// Name returns the component name.
func (f *Featurizer) Name() string { return Name }

// Pooling returns the configured pooling operation.
func (f *Featurizer) Pooling() Pooling { return f.pooling }

// Provides lists the fields this featurizer writes.
func (f *Featurizer) Provides() []string {
	keys := make([]string, 0, len(model.DenseFeaturizableAttributes))
	for _, a := range model.DenseFeaturizableAttributes {
		keys = append(keys, model.DenseFeaturesKey(a))
	}
	return keys
}

// Requires lists the fields that must be produced by earlier stages.
func (f *Featurizer) Requires() []string {
	keys := make([]string, 0, 2*len(model.DenseFeaturizableAttributes))
	for _, a := range model.DenseFeaturizableAttributes {
		keys = append(keys, model.TokenVectorsKey(a))
	}
	for _, a := range model.DenseFeaturizableAttributes {
		keys = append(keys, model.TokensKey(a))
	}
	return keys
}

// Train featurizes every message. Nothing is fitted; a failing message is
// reported in the joined error and the rest of the batch still runs.
func (f *Featurizer) Train(msgs []*model.Message) error {
	var errs []error
	for _, msg := range msgs {
		if err := f.Process(msg); err != nil {
			errs = append(errs, &model.MessageError{ID: msg.ID, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Process featurizes each dense-featurizable attribute of msg. Attributes
// without token vectors are skipped; a failure on one attribute does not
// stop the others.
func (f *Featurizer) Process(msg *model.Message) error {
	var errs []error
	for _, attr := range model.DenseFeaturizableAttributes {
		if err := f.featurize(msg, attr); err != nil {
			slog.Warn("dense featurization failed",
				"message", msg.ID, "attribute", string(attr), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", attr, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Featurizer) featurize(msg *model.Message, attr model.Attribute) error {
	vectors, ok := msg.TokenVectors(attr)
	if !ok {
		slog.Debug("no token vectors, skipping", "message", msg.ID, "attribute", string(attr))
		return nil
	}

	// TODO: all-zero rows (tokens with no embedding) are pooled like any
	// other row; decide whether they should be excluded before pooling.
	summary, err := Pool(vectors, f.pooling)
	if err != nil {
		return err
	}

	return msg.UpdateDenseFeatures(attr, func(existing model.Matrix, ok bool) (model.Matrix, error) {
		return Merge(vectors, summary, existing, ok)
	})
}
