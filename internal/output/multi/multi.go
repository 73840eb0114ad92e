package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/densefeat/internal/model"
	"github.com/crimson-sun/densefeat/internal/output"
)

// Multi fans out featurized messages to several outputs in order.
// A failing output does not stop delivery to the ones after it.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi over outputs. Nil outputs are skipped.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len reports how many outputs are wrapped.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers msg to every output and joins their errors.
func (m *Multi) Write(ctx context.Context, msg *model.Message) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every output, joining their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
