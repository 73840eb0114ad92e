package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crimson-sun/densefeat/internal/model"
)

// Component is one stage of the featurization engine. It declares the
// message fields it reads and writes so stage order can be checked up front.
type Component interface {
	Name() string
	Provides() []string
	Requires() []string
	Train(msgs []*model.Message) error
	Process(msg *model.Message) error
}

// InputKeys are the fields a message carries before any component runs.
func InputKeys() []string {
	keys := make([]string, 0, len(model.Attributes))
	for _, a := range model.Attributes {
		keys = append(keys, model.TextKey(a))
	}
	return keys
}

// ValidateOrder checks that every field a component requires is an input
// field or is provided by a component earlier in the list.
func ValidateOrder(components []Component) error {
	available := make(map[string]bool)
	for _, k := range InputKeys() {
		available[k] = true
	}

	var errs []error
	for i, c := range components {
		var missing []string
		for _, req := range c.Requires() {
			if !available[req] {
				missing = append(missing, req)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("component %d (%s) requires %s, which no earlier component provides",
				i, c.Name(), strings.Join(missing, ", ")))
		}
		for _, p := range c.Provides() {
			available[p] = true
		}
	}
	return errors.Join(errs...)
}

// Engine runs components in order over single messages or whole batches.
type Engine struct {
	components []Component
}

// New creates an Engine after checking component order.
func New(components ...Component) (*Engine, error) {
	if len(components) == 0 {
		return nil, errors.New("engine: no components")
	}
	if err := ValidateOrder(components); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{components: components}, nil
}

// Components returns the components in run order.
func (e *Engine) Components() []Component {
	return append([]Component(nil), e.components...)
}

// Process runs every component on msg. A failing component does not stop
// later ones; they see whatever fields were set and skip what is missing.
func (e *Engine) Process(msg *model.Message) error {
	var errs []error
	for _, c := range e.components {
		if err := c.Process(msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Train runs every component over the whole batch, one component at a time.
func (e *Engine) Train(msgs []*model.Message) error {
	var errs []error
	for _, c := range e.components {
		if err := c.Train(msgs); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}
