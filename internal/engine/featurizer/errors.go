package featurizer

import (
	"errors"
	"fmt"

	"github.com/crimson-sun/densefeat/internal/model"
)

var (
	// ErrInvalidConfiguration is matched by every pooling configuration error.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrShapeMismatch is matched by every dimension error: ragged token
	// vectors, empty input, or an existing matrix with the wrong row count.
	ErrShapeMismatch = model.ErrShapeMismatch
)

// InvalidPoolingError reports a pooling operation other than mean or max.
type InvalidPoolingError struct {
	Value string
}

func (e *InvalidPoolingError) Error() string {
	return fmt.Sprintf("invalid pooling operation specified: available operations are 'mean' or 'max', but provided value is '%s'", e.Value)
}

// Is makes errors.Is(err, ErrInvalidConfiguration) hold.
func (e *InvalidPoolingError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}
