package output

import (
	"context"

	"github.com/crimson-sun/densefeat/internal/model"
)

// Output defines the interface for featurized message destinations.
type Output interface {
	Write(ctx context.Context, msg *model.Message) error
	Close() error
}
