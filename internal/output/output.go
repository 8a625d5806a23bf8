package output

import (
	"context"

	"github.com/crimson-sun/logkey/internal/model"
)

// Output defines the interface for per-epoch metric destinations.
type Output interface {
	Write(ctx context.Context, m model.EpochMetric) error
	Close() error
}
