package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/logkey/internal/model"
	"github.com/crimson-sun/logkey/internal/output"
)

// Multi fans out metrics to multiple output.Output implementations.
// Each Write call delivers the metric to every wrapped output sequentially.
// If one output fails, the remaining outputs still receive the metric.
type Multi struct {
	outputs []output.Output
}

// New creates a Multi that fans out to the given outputs. Nil outputs are
// skipped so optional sinks can be passed unconditionally.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers the metric to every wrapped output. Errors are collected
// but do not prevent delivery to subsequent outputs.
func (m *Multi) Write(ctx context.Context, metric model.EpochMetric) error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Write(ctx, metric); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped output, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, o := range m.outputs {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
