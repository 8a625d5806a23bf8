package train

import (
	"context"
	"fmt"
	"math"

	"github.com/crimson-sun/logkey/internal/engine/dataset"
	"github.com/crimson-sun/logkey/internal/engine/nn"
)

// ModelStepper trains an nn.Model with Adam.
type ModelStepper struct {
	Model   *nn.Model
	Opt     *nn.Adam
	Workers int // gradient shards per step
}

// Step reshapes the batch to (N, W, 1), clears gradients, backpropagates the
// mean cross-entropy and applies one Adam update. A non-finite loss is
// reported before the update so parameters are left untouched.
func (s *ModelStepper) Step(ctx context.Context, b dataset.Batch) (float64, error) {
	x, err := nn.FromWindows(b.Inputs, b.Window)
	if err != nil {
		return 0, err
	}
	s.Model.ZeroGrad()
	loss, err := s.Model.Gradients(ctx, x, b.Targets, s.Workers)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonFinite, loss)
	}
	s.Opt.Step()
	return loss, nil
}
