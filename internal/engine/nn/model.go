// Package nn implements the next-event sequence model: a stacked LSTM whose
// last hidden state feeds a linear classification head, trained with
// hand-written backpropagation through time on gonum matrices.
package nn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/crimson-sun/logkey/internal/engine/checkpoint"
)

// ErrShape is returned when an input, target set or state tensor does not
// match the model's dimensions.
var ErrShape = errors.New("nn: shape mismatch")

// Config describes the model architecture.
type Config struct {
	InputSize  int
	HiddenSize int
	NumLayers  int
	NumClasses int
}

// Model is a stacked LSTM classifier. It is not safe for concurrent use,
// although Gradients parallelises internally.
type Model struct {
	cfg    Config
	layers []*lstmLayer
	fc     *linear
	params []*Param
}

// New builds a model with parameters drawn from U(-1/√H, 1/√H).
func New(cfg Config, rng *rand.Rand) (*Model, error) {
	if cfg.InputSize <= 0 || cfg.HiddenSize <= 0 || cfg.NumLayers <= 0 || cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("%w: invalid architecture %+v", ErrShape, cfg)
	}
	m := &Model{cfg: cfg}
	in := cfg.InputSize
	for k := 0; k < cfg.NumLayers; k++ {
		l := newLSTMLayer(k, in, cfg.HiddenSize, rng)
		m.layers = append(m.layers, l)
		m.params = append(m.params, l.params()...)
		in = cfg.HiddenSize
	}
	m.fc = newLinear("fc", cfg.HiddenSize, cfg.NumClasses, rng)
	m.params = append(m.params, m.fc.params()...)
	return m, nil
}

// Config returns the model architecture.
func (m *Model) Config() Config { return m.cfg }

// Params returns the trainable parameters in a stable order.
func (m *Model) Params() []*Param { return m.params }

// NumParams returns the total number of scalar parameters.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.params {
		n += p.Size()
	}
	return n
}

// ZeroGrad clears every accumulated gradient.
func (m *Model) ZeroGrad() {
	for _, p := range m.params {
		p.Grad.Zero()
	}
}

// Forward returns the logits (batch x classes) for x. Hidden and cell state
// start at zero for every call.
func (m *Model) Forward(x Sequence) (*mat.Dense, error) {
	if err := m.checkInput(x); err != nil {
		return nil, err
	}
	logits, _ := m.forward(x)
	return logits, nil
}

type forwardCache struct {
	layers [][]lstmCache
	last   *mat.Dense
}

func (m *Model) checkInput(x Sequence) error {
	if x.Features != m.cfg.InputSize {
		return fmt.Errorf("%w: input has %d features, model expects %d", ErrShape, x.Features, m.cfg.InputSize)
	}
	if x.Batch <= 0 || x.Steps <= 0 || len(x.Data) != x.Batch*x.Steps*x.Features {
		return fmt.Errorf("%w: sequence (%d, %d, %d) with %d values", ErrShape, x.Batch, x.Steps, x.Features, len(x.Data))
	}
	return nil
}

func (m *Model) forward(x Sequence) (*mat.Dense, forwardCache) {
	steps := make([]*mat.Dense, x.Steps)
	for t := range steps {
		steps[t] = x.step(t)
	}
	var fc forwardCache
	for _, l := range m.layers {
		hs, caches := l.forward(steps)
		fc.layers = append(fc.layers, caches)
		steps = hs
	}
	fc.last = steps[len(steps)-1]
	return m.fc.forward(fc.last), fc
}

// Gradients runs forward, cross-entropy and backpropagation for one batch and
// adds the gradient of the batch-mean loss to each parameter's Grad. The batch
// is split into at most workers shards computed concurrently; shard results
// are summed in shard order so the outcome does not depend on scheduling.
// It returns the mean loss over the batch.
func (m *Model) Gradients(ctx context.Context, x Sequence, targets []int, workers int) (float64, error) {
	if err := m.checkInput(x); err != nil {
		return 0, err
	}
	if len(targets) != x.Batch {
		return 0, fmt.Errorf("%w: %d targets for batch of %d", ErrShape, len(targets), x.Batch)
	}
	shards := max(1, min(workers, x.Batch))
	scale := 1 / float64(x.Batch)

	losses := make([]float64, shards)
	grads := make([]map[*Param]*mat.Dense, shards)

	g, ctx := errgroup.WithContext(ctx)
	for s := 0; s < shards; s++ {
		lo, hi := s*x.Batch/shards, (s+1)*x.Batch/shards
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			local := make(map[*Param]*mat.Dense, len(m.params))
			for _, p := range m.params {
				local[p] = zerosLike(p.Value)
			}
			sum, err := m.backprop(x.slice(lo, hi), targets[lo:hi], scale, local)
			if err != nil {
				return err
			}
			losses[s], grads[s] = sum, local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total float64
	for s := 0; s < shards; s++ {
		total += losses[s]
		for _, p := range m.params {
			p.Grad.Add(p.Grad, grads[s][p])
		}
	}
	return total * scale, nil
}

// backprop computes the summed loss of x and adds scaled gradients to grads.
func (m *Model) backprop(x Sequence, targets []int, scale float64, grads map[*Param]*mat.Dense) (float64, error) {
	logits, fc := m.forward(x)
	sum, dlogits, err := softmaxCrossEntropy(logits, targets, scale, true)
	if err != nil {
		return 0, err
	}

	dh := m.fc.backward(dlogits, fc.last, grads)
	dhs := make([]*mat.Dense, x.Steps)
	dhs[x.Steps-1] = dh
	for k := len(m.layers) - 1; k >= 0; k-- {
		dhs = m.layers[k].backward(dhs, fc.layers[k], grads)
	}
	return sum, nil
}

// State returns a copy of every parameter keyed by its state name.
func (m *Model) State() map[string]checkpoint.Tensor {
	state := make(map[string]checkpoint.Tensor, len(m.params))
	for _, p := range m.params {
		state[p.Name] = checkpoint.Tensor{
			Shape: slices.Clone(p.Shape),
			Data:  slices.Clone(p.Value.RawMatrix().Data),
		}
	}
	return state
}

// LoadState replaces parameter values from state. Every parameter must be
// present with a matching shape; extra entries are rejected.
func (m *Model) LoadState(state map[string]checkpoint.Tensor) error {
	if len(state) != len(m.params) {
		return fmt.Errorf("%w: state has %d tensors, model has %d", ErrShape, len(state), len(m.params))
	}
	for _, p := range m.params {
		t, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("%w: missing tensor %s", ErrShape, p.Name)
		}
		if !slices.Equal(t.Shape, p.Shape) || len(t.Data) != p.Size() {
			return fmt.Errorf("%w: tensor %s has shape %v, want %v", ErrShape, p.Name, t.Shape, p.Shape)
		}
	}
	for _, p := range m.params {
		copy(p.Value.RawMatrix().Data, state[p.Name].Data)
	}
	return nil
}
