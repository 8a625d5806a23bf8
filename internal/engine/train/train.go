// Package train runs the epoch/step loop: for every mini-batch it computes
// the loss and gradients, applies one optimizer update, and reports the mean
// epoch loss to a metric sink.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/crimson-sun/logkey/internal/engine/dataset"
	"github.com/crimson-sun/logkey/internal/logging"
	"github.com/crimson-sun/logkey/internal/model"
	"github.com/crimson-sun/logkey/internal/output"
)

// ErrNonFinite is returned when a step produces a NaN or infinite loss.
var ErrNonFinite = errors.New("train: non-finite loss")

// Stepper performs one optimization step on a batch and returns the batch's
// mean loss.
type Stepper interface {
	Step(ctx context.Context, b dataset.Batch) (float64, error)
}

// Batches is a source of per-epoch mini-batches.
type Batches interface {
	Epoch(ctx context.Context) <-chan dataset.Batch
	Len() int
	Samples() int
}

// Config controls a training run.
type Config struct {
	Epochs int
	RunID  string
	Tag    string // scalar tag, default "train_loss"
}

// Result summarises a completed run.
type Result struct {
	Epochs    int
	Steps     int           // total optimizer steps
	Losses    []float64     // mean loss per epoch
	FinalLoss float64       // loss of the last epoch
	Duration  time.Duration // wall time of the whole run
}

// Trainer drives a Stepper over every batch of every epoch.
type Trainer struct {
	stepper Stepper
	batches Batches
	sink    output.Output
	cfg     Config
	log     *slog.Logger
}

// New creates a Trainer. sink may be nil.
func New(stepper Stepper, batches Batches, sink output.Output, cfg Config) *Trainer {
	if cfg.Tag == "" {
		cfg.Tag = "train_loss"
	}
	return &Trainer{
		stepper: stepper,
		batches: batches,
		sink:    sink,
		cfg:     cfg,
		log:     logging.Component("train"),
	}
}

// Run trains for the configured number of epochs. Any step, sink or context
// error aborts the run.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if t.cfg.Epochs <= 0 {
		return Result{}, fmt.Errorf("train: epoch count must be positive, got %d", t.cfg.Epochs)
	}
	if t.batches.Samples() == 0 {
		return Result{}, errors.New("train: no samples to train on")
	}

	start := time.Now()
	res := Result{Losses: make([]float64, 0, t.cfg.Epochs)}
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		m, err := t.runEpoch(ctx, epoch)
		if err != nil {
			return res, err
		}
		res.Epochs++
		res.Steps += m.Steps
		res.Losses = append(res.Losses, m.Loss)
		res.FinalLoss = m.Loss

		if t.sink != nil {
			if err := t.sink.Write(ctx, m); err != nil {
				return res, fmt.Errorf("train: write metric: %w", err)
			}
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (t *Trainer) runEpoch(ctx context.Context, epoch int) (model.EpochMetric, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	var sum float64
	steps, samples := 0, 0
	for b := range t.batches.Epoch(ctx) {
		loss, err := t.Step(ctx, b)
		if err != nil {
			return model.EpochMetric{}, fmt.Errorf("epoch %d step %d: %w", epoch+1, steps+1, err)
		}
		sum += loss
		steps++
		samples += b.Size()
	}
	if err := ctx.Err(); err != nil {
		return model.EpochMetric{}, err
	}

	// Accumulated per-step mean losses divided by the sample count.
	m := model.EpochMetric{
		RunID:     t.cfg.RunID,
		Tag:       t.cfg.Tag,
		Epoch:     epoch + 1,
		Epochs:    t.cfg.Epochs,
		Loss:      sum / float64(t.batches.Samples()),
		Samples:   samples,
		Steps:     steps,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
	t.log.Debug("epoch complete", "epoch", m.Epoch, "loss", m.Loss, "steps", steps, "duration", m.Duration)
	return m, nil
}

// Step runs one optimization step and rejects non-finite losses.
func (t *Trainer) Step(ctx context.Context, b dataset.Batch) (float64, error) {
	loss, err := t.stepper.Step(ctx, b)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNonFinite, loss)
	}
	return loss, nil
}
