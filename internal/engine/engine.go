package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crimson-sun/logkey/internal/config"
	"github.com/crimson-sun/logkey/internal/engine/checkpoint"
	"github.com/crimson-sun/logkey/internal/engine/dataset"
	"github.com/crimson-sun/logkey/internal/engine/device"
	"github.com/crimson-sun/logkey/internal/engine/nn"
	"github.com/crimson-sun/logkey/internal/engine/train"
	"github.com/crimson-sun/logkey/internal/logging"
	"github.com/crimson-sun/logkey/internal/model"
	"github.com/crimson-sun/logkey/internal/output"
)

// ErrEmptyDataset is returned when windowing yields no samples.
var ErrEmptyDataset = errors.New("engine: dataset is empty")

// Options configures a training run.
type Options struct {
	Window       int
	Mode         dataset.Mode
	Model        nn.Config
	Epochs       int
	BatchSize    int
	Optimizer    string
	LearningRate float64
	Shuffle      bool
	Seed         int64  // 0 seeds from the clock
	Workers      int    // 0 uses the device core count
	Device       string // "auto", "cpu", "cuda"
	ModelDir     string
	RunID        string // generated when empty
}

// OptionsFromConfig maps validated configuration onto engine options.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	mode, err := dataset.ParseMode(cfg.Source.Windowing)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Window: cfg.Model.WindowSize,
		Mode:   mode,
		Model: nn.Config{
			InputSize:  cfg.Model.InputSize,
			HiddenSize: cfg.Model.HiddenSize,
			NumLayers:  cfg.Model.NumLayers,
			NumClasses: cfg.Model.NumClasses,
		},
		Epochs:       cfg.Train.Epochs,
		BatchSize:    cfg.Train.BatchSize,
		Optimizer:    cfg.Train.Optimizer,
		LearningRate: cfg.Train.LearningRate,
		Shuffle:      cfg.Train.Shuffle,
		Seed:         cfg.Train.Seed,
		Workers:      cfg.Train.Workers,
		Device:       cfg.Train.Device,
		ModelDir:     cfg.Train.ModelDir,
	}, nil
}

// Report describes a finished run.
type Report struct {
	train.Result
	RunID      string
	Samples    int
	Checkpoint string
	Device     device.Device
}

// Engine orchestrates the window → batch → train → checkpoint pipeline.
type Engine struct {
	opts  Options
	dev   device.Device
	rng   *rand.Rand
	model *nn.Model
	log   *slog.Logger
}

// New selects a device and initialises a model.
func New(opts Options) (*Engine, error) {
	if opts.Optimizer == "" {
		opts.Optimizer = "Adam"
	}
	if opts.Optimizer != "Adam" {
		return nil, fmt.Errorf("engine: unsupported optimizer %q", opts.Optimizer)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	dev, err := device.Select(opts.Device)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = dev.Cores
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	m, err := nn.New(opts.Model, rng)
	if err != nil {
		return nil, err
	}
	return &Engine{
		opts:  opts,
		dev:   dev,
		rng:   rng,
		model: m,
		log:   logging.Component("engine").With("run_id", opts.RunID),
	}, nil
}

// Model returns the model being trained.
func (e *Engine) Model() *nn.Model { return e.model }

// RunID returns the identifier stamped on every metric of the run.
func (e *Engine) RunID() string { return e.opts.RunID }

// CheckpointPath returns where Train writes the final parameters.
func (e *Engine) CheckpointPath() string {
	return filepath.Join(e.opts.ModelDir, checkpoint.Filename(e.opts.Optimizer, e.opts.BatchSize, e.opts.Epochs))
}

// Train windows the streams, trains for the configured epochs while
// reporting each epoch to sink, then writes the checkpoint. No checkpoint is
// written if training fails.
func (e *Engine) Train(ctx context.Context, streams []model.EventStream, sink output.Output) (Report, error) {
	ds, err := dataset.Build(streams, e.opts.Window, e.opts.Mode)
	if err != nil {
		return Report{}, err
	}
	if ds.Len() == 0 {
		return Report{}, fmt.Errorf("%w: no stream is longer than window %d", ErrEmptyDataset, e.opts.Window)
	}

	loader := dataset.NewLoader(ds, e.opts.BatchSize, e.opts.Shuffle, e.rng)
	stepper := &train.ModelStepper{
		Model:   e.model,
		Opt:     nn.NewAdam(e.model.Params(), nn.AdamConfig{LR: e.opts.LearningRate}),
		Workers: e.opts.Workers,
	}
	trainer := train.New(stepper, loader, sink, train.Config{Epochs: e.opts.Epochs, RunID: e.opts.RunID})

	e.log.Info("training started",
		"device", e.dev.String(), "workers", e.opts.Workers, "params", e.model.NumParams(),
		"epochs", e.opts.Epochs, "batches", loader.Len())
	res, err := trainer.Run(ctx)
	if err != nil {
		return Report{}, err
	}

	path := e.CheckpointPath()
	if err := checkpoint.Save(path, e.model.State(), e.metadata()); err != nil {
		return Report{}, err
	}
	e.log.Info("Finished Training", "checkpoint", path, "final_loss", res.FinalLoss, "duration", res.Duration)

	return Report{
		Result:     res,
		RunID:      e.opts.RunID,
		Samples:    ds.Len(),
		Checkpoint: path,
		Device:     e.dev,
	}, nil
}

func (e *Engine) metadata() map[string]string {
	c := e.opts.Model
	return map[string]string{
		"window_size": strconv.Itoa(e.opts.Window),
		"input_size":  strconv.Itoa(c.InputSize),
		"hidden_size": strconv.Itoa(c.HiddenSize),
		"num_layers":  strconv.Itoa(c.NumLayers),
		"num_classes": strconv.Itoa(c.NumClasses),
		"optimizer":   e.opts.Optimizer,
		"batch_size":  strconv.Itoa(e.opts.BatchSize),
		"epochs":      strconv.Itoa(e.opts.Epochs),
		"windowing":   e.opts.Mode.String(),
		"run_id":      e.opts.RunID,
	}
}

// LoadModel rebuilds a model from a checkpoint written by Train. It returns
// the window size recorded alongside the parameters.
func LoadModel(path string) (*nn.Model, int, error) {
	state, meta, err := checkpoint.Load(path)
	if err != nil {
		return nil, 0, err
	}
	var cfg nn.Config
	var window int
	fields := []struct {
		key string
		dst *int
	}{
		{"window_size", &window},
		{"input_size", &cfg.InputSize},
		{"hidden_size", &cfg.HiddenSize},
		{"num_layers", &cfg.NumLayers},
		{"num_classes", &cfg.NumClasses},
	}
	for _, f := range fields {
		v, err := strconv.Atoi(meta[f.key])
		if err != nil {
			return nil, 0, fmt.Errorf("%w: metadata %s=%q", checkpoint.ErrFormat, f.key, meta[f.key])
		}
		*f.dst = v
	}

	m, err := nn.New(cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		return nil, 0, err
	}
	if err := m.LoadState(state); err != nil {
		return nil, 0, err
	}
	return m, window, nil
}
