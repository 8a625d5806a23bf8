package logkey

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/crimson-sun/logkey/internal/connector"
	_ "github.com/crimson-sun/logkey/internal/connector/csvfile"
	_ "github.com/crimson-sun/logkey/internal/connector/sessions"
	"github.com/crimson-sun/logkey/internal/engine"
	"github.com/crimson-sun/logkey/internal/engine/nn"
	"github.com/crimson-sun/logkey/internal/model"
	"github.com/crimson-sun/logkey/internal/output"
	"github.com/crimson-sun/logkey/internal/output/file"
	"github.com/crimson-sun/logkey/internal/output/multi"
)

// Train fits a model to the given event sequences and writes its checkpoint.
// Sequences are concatenated before windowing unless WithPerSequence is set.
func Train(ctx context.Context, sequences [][]int, opts ...Option) (Result, error) {
	streams := make([]model.EventStream, len(sequences))
	for i, seq := range sequences {
		streams[i] = model.EventStream{Source: fmt.Sprintf("seq#%d", i), Events: seq}
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return train(ctx, streams, o)
}

// TrainFile reads event sequences from a structured CSV table (default) or a
// session file (WithSessions) and trains on them.
func TrainFile(ctx context.Context, path string, opts ...Option) (Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctor, err := connector.Get(o.source)
	if err != nil {
		return Result{}, fmt.Errorf("logkey: %w", err)
	}
	streams, err := ctor().Load(ctx, connector.ConnectorConfig{
		Provider: o.source,
		Path:     path,
		Column:   o.column,
		IDOffset: o.idOffset,
	})
	if err != nil {
		return Result{}, fmt.Errorf("logkey: %w", err)
	}
	return train(ctx, streams, o)
}

func train(ctx context.Context, streams []model.EventStream, o options) (Result, error) {
	eng, err := engine.New(engine.Options{
		Window: o.windowSize,
		Mode:   o.mode,
		Model: nn.Config{
			InputSize:  1,
			HiddenSize: o.hiddenSize,
			NumLayers:  o.numLayers,
			NumClasses: o.numClasses,
		},
		Epochs:       o.epochs,
		BatchSize:    o.batchSize,
		LearningRate: o.learningRate,
		Shuffle:      true,
		Seed:         o.seed,
		Workers:      o.workers,
		Device:       "cpu",
		ModelDir:     o.modelDir,
	})
	if err != nil {
		return Result{}, fmt.Errorf("logkey: %w", err)
	}

	var sinks []output.Output
	if o.progress != nil {
		sinks = append(sinks, progressOutput(o.progress))
	}
	if o.metricsFile != "" {
		fo, err := file.New(o.metricsFile)
		if err != nil {
			return Result{}, fmt.Errorf("logkey: %w", err)
		}
		sinks = append(sinks, fo)
	}
	sink := multi.New(sinks...)

	rep, err := eng.Train(ctx, streams, sink)
	if closeErr := sink.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return Result{}, fmt.Errorf("logkey: %w", err)
	}
	return Result{
		RunID:      rep.RunID,
		Samples:    rep.Samples,
		Epochs:     rep.Epochs,
		Steps:      rep.Steps,
		Losses:     rep.Losses,
		FinalLoss:  rep.FinalLoss,
		Checkpoint: rep.Checkpoint,
		Duration:   rep.Duration,
	}, nil
}

// progressOutput adapts a callback to the metric sink interface.
type progressOutput func(Epoch)

func (f progressOutput) Write(_ context.Context, m model.EpochMetric) error {
	f(Epoch{Epoch: m.Epoch, Epochs: m.Epochs, Loss: m.Loss, Duration: m.Duration})
	return nil
}

func (f progressOutput) Close() error { return nil }

// Model is a trained next-event model loaded from a checkpoint.
type Model struct {
	net    *nn.Model
	window int
}

// Load reads a checkpoint written by Train.
func Load(path string) (*Model, error) {
	net, window, err := engine.LoadModel(path)
	if err != nil {
		return nil, fmt.Errorf("logkey: %w", err)
	}
	return &Model{net: net, window: window}, nil
}

// Window returns the number of events the model expects per prediction.
func (m *Model) Window() int { return m.window }

// NumClasses returns the vocabulary size.
func (m *Model) NumClasses() int { return m.net.Config().NumClasses }

// Predict scores every identifier as the event following window and returns
// the k most likely, best first. Ties are broken by identifier.
func (m *Model) Predict(window []int, k int) ([]Candidate, error) {
	if len(window) != m.window {
		return nil, fmt.Errorf("logkey: window has %d events, model expects %d", len(window), m.window)
	}
	x, err := nn.FromWindows(window, m.window)
	if err != nil {
		return nil, fmt.Errorf("logkey: %w", err)
	}
	logits, err := m.net.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("logkey: %w", err)
	}

	row := logits.RawRowView(0)
	lse := floats.LogSumExp(row)
	cands := make([]Candidate, len(row))
	for i, v := range row {
		cands[i] = Candidate{Event: i, Probability: math.Exp(v - lse)}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		return cands[a].Probability > cands[b].Probability
	})
	k = max(0, min(k, len(cands)))
	return cands[:k], nil
}
