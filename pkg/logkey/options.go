package logkey

import "github.com/crimson-sun/logkey/internal/engine/dataset"

type options struct {
	windowSize   int
	hiddenSize   int
	numLayers    int
	numClasses   int
	epochs       int
	batchSize    int
	learningRate float64
	seed         int64
	workers      int
	mode         dataset.Mode
	modelDir     string
	metricsFile  string
	progress     func(Epoch)

	// file sources
	source   string
	column   string
	idOffset int
}

// Option configures a training run.
type Option func(*options)

// WithWindowSize sets the number of events per input window. Default: 10.
func WithWindowSize(n int) Option {
	return func(o *options) { o.windowSize = n }
}

// WithHiddenSize sets the LSTM hidden size. Default: 64.
func WithHiddenSize(n int) Option {
	return func(o *options) { o.hiddenSize = n }
}

// WithNumLayers sets the number of stacked LSTM layers. Default: 2.
func WithNumLayers(n int) Option {
	return func(o *options) { o.numLayers = n }
}

// WithNumClasses sets the vocabulary size. Every event identifier must lie
// in [0, n). Default: 43.
func WithNumClasses(n int) Option {
	return func(o *options) { o.numClasses = n }
}

// WithEpochs sets the number of passes over the data. Default: 300.
func WithEpochs(n int) Option {
	return func(o *options) { o.epochs = n }
}

// WithBatchSize sets the mini-batch size. Default: 2048.
func WithBatchSize(n int) Option {
	return func(o *options) { o.batchSize = n }
}

// WithLearningRate sets the Adam learning rate. Default: 0.001.
func WithLearningRate(lr float64) Option {
	return func(o *options) { o.learningRate = lr }
}

// WithSeed makes initialisation and shuffling reproducible. 0 (default)
// seeds from the clock.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithWorkers sets the number of gradient shards per step. 0 (default) uses
// every core.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithPerSequence windows every sequence on its own instead of concatenating
// them, so no window spans two sequences.
func WithPerSequence() Option {
	return func(o *options) { o.mode = dataset.ModePerStream }
}

// WithModelDir sets the checkpoint directory. Default: "model".
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithMetricsFile appends one JSON line per epoch to path.
func WithMetricsFile(path string) Option {
	return func(o *options) { o.metricsFile = path }
}

// WithProgress calls f after every epoch.
func WithProgress(f func(Epoch)) Option {
	return func(o *options) { o.progress = f }
}

// WithSessions makes TrainFile read one whitespace-separated session per
// line instead of a structured CSV table. offset is added to every
// identifier, e.g. -1 for 1-based session files.
func WithSessions(offset int) Option {
	return func(o *options) {
		o.source = "sessions"
		o.idOffset = offset
	}
}

// WithColumn sets the CSV column holding event identifiers. Default: "EventId".
func WithColumn(name string) Option {
	return func(o *options) { o.column = name }
}

func defaultOptions() options {
	return options{
		windowSize:   10,
		hiddenSize:   64,
		numLayers:    2,
		numClasses:   43,
		epochs:       300,
		batchSize:    2048,
		learningRate: 0.001,
		mode:         dataset.ModeGlobal,
		modelDir:     "model",
		source:       "csv",
		column:       "EventId",
	}
}
