package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/text/language"

	"github.com/crimson-sun/logkey/internal/config"
	"github.com/crimson-sun/logkey/internal/connector"
	"github.com/crimson-sun/logkey/internal/engine"
	"github.com/crimson-sun/logkey/internal/logging"
	"github.com/crimson-sun/logkey/internal/output"
	"github.com/crimson-sun/logkey/internal/output/async"
	"github.com/crimson-sun/logkey/internal/output/file"
	"github.com/crimson-sun/logkey/internal/output/multi"
	"github.com/crimson-sun/logkey/internal/output/otelmetric"
	"github.com/crimson-sun/logkey/internal/output/scalardb"
	"github.com/crimson-sun/logkey/internal/output/stdout"
	"github.com/crimson-sun/logkey/internal/output/webhook"
	"github.com/crimson-sun/logkey/internal/pipeline"

	// Register connector implementations.
	_ "github.com/crimson-sun/logkey/internal/connector/csvfile"
	_ "github.com/crimson-sun/logkey/internal/connector/sessions"
)

// flags holds command-line overrides. Only flags set explicitly are applied.
type flags struct {
	config     string
	windowSize int
	hiddenSize int
	numLayers  int
	epochs     int
	batchSize  int
	input      string
	source     string
	device     string
	seed       int64
}

func parseFlags(fs *flag.FlagSet, args []string) (flags, map[string]bool, error) {
	var f flags
	fs.StringVar(&f.config, "config", "", "YAML config file applied over LOGKEY_* settings")
	fs.IntVar(&f.windowSize, "window_size", 10, "events per input window")
	fs.IntVar(&f.hiddenSize, "hidden_size", 64, "LSTM hidden size")
	fs.IntVar(&f.numLayers, "num_layers", 2, "number of stacked LSTM layers")
	fs.IntVar(&f.epochs, "epochs", 300, "training epochs")
	fs.IntVar(&f.batchSize, "batch_size", 2048, "mini-batch size")
	fs.StringVar(&f.input, "input", "", "input file (structured CSV or session file)")
	fs.StringVar(&f.source, "source", "", "input format: csv or sessions")
	fs.StringVar(&f.device, "device", "", "compute device: auto, cpu or cuda")
	fs.Int64Var(&f.seed, "seed", 0, "random seed, 0 for time based")
	if err := fs.Parse(args); err != nil {
		return flags{}, nil, err
	}
	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set, nil
}

// apply overlays explicitly set flags on cfg.
func (f flags) apply(cfg *config.Config, set map[string]bool) error {
	if set["config"] {
		if err := cfg.MergeFile(f.config); err != nil {
			return err
		}
	}
	if set["window_size"] {
		cfg.Model.WindowSize = f.windowSize
	}
	if set["hidden_size"] {
		cfg.Model.HiddenSize = f.hiddenSize
	}
	if set["num_layers"] {
		cfg.Model.NumLayers = f.numLayers
	}
	if set["epochs"] {
		cfg.Train.Epochs = f.epochs
	}
	if set["batch_size"] {
		cfg.Train.BatchSize = f.batchSize
	}
	if set["input"] {
		cfg.Source.Path = f.input
	}
	if set["source"] {
		cfg.Source.Provider = f.source
	}
	if set["device"] {
		cfg.Train.Device = f.device
	}
	if set["seed"] {
		cfg.Train.Seed = f.seed
	}
	return nil
}

func main() {
	f, set, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("failed to parse flags: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := f.apply(&cfg, set); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logging.Init(cfg.Output.Format == "json", logging.ParseLevel(cfg.Logging.Level))

	// Set up graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
		cancel()
	}()

	out, err := buildOutput(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}

	opts, err := engine.OptionsFromConfig(cfg)
	if err != nil {
		out.Close()
		log.Fatalf("invalid config: %v", err)
	}
	eng, err := engine.New(opts)
	if err != nil {
		out.Close()
		log.Fatalf("failed to create engine: %v", err)
	}

	ctor, err := connector.Get(cfg.Source.Provider)
	if err != nil {
		out.Close()
		log.Fatalf("failed to get connector: %v", err)
	}

	p := pipeline.New(ctor(), eng, out)
	logging.Component("cli").Info("logkey starting",
		"source", cfg.Source.Provider, "input", cfg.Source.Path, "run", cfg.RunName(), "run_id", eng.RunID())

	_, runErr := p.Run(ctx, connector.ConnectorConfig{
		Provider: cfg.Source.Provider,
		Path:     cfg.Source.Path,
		Column:   cfg.Source.Column,
		IDOffset: cfg.Source.IDOffset,
	})
	closeErr := p.Close()
	if err := errors.Join(runErr, closeErr); err != nil {
		log.Fatalf("pipeline error: %v", err)
	}
}

// buildOutput assembles the console sink plus every configured metric sink.
func buildOutput(ctx context.Context, cfg config.Config) (output.Output, error) {
	var stdoutOpts []stdout.Option
	if cfg.Output.Summary {
		stdoutOpts = append(stdoutOpts, stdout.WithSummary(language.English))
	}
	outs := []output.Output{stdout.New(cfg.Output.Format, stdoutOpts...)}

	closeAll := func(err error) (output.Output, error) {
		multi.New(outs...).Close()
		return nil, err
	}

	if cfg.Output.ScalarDB {
		path := filepath.Join(cfg.Output.LogDir, cfg.RunName(), "scalars.db")
		db, err := scalardb.Open(ctx, path, cfg.RunName())
		if err != nil {
			return closeAll(err)
		}
		outs = append(outs, db)
	}
	if cfg.Output.MetricsFile != "" {
		fo, err := file.New(cfg.Output.MetricsFile, file.WithFlushEach(), file.WithMaxSize(cfg.Output.MetricsMaxBytes))
		if err != nil {
			return closeAll(err)
		}
		outs = append(outs, fo)
	}
	if cfg.Output.WebhookURL != "" {
		wh := webhook.New(cfg.Output.WebhookURL,
			webhook.WithHeaders(cfg.Output.WebhookHeaders),
			webhook.WithTimeout(cfg.Output.WebhookTimeout),
			webhook.WithBackoff(cfg.Output.WebhookBackoff),
		)
		whLog := logging.Component("webhook")
		outs = append(outs, async.New(wh,
			async.WithOnError(func(err error) { whLog.Warn("epoch metric not delivered", "error", err) }),
			async.WithDrainTimeout(2*cfg.Output.WebhookTimeout),
		))
	}
	if cfg.Output.OTLPEndpoint != "" {
		var otelOpts []otelmetric.Option
		if cfg.Output.OTLPInsecure {
			otelOpts = append(otelOpts, otelmetric.WithInsecure())
		}
		om, err := otelmetric.New(ctx, cfg.Output.OTLPEndpoint, otelOpts...)
		if err != nil {
			return closeAll(err)
		}
		outs = append(outs, om)
	}
	return multi.New(outs...), nil
}
