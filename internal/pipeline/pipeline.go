package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/crimson-sun/logkey/internal/connector"
	"github.com/crimson-sun/logkey/internal/engine"
	"github.com/crimson-sun/logkey/internal/model"
	"github.com/crimson-sun/logkey/internal/output"
)

// Trainer trains on a set of event streams, reporting each epoch to sink.
// *engine.Engine satisfies it.
type Trainer interface {
	Train(ctx context.Context, streams []model.EventStream, sink output.Output) (engine.Report, error)
}

// Pipeline connects a connector, trainer, and output into one training run.
type Pipeline struct {
	connector connector.Connector
	trainer   Trainer
	output    output.Output
}

// New creates a Pipeline from the given components.
func New(conn connector.Connector, tr Trainer, out output.Output) *Pipeline {
	return &Pipeline{
		connector: conn,
		trainer:   tr,
		output:    out,
	}
}

// Run loads every stream from the source, then trains on them. It blocks
// until training finishes, fails, or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, cfg connector.ConnectorConfig) (engine.Report, error) {
	streams, err := p.connector.Load(ctx, cfg)
	if err != nil {
		return engine.Report{}, fmt.Errorf("pipeline load: %w", err)
	}

	events := 0
	for _, s := range streams {
		events += s.Len()
	}
	slog.Info("streams loaded", "provider", cfg.Provider, "path", cfg.Path, "streams", len(streams), "events", events)

	rep, err := p.trainer.Train(ctx, streams, p.output)
	if err != nil {
		return rep, fmt.Errorf("pipeline train: %w", err)
	}
	return rep, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}
