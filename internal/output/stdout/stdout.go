package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/language"

	"github.com/crimson-sun/logkey/internal/model"
	"github.com/crimson-sun/logkey/internal/output"
)

// Option configures a stdout Output.
type Option func(*Output)

// WithWriter replaces os.Stdout as the destination.
func WithWriter(w io.Writer) Option {
	return func(o *Output) { o.w = w }
}

// WithSummary appends sample/step counts and epoch duration to each text
// line, formatted for the given locale.
func WithSummary(tag language.Tag) Option {
	return func(o *Output) { o.summary, o.tag = true, tag }
}

// Output writes one line per epoch to stdout: the console progress line in
// text mode, or the JSON-encoded metric in json mode.
type Output struct {
	w       io.Writer
	json    bool
	summary bool
	tag     language.Tag
}

// New creates a stdout Output. format is "text" or "json".
func New(format string, opts ...Option) *Output {
	o := &Output{w: os.Stdout, json: format == "json"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Output) Write(_ context.Context, m model.EpochMetric) error {
	if o.json {
		if err := json.NewEncoder(o.w).Encode(m); err != nil {
			return fmt.Errorf("stdout output: %w", err)
		}
		return nil
	}
	line := output.FormatLine(m)
	if o.summary {
		line += " (" + output.FormatSummary(m, o.tag) + ")"
	}
	if _, err := fmt.Fprintln(o.w, line); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
