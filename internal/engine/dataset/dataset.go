// Package dataset turns event streams into (window, next event) samples and
// serves them to the training loop as shuffled mini-batches.
package dataset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/crimson-sun/logkey/internal/logging"
	"github.com/crimson-sun/logkey/internal/model"
)

// Mode selects how multiple streams are windowed.
type Mode int

const (
	// ModeGlobal concatenates all streams into one and windows across it.
	ModeGlobal Mode = iota
	// ModePerStream windows each stream on its own; no window crosses a
	// stream boundary.
	ModePerStream
)

// ParseMode maps "global" and "per_stream" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "global", "":
		return ModeGlobal, nil
	case "per_stream":
		return ModePerStream, nil
	default:
		return 0, fmt.Errorf("dataset: unknown windowing mode %q", s)
	}
}

func (m Mode) String() string {
	if m == ModePerStream {
		return "per_stream"
	}
	return "global"
}

// ErrWindow is returned for a non-positive window size.
var ErrWindow = errors.New("dataset: window size must be positive")

// Dataset holds every window sample of a run. Windows are stored row-major:
// sample k's window is windows[k*Window : (k+1)*Window].
type Dataset struct {
	Window  int
	windows []int
	targets []int
}

// Build slides a window of the given size over the streams one position at a
// time. A stream of length L contributes max(L-window, 0) samples, in stream
// order. Identifiers are not checked against the vocabulary.
func Build(streams []model.EventStream, window int, mode Mode) (*Dataset, error) {
	if window <= 0 {
		return nil, ErrWindow
	}

	ds := &Dataset{Window: window}
	switch mode {
	case ModeGlobal:
		var all []int
		for _, s := range streams {
			all = append(all, s.Events...)
		}
		ds.add(all)
	case ModePerStream:
		for _, s := range streams {
			ds.add(s.Events)
		}
	default:
		return nil, fmt.Errorf("dataset: unknown mode %d", mode)
	}

	logging.Component("dataset").Info("Number of seqs", "count", ds.Len(), "streams", len(streams), "mode", mode.String())
	return ds, nil
}

func (d *Dataset) add(events []int) {
	n := len(events) - d.Window
	if n <= 0 {
		return
	}
	d.windows = slices.Grow(d.windows, n*d.Window)
	d.targets = slices.Grow(d.targets, n)
	for i := 0; i < n; i++ {
		d.windows = append(d.windows, events[i:i+d.Window]...)
		d.targets = append(d.targets, events[i+d.Window])
	}
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.targets)
}

// Sample returns the window and target at index k. The window aliases the
// dataset's storage and must not be modified.
func (d *Dataset) Sample(k int) (window []int, target int) {
	return d.windows[k*d.Window : (k+1)*d.Window], d.targets[k]
}
