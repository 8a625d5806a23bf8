package stdout

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/crimson-sun/logkey/internal/model"
)

func testMetric() model.EpochMetric {
	return model.EpochMetric{
		RunID:     "run-1",
		Tag:       "train_loss",
		Epoch:     1,
		Epochs:    300,
		Loss:      3.7612,
		Samples:   2048,
		Steps:     1,
		Duration:  500 * time.Millisecond,
		Timestamp: time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC),
	}
}

// captureStdout redirects os.Stdout to capture output.
func captureStdout(fn func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	buf.ReadFrom(r)
	return buf.String()
}

func TestOutputTextLine(t *testing.T) {
	result := captureStdout(func() {
		out := New("text")
		out.Write(context.Background(), testMetric())
	})

	if got, want := result, "Epoch [1/300], Train_loss: 3.7612\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestOutputJSON(t *testing.T) {
	result := captureStdout(func() {
		out := New("json")
		out.Write(context.Background(), testMetric())
	})

	lines := strings.Split(strings.TrimSpace(result), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["tag"] != "train_loss" {
		t.Fatalf("expected tag=train_loss, got %v", m["tag"])
	}
	if m["epoch"] != float64(1) {
		t.Fatalf("expected epoch=1, got %v", m["epoch"])
	}
}

func TestOutputSummary(t *testing.T) {
	var buf bytes.Buffer
	out := New("text", WithWriter(&buf), WithSummary(language.English))
	out.Write(context.Background(), testMetric())

	want := "Epoch [1/300], Train_loss: 3.7612 (2,048 samples, 1 steps, 0.50s)\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestOutputMultipleEpochs(t *testing.T) {
	var buf bytes.Buffer
	out := New("text", WithWriter(&buf))
	for e := 1; e <= 3; e++ {
		m := testMetric()
		m.Epoch, m.Epochs = e, 3
		out.Write(context.Background(), m)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[2], "Epoch [3/3]") {
		t.Fatalf("unexpected last line %q", lines[2])
	}
}

func TestOutputClose(t *testing.T) {
	if err := New("text").Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
