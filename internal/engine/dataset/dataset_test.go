package dataset

import (
	"errors"
	"reflect"
	"testing"

	"github.com/crimson-sun/logkey/internal/engine/testdata"
	"github.com/crimson-sun/logkey/internal/model"
)

func stream(events ...int) model.EventStream {
	return model.EventStream{Source: "test", Events: events}
}

func TestBuildExample(t *testing.T) {
	ds, err := Build([]model.EventStream{stream(0, 1, 2, 3, 4)}, 3, ModeGlobal)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d samples, want 2", ds.Len())
	}

	want := []struct {
		window []int
		target int
	}{
		{[]int{0, 1, 2}, 3},
		{[]int{1, 2, 3}, 4},
	}
	for k, w := range want {
		window, target := ds.Sample(k)
		if !reflect.DeepEqual(window, w.window) || target != w.target {
			t.Errorf("sample %d = (%v -> %d), want (%v -> %d)", k, window, target, w.window, w.target)
		}
	}
}

func TestBuildShortStream(t *testing.T) {
	tests := []struct {
		name   string
		events []int
		window int
	}{
		{"shorter than window", []int{1, 2, 3}, 10},
		{"equal to window", []int{1, 2, 3}, 3},
		{"empty", nil, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Build([]model.EventStream{stream(tt.events...)}, tt.window, ModeGlobal)
			if err != nil {
				t.Fatalf("Build error: %v", err)
			}
			if ds.Len() != 0 {
				t.Errorf("got %d samples, want 0", ds.Len())
			}
		})
	}
}

func TestBuildRejectsWindow(t *testing.T) {
	for _, w := range []int{0, -3} {
		if _, err := Build([]model.EventStream{stream(1, 2, 3)}, w, ModeGlobal); !errors.Is(err, ErrWindow) {
			t.Errorf("Build(window=%d) error = %v, want ErrWindow", w, err)
		}
	}
}

func TestBuildGlobalCrossesStreams(t *testing.T) {
	streams := []model.EventStream{stream(0, 1), stream(2, 3, 4)}

	ds, err := Build(streams, 2, ModeGlobal)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	// Concatenated stream 0 1 2 3 4 yields 3 samples.
	if ds.Len() != 3 {
		t.Fatalf("got %d samples, want 3", ds.Len())
	}
	window, target := ds.Sample(0)
	if !reflect.DeepEqual(window, []int{0, 1}) || target != 2 {
		t.Errorf("sample 0 = (%v -> %d), want ([0 1] -> 2)", window, target)
	}
}

func TestBuildPerStreamKeepsBoundaries(t *testing.T) {
	streams := []model.EventStream{stream(0, 1), stream(2, 3, 4), stream(5, 6, 7, 8)}

	ds, err := Build(streams, 2, ModePerStream)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	// 0 + 1 + 2 samples; nothing from the first stream.
	if ds.Len() != 3 {
		t.Fatalf("got %d samples, want 3", ds.Len())
	}
	want := []struct {
		window []int
		target int
	}{
		{[]int{2, 3}, 4},
		{[]int{5, 6}, 7},
		{[]int{6, 7}, 8},
	}
	for k, w := range want {
		window, target := ds.Sample(k)
		if !reflect.DeepEqual(window, w.window) || target != w.target {
			t.Errorf("sample %d = (%v -> %d), want (%v -> %d)", k, window, target, w.window, w.target)
		}
	}
}

func TestBuildSessionsFixture(t *testing.T) {
	streams := []model.EventStream{testdata.Cyclic(25, 4), testdata.Constant(8, 2)}

	ds, err := Build(streams, 10, ModePerStream)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if ds.Len() != 15 {
		t.Errorf("got %d samples, want 15", ds.Len())
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"global", ModeGlobal, false},
		{"", ModeGlobal, false},
		{"per_stream", ModePerStream, false},
		{"session", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
	if ModePerStream.String() != "per_stream" || ModeGlobal.String() != "global" {
		t.Error("Mode.String round trip failed")
	}
}
