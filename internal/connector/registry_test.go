package connector

import (
	"context"
	"testing"

	"github.com/crimson-sun/logkey/internal/model"
)

type stubConnector struct{}

func (stubConnector) Load(context.Context, ConnectorConfig) ([]model.EventStream, error) {
	return nil, nil
}

func TestRegisterAndGet(t *testing.T) {
	Register("stub", func() Connector { return stubConnector{} })
	defer delete(registry, "stub")

	ctor, err := Get("stub")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if _, ok := ctor().(stubConnector); !ok {
		t.Fatal("constructor returned unexpected type")
	}

	found := false
	for _, name := range Providers() {
		if name == "stub" {
			found = true
		}
	}
	if !found {
		t.Errorf("Providers() = %v, missing stub", Providers())
	}
}

func TestGetUnknown(t *testing.T) {
	if _, err := Get("kafka"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestParseEventID(t *testing.T) {
	tests := []struct {
		field   string
		offset  int
		want    int
		wantErr bool
	}{
		{"5", 0, 5, false},
		{" 12 ", 0, 12, false},
		{"E7", 0, 7, false},
		{"e7", -1, 6, false},
		{"1", -1, 0, false},
		{"0", -1, 0, true},
		{"E", 0, 0, true},
		{"abc", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseEventID(tt.field, tt.offset)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEventID(%q, %d) error = %v, wantErr %v", tt.field, tt.offset, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEventID(%q, %d) = %d, want %d", tt.field, tt.offset, got, tt.want)
		}
	}
}
