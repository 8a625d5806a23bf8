package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/crimson-sun/logkey/internal/connector"
	"github.com/crimson-sun/logkey/internal/engine/testdata"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadStructuredTable(t *testing.T) {
	path := writeFile(t, "structured.csv", "LineId,Content,EventId\n1,open,3\n2,\"read, block\",5\n3,close,E7\n")

	streams, err := (&Connector{}).Load(context.Background(), connector.ConnectorConfig{Path: path})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(streams) != 1 {
		t.Fatalf("got %d streams, want 1", len(streams))
	}
	if want := []int{3, 5, 7}; !reflect.DeepEqual(streams[0].Events, want) {
		t.Errorf("events = %v, want %v", streams[0].Events, want)
	}
	if streams[0].Source != "structured.csv" {
		t.Errorf("source = %q, want structured.csv", streams[0].Source)
	}
}

func TestLoadCustomColumnAndOffset(t *testing.T) {
	path := writeFile(t, "keys.csv", "key,other\n1,x\n2,y\n")

	streams, err := (&Connector{}).Load(context.Background(), connector.ConnectorConfig{
		Path: path, Column: "key", IDOffset: -1,
	})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if want := []int{0, 1}; !reflect.DeepEqual(streams[0].Events, want) {
		t.Errorf("events = %v, want %v", streams[0].Events, want)
	}
}

func TestLoadEmbeddedSample(t *testing.T) {
	path := writeFile(t, "sample.csv", string(testdata.StructuredCSV))

	streams, err := (&Connector{}).Load(context.Background(), connector.ConnectorConfig{Path: path})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if streams[0].Len() != testdata.StructuredRows {
		t.Errorf("got %d events, want %d", streams[0].Len(), testdata.StructuredRows)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", "empty file"},
		{"missing column", "LineId,Content\n1,x\n", "not found"},
		{"bad id", "EventId\n1\nfoo\n", "line 3"},
		{"negative", "EventId\n-2\n", "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "bad.csv", tt.body)
			_, err := (&Connector{}).Load(context.Background(), connector.ConnectorConfig{Path: path})
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := (&Connector{}).Load(context.Background(), connector.ConnectorConfig{
		Path: filepath.Join(t.TempDir(), "absent.csv"),
	})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestRegistered(t *testing.T) {
	if _, err := connector.Get("csv"); err != nil {
		t.Fatalf("csv provider not registered: %v", err)
	}
}
