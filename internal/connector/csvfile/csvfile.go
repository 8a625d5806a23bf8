package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/logkey/internal/connector"
	"github.com/crimson-sun/logkey/internal/model"
)

const defaultColumn = "EventId"

func init() {
	connector.Register("csv", func() connector.Connector {
		return &Connector{}
	})
}

// Connector reads a structured log table (one parsed log line per row) and
// returns the identifier column as a single event stream.
type Connector struct{}

// Load implements connector.Connector.
func (c *Connector) Load(ctx context.Context, cfg connector.ConnectorConfig) ([]model.EventStream, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("csv connector: %w", err)
	}
	defer f.Close()

	column := cfg.Column
	if column == "" {
		column = defaultColumn
	}

	events, err := readColumn(ctx, f, column, cfg.IDOffset)
	if err != nil {
		return nil, fmt.Errorf("csv connector: %s: %w", cfg.Path, err)
	}

	slog.Debug("csv stream loaded", "path", cfg.Path, "column", column, "events", len(events))
	return []model.EventStream{{Source: filepath.Base(cfg.Path), Events: events}}, nil
}

// readColumn parses every row of r and collects the named column.
func readColumn(ctx context.Context, r io.Reader, column string, offset int) ([]int, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, name := range header {
		if strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("column %q not found in header %v", column, header)
	}

	var events []int
	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if idx >= len(rec) {
			return nil, fmt.Errorf("line %d: missing column %q", line, column)
		}
		id, err := connector.ParseEventID(rec[idx], offset)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, id)
	}
	return events, nil
}
