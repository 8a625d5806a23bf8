package sessions

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/logkey/internal/connector"
	"github.com/crimson-sun/logkey/internal/model"
)

const maxLineSize = 16 * 1024 * 1024

func init() {
	connector.Register("sessions", func() connector.Connector {
		return &Connector{}
	})
}

// Connector reads a session file: one session per line, each line a
// whitespace-separated list of event identifiers (e.g. HDFS block sessions).
// Every session becomes its own event stream.
type Connector struct{}

// Load implements connector.Connector.
func (c *Connector) Load(ctx context.Context, cfg connector.ConnectorConfig) ([]model.EventStream, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sessions connector: %w", err)
	}
	defer f.Close()

	base := filepath.Base(cfg.Path)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var streams []model.EventStream
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		events := make([]int, len(fields))
		for i, field := range fields {
			id, err := connector.ParseEventID(field, cfg.IDOffset)
			if err != nil {
				return nil, fmt.Errorf("sessions connector: %s line %d: %w", base, line, err)
			}
			events[i] = id
		}
		streams = append(streams, model.EventStream{
			Source: fmt.Sprintf("%s#%d", base, len(streams)),
			Events: events,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("sessions connector: %w", err)
	}

	slog.Debug("sessions loaded", "path", cfg.Path, "sessions", len(streams))
	return streams, nil
}
