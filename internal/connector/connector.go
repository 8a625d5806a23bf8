package connector

import (
	"context"

	"github.com/crimson-sun/logkey/internal/model"
)

// Connector defines the interface all event stream sources must implement.
type Connector interface {
	// Load reads the configured source once and returns its event streams in
	// source order. A single-table source yields one stream; a session file
	// yields one stream per session.
	Load(ctx context.Context, cfg ConnectorConfig) ([]model.EventStream, error)
}

// ConnectorConfig holds source-specific settings.
type ConnectorConfig struct {
	Provider string
	Path     string
	Column   string // column holding event identifiers, for tabular sources
	IDOffset int    // added to every parsed identifier
}
