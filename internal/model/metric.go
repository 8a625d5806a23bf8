package model

import "time"

// EpochMetric is the scalar emitted once per training epoch.
type EpochMetric struct {
	RunID     string        `json:"run_id"`
	Tag       string        `json:"tag"`    // scalar name, e.g. "train_loss"
	Epoch     int           `json:"epoch"`  // 1-based
	Epochs    int           `json:"epochs"` // total epochs in the run
	Loss      float64       `json:"loss"`   // accumulated step loss / samples
	Samples   int           `json:"samples"`
	Steps     int           `json:"steps"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}
