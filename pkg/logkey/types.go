package logkey

import "time"

// Epoch reports one completed training epoch.
type Epoch struct {
	Epoch    int           `json:"epoch"`  // 1-based
	Epochs   int           `json:"epochs"` // total in the run
	Loss     float64       `json:"loss"`   // accumulated step loss / samples
	Duration time.Duration `json:"duration_ns"`
}

// Result summarises a finished training run.
type Result struct {
	RunID      string        `json:"run_id"`
	Samples    int           `json:"samples"`
	Epochs     int           `json:"epochs"`
	Steps      int           `json:"steps"`
	Losses     []float64     `json:"losses"`
	FinalLoss  float64       `json:"final_loss"`
	Checkpoint string        `json:"checkpoint"`
	Duration   time.Duration `json:"duration_ns"`
}

// Candidate is a scored next-event prediction.
type Candidate struct {
	Event       int     `json:"event"`
	Probability float64 `json:"probability"`
}
