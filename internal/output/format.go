package output

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crimson-sun/logkey/internal/model"
)

// FormatLine renders the console progress line, e.g.
// "Epoch [3/300], Train_loss: 0.1234".
func FormatLine(m model.EpochMetric) string {
	return fmt.Sprintf("Epoch [%d/%d], Train_loss: %.4f", m.Epoch, m.Epochs, m.Loss)
}

// FormatSummary renders the epoch's size and timing with locale-aware digit
// grouping, e.g. "12,345 samples, 7 steps, 1.25s".
func FormatSummary(m model.EpochMetric, tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("%d samples, %d steps, %.2fs", m.Samples, m.Steps, m.Duration.Seconds())
}
