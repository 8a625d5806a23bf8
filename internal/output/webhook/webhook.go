package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/crimson-sun/logkey/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = time.Second
	maxRetries     = 3
)

// Event names carried in the payload.
const (
	EventEpoch    = "epoch_end"
	EventFinished = "train_end"
)

// Payload is the JSON body posted for every epoch.
type Payload struct {
	Event  string            `json:"event"`
	Metric model.EpochMetric `json:"metric"`
}

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithTimeout sets the per-request timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) {
		if d > 0 {
			o.client.Timeout = d
		}
	}
}

// WithBackoff sets the delay before the first 5xx retry; it doubles on each
// further attempt. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) {
		if d > 0 {
			o.backoff = d
		}
	}
}

// Output posts one JSON payload per epoch metric as it arrives. The last
// epoch of a run is tagged EventFinished so receivers can close the run
// without waiting for anything else. 5xx responses are retried with
// exponential backoff; other failures are returned to the caller.
type Output struct {
	client  *http.Client
	url     string
	headers map[string]string
	backoff time.Duration
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:  &http.Client{Timeout: defaultTimeout},
		url:     url,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write posts m. It blocks until the endpoint accepts the payload, retries
// run out, or ctx is done.
func (o *Output) Write(ctx context.Context, m model.EpochMetric) error {
	p := Payload{Event: EventEpoch, Metric: m}
	if m.Epochs > 0 && m.Epoch >= m.Epochs {
		p.Event = EventFinished
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return o.post(ctx, body)
}

// Close is a no-op; nothing is buffered.
func (o *Output) Close() error { return nil }

func (o *Output) post(ctx context.Context, body []byte) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: %w (last: %v)", ctx.Err(), lastErr)
			case <-time.After(o.backoff << (attempt - 1)):
			}
		}

		status, err := o.send(ctx, body)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		if status >= 200 && status < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook: HTTP %d", status)
		if status < 500 {
			return lastErr
		}
	}
	return lastErr
}

func (o *Output) send(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
