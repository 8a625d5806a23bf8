package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/logkey/internal/model"
)

func testMetric(epoch, epochs int) model.EpochMetric {
	return model.EpochMetric{
		RunID:     "run-1",
		Tag:       "train_loss",
		Epoch:     epoch,
		Epochs:    epochs,
		Loss:      0.75,
		Timestamp: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
	}
}

// recorder collects every payload posted to it.
type recorder struct {
	mu       sync.Mutex
	payloads []Payload
	headers  []http.Header
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	var p Payload
	json.Unmarshal(body, &p)
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.headers = append(r.headers, req.Header.Clone())
	r.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func TestPostsEachEpochOnArrival(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	out := New(srv.URL)
	for e := 1; e <= 3; e++ {
		if err := out.Write(context.Background(), testMetric(e, 3)); err != nil {
			t.Fatalf("Write epoch %d: %v", e, err)
		}
		rec.mu.Lock()
		got := len(rec.payloads)
		rec.mu.Unlock()
		if got != e {
			t.Fatalf("after epoch %d server saw %d posts", e, got)
		}
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{EventEpoch, EventEpoch, EventFinished}
	for i, p := range rec.payloads {
		if p.Event != want[i] {
			t.Errorf("post %d event = %q, want %q", i, p.Event, want[i])
		}
		if p.Metric.Epoch != i+1 || p.Metric.Loss != 0.75 || p.Metric.RunID != "run-1" {
			t.Errorf("post %d metric = %+v", i, p.Metric)
		}
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBackoff(10*time.Millisecond))
	if err := out.Write(context.Background(), testMetric(1, 1)); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(400)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBackoff(time.Millisecond))
	if err := out.Write(context.Background(), testMetric(1, 2)); err == nil {
		t.Error("expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for 4xx, got %d", attempts.Load())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(503)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBackoff(time.Millisecond))
	if err := out.Write(context.Background(), testMetric(1, 1)); err == nil {
		t.Fatal("expected error after retries are exhausted")
	}
	if attempts.Load() != maxRetries+1 {
		t.Errorf("got %d attempts, want %d", attempts.Load(), maxRetries+1)
	}
}

func TestCancelStopsRetries(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(503)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := New(srv.URL, WithBackoff(time.Hour))
	start := time.Now()
	if err := out.Write(ctx, testMetric(1, 1)); err == nil {
		t.Fatal("expected error when ctx expires during backoff")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Write did not return promptly after ctx expired")
	}
	if attempts.Load() != 1 {
		t.Errorf("got %d attempts, want 1", attempts.Load())
	}
}

func TestCustomHeaders(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	out := New(srv.URL, WithHeaders(map[string]string{"Authorization": "Bearer secret123"}))
	if err := out.Write(context.Background(), testMetric(1, 1)); err != nil {
		t.Fatal(err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if got := rec.headers[0].Get("Authorization"); got != "Bearer secret123" {
		t.Errorf("Authorization = %q, want Bearer secret123", got)
	}
	if got := rec.headers[0].Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	out := New(srv.URL, WithTimeout(50*time.Millisecond))
	if err := out.Write(context.Background(), testMetric(1, 1)); err == nil {
		t.Fatal("expected timeout error")
	}
}
