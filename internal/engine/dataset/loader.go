package dataset

import (
	"context"
	"math/rand"
)

const prefetch = 4

// Batch is a mini-batch of samples. Inputs is row-major with Size rows of
// Window identifiers each.
type Batch struct {
	Inputs  []int
	Targets []int
	Window  int
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return len(b.Targets)
}

// Loader serves a Dataset as mini-batches. The final batch of an epoch holds
// the remainder and may be smaller than the batch size.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
}

// NewLoader creates a Loader. When shuffle is set, each epoch draws a fresh
// permutation from rng.
func NewLoader(ds *Dataset, batchSize int, shuffle bool, rng *rand.Rand) *Loader {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Loader{ds: ds, batchSize: batchSize, shuffle: shuffle, rng: rng}
}

// Len returns the number of batches per epoch.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Samples returns the number of samples per epoch.
func (l *Loader) Samples() int {
	return l.ds.Len()
}

// Epoch starts a producer goroutine that assembles the epoch's batches ahead
// of the consumer. The channel is closed after the last batch or when ctx is
// done. The order is fixed before the goroutine starts, so consecutive calls
// consume rng deterministically.
func (l *Loader) Epoch(ctx context.Context) <-chan Batch {
	order := l.order()
	ch := make(chan Batch, prefetch)
	go func() {
		defer close(ch)
		for start := 0; start < len(order); start += l.batchSize {
			if ctx.Err() != nil {
				return
			}
			end := min(start+l.batchSize, len(order))
			b := l.assemble(order[start:end])
			select {
			case ch <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (l *Loader) order() []int {
	n := l.ds.Len()
	if l.shuffle && l.rng != nil {
		return l.rng.Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func (l *Loader) assemble(idx []int) Batch {
	w := l.ds.Window
	b := Batch{
		Inputs:  make([]int, 0, len(idx)*w),
		Targets: make([]int, 0, len(idx)),
		Window:  w,
	}
	for _, k := range idx {
		window, target := l.ds.Sample(k)
		b.Inputs = append(b.Inputs, window...)
		b.Targets = append(b.Targets, target)
	}
	return b
}
