package logkey_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/crimson-sun/logkey/pkg/logkey"
)

func Example() {
	dir, err := os.MkdirTemp("", "logkey-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	// A session that repeats 0 1 2 3.
	session := make([]int, 80)
	for i := range session {
		session[i] = i % 4
	}

	res, err := logkey.Train(context.Background(), [][]int{session},
		logkey.WithWindowSize(3),
		logkey.WithHiddenSize(8),
		logkey.WithNumLayers(1),
		logkey.WithNumClasses(4),
		logkey.WithEpochs(100),
		logkey.WithBatchSize(16),
		logkey.WithLearningRate(0.05),
		logkey.WithSeed(1),
		logkey.WithModelDir(dir),
	)
	if err != nil {
		log.Fatal(err)
	}

	m, err := logkey.Load(res.Checkpoint)
	if err != nil {
		log.Fatal(err)
	}
	next, err := m.Predict([]int{1, 2, 3}, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("samples:", res.Samples)
	fmt.Println("next:", next[0].Event)
	// Output:
	// samples: 77
	// next: 0
}
