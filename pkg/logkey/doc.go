// Package logkey trains next-event models over log key sequences: a stacked
// LSTM that reads a window of event identifiers and scores every identifier
// of the vocabulary as the next one.
//
// Quick start:
//
//	res, err := logkey.Train(ctx, sessions,
//	    logkey.WithWindowSize(10),
//	    logkey.WithEpochs(50),
//	    logkey.WithModelDir("model"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m, _ := logkey.Load(res.Checkpoint)
//	next, _ := m.Predict(window, 9)
//	fmt.Println(next[0].Event, next[0].Probability)
//
// Training uses every available core. A loaded Model is safe for concurrent
// Predict calls.
package logkey
