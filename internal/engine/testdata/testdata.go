// Package testdata provides small event-identifier fixtures for tests:
// an embedded structured log table, an embedded session file, and
// generators for synthetic streams with known structure.
package testdata

import (
	_ "embed"
	"math/rand"

	"github.com/crimson-sun/logkey/internal/model"
)

// StructuredCSV is a 120-row HDFS DataNode table in parsed-log layout with an
// integer EventId column.
//
//go:embed structured.csv
var StructuredCSV []byte

// StructuredRows is the number of data rows in StructuredCSV.
const StructuredRows = 120

// SessionsText holds one HDFS block session per line with 1-based event ids.
//
//go:embed sessions.txt
var SessionsText []byte

// SessionCount is the number of sessions in SessionsText.
const SessionCount = 12

// Cyclic returns a stream of length n that repeats 0, 1, ..., period-1.
// The next event is fully determined by the previous one.
func Cyclic(n, period int) model.EventStream {
	events := make([]int, n)
	for i := range events {
		events[i] = i % period
	}
	return model.EventStream{Source: "cyclic", Events: events}
}

// Constant returns a stream of n copies of id.
func Constant(n, id int) model.EventStream {
	events := make([]int, n)
	for i := range events {
		events[i] = id
	}
	return model.EventStream{Source: "constant", Events: events}
}

// Random returns a seeded uniform stream over [0, classes).
func Random(n, classes int, seed int64) model.EventStream {
	rng := rand.New(rand.NewSource(seed))
	events := make([]int, n)
	for i := range events {
		events[i] = rng.Intn(classes)
	}
	return model.EventStream{Source: "random", Events: events}
}
