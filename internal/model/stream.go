package model

// EventStream is an ordered sequence of event identifiers produced by connectors
// and consumed by the dataset builder. Streams are not modified after loading.
type EventStream struct {
	Source string // file name, or file name plus session index
	Events []int  // event identifiers, 0-indexed
}

// Len returns the number of events in the stream.
func (s EventStream) Len() int {
	return len(s.Events)
}
