package server

import (
	"bkalan/domain/event"
	"context"
)

// Sink buffers the frames of one live connection until its write pump
// sends them.
type Sink struct {
	frames chan event.Frame
}

func NewSink(bufferSize int) *Sink {
	return &Sink{frames: make(chan event.Frame, bufferSize)}
}

// Consume is called by fanout.
// It waits for room in the buffer until ctx expires.
func (s *Sink) Consume(ctx context.Context, frame event.Frame) error {
	select {
	case s.frames <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
