//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"bkalan/domain"
	"bkalan/domain/event"
	"context"
	"reflect"
)

// LiveDialer opens the persistent channel of one participant.
// An error means the channel never opened, the caller falls back.
type LiveDialer interface {
	Dial(ctx context.Context, displayName string) (LiveChannel, error)
}

// LiveChannel is an open bidirectional connection to the chat endpoint.
// Receive blocks until a frame arrives or the channel is closed.
type LiveChannel interface {
	Receive() (event.Frame, error)
	Send(body string) error
	Close() error
}

// FallbackChannel is the stateless request/response path of the chat API.
type FallbackChannel interface {
	FetchAll(ctx context.Context) ([]domain.ChatMessage, error)
	Send(ctx context.Context, message domain.ChatMessage) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives frames for one live participant.
type EventSink interface {
	Consume(ctx context.Context, frame event.Frame) error
}

type IRegistry interface {
	Subscribe(connID, user string, sink EventSink)
	Unsubscribe(connID string) (string, bool)
	Sinks(except string) []EventSink
	Count() int
}

// Broadcaster delivers a frame to every live participant, possibly across
// server instances.
type Broadcaster interface {
	Publish(ctx context.Context, broadcast event.Broadcast) error
}
