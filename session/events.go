package session

import (
	"bkalan/contract"
	"bkalan/domain"
	"bkalan/domain/event"
)

// envelope carries one input of the event loop. Adapter and timer events are
// tagged with the epoch they were started in and dropped once the session
// has moved on; user commands ignore the epoch.
type envelope struct {
	epoch uint64
	event any
}

// User commands

type connectCmd struct {
	participant domain.Participant
	reply       chan connectResult
}

type connectResult struct {
	state domain.SessionState
	err   error
}

type disconnectCmd struct {
	reply chan struct{}
}

type sendCmd struct {
	body  string
	reply chan error
}

type resyncCmd struct {
	reply chan error
}

// Adapter and timer events

type liveOpened struct {
	channel contract.LiveChannel
}

// liveFailed is an error before the channel opened, or a dialer that could
// not even be invoked.
type liveFailed struct {
	err error
}

type fetchPurpose int

const (
	purposeSeed fetchPurpose = iota
	purposeResync
)

type historyFetched struct {
	purpose  fetchPurpose
	messages []domain.ChatMessage
	err      error
	reply    chan error
}

type frameReceived struct {
	frame event.Frame
}

type liveClosed struct {
	err error
}

type delivered struct {
	message domain.ChatMessage
	err     error
}

type resyncDue struct{}
