// Package session keeps one participant connected to the chat and owns the
// ordered view of the conversation.
//
// Every input (user actions, live frames, HTTP results, timers) becomes an
// event consumed by a single goroutine, Run. Only that goroutine mutates the
// session state and the message log; blocking I/O runs in helper goroutines
// that post their result back.
package session

import (
	"bkalan/contract"
	"bkalan/domain"
	"bkalan/errors"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

type Config struct {
	// ConnectTimeout bounds the live channel handshake.
	ConnectTimeout time.Duration
	// RequestTimeout bounds each history fetch and fallback send.
	RequestTimeout time.Duration
	// ResyncDelay is the wait between a fallback send and its resync.
	ResyncDelay time.Duration
	// PollInterval resyncs periodically under the fallback transport, 0 disables.
	PollInterval time.Duration
	InboxSize    int
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 10 * time.Second,
		ResyncDelay:    time.Second,
		InboxSize:      64,
	}
}

type phase int

const (
	phaseIdle phase = iota
	phaseConnecting
	phaseConnected
)

type Session struct {
	log      *slog.Logger
	dialer   contract.LiveDialer
	fallback contract.FallbackChannel
	config   Config
	now      func() time.Time

	inbox     chan envelope
	updates   chan domain.Snapshot
	started   chan struct{}
	done      chan struct{}
	running   atomic.Bool
	published atomic.Pointer[domain.Snapshot]

	// Owned by the Run goroutine
	ctx         context.Context
	phase       phase
	state       domain.SessionState
	messages    *domain.MessageLog
	transport   transport
	epoch       uint64
	pending     *connectCmd
	stopPolling func()
	replies     []func()
}

// New builds a disconnected session. A nil dialer stands for an environment
// without live channel support: every connect then uses the fallback.
func New(log *slog.Logger, dialer contract.LiveDialer, fallback contract.FallbackChannel, config Config) *Session {
	defaults := DefaultConfig()
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.ResyncDelay <= 0 {
		config.ResyncDelay = defaults.ResyncDelay
	}
	if config.InboxSize <= 0 {
		config.InboxSize = defaults.InboxSize
	}
	s := &Session{
		log:       log,
		dialer:    dialer,
		fallback:  fallback,
		config:    config,
		now:       time.Now,
		inbox:     make(chan envelope, config.InboxSize),
		updates:   make(chan domain.Snapshot, 1),
		started:   make(chan struct{}),
		done:      make(chan struct{}),
		messages:  domain.NewMessageLog(),
		transport: noTransport{},
	}
	s.published.Store(&domain.Snapshot{})
	return s
}

// Run consumes events until ctx is done. It closes any live channel it owns
// before returning. A session runs at most once.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session already running")
	}
	s.ctx = ctx
	close(s.started)
	defer close(s.done)
	defer func() {
		s.reset(errors.ErrSessionClosed)
		s.publish()
		s.flushReplies()
	}()

	s.publish()
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("Stopping chat session")
			return nil
		case env := <-s.inbox:
			s.apply(env)
		}
	}
}

// Connect joins the chat as displayName and returns once the session is
// connected, through the live channel or the fallback. Connecting while
// connected is a no-op. If ctx ends first the attempt keeps going in the
// background and a later State shows its outcome.
func (s *Session) Connect(ctx context.Context, displayName string) (domain.SessionState, error) {
	participant, err := domain.NewParticipant(displayName)
	if err != nil {
		return s.State(), err
	}
	reply := make(chan connectResult, 1)
	if err := s.submit(ctx, connectCmd{participant: participant, reply: reply}); err != nil {
		return s.State(), err
	}
	select {
	case result := <-reply:
		return result.state, result.err
	case <-ctx.Done():
		return s.State(), ctx.Err()
	case <-s.done:
		return s.State(), errors.ErrSessionClosed
	}
}

// Disconnect closes the live channel if any, clears the log and forgets the
// participant. It never fails and may be called any number of times.
func (s *Session) Disconnect() {
	reply := make(chan struct{})
	if err := s.submit(context.Background(), disconnectCmd{reply: reply}); err != nil {
		return
	}
	select {
	case <-reply:
	case <-s.done:
	}
}

// Send publishes one message. Under the fallback transport a failed delivery
// is not an error: the message is echoed locally anyway.
func (s *Session) Send(ctx context.Context, body string) error {
	if err := domain.ValidateBody(body); err != nil {
		return err
	}
	reply := make(chan error, 1)
	if err := s.submit(ctx, sendCmd{body: body, reply: reply}); err != nil {
		return err
	}
	return s.wait(ctx, reply)
}

// Resync replaces the log with the server history now.
func (s *Session) Resync(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.submit(ctx, resyncCmd{reply: reply}); err != nil {
		return err
	}
	return s.wait(ctx, reply)
}

func (s *Session) State() domain.SessionState {
	return s.published.Load().State
}

// Messages returns a copy of the current log.
func (s *Session) Messages() []domain.ChatMessage {
	return append([]domain.ChatMessage(nil), s.published.Load().Messages...)
}

// Updates signals the latest snapshot after each change. Slow readers only
// miss intermediate snapshots.
func (s *Session) Updates() <-chan domain.Snapshot {
	return s.updates
}

func (s *Session) submit(ctx context.Context, evt any) error {
	select {
	case <-s.started:
	default:
		return errors.ErrSessionClosed
	}
	select {
	case s.inbox <- envelope{event: evt}:
		return nil
	case <-s.done:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) wait(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errors.ErrSessionClosed
	}
}

// post hands an adapter or timer result to the loop. It gives up once the
// loop is gone.
func (s *Session) post(epoch uint64, evt any) {
	select {
	case s.inbox <- envelope{epoch: epoch, event: evt}:
	case <-s.done:
	}
}

// publish must only be called from the Run goroutine.
func (s *Session) publish() {
	snapshot := domain.Snapshot{State: s.state, Messages: s.messages.Messages()}
	s.published.Store(&snapshot)
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snapshot:
	default:
	}
}
