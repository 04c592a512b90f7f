package session

import (
	"bkalan/contract"
	"bkalan/domain"
	"bkalan/errors"
	"context"
	"fmt"
	"time"
)

// apply is the only place the session state changes. Replies to callers are
// queued and released after the new snapshot is published, so a caller
// always observes the state its command produced.
func (s *Session) apply(env envelope) {
	switch evt := env.event.(type) {
	case connectCmd:
		s.onConnect(evt)
	case disconnectCmd:
		s.onDisconnect()
		s.respond(func() { close(evt.reply) })
	case sendCmd:
		err := s.onSend(evt.body)
		s.respond(func() { evt.reply <- err })
	case resyncCmd:
		s.onResync(evt.reply)
	default:
		if env.epoch != s.epoch {
			s.discard(env.event)
			return
		}
		s.onAdapterEvent(env.event)
	}
	s.publish()
	s.flushReplies()
}

func (s *Session) onAdapterEvent(evt any) {
	switch evt := evt.(type) {
	case liveOpened:
		s.transport = liveTransport{channel: evt.channel}
		s.fetch(purposeSeed, nil)
	case liveFailed:
		s.log.Warn("Live channel unavailable, using fallback", "error", evt.err)
		s.transport = fallbackTransport{}
		s.fetch(purposeSeed, nil)
	case historyFetched:
		s.onHistoryFetched(evt)
	case frameReceived:
		message, ok := evt.frame.ChatMessage()
		if !ok {
			s.log.Debug("Ignoring frame", "type", evt.frame.Type)
			return
		}
		s.messages.Append(message)
	case liveClosed:
		s.log.Warn("Live channel closed", "error", evt.err)
		s.reset(errors.ErrNotConnected)
	case delivered:
		s.onDelivered(evt)
	case resyncDue:
		if s.phase == phaseConnected {
			s.fetch(purposeResync, nil)
		}
	default:
		s.log.Debug("Unknown session event", "event", fmt.Sprintf("%T", evt))
	}
}

// discard drops an event of a previous epoch, releasing what it carries.
func (s *Session) discard(evt any) {
	switch evt := evt.(type) {
	case liveOpened:
		s.log.Debug("Closing live channel opened for a dropped connection")
		if err := evt.channel.Close(); err != nil {
			s.log.Debug("Closing stale live channel failed", "error", err)
		}
	case historyFetched:
		if evt.reply != nil {
			evt.reply <- errors.ErrNotConnected
		}
	default:
		s.log.Debug("Dropping stale session event", "event", fmt.Sprintf("%T", evt))
	}
}

func (s *Session) onConnect(cmd connectCmd) {
	switch s.phase {
	case phaseConnected:
		state := s.state
		s.respond(func() { cmd.reply <- connectResult{state: state} })
		return
	case phaseConnecting:
		state := s.state
		s.respond(func() { cmd.reply <- connectResult{state: state, err: errors.ErrConnectInProgress} })
		return
	}

	s.epoch++
	s.phase = phaseConnecting
	s.pending = &cmd
	s.log.Debug("Connecting to chat", "user", cmd.participant.DisplayName)

	if s.dialer == nil {
		s.onAdapterEvent(liveFailed{err: fmt.Errorf("%w: no live dialer", errors.ErrTransportUnavailable)})
		return
	}
	epoch := s.epoch
	name := cmd.participant.DisplayName
	go func() {
		channel, err := s.dial(name)
		if err != nil {
			s.post(epoch, liveFailed{err: err})
			return
		}
		s.post(epoch, liveOpened{channel: channel})
	}()
}

// dial never panics: a dialer that blows up counts as an unavailable live
// channel.
func (s *Session) dial(name string) (channel contract.LiveChannel, err error) {
	defer func() {
		if r := recover(); r != nil {
			channel = nil
			err = fmt.Errorf("%w: dialer panicked: %v", errors.ErrTransportUnavailable, r)
		}
	}()
	ctx, cancel := context.WithTimeout(s.ctx, s.config.ConnectTimeout)
	defer cancel()
	channel, err = s.dialer.Dial(ctx, name)
	if err == nil && channel == nil {
		err = fmt.Errorf("%w: dialer returned no channel", errors.ErrTransportUnavailable)
	}
	return channel, err
}

func (s *Session) onHistoryFetched(evt historyFetched) {
	if evt.err != nil {
		s.log.Warn("Message history unavailable, keeping current log", "error", evt.err)
	} else {
		s.messages.Replace(evt.messages)
	}

	switch evt.purpose {
	case purposeSeed:
		s.completeConnect()
	case purposeResync:
		if evt.reply != nil {
			s.respond(func() { evt.reply <- evt.err })
		}
	}
}

// completeConnect runs once the seed fetch settled, whatever its outcome.
// Live frames are only pumped from here on so the seed never overwrites
// them.
func (s *Session) completeConnect() {
	if s.pending == nil {
		return
	}
	cmd := *s.pending
	s.pending = nil
	participant := cmd.participant

	s.messages.Append(domain.JoinedMessage(participant.DisplayName, s.timestamp()))
	s.phase = phaseConnected
	s.state = domain.SessionState{
		Status:      domain.Connected,
		Transport:   s.transport.kind(),
		Participant: &participant,
	}

	switch t := s.transport.(type) {
	case liveTransport:
		s.receive(t.channel)
	case fallbackTransport:
		s.startPolling()
	}

	state := s.state
	s.log.Info("Connected to chat", "user", participant.DisplayName, "transport", state.Transport)
	s.respond(func() { cmd.reply <- connectResult{state: state} })
}

func (s *Session) receive(channel contract.LiveChannel) {
	epoch := s.epoch
	go func() {
		for {
			frame, err := channel.Receive()
			if err != nil {
				s.post(epoch, liveClosed{err: err})
				return
			}
			s.post(epoch, frameReceived{frame: frame})
		}
	}()
}

func (s *Session) startPolling() {
	if s.config.PollInterval <= 0 {
		return
	}
	epoch := s.epoch
	stop := make(chan struct{})
	s.stopPolling = func() { close(stop) }
	go func() {
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.post(epoch, resyncDue{})
			}
		}
	}()
}

func (s *Session) onDisconnect() {
	if s.phase != phaseIdle {
		s.log.Info("Disconnecting from chat", "user", s.displayName())
	}
	s.reset(errors.ErrNotConnected)
	s.messages.Clear()
}

// reset drops the transport and moves to a new epoch, the message log is left
// to the caller. A pending connect is answered with pendingErr.
func (s *Session) reset(pendingErr error) {
	if s.stopPolling != nil {
		s.stopPolling()
		s.stopPolling = nil
	}
	if t, ok := s.transport.(liveTransport); ok {
		if err := t.channel.Close(); err != nil {
			s.log.Debug("Closing live channel failed", "error", err)
		}
	}
	if s.pending != nil {
		reply := s.pending.reply
		s.respond(func() { reply <- connectResult{err: pendingErr} })
		s.pending = nil
	}
	s.transport = noTransport{}
	s.epoch++
	s.phase = phaseIdle
	s.state = domain.SessionState{}
}

func (s *Session) onSend(body string) error {
	if s.phase != phaseConnected {
		return errors.ErrNotConnected
	}
	message := domain.NewUserMessage(s.displayName(), body, s.timestamp())

	switch t := s.transport.(type) {
	case liveTransport:
		if err := t.channel.Send(body); err != nil {
			s.log.Warn("Live send failed, using fallback", "error", err)
			s.sendFallback(message)
		}
		return nil
	case fallbackTransport:
		s.sendFallback(message)
		return nil
	}
	return errors.ErrNotConnected
}

// sendFallback echoes the message right away. The resync that follows a
// successful delivery replaces the echo by the server copy.
func (s *Session) sendFallback(message domain.ChatMessage) {
	s.messages.Append(message)
	epoch := s.epoch
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.RequestTimeout)
		defer cancel()
		s.post(epoch, delivered{message: message, err: s.fallback.Send(ctx, message)})
	}()
}

func (s *Session) onDelivered(evt delivered) {
	if evt.err != nil {
		s.log.Warn("Message delivery uncertain", "error", evt.err)
		return
	}
	epoch := s.epoch
	time.AfterFunc(s.config.ResyncDelay, func() { s.post(epoch, resyncDue{}) })
}

func (s *Session) onResync(reply chan error) {
	if s.phase != phaseConnected {
		s.respond(func() { reply <- errors.ErrNotConnected })
		return
	}
	s.fetch(purposeResync, reply)
}

func (s *Session) fetch(purpose fetchPurpose, reply chan error) {
	epoch := s.epoch
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.RequestTimeout)
		defer cancel()
		messages, err := s.fallback.FetchAll(ctx)
		s.post(epoch, historyFetched{purpose: purpose, messages: messages, err: err, reply: reply})
	}()
}

func (s *Session) respond(reply func()) {
	s.replies = append(s.replies, reply)
}

func (s *Session) flushReplies() {
	for _, reply := range s.replies {
		reply()
	}
	s.replies = nil
}

func (s *Session) displayName() string {
	if s.state.Participant != nil {
		return s.state.Participant.DisplayName
	}
	if s.pending != nil {
		return s.pending.participant.DisplayName
	}
	return ""
}

func (s *Session) timestamp() string {
	return domain.Timestamp(s.now())
}
