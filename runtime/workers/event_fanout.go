package workers

import (
	"bkalan/contract"
	"bkalan/domain/event"
	"context"
	"log/slog"
	"time"
)

// EventFanoutWorker delivers broadcast frames to the live participants of
// this server instance.
//
// It provides best-effort fan-out: a slow sink is abandoned after
// sinkTimeout, there is no retry and no durability.
type EventFanoutWorker struct {
	log         *slog.Logger
	registry    contract.IRegistry
	broadcasts  <-chan event.Broadcast
	sinkTimeout time.Duration
}

func NewEventFanoutWorker(log *slog.Logger, registry contract.IRegistry,
	broadcasts <-chan event.Broadcast, sinkTimeout time.Duration) *EventFanoutWorker {
	return &EventFanoutWorker{log: log, registry: registry, broadcasts: broadcasts, sinkTimeout: sinkTimeout}
}

func (w *EventFanoutWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case broadcast, ok := <-w.broadcasts:
			if !ok {
				return nil
			}
			w.Fanout(ctx, broadcast)
		}
	}
}

// Fanout delivers the frame to each sink in turn. Frames reach a given sink
// in broadcast order; a sink that stays full is skipped after sinkTimeout.
func (w *EventFanoutWorker) Fanout(ctx context.Context, broadcast event.Broadcast) {
	for _, sink := range w.registry.Sinks(broadcast.Except) {
		w.deliver(ctx, sink, broadcast.Frame)
	}
}

func (w *EventFanoutWorker) deliver(ctx context.Context, sink contract.EventSink, frame event.Frame) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := sink.Consume(sinkCtx, frame); err != nil {
		w.log.Debug("Frame not delivered", "type", frame.Type, "error", err)
	}
}

// LocalBroadcaster hands broadcasts to the fanout of this instance only.
type LocalBroadcaster struct {
	broadcasts chan<- event.Broadcast
}

func NewLocalBroadcaster(broadcasts chan<- event.Broadcast) *LocalBroadcaster {
	return &LocalBroadcaster{broadcasts: broadcasts}
}

func (b *LocalBroadcaster) Publish(ctx context.Context, broadcast event.Broadcast) error {
	select {
	case b.broadcasts <- broadcast:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
