package gateway

import (
	"context"
	"log/slog"
	"sync"
)

// Handler processes one inbound event. Implementations absorb their own
// failures; a handler error must never stop the stream.
type Handler interface {
	HandleEvent(ctx context.Context, event *Event)
}

// dispatcher fans events out to a fixed set of workers, routing by sender
// id. Events from one sender always land on the same worker, which preserves
// per-sender ordering while unrelated senders run in parallel.
type dispatcher struct {
	handler Handler
	logger  *slog.Logger
	shards  []chan *Event
	wg      sync.WaitGroup
}

const (
	dispatchShards    = 16
	dispatchQueueSize = 64
)

func newDispatcher(ctx context.Context, handler Handler, logger *slog.Logger) *dispatcher {
	d := &dispatcher{
		handler: handler,
		logger:  logger,
		shards:  make([]chan *Event, dispatchShards),
	}
	for i := range d.shards {
		ch := make(chan *Event, dispatchQueueSize)
		d.shards[i] = ch
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for event := range ch {
				d.handler.HandleEvent(ctx, event)
			}
		}()
	}
	return d
}

// dispatch routes the event to its sender's worker.
func (d *dispatcher) dispatch(event *Event) {
	shard := int(uint64(event.SenderID) % uint64(len(d.shards)))
	d.shards[shard] <- event
}

// close stops accepting events and waits for in-flight handlers to finish.
func (d *dispatcher) close() {
	for _, ch := range d.shards {
		close(ch)
	}
	d.wg.Wait()
}
