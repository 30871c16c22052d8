package events

import (
	"context"
	"errors"
	"log"
	"time"

	"scribe/api/internal/store"
)

// Handler reacts to a dispatched scheduled event. Handlers are best-effort;
// an error is logged and never retried.
type Handler interface {
	HandleEvent(ctx context.Context, event store.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event store.Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event store.Event) error {
	return f(ctx, event)
}

// Dispatcher drains the scheduled queue and fans each event out to its
// handlers. It runs as a single background goroutine; ordering within the
// queue is preserved, but nothing is guaranteed relative to the transactions
// that emitted the events.
type Dispatcher struct {
	queue    *Queue
	handlers []Handler
}

func NewDispatcher(queue *Queue, handlers ...Handler) *Dispatcher {
	return &Dispatcher{queue: queue, handlers: handlers}
}

// Run blocks until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		event, ok, err := d.queue.Pop(ctx, 2*time.Second)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("events: dequeue failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		d.dispatch(ctx, event)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, event store.Event) {
	for _, handler := range d.handlers {
		if err := handler.HandleEvent(ctx, event); err != nil {
			log.Printf("events: handler failed for %s (%s): %v", event.Name, event.ID, err)
		}
	}
}
