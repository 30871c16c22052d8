// Package events implements the append-only domain event log. One recorder,
// two disciplines: Insert writes the event inside the caller's transaction so
// it commits exactly when the triggering mutation does; Schedule hands the
// event to a Redis-backed queue for asynchronous dispatch with no atomicity
// guarantee against the triggering transaction.
package events

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"scribe/api/internal/store"
	"scribe/api/internal/util"
)

// Event names emitted by the command layer.
const (
	DocumentUpdate      = "documents.update"
	DocumentPublish     = "documents.publish"
	DocumentTitleChange = "documents.title_change"
	CommentUpdate       = "comments.update"
)

type eventStore interface {
	InsertEvent(ctx context.Context, tx *sql.Tx, event store.Event) error
}

// Recorder is the single entry point commands emit through.
type Recorder interface {
	// Insert appends the event atomically with the caller's transaction.
	Insert(ctx context.Context, tx *sql.Tx, event store.Event) error
	// Schedule queues the event for out-of-band dispatch. A crash between
	// the triggering commit and dispatch loses the event; callers only use
	// this for signals where that is acceptable.
	Schedule(ctx context.Context, event store.Event) error
}

// Log is the production Recorder backed by Postgres and Redis.
type Log struct {
	store eventStore
	queue *Queue
}

func NewLog(eventStore eventStore, queue *Queue) *Log {
	return &Log{store: eventStore, queue: queue}
}

func (l *Log) Insert(ctx context.Context, tx *sql.Tx, event store.Event) error {
	stamp(&event)
	if err := l.store.InsertEvent(ctx, tx, event); err != nil {
		return fmt.Errorf("record event %s: %w", event.Name, err)
	}
	return nil
}

func (l *Log) Schedule(ctx context.Context, event store.Event) error {
	stamp(&event)
	if l.queue == nil {
		log.Printf("events: no queue configured, dropping scheduled event %s", event.Name)
		return nil
	}
	if err := l.queue.Push(ctx, event); err != nil {
		return fmt.Errorf("schedule event %s: %w", event.Name, err)
	}
	return nil
}

func stamp(event *store.Event) {
	if event.ID == "" {
		event.ID = util.NewID("evt")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
}
