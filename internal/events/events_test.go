package events

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"scribe/api/internal/store"
)

func setupTestQueue(t *testing.T) *Queue {
	t.Helper()
	s := miniredis.RunT(t)
	queue, err := NewQueue("redis://"+s.Addr(), "test:events")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}
	t.Cleanup(func() { queue.Close() })
	return queue
}

func TestQueuePushPop(t *testing.T) {
	queue := setupTestQueue(t)
	ctx := context.Background()

	want := store.Event{
		ID:         "evt_1",
		Name:       DocumentTitleChange,
		DocumentID: "doc_1",
		TeamID:     "team_1",
		ActorID:    "user_1",
		Data:       map[string]any{"previousTitle": "Draft", "title": "Final"},
		CreatedAt:  time.Now().Truncate(time.Second),
	}
	if err := queue.Push(ctx, want); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	got, ok, err := queue.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pop failed: %v", err)
	}
	if !ok {
		t.Fatal("expected queued event")
	}
	if got.ID != want.ID || got.Name != want.Name || got.DocumentID != want.DocumentID {
		t.Errorf("Pop = %+v, want %+v", got, want)
	}
	if got.Data["title"] != "Final" {
		t.Errorf("payload lost in transit: %v", got.Data)
	}
}

func TestQueuePopEmpty(t *testing.T) {
	queue := setupTestQueue(t)

	_, ok, err := queue.Pop(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Pop failed: %v", err)
	}
	if ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueueOrdering(t *testing.T) {
	queue := setupTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"evt_a", "evt_b", "evt_c"} {
		if err := queue.Push(ctx, store.Event{ID: id, Name: DocumentUpdate}); err != nil {
			t.Fatalf("Push %s failed: %v", id, err)
		}
	}
	for _, wantID := range []string{"evt_a", "evt_b", "evt_c"} {
		got, ok, err := queue.Pop(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("Pop failed: ok=%v err=%v", ok, err)
		}
		if got.ID != wantID {
			t.Errorf("Pop = %s, want %s", got.ID, wantID)
		}
	}
}

type fakeEventStore struct {
	inserted []store.Event
}

func (f *fakeEventStore) InsertEvent(ctx context.Context, tx *sql.Tx, event store.Event) error {
	f.inserted = append(f.inserted, event)
	return nil
}

func TestLogInsertStampsEvent(t *testing.T) {
	fake := &fakeEventStore{}
	recorder := NewLog(fake, nil)

	err := recorder.Insert(context.Background(), nil, store.Event{Name: CommentUpdate})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if len(fake.inserted) != 1 {
		t.Fatalf("expected 1 inserted event, got %d", len(fake.inserted))
	}
	got := fake.inserted[0]
	if got.ID == "" {
		t.Error("expected generated event id")
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected creation timestamp")
	}
}

func TestLogScheduleWithoutQueueDrops(t *testing.T) {
	recorder := NewLog(&fakeEventStore{}, nil)
	if err := recorder.Schedule(context.Background(), store.Event{Name: DocumentUpdate}); err != nil {
		t.Fatalf("Schedule without queue should not error, got %v", err)
	}
}

func TestLogScheduleEnqueues(t *testing.T) {
	queue := setupTestQueue(t)
	recorder := NewLog(&fakeEventStore{}, queue)
	ctx := context.Background()

	if err := recorder.Schedule(ctx, store.Event{Name: DocumentTitleChange}); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	got, ok, err := queue.Pop(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("Pop failed: ok=%v err=%v", ok, err)
	}
	if got.Name != DocumentTitleChange {
		t.Errorf("Pop name = %s", got.Name)
	}
	if got.ID == "" {
		t.Error("scheduled event should be stamped with an id")
	}
}

func TestDispatcherFansOut(t *testing.T) {
	queue := setupTestQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	handler := HandlerFunc(func(ctx context.Context, event store.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, event.ID)
		return nil
	})

	dispatcher := NewDispatcher(queue, handler, handler)
	done := make(chan struct{})
	go func() {
		dispatcher.Run(ctx)
		close(done)
	}()

	if err := queue.Push(ctx, store.Event{ID: "evt_x", Name: DocumentUpdate}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		mu.Lock()
		count := len(seen)
		mu.Unlock()
		if count >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("handlers were not invoked in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("dispatcher did not stop on cancel")
	}
}
