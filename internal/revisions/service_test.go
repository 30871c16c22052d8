package revisions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"scribe/api/internal/store"
)

func testDocument(text string) store.Document {
	return store.Document{
		ID:    "doc_1",
		Title: "Getting Started",
		Text:  text,
	}
}

func testAuthor() store.User {
	return store.User{ID: "user_1", DisplayName: "Avery", Email: "avery@example.com"}
}

func TestCommitAndHistory(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Commit(testDocument("Hello."), testAuthor())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if first.Hash == "" {
		t.Fatal("expected commit hash")
	}
	if first.Author != "Avery" {
		t.Errorf("unexpected author: %s", first.Author)
	}

	second, err := svc.Commit(testDocument("Hello, world."), testAuthor())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if second.Hash == first.Hash {
		t.Error("expected a new revision for changed content")
	}

	history, err := svc.History("doc_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(history))
	}
	if history[0].Hash != second.Hash {
		t.Errorf("expected newest revision first, got %s", history[0].Hash)
	}
}

func TestCommitUnchangedContentReturnsHead(t *testing.T) {
	svc := New(t.TempDir())

	first, err := svc.Commit(testDocument("Stable."), testAuthor())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	again, err := svc.Commit(testDocument("Stable."), testAuthor())
	if err != nil {
		t.Fatalf("Commit() unchanged error = %v", err)
	}
	if again.Hash != first.Hash {
		t.Errorf("expected head revision %s for unchanged content, got %s", first.Hash, again.Hash)
	}

	history, err := svc.History("doc_1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 revision, got %d", len(history))
	}
}

func TestHistoryWithoutRepo(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("doc_missing", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d", len(history))
	}
}

func TestContentAtRevision(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	revision, err := svc.Commit(testDocument("First draft."), testAuthor())
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if _, err := svc.Commit(testDocument("Second draft."), testAuthor()); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	content, err := svc.Content("doc_1", revision.Hash)
	if err != nil {
		t.Fatalf("Content() error = %v", err)
	}
	if !strings.Contains(content, "First draft.") {
		t.Errorf("unexpected content at revision: %q", content)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc_1", "content.md")); err != nil {
		t.Fatalf("worktree file missing: %v", err)
	}
}

func TestConcurrentCommitsSameDocument(t *testing.T) {
	svc := New(t.TempDir())

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			document := testDocument(fmt.Sprintf("Draft %02d.", idx))
			if _, err := svc.Commit(document, testAuthor()); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Commit() concurrent error = %v", err)
		}
	}

	history, err := svc.History("doc_1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers {
		t.Fatalf("expected %d revisions, got %d", writers, len(history))
	}
}
