// Package revisions keeps one git repository per document and records a
// commit for every persisted content change, giving the history endpoint a
// durable, diffable trail without a revisions table.
package revisions

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"scribe/api/internal/store"
)

const contentFile = "content.md"

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit writes the document's current markdown and records a revision.
// When nothing changed since the last revision, the head revision is
// returned instead of creating an empty commit.
func (s *Service) Commit(document store.Document, author store.User) (store.Revision, error) {
	lock := s.documentLock(document.ID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.ensureRepo(document.ID)
	if err != nil {
		return store.Revision{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.Revision{}, fmt.Errorf("open worktree: %w", err)
	}

	payload := renderContent(document)
	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, contentFile), []byte(payload), 0o644); err != nil {
		return store.Revision{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return store.Revision{}, fmt.Errorf("git add content: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return store.Revision{}, fmt.Errorf("read worktree status: %w", err)
	}
	if status.IsClean() {
		return s.headRevision(repo, document.Title)
	}

	hash, err := worktree.Commit("Update "+document.Title, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author.DisplayName,
			Email: authorEmail(author),
			When:  time.Now(),
		},
	})
	if err != nil {
		return store.Revision{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj, document.Title), nil
}

// History lists revisions newest first.
func (s *Service) History(documentID string, limit int) ([]store.Revision, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return []store.Revision{}, nil
		}
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return []store.Revision{}, nil
		}
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.Revision, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj, ""))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Content returns the markdown recorded at a given revision.
func (s *Service) Content(documentID, hash string) (string, error) {
	lock := s.documentLock(documentID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(documentID))
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return "", err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(contentFile)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	return file.Contents()
}

func (s *Service) ensureRepo(documentID string) (*git.Repository, error) {
	path := s.repoPath(documentID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) headRevision(repo *git.Repository, title string) (store.Revision, error) {
	head, err := repo.Head()
	if err != nil {
		return store.Revision{}, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		return store.Revision{}, fmt.Errorf("read head commit: %w", err)
	}
	return toRevision(commitObj, title), nil
}

func (s *Service) repoPath(documentID string) string {
	return filepath.Join(s.baseDir, documentID)
}

func (s *Service) documentLock(documentID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[documentID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[documentID] = lock
	return lock
}

func renderContent(document store.Document) string {
	return "# " + document.Title + "\n\n" + document.Text + "\n"
}

func toRevision(commitObj *object.Commit, title string) store.Revision {
	return store.Revision{
		Hash:      commitObj.Hash.String()[:7],
		Title:     title,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func authorEmail(author store.User) string {
	if author.Email != "" {
		return author.Email
	}
	return "user@local.scribe.dev"
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
