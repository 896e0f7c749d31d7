// Package history keeps a git repository per document and commits the stored
// body after every transaction that touched it.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"pageblocks/api/internal/store"
)

const fileName = "document.json"

var (
	ErrNoHistory = errors.New("document has no history")
	ErrInvalidID = errors.New("document id cannot be used as a repository name")
)

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Changed   []string  `json:"changed"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
	now     func() time.Time
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
		now:     time.Now,
	}
}

// Record commits doc as the new head of its repository, creating the
// repository on first use. A body identical to the head is not committed and
// the head commit is returned instead.
func (s *Service) Record(doc store.Document, message, author string) (CommitInfo, error) {
	id := doc.ID()
	path, err := s.repoPath(id)
	if err != nil {
		return CommitInfo{}, err
	}
	lock := s.documentLock(id)
	lock.Lock()
	defer lock.Unlock()

	repo, err := openOrInit(path)
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return CommitInfo{}, fmt.Errorf("marshal document: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, fileName), append(payload, '\n'), 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", fileName, err)
	}
	if _, err := worktree.Add(fileName); err != nil {
		return CommitInfo{}, fmt.Errorf("git add document: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@pageblocks.local", sanitizeEmail(author)),
			When:  s.now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		head, herr := repo.Head()
		if herr != nil {
			return CommitInfo{}, fmt.Errorf("resolve head: %w", herr)
		}
		hash, err = head.Hash(), nil
	}
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit document: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj)
}

// History lists the newest commits first. limit <= 0 returns all of them.
func (s *Service) History(documentID string, limit int) ([]CommitInfo, error) {
	repo, unlock, err := s.open(documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		info, err := toCommitInfo(commitObj)
		if err != nil {
			return err
		}
		items = append(items, info)
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// At returns the document body committed at hash, which may be abbreviated.
func (s *Service) At(documentID, hash string) (store.Document, error) {
	repo, unlock, err := s.open(documentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readDocument(commitObj)
}

func (s *Service) open(documentID string) (*git.Repository, func(), error) {
	path, err := s.repoPath(documentID)
	if err != nil {
		return nil, nil, err
	}
	lock := s.documentLock(documentID)
	lock.Lock()
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		lock.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrNoHistory, documentID)
	}
	if err != nil {
		lock.Unlock()
		return nil, nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, lock.Unlock, nil
}

func openOrInit(path string) (*git.Repository, error) {
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
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(documentID string) (string, error) {
	if documentID == "" || documentID == "." || documentID == ".." || strings.ContainsAny(documentID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, documentID)
	}
	return filepath.Join(s.baseDir, documentID), nil
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

func readDocument(commitObj *object.Commit) (store.Document, error) {
	file, err := commitObj.File(fileName)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", fileName, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open document reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read document bytes: %w", err)
	}
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode commit document: %w", err)
	}
	return doc, nil
}

func toCommitInfo(commitObj *object.Commit) (CommitInfo, error) {
	info := CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
	after, err := readDocument(commitObj)
	if err != nil {
		return CommitInfo{}, err
	}
	var before store.Document
	if commitObj.NumParents() > 0 {
		parent, err := commitObj.Parent(0)
		if err != nil {
			return CommitInfo{}, fmt.Errorf("read parent commit: %w", err)
		}
		if before, err = readDocument(parent); err != nil {
			return CommitInfo{}, err
		}
	}
	info.Changed = ChangedFields(before, after)
	return info, nil
}

// ChangedFields lists the top-level fields whose values differ, ignoring the
// system fields every write touches.
func ChangedFields(from, to store.Document) []string {
	keys := make(map[string]struct{})
	for k := range from {
		keys[k] = struct{}{}
	}
	for k := range to {
		keys[k] = struct{}{}
	}
	changed := make([]string, 0)
	for k := range keys {
		if k == "_rev" || k == "_updatedAt" || k == "_createdAt" {
			continue
		}
		if !sameJSON(from[k], to[k]) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func sameJSON(a, b any) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "editor"
	}
	return string(out)
}
