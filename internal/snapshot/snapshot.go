// Package snapshot keeps a versioned copy of published posts in a local git
// repository so a bake can run against a fixed revision without Postgres.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"chartpress/internal/store"
)

const postsDir = "posts"

var (
	ErrNoChanges     = errors.New("snapshot: no changes to commit")
	ErrInvalidSlug   = store.ErrInvalidSlug
	ErrEmptySnapshot = errors.New("snapshot: no commits")
)

type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store reads posts from the HEAD commit of the repository at dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

// Ping fails when the snapshot has no commit to serve posts from.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	commitObj, err := s.headCommit()
	if err != nil {
		return err
	}
	if commitObj == nil {
		return ErrEmptySnapshot
	}
	return nil
}

// WritePosts replaces the snapshot with posts, one posts/<slug>.json file per
// post, and commits the result on main. ErrNoChanges is returned when the
// tree is unchanged.
func (s *Store) WritePosts(posts []store.Post, author, message string) (CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := s.openOrInit()
	if err != nil {
		return CommitInfo{}, err
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(s.dir, postsDir), 0o755); err != nil {
		return CommitInfo{}, fmt.Errorf("create posts dir: %w", err)
	}
	keep := make(map[string]bool, len(posts))
	for _, post := range posts {
		if err := store.ValidSlug(post.Slug); err != nil {
			return CommitInfo{}, err
		}
		payload, err := json.MarshalIndent(post, "", "  ")
		if err != nil {
			return CommitInfo{}, fmt.Errorf("marshal post %s: %w", post.Slug, err)
		}
		rel := postPath(post.Slug)
		if err := os.WriteFile(filepath.Join(s.dir, filepath.FromSlash(rel)), append(payload, '\n'), 0o644); err != nil {
			return CommitInfo{}, fmt.Errorf("write %s: %w", rel, err)
		}
		if _, err := worktree.Add(rel); err != nil {
			return CommitInfo{}, fmt.Errorf("git add %s: %w", rel, err)
		}
		keep[rel] = true
	}
	if err := removeStale(worktree, s.dir, keep); err != nil {
		return CommitInfo{}, err
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@chartpress.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return CommitInfo{}, ErrNoChanges
	}
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit posts: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// GetFullPostBySlug returns nil without error when the slug is not in the
// snapshot or nothing has been committed yet.
func (s *Store) GetFullPostBySlug(ctx context.Context, slug string) (*store.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := store.ValidSlug(slug); err != nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.headCommit()
	if err != nil || head == nil {
		return nil, err
	}
	post, err := readPost(head, postPath(slug))
	if errors.Is(err, object.ErrFileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (s *Store) IsPostCitable(post store.Post) bool {
	return store.IsPostCitable(post)
}

// ListPosts returns every post in the HEAD commit ordered by slug.
func (s *Store) ListPosts(ctx context.Context) ([]store.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.headCommit()
	if err != nil {
		return nil, err
	}
	items := make([]store.Post, 0)
	if head == nil {
		return items, nil
	}

	files, err := head.Files()
	if err != nil {
		return nil, fmt.Errorf("list commit files: %w", err)
	}
	defer files.Close()
	err = files.ForEach(func(f *object.File) error {
		if path.Dir(f.Name) != postsDir || path.Ext(f.Name) != ".json" {
			return nil
		}
		post, err := decodePost(f)
		if err != nil {
			return err
		}
		items = append(items, post)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Slug < items[j].Slug })
	return items, nil
}

// ListPublishedPosts returns the published subset of ListPosts.
func (s *Store) ListPublishedPosts(ctx context.Context) ([]store.Post, error) {
	posts, err := s.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	published := posts[:0]
	for _, post := range posts {
		if post.Status == store.StatusPublish {
			published = append(published, post)
		}
	}
	return published, nil
}

func (s *Store) History(limit int) ([]CommitInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
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

func (s *Store) openOrInit() (*git.Repository, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

// headCommit returns nil when the repository is missing or has no commits.
func (s *Store) headCommit() (*object.Commit, error) {
	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load head commit: %w", err)
	}
	return commitObj, nil
}

func readPost(commitObj *object.Commit, name string) (store.Post, error) {
	file, err := commitObj.File(name)
	if err != nil {
		return store.Post{}, err
	}
	return decodePost(file)
}

func decodePost(file *object.File) (store.Post, error) {
	reader, err := file.Reader()
	if err != nil {
		return store.Post{}, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer reader.Close()

	var post store.Post
	if err := json.NewDecoder(reader).Decode(&post); err != nil {
		return store.Post{}, fmt.Errorf("decode %s: %w", file.Name, err)
	}
	return post, nil
}

func removeStale(worktree *git.Worktree, dir string, keep map[string]bool) error {
	entries, err := os.ReadDir(filepath.Join(dir, postsDir))
	if err != nil {
		return fmt.Errorf("read posts dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		rel := path.Join(postsDir, entry.Name())
		if keep[rel] {
			continue
		}
		if _, err := worktree.Remove(rel); err != nil {
			return fmt.Errorf("git rm %s: %w", rel, err)
		}
	}
	return nil
}

func postPath(slug string) string {
	return path.Join(postsDir, slug+".json")
}

func toCommitInfo(commitObj *object.Commit) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			out = append(out, r)
		case r == ' ' || r == '-' || r == '_':
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "baker"
	}
	return string(out)
}
