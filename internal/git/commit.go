package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
)

// Stage adds scope, a path relative to the working tree root, to the index,
// including deletions below it. "." or "" stages the whole tree.
func (c *Client) Stage(path, scope string) error {
	wt, err := worktree(path)
	if err != nil {
		return err
	}
	opts := &git.AddOptions{All: true}
	if scope != "" && scope != "." {
		opts = &git.AddOptions{Path: filepath.ToSlash(filepath.Clean(scope))}
	}
	if err := wt.AddWithOptions(opts); err != nil {
		return fmt.Errorf("stage %s: %w", scope, err)
	}
	return nil
}

// Staged lists the paths whose index entry differs from HEAD, sorted.
// Untracked files are not included.
func (c *Client) Staged(path string) ([]string, error) {
	wt, err := worktree(path)
	if err != nil {
		return nil, err
	}
	st, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	var staged []string
	for file, fs := range st {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			staged = append(staged, file)
		}
	}
	sort.Strings(staged)
	return staged, nil
}

// Commit records the index as a new commit on master, authored and
// committed by who. It returns the new commit hash.
func (c *Client) Commit(path, message string, who Identity) (string, error) {
	wt, err := worktree(path)
	if err != nil {
		return "", err
	}
	sig := who.Signature(time.Now())
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

// Push pushes branch to origin. An up-to-date remote is not an error.
func (c *Client) Push(ctx context.Context, path, branch string) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	refspec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: RemoteName,
		RefSpecs:   []config.RefSpec{refspec},
		Auth:       c.auth,
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return classifyRemoteError("push", remoteURL(repo), err)
}

func worktree(path string) (*git.Worktree, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	return wt, nil
}
