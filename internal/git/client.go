package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/docsync/internal/logfields"
)

const (
	RemoteName = "origin"
	Branch     = "master"
)

// BranchRef is the fully qualified reference of Branch.
var BranchRef = plumbing.NewBranchReferenceName(Branch)

var (
	remoteBranchRef = plumbing.NewRemoteReferenceName(RemoteName, Branch)
	trackingRefSpec = config.RefSpec(fmt.Sprintf("+%s:%s", BranchRef, remoteBranchRef))
)

// Identity is the author and committer used for every commit docsync makes.
type Identity struct {
	Name  string
	Email string
}

// Signature stamps the identity with when.
func (i Identity) Signature(when time.Time) *object.Signature {
	return &object.Signature{Name: i.Name, Email: i.Email, When: when}
}

// Credentials is the single username/token pair used for remote operations.
type Credentials struct {
	Username string
	Token    string
}

// AuthMethod returns HTTP basic auth, or nil when no credentials are set.
func (c Credentials) AuthMethod() transport.AuthMethod {
	if c.Username == "" && c.Token == "" {
		return nil
	}
	return &http.BasicAuth{Username: c.Username, Password: c.Token}
}

// Client performs git operations on local working copies.
type Client struct {
	auth transport.AuthMethod
}

func NewClient(creds Credentials) *Client {
	return &Client{auth: creds.AuthMethod()}
}

// Clone clones the master branch of url into path. path must be absent or empty.
func (c *Client) Clone(ctx context.Context, url, path string) error {
	slog.Debug("Cloning repository", logfields.URL(url), logfields.Path(path))
	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           url,
		Auth:          c.auth,
		RemoteName:    RemoteName,
		ReferenceName: BranchRef,
		SingleBranch:  true,
	})
	if err != nil {
		return classifyRemoteError("clone", url, err)
	}
	if head, herr := repo.Head(); herr == nil {
		slog.Info("Repository cloned", logfields.URL(url), logfields.Path(path), slog.String("commit", shortHash(head.Hash())))
	}
	return nil
}

// Pull fetches origin/master and brings master up to it. A working copy
// that is current, or only ahead of origin, is left as is. When master and
// origin/master have diverged, the local commits are replayed on top of
// origin/master as one commit signed by who (see replay).
func (c *Client) Pull(ctx context.Context, path string, who Identity) error {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	url := remoteURL(repo)

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: RemoteName,
		RefSpecs:   []config.RefSpec{trackingRefSpec},
		Auth:       c.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyRemoteError("pull", url, err)
	}

	local, err := repo.Reference(BranchRef, true)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", Branch, err)
	}
	remote, err := repo.Reference(remoteBranchRef, true)
	if err != nil {
		return fmt.Errorf("resolve %s/%s: %w", RemoteName, Branch, err)
	}
	if local.Hash() == remote.Hash() {
		slog.Debug("Repository already up-to-date", logfields.Path(path))
		return nil
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}

	behind, err := isAncestor(repo, local.Hash(), remote.Hash())
	if err != nil {
		return fmt.Errorf("compare %s with %s/%s: %w", Branch, RemoteName, Branch, err)
	}
	if behind {
		if err := wt.Reset(&git.ResetOptions{Commit: remote.Hash(), Mode: git.MergeReset}); err != nil {
			return &RemoteDivergedError{Op: "pull", URL: url, Branch: Branch, Err: err}
		}
		slog.Info("Fast-forwarded repository", logfields.Path(path), slog.String("commit", shortHash(remote.Hash())))
		return nil
	}

	ahead, err := isAncestor(repo, remote.Hash(), local.Hash())
	if err != nil {
		return fmt.Errorf("compare %s/%s with %s: %w", RemoteName, Branch, Branch, err)
	}
	if ahead {
		slog.Warn("Local branch is ahead of origin", logfields.Path(path))
		return nil
	}

	hash, err := replay(repo, wt, path, local.Hash(), remote.Hash(), who)
	if err != nil {
		return &RemoteDivergedError{Op: "pull", URL: url, Branch: Branch, Err: err}
	}
	slog.Warn("Replayed local commits onto origin",
		logfields.Path(path),
		slog.String("origin", shortHash(remote.Hash())),
		slog.String("commit", shortHash(hash)))
	return nil
}

// Ahead reports whether master in the working copy at path holds commits
// that origin/master, as last fetched, does not.
func (c *Client) Ahead(path string) (bool, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	local, err := repo.Reference(BranchRef, true)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", Branch, err)
	}
	remote, err := repo.Reference(remoteBranchRef, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if local.Hash() == remote.Hash() {
		return false, nil
	}
	return isAncestor(repo, remote.Hash(), local.Hash())
}

// IsWorkingCopy reports whether path opens as a repository that has an
// origin remote and a local master branch.
func IsWorkingCopy(path string) bool {
	if _, err := os.Stat(path); err != nil {
		return false
	}
	repo, err := git.PlainOpen(path)
	if err != nil {
		return false
	}
	if _, err := repo.Remote(RemoteName); err != nil {
		return false
	}
	_, err = repo.Reference(BranchRef, true)
	return err == nil
}

func remoteURL(repo *git.Repository) string {
	remote, err := repo.Remote(RemoteName)
	if err != nil || len(remote.Config().URLs) == 0 {
		return ""
	}
	return remote.Config().URLs[0]
}

// isAncestor reports whether a is reachable from b.
func isAncestor(repo *git.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			return false, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}

func shortHash(h plumbing.Hash) string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
