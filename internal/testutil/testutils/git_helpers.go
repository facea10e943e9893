// Package helpers holds fixtures shared by package tests: in-process git
// remotes and file system assertions.
package helpers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
)

var installOnce sync.Once

// UseInProcessTransport serves file:// and plain path remotes from inside the
// test process, so tests do not depend on a git binary.
func UseInProcessTransport() {
	installOnce.Do(func() {
		client.InstallProtocol("file", &inProcess{
			Transport: server.NewClient(server.DefaultLoader),
			loader:    server.DefaultLoader,
		})
	})
}

// inProcess drops haves the remote does not store before an upload, as git
// does. A fetch from a working copy holding unpushed commits needs this.
type inProcess struct {
	transport.Transport
	loader server.Loader
}

func (t *inProcess) NewUploadPackSession(ep *transport.Endpoint, auth transport.AuthMethod) (transport.UploadPackSession, error) {
	sess, err := t.Transport.NewUploadPackSession(ep, auth)
	if err != nil {
		return nil, err
	}
	sto, err := t.loader.Load(ep)
	if err != nil {
		return nil, err
	}
	return &knownHaves{UploadPackSession: sess, storer: sto}, nil
}

type knownHaves struct {
	transport.UploadPackSession
	storer storer.Storer
}

func (s *knownHaves) UploadPack(ctx context.Context, req *packp.UploadPackRequest) (*packp.UploadPackResponse, error) {
	known := req.Haves[:0]
	for _, h := range req.Haves {
		if s.storer.HasEncodedObject(h) == nil {
			known = append(known, h)
		}
	}
	req.Haves = known
	return s.UploadPackSession.UploadPack(ctx, req)
}

var fixtureSig = object.Signature{Name: "Fixture Author", Email: "author@example.com"}

// NewRemote creates a bare repository whose master holds one commit with files
// (slash separated relative path -> content). It returns the bare path, which
// doubles as the clone URL.
func NewRemote(t *testing.T, files map[string]string) string {
	t.Helper()
	UseInProcessTransport()

	bare := filepath.Join(t.TempDir(), "origin.git")
	if _, err := git.PlainInit(bare, true); err != nil {
		t.Fatalf("init bare remote: %v", err)
	}

	seed := filepath.Join(t.TempDir(), "seed")
	repo, err := git.PlainInit(seed, false)
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{bare}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	commitFiles(t, repo, seed, files, "Initial commit")
	pushMaster(t, repo)
	return bare
}

// PushToRemote clones remote, writes files, commits them as the fixture
// author and pushes master back. It simulates an upstream change.
func PushToRemote(t *testing.T, remote string, files map[string]string, message string) {
	t.Helper()
	UseInProcessTransport()

	dir := filepath.Join(t.TempDir(), "upstream")
	repo, err := git.PlainClone(dir, false, &git.CloneOptions{URL: remote, ReferenceName: plumbing.Master})
	if err != nil {
		t.Fatalf("clone %s: %v", remote, err)
	}
	commitFiles(t, repo, dir, files, message)
	pushMaster(t, repo)
}

// RemoteFile returns the content of path at the tip of master in remote.
func RemoteFile(t *testing.T, remote, path string) (string, bool) {
	t.Helper()
	commit := remoteHead(t, remote)
	f, err := commit.File(path)
	if err != nil {
		return "", false
	}
	content, err := f.Contents()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return content, true
}

// RemoteHead returns the message and committer of the tip of master in remote.
func RemoteHead(t *testing.T, remote string) (message string, committer object.Signature) {
	t.Helper()
	c := remoteHead(t, remote)
	return c.Message, c.Committer
}

// RemoteCommitCount counts the commits reachable from master in remote.
func RemoteCommitCount(t *testing.T, remote string) int {
	t.Helper()
	repo, err := git.PlainOpen(remote)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.Master, true)
	if err != nil {
		t.Fatalf("resolve master: %v", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	n := 0
	_ = iter.ForEach(func(*object.Commit) error { n++; return nil })
	return n
}

func remoteHead(t *testing.T, remote string) *object.Commit {
	t.Helper()
	repo, err := git.PlainOpen(remote)
	if err != nil {
		t.Fatalf("open remote: %v", err)
	}
	ref, err := repo.Reference(plumbing.Master, true)
	if err != nil {
		t.Fatalf("resolve master: %v", err)
	}
	c, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("head commit: %v", err)
	}
	return c
}

func commitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, message string) {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("add: %v", err)
	}
	sig := fixtureSig
	sig.When = time.Now()
	if _, err := wt.Commit(message, &git.CommitOptions{Author: &sig, Committer: &sig, AllowEmptyCommits: true}); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func pushMaster(t *testing.T, repo *git.Repository) {
	t.Helper()
	err := repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{"refs/heads/master:refs/heads/master"},
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		t.Fatalf("push: %v", err)
	}
}
