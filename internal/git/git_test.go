package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	helpers "git.home.luguber.info/inful/docsync/internal/testutil/testutils"
)

var bot = Identity{Name: "DocsBot", Email: "docsbot@example.com"}

func cloneFixture(t *testing.T, files map[string]string) (remote, local string) {
	t.Helper()
	remote = helpers.NewRemote(t, files)
	local = filepath.Join(t.TempDir(), "wc")
	require.NoError(t, NewClient(Credentials{}).Clone(context.Background(), remote, local))
	return remote, local
}

func TestCloneCreatesWorkingCopy(t *testing.T) {
	_, local := cloneFixture(t, map[string]string{"README.md": "# Docs"})

	assert.True(t, IsWorkingCopy(local))
	helpers.AssertFileContent(t, local, "README.md", "# Docs")

	ahead, err := NewClient(Credentials{}).Ahead(local)
	require.NoError(t, err)
	assert.False(t, ahead)
}

func TestIsWorkingCopyRejectsPlainDirectories(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, IsWorkingCopy(dir))
	assert.False(t, IsWorkingCopy(filepath.Join(dir, "missing")))
}

func TestCloneMissingRemote(t *testing.T) {
	helpers.UseInProcessTransport()
	missing := filepath.Join(t.TempDir(), "nope.git")
	require.NoError(t, os.MkdirAll(missing, 0o750))

	err := NewClient(Credentials{}).Clone(context.Background(), missing, filepath.Join(t.TempDir(), "wc"))
	require.Error(t, err)
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf), "got %v", err)
	assert.True(t, IsPermanent(err))
}

func TestPullFastForwards(t *testing.T) {
	remote, local := cloneFixture(t, map[string]string{"README.md": "v1"})
	helpers.PushToRemote(t, remote, map[string]string{"README.md": "v2", "guide.md": "new"}, "Upstream edit")

	require.NoError(t, NewClient(Credentials{}).Pull(context.Background(), local, bot))

	helpers.AssertFileContent(t, local, "README.md", "v2")
	helpers.AssertFileContent(t, local, "guide.md", "new")
}

func TestPullAlreadyUpToDate(t *testing.T) {
	_, local := cloneFixture(t, map[string]string{"README.md": "v1"})
	require.NoError(t, NewClient(Credentials{}).Pull(context.Background(), local, bot))
}

func TestPullWhenLocalIsAhead(t *testing.T) {
	_, local := cloneFixture(t, map[string]string{"README.md": "v1"})
	c := NewClient(Credentials{})
	helpers.WriteFile(t, local, "local.md", "unpushed")
	require.NoError(t, c.Stage(local, "."))
	_, err := c.Commit(local, "Local only", bot)
	require.NoError(t, err)

	require.NoError(t, c.Pull(context.Background(), local, bot))
	ahead, err := c.Ahead(local)
	require.NoError(t, err)
	assert.True(t, ahead)
}

func TestPullDivergedReplaysLocalCommits(t *testing.T) {
	remote, local := cloneFixture(t, map[string]string{"README.md": "v1"})
	c := NewClient(Credentials{})
	helpers.WriteFile(t, local, "README.html", "<p>v1</p>")
	require.NoError(t, c.Stage(local, "."))
	_, err := c.Commit(local, "Latest changes from acme/docs.", bot)
	require.NoError(t, err)
	helpers.PushToRemote(t, remote, map[string]string{"README.md": "v2", "remote.md": "theirs"}, "Remote")

	require.NoError(t, c.Pull(context.Background(), local, bot))

	helpers.AssertFileContent(t, local, "README.md", "v2")
	helpers.AssertFileContent(t, local, "remote.md", "theirs")
	helpers.AssertFileContent(t, local, "README.html", "<p>v1</p>")

	repo, err := gogit.PlainOpen(local)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	tip, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Latest changes from acme/docs.", tip.Message)
	assert.Equal(t, bot.Email, tip.Committer.Email)
	origin, err := repo.Reference(remoteBranchRef, true)
	require.NoError(t, err)
	assert.Equal(t, []plumbing.Hash{origin.Hash()}, tip.ParentHashes)

	staged, err := c.Staged(local)
	require.NoError(t, err)
	assert.Empty(t, staged)
	ahead, err := c.Ahead(local)
	require.NoError(t, err)
	assert.True(t, ahead)

	md, err := os.Stat(filepath.Join(local, "README.md"))
	require.NoError(t, err)
	html, err := os.Stat(filepath.Join(local, "README.html"))
	require.NoError(t, err)
	assert.False(t, md.ModTime().Before(html.ModTime()), "upstream markdown must not look older than replayed output")

	require.NoError(t, c.Push(context.Background(), local, Branch))
	assert.Equal(t, 3, helpers.RemoteCommitCount(t, remote))
}

func TestPullDivergedKeepsOriginOnConflict(t *testing.T) {
	remote, local := cloneFixture(t, map[string]string{"index.html": "base"})
	c := NewClient(Credentials{})
	helpers.WriteFile(t, local, "index.html", "mine")
	require.NoError(t, c.Stage(local, "."))
	_, err := c.Commit(local, "Local", bot)
	require.NoError(t, err)
	helpers.PushToRemote(t, remote, map[string]string{"index.html": "theirs"}, "Remote")

	require.NoError(t, c.Pull(context.Background(), local, bot))

	helpers.AssertFileContent(t, local, "index.html", "theirs")
	ahead, err := c.Ahead(local)
	require.NoError(t, err)
	assert.False(t, ahead, "nothing left to replay")
}

func TestPullDivergedWithUncommittedChanges(t *testing.T) {
	remote, local := cloneFixture(t, map[string]string{"README.md": "v1"})
	c := NewClient(Credentials{})
	helpers.WriteFile(t, local, "local.md", "mine")
	require.NoError(t, c.Stage(local, "."))
	_, err := c.Commit(local, "Local", bot)
	require.NoError(t, err)
	helpers.PushToRemote(t, remote, map[string]string{"remote.md": "theirs"}, "Remote")
	helpers.WriteFile(t, local, "README.md", "edited, not committed")

	err = c.Pull(context.Background(), local, bot)
	var diverged *RemoteDivergedError
	require.True(t, errors.As(err, &diverged), "got %v", err)
	assert.Equal(t, Branch, diverged.Branch)
	helpers.AssertFileContent(t, local, "README.md", "edited, not committed")
}

func TestStageCommitPush(t *testing.T) {
	remote, local := cloneFixture(t, map[string]string{"README.md": "v1", "wiki/Old.md": "old"})
	c := NewClient(Credentials{})

	helpers.WriteFile(t, local, "wiki/Home.md", "Hello")
	helpers.WriteFile(t, local, "outside.md", "not staged")
	require.NoError(t, os.Remove(filepath.Join(local, "wiki", "Old.md")))

	require.NoError(t, c.Stage(local, "wiki"))
	staged, err := c.Staged(local)
	require.NoError(t, err)
	assert.Equal(t, []string{"wiki/Home.md", "wiki/Old.md"}, staged)

	hash, err := c.Commit(local, "Latest changes from wiki.", bot)
	require.NoError(t, err)
	assert.Len(t, hash, 40)
	require.NoError(t, c.Push(context.Background(), local, Branch))

	msg, committer := helpers.RemoteHead(t, remote)
	assert.Equal(t, "Latest changes from wiki.", msg)
	assert.Equal(t, bot.Email, committer.Email)
	content, ok := helpers.RemoteFile(t, remote, "wiki/Home.md")
	require.True(t, ok)
	assert.Equal(t, "Hello", content)
	_, ok = helpers.RemoteFile(t, remote, "wiki/Old.md")
	assert.False(t, ok, "deletion should be pushed")
	_, ok = helpers.RemoteFile(t, remote, "outside.md")
	assert.False(t, ok, "files outside the scope stay unstaged")

	require.NoError(t, c.Push(context.Background(), local, Branch), "second push is a no-op")
}

func TestCredentialsAuthMethod(t *testing.T) {
	assert.Nil(t, Credentials{}.AuthMethod())
	auth := Credentials{Username: "bot", Token: "tok"}.AuthMethod()
	require.NotNil(t, auth)
	assert.Equal(t, "http-basic-auth", auth.Name())
}

func TestClassifyRemoteError(t *testing.T) {
	tests := []struct {
		err    error
		target any
	}{
		{transport.ErrAuthenticationRequired, new(*AuthError)},
		{transport.ErrRepositoryNotFound, new(*NotFoundError)},
		{context.DeadlineExceeded, new(*NetworkTimeoutError)},
		{errors.New("unsupported protocol scheme \"ftp\""), new(*UnsupportedProtocolError)},
		{errors.New("non-fast-forward update"), new(*RemoteDivergedError)},
	}
	for _, tt := range tests {
		got := classifyRemoteError("fetch", "https://example.com/r.git", tt.err)
		assert.True(t, errors.As(got, tt.target), "%v not classified", tt.err)
		assert.ErrorIs(t, got, tt.err)
	}

	plain := classifyRemoteError("push", "u", errors.New("boom"))
	assert.False(t, IsPermanent(plain))
	assert.Contains(t, plain.Error(), "git push u")
}
