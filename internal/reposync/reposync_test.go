package reposync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/commitpub"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/git"
	helpers "git.home.luguber.info/inful/docsync/internal/testutil/testutils"
)

var bot = git.Identity{Name: "DocsBot", Email: "docsbot@example.com"}

func newSyncer() *Syncer {
	return New(git.NewClient(git.Credentials{}), bot, time.Minute)
}

func TestEnsureUpToDateClonesMissingCopy(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "hello"})
	local := filepath.Join(t.TempDir(), "acme", "docs")

	require.NoError(t, newSyncer().EnsureUpToDate(context.Background(), remote, local))

	assert.True(t, git.IsWorkingCopy(local))
	helpers.AssertFileContent(t, local, "README.md", "hello")
}

func TestEnsureUpToDatePullsExistingCopy(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "v1"})
	local := filepath.Join(t.TempDir(), "docs")
	s := newSyncer()
	require.NoError(t, s.EnsureUpToDate(context.Background(), remote, local))

	helpers.PushToRemote(t, remote, map[string]string{"README.md": "v2"}, "edit")
	require.NoError(t, s.EnsureUpToDate(context.Background(), remote, local))
	helpers.AssertFileContent(t, local, "README.md", "v2")

	require.NoError(t, s.EnsureUpToDate(context.Background(), remote, local), "repeat sync is a no-op")
}

func TestEnsureUpToDateReportsSyncFailure(t *testing.T) {
	helpers.UseInProcessTransport()
	missing := filepath.Join(t.TempDir(), "missing.git")
	require.NoError(t, os.MkdirAll(missing, 0o750))
	local := filepath.Join(t.TempDir(), "docs")

	err := newSyncer().EnsureUpToDate(context.Background(), missing, local)
	require.Error(t, err)

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryGit, ce.Category())
	assert.False(t, ce.CanRetry())
	repo, _ := ce.Context().Get("repository")
	assert.Equal(t, missing, repo)
	op, _ := ce.Context().Get("op")
	assert.Equal(t, "clone", op)

	var nf *git.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

// Leftover files in the target do not block a clone; they stay untracked.
func TestEnsureUpToDateNonEmptyDirectory(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"README.md": "x"})
	local := t.TempDir()
	helpers.WriteFile(t, local, "stray.txt", "left over")

	require.NoError(t, newSyncer().EnsureUpToDate(context.Background(), remote, local))
	assert.True(t, git.IsWorkingCopy(local))
	helpers.AssertFileContent(t, local, "README.md", "x")
	helpers.AssertFileContent(t, local, "stray.txt", "left over")
}

// A human push that lands while the bot renders rejects the bot's push. The
// next sync must still succeed and the following publish must land both.
func TestEnsureUpToDateAfterRejectedPush(t *testing.T) {
	remote := helpers.NewRemote(t, map[string]string{"index.md": "# Home", "guide.md": "# Guide"})
	local := filepath.Join(t.TempDir(), "docs")
	client := git.NewClient(git.Credentials{})
	s := New(client, bot, time.Minute)
	pub := commitpub.New(client, bot, 0)
	ctx := context.Background()
	require.NoError(t, s.EnsureUpToDate(ctx, remote, local))

	helpers.WriteFile(t, local, "index.html", "<h1>Home</h1>")
	helpers.PushToRemote(t, remote, map[string]string{"guide.md": "# Guide v2"}, "Human edit")
	_, err := pub.CommitAndPush(ctx, local, commitpub.MessageFor("acme/docs"), ".")
	require.Error(t, err, "push must be rejected")

	require.NoError(t, s.EnsureUpToDate(ctx, remote, local))
	helpers.AssertFileContent(t, local, "guide.md", "# Guide v2")
	helpers.AssertFileContent(t, local, "index.html", "<h1>Home</h1>")

	res, err := pub.CommitAndPush(ctx, local, commitpub.MessageFor("acme/docs"), ".")
	require.NoError(t, err)
	assert.True(t, res.Pushed)
	content, ok := helpers.RemoteFile(t, remote, "index.html")
	require.True(t, ok)
	assert.Equal(t, "<h1>Home</h1>", content)

	helpers.PushToRemote(t, remote, map[string]string{"guide.md": "# Guide v3"}, "Another edit")
	require.NoError(t, s.EnsureUpToDate(ctx, remote, local), "later syncs fast-forward again")
	helpers.AssertFileContent(t, local, "guide.md", "# Guide v3")
}
