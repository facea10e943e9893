// Package reposync brings a local working copy in line with its remote:
// clone when the copy is missing or broken, pull otherwise.
package reposync

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/observability"
)

// Syncer runs clone and pull against working copies.
type Syncer struct {
	client   *git.Client
	identity git.Identity
	timeout  time.Duration
}

// New returns a Syncer. identity signs the commit a pull makes when local
// commits have to be replayed onto a diverged origin. A positive timeout
// bounds each clone or pull.
func New(client *git.Client, identity git.Identity, timeout time.Duration) *Syncer {
	return &Syncer{client: client, identity: identity, timeout: timeout}
}

// EnsureUpToDate makes localPath a current clone of remoteURL's master.
// A failed clone falls back to a pull; when that fails too the result is a
// SyncFailure naming the repository. Sync failures are not retried.
func (s *Syncer) EnsureUpToDate(ctx context.Context, remoteURL, localPath string) error {
	if git.IsWorkingCopy(localPath) {
		if err := s.pull(ctx, localPath); err != nil {
			return s.failure(remoteURL, localPath, "pull", err)
		}
		return nil
	}

	if err := os.MkdirAll(localPath, 0o750); err != nil {
		return s.failure(remoteURL, localPath, "mkdir", err)
	}
	cloneErr := s.clone(ctx, remoteURL, localPath)
	if cloneErr == nil {
		return nil
	}
	observability.WarnContext(ctx, "Clone failed, falling back to pull",
		logfields.URL(remoteURL), logfields.Path(localPath), logfields.Error(cloneErr))

	if pullErr := s.pull(ctx, localPath); pullErr != nil {
		return s.failure(remoteURL, localPath, "clone", errors.Join(cloneErr, pullErr))
	}
	return nil
}

func (s *Syncer) clone(ctx context.Context, url, path string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Clone(ctx, url, path)
}

func (s *Syncer) pull(ctx context.Context, path string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Pull(ctx, path, s.identity)
}

func (s *Syncer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Syncer) failure(remoteURL, localPath, op string, cause error) error {
	err := ferrors.SyncFailure(remoteURL, cause).
		WithContext("path", localPath).
		WithContext("op", op).
		Build()
	slog.Error("Repository sync failed",
		logfields.Repository(remoteURL), logfields.Path(localPath), slog.String("op", op), logfields.Error(cause))
	return err
}
