// Package commitpub commits a working copy's changes as the bot and pushes
// them to origin/master.
package commitpub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/logfields"
	"git.home.luguber.info/inful/docsync/internal/observability"
)

// DefaultPushTimeout bounds a single push.
const DefaultPushTimeout = 2 * time.Minute

// Repo is the subset of git operations the publisher needs. *git.Client
// implements it.
type Repo interface {
	Stage(path, scope string) error
	Staged(path string) ([]string, error)
	Commit(path, message string, who git.Identity) (string, error)
	Ahead(path string) (bool, error)
	Push(ctx context.Context, path, branch string) error
}

// Result describes what a publish did. Committed is false for a clean tree;
// Pushed is also set when a clean tree still held unpushed commits.
type Result struct {
	Committed bool
	Pushed    bool
	Commit    string
	Files     []string
}

type Publisher struct {
	repo        Repo
	identity    git.Identity
	pushTimeout time.Duration
}

func New(repo Repo, identity git.Identity, pushTimeout time.Duration) *Publisher {
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}
	return &Publisher{repo: repo, identity: identity, pushTimeout: pushTimeout}
}

// MessageFor is the commit message for changes coming from source, usually
// a repository full name.
func MessageFor(source string) string {
	return fmt.Sprintf("Latest changes from %s.", source)
}

// WikiMigrationMessage is the commit message after seeding docs from a wiki.
func WikiMigrationMessage(owner, repo string) string {
	return fmt.Sprintf("Latest wiki migration from %s/%s.", owner, repo)
}

// CommitAndPush stages scope ("." for the whole tree) in workingCopy and, if
// anything is staged, commits it and pushes master. A clean tree is pushed
// only when master is ahead of origin, which is the case after an earlier
// rejected push. Failures are returned as PublishFailure and not retried.
func (p *Publisher) CommitAndPush(ctx context.Context, workingCopy, message, scope string) (Result, error) {
	var res Result
	if scope == "" {
		scope = "."
	}

	if err := p.repo.Stage(workingCopy, scope); err != nil {
		return res, p.fail("stage", workingCopy, err)
	}
	files, err := p.repo.Staged(workingCopy)
	if err != nil {
		return res, p.fail("status", workingCopy, err)
	}
	if len(files) == 0 {
		ahead, err := p.repo.Ahead(workingCopy)
		if err != nil {
			return res, p.fail("status", workingCopy, err)
		}
		if !ahead {
			observability.InfoContext(ctx, "Working copy clean, nothing to publish", logfields.Path(workingCopy))
			return res, nil
		}
		if err := p.push(ctx, workingCopy); err != nil {
			return res, err
		}
		res.Pushed = true
		observability.InfoContext(ctx, "Pushed pending commits", logfields.Path(workingCopy))
		return res, nil
	}
	res.Files = files

	hash, err := p.repo.Commit(workingCopy, message, p.identity)
	if err != nil {
		return res, p.fail("commit", workingCopy, err)
	}
	res.Committed = true
	res.Commit = hash

	if err := p.push(ctx, workingCopy); err != nil {
		return res, err
	}
	res.Pushed = true

	observability.InfoContext(ctx, "Published changes",
		logfields.Path(workingCopy),
		slog.String("commit", hash),
		logfields.Count(len(files)))
	return res, nil
}

func (p *Publisher) push(ctx context.Context, workingCopy string) error {
	ctx, cancel := context.WithTimeout(ctx, p.pushTimeout)
	defer cancel()
	if err := p.repo.Push(ctx, workingCopy, git.Branch); err != nil {
		return p.fail("push", workingCopy, err)
	}
	return nil
}

func (p *Publisher) fail(op, path string, err error) error {
	slog.Error("Publish failed",
		slog.String("op", op),
		logfields.Path(path),
		logfields.Error(err))
	return ferrors.PublishFailure(op, path, err).Build()
}
