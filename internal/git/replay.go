package git

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// replay rebuilds master on top of remote. Every path the local commits
// changed since the merge base is re-applied onto remote's tree and the
// result is committed as who, reusing the newest local message. Paths that
// changed on both sides take remote's version. Afterwards the paths remote
// changed are touched so output generated from them is not mistaken for
// current. It returns the new tip of master.
//
// Uncommitted changes to tracked files abort the replay before anything is
// modified.
func replay(repo *git.Repository, wt *git.Worktree, root string, local, remote plumbing.Hash, who Identity) (plumbing.Hash, error) {
	localCommit, err := repo.CommitObject(local)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	remoteCommit, err := repo.CommitObject(remote)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	bases, err := localCommit.MergeBase(remoteCommit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("merge base: %w", err)
	}
	if len(bases) == 0 {
		return plumbing.ZeroHash, errors.New("no common history with origin")
	}

	ours, err := treeChanges(bases[0], localCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	theirs, err := treeChanges(bases[0], remoteCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	upstream := make(map[string]struct{}, len(theirs))
	for _, ch := range theirs {
		for _, name := range []string{ch.From.Name, ch.To.Name} {
			if name != "" {
				upstream[name] = struct{}{}
			}
		}
	}

	st, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("status: %w", err)
	}
	for file, fs := range st {
		if tracked(fs.Worktree) || tracked(fs.Staging) {
			return plumbing.ZeroHash, fmt.Errorf("uncommitted change to %s", file)
		}
	}

	if err := wt.Reset(&git.ResetOptions{Commit: remote, Mode: git.HardReset}); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("reset to origin: %w", err)
	}

	applied := 0
	for _, ch := range ours {
		_, to, err := ch.Files()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if from := ch.From.Name; from != "" && from != ch.To.Name {
			if _, clash := upstream[from]; clash {
				slog.Warn("Dropping local change, path also changed on origin", logfields.Path(from))
			} else if _, err := wt.Remove(from); err != nil {
				return plumbing.ZeroHash, fmt.Errorf("remove %s: %w", from, err)
			} else {
				applied++
			}
		}
		if to == nil {
			continue
		}
		if _, clash := upstream[to.Name]; clash {
			slog.Warn("Dropping local change, path also changed on origin", logfields.Path(to.Name))
			continue
		}
		if err := writeBlob(root, to); err != nil {
			return plumbing.ZeroHash, err
		}
		if _, err := wt.Add(to.Name); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("stage %s: %w", to.Name, err)
		}
		applied++
	}
	if applied == 0 {
		return remote, nil
	}

	sig := who.Signature(time.Now())
	hash, err := wt.Commit(localCommit.Message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit replay: %w", err)
	}

	now := time.Now()
	for name := range upstream {
		full := filepath.Join(root, filepath.FromSlash(name))
		if _, err := os.Stat(full); err == nil {
			_ = os.Chtimes(full, now, now)
		}
	}
	return hash, nil
}

func tracked(c git.StatusCode) bool {
	return c != git.Unmodified && c != git.Untracked
}

func treeChanges(from, to *object.Commit) (object.Changes, error) {
	a, err := from.Tree()
	if err != nil {
		return nil, err
	}
	b, err := to.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := a.Diff(b)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", shortHash(from.Hash), shortHash(to.Hash), err)
	}
	return changes, nil
}

func writeBlob(root string, f *object.File) error {
	content, err := f.Contents()
	if err != nil {
		return fmt.Errorf("read %s: %w", f.Name, err)
	}
	mode, err := f.Mode.ToOSFileMode()
	if err != nil {
		mode = 0o644
	}
	full := filepath.Join(root, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), mode.Perm())
}
