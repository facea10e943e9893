package pipeline

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/docsync/internal/commitpub"
	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/event"
	"git.home.luguber.info/inful/docsync/internal/git"
	"git.home.luguber.info/inful/docsync/internal/queue"
)

// checkout is one working copy a run brings up to date.
type checkout struct {
	Remote string
	Path   string
}

// plan is the work one run performs, derived from the job alone.
type plan struct {
	Kind       queue.JobKind
	Repository string
	Sync       []checkout
	Mirror     bool   // copy WikiDir into PublishDir before rendering
	WikiDir    string // wiki working copy
	PublishDir string // tree rendered and committed
	Message    string
}

func (p plan) targets() []string {
	out := make([]string, 0, len(p.Sync)+1)
	for _, c := range p.Sync {
		out = append(out, c.Path)
	}
	return append(out, p.PublishDir)
}

// planFor maps an event to the working copies it touches. The returned
// reason is set when the event does not concern any configured repository.
func planFor(cfg *config.Config, ev event.RepoEvent) (plan, string) {
	repo := ev.Repository()
	switch e := ev.(type) {
	case *event.WikiEvent:
		if !cfg.Wiki.Matches(repo.FullName) {
			return plan{}, "wiki of an unconfigured repository"
		}
		if !cfg.Docs.Configured() {
			return plan{}, "docs repository not configured"
		}
		return plan{
			Kind:       queue.JobKindWiki,
			Repository: repo.FullName,
			Sync: []checkout{
				{Remote: cfg.Wiki.WikiCloneURL(), Path: cfg.Wiki.LocalPath},
				{Remote: cfg.Docs.CloneURL(), Path: cfg.Docs.LocalPath},
			},
			Mirror:     true,
			WikiDir:    cfg.Wiki.LocalPath,
			PublishDir: cfg.Docs.LocalPath,
			Message:    commitpub.MessageFor(repo.FullName + " wiki"),
		}, ""
	case *event.PushEvent:
		if e.Ref != "" && e.Ref != git.BranchRef.String() {
			return plan{}, "push to a branch other than " + git.Branch
		}
		if cfg.Docs.Matches(repo.FullName) {
			return plan{
				Kind:       queue.JobKindPush,
				Repository: repo.FullName,
				Sync:       []checkout{{Remote: cfg.Docs.CloneURL(), Path: cfg.Docs.LocalPath}},
				PublishDir: cfg.Docs.LocalPath,
				Message:    commitpub.MessageFor(repo.FullName),
			}, ""
		}
		if !cfg.Pipeline.AllowOtherRepos {
			return plan{}, "repository not configured"
		}
		other := config.RepoConfig{Owner: repo.Owner, Name: repo.Name, BaseURL: cfg.Docs.BaseURL}
		path := filepath.Join(cfg.Pipeline.ReposDir, safeSegment(repo.Owner), safeSegment(repo.Name))
		return plan{
			Kind:       queue.JobKindPush,
			Repository: repo.FullName,
			Sync:       []checkout{{Remote: other.CloneURL(), Path: path}},
			PublishDir: path,
			Message:    commitpub.MessageFor(repo.FullName),
		}, ""
	}
	return plan{}, "unsupported event"
}

// resyncPlan refreshes the docs tree, and the wiki mirror when migration is on.
func resyncPlan(cfg *config.Config) plan {
	p := plan{
		Kind:       queue.JobKindResync,
		Repository: cfg.Docs.FullName(),
		PublishDir: cfg.Docs.LocalPath,
		Message:    commitpub.MessageFor(cfg.Docs.FullName()),
	}
	if cfg.Migration.Enabled && cfg.Wiki.Configured() {
		p.Sync = append(p.Sync, checkout{Remote: cfg.Wiki.WikiCloneURL(), Path: cfg.Wiki.LocalPath})
		p.Mirror = true
		p.WikiDir = cfg.Wiki.LocalPath
	}
	p.Sync = append(p.Sync, checkout{Remote: cfg.Docs.CloneURL(), Path: cfg.Docs.LocalPath})
	return p
}

// safeSegment keeps event-supplied names from escaping the repos directory.
func safeSegment(s string) string {
	s = strings.ReplaceAll(s, "..", "_")
	return strings.NewReplacer("/", "_", `\`, "_").Replace(s)
}
