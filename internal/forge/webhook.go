// Package forge turns GitHub webhook deliveries into repository events.
package forge

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v66/github"

	"git.home.luguber.info/inful/docsync/internal/event"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// GitHub webhook event names handled by docsync.
const (
	EventPush   = "push"
	EventGollum = "gollum"
	EventPing   = "ping"
)

// ErrUnsupportedEvent is returned for event types docsync ignores.
var ErrUnsupportedEvent = errors.New("unsupported event type")

// ValidateSignature checks the X-Hub-Signature-256 (or legacy sha1) header
// against payload. An empty secret disables the check.
func ValidateSignature(payload []byte, signature, secret string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return ferrors.AuthError("missing webhook signature").Build()
	}
	if err := github.ValidateSignature(signature, payload, []byte(secret)); err != nil {
		return ferrors.AuthError("invalid webhook signature").WithCause(err).Build()
	}
	return nil
}

// ParseEvent decodes a webhook payload of the given type. Unknown types
// yield ErrUnsupportedEvent; malformed payloads a validation error.
func ParseEvent(eventType string, payload []byte) (event.RepoEvent, error) {
	switch eventType {
	case EventPush, EventGollum:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	raw, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		return nil, ferrors.ValidationError("malformed webhook payload").
			WithCause(err).WithContext("event", eventType).Build()
	}
	var ev event.RepoEvent
	switch e := raw.(type) {
	case *github.PushEvent:
		ev, err = FromPushEvent(e)
	case *github.GollumEvent:
		ev, err = FromGollumEvent(e)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	if err != nil {
		return nil, ferrors.ValidationError("invalid webhook payload").
			WithCause(err).WithContext("event", eventType).Build()
	}
	return ev, nil
}

// FromPushEvent converts a GitHub push payload. Missing commit details stay
// nil so classification treats them as "no changes".
func FromPushEvent(p *github.PushEvent) (*event.PushEvent, error) {
	repo := p.GetRepo()
	fullName := repo.GetFullName()
	if fullName == "" && repo.GetOwner().GetLogin() != "" {
		fullName = repo.GetOwner().GetLogin() + "/" + repo.GetName()
	}
	commits := make([]*event.CommitRecord, 0, len(p.Commits))
	for _, c := range p.Commits {
		if c == nil {
			commits = append(commits, nil)
			continue
		}
		commits = append(commits, &event.CommitRecord{
			ID:             c.GetID(),
			Added:          c.Added,
			Removed:        c.Removed,
			Modified:       c.Modified,
			CommitterEmail: c.GetCommitter().GetEmail(),
		})
	}
	ev, err := event.NewPushEvent(fullName, p.GetPusher().GetEmail(), commits...)
	if err != nil {
		return nil, err
	}
	ev.Ref = p.GetRef()
	return ev, nil
}

// FromGollumEvent converts a GitHub wiki (gollum) payload.
func FromGollumEvent(g *github.GollumEvent) (*event.WikiEvent, error) {
	pages := make([]event.PageRecord, 0, len(g.Pages))
	for _, p := range g.Pages {
		if p == nil {
			continue
		}
		pages = append(pages, event.PageRecord{
			PageName: p.GetPageName(),
			Title:    p.GetTitle(),
			Action:   p.GetAction(),
			SHA:      p.GetSHA(),
		})
	}
	return event.NewWikiEvent(g.GetRepo().GetFullName(), g.GetSender().GetEmail(), pages...)
}
