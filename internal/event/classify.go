package event

import "strings"

// Bot is the identity whose own pushes must never trigger a run.
type Bot struct {
	Name  string
	Email string
}

// IsPushEvent reports a push that carries at least one commit.
func IsPushEvent(ev RepoEvent) bool {
	p, ok := ev.(*PushEvent)
	return ok && p != nil && len(p.Commits) > 0
}

// IsWikiEvent reports a wiki event with at least one page.
func IsWikiEvent(ev RepoEvent) bool {
	w, ok := ev.(*WikiEvent)
	return ok && w != nil && len(w.Pages) > 0
}

// HasMarkdownChanges reports whether any commit of a push touched a .md
// file. Wiki events always count as Markdown changes.
func HasMarkdownChanges(ev RepoEvent) bool {
	switch e := ev.(type) {
	case *WikiEvent:
		return e != nil
	case *PushEvent:
		if e == nil {
			return false
		}
		for _, c := range e.Commits {
			if c == nil {
				continue
			}
			if anyMarkdown(c.Added) || anyMarkdown(c.Removed) || anyMarkdown(c.Modified) {
				return true
			}
		}
	}
	return false
}

// IsMarkdownPath reports a path ending in .md, ignoring case.
func IsMarkdownPath(p string) bool {
	return strings.HasSuffix(strings.ToLower(p), ".md")
}

func anyMarkdown(paths []string) bool {
	for _, p := range paths {
		if IsMarkdownPath(p) {
			return true
		}
	}
	return false
}

// IsSelfAuthored reports an event produced by bot: the pusher, any committer
// or the wiki sender carries the bot email.
func IsSelfAuthored(ev RepoEvent, bot Bot) bool {
	if bot.Email == "" {
		return false
	}
	match := func(email string) bool { return email != "" && strings.EqualFold(email, bot.Email) }
	switch e := ev.(type) {
	case *PushEvent:
		if e == nil {
			return false
		}
		if match(e.PusherEmail) {
			return true
		}
		for _, c := range e.Commits {
			if c != nil && match(c.CommitterEmail) {
				return true
			}
		}
	case *WikiEvent:
		return e != nil && match(e.SenderEmail)
	}
	return false
}

// Decision is the outcome of classifying an event.
type Decision struct {
	Relevant bool
	Reason   string
}

// Classify applies the predicates in order and explains a discard.
func Classify(ev RepoEvent, bot Bot) Decision {
	switch {
	case IsNil(ev):
		return Decision{Reason: "no event"}
	case IsSelfAuthored(ev, bot):
		return Decision{Reason: "self-authored"}
	}
	switch ev.Kind() {
	case KindWiki:
		if !IsWikiEvent(ev) {
			return Decision{Reason: "wiki event without pages"}
		}
		return Decision{Relevant: true, Reason: "wiki pages changed"}
	case KindPush:
		if !IsPushEvent(ev) {
			return Decision{Reason: "push without commits"}
		}
		if !HasMarkdownChanges(ev) {
			return Decision{Reason: "no markdown changes"}
		}
		return Decision{Relevant: true, Reason: "markdown changed"}
	}
	return Decision{Reason: "unsupported event"}
}
