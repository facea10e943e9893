// Package event defines the repository events docsync reacts to and the pure
// predicates that decide whether an event is worth a pipeline run.
package event

import (
	"fmt"
	"strings"
)

// Kind names an event variant.
type Kind string

const (
	KindPush Kind = "push"
	KindWiki Kind = "wiki"
)

// RepoEvent is either a *PushEvent or a *WikiEvent.
type RepoEvent interface {
	Kind() Kind
	Repository() Repo
	isRepoEvent()
}

// IsNil reports whether ev is nil or wraps a nil event pointer.
func IsNil(ev RepoEvent) bool {
	switch e := ev.(type) {
	case nil:
		return true
	case *PushEvent:
		return e == nil
	case *WikiEvent:
		return e == nil
	}
	return false
}

// Repo identifies the repository an event belongs to.
type Repo struct {
	FullName string // always "owner/name"
	Owner    string
	Name     string
}

// ParseRepo splits "owner/name" and rejects anything else.
func ParseRepo(fullName string) (Repo, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository name %q, expected owner/name", fullName)
	}
	return Repo{FullName: fullName, Owner: owner, Name: name}, nil
}

// CommitRecord lists the paths one commit touched. Any list may be nil.
type CommitRecord struct {
	ID             string
	Added          []string
	Removed        []string
	Modified       []string
	CommitterEmail string
}

// PageRecord is one entry of a wiki event. Only its presence matters.
type PageRecord struct {
	PageName string
	Title    string
	Action   string
	SHA      string
}

// PushEvent is a push to a repository. A nil entry in Commits means the
// commit carried no change details.
type PushEvent struct {
	Repo        Repo
	Ref         string
	PusherEmail string
	Commits     []*CommitRecord
}

// NewPushEvent builds a PushEvent for fullName.
func NewPushEvent(fullName, pusherEmail string, commits ...*CommitRecord) (*PushEvent, error) {
	repo, err := ParseRepo(fullName)
	if err != nil {
		return nil, err
	}
	return &PushEvent{Repo: repo, PusherEmail: pusherEmail, Commits: commits}, nil
}

func (e *PushEvent) Kind() Kind       { return KindPush }
func (e *PushEvent) Repository() Repo {
	if e == nil {
		return Repo{}
	}
	return e.Repo
}
func (*PushEvent) isRepoEvent()       {}

// WikiEvent reports edits to the wiki attached to a repository.
type WikiEvent struct {
	Repo        Repo
	SenderEmail string
	Pages       []PageRecord
}

// NewWikiEvent builds a WikiEvent for fullName.
func NewWikiEvent(fullName, senderEmail string, pages ...PageRecord) (*WikiEvent, error) {
	repo, err := ParseRepo(fullName)
	if err != nil {
		return nil, err
	}
	return &WikiEvent{Repo: repo, SenderEmail: senderEmail, Pages: pages}, nil
}

func (e *WikiEvent) Kind() Kind       { return KindWiki }
func (e *WikiEvent) Repository() Repo {
	if e == nil {
		return Repo{}
	}
	return e.Repo
}
func (*WikiEvent) isRepoEvent()       {}
