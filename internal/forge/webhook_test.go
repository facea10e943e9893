package forge

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/event"
	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

const pushPayload = `{
  "ref": "refs/heads/master",
  "repository": {"full_name": "acme/docs", "name": "docs", "owner": {"login": "acme"}},
  "pusher": {"name": "alice", "email": "alice@example.com"},
  "commits": [
    {"id": "c1", "added": ["guide.md"], "removed": [], "modified": ["README.txt"],
     "committer": {"name": "Alice", "email": "alice@example.com"}},
    {"id": "c2"}
  ]
}`

const gollumPayload = `{
  "pages": [{"page_name": "Home", "title": "Home", "action": "edited", "sha": "abc"}],
  "repository": {"full_name": "acme/project"},
  "sender": {"login": "bob", "email": "bob@example.com"}
}`

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidateSignature(t *testing.T) {
	body := []byte(pushPayload)
	assert.NoError(t, ValidateSignature(body, "", ""))
	assert.NoError(t, ValidateSignature(body, sign("s3cret", pushPayload), "s3cret"))

	err := ValidateSignature(body, sign("wrong", pushPayload), "s3cret")
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryAuth))

	assert.Error(t, ValidateSignature(body, "", "s3cret"))
	assert.Error(t, ValidateSignature(body, "md5=abc", "s3cret"))
}

func TestParsePushEvent(t *testing.T) {
	ev, err := ParseEvent(EventPush, []byte(pushPayload))
	require.NoError(t, err)
	push, ok := ev.(*event.PushEvent)
	require.True(t, ok)
	assert.Equal(t, "acme/docs", push.Repo.FullName)
	assert.Equal(t, "acme", push.Repo.Owner)
	assert.Equal(t, "alice@example.com", push.PusherEmail)
	assert.Equal(t, "refs/heads/master", push.Ref)
	require.Len(t, push.Commits, 2)
	assert.Equal(t, []string{"guide.md"}, push.Commits[0].Added)
	assert.Equal(t, "alice@example.com", push.Commits[0].CommitterEmail)
	assert.Nil(t, push.Commits[1].Added)
	assert.True(t, event.HasMarkdownChanges(push))
}

func TestParseGollumEvent(t *testing.T) {
	ev, err := ParseEvent(EventGollum, []byte(gollumPayload))
	require.NoError(t, err)
	wiki, ok := ev.(*event.WikiEvent)
	require.True(t, ok)
	assert.Equal(t, "acme/project", wiki.Repo.FullName)
	assert.Equal(t, "bob@example.com", wiki.SenderEmail)
	require.Len(t, wiki.Pages, 1)
	assert.Equal(t, "Home", wiki.Pages[0].PageName)
	assert.True(t, event.IsWikiEvent(wiki))
}

func TestParseEventErrors(t *testing.T) {
	_, err := ParseEvent("issues", []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnsupportedEvent)

	_, err = ParseEvent(EventPush, []byte(`{not json`))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	_, err = ParseEvent(EventPush, []byte(`{"repository": {"full_name": "nodash"}}`))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestFromPushEventDerivesFullName(t *testing.T) {
	ev, err := ParseEvent(EventPush, []byte(`{"repository": {"name": "docs", "owner": {"login": "acme"}}, "commits": []}`))
	require.NoError(t, err)
	assert.Equal(t, "acme/docs", ev.Repository().FullName)
	assert.False(t, event.IsPushEvent(ev))
}
