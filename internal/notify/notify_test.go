package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docsync/internal/config"
)

type fakeConn struct {
	subject  string
	data     []byte
	pubErr   error
	flushed  bool
	closed   bool
	deadline bool
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.pubErr
}

func (f *fakeConn) FlushWithContext(ctx context.Context) error {
	_, f.deadline = ctx.Deadline()
	f.flushed = true
	return nil
}

func (f *fakeConn) Close() { f.closed = true }

func TestNewDisabledIsNoop(t *testing.T) {
	n, err := New(config.NotifyConfig{})
	require.NoError(t, err)
	assert.Equal(t, Noop{}, n)
	assert.NoError(t, n.Notify(context.Background(), Message{}))
}

func TestNotifyPublishesJSON(t *testing.T) {
	conn := &fakeConn{}
	n := newNATSNotifier(conn, "")
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, n.Notify(context.Background(), Message{
		RunID: "r1", Repository: "acme/docs", Commit: "abc", Timestamp: ts,
	}))
	assert.Equal(t, config.DefaultNotifySubject, conn.subject)
	assert.True(t, conn.flushed)
	assert.True(t, conn.deadline)

	var got map[string]any
	require.NoError(t, json.Unmarshal(conn.data, &got))
	assert.Equal(t, "r1", got["run_id"])
	assert.Equal(t, "acme/docs", got["repository"])
	assert.Equal(t, "abc", got["commit"])
	assert.Equal(t, "2024-05-01T12:00:00Z", got["timestamp"])

	require.NoError(t, n.Close())
	assert.True(t, conn.closed)
}

func TestNotifyPublishError(t *testing.T) {
	conn := &fakeConn{pubErr: errors.New("no responders")}
	err := newNATSNotifier(conn, "custom").Notify(context.Background(), Message{RunID: "r"})
	require.Error(t, err)
	assert.Equal(t, "custom", conn.subject)
	assert.False(t, conn.flushed)
}
