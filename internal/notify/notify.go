// Package notify announces landed publishes to other systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docsync/internal/config"
	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// Message is published after a run pushed a commit.
type Message struct {
	RunID      string    `json:"run_id"`
	Repository string    `json:"repository"`
	Commit     string    `json:"commit"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notifier delivers Messages. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Close() error
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(context.Context, Message) error { return nil }
func (Noop) Close() error                          { return nil }

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSNotifier publishes Messages as JSON on a NATS subject.
type NATSNotifier struct {
	conn    publisher
	subject string
}

// New returns a NATSNotifier when cfg enables notifications, and Noop
// otherwise.
func New(cfg config.NotifyConfig) (Notifier, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("docsync"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS notifier initialized", logfields.URL(cfg.NATSURL), slog.String("subject", cfg.Subject))
	return newNATSNotifier(conn, cfg.Subject), nil
}

func newNATSNotifier(conn publisher, subject string) *NATSNotifier {
	if subject == "" {
		subject = config.DefaultNotifySubject
	}
	return &NATSNotifier{conn: conn, subject: subject}
}

func (n *NATSNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush message: %w", err)
	}
	slog.Debug("Published notification",
		logfields.RunID(msg.RunID),
		logfields.Repository(msg.Repository))
	return nil
}

func (n *NATSNotifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
