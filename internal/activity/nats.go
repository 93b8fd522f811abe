package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher forwards events to NATS on "<subject>.<action>".
type Publisher struct {
	conn    *nats.Conn
	subject string
}

func ConnectNATS(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("vaultgate-activity"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	slog.Info("nats connected", "url", conn.ConnectedUrl(), "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

func (p *Publisher) Record(ctx context.Context, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Warn("failed to encode activity event", "action", e.Action, "error", err)
		return
	}

	err = p.conn.Publish(subjectFor(p.subject, e.Action), payload)
	if err != nil {
		slog.Warn("failed to publish activity event", "action", e.Action, "error", err)
	}
}

func subjectFor(prefix, action string) string {
	return prefix + "." + action
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
