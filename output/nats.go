// Package output publishes aggregate snapshots to external sinks.
package output

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/playerlist/errors"
	"github.com/c360/playerlist/playerlist"
)

// NATSPublisher publishes each refresh-cycle snapshot as JSON on a NATS
// subject. Reconnects are handled by the client; publishes during an outage
// fail and are dropped, the next cycle publishes again.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// NewNATSPublisher connects to the NATS server and returns a publisher for
// the given subject.
func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "nats-publisher")

	conn, err := nats.Connect(url,
		nats.Name("playerlist"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "output", "NewNATSPublisher", "connect to NATS")
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}, nil
}

// Publish implements playerlist.Publisher.
func (p *NATSPublisher) Publish(_ context.Context, status playerlist.Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return errors.WrapInvalid(err, "output", "Publish", "marshal snapshot")
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return errors.WrapTransient(err, "output", "Publish", "publish snapshot")
	}
	return nil
}

// Close drains the connection, flushing any buffered publishes.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain", "error", err)
		p.conn.Close()
	}
}
