package publish

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nvr-ai/go-ppg/controller"
	"github.com/pkg/errors"
)

// ConnectNATS dials a NATS server with unlimited reconnects.
//
// Arguments:
//   - url: The server URL, e.g. nats://127.0.0.1:4222.
//   - name: The connection name shown in server monitoring.
//
// Returns:
//   - *nats.Conn: The connection.
//   - error: The dial error.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("publish: nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("publish: nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to nats at %s", url)
	}
	return nc, nil
}

// natsPublisher is the subset of *nats.Conn the sink needs.
type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every display on a subject.
type NATSSink struct {
	conn    natsPublisher
	subject string
	codec   Codec

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewNATSSink creates a sink on an established connection.
func NewNATSSink(conn *nats.Conn, subject string, codec Codec) *NATSSink {
	return newNATSSink(conn, subject, codec)
}

func newNATSSink(conn natsPublisher, subject string, codec Codec) *NATSSink {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &NATSSink{conn: conn, subject: subject, codec: codec}
}

func (s *NATSSink) Name() string { return "nats" }

// Publish encodes d and hands it to the connection. NATS buffers while
// reconnecting, so this does not block on the network.
func (s *NATSSink) Publish(d controller.Display) error {
	payload, err := s.codec.Marshal(d)
	if err != nil {
		s.failed.Add(1)
		return errors.Wrap(err, "nats: marshal display")
	}
	if err := s.conn.Publish(s.subject, payload); err != nil {
		s.failed.Add(1)
		return errors.Wrapf(err, "nats: publish to %s", s.subject)
	}
	s.published.Add(1)
	return nil
}

// Stats returns the published and failed message counts.
func (s *NATSSink) Stats() (published, failed uint64) {
	return s.published.Load(), s.failed.Load()
}
