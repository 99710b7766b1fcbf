package events

import (
	"context"

	"github.com/nats-io/nats.go"
)

type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

type natsPublisher struct {
	conn natsConn
}

// NewNATSPublisher publishes each event on a subject named after its topic.
// The connection is owned by the caller.
func NewNATSPublisher(conn *nats.Conn) Publisher {
	return &natsPublisher{conn: conn}
}

func (p *natsPublisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	msg := nats.NewMsg(topic)
	msg.Data = payload
	if key != "" {
		msg.Header.Set("Ortheloquence-Key", key)
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return err
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *natsPublisher) Close() error { return nil }
