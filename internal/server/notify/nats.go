package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// publisher is the part of *nats.Conn the transport uses.
type publisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSTransport hands rendered messages to an out-of-process mail worker
// subscribed on subject. Deliver returns once the server has the message.
type NATSTransport struct {
	conn    publisher
	subject string
	closer  func()
}

// DialNATS connects to url and returns a transport publishing on subject.
func DialNATS(url, subject string, opts ...nats.Option) (*NATSTransport, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	t := NewNATSTransport(nc, subject)
	t.closer = func() {
		if err := nc.Drain(); err != nil {
			nc.Close()
		}
	}
	return t, nil
}

func NewNATSTransport(conn publisher, subject string) *NATSTransport {
	return &NATSTransport{conn: conn, subject: subject}
}

func (t *NATSTransport) Deliver(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := t.conn.Publish(t.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	if err := t.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}

// Close drains the connection opened by DialNATS.
func (t *NATSTransport) Close() {
	if t != nil && t.closer != nil {
		t.closer()
	}
}
